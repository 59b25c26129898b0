package intrarequester

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/stretchr/testify/require"

	"github.com/livekit/protocol/logger"
)

func newTestRequester(throttle time.Duration) (*IntraRequester, *[]rtcp.Packet) {
	var sent []rtcp.Packet
	r := NewIntraRequester(IntraRequesterParams{
		SenderSSRC: 0x11111111,
		MediaSSRC:  0x22222222,
		Throttle:   throttle,
		Logger:     logger.GetLogger(),
		OnRTCP: func(pkts []rtcp.Packet) {
			sent = append(sent, pkts...)
		},
	})
	return r, &sent
}

func TestIntraRequesterPLI(t *testing.T) {
	r, sent := newTestRequester(time.Hour)

	require.True(t, r.SendPLI(false))
	require.Len(t, *sent, 1)

	pli, ok := (*sent)[0].(*rtcp.PictureLossIndication)
	require.True(t, ok)
	require.Equal(t, uint32(0x11111111), pli.SenderSSRC)
	require.Equal(t, uint32(0x22222222), pli.MediaSSRC)

	// throttled
	require.False(t, r.SendPLI(false))
	require.Len(t, *sent, 1)

	// forced requests skip the throttle
	require.True(t, r.SendPLI(true))
	require.Len(t, *sent, 2)
}

func TestIntraRequesterFIRSequence(t *testing.T) {
	r, sent := newTestRequester(time.Hour)

	require.True(t, r.SendFIR(true))
	require.True(t, r.SendFIR(true))
	require.Len(t, *sent, 2)

	first := (*sent)[0].(*rtcp.FullIntraRequest)
	second := (*sent)[1].(*rtcp.FullIntraRequest)
	require.Equal(t, first.FIR[0].SequenceNumber+1, second.FIR[0].SequenceNumber)
}

func TestIntraRequesterObserve(t *testing.T) {
	r, sent := newTestRequester(time.Hour)

	r.Observe(false)
	require.Empty(t, *sent)

	r.Observe(true)
	require.Len(t, *sent, 1)

	// stays throttled while the signal is up
	r.Observe(true)
	require.Len(t, *sent, 1)
}

package videolayerselector

import (
	"github.com/livekit/protocol/logger"

	"github.com/livemedia/sfu-selector/pkg/sfu/buffer"
)

// Null forwards everything unchanged. Used for streams that carry no
// dependency descriptor, where there is nothing to select on.
type Null struct {
	*Base
}

func NewNull(codec string, logger logger.Logger) *Null {
	return &Null{
		Base: NewBase(codec, logger),
	}
}

func (n *Null) Select(extPkt *buffer.ExtPacket) Result {
	return Result{
		IsSelected: true,
		RTPMarker:  extPkt.Packet.Header.Marker,
	}
}

func (n *Null) GetLayerIDs(_ *buffer.ExtPacket) buffer.VideoLayer {
	return buffer.MaxLayer
}

func (n *Null) IsWaitingForIntra() bool {
	return false
}

func (n *Null) ForwardedDecodeTargets() *uint32 {
	return nil
}

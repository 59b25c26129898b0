// Copyright 2025 LiveMedia
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package intrarequester turns a selector's waiting-for-intra signal into
// keyframe request RTCP packets. It carries no transport, the caller supplies
// the RTCP write path.
package intrarequester

import (
	"time"

	"github.com/pion/rtcp"
	"go.uber.org/atomic"

	"github.com/livekit/protocol/logger"
)

const DefaultThrottle = 500 * time.Millisecond

type IntraRequesterParams struct {
	SenderSSRC uint32
	MediaSSRC  uint32

	// Throttle is the minimum interval between emitted requests, zero means
	// DefaultThrottle.
	Throttle time.Duration

	Logger logger.Logger

	// OnRTCP receives the keyframe request packets.
	OnRTCP func(pkts []rtcp.Packet)
}

type IntraRequester struct {
	params IntraRequesterParams

	throttle    int64
	lastRequest atomic.Int64
	firSeqNr    atomic.Uint32
}

func NewIntraRequester(params IntraRequesterParams) *IntraRequester {
	throttle := params.Throttle
	if throttle == 0 {
		throttle = DefaultThrottle
	}
	return &IntraRequester{
		params:   params,
		throttle: throttle.Nanoseconds(),
	}
}

// Observe is called with the selector's waiting-for-intra state after each
// packet decision. A PLI is emitted while the signal stays up, subject to the
// throttle.
func (r *IntraRequester) Observe(waitingForIntra bool) {
	if !waitingForIntra {
		return
	}
	r.SendPLI(false)
}

// SendPLI emits a picture loss indication. force skips the throttle.
func (r *IntraRequester) SendPLI(force bool) bool {
	if !r.acquire(force) {
		return false
	}

	r.params.Logger.Debugw("sending PLI", "mediaSSRC", r.params.MediaSSRC)
	r.params.OnRTCP([]rtcp.Packet{
		&rtcp.PictureLossIndication{
			SenderSSRC: r.params.SenderSSRC,
			MediaSSRC:  r.params.MediaSSRC,
		},
	})
	return true
}

// SendFIR emits a full intra request with a monotonically increasing sequence
// number. force skips the throttle.
func (r *IntraRequester) SendFIR(force bool) bool {
	if !r.acquire(force) {
		return false
	}

	seqNr := uint8(r.firSeqNr.Inc())
	r.params.Logger.Debugw("sending FIR", "mediaSSRC", r.params.MediaSSRC, "seqNr", seqNr)
	r.params.OnRTCP([]rtcp.Packet{
		&rtcp.FullIntraRequest{
			SenderSSRC: r.params.SenderSSRC,
			MediaSSRC:  r.params.MediaSSRC,
			FIR: []rtcp.FIREntry{
				{
					SSRC:           r.params.MediaSSRC,
					SequenceNumber: seqNr,
				},
			},
		},
	})
	return true
}

func (r *IntraRequester) acquire(force bool) bool {
	now := time.Now().UnixNano()
	if force {
		r.lastRequest.Store(now)
		return true
	}
	last := r.lastRequest.Load()
	if now-last < r.throttle {
		return false
	}
	return r.lastRequest.CompareAndSwap(last, now)
}

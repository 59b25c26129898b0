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

// Package videolayerselector decides, per subscriber and per packet, whether
// an incoming video RTP packet is forwarded downstream at the requested
// spatial/temporal layer.
package videolayerselector

import (
	"github.com/livemedia/sfu-selector/pkg/sfu/buffer"
)

// Result is the outcome of one Select call. RTPMarker is the corrected
// outgoing marker bit, only meaningful when IsSelected is true.
type Result struct {
	IsSelected bool
	RTPMarker  bool
}

// VideoLayerSelector is entered serially per stream, one packet at a time.
// Instances are not safe for concurrent use; IsWaitingForIntra alone may be
// polled from another goroutine with eventual consistency.
type VideoLayerSelector interface {
	Codec() string

	SelectSpatialLayer(id int32)
	SelectTemporalLayer(id int32)

	Select(extPkt *buffer.ExtPacket) Result

	// GetLayerIDs reports the layer coordinate of the packet's referenced
	// template without mutating any state. Returns buffer.MaxLayer when the
	// descriptor or structure is unavailable.
	GetLayerIDs(extPkt *buffer.ExtPacket) buffer.VideoLayer

	IsWaitingForIntra() bool

	// ForwardedDecodeTargets is the active decode targets bitmask to restamp
	// into outgoing descriptors, nil when no override is needed.
	ForwardedDecodeTargets() *uint32
}

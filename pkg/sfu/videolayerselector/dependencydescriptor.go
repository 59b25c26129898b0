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

package videolayerselector

import (
	"github.com/livekit/protocol/logger"
	"go.uber.org/atomic"

	"github.com/livemedia/sfu-selector/pkg/sfu/buffer"
	dd "github.com/livemedia/sfu-selector/pkg/sfu/rtpextension/dependencydescriptor"
	"github.com/livemedia/sfu-selector/pkg/sfu/utils"
)

// FrameNumberExtender rolls the 16 bit wire frame number into a 64 bit
// monotonic one.
type FrameNumberExtender interface {
	Extend(frameNumber uint16) uint64
}

const (
	noDecodeTarget = -1
	noChain        = -1
)

// DependencyDescriptor selects packets of streams that carry the AV1
// dependency descriptor header extension. It tracks which frames were
// forwarded in full, evaluates frame diffs and chain continuity against that
// ledger, and picks the best decode target within the requested layer caps.
type DependencyDescriptor struct {
	*Base

	frameNumberExtender FrameNumberExtender
	forwardedFrames     *ForwardedFrames

	structure          *dd.FrameDependencyStructure
	decodeTargetLayers []buffer.VideoLayer

	haveFrame          bool
	currentFrameNumber uint64

	forwardedDecodeTargets *uint32
	waitingForIntra        atomic.Bool
}

func NewDependencyDescriptor(codec string, logger logger.Logger) *DependencyDescriptor {
	return &DependencyDescriptor{
		Base:                NewBase(codec, logger),
		frameNumberExtender: utils.NewNumberExtender[uint16, uint64](),
		forwardedFrames:     NewForwardedFrames(0),
	}
}

// SetFrameNumberExtender replaces the default extender. Must be called before
// the first Select.
func (d *DependencyDescriptor) SetFrameNumberExtender(extender FrameNumberExtender) {
	d.frameNumberExtender = extender
}

func (d *DependencyDescriptor) Select(extPkt *buffer.ExtPacket) Result {
	extDD := extPkt.DependencyDescriptor
	if extDD == nil || extDD.Descriptor == nil {
		d.waitingForIntra.Store(true)
		d.logger.Warnw("could not retrieve dependency descriptor", nil)
		return Result{}
	}
	descriptor := extDD.Descriptor

	structure := extDD.Structure
	if structure == nil {
		d.waitingForIntra.Store(true)
		d.logger.Warnw("could not retrieve template dependency structure", nil)
		return Result{}
	}
	d.updateStructure(structure)

	extFrameNum := d.frameNumberExtender.Extend(descriptor.FrameNumber)

	if !d.haveFrame {
		if !descriptor.FirstPacketInFrame {
			d.waitingForIntra.Store(true)
			return Result{}
		}

		d.logger.Debugw("got first frame start", "frameNumber", extFrameNum)
		d.haveFrame = true
		d.currentFrameNumber = extFrameNum
	}

	template := structure.TemplateByID(descriptor.FrameDependencyTemplateID)
	if template == nil {
		// structure is transiently out of sync with this packet, the
		// upstream resynchronises without our help
		d.logger.Warnw("current templates do not contain referenced template", nil, "templateID", descriptor.FrameDependencyTemplateID)
		return Result{}
	}

	decodeTargetIndications := template.DecodeTargetIndications
	if descriptor.CustomDecodeTargetIndications != nil {
		decodeTargetIndications = descriptor.CustomDecodeTargetIndications
	}
	frameDiffs := template.FrameDiffs
	if descriptor.CustomFrameDiffs != nil {
		frameDiffs = descriptor.CustomFrameDiffs
	}
	chainDiffs := template.ChainDiffs
	if descriptor.CustomChainDiffs != nil {
		chainDiffs = descriptor.CustomChainDiffs
	}

	// only full frames are forwarded, a later frame starting before the
	// previous one ended means the previous one is incomplete
	decodable := true
	if extFrameNum > d.currentFrameNumber && !descriptor.FirstPacketInFrame {
		decodable = false
	}
	if extFrameNum > d.currentFrameNumber {
		d.currentFrameNumber = extFrameNum
	}

	for _, diff := range frameDiffs {
		referenced := extFrameNum - uint64(diff)
		if referenced != extFrameNum && !d.forwardedFrames.Contains(referenced) {
			decodable = false
			break
		}
	}

	requested := d.RequestedLayer()
	activeDecodeTargets := descriptor.ActiveDecodeTargetsBitmask

	var forwardedDecodeTargets *uint32
	if requested.Spatial != buffer.MaxLayerID || requested.Temporal != buffer.MaxLayerID {
		mask := uint32(1<<structure.NumDecodeTargets) - 1
		if activeDecodeTargets != nil {
			mask = *activeDecodeTargets
		}
		forwardedDecodeTargets = &mask
	}

	currentDecodeTarget := noDecodeTarget
	currentChain := noChain
	needsForwardedDecodeTargets := false

	// reverse order, higher decode targets are higher layers and the best
	// one still within the caps wins
	for target := structure.NumDecodeTargets - 1; target >= 0; target-- {
		if target >= len(d.decodeTargetLayers) {
			continue
		}
		layer := d.decodeTargetLayers[target]

		if layer.Spatial > requested.Spatial || layer.Temporal > requested.Temporal {
			if forwardedDecodeTargets != nil {
				*forwardedDecodeTargets &^= 1 << target
				needsForwardedDecodeTargets = true
			}
			continue
		}

		if activeDecodeTargets != nil && *activeDecodeTargets&(1<<target) == 0 {
			// disabled by the sender, its own bitmask already says so
			continue
		}

		if len(structure.DecodeTargetProtectedByChain) == 0 {
			currentDecodeTarget = target
			break
		}
		if target >= len(structure.DecodeTargetProtectedByChain) {
			continue
		}
		chain := structure.DecodeTargetProtectedByChain[target]
		if chain >= len(chainDiffs) {
			continue
		}

		prevFrameInChain := extFrameNum - uint64(chainDiffs[chain])
		if prevFrameInChain != 0 && prevFrameInChain != extFrameNum && !d.forwardedFrames.Contains(prevFrameInChain) {
			// chain broken at this target
			continue
		}

		currentChain = chain
		currentDecodeTarget = target
		break
	}

	if !needsForwardedDecodeTargets {
		forwardedDecodeTargets = nil
	}
	d.forwardedDecodeTargets = forwardedDecodeTargets

	if currentDecodeTarget == noDecodeTarget {
		d.waitingForIntra.Store(true)
		d.logger.Debugw("no decode target available", "frameNumber", extFrameNum)
		return Result{}
	}

	if currentDecodeTarget >= len(decodeTargetIndications) {
		d.waitingForIntra.Store(true)
		d.logger.Warnw("no decode target indication available", nil, "decodeTarget", currentDecodeTarget, "frameNumber", extFrameNum)
		return Result{}
	}
	dti := decodeTargetIndications[currentDecodeTarget]

	if dti == dd.DecodeTargetNotPresent {
		// frame carries no data for the chosen target
		d.logger.Debugw("discarding packet, not present", "decodeTarget", currentDecodeTarget, "frameNumber", extFrameNum)
		return Result{}
	}

	if !decodable {
		d.waitingForIntra.Store(dti != dd.DecodeTargetDiscardable)
		d.logger.Debugw("discarding packet, not decodable", "decodeTarget", currentDecodeTarget, "chain", currentChain, "frameNumber", extFrameNum)
		return Result{}
	}

	// restamp the marker so the receiver sees end of frame at the highest
	// forwarded spatial layer even when the encoder set it on a pruned one
	mark := extPkt.Packet.Header.Marker ||
		(descriptor.LastPacketInFrame && int32(template.SpatialID) == d.decodeTargetLayers[currentDecodeTarget].Spatial)

	d.waitingForIntra.Store(false)

	if descriptor.LastPacketInFrame {
		// only full frames count as forwarded
		d.forwardedFrames.Add(extFrameNum)
	}

	return Result{
		IsSelected: true,
		RTPMarker:  mark,
	}
}

// GetLayerIDs reports the layer coordinate of the packet's referenced
// template. Pure, usable before the selector has seen any packet.
func (d *DependencyDescriptor) GetLayerIDs(extPkt *buffer.ExtPacket) buffer.VideoLayer {
	extDD := extPkt.DependencyDescriptor
	if extDD == nil || extDD.Descriptor == nil || extDD.Structure == nil {
		return buffer.MaxLayer
	}

	template := extDD.Structure.TemplateByID(extDD.Descriptor.FrameDependencyTemplateID)
	if template == nil {
		return buffer.MaxLayer
	}
	return buffer.VideoLayer{
		Spatial:  int32(template.SpatialID),
		Temporal: int32(template.TemporalID),
	}
}

func (d *DependencyDescriptor) IsWaitingForIntra() bool {
	return d.waitingForIntra.Load()
}

func (d *DependencyDescriptor) ForwardedDecodeTargets() *uint32 {
	return d.forwardedDecodeTargets
}

func (d *DependencyDescriptor) updateStructure(structure *dd.FrameDependencyStructure) {
	if structure == d.structure {
		return
	}
	d.structure = structure

	d.decodeTargetLayers = d.decodeTargetLayers[:0]
	for target := 0; target < structure.NumDecodeTargets; target++ {
		layer := buffer.VideoLayer{Spatial: 0, Temporal: 0}
		for _, t := range structure.Templates {
			if target < len(t.DecodeTargetIndications) && t.DecodeTargetIndications[target] != dd.DecodeTargetNotPresent {
				if layer.Spatial < int32(t.SpatialID) {
					layer.Spatial = int32(t.SpatialID)
				}
				if layer.Temporal < int32(t.TemporalID) {
					layer.Temporal = int32(t.TemporalID)
				}
			}
		}
		d.decodeTargetLayers = append(d.decodeTargetLayers, layer)
	}
	d.logger.Debugw("structure updated", "numDecodeTargets", structure.NumDecodeTargets, "numChains", structure.NumChains)
}

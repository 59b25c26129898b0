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

// Package dependencydescriptor models the AV1 Dependency Descriptor RTP
// header extension and its Template Dependency Structure.
// https://aomediacodec.github.io/av1-rtp-spec/#dependency-descriptor-rtp-header-extension
package dependencydescriptor

import (
	"fmt"
	"strconv"
)

const (
	MaxSpatialIds    = 4
	MaxTemporalIds   = 8
	MaxDecodeTargets = 32
	MaxTemplates     = 64

	ExtensionURI = "https://aomediacodec.github.io/av1-rtp-spec/#dependency-descriptor-rtp-header-extension"
)

// ------------------------------------------------------------------------------

// DecodeTargetIndication is the relationship of a frame to a decode target.
type DecodeTargetIndication int

const (
	DecodeTargetNotPresent  DecodeTargetIndication = iota // DecodeTargetInfo symbol '-'
	DecodeTargetDiscardable                               // DecodeTargetInfo symbol 'D'
	DecodeTargetSwitch                                    // DecodeTargetInfo symbol 'S'
	DecodeTargetRequired                                  // DecodeTargetInfo symbol 'R'
)

func (i DecodeTargetIndication) String() string {
	switch i {
	case DecodeTargetNotPresent:
		return "-"
	case DecodeTargetDiscardable:
		return "D"
	case DecodeTargetSwitch:
		return "S"
	case DecodeTargetRequired:
		return "R"
	default:
		return "Unknown"
	}
}

// ------------------------------------------------------------------------------

// DependencyDescriptor is the parsed per-packet descriptor. The Custom* slices
// hold the per-packet overrides when present on the wire and are nil otherwise;
// FrameDependencies is the referenced template with the overrides already
// applied.
type DependencyDescriptor struct {
	FirstPacketInFrame        bool
	LastPacketInFrame         bool
	FrameDependencyTemplateID int
	FrameNumber               uint16

	CustomDecodeTargetIndications []DecodeTargetIndication
	CustomFrameDiffs              []int
	CustomChainDiffs              []int

	FrameDependencies          *FrameDependencyTemplate
	Resolution                 *RenderResolution
	ActiveDecodeTargetsBitmask *uint32
	AttachedStructure          *FrameDependencyStructure
}

func (d *DependencyDescriptor) String() string {
	resolution, dependencies := "-", "-"
	if d.Resolution != nil {
		resolution = fmt.Sprintf("%+v", *d.Resolution)
	}
	if d.FrameDependencies != nil {
		dependencies = fmt.Sprintf("%+v", *d.FrameDependencies)
	}
	return fmt.Sprintf(
		"DependencyDescriptor{FirstPacketInFrame: %v, LastPacketInFrame: %v, TemplateID: %v, FrameNumber: %v, FrameDependencies: %s, Resolution: %s, ActiveDecodeTargetsBitmask: %v, AttachedStructure: %v}",
		d.FirstPacketInFrame, d.LastPacketInFrame, d.FrameDependencyTemplateID, d.FrameNumber, dependencies, resolution, formatBitmask(d.ActiveDecodeTargetsBitmask), d.AttachedStructure,
	)
}

func formatBitmask(b *uint32) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatInt(int64(*b), 2)
}

// ------------------------------------------------------------------------------

type FrameDependencyTemplate struct {
	SpatialID               int
	TemporalID              int
	DecodeTargetIndications []DecodeTargetIndication
	FrameDiffs              []int
	ChainDiffs              []int
}

func (t *FrameDependencyTemplate) Clone() *FrameDependencyTemplate {
	t2 := &FrameDependencyTemplate{
		SpatialID:  t.SpatialID,
		TemporalID: t.TemporalID,
	}

	t2.DecodeTargetIndications = make([]DecodeTargetIndication, len(t.DecodeTargetIndications))
	copy(t2.DecodeTargetIndications, t.DecodeTargetIndications)

	t2.FrameDiffs = make([]int, len(t.FrameDiffs))
	copy(t2.FrameDiffs, t.FrameDiffs)

	t2.ChainDiffs = make([]int, len(t.ChainDiffs))
	copy(t2.ChainDiffs, t.ChainDiffs)

	return t2
}

// ------------------------------------------------------------------------------

// FrameDependencyStructure is the Template Dependency Structure attached to
// the first packet of a scalability structure and current for all frames
// until replaced.
type FrameDependencyStructure struct {
	StructureID      int
	NumDecodeTargets int
	NumChains        int
	// If chains are used (NumChains > 0), maps decode target index into index
	// of the chain protecting that target.
	DecodeTargetProtectedByChain []int
	Resolutions                  []RenderResolution
	Templates                    []*FrameDependencyTemplate
}

// TemplateByID resolves a wire template id against this structure. Template
// ids are assigned modulo MaxTemplates starting at StructureID. Returns nil
// when the id does not reference a template of this structure.
func (f *FrameDependencyStructure) TemplateByID(id int) *FrameDependencyTemplate {
	index := (id + MaxTemplates - f.StructureID) % MaxTemplates
	if index >= len(f.Templates) {
		return nil
	}
	return f.Templates[index]
}

func (f *FrameDependencyStructure) String() string {
	str := fmt.Sprintf("FrameDependencyStructure{StructureID: %v, NumDecodeTargets: %v, NumChains: %v, DecodeTargetProtectedByChain: %v, Resolutions: %+v, Templates: [",
		f.StructureID, f.NumDecodeTargets, f.NumChains, f.DecodeTargetProtectedByChain, f.Resolutions)
	for _, t := range f.Templates {
		str += fmt.Sprintf("%+v, ", t)
	}
	str += "]}"
	return str
}

// ------------------------------------------------------------------------------

type RenderResolution struct {
	Width  int
	Height int
}

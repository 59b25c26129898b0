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

package dependencydescriptor

import (
	"errors"
)

var (
	ErrReaderNoStructure              = errors.New("DependencyDescriptorReader: no template dependency structure")
	ErrReaderTemplateWithoutStructure = errors.New("DependencyDescriptorReader: template_dependency_structure_present_flag set but no attached structure")
	ErrReaderTooManyTemplates         = errors.New("DependencyDescriptorReader: too many templates")
	ErrReaderTooManyTemporalLayers    = errors.New("DependencyDescriptorReader: too many temporal layers")
	ErrReaderTooManySpatialLayers     = errors.New("DependencyDescriptorReader: too many spatial layers")
	ErrReaderInvalidTemplateIndex     = errors.New("DependencyDescriptorReader: invalid template index")
	ErrReaderInvalidSpatialLayer      = errors.New("DependencyDescriptorReader: spatial layer has no resolution")
	ErrReaderNumDTIMismatch           = errors.New("DependencyDescriptorReader: decode target indications length mismatch")
	ErrReaderNumChainDiffsMismatch    = errors.New("DependencyDescriptorReader: chain diffs length mismatch")
)

// DependencyDescriptorReader parses the wire form of the extension into a
// DependencyDescriptor. The structure current for the stream must be supplied
// unless this packet attaches one.
type DependencyDescriptorReader struct {
	descriptor *DependencyDescriptor

	buffer                         *BitStreamReader
	activeDecodeTargetsPresentFlag bool
	customDtisFlag                 bool
	customFdiffsFlag               bool
	customChainsFlag               bool
	structure                      *FrameDependencyStructure
}

func NewDependencyDescriptorReader(buf []byte, structure *FrameDependencyStructure, descriptor *DependencyDescriptor) *DependencyDescriptorReader {
	return &DependencyDescriptorReader{
		buffer:     NewBitStreamReader(buf),
		descriptor: descriptor,
		structure:  structure,
	}
}

func (r *DependencyDescriptorReader) Parse() (int, error) {
	if err := r.readMandatoryFields(); err != nil {
		return 0, err
	}
	if len(r.buffer.buf) > 3 {
		if err := r.readExtendedFields(); err != nil {
			return 0, err
		}
	}

	if r.descriptor.AttachedStructure != nil {
		r.structure = r.descriptor.AttachedStructure
	}
	if r.structure == nil {
		r.buffer.Invalidate()
		return 0, ErrReaderNoStructure
	}

	if r.activeDecodeTargetsPresentFlag {
		bitmask, err := r.buffer.ReadBits(r.structure.NumDecodeTargets)
		if err != nil {
			return 0, err
		}
		mask := uint32(bitmask)
		r.descriptor.ActiveDecodeTargetsBitmask = &mask
	}

	if err := r.readFrameDependencyDefinition(); err != nil {
		return 0, err
	}
	return r.buffer.BytesRead(), nil
}

func (r *DependencyDescriptorReader) readMandatoryFields() error {
	var err error
	if r.descriptor.FirstPacketInFrame, err = r.buffer.ReadBool(); err != nil {
		return err
	}
	if r.descriptor.LastPacketInFrame, err = r.buffer.ReadBool(); err != nil {
		return err
	}

	templateID, err := r.buffer.ReadBits(6)
	if err != nil {
		return err
	}
	r.descriptor.FrameDependencyTemplateID = int(templateID)

	frameNumber, err := r.buffer.ReadBits(16)
	if err != nil {
		return err
	}
	r.descriptor.FrameNumber = uint16(frameNumber)
	return nil
}

func (r *DependencyDescriptorReader) readExtendedFields() error {
	templateDependencyStructurePresentFlag, err := r.buffer.ReadBool()
	if err != nil {
		return err
	}
	if r.activeDecodeTargetsPresentFlag, err = r.buffer.ReadBool(); err != nil {
		return err
	}
	if r.customDtisFlag, err = r.buffer.ReadBool(); err != nil {
		return err
	}
	if r.customFdiffsFlag, err = r.buffer.ReadBool(); err != nil {
		return err
	}
	if r.customChainsFlag, err = r.buffer.ReadBool(); err != nil {
		return err
	}

	if templateDependencyStructurePresentFlag {
		if err = r.readTemplateDependencyStructure(); err != nil {
			return err
		}
		if r.descriptor.AttachedStructure == nil {
			return ErrReaderTemplateWithoutStructure
		}
		bitmask := uint32((uint64(1) << r.descriptor.AttachedStructure.NumDecodeTargets) - 1)
		r.descriptor.ActiveDecodeTargetsBitmask = &bitmask
	}
	return nil
}

func (r *DependencyDescriptorReader) readTemplateDependencyStructure() error {
	r.descriptor.AttachedStructure = &FrameDependencyStructure{}

	structureID, err := r.buffer.ReadBits(6)
	if err != nil {
		return err
	}
	r.descriptor.AttachedStructure.StructureID = int(structureID)

	numDecodeTargets, err := r.buffer.ReadBits(5)
	if err != nil {
		return err
	}
	r.descriptor.AttachedStructure.NumDecodeTargets = int(numDecodeTargets) + 1

	if err = r.readTemplateLayers(); err != nil {
		return err
	}
	if err = r.readTemplateDtis(); err != nil {
		return err
	}
	if err = r.readTemplateFdiffs(); err != nil {
		return err
	}
	if err = r.readTemplateChains(); err != nil {
		return err
	}

	resolutionsPresent, err := r.buffer.ReadBool()
	if err != nil {
		return err
	}
	if resolutionsPresent {
		return r.readResolutions()
	}
	return nil
}

type nextLayerIdcType int

const (
	sameLayer nextLayerIdcType = iota
	nextTemporalLayer
	nextSpatialLayer
	noMoreLayer
)

func (r *DependencyDescriptorReader) readTemplateLayers() error {
	var (
		templates             []*FrameDependencyTemplate
		temporalID, spatialID int
		nextLayerIdc          nextLayerIdcType
	)
	for {
		if len(templates) == MaxTemplates {
			return ErrReaderTooManyTemplates
		}

		templates = append(templates, &FrameDependencyTemplate{
			SpatialID:  spatialID,
			TemporalID: temporalID,
		})

		idc, err := r.buffer.ReadBits(2)
		if err != nil {
			return err
		}
		nextLayerIdc = nextLayerIdcType(idc)

		switch nextLayerIdc {
		case nextTemporalLayer:
			temporalID++
			if temporalID >= MaxTemporalIds {
				return ErrReaderTooManyTemporalLayers
			}
		case nextSpatialLayer:
			spatialID++
			temporalID = 0
			if spatialID >= MaxSpatialIds {
				return ErrReaderTooManySpatialLayers
			}
		}

		if nextLayerIdc == noMoreLayer || !r.buffer.Ok() {
			break
		}
	}

	r.descriptor.AttachedStructure.Templates = templates
	return nil
}

func (r *DependencyDescriptorReader) readTemplateDtis() error {
	structure := r.descriptor.AttachedStructure
	for _, template := range structure.Templates {
		template.DecodeTargetIndications = make([]DecodeTargetIndication, structure.NumDecodeTargets)
		for i := range template.DecodeTargetIndications {
			indication, err := r.buffer.ReadBits(2)
			if err != nil {
				return err
			}
			template.DecodeTargetIndications[i] = DecodeTargetIndication(indication)
		}
	}
	return nil
}

func (r *DependencyDescriptorReader) readTemplateFdiffs() error {
	for _, template := range r.descriptor.AttachedStructure.Templates {
		for {
			fdiffFollows, err := r.buffer.ReadBool()
			if err != nil {
				return err
			}
			if !fdiffFollows {
				break
			}
			fdiffMinusOne, err := r.buffer.ReadBits(4)
			if err != nil {
				return err
			}
			template.FrameDiffs = append(template.FrameDiffs, int(fdiffMinusOne+1))
		}
	}
	return nil
}

func (r *DependencyDescriptorReader) readTemplateChains() error {
	structure := r.descriptor.AttachedStructure

	numChains, err := r.buffer.ReadNonSymmetric(uint32(structure.NumDecodeTargets) + 1)
	if err != nil {
		return err
	}
	structure.NumChains = int(numChains)
	if structure.NumChains == 0 {
		return nil
	}

	for i := 0; i < structure.NumDecodeTargets; i++ {
		protectedByChain, err := r.buffer.ReadNonSymmetric(uint32(structure.NumChains))
		if err != nil {
			return err
		}
		structure.DecodeTargetProtectedByChain = append(structure.DecodeTargetProtectedByChain, int(protectedByChain))
	}

	for _, template := range structure.Templates {
		for chainID := 0; chainID < structure.NumChains; chainID++ {
			chainDiff, err := r.buffer.ReadBits(4)
			if err != nil {
				return err
			}
			template.ChainDiffs = append(template.ChainDiffs, int(chainDiff))
		}
	}
	return nil
}

func (r *DependencyDescriptorReader) readResolutions() error {
	structure := r.descriptor.AttachedStructure
	// templates are bitpacked ordered by spatial id, so the last template
	// carries the highest spatial id
	numSpatialLayers := structure.Templates[len(structure.Templates)-1].SpatialID + 1
	for sid := 0; sid < numSpatialLayers; sid++ {
		widthMinusOne, err := r.buffer.ReadBits(16)
		if err != nil {
			return err
		}
		heightMinusOne, err := r.buffer.ReadBits(16)
		if err != nil {
			return err
		}
		structure.Resolutions = append(structure.Resolutions, RenderResolution{
			Width:  int(widthMinusOne + 1),
			Height: int(heightMinusOne + 1),
		})
	}
	return nil
}

func (r *DependencyDescriptorReader) readFrameDependencyDefinition() error {
	template := r.structure.TemplateByID(r.descriptor.FrameDependencyTemplateID)
	if template == nil {
		r.buffer.Invalidate()
		return ErrReaderInvalidTemplateIndex
	}

	r.descriptor.FrameDependencies = template.Clone()

	if r.customDtisFlag {
		if err := r.readFrameDtis(); err != nil {
			return err
		}
	}
	if r.customFdiffsFlag {
		if err := r.readFrameFdiffs(); err != nil {
			return err
		}
	}
	if r.customChainsFlag {
		if err := r.readFrameChains(); err != nil {
			return err
		}
	}

	if len(r.structure.Resolutions) == 0 {
		r.descriptor.Resolution = nil
	} else {
		if r.descriptor.FrameDependencies.SpatialID >= len(r.structure.Resolutions) {
			r.buffer.Invalidate()
			return ErrReaderInvalidSpatialLayer
		}
		res := r.structure.Resolutions[r.descriptor.FrameDependencies.SpatialID]
		r.descriptor.Resolution = &res
	}
	return nil
}

func (r *DependencyDescriptorReader) readFrameDtis() error {
	if len(r.descriptor.FrameDependencies.DecodeTargetIndications) != r.structure.NumDecodeTargets {
		return ErrReaderNumDTIMismatch
	}

	r.descriptor.CustomDecodeTargetIndications = make([]DecodeTargetIndication, r.structure.NumDecodeTargets)
	for i := range r.descriptor.CustomDecodeTargetIndications {
		indication, err := r.buffer.ReadBits(2)
		if err != nil {
			return err
		}
		r.descriptor.CustomDecodeTargetIndications[i] = DecodeTargetIndication(indication)
		r.descriptor.FrameDependencies.DecodeTargetIndications[i] = DecodeTargetIndication(indication)
	}
	return nil
}

func (r *DependencyDescriptorReader) readFrameFdiffs() error {
	// non-nil even when empty, an empty custom list overrides the template
	r.descriptor.CustomFrameDiffs = make([]int, 0, 2)
	for {
		nextFdiffSize, err := r.buffer.ReadBits(2)
		if err != nil {
			return err
		}
		if nextFdiffSize == 0 {
			break
		}
		fdiffMinusOne, err := r.buffer.ReadBits(int(nextFdiffSize * 4))
		if err != nil {
			return err
		}
		r.descriptor.CustomFrameDiffs = append(r.descriptor.CustomFrameDiffs, int(fdiffMinusOne+1))
	}
	r.descriptor.FrameDependencies.FrameDiffs = r.descriptor.CustomFrameDiffs
	return nil
}

func (r *DependencyDescriptorReader) readFrameChains() error {
	if len(r.descriptor.FrameDependencies.ChainDiffs) != r.structure.NumChains {
		return ErrReaderNumChainDiffsMismatch
	}

	r.descriptor.CustomChainDiffs = make([]int, r.structure.NumChains)
	for i := range r.descriptor.CustomChainDiffs {
		chainDiff, err := r.buffer.ReadBits(8)
		if err != nil {
			return err
		}
		r.descriptor.CustomChainDiffs[i] = int(chainDiff)
		r.descriptor.FrameDependencies.ChainDiffs[i] = int(chainDiff)
	}
	return nil
}

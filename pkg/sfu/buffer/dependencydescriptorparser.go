package buffer

import (
	"github.com/pion/rtp"

	"github.com/livekit/protocol/logger"

	dd "github.com/livemedia/sfu-selector/pkg/sfu/rtpextension/dependencydescriptor"
)

// DependencyDescriptorParser extracts and parses the DD header extension from
// incoming RTP packets and tracks the template dependency structure across
// packets. It is the parse front-end feeding selectors; it does not make
// forwarding decisions.
type DependencyDescriptorParser struct {
	ddExtID           uint8
	logger            logger.Logger
	structure         *dd.FrameDependencyStructure
	onMaxLayerChanged func(spatial, temporal int32)
	decodeTargetLayer []VideoLayer
}

func NewDependencyDescriptorParser(ddExtID uint8, logger logger.Logger, onMaxLayerChanged func(spatial, temporal int32)) *DependencyDescriptorParser {
	logger.Infow("creating dependency descriptor parser", "ddExtID", ddExtID)
	return &DependencyDescriptorParser{
		ddExtID:           ddExtID,
		logger:            logger,
		onMaxLayerChanged: onMaxLayerChanged,
	}
}

// Parse returns the parsed descriptor with the structure current for the
// packet's frame, or ErrDDExtensionNotFound when the packet carries no DD
// extension.
func (p *DependencyDescriptorParser) Parse(pkt *rtp.Packet) (*ExtDependencyDescriptor, VideoLayer, error) {
	videoLayer := InvalidLayer

	ddBuf := pkt.GetExtension(p.ddExtID)
	if ddBuf == nil {
		return nil, videoLayer, ErrDDExtensionNotFound
	}

	var descriptor dd.DependencyDescriptor
	if _, err := dd.NewDependencyDescriptorReader(ddBuf, p.structure, &descriptor).Parse(); err != nil {
		return nil, videoLayer, err
	}

	if descriptor.FrameDependencies != nil {
		videoLayer.Spatial = int32(descriptor.FrameDependencies.SpatialID)
		videoLayer.Temporal = int32(descriptor.FrameDependencies.TemporalID)
	}

	if descriptor.AttachedStructure != nil && !descriptor.FirstPacketInFrame {
		// a structure can only be attached to the first packet of a frame
		return nil, videoLayer, nil
	}

	structureUpdated := false
	if descriptor.AttachedStructure != nil {
		p.structure = descriptor.AttachedStructure
		structureUpdated = true
		p.updateDecodeTargetLayers()
	}

	if mask := descriptor.ActiveDecodeTargetsBitmask; mask != nil && p.onMaxLayerChanged != nil {
		var maxSpatial, maxTemporal int32
		for target, layer := range p.decodeTargetLayer {
			if *mask&(1<<target) != 0 {
				if maxSpatial < layer.Spatial {
					maxSpatial = layer.Spatial
				}
				if maxTemporal < layer.Temporal {
					maxTemporal = layer.Temporal
				}
			}
		}
		p.onMaxLayerChanged(maxSpatial, maxTemporal)
	}

	return &ExtDependencyDescriptor{
		Descriptor:       &descriptor,
		Structure:        p.structure,
		StructureUpdated: structureUpdated,
	}, videoLayer, nil
}

func (p *DependencyDescriptorParser) updateDecodeTargetLayers() {
	p.decodeTargetLayer = p.decodeTargetLayer[:0]
	for target := 0; target < p.structure.NumDecodeTargets; target++ {
		layer := VideoLayer{Spatial: 0, Temporal: 0}
		for _, t := range p.structure.Templates {
			if t.DecodeTargetIndications[target] != dd.DecodeTargetNotPresent {
				if layer.Spatial < int32(t.SpatialID) {
					layer.Spatial = int32(t.SpatialID)
				}
				if layer.Temporal < int32(t.TemporalID) {
					layer.Temporal = int32(t.TemporalID)
				}
			}
		}
		p.decodeTargetLayer = append(p.decodeTargetLayer, layer)
	}

	var maxSpatial, maxTemporal int32
	for _, layer := range p.decodeTargetLayer {
		if maxSpatial < layer.Spatial {
			maxSpatial = layer.Spatial
		}
		if maxTemporal < layer.Temporal {
			maxTemporal = layer.Temporal
		}
	}
	p.logger.Debugw("decode target layers updated", "maxSpatial", maxSpatial, "maxTemporal", maxTemporal)
	if p.onMaxLayerChanged != nil {
		p.onMaxLayerChanged(maxSpatial, maxTemporal)
	}
}

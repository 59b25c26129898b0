package videolayerselector

import (
	"github.com/livekit/protocol/logger"

	"github.com/livemedia/sfu-selector/pkg/sfu/buffer"
)

// Base carries the state shared by all selector implementations: the codec
// tag and the requested layer caps. Caps default to buffer.MaxLayerID, i.e.
// no restriction, and take effect on the next packet.
type Base struct {
	logger logger.Logger

	codec string

	spatialLayer  int32
	temporalLayer int32
}

func NewBase(codec string, logger logger.Logger) *Base {
	return &Base{
		logger:        logger,
		codec:         codec,
		spatialLayer:  buffer.MaxLayerID,
		temporalLayer: buffer.MaxLayerID,
	}
}

func (b *Base) Codec() string {
	return b.codec
}

func (b *Base) SelectSpatialLayer(id int32) {
	b.spatialLayer = id
}

func (b *Base) SelectTemporalLayer(id int32) {
	b.temporalLayer = id
}

func (b *Base) RequestedLayer() buffer.VideoLayer {
	return buffer.VideoLayer{Spatial: b.spatialLayer, Temporal: b.temporalLayer}
}

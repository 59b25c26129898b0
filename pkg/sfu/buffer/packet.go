package buffer

import (
	"github.com/pion/rtp"

	dd "github.com/livemedia/sfu-selector/pkg/sfu/rtpextension/dependencydescriptor"
)

// ExtDependencyDescriptor bundles a packet's parsed dependency descriptor
// with the template dependency structure current for its frame. The carrier
// owns both for the duration of one Select call; selectors read them and must
// not retain them.
type ExtDependencyDescriptor struct {
	Descriptor *dd.DependencyDescriptor

	// Structure is the TDS in effect for this frame, either attached to this
	// packet or carried over from an earlier one.
	Structure *dd.FrameDependencyStructure

	StructureUpdated bool
}

// ExtPacket is the per-packet carrier handed to selectors.
type ExtPacket struct {
	VideoLayer
	ExtSequenceNumber    uint64
	Packet               *rtp.Packet
	KeyFrame             bool
	DependencyDescriptor *ExtDependencyDescriptor
}

package dependencydescriptor

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDependencyDescriptorReader(t *testing.T) {
	// hex bytes from traffic capture, first packet attaches the structure
	hexes := []string{
		"c1017280081485214eafffaaaa863cf0430c10c302afc0aaa0063c00430010c002a000a80006000040001d954926e082b04a0941b820ac1282503157f974000ca864330e222222eca8655304224230eca877530077004200ef008601df010d",
		"86017340fc",
		"46017340fc",
		"c3017540fc",
		"88017640fc",
		"48017640fc",
		"c2017840fc",
	}

	var structure *FrameDependencyStructure
	for i, h := range hexes {
		buf, err := hex.DecodeString(h)
		require.NoError(t, err)

		var descriptor DependencyDescriptor
		_, err = NewDependencyDescriptorReader(buf, structure, &descriptor).Parse()
		require.NoError(t, err)
		require.NotNil(t, descriptor.FrameDependencies)

		if i == 0 {
			require.NotNil(t, descriptor.AttachedStructure)
			require.True(t, descriptor.FirstPacketInFrame)
			require.True(t, descriptor.LastPacketInFrame)
		}
		if descriptor.AttachedStructure != nil {
			structure = descriptor.AttachedStructure
			require.Positive(t, structure.NumDecodeTargets)
			require.NotEmpty(t, structure.Templates)
			for _, template := range structure.Templates {
				require.Len(t, template.DecodeTargetIndications, structure.NumDecodeTargets)
			}
		}
	}
}

func TestDependencyDescriptorReaderNoStructure(t *testing.T) {
	buf, err := hex.DecodeString("86017340fc")
	require.NoError(t, err)

	var descriptor DependencyDescriptor
	_, err = NewDependencyDescriptorReader(buf, nil, &descriptor).Parse()
	require.ErrorIs(t, err, ErrReaderNoStructure)
}

func TestTemplateByID(t *testing.T) {
	structure := &FrameDependencyStructure{
		StructureID: 62,
		Templates: []*FrameDependencyTemplate{
			{SpatialID: 0, TemporalID: 0},
			{SpatialID: 0, TemporalID: 1},
			{SpatialID: 1, TemporalID: 0},
		},
	}

	// ids wrap modulo MaxTemplates starting at StructureID
	require.Equal(t, structure.Templates[0], structure.TemplateByID(62))
	require.Equal(t, structure.Templates[1], structure.TemplateByID(63))
	require.Equal(t, structure.Templates[2], structure.TemplateByID(0))
	require.Nil(t, structure.TemplateByID(1))
}

package videolayerselector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForwardedFrames(t *testing.T) {
	f := NewForwardedFrames(128)

	require.False(t, f.Contains(10))

	f.Add(10)
	require.True(t, f.Contains(10))
	require.False(t, f.Contains(9))
	require.False(t, f.Contains(11))

	// gap frames are recorded as not forwarded
	f.Add(14)
	require.True(t, f.Contains(14))
	require.False(t, f.Contains(11))
	require.False(t, f.Contains(12))
	require.False(t, f.Contains(13))

	// late fill-in within the window
	f.Add(12)
	require.True(t, f.Contains(12))
	require.False(t, f.Contains(13))
}

func TestForwardedFramesWindow(t *testing.T) {
	f := NewForwardedFrames(128)

	f.Add(10)
	f.Add(11)

	// advance beyond the window, old entries age out
	f.Add(11 + 128)
	require.False(t, f.Contains(10))
	require.False(t, f.Contains(11))
	require.True(t, f.Contains(139))

	// outside the window, add is a no-op
	f.Add(11)
	require.False(t, f.Contains(11))
}

func TestForwardedFramesLargeJump(t *testing.T) {
	f := NewForwardedFrames(128)

	f.Add(10)
	f.Add(1_000_000)
	require.True(t, f.Contains(1_000_000))
	require.False(t, f.Contains(10))
	require.False(t, f.Contains(999_999))

	f.Add(1_000_002)
	require.True(t, f.Contains(1_000_002))
	require.False(t, f.Contains(1_000_001))
}

func TestForwardedFramesBeforeBase(t *testing.T) {
	f := NewForwardedFrames(128)

	f.Add(100)
	f.Add(99)
	require.False(t, f.Contains(99))
	require.True(t, f.Contains(100))
}

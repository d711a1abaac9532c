package visionhost

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessLauncherLaunchAndStop(t *testing.T) {
	handle, err := ProcessLauncher{}.Launch(context.Background(), "sleep", []string{"5"})
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.NoError(t, handle.Stop())
}

func TestProcessLauncherLaunchErrorsOnMissingBinary(t *testing.T) {
	_, err := ProcessLauncher{}.Launch(context.Background(), "definitely-not-a-real-binary", nil)
	assert.Error(t, err)
}

func TestSynthesizedCapturerDefaultsDimensions(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shot.png")
	w, h, err := SynthesizedCapturer{}.Capture(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 1024, img.Bounds().Dx())
}

func TestSynthesizedCapturerUsesConfiguredDimensions(t *testing.T) {
	out := filepath.Join(t.TempDir(), "shot.png")
	w, h, err := SynthesizedCapturer{Width: 100, Height: 50}.Capture(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)
}

func TestSynthesizedCapturerCreatesParentDirs(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "dir", "shot.png")
	_, _, err := SynthesizedCapturer{}.Capture(context.Background(), out)
	require.NoError(t, err)
	_, err = os.Stat(out)
	assert.NoError(t, err)
}

func TestAwaitReadyReturnsImmediatelyForZeroDelay(t *testing.T) {
	err := AwaitReady(context.Background(), 0)
	assert.NoError(t, err)
}

func TestAwaitReadyRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := AwaitReady(ctx, time.Second)
	assert.Error(t, err)
}

func TestAwaitReadyWaitsOutDelay(t *testing.T) {
	start := time.Now()
	err := AwaitReady(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

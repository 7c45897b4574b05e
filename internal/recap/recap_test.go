package recap

import (
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/webreplay/internal/executor"
)

func writePNG(t *testing.T, dir, name string, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestWriteBuildsOneFramePerStep(t *testing.T) {
	dir := t.TempDir()
	steps := []executor.StepResult{
		{Step: 1, ScreenshotAfter: writePNG(t, dir, "a.png", color.RGBA{200, 30, 30, 255})},
		{Step: 2, ScreenshotBefore: writePNG(t, dir, "b.png", color.RGBA{30, 200, 30, 255})},
		{Step: 3}, // no screenshot, skipped
	}

	out := filepath.Join(dir, "recap.gif")
	require.NoError(t, Write(out, steps, Options{MaxWidth: 32}))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
	assert.Equal(t, 32, g.Image[0].Bounds().Dx())
}

func TestWriteFailsWithoutScreenshots(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "recap.gif"), []executor.StepResult{{Step: 1}}, Options{})
	assert.Error(t, err)
}

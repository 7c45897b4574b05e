// Package recap renders a replay run as an animated GIF slideshow of the
// per-step screenshots, a quick visual artifact for sharing failed runs.
package recap

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"

	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/v0xg/webreplay/internal/executor"
)

// Options configures the slideshow.
type Options struct {
	MaxWidth  uint // output width, default 800
	HoldDelay int  // per-frame hold in 100ths of a second, default 120
}

// Write builds the GIF from each step's after-screenshot (falling back to the
// before-screenshot) and writes it to outputPath. Steps without screenshots
// are skipped; an entirely screenshot-less run produces no file.
func Write(outputPath string, steps []executor.StepResult, opts Options) error {
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}
	if opts.HoldDelay == 0 {
		opts.HoldDelay = 120
	}

	var frames []image.Image
	for _, step := range steps {
		path := step.ScreenshotAfter
		if path == "" {
			path = step.ScreenshotBefore
		}
		if path == "" {
			continue
		}
		img, err := loadImage(path)
		if err != nil {
			continue
		}
		frames = append(frames, img)
	}
	if len(frames) == 0 {
		return fmt.Errorf("no step screenshots to render")
	}

	bounds := frames[0].Bounds()
	aspect := float64(bounds.Dy()) / float64(bounds.Dx())
	height := uint(float64(opts.MaxWidth) * aspect)

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	palette := buildPalette(frames[0])
	for i, frame := range frames {
		resized := resize.Resize(opts.MaxWidth, height, frame, resize.Lanczos3)
		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		g.Image[i] = paletted
		g.Delay[i] = opts.HoldDelay
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create recap file: %w", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return fmt.Errorf("encode recap: %w", err)
	}
	return nil
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

// buildPalette derives a 256-color palette from the most frequent sampled
// colors of the reference frame, padded with grayscale.
func buildPalette(img image.Image) color.Palette {
	bounds := img.Bounds()
	counts := make(map[color.RGBA]int)

	// Sample every 4th pixel; screenshots are flat-colored enough.
	for y := bounds.Min.Y; y < bounds.Max.Y; y += 4 {
		for x := bounds.Min.X; x < bounds.Max.X; x += 4 {
			r, g, b, a := img.At(x, y).RGBA()
			c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
			counts[c]++
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	colors := make([]colorCount, 0, len(counts))
	for c, n := range counts {
		colors = append(colors, colorCount{c, n})
	}
	for i := 0; i < len(colors)-1; i++ {
		for j := i + 1; j < len(colors); j++ {
			if colors[j].count > colors[i].count {
				colors[i], colors[j] = colors[j], colors[i]
			}
		}
	}

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i].c)
	}
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}

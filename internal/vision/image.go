package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/nfnt/resize"
)

// maxUploadWidth bounds the screenshot size sent to the model. Full-resolution
// captures waste tokens without improving localization.
const maxUploadWidth = 1024

// prepared is a screenshot ready for upload, plus the factor needed to map
// the model's coordinates back to the original capture.
type prepared struct {
	png    []byte
	width  int
	height int
	scale  float64 // original = reported * scale
}

// prepareScreenshot downscales wide captures to maxUploadWidth and re-encodes
// as PNG. Captures at or below the limit pass through untouched.
func prepareScreenshot(screenshot []byte) (prepared, error) {
	img, _, err := image.Decode(bytes.NewReader(screenshot))
	if err != nil {
		return prepared{}, fmt.Errorf("decode screenshot: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxUploadWidth {
		return prepared{png: screenshot, width: w, height: h, scale: 1}, nil
	}

	scaled := resize.Resize(maxUploadWidth, 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return prepared{}, fmt.Errorf("encode scaled screenshot: %w", err)
	}

	sb := scaled.Bounds()
	return prepared{
		png:    buf.Bytes(),
		width:  sb.Dx(),
		height: sb.Dy(),
		scale:  float64(w) / float64(sb.Dx()),
	}, nil
}

// rescaleMatch maps the model's coordinates back into the original capture.
func rescaleMatch(m Match, p prepared) Match {
	m = clampMatch(m, p.width, p.height)
	if m.Found && p.scale != 1 {
		m.X *= p.scale
		m.Y *= p.scale
	}
	return m
}

func (p prepared) base64() string {
	return base64.StdEncoding.EncodeToString(p.png)
}

func (p prepared) dataURI() string {
	return "data:image/png;base64," + p.base64()
}

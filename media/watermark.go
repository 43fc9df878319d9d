package media

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	watermarkFontSize = 20.0
	watermarkMargin   = 10
	watermarkAlpha    = 128 // semi-transparent white
)

// Watermarker composites a fixed text label onto the bottom-right
// corner of an image.
type Watermarker struct {
	text string
	font *truetype.Font
}

// NewWatermarker parses the bundled font once. A parse failure leaves
// the font nil; Apply reports it per call so the caller can fall back.
func NewWatermarker(text string) *Watermarker {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return &Watermarker{text: text}
	}
	return &Watermarker{text: text, font: f}
}

// Apply returns a copy of img with the watermark label drawn in the
// bottom-right corner.
func (w *Watermarker) Apply(img image.Image) (image.Image, error) {
	if w.font == nil {
		return nil, fmt.Errorf("watermark font unavailable")
	}

	bounds := img.Bounds()
	result := image.NewNRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(w.font)
	c.SetFontSize(watermarkFontSize)
	c.SetClip(result.Bounds())
	c.SetDst(result)
	c.SetSrc(image.NewUniform(color.NRGBA{255, 255, 255, watermarkAlpha}))
	c.SetHinting(font.HintingFull)

	// rough advance-width estimate; exact measurement is not worth a
	// full shaping pass for a corner label
	textWidth := int(float64(len(w.text)) * watermarkFontSize * 0.6)

	x := bounds.Dx() - textWidth - watermarkMargin
	if x < watermarkMargin {
		x = watermarkMargin
	}
	y := bounds.Dy() - watermarkMargin
	if y < int(watermarkFontSize) {
		y = int(watermarkFontSize)
	}

	if _, err := c.DrawString(w.text, freetype.Pt(x, y)); err != nil {
		return nil, fmt.Errorf("failed to draw watermark text: %w", err)
	}

	return result, nil
}

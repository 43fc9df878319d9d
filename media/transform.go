package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Engine performs pure in-memory pixel transformations: decode, flatten,
// resize, watermark, encode. It does no I/O beyond the buffers it is given.
type Engine struct {
	watermarker *Watermarker
}

// NewEngine creates a transform engine. watermarkText is the label
// composited onto images when the watermark flag is set.
func NewEngine(watermarkText string) *Engine {
	return &Engine{watermarker: NewWatermarker(watermarkText)}
}

// Transform applies params to the source bytes and returns the encoded
// result plus metadata of both input and output.
func (e *Engine) Transform(src []byte, params ProcessingParams) (*TransformResult, error) {
	img, srcFormat, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	bounds := img.Bounds()
	source := ImageMetadata{
		Format: srcFormat,
		Mode:   imageMode(img),
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   int64(len(src)),
	}
	if source.Width <= 0 || source.Height <= 0 {
		return nil, &TransformError{Stage: "decode", Err: fmt.Errorf("invalid source dimensions %dx%d", source.Width, source.Height)}
	}

	// flatten alpha/palette sources onto an opaque white background
	// before encoding to formats without transparency. this is a
	// deliberate lossy policy, matching what users expect from a
	// JPEG/BMP export.
	if !params.TargetFormat.SupportsTransparency() && hasAlphaOrPalette(img) {
		img = flattenOnWhite(img)
	}

	if params.ResizeWidth > 0 || params.ResizeHeight > 0 {
		newWidth, newHeight := targetSize(source.Width, source.Height, params.ResizeWidth, params.ResizeHeight)
		if newWidth <= 0 || newHeight <= 0 {
			return nil, &TransformError{Stage: "resize", Err: fmt.Errorf("resize to %dx%d produces an empty image", newWidth, newHeight)}
		}
		img = imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
	}

	if params.Watermark {
		watermarked, err := e.watermarker.Apply(img)
		if err != nil {
			// best effort: a watermark failure never aborts the
			// pipeline, the unwatermarked image is used instead
			log.Printf("media.transform: watermark failed, continuing without: %v", err)
		} else {
			img = watermarked
		}
	}

	data, err := encode(img, params.TargetFormat, params.Quality)
	if err != nil {
		return nil, err
	}

	outBounds := img.Bounds()
	outMode := imageMode(img)
	if !params.TargetFormat.SupportsTransparency() {
		outMode = "RGB"
	}
	output := ImageMetadata{
		Format: string(params.TargetFormat),
		Mode:   outMode,
		Width:  outBounds.Dx(),
		Height: outBounds.Dy(),
		Size:   int64(len(data)),
	}

	return &TransformResult{Data: data, Source: source, Output: output}, nil
}

// targetSize resolves the requested resize box. with both axes given the
// box is used exactly (aspect ratio is the caller's responsibility);
// with one axis given the other preserves the original aspect ratio,
// rounded to the nearest pixel.
func targetSize(origWidth, origHeight, reqWidth, reqHeight int) (int, int) {
	switch {
	case reqWidth > 0 && reqHeight > 0:
		return reqWidth, reqHeight
	case reqWidth > 0:
		h := int(math.Round(float64(origHeight) * float64(reqWidth) / float64(origWidth)))
		return reqWidth, h
	case reqHeight > 0:
		w := int(math.Round(float64(origWidth) * float64(reqHeight) / float64(origHeight)))
		return w, reqHeight
	default:
		return origWidth, origHeight
	}
}

// flattenOnWhite composites img over an opaque white background.
func flattenOnWhite(img image.Image) image.Image {
	bounds := img.Bounds()
	background := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.Overlay(background, img, image.Pt(0, 0), 1.0)
}

// encode serialises img to the target format. quality applies only to
// lossy encoders and is ignored, not rejected, for lossless ones.
func encode(img image.Image, format TargetFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case FormatJPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF)
	case FormatTIFF:
		err = imaging.Encode(&buf, img, imaging.TIFF)
	case FormatBMP:
		err = imaging.Encode(&buf, img, imaging.BMP)
	case FormatWEBP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		return nil, &UnsupportedFormatError{Format: string(format)}
	}

	if err != nil {
		return nil, &TransformError{Stage: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

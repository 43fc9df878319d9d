package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func opaquePNG(t *testing.T, width, height int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	return pngBytes(t, img)
}

func transparentPNG(t *testing.T, width, height int) []byte {
	return pngBytes(t, image.NewNRGBA(image.Rect(0, 0, width, height)))
}

func TestTransformPNGToJPEG(t *testing.T) {
	engine := NewEngine("test")
	src := opaquePNG(t, 100, 80)

	result, err := engine.Transform(src, ProcessingParams{TargetFormat: FormatJPEG, Quality: 80})
	require.NoError(t, err)

	assert.Equal(t, "png", result.Source.Format)
	assert.Equal(t, "jpeg", result.Output.Format)
	assert.Equal(t, 100, result.Source.Width)
	assert.Equal(t, 80, result.Source.Height)
	assert.Equal(t, 100, result.Output.Width)
	assert.Equal(t, 80, result.Output.Height)
	assert.Equal(t, "RGB", result.Output.Mode)
	assert.Equal(t, int64(len(src)), result.Source.Size)
	assert.Equal(t, int64(len(result.Data)), result.Output.Size)

	decoded, format, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 100, decoded.Bounds().Dx())
}

func TestTransformFlattensTransparencyForJPEG(t *testing.T) {
	engine := NewEngine("test")
	src := transparentPNG(t, 20, 20)

	result, err := engine.Transform(src, ProcessingParams{TargetFormat: FormatJPEG, Quality: 95})
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)

	// fully transparent source must come out opaque white, not black
	r, g, b, _ := decoded.At(10, 10).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestTransformKeepsAlphaForPNG(t *testing.T) {
	engine := NewEngine("test")
	src := transparentPNG(t, 20, 20)

	result, err := engine.Transform(src, ProcessingParams{TargetFormat: FormatPNG, Quality: 80})
	require.NoError(t, err)

	decoded, _, err := image.Decode(bytes.NewReader(result.Data))
	require.NoError(t, err)
	_, _, _, a := decoded.At(10, 10).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestTransformResizeExactBox(t *testing.T) {
	engine := NewEngine("test")
	src := opaquePNG(t, 100, 80)

	result, err := engine.Transform(src, ProcessingParams{
		TargetFormat: FormatPNG,
		Quality:      80,
		ResizeWidth:  30,
		ResizeHeight: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, 30, result.Output.Width)
	assert.Equal(t, 60, result.Output.Height)
}

func TestTransformResizePreservesAspectRatio(t *testing.T) {
	engine := NewEngine("test")
	src := opaquePNG(t, 100, 80)

	result, err := engine.Transform(src, ProcessingParams{
		TargetFormat: FormatPNG,
		Quality:      80,
		ResizeWidth:  50,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, result.Output.Width)
	assert.Equal(t, 40, result.Output.Height) // round(80 * 50/100)

	result, err = engine.Transform(src, ProcessingParams{
		TargetFormat: FormatPNG,
		Quality:      80,
		ResizeHeight: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 25, result.Output.Width) // round(100 * 20/80)
	assert.Equal(t, 20, result.Output.Height)
}

func TestTransformRejectsZeroAreaResize(t *testing.T) {
	engine := NewEngine("test")
	src := opaquePNG(t, 1000, 1)

	_, err := engine.Transform(src, ProcessingParams{
		TargetFormat: FormatPNG,
		Quality:      80,
		ResizeWidth:  100, // height rounds to 0
	})
	var transformErr *TransformError
	require.True(t, errors.As(err, &transformErr))
	assert.Equal(t, "resize", transformErr.Stage)
}

func TestTransformCorruptSource(t *testing.T) {
	engine := NewEngine("test")

	_, err := engine.Transform([]byte("\x89PNG\r\n\x1a\nnot really a png"), ProcessingParams{
		TargetFormat: FormatJPEG,
		Quality:      80,
	})
	var decodeErr *DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestTransformWatermarkNeverAborts(t *testing.T) {
	engine := NewEngine("test watermark")
	src := opaquePNG(t, 200, 100)

	result, err := engine.Transform(src, ProcessingParams{
		TargetFormat: FormatPNG,
		Quality:      80,
		Watermark:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Output.Width)

	// tiny image: the label cannot fit, the pipeline must still succeed
	tiny := opaquePNG(t, 4, 4)
	result, err = engine.Transform(tiny, ProcessingParams{
		TargetFormat: FormatPNG,
		Quality:      80,
		Watermark:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Output.Width)
}

func TestTransformQualityIgnoredForLossless(t *testing.T) {
	engine := NewEngine("test")
	src := opaquePNG(t, 10, 10)

	// quality is passed but must not be rejected for PNG
	result, err := engine.Transform(src, ProcessingParams{TargetFormat: FormatPNG, Quality: 1})
	require.NoError(t, err)
	assert.Equal(t, "png", result.Output.Format)
}

func TestParseTargetFormat(t *testing.T) {
	for input, want := range map[string]TargetFormat{
		"jpeg": FormatJPEG,
		"JPG":  FormatJPEG,
		"png":  FormatPNG,
		"tif":  FormatTIFF,
		"WEBP": FormatWEBP,
	} {
		got, err := ParseTargetFormat(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseTargetFormat("svg")
	var unsupportedErr *UnsupportedFormatError
	assert.True(t, errors.As(err, &unsupportedErr))
}

func TestProcessingParamsValidate(t *testing.T) {
	valid := ProcessingParams{TargetFormat: FormatJPEG, Quality: 80}
	assert.NoError(t, valid.Validate())

	assert.Error(t, ProcessingParams{TargetFormat: FormatJPEG, Quality: 0}.Validate())
	assert.Error(t, ProcessingParams{TargetFormat: FormatJPEG, Quality: 101}.Validate())
	assert.Error(t, ProcessingParams{Quality: 80}.Validate())
	assert.Error(t, ProcessingParams{TargetFormat: "heic", Quality: 80}.Validate())
}

func TestTargetSize(t *testing.T) {
	w, h := targetSize(1000, 800, 500, 0)
	assert.Equal(t, 500, w)
	assert.Equal(t, 400, h)

	w, h = targetSize(1000, 800, 0, 400)
	assert.Equal(t, 500, w)
	assert.Equal(t, 400, h)

	w, h = targetSize(1000, 800, 320, 240)
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, h)

	w, h = targetSize(1000, 800, 0, 0)
	assert.Equal(t, 1000, w)
	assert.Equal(t, 800, h)

	// rounding to nearest pixel
	w, h = targetSize(3, 2, 2, 0)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h) // round(2 * 2/3) = round(1.33)
}

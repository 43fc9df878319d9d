package media

import (
	"bytes"
	"image"
	"image/color"

	// register decoders for probing and transforming
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"
)

// Probe decodes just enough of data to describe it.
func Probe(data []byte) (ImageMetadata, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageMetadata{}, &DecodeError{Err: err}
	}
	return ImageMetadata{
		Format: format,
		Mode:   colorMode(cfg.ColorModel),
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   int64(len(data)),
	}, nil
}

// colorMode maps a color model to a compact mode label.
func colorMode(m color.Model) string {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return "L"
	case color.CMYKModel:
		return "CMYK"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return "RGBA"
	case color.AlphaModel, color.Alpha16Model:
		return "LA"
	case color.YCbCrModel:
		return "RGB"
	}
	if _, ok := m.(color.Palette); ok {
		return "P"
	}
	return "RGB"
}

// imageMode labels a decoded image the same way Probe does.
func imageMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.CMYK:
		return "CMYK"
	case *image.Paletted:
		return "P"
	case *image.YCbCr:
		return "RGB"
	case *image.Alpha, *image.Alpha16:
		return "LA"
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64:
		return "RGBA"
	}
	return colorMode(img.ColorModel())
}

// hasAlphaOrPalette reports whether encoding img to an opaque-only
// format would lose a transparency or palette channel.
func hasAlphaOrPalette(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64,
		*image.Alpha, *image.Alpha16, *image.Paletted:
		return true
	}
	return false
}

// ExifInfo is the subset of EXIF data retained as record metadata.
type ExifInfo struct {
	CameraMake  *string
	CameraModel *string
	TakenAt     *int64
}

// ExtractExif pulls camera make/model and capture time from the source
// bytes. Missing or unparsable EXIF is normal (PNG, stripped JPEG) and
// yields nil.
func ExtractExif(data []byte) *ExifInfo {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil || exifData == nil {
		return nil
	}

	info := &ExifInfo{
		CameraMake:  exifString(exifData, exif.Make),
		CameraModel: exifString(exifData, exif.Model),
	}
	if t, err := exifData.DateTime(); err == nil {
		unix := t.Unix()
		info.TakenAt = &unix
	}

	if info.CameraMake == nil && info.CameraModel == nil && info.TakenAt == nil {
		return nil
	}
	return info
}

// helper to safely get a string tag
func exifString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil || val == "" {
		return nil
	}
	return &val
}

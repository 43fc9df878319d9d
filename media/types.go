package media

import (
	"fmt"
	"strings"
)

// Kind partitions storage into namespaces so cleanup policies can
// target each independently.
type Kind string

const (
	KindUpload    Kind = "uploads"
	KindConverted Kind = "converted"
	KindTemp      Kind = "temp"
)

// TargetFormat is an output encoding supported by the transform engine.
type TargetFormat string

const (
	FormatJPEG TargetFormat = "jpeg"
	FormatPNG  TargetFormat = "png"
	FormatWEBP TargetFormat = "webp"
	FormatBMP  TargetFormat = "bmp"
	FormatTIFF TargetFormat = "tiff"
	FormatGIF  TargetFormat = "gif"
)

// ParseTargetFormat normalises a user-supplied format name.
func ParseTargetFormat(s string) (TargetFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWEBP, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	case "gif":
		return FormatGIF, nil
	default:
		return "", &UnsupportedFormatError{Format: s}
	}
}

// SupportsTransparency reports whether the encoder keeps an alpha
// channel. Sources with alpha are flattened onto white before being
// encoded to a format that does not.
func (f TargetFormat) SupportsTransparency() bool {
	switch f {
	case FormatJPEG, FormatBMP:
		return false
	default:
		return true
	}
}

// Lossy reports whether the quality parameter applies to this format.
func (f TargetFormat) Lossy() bool {
	return f == FormatJPEG || f == FormatWEBP
}

// Extension returns the canonical file extension, without a dot.
func (f TargetFormat) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// MimeType returns the content type for HTTP responses.
func (f TargetFormat) MimeType() string {
	return "image/" + string(f)
}

// ProcessingParams describe one requested transformation. They are
// immutable per request.
type ProcessingParams struct {
	TargetFormat TargetFormat
	Quality      int // 1-100, meaningful only for lossy formats
	ResizeWidth  int // 0 means no constraint on that axis
	ResizeHeight int
	Watermark    bool
}

// Validate rejects bad parameters before any transform work begins.
func (p ProcessingParams) Validate() error {
	if p.TargetFormat == "" {
		return fmt.Errorf("target format must be set")
	}
	if _, err := ParseTargetFormat(string(p.TargetFormat)); err != nil {
		return err
	}
	if p.Quality < 1 || p.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", p.Quality)
	}
	if p.ResizeWidth < 0 || p.ResizeHeight < 0 {
		return fmt.Errorf("resize dimensions must be positive")
	}
	return nil
}

// ImageMetadata describes one image buffer. Produced twice per
// conversion (source and result), never mutated after creation.
type ImageMetadata struct {
	Format string `json:"format"`
	Mode   string `json:"mode"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
}

// TransformResult is the output of one successful transform.
type TransformResult struct {
	Data   []byte
	Source ImageMetadata
	Output ImageMetadata
}

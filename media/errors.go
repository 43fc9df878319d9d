package media

import "fmt"

// DecodeError indicates the source bytes could not be decoded as a
// raster image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode source image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFormatError indicates an unknown or unencodable target format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported target format %q", e.Format)
}

// TransformError indicates a failure in the resize or encode stages.
type TransformError struct {
	Stage string
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed at %s stage: %v", e.Stage, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

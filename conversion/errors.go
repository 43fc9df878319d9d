package conversion

import "fmt"

// ValidationError rejects a request before any storage or transform
// work begins. No record is written.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Detail)
}

// PermissionDeniedError rejects a request at the permission gate, with
// a human-readable reason. No record is written.
type PermissionDeniedError struct {
	Reason string
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

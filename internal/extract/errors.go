package extract

import "fmt"

// ExtractionError is reported as an error event when a single Process call
// fails. It is not fatal: the buffer is kept and later calls continue.
type ExtractionError struct {
	BufferLen int
	Cause     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed at %d bytes: %v", e.BufferLen, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

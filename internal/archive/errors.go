package archive

import (
	"fmt"

	"github.com/teovin/scoop/internal/domain"
)

// EncodeError reports an attempt to archive a capture that is not in a
// terminal, archivable state.
type EncodeError struct {
	State domain.State
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("archive: cannot encode capture in state %s", e.State)
}

// DecodeError reports a malformed or unsupported container.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("archive: decode: %s: %v", e.Reason, e.Err)
	}
	return "archive: decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

package sonara

import (
	"errors"
	"fmt"
)

// Sentinel errors for history persistence and session guarding.
var (
	// ErrHistoryNotFound is returned by HistoryRepository.Load when no
	// document has been saved yet. Callers treat it as an empty history.
	ErrHistoryNotFound = errors.New("history document not found")

	// ErrSessionBusy rejects a submission while another exchange is still
	// in flight. The caller may resubmit once the turn finishes.
	ErrSessionBusy = errors.New("completion request already in flight")

	// ErrEmptyInput rejects empty or whitespace-only submissions.
	ErrEmptyInput = errors.New("input text is empty")
)

// CompletionErrorKind classifies how a completion attempt failed.
type CompletionErrorKind string

const (
	// CompletionErrorTransport means no usable response was received.
	CompletionErrorTransport CompletionErrorKind = "transport"
	// CompletionErrorDecode means the response body did not parse as the
	// expected structure.
	CompletionErrorDecode CompletionErrorKind = "decode"
	// CompletionErrorEmpty means the response parsed but carried no choices.
	CompletionErrorEmpty CompletionErrorKind = "empty_response"
)

// CompletionError describes a failed completion attempt. All kinds are
// terminal for the turn; the session makes no retry.
type CompletionError struct {
	Kind CompletionErrorKind
	// RawBody holds the response body for diagnostics. It is never
	// surfaced as conversation content.
	RawBody []byte
	Err     error
}

func (e *CompletionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("completion failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("completion failed (%s)", e.Kind)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// CompletionErrorOf extracts a *CompletionError from err, or nil when the
// failure originated elsewhere.
func CompletionErrorOf(err error) *CompletionError {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

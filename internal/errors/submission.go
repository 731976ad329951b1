package errors

import "errors"

// SubmissionError is the rejection of the external send operation. Message is
// shown to the visitor verbatim; Cause is kept for logs only.
type SubmissionError struct {
	Message string
	Cause   error
}

// NewSubmissionError creates a SubmissionError with a visitor-facing message.
func NewSubmissionError(message string, cause error) *SubmissionError {
	return &SubmissionError{Message: message, Cause: cause}
}

// Error returns the visitor-facing message.
func (e *SubmissionError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// UserMessage extracts the text to show a visitor for a failed send. Errors
// that are not SubmissionErrors fall back to their own Error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SubmissionError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}

	return err.Error()
}

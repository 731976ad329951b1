package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewNetworkError(ErrCodeSendFailed, "post to form endpoint", cause).WithComponent("sender")

	assert.Equal(t, "[ERR_SEND_FAILED] component:sender post to form endpoint: dial tcp: refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestAppError_Is(t *testing.T) {
	wrapped := fmt.Errorf("change field: %w", ErrComponentClosed)
	assert.True(t, errors.Is(wrapped, ErrComponentClosed))

	other := NewValidationError(ErrCodeUnknownField, "unknown field")
	assert.False(t, errors.Is(other, ErrComponentClosed))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewValidationError(ErrCodeUnknownField, "unknown field").
		WithContext("field", "phone")

	assert.Equal(t, "phone", err.Context["field"])
	assert.True(t, IsValidation(err))
	assert.True(t, IsRecoverable(err))
}

func TestIsRecoverable(t *testing.T) {
	assert.False(t, IsRecoverable(NewConfigError(ErrCodeConfigInvalid, "bad", nil)))
	assert.True(t, IsRecoverable(NewSubmissionError("Network error", nil)))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	cause := errors.New("status 502")
	wrapped := fmt.Errorf("send: %w", NewSubmissionError("Network error", cause))

	assert.Equal(t, "Network error", UserMessage(wrapped))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
	assert.Equal(t, "", UserMessage(nil))

	var se *SubmissionError
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, cause, errors.Unwrap(se))
}

func TestEnhancedError(t *testing.T) {
	original := errors.New("listen tcp :8080: bind: address already in use")
	err := NewEnhancedError("Failed to start server on port 8080", original, ServerStartError(original, 8080))

	assert.Contains(t, err.Error(), "Port already in use")
	assert.Contains(t, err.Error(), "contactform serve --port 8081")
	assert.Equal(t, original, errors.Unwrap(err))
}

func TestConfigurationError(t *testing.T) {
	suggestions := ConfigurationError("recaptcha.site_key is required", ".contactform.yml")

	titles := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		titles = append(titles, s.Title)
	}
	assert.Contains(t, titles, "Set the reCAPTCHA site key")
	assert.NotContains(t, titles, "Fix YAML syntax")
}

func TestFormatSuggestions_Empty(t *testing.T) {
	assert.Equal(t, "title", FormatSuggestions("title", nil))
}

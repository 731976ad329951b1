// Package contact holds the contact form component: its state, the handlers
// that mutate it and the asynchronous submission flow.
//
// A Component never sends data on submit. Submit asks the injected Challenge
// to execute; the challenge later reports a token through ChallengeChanged,
// and only then is the Sender invoked. Outcomes are surfaced through the
// Notifier and the challenge is reset so the visitor can try again.
package contact

import (
	"fmt"

	apperrors "github.com/conneroisu/contactform/internal/errors"
)

// HasContentClass is the label class toggled on non-empty fields.
const HasContentClass = "has-content"

// Field identifies one of the form inputs.
type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldMessage Field = "message"
)

// Fields lists the inputs in render order.
var Fields = []Field{FieldName, FieldEmail, FieldMessage}

// ParseField resolves an input identifier.
func ParseField(id string) (Field, error) {
	switch f := Field(id); f {
	case FieldName, FieldEmail, FieldMessage:
		return f, nil
	default:
		return "", apperrors.NewValidationError(apperrors.ErrCodeUnknownField, fmt.Sprintf("unknown form field %q", id)).
			WithContext("field", id)
	}
}

func (f Field) bit() Decoration {
	switch f {
	case FieldName:
		return 1 << 0
	case FieldEmail:
		return 1 << 1
	case FieldMessage:
		return 1 << 2
	default:
		return 0
	}
}

// Decoration records which labels carry HasContentClass.
type Decoration uint8

// Decorate returns a Decoration with the labels of fields set.
func Decorate(fields ...Field) Decoration {
	var d Decoration
	for _, f := range fields {
		d = d.set(f, true)
	}
	return d
}

// Has reports whether the label for f is decorated.
func (d Decoration) Has(f Field) bool {
	b := f.bit()
	return b != 0 && d&b != 0
}

func (d Decoration) set(f Field, on bool) Decoration {
	if on {
		return d | f.bit()
	}
	return d &^ f.bit()
}

// State is the form's data. The zero value is an empty, idle form.
type State struct {
	Name          string
	Email         string
	Message       string
	IsFormLoading bool
	Labels        Decoration
}

// Value returns the stored value for f.
func (s State) Value(f Field) string {
	switch f {
	case FieldName:
		return s.Name
	case FieldEmail:
		return s.Email
	case FieldMessage:
		return s.Message
	default:
		return ""
	}
}

// HasContent reports whether the label for f carries HasContentClass.
func (s State) HasContent(f Field) bool {
	return s.Labels.Has(f)
}

// Submission bundles the current fields with a challenge token.
func (s State) Submission(token string) Submission {
	return Submission{
		Name:    s.Name,
		Email:   s.Email,
		Message: s.Message,
		Token:   token,
	}
}

func (s State) withField(f Field, value string) State {
	switch f {
	case FieldName:
		s.Name = value
	case FieldEmail:
		s.Email = value
	case FieldMessage:
		s.Message = value
	}
	s.Labels = s.Labels.set(f, value != "")
	return s
}

func (s State) sending() State {
	s.IsFormLoading = true
	return s
}

func (s State) settled() State {
	s.IsFormLoading = false
	return s
}

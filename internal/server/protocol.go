package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/conneroisu/contactform/internal/contact"
	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/renderer"
)

// Client message types.
const (
	MsgInput     = "input"
	MsgSubmit    = "submit"
	MsgChallenge = "challenge"
	MsgDismiss   = "dismiss"
)

// ClientMessage is one event forwarded by the page script.
type ClientMessage struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
	Value string `json:"value,omitempty"`
	// Token is null while the widget has no verdict.
	Token *string `json:"token,omitempty"`
	ID    string  `json:"id,omitempty"`
}

// ClassPatch toggles a class on the element with id Target.
type ClassPatch struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Class  string `json:"class"`
	On     bool   `json:"on"`
}

// AttrPatch toggles a boolean attribute on the element with id Target.
type AttrPatch struct {
	Type   string `json:"type"`
	Target string `json:"target"`
	Name   string `json:"name"`
	On     bool   `json:"on"`
}

// HTMLPatch replaces the contents of the element with id Target.
type HTMLPatch struct {
	Type    string `json:"type"`
	Target  string `json:"target"`
	Content string `json:"content"`
}

// ErrorMessage reports a rejected client message. The session stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func decodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return msg, apperrors.NewValidationError(apperrors.ErrCodeInvalidMessage,
			fmt.Sprintf("malformed message: %v", err))
	}

	switch msg.Type {
	case MsgInput:
		if msg.Field == "" {
			return msg, apperrors.NewValidationError(apperrors.ErrCodeInvalidMessage, "input message requires a field")
		}
	case MsgDismiss:
		if msg.ID == "" {
			return msg, apperrors.NewValidationError(apperrors.ErrCodeInvalidMessage, "dismiss message requires an id")
		}
	case MsgSubmit, MsgChallenge:
	default:
		return msg, apperrors.NewValidationError(apperrors.ErrCodeInvalidMessage,
			fmt.Sprintf("unknown message type %q", msg.Type))
	}

	return msg, nil
}

// diffState lists the patches that move a page rendered for prev to next.
func diffState(prev, next contact.State) []any {
	var patches []any
	for _, f := range contact.Fields {
		if on := next.HasContent(f); on != prev.HasContent(f) {
			patches = append(patches, labelPatch(f, on))
		}
	}
	if next.IsFormLoading != prev.IsFormLoading {
		patches = append(patches, disabledPatch(next.IsFormLoading))
	}
	return patches
}

// snapshot lists the patches that bring a page in line with s regardless of
// what an earlier session left in it.
func snapshot(s contact.State) []any {
	patches := make([]any, 0, len(contact.Fields)+1)
	for _, f := range contact.Fields {
		patches = append(patches, labelPatch(f, s.HasContent(f)))
	}
	return append(patches, disabledPatch(s.IsFormLoading))
}

func labelPatch(f contact.Field, on bool) ClassPatch {
	return ClassPatch{
		Type:   "class",
		Target: renderer.LabelID(f),
		Class:  contact.HasContentClass,
		On:     on,
	}
}

func disabledPatch(on bool) AttrPatch {
	return AttrPatch{
		Type:   "attr",
		Target: renderer.SendButtonID,
		Name:   "disabled",
		On:     on,
	}
}

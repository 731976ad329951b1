// Package challenge drives the browser-side invisible reCAPTCHA widget from
// the server. The widget lives in the page; this side only issues commands.
package challenge

import (
	"context"

	"github.com/conneroisu/contactform/internal/contact"
	apperrors "github.com/conneroisu/contactform/internal/errors"
)

// Action is a command understood by the browser widget.
type Action string

const (
	ActionExecute Action = "execute"
	ActionReset   Action = "reset"
)

// Command is the wire message sent to the browser.
type Command struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// Commander delivers a command to the page owning the widget.
type Commander interface {
	Command(ctx context.Context, cmd Command) error
}

// CommanderFunc adapts a function to Commander.
type CommanderFunc func(ctx context.Context, cmd Command) error

// Command calls f.
func (f CommanderFunc) Command(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}

// Remote implements contact.Challenge for a widget rendered in a browser.
type Remote struct {
	siteKey   string
	commander Commander
}

var _ contact.Challenge = (*Remote)(nil)

// NewRemote binds a widget configured with siteKey to commander.
func NewRemote(siteKey string, commander Commander) (*Remote, error) {
	if siteKey == "" {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "challenge site key is required", nil)
	}
	if commander == nil {
		return nil, apperrors.NewInternalError(apperrors.ErrCodeChallenge, "challenge commander is required", nil)
	}
	return &Remote{siteKey: siteKey, commander: commander}, nil
}

// SiteKey returns the public key the widget is rendered with.
func (r *Remote) SiteKey() string {
	return r.siteKey
}

// Execute asks the widget to run its challenge. The verdict arrives later as
// a separate challenge message from the page.
func (r *Remote) Execute(ctx context.Context) error {
	return r.send(ctx, ActionExecute)
}

// Reset returns the widget to its unresolved state so a fresh token is
// needed for the next send.
func (r *Remote) Reset(ctx context.Context) error {
	return r.send(ctx, ActionReset)
}

func (r *Remote) send(ctx context.Context, action Action) error {
	if err := r.commander.Command(ctx, Command{Type: "challenge", Action: action}); err != nil {
		return apperrors.NewNetworkError(apperrors.ErrCodeChallenge, "deliver challenge "+string(action), err)
	}
	return nil
}

package contact

import (
	"context"

	"github.com/conneroisu/contactform/internal/toast"
)

//go:generate mockgen -destination=mocks/mocks.go -package=mocks github.com/conneroisu/contactform/internal/contact Challenge,Sender,Notifier

// Submission is what the Sender receives once the challenge passes.
type Submission struct {
	Name    string
	Email   string
	Message string
	Token   string
}

// Challenge is the handle to the embedded bot-verification widget.
type Challenge interface {
	// Execute starts verification. The outcome arrives later through
	// Component.ChallengeChanged.
	Execute(ctx context.Context) error
	// Reset clears the widget so another token can be issued.
	Reset(ctx context.Context) error
}

// Sender delivers a submission. It resolves with a visitor-facing success
// message or fails with an error whose message is shown to the visitor.
//
// Send must return promptly once ctx is cancelled. Component.Close waits
// only Options.CloseWait for a send that does not, then abandons it.
type Sender interface {
	Send(ctx context.Context, sub Submission) (string, error)
}

// Notifier presents transient outcome banners.
type Notifier interface {
	Notify(text string, kind toast.Kind) toast.Toast
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, sub Submission) (string, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, sub Submission) (string, error) {
	return f(ctx, sub)
}

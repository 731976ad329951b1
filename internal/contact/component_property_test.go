//go:build property
// +build property

package contact

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/contactform/internal/toast"
)

type nopChallenge struct{ executed int }

func (c *nopChallenge) Execute(context.Context) error { c.executed++; return nil }
func (c *nopChallenge) Reset(context.Context) error   { return nil }

type panicSender struct{}

func (panicSender) Send(context.Context, Submission) (string, error) {
	panic("send must not be reached from field changes or submit")
}

type nopNotifier struct{}

func (nopNotifier) Notify(text string, kind toast.Kind) toast.Toast {
	return toast.Toast{Text: text, Kind: kind}
}

// TestFieldChangeProperties checks that after any sequence of field changes
// each field holds the last value written to it and is decorated exactly when
// that value is non-empty.
func TestFieldChangeProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("last write wins and decoration tracks emptiness", prop.ForAll(
		func(fieldIdx []int, values []string) bool {
			n := len(fieldIdx)
			if len(values) < n {
				n = len(values)
			}

			c, err := New(context.Background(), Options{
				Sender:    panicSender{},
				Challenge: &nopChallenge{},
				Notifier:  nopNotifier{},
			})
			if err != nil {
				return false
			}
			defer c.Close()

			want := map[Field]string{}
			for i := 0; i < n; i++ {
				f := Fields[fieldIdx[i]]
				if err := c.ChangeField(context.Background(), string(f), values[i]); err != nil {
					return false
				}
				want[f] = values[i]
			}

			s, err := c.State(context.Background())
			if err != nil {
				return false
			}
			for _, f := range Fields {
				if s.Value(f) != want[f] {
					return false
				}
				if s.HasContent(f) != (want[f] != "") {
					return false
				}
			}
			return !s.IsFormLoading
		},
		gen.SliceOf(gen.IntRange(0, len(Fields)-1)),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("submit executes the challenge and never sends", prop.ForAll(
		func(submits int) bool {
			ch := &nopChallenge{}
			c, err := New(context.Background(), Options{
				Sender:    panicSender{},
				Challenge: ch,
				Notifier:  nopNotifier{},
			})
			if err != nil {
				return false
			}
			defer c.Close()

			for i := 0; i < submits; i++ {
				if err := c.Submit(context.Background()); err != nil {
					return false
				}
			}
			return ch.executed == submits
		},
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}

package renderer

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// ChallengeScriptURL loads the widget API with explicit rendering so the
// page script controls when it is instantiated.
const ChallengeScriptURL = "https://www.google.com/recaptcha/api.js?onload=contactformChallengeReady&render=explicit"

// PageProps configures the full document.
type PageProps struct {
	Title     string
	ScriptURL string
	// Live disables the live session script for static renders.
	Live bool
}

// Page wraps body in a complete HTML document.
func Page(p PageProps, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := p.Title
		if title == "" {
			title = "Contact"
		}
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head>`+
			`<meta charset="utf-8"/>`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"/>`+
			`<title>%s</title></head><body>`, templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		if p.Live {
			script := p.ScriptURL
			if script == "" {
				script = "/static/contact.js"
			}
			if _, err := fmt.Fprintf(w, `<script src="%s" defer></script><script src="%s" async defer></script>`,
				templ.EscapeString(script), templ.EscapeString(ChallengeScriptURL)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

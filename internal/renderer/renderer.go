// Package renderer produces the contact card markup as templ components.
//
// Element ids here are the targets of live-session patches: label-<field>,
// send-button, toast-container and social-links.
package renderer

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/conneroisu/contactform/internal/contact"
	"github.com/conneroisu/contactform/internal/profile"
	"github.com/conneroisu/contactform/internal/toast"
)

// Patch targets.
const (
	SendButtonID      = "send-button"
	ToastContainerID  = "toast-container"
	SocialContainerID = "social-links"
	ChallengeID       = "recaptcha"
)

// LabelID is the id of the label decorated for field f.
func LabelID(f contact.Field) string {
	return "label-" + string(f)
}

// Props is everything the contact body needs to render.
type Props struct {
	SiteKey  string
	Social   []profile.SocialLink
	State    contact.State
	Toasts   []toast.Toast
	Position toast.Position
}

type fieldSpec struct {
	field    contact.Field
	label    string
	textarea bool
	kind     string
}

var formFields = []fieldSpec{
	{field: contact.FieldName, label: "What's your name?", kind: "text"},
	{field: contact.FieldEmail, label: "What's your email?", kind: "email"},
	{field: contact.FieldMessage, label: "Please, explain yourself:", textarea: true},
}

// ContactBody composes the challenge widget, toast container, social block
// and form.
func ContactBody(p Props) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="pt-content-card__body pt-content-card__body__contact flex">`); err != nil {
			return err
		}
		parts := []templ.Component{
			Challenge(p.SiteKey),
			ToastContainer(p.Position, p.Toasts),
			socialContainer(p.Social),
			Form(p.State),
		}
		for _, part := range parts {
			if err := part.Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// Challenge renders the invisible widget placeholder. The page script
// instantiates the widget against it.
func Challenge(siteKey string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div id="%s" class="recaptcha" data-size="invisible" data-sitekey="%s"></div>`,
			ChallengeID, templ.EscapeString(siteKey))
		return err
	})
}

// socialContainer is always present so a reloaded profile can fill it.
func socialContainer(links []profile.SocialLink) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<div id="%s">`, SocialContainerID); err != nil {
			return err
		}
		if err := SocialLinks(links).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// SocialLinks renders one link per entry, or nothing at all for an empty
// list.
func SocialLinks(links []profile.SocialLink) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(links) == 0 {
			return nil
		}
		if _, err := io.WriteString(w, `<div class="pt-content-card__body__contact__social flex flex-dc flex-full-center">`); err != nil {
			return err
		}
		for _, link := range links {
			if _, err := fmt.Fprintf(w, `<a href="%s" target="_blank" rel="noopener noreferrer" title="%s">`,
				templ.EscapeString(string(templ.URL(link.URL))), templ.EscapeString(link.IconName)); err != nil {
				return err
			}
			if _, err := io.WriteString(w, `<div class="pt-content-card__body__contact__social__item flex flex-full-center">`); err != nil {
				return err
			}
			if err := Icon(link.IconName).Render(ctx, w); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, `&nbsp;%s</div></a>`, templ.EscapeString(link.Text)); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// Icon renders a named icon glyph.
func Icon(name string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<i class="icon icon-%s" aria-hidden="true"></i>`, templ.EscapeString(name))
		return err
	})
}

// Form renders the three labelled inputs and the send button for state s.
func Form(s contact.State) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="pt-content-card__body__contact__form flex flex-main-center">`+
			`<form id="contact-form" class="flex flex-dc flex-full-center" novalidate>`); err != nil {
			return err
		}
		for _, spec := range formFields {
			if err := field(spec, s).Render(ctx, w); err != nil {
				return err
			}
		}
		disabled := ""
		if s.IsFormLoading {
			disabled = " disabled"
		}
		if _, err := fmt.Fprintf(w, `<div class="pt-content-card__body__contact__form__row flex flex-dc flex-main-center">`+
			`<button id="%s" type="submit" class="pt-content-card__body__contact__form__send-button flex flex-full-center pointer"%s>Send&nbsp;`,
			SendButtonID, disabled); err != nil {
			return err
		}
		if err := Icon("send").Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</button></div></form></div>`)
		return err
	})
}

func field(spec fieldSpec, s contact.State) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		id := string(spec.field)
		value := templ.EscapeString(s.Value(spec.field))

		var b strings.Builder
		b.WriteString(`<div class="pt-content-card__body__contact__form__row flex flex-dc flex-main-center">`)
		if spec.textarea {
			fmt.Fprintf(&b, `<textarea id="%s" name="%s" class="pt-content-card__body__contact__form__textarea" rows="6">%s</textarea>`,
				id, id, value)
		} else {
			fmt.Fprintf(&b, `<input id="%s" name="%s" class="pt-content-card__body__contact__form__input" type="%s" value="%s"/>`,
				id, id, spec.kind, value)
		}

		class := "pt-content-card__body__contact__form__label"
		if s.HasContent(spec.field) {
			class += " " + contact.HasContentClass
		}
		fmt.Fprintf(&b, `<label id="%s" for="%s" class="%s">%s</label>`,
			LabelID(spec.field), id, class, templ.EscapeString(spec.label))
		b.WriteString(underline)
		b.WriteString(`</div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

const underline = `<svg class="line" viewBox="0 0 40 2" preserveAspectRatio="none">` +
	`<path d="M0 1 L40 1"></path>` +
	`<path d="M0 1 L40 1" class="focus"></path>` +
	`<path d="M0 1 L40 1" class="error"></path>` +
	`<path d="M0 1 L40 1" class="valid"></path>` +
	`</svg>`

package renderer

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/conneroisu/contactform/internal/toast"
)

// DismissClass marks the close affordance on each toast.
const DismissClass = "toastify-dismiss"

// ToastContainer renders the anchored container with its current toasts.
func ToastContainer(pos toast.Position, toasts []toast.Toast) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if pos == "" {
			pos = toast.PositionBottomLeft
		}
		if _, err := fmt.Fprintf(w, `<div id="%s" class="Toastify__toast-container Toastify__toast-container--%s" aria-live="polite">`,
			ToastContainerID, templ.EscapeString(string(pos))); err != nil {
			return err
		}
		if err := Toasts(toasts).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

// Toasts renders the container's contents, oldest first. Live sessions push
// this fragment whenever the stack changes.
func Toasts(toasts []toast.Toast) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		for _, t := range toasts {
			kind := t.Kind
			if kind == "" {
				kind = toast.KindDefault
			}
			if _, err := fmt.Fprintf(w,
				`<div class="Toastify__toast Toastify__toast--%s" role="alert" data-toast-id="%s">`+
					`<div class="Toastify__toast-body">%s</div>`+
					`<span class="%s" data-toast-id="%s">Close</span>`+
					`</div>`,
				templ.EscapeString(string(kind)), templ.EscapeString(t.ID), templ.EscapeString(t.Text),
				DismissClass, templ.EscapeString(t.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

package server

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/contactform/internal/config"
	"github.com/conneroisu/contactform/internal/contact"
	apperrors "github.com/conneroisu/contactform/internal/errors"
)

var toastIDPattern = regexp.MustCompile(`data-toast-id="([^"]+)"`)

func fillForm(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	for _, f := range []struct{ field, value string }{
		{"name", "Ann"}, {"email", "a@b.com"}, {"message", "Hi"},
	} {
		send(t, conn, `{"type":"input","field":"`+f.field+`","value":"`+f.value+`"}`)
		msg := receive(t, conn)
		require.Equal(t, "class", msg["type"])
		require.Equal(t, "label-"+f.field, msg["target"])
		require.Equal(t, true, msg["on"])
	}
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	env := startServer(t, Options{}, nil)

	_, resp, err := websocket.Dial(context.Background(), "ws"+strings.TrimPrefix(env.ts.URL, "http")+"/ws",
		&websocket.DialOptions{HTTPHeader: http.Header{"Origin": []string{"http://evil.example"}}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSession_InputTogglesLabelClass(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)

	send(t, conn, `{"type":"input","field":"name","value":"Ann"}`)
	assert.Equal(t, map[string]any{
		"type": "class", "target": "label-name", "class": "has-content", "on": true,
	}, receive(t, conn))

	// still non-empty, so no patch
	send(t, conn, `{"type":"input","field":"name","value":"Anne"}`)

	send(t, conn, `{"type":"input","field":"name","value":""}`)
	assert.Equal(t, map[string]any{
		"type": "class", "target": "label-name", "class": "has-content", "on": false,
	}, receive(t, conn))

	send(t, conn, `{"type":"input","field":"email","value":" "}`)
	msg := receive(t, conn)
	assert.Equal(t, "label-email", msg["target"])
	assert.Equal(t, true, msg["on"])
}

func TestSession_InvalidMessagesKeepSessionOpen(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)

	send(t, conn, `{"type":"input","field":"phone","value":"555"}`)
	msg := receive(t, conn)
	assert.Equal(t, "error", msg["type"])
	assert.Contains(t, msg["message"], "phone")

	send(t, conn, `not json`)
	assert.Equal(t, "error", receive(t, conn)["type"])

	send(t, conn, `{"type":"input","field":"message","value":"Hi"}`)
	assert.Equal(t, "label-message", receive(t, conn)["target"])
}

func TestSession_SubmitExecutesChallenge(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)
	fillForm(t, conn)

	send(t, conn, `{"type":"submit"}`)
	assert.Equal(t, map[string]any{"type": "challenge", "action": "execute"}, receive(t, conn))
	assert.Empty(t, env.sender.calls())
}

func TestSession_SubmitSuccessFlow(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)
	fillForm(t, conn)

	send(t, conn, `{"type":"challenge","token":"T1"}`)

	assert.Equal(t, map[string]any{
		"type": "attr", "target": "send-button", "name": "disabled", "on": true,
	}, receive(t, conn))

	toastMsg := receive(t, conn)
	assert.Equal(t, "html", toastMsg["type"])
	assert.Equal(t, "toast-container", toastMsg["target"])
	assert.Contains(t, toastMsg["content"], "Thanks!")
	assert.Contains(t, toastMsg["content"], "Toastify__toast--success")

	assert.Equal(t, map[string]any{"type": "challenge", "action": "reset"}, receive(t, conn))

	assert.Equal(t, map[string]any{
		"type": "attr", "target": "send-button", "name": "disabled", "on": false,
	}, receive(t, conn))

	assert.Equal(t, []contact.Submission{
		{Name: "Ann", Email: "a@b.com", Message: "Hi", Token: "T1"},
	}, env.sender.calls())
}

func TestSession_SubmitFailureFlow(t *testing.T) {
	sender := &fakeSender{err: apperrors.NewSubmissionError("Network error", errors.New("502"))}
	env := startServer(t, Options{Sender: sender}, nil)
	conn := env.dial(t)
	fillForm(t, conn)

	send(t, conn, `{"type":"challenge","token":"T1"}`)

	assert.Equal(t, true, receive(t, conn)["on"])
	toastMsg := receive(t, conn)
	assert.Contains(t, toastMsg["content"], "Network error")
	assert.Contains(t, toastMsg["content"], "Toastify__toast--error")
	assert.Equal(t, "reset", receive(t, conn)["action"])
	assert.Equal(t, false, receive(t, conn)["on"])
	assert.Len(t, sender.calls(), 1)
}

func TestSession_NullTokenIgnored(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)

	send(t, conn, `{"type":"challenge","token":null}`)
	send(t, conn, `{"type":"input","field":"name","value":"Ann"}`)

	// the first thing back is the label patch, not a loading patch
	assert.Equal(t, "class", receive(t, conn)["type"])
	assert.Empty(t, env.sender.calls())
}

func TestSession_DismissToast(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)

	send(t, conn, `{"type":"challenge","token":"T1"}`)
	receive(t, conn)
	toastMsg := receive(t, conn)
	receive(t, conn)
	receive(t, conn)

	match := toastIDPattern.FindStringSubmatch(toastMsg["content"].(string))
	require.Len(t, match, 2)

	send(t, conn, `{"type":"dismiss","id":"`+match[1]+`"}`)
	cleared := receive(t, conn)
	assert.Equal(t, "html", cleared["type"])
	assert.Equal(t, "", cleared["content"])
}

func TestSession_ToastAutoCloses(t *testing.T) {
	env := startServer(t, Options{}, func(cfg *config.Config) {
		cfg.Toast.AutoClose = 50 * time.Millisecond
	})
	conn := env.dial(t)

	send(t, conn, `{"type":"challenge","token":"T1"}`)
	receive(t, conn)
	assert.Contains(t, receive(t, conn)["content"], "Thanks!")
	receive(t, conn)
	receive(t, conn)

	expired := receive(t, conn)
	assert.Equal(t, "html", expired["type"])
	assert.Equal(t, "", expired["content"])
}

func TestSession_ClosedTabDiscardsPendingSend(t *testing.T) {
	started := make(chan struct{})
	finished := make(chan error, 1)
	sender := contact.SenderFunc(func(ctx context.Context, sub contact.Submission) (string, error) {
		close(started)
		<-ctx.Done()
		finished <- ctx.Err()
		return "", ctx.Err()
	})
	env := startServer(t, Options{Sender: sender}, nil)
	conn := env.dial(t)

	send(t, conn, `{"type":"challenge","token":"T1"}`)
	receive(t, conn)
	<-started

	conn.Close(websocket.StatusGoingAway, "tab closed")

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("pending send was not cancelled when the session closed")
	}
	assert.Eventually(t, func() bool { return env.srv.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSession_ReconnectStartsFromIdleState(t *testing.T) {
	started := make(chan struct{})
	sender := contact.SenderFunc(func(ctx context.Context, sub contact.Submission) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	})
	env := startServer(t, Options{Sender: sender}, nil)

	first := env.dial(t)
	send(t, first, `{"type":"challenge","token":"T1"}`)
	assert.Equal(t, map[string]any{
		"type": "attr", "target": "send-button", "name": "disabled", "on": true,
	}, receive(t, first))
	<-started

	first.Close(websocket.StatusGoingAway, "network lost")
	require.Eventually(t, func() bool { return env.srv.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	second := env.dialRaw(t)
	opening := make([]map[string]any, 0, snapshotSize)
	for i := 0; i < snapshotSize; i++ {
		opening = append(opening, receive(t, second))
	}

	assert.Contains(t, opening, map[string]any{
		"type": "attr", "target": "send-button", "name": "disabled", "on": false,
	})
	assert.Contains(t, opening, map[string]any{
		"type": "html", "target": "toast-container", "content": "",
	})
	for _, f := range contact.Fields {
		assert.Contains(t, opening, map[string]any{
			"type": "class", "target": "label-" + string(f), "class": "has-content", "on": false,
		})
	}

	// the page re-sends what is still in its inputs
	send(t, second, `{"type":"input","field":"name","value":"Ann"}`)
	assert.Equal(t, true, receive(t, second)["on"])
}

func TestSession_FieldEditsAreNotRateLimited(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)

	edits := messagesPerWindow + 30
	for i := 1; i <= edits; i++ {
		send(t, conn, `{"type":"input","field":"message","value":"`+strings.Repeat("x", i)+`"}`)
	}
	assert.Equal(t, map[string]any{
		"type": "class", "target": "label-message", "class": "has-content", "on": true,
	}, receive(t, conn))

	send(t, conn, `{"type":"challenge","token":"T1"}`)
	assert.Equal(t, map[string]any{
		"type": "attr", "target": "send-button", "name": "disabled", "on": true,
	}, receive(t, conn))
	assert.Contains(t, receive(t, conn)["content"], "Thanks!")
	assert.Equal(t, "reset", receive(t, conn)["action"])
	assert.Equal(t, false, receive(t, conn)["on"])

	calls := env.sender.calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Message, edits)
	assert.Equal(t, "T1", calls[0].Token)
}

func TestSession_SubmitsAreRateLimited(t *testing.T) {
	env := startServer(t, Options{}, nil)
	conn := env.dial(t)

	for i := 0; i <= messagesPerWindow; i++ {
		send(t, conn, `{"type":"submit"}`)
	}

	executes, rejected := 0, 0
	for i := 0; i <= messagesPerWindow; i++ {
		switch msg := receive(t, conn); msg["type"] {
		case "challenge":
			executes++
		case "error":
			rejected++
			assert.Contains(t, msg["message"], "too many messages")
		}
	}
	assert.Equal(t, messagesPerWindow, executes)
	assert.Equal(t, 1, rejected)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conneroisu/contactform/internal/challenge"
	"github.com/conneroisu/contactform/internal/contact"
	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/renderer"
	"github.com/conneroisu/contactform/internal/toast"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer. Large enough for a long
	// message typed into the textarea.
	maxMessageSize = 64 << 10

	// Outbound messages buffered per session.
	sendBuffer = 64

	// Budgeted client messages allowed per rate window. Field edits are
	// not budgeted.
	messagesPerWindow = 120
	messageWindow     = 10 * time.Second
)

// session is one browser tab's live contact form.
type session struct {
	id      string
	conn    *websocket.Conn
	out     chan []byte
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *SlidingWindowRateLimiter
	logger  logging.Logger

	component *contact.Component
	toasts    *toast.Container

	// serializes toast renders so a stale stack never overtakes a newer one
	toastMu sync.Mutex

	// owned by the component's event loop
	rendered contact.State
}

func (s *Server) newSession(parent context.Context, conn *websocket.Conn) (*session, error) {
	ctx, cancel := context.WithCancel(parent)
	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		out:     make(chan []byte, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		limiter: NewSlidingWindowRateLimiter(messagesPerWindow, messageWindow),
	}
	sess.logger = s.logger.With("session", sess.id)

	sess.toasts = toast.New(toast.Options{
		AutoClose: s.config.Toast.AutoClose,
		Position:  s.config.ToastPosition(),
		OnChange:  sess.pushToasts,
	})

	remote, err := challenge.NewRemote(s.config.Recaptcha.SiteKey, challenge.CommanderFunc(sess.command))
	if err != nil {
		cancel()
		return nil, err
	}

	sess.component, err = contact.New(ctx, contact.Options{
		Sender:      s.sender,
		Challenge:   remote,
		Notifier:    sess.toasts,
		Logger:      sess.logger,
		SendTimeout: s.config.Sender.Timeout,
		OnChange:    sess.pushState,
	})
	if err != nil {
		sess.toasts.Close()
		cancel()
		return nil, err
	}

	return sess, nil
}

// run serves the session until the peer goes away or the server stops.
func (sess *session) run(social HTMLPatch) {
	defer sess.close()

	// a reconnecting tab still shows whatever the previous session left
	for _, patch := range snapshot(contact.State{}) {
		sess.enqueue(patch)
	}
	sess.pushToasts()
	sess.enqueue(social)

	go sess.writePump()
	sess.readPump()
}

func (sess *session) close() {
	sess.cancel()
	_ = sess.component.Close()
	sess.toasts.Close()
	sess.conn.Close(websocket.StatusNormalClosure, "")
}

// readPump pumps messages from the websocket connection
func (sess *session) readPump() {
	sess.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := sess.conn.Read(sess.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if sess.ctx.Err() == nil && status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				sess.logger.Warn(sess.ctx, err, "websocket read failed")
			}
			return
		}

		if err := sess.handle(sess.ctx, data); err != nil {
			if errors.Is(err, apperrors.ErrComponentClosed) || sess.ctx.Err() != nil {
				return
			}
			sess.logger.Debug(sess.ctx, "client message rejected", "error", err.Error())
			sess.enqueue(ErrorMessage{Type: "error", Message: err.Error()})
		}
	}
}

// writePump pumps messages to the websocket connection
func (sess *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sess.cancel()
	}()

	for {
		select {
		case <-sess.ctx.Done():
			return

		case message := <-sess.out:
			writeCtx, cancel := context.WithTimeout(sess.ctx, writeWait)
			err := sess.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				if sess.ctx.Err() == nil {
					sess.logger.Warn(sess.ctx, err, "websocket write failed")
				}
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(sess.ctx, writeWait)
			err := sess.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (sess *session) handle(ctx context.Context, data []byte) error {
	msg, err := decodeClientMessage(data)
	if err != nil {
		return err
	}

	// an edit only overwrites one value, and dropping one would leave the
	// stored field behind what the visitor typed
	if msg.Type != MsgInput && !sess.limiter.IsAllowed() {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidMessage, "too many messages")
	}

	switch msg.Type {
	case MsgInput:
		return sess.component.ChangeField(ctx, msg.Field, msg.Value)
	case MsgSubmit:
		return sess.component.Submit(ctx)
	case MsgChallenge:
		token := ""
		if msg.Token != nil {
			token = *msg.Token
		}
		return sess.component.ChallengeChanged(ctx, token)
	case MsgDismiss:
		sess.toasts.Dismiss(msg.ID)
	}
	return nil
}

// enqueue hands v to the writer. It reports false once the session is gone.
func (sess *session) enqueue(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		sess.logger.Error(sess.ctx, err, "encode outbound message")
		return false
	}

	select {
	case sess.out <- data:
		return true
	case <-sess.ctx.Done():
		return false
	}
}

// command delivers challenge commands on behalf of challenge.Remote.
func (sess *session) command(_ context.Context, cmd challenge.Command) error {
	if !sess.enqueue(cmd) {
		return apperrors.ErrComponentClosed
	}
	return nil
}

// pushState runs on the component's event loop.
func (sess *session) pushState(next contact.State) {
	for _, patch := range diffState(sess.rendered, next) {
		sess.enqueue(patch)
	}
	sess.rendered = next
}

// pushToasts re-renders the toast stack. It runs on the component's loop
// for new toasts and on timer goroutines for expiry.
func (sess *session) pushToasts() {
	sess.toastMu.Lock()
	defer sess.toastMu.Unlock()

	var buf bytes.Buffer
	if err := renderer.Toasts(sess.toasts.Active()).Render(sess.ctx, &buf); err != nil {
		sess.logger.Error(sess.ctx, err, "render toasts")
		return
	}
	sess.enqueue(HTMLPatch{Type: "html", Target: renderer.ToastContainerID, Content: buf.String()})
}

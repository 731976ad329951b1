// Package server serves the contact page and the live websocket sessions that
// drive it. Each connected tab gets its own contact component, toast stack
// and challenge handle; nothing is shared between sessions.
package server

import (
	"bufio"
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/coder/websocket"

	"github.com/conneroisu/contactform/internal/config"
	"github.com/conneroisu/contactform/internal/contact"
	apperrors "github.com/conneroisu/contactform/internal/errors"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/profile"
	"github.com/conneroisu/contactform/internal/renderer"
	"github.com/conneroisu/contactform/internal/validation"
	"github.com/conneroisu/contactform/internal/version"
)

//go:embed static
var staticFS embed.FS

// Options are the collaborators shared by every session.
type Options struct {
	Sender   contact.Sender
	Profiles *profile.Store
	Logger   logging.Logger
	Title    string
}

// Server serves the contact card with live sessions.
type Server struct {
	config   *config.Config
	sender   contact.Sender
	profiles *profile.Store
	logger   logging.Logger
	title    string
	security *SecurityConfig

	httpServer  *http.Server
	serverMutex sync.RWMutex

	ctx           context.Context
	cancel        context.CancelFunc
	sessions      map[string]*session
	sessionsMutex sync.RWMutex
	sessionsWG    sync.WaitGroup
	isShutdown    bool
	shutdownOnce  sync.Once
}

// New creates a server for cfg.
func New(cfg *config.Config, opts Options) (*Server, error) {
	if cfg == nil {
		return nil, apperrors.NewConfigError(apperrors.ErrCodeConfigInvalid, "server requires a configuration", nil)
	}
	if opts.Sender == nil {
		return nil, apperrors.NewInternalError(apperrors.ErrCodeConfigInvalid, "server requires a sender", nil)
	}
	profiles := opts.Profiles
	if profiles == nil {
		profiles = profile.Static(&profile.Profile{})
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:   cfg,
		sender:   opts.Sender,
		profiles: profiles,
		logger:   logger.WithComponent("server"),
		title:    opts.Title,
		security: SecurityConfigFromAppConfig(cfg),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
	profiles.OnLoad(s.broadcastSocial)

	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /static/", http.FileServerFS(staticFS))

	return s.logRequests(SecurityMiddleware(s.security)(mux))
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	if s.httpServer != nil {
		s.serverMutex.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server already started")
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "contact server listening", "addr", ln.Addr().String())

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes every live session and stops the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down server")

		s.sessionsMutex.Lock()
		s.isShutdown = true
		s.sessionsMutex.Unlock()

		// hijacked websocket connections are not tracked by http.Server
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.sessionsWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = ctx.Err()
		}

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			if err := server.Shutdown(ctx); err != nil && shutdownErr == nil {
				shutdownErr = err
			}
		}
	})

	return shutdownErr
}

// SessionCount returns the number of live sessions.
func (s *Server) SessionCount() int {
	s.sessionsMutex.RLock()
	defer s.sessionsMutex.RUnlock()
	return len(s.sessions)
}

func (s *Server) page() templ.Component {
	return renderer.Page(
		renderer.PageProps{Title: s.title, Live: true},
		renderer.ContactBody(renderer.Props{
			SiteKey:  s.config.Recaptcha.SiteKey,
			Social:   s.profiles.Social(),
			Position: s.config.ToastPosition(),
		}),
	)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(s.page()).ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if err := validation.ValidateOrigin(origin, s.config.Server.AllowedOrigins); err != nil {
		s.logger.Warn(r.Context(),
			apperrors.NewValidationError(apperrors.ErrCodeInvalidOrigin, err.Error()),
			"websocket origin rejected", "origin", origin)
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	s.sessionsMutex.RLock()
	closed := s.isShutdown
	s.sessionsMutex.RUnlock()
	if closed {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// origin was checked against the configured list above
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "websocket upgrade failed")
		return
	}

	sess, err := s.newSession(s.ctx, conn)
	if err != nil {
		s.logger.Error(r.Context(), err, "create session")
		conn.Close(websocket.StatusInternalError, "session unavailable")
		return
	}

	if !s.register(sess) {
		sess.close()
		return
	}
	defer s.unregister(sess)

	social, err := socialPatch(s.profiles.Social())
	if err != nil {
		s.logger.Error(r.Context(), err, "render social links")
	}

	sess.logger.Debug(sess.ctx, "session opened")
	sess.run(social)
	sess.logger.Debug(sess.ctx, "session closed")
}

func (s *Server) register(sess *session) bool {
	s.sessionsMutex.Lock()
	defer s.sessionsMutex.Unlock()
	if s.isShutdown {
		return false
	}
	s.sessions[sess.id] = sess
	s.sessionsWG.Add(1)
	return true
}

func (s *Server) unregister(sess *session) {
	s.sessionsMutex.Lock()
	delete(s.sessions, sess.id)
	s.sessionsMutex.Unlock()
	s.sessionsWG.Done()
}

func socialPatch(links []profile.SocialLink) (HTMLPatch, error) {
	var buf bytes.Buffer
	err := renderer.SocialLinks(links).Render(context.Background(), &buf)
	return HTMLPatch{Type: "html", Target: renderer.SocialContainerID, Content: buf.String()}, err
}

// broadcastSocial pushes a reloaded profile's links to every open session.
func (s *Server) broadcastSocial(p *profile.Profile) {
	patch, err := socialPatch(p.Social)
	if err != nil {
		s.logger.Error(s.ctx, err, "render social links")
		return
	}

	s.sessionsMutex.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessionsMutex.RUnlock()

	for _, sess := range sessions {
		sess.enqueue(patch)
	}
	s.logger.Info(s.ctx, "social links pushed to sessions", "sessions", len(sessions), "links", len(p.Social))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"sessions":  s.SessionCount(),
		"profile": map[string]interface{}{
			"path":  s.profiles.Path(),
			"links": len(s.profiles.Social()),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "encode health response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack passes the websocket upgrade through to the underlying writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// Package server exposes the install trigger surface over HTTP.
//
// Routes (all under /api, all requiring `Authorization: Bearer <admin token>`):
//
//	GET  /api/nonce?action=install|check-status   issue an anti-forgery nonce
//	POST /api/install                              run the install pipeline
//	POST /api/check-status                         report {loaded, version}
//
// POST routes also require a nonce issued for their action, passed as the
// "nonce" form value or the X-Phpvendor-Nonce header. Nonces are single use.
//
// Every reply has the shape {"success": bool, "data": ...}.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "github.com/matzehuels/phpvendor/pkg/errors"
	"github.com/matzehuels/phpvendor/pkg/pipeline"
	"github.com/matzehuels/phpvendor/pkg/session"
)

// Actions a nonce can be bound to.
const (
	ActionInstall     = "install"
	ActionCheckStatus = "check-status"
)

// NonceHeader carries the nonce when it is not sent as a form value.
const NonceHeader = "X-Phpvendor-Nonce"

// Reply messages for rejected requests.
const (
	MsgSecurityCheckFailed     = "Security check failed"
	MsgInsufficientPermissions = "Insufficient permissions"
	MsgAuthRequired            = "Authentication required"
)

// Pipeline is the part of *pipeline.Runner the server drives.
type Pipeline interface {
	Install(ctx context.Context) (*pipeline.InstallReport, error)
	IsLoaded() bool
	Version() (string, bool)
}

// Options configures a Server.
type Options struct {
	// AdminToken authorizes every request. Required.
	AdminToken string

	Nonces   session.Store
	NonceTTL time.Duration
	Logger   *log.Logger
}

// Server is the HTTP trigger surface.
type Server struct {
	pipeline Pipeline
	opts     Options
	router   chi.Router
}

// New creates a Server.
func New(p Pipeline, opts Options) (*Server, error) {
	if opts.AdminToken == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidConfig, "server.admin_token is required")
	}
	if opts.Nonces == nil {
		opts.Nonces = session.NewMemoryStore()
	}
	if opts.NonceTTL <= 0 {
		opts.NonceTTL = session.DefaultNonceTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{pipeline: p, opts: opts}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authorize)
		r.Get("/nonce", s.handleNonce)
		r.With(s.requireNonce(ActionInstall)).Post("/install", s.handleInstall)
		r.With(s.requireNonce(ActionCheckStatus)).Post("/check-status", s.handleCheckStatus)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.opts.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="phpvendor"`)
			writeError(w, http.StatusUnauthorized, MsgAuthRequired)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
			writeError(w, http.StatusForbidden, MsgInsufficientPermissions)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireNonce(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nonce := r.FormValue("nonce")
			if nonce == "" {
				nonce = r.Header.Get(NonceHeader)
			}
			if err := s.opts.Nonces.Consume(r.Context(), nonce, action); err != nil {
				if !errors.Is(err, session.ErrInvalidNonce) {
					s.opts.Logger.Error("nonce store", "err", err)
				}
				writeError(w, http.StatusForbidden, MsgSecurityCheckFailed)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// =============================================================================
// Handlers
// =============================================================================

type nonceReply struct {
	Nonce     string `json:"nonce"`
	Action    string `json:"action"`
	ExpiresIn int    `json:"expires_in"`
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	if action != ActionInstall && action != ActionCheckStatus {
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	token, err := s.opts.Nonces.Issue(r.Context(), action, s.opts.NonceTTL)
	if err != nil {
		s.opts.Logger.Error("issue nonce", "err", err)
		writeError(w, http.StatusInternalServerError, "could not issue nonce")
		return
	}
	writeSuccess(w, nonceReply{Nonce: token, Action: action, ExpiresIn: int(s.opts.NonceTTL.Seconds())})
}

func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	// The install outlives a disconnected client.
	report, err := s.pipeline.Install(context.WithoutCancel(r.Context()))
	switch {
	case apperrors.Is(err, apperrors.ErrCodeInstallInProgress):
		writeError(w, http.StatusConflict, apperrors.UserMessage(err))
		return
	case err != nil:
		s.opts.Logger.Error("install", "err", err)
		writeError(w, http.StatusInternalServerError, pipeline.MsgInstallFailed)
		return
	}

	if report.Loaded {
		writeSuccess(w, report.Message)
		return
	}
	writeError(w, http.StatusOK, report.Message)
}

type statusReply struct {
	Loaded  bool   `json:"loaded"`
	Version string `json:"version"`
}

func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	v, _ := s.pipeline.Version()
	writeSuccess(w, statusReply{Loaded: s.pipeline.IsLoaded(), Version: v})
}

// =============================================================================
// Replies
// =============================================================================

type reply struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, reply{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, reply{Success: false, Data: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

var _ Pipeline = (*pipeline.Runner)(nil)

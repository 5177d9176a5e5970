package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"iuran/internal/auth"
	"iuran/internal/core"
	"iuran/internal/ledger"
	applog "iuran/internal/log"
	"iuran/internal/proofs"
)

// Directory is the read/write surface the API serves directly, without
// going through the ledger services. The SQLite repository satisfies it.
type Directory interface {
	CreateHouse(ctx context.Context, h core.House) error
	GetHouse(ctx context.Context, houseID string) (*core.House, error)
	ListHouses(ctx context.Context) ([]core.House, error)
	UpdateHouse(ctx context.Context, h core.House) error
	DeleteHouse(ctx context.Context, houseID string) error
	ListObligations(ctx context.Context, houseID string) ([]core.Obligation, error)
	SetMonthStatus(ctx context.Context, houseID string, ms core.MonthStatus) error
	ListMonthStatuses(ctx context.Context, houseID string) ([]core.MonthStatus, error)
	GetTransaction(ctx context.Context, id string) (*core.Transaction, error)
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListUsers(ctx context.Context) ([]core.User, error)
	CreateUpload(ctx context.Context, up core.Upload) error
	ListUploads(ctx context.Context) ([]core.Upload, error)
}

// Deps bundles everything a Server needs. Proofs may be nil, in which case
// upload endpoints report the storage as unavailable.
type Deps struct {
	Logger      *applog.Logger
	Auth        *auth.Service
	Directory   Directory
	Reconciler  *ledger.Reconciler
	Provisioner *ledger.Provisioner
	Aggregator  *ledger.Aggregator
	Proofs      proofs.Store
	ProofDir    string
}

type Server struct {
	http.Server

	logger      *applog.Logger
	auth        *auth.Service
	directory   Directory
	reconciler  *ledger.Reconciler
	provisioner *ledger.Provisioner
	aggregator  *ledger.Aggregator
	proofs      proofs.Store
	limiter     *rateLimiter
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		logger:      deps.Logger,
		auth:        deps.Auth,
		directory:   deps.Directory,
		reconciler:  deps.Reconciler,
		provisioner: deps.Provisioner,
		aggregator:  deps.Aggregator,
		proofs:      deps.Proofs,
		limiter:     newRateLimiter(),
	}
	s.Handler = applog.Middleware(deps.Logger)(mux)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.public(s.handleRegister))
	mux.HandleFunc("POST /api/auth/login", s.public(s.handleLogin))
	mux.HandleFunc("GET /api/users", s.protect(s.handleListUsers, core.RoleAdmin, core.RoleSuperAdmin))

	mux.HandleFunc("GET /api/houses", s.protect(s.handleListHouses))
	mux.HandleFunc("POST /api/houses", s.protect(s.handleCreateHouse, editorRoles...))
	mux.HandleFunc("GET /api/houses/{id}", s.protect(s.handleGetHouse))
	mux.HandleFunc("PUT /api/houses/{id}", s.protect(s.handleUpdateHouse, editorRoles...))
	mux.HandleFunc("DELETE /api/houses/{id}", s.protect(s.handleDeleteHouse, adminRoles...))
	mux.HandleFunc("PUT /api/houses/{id}/months/{month}", s.protect(s.handleSetMonthStatus, editorRoles...))

	mux.HandleFunc("GET /api/transactions", s.protect(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.protect(s.handleCreateTransaction, editorRoles...))
	mux.HandleFunc("GET /api/transactions/{id}", s.protect(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.protect(s.handleUpdateTransaction, editorRoles...))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protect(s.handleDeleteTransaction, adminRoles...))

	mux.HandleFunc("GET /api/reports/fees", s.protect(s.handleFeeSummary))
	mux.HandleFunc("GET /api/reports/outstanding", s.protect(s.handleOutstanding))
	mux.HandleFunc("GET /api/reports/ledgers", s.protect(s.handleHouseLedgers))
	mux.HandleFunc("GET /api/reports/monthly", s.protect(s.handleMonthlyReport))

	mux.HandleFunc("POST /api/obligations/provision", s.protect(s.handleProvision, adminRoles...))

	mux.HandleFunc("POST /api/uploads", s.protect(s.handleCreateUpload, editorRoles...))
	mux.HandleFunc("GET /api/uploads", s.protect(s.handleListUploads))

	// Locally stored proofs are served straight from disk. The Drive
	// backend returns absolute links, so nothing is mounted for it.
	if deps.ProofDir != "" {
		files := http.StripPrefix("/proofs/", http.FileServer(http.Dir(deps.ProofDir)))
		mux.Handle("GET /proofs/", files)
	}

	return s
}

var (
	editorRoles = []core.Role{core.RoleEditor, core.RoleAdmin, core.RoleSuperAdmin}
	adminRoles  = []core.Role{core.RoleAdmin, core.RoleSuperAdmin}
)

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.stop()
	return s.Server.Shutdown(ctx)
}

// public wraps unauthenticated routes with the security headers and the
// per-IP rate limit.
func (s *Server) public(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limitAndShield(w, r) {
			return
		}
		next(w, r)
	}
}

// protect requires a valid bearer token and, when roles are given, one of
// those roles. The verified actor is placed on the request context.
func (s *Server) protect(next http.HandlerFunc, roles ...core.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limitAndShield(w, r) {
			return
		}
		actor, err := s.actorFromRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if len(roles) > 0 && !actor.HasRole(roles...) {
			s.writeJSON(w, http.StatusForbidden, errorResponse{Error: "insufficient role"})
			return
		}
		next(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	}
}

func (s *Server) limitAndShield(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && !s.limiter.allow(clientAddr(r)) {
		w.Header().Set("Retry-After", "60")
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return false
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	return true
}

func (s *Server) actorFromRequest(r *http.Request) (auth.Actor, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return auth.Actor{}, fmt.Errorf("%w: missing bearer token", auth.ErrInvalidToken)
	}
	return s.auth.VerifyToken(token)
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

func (s *Server) decode(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, core.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "request failed",
			applog.FieldPath, r.URL.Path, applog.FieldError, err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

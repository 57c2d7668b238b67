// Package httpapi is the HTTP surface of the tracker: routing, the
// authentication gateway and request/response mapping.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"tickettrail.org/internal/auth"
	"tickettrail.org/internal/obs"
	"tickettrail.org/internal/tracker"
)

// ReadyProbe is a simple readiness check (DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	tokens   *auth.Service
	resets   *auth.ResetService
	accounts *auth.AccountService
	projects *tracker.ProjectService
	tickets  *tracker.TicketService

	identities auth.IdentityStore
}

// Deps bundles the services the API fronts.
type Deps struct {
	Tokens     *auth.Service
	Resets     *auth.ResetService
	Accounts   *auth.AccountService
	Projects   *tracker.ProjectService
	Tickets    *tracker.TicketService
	Identities auth.IdentityStore
}

// New wires all routes.
func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		tokens:     deps.Tokens,
		resets:     deps.Resets,
		accounts:   deps.Accounts,
		projects:   deps.Projects,
		tickets:    deps.Tickets,
		identities: deps.Identities,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.MetricsHandler())

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/password-reset/request", a.handleResetRequest)
	a.mux.HandleFunc("/api/auth/password-reset/redeem", a.handleResetRedeem)
	a.mux.HandleFunc("/api/auth/password-change", a.handlePasswordChange)

	a.mux.HandleFunc("/api/projects", a.handleProjects)
	a.mux.HandleFunc("/api/projects/", a.handleProjectScoped)
	a.mux.HandleFunc("/api/tickets/assignee/", a.handleTicketsByAssignee)
	a.mux.HandleFunc("/api/users", a.handleUsers)
	a.mux.HandleFunc("/api/users/", a.handleUserScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux. The gateway runs
// inside the chain so every route sees either a bound principal or an
// anonymous context.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- ops handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tickettrail-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, tracker.ErrInvalid):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, tracker.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, tracker.ErrForbidden), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusForbidden, "forbidden")
	default:
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}

// identityResponse strips credential material off an identity for transport.
type identityResponse struct {
	ID                string     `json:"id"`
	Login             string     `json:"login"`
	Email             string     `json:"email"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	Role              string     `json:"role"`
	Blocked           bool       `json:"blocked"`
	CreatedAt         time.Time  `json:"created_at"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
}

func toIdentityResponse(id auth.Identity) identityResponse {
	return identityResponse{
		ID:                id.ID,
		Login:             id.Login,
		Email:             id.Email,
		FirstName:         id.FirstName,
		LastName:          id.LastName,
		Role:              string(id.Role),
		Blocked:           id.Blocked,
		CreatedAt:         id.CreatedAt,
		PasswordChangedAt: id.PasswordChangedAt,
	}
}

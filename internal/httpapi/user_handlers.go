package httpapi

import (
	"net/http"
	"strings"

	"tickettrail.org/internal/auth"
)

type accountRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (req accountRequest) params() auth.AccountParams {
	return auth.AccountParams{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      auth.Role(strings.TrimSpace(strings.ToLower(req.Role))),
	}
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermUserReadAll); !ok {
			return
		}
		identities, err := a.accounts.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		out := make([]identityResponse, 0, len(identities))
		for _, id := range identities {
			out = append(out, toIdentityResponse(id))
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": out})

	case http.MethodPost:
		if _, ok := a.requirePermission(w, r, auth.PermSystemAdminActions); !ok {
			return
		}
		var req accountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		identity, err := a.accounts.Create(r.Context(), req.params())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toIdentityResponse(identity))

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserScoped dispatches /api/users/{id} and the block/unblock actions.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, r, http.StatusBadRequest, "user id is required")
		return
	}
	userID := segments[0]

	if len(segments) == 1 {
		a.handleUserItem(w, r, userID)
		return
	}
	if len(segments) == 2 && r.Method == http.MethodPost {
		switch segments[1] {
		case "block":
			a.handleSetBlocked(w, r, userID, true)
			return
		case "unblock":
			a.handleSetBlocked(w, r, userID, false)
			return
		}
	}
	http.NotFound(w, r)
}

func (a *API) handleUserItem(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		principal, ok := a.requireIdentity(w, r)
		if !ok {
			return
		}
		if !principal.HasPermission(auth.PermUserReadAll) && principal.Identity.ID != userID {
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}
		identity, err := a.accounts.Get(r.Context(), userID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toIdentityResponse(identity))

	case http.MethodPut:
		principal, ok := a.requireIdentity(w, r)
		if !ok {
			return
		}
		self := principal.Identity.ID == userID
		if !principal.HasPermission(auth.PermSystemAdminActions) &&
			!(self && principal.HasPermission(auth.PermUserUpdateSelf)) {
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}
		var req accountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		params := req.params()
		// Changing a role is its own capability, even on your own account.
		if params.Role != "" && !principal.HasPermission(auth.PermUserUpdateRole) {
			writeError(w, r, http.StatusForbidden, "insufficient permissions")
			return
		}
		identity, err := a.accounts.Update(r.Context(), userID, params)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toIdentityResponse(identity))

	case http.MethodDelete:
		if _, ok := a.requirePermission(w, r, auth.PermUserDelete); !ok {
			return
		}
		if err := a.accounts.Delete(r.Context(), userID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleSetBlocked(w http.ResponseWriter, r *http.Request, userID string, blocked bool) {
	principal, ok := a.requirePermission(w, r, auth.PermSystemAdminActions)
	if !ok {
		return
	}
	if blocked && principal.Identity.ID == userID {
		writeError(w, r, http.StatusBadRequest, "cannot block your own account")
		return
	}

	var err error
	if blocked {
		err = a.accounts.Block(r.Context(), userID)
	} else {
		err = a.accounts.Unblock(r.Context(), userID)
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	status := "unblocked"
	if blocked {
		status = "blocked"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

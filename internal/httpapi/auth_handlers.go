package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tickettrail.org/internal/auth"
	"tickettrail.org/internal/obs"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Identity  identityResponse `json:"identity"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	token, expiresAt, identity, err := a.tokens.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			obs.CountLogin("failure")
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		handleDomainError(w, r, err)
		return
	}

	obs.CountLogin("success")
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  toIdentityResponse(identity),
	})
}

type registerRequest struct {
	Login     string `json:"login"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	// Self-registration grants the admin role; worker and manager accounts
	// are provisioned through the users API.
	token, expiresAt, identity, err := a.tokens.Register(r.Context(), auth.RegisterParams{
		Login:     req.Login,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
		Role:      auth.RoleAdmin,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  toIdentityResponse(identity),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	principal, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}

	if err := a.tokens.Logout(r.Context(), principal.Identity.ID); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

type resetRequestRequest struct {
	Identifier string `json:"identifier"`
}

func (a *API) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req resetRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.resets.Request(r.Context(), req.Identifier); err != nil {
		handleDomainError(w, r, err)
		return
	}

	// Same answer whether or not the identifier exists.
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

type resetRedeemRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (a *API) handleResetRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req resetRedeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := a.resets.Redeem(r.Context(), req.Code, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "password_updated"})
	case errors.Is(err, auth.ErrResetTokenExpired):
		writeError(w, r, http.StatusGone, "reset code expired")
	case errors.Is(err, auth.ErrResetTokenInvalid):
		writeError(w, r, http.StatusBadRequest, "reset code invalid")
	default:
		handleDomainError(w, r, err)
	}
}

type passwordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (a *API) handlePasswordChange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	principal, ok := a.requirePermission(w, r, auth.PermUserUpdateSelf)
	if !ok {
		return
	}

	var req passwordChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	err := a.resets.ChangePassword(r.Context(), principal.Identity.ID, req.OldPassword, req.NewPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"status": "password_updated"})
	case errors.Is(err, auth.ErrPasswordMismatch):
		writeError(w, r, http.StatusForbidden, "current password does not match")
	default:
		handleDomainError(w, r, err)
	}
}

package httpapi

import (
	"net/http"
	"strings"

	"tickettrail.org/internal/auth"
)

// withAuth is the authentication gateway. It never rejects a request on its
// own: a missing, malformed, expired or revoked token leaves the request
// anonymous and lets the route decide. Routes that need an identity call
// requirePermission and answer 401 for anonymous callers. A context that
// already carries a principal passes through untouched, so re-entrant
// dispatch never re-verifies.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		subject, err := a.tokens.Subject(raw)
		if err != nil || subject == "" {
			next.ServeHTTP(w, r)
			return
		}

		ok, err := a.tokens.Verify(r.Context(), raw, subject)
		if err != nil || !ok {
			next.ServeHTTP(w, r)
			return
		}

		// Resolve the principal by the id inside the token, never by the
		// subject string: login and email live in separate unique indexes, so
		// one identity's email may collide with another's login and make a
		// login-or-email lookup ambiguous.
		claims, err := a.tokens.TokenClaims(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := a.identities.FindByID(r.Context(), claims.IdentityID)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		principal := auth.NewPrincipal(identity)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requirePermission resolves the caller's principal and checks a single
// permission atom. Anonymous callers get 401, authenticated callers without
// the atom get 403.
func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm auth.Permission) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	if !principal.HasPermission(perm) {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return auth.Principal{}, false
	}
	return principal, true
}

// requireAnyPermission is requirePermission over a set: the caller needs at
// least one of the atoms.
func (a *API) requireAnyPermission(w http.ResponseWriter, r *http.Request, perms ...auth.Permission) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	for _, perm := range perms {
		if principal.HasPermission(perm) {
			return principal, true
		}
	}
	writeError(w, r, http.StatusForbidden, "insufficient permissions")
	return auth.Principal{}, false
}

// requireIdentity only needs an authenticated caller, no particular atom.
func (a *API) requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Principal{}, false
	}
	return principal, true
}

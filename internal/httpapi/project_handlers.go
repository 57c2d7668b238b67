package httpapi

import (
	"net/http"
	"strings"

	"tickettrail.org/internal/auth"
)

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermProjectReadAll); !ok {
			return
		}
		projects, err := a.projects.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"projects": projects})

	case http.MethodPost:
		if _, ok := a.requirePermission(w, r, auth.PermProjectCreate); !ok {
			return
		}
		var req projectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		project, err := a.projects.Create(r.Context(), req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, project)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleProjectScoped dispatches everything under /api/projects/{id}. The
// ticket subtree hangs off the same prefix, so the path is split here once and
// handed down.
func (a *API) handleProjectScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, r, http.StatusBadRequest, "project id is required")
		return
	}
	projectID := segments[0]

	if len(segments) == 1 {
		a.handleProjectItem(w, r, projectID)
		return
	}
	if segments[1] == "tickets" {
		a.handleTicketSubtree(w, r, projectID, segments[2:])
		return
	}
	http.NotFound(w, r)
}

func (a *API) handleProjectItem(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermProjectReadAll); !ok {
			return
		}
		project, err := a.projects.Get(r.Context(), projectID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, project)

	case http.MethodPut:
		if _, ok := a.requirePermission(w, r, auth.PermProjectUpdate); !ok {
			return
		}
		var req projectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		project, err := a.projects.Update(r.Context(), projectID, req.Name, req.Description)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, project)

	case http.MethodDelete:
		if _, ok := a.requirePermission(w, r, auth.PermProjectDelete); !ok {
			return
		}
		if err := a.projects.Delete(r.Context(), projectID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

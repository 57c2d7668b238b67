package httpapi

import (
	"net/http"
	"strings"

	"tickettrail.org/internal/auth"
	"tickettrail.org/internal/tracker"
)

type ticketCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	AssigneeID  string `json:"assignee_id"`
}

type ticketUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	State       string `json:"state"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// handleTicketSubtree dispatches /api/projects/{id}/tickets and deeper.
// segments holds everything after "tickets".
func (a *API) handleTicketSubtree(w http.ResponseWriter, r *http.Request, projectID string, segments []string) {
	if len(segments) == 0 || segments[0] == "" {
		a.handleTicketCollection(w, r, projectID)
		return
	}
	ticketID := segments[0]
	if len(segments) == 1 {
		a.handleTicketItem(w, r, projectID, ticketID)
		return
	}
	switch segments[1] {
	case "history":
		if len(segments) == 2 {
			a.handleTicketHistory(w, r, projectID, ticketID)
			return
		}
	case "comments":
		if len(segments) == 2 {
			a.handleTicketComments(w, r, projectID, ticketID)
			return
		}
		if len(segments) == 3 {
			a.handleTicketCommentItem(w, r, projectID, ticketID, segments[2])
			return
		}
	}
	http.NotFound(w, r)
}

func (a *API) handleTicketCollection(w http.ResponseWriter, r *http.Request, projectID string) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermTicketReadAll); !ok {
			return
		}
		tickets, err := a.tickets.ListByProject(r.Context(), projectID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})

	case http.MethodPost:
		principal, ok := a.requirePermission(w, r, auth.PermTicketCreate)
		if !ok {
			return
		}
		var req ticketCreateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		params, err := ticketCreateParams(req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		ticket, err := a.tickets.Create(r.Context(), projectID, params, principal)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ticket)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTicketItem(w http.ResponseWriter, r *http.Request, projectID, ticketID string) {
	switch r.Method {
	case http.MethodGet:
		principal, ok := a.requireAnyPermission(w, r, auth.PermTicketReadAll, auth.PermTicketReadAssigned)
		if !ok {
			return
		}
		ticket, err := a.tickets.Get(r.Context(), projectID, ticketID, principal)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)

	case http.MethodPut:
		principal, ok := a.requireAnyPermission(w, r, auth.PermTicketUpdate, auth.PermTicketUpdateAssigned)
		if !ok {
			return
		}
		var req ticketUpdateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		params, err := ticketUpdateParams(req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		ticket, err := a.tickets.Update(r.Context(), projectID, ticketID, params, principal)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ticket)

	case http.MethodDelete:
		principal, ok := a.requirePermission(w, r, auth.PermTicketDelete)
		if !ok {
			return
		}
		if err := a.tickets.Delete(r.Context(), projectID, ticketID, principal); err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleTicketHistory(w http.ResponseWriter, r *http.Request, projectID, ticketID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireAnyPermission(w, r, auth.PermSystemAuditRead, auth.PermTicketReadAll); !ok {
		return
	}
	entries, err := a.tickets.History(r.Context(), projectID, ticketID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

func (a *API) handleTicketComments(w http.ResponseWriter, r *http.Request, projectID, ticketID string) {
	switch r.Method {
	case http.MethodGet:
		principal, ok := a.requireAnyPermission(w, r, auth.PermTicketReadAll, auth.PermTicketReadAssigned)
		if !ok {
			return
		}
		if _, err := a.tickets.Get(r.Context(), projectID, ticketID, principal); err != nil {
			handleDomainError(w, r, err)
			return
		}
		comments, err := a.tickets.Comments(r.Context(), ticketID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"comments": comments})

	case http.MethodPost:
		principal, ok := a.requireAnyPermission(w, r, auth.PermTicketReadAll, auth.PermTicketReadAssigned)
		if !ok {
			return
		}
		if _, err := a.tickets.Get(r.Context(), projectID, ticketID, principal); err != nil {
			handleDomainError(w, r, err)
			return
		}
		var req commentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		comment, err := a.tickets.AddComment(r.Context(), ticketID, req.Text, principal)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTicketCommentItem(w http.ResponseWriter, r *http.Request, projectID, ticketID, commentID string) {
	principal, ok := a.requireAnyPermission(w, r, auth.PermTicketReadAll, auth.PermTicketReadAssigned)
	if !ok {
		return
	}
	if _, err := a.tickets.Get(r.Context(), projectID, ticketID, principal); err != nil {
		handleDomainError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req commentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		comment, err := a.tickets.UpdateComment(r.Context(), commentID, req.Text)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, comment)

	case http.MethodDelete:
		if err := a.tickets.DeleteComment(r.Context(), commentID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

// handleTicketsByAssignee serves /api/tickets/assignee/{identityID}. Workers
// may only look at their own queue.
func (a *API) handleTicketsByAssignee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	assigneeID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/tickets/assignee/"), "/")
	if assigneeID == "" || strings.Contains(assigneeID, "/") {
		writeError(w, r, http.StatusBadRequest, "assignee id is required")
		return
	}

	principal, ok := a.requireIdentity(w, r)
	if !ok {
		return
	}
	if !principal.HasPermission(auth.PermTicketReadAll) && principal.Identity.ID != assigneeID {
		writeError(w, r, http.StatusForbidden, "insufficient permissions")
		return
	}

	tickets, err := a.tickets.ListByAssignee(r.Context(), assigneeID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func ticketCreateParams(req ticketCreateRequest) (tracker.TicketCreateParams, error) {
	ticketType, err := tracker.ParseTicketType(req.Type)
	if err != nil {
		return tracker.TicketCreateParams{}, err
	}
	priority, err := tracker.ParseTicketPriority(req.Priority)
	if err != nil {
		return tracker.TicketCreateParams{}, err
	}
	return tracker.TicketCreateParams{
		Name:        req.Name,
		Description: req.Description,
		Type:        ticketType,
		Priority:    priority,
		AssigneeID:  strings.TrimSpace(req.AssigneeID),
	}, nil
}

func ticketUpdateParams(req ticketUpdateRequest) (tracker.TicketUpdateParams, error) {
	priority, err := tracker.ParseTicketPriority(req.Priority)
	if err != nil {
		return tracker.TicketUpdateParams{}, err
	}
	state, err := tracker.ParseTicketState(req.State)
	if err != nil {
		return tracker.TicketUpdateParams{}, err
	}
	return tracker.TicketUpdateParams{
		Name:        req.Name,
		Description: req.Description,
		Priority:    priority,
		State:       state,
	}, nil
}

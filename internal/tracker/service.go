package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tickettrail.org/internal/audit"
	"tickettrail.org/internal/auth"
	"tickettrail.org/internal/ids"
)

// TicketService performs ticket mutations and feeds the audit trail. It wraps
// each domain mutation so the field diff and its entries are computed from
// immutable before/after snapshots, not from a live object.
type TicketService struct {
	projects ProjectStore
	tickets  TicketStore
	comments CommentStore
	history  *audit.Log
}

// NewTicketService constructs a TicketService.
func NewTicketService(projects ProjectStore, tickets TicketStore, comments CommentStore, history *audit.Log) (*TicketService, error) {
	if projects == nil || tickets == nil || comments == nil || history == nil {
		return nil, errors.New("tracker: all stores and the audit log are required")
	}
	return &TicketService{projects: projects, tickets: tickets, comments: comments, history: history}, nil
}

// TicketCreateParams carries the fields of a new ticket.
type TicketCreateParams struct {
	Name        string
	Description string
	Type        TicketType
	Priority    TicketPriority
	AssigneeID  string
}

// TicketUpdateParams is the proposed new state of an existing ticket.
type TicketUpdateParams struct {
	Name        string
	Description string
	Priority    TicketPriority
	State       TicketState
}

// Create inserts a ticket and its CREATED entry atomically.
func (s *TicketService) Create(ctx context.Context, projectID string, params TicketCreateParams, actor auth.Principal) (Ticket, error) {
	if _, err := s.projects.Find(ctx, projectID); err != nil {
		return Ticket{}, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return Ticket{}, fmt.Errorf("%w: ticket name is required", ErrInvalid)
	}
	t := Ticket{
		ID:          ids.New(),
		ProjectID:   projectID,
		Name:        name,
		Description: params.Description,
		Type:        params.Type,
		Priority:    params.Priority,
		State:       StateOpen,
		AuthorID:    actor.Identity.ID,
		AssigneeID:  params.AssigneeID,
	}
	entries := []audit.Entry{audit.NewCreation(t.ID, actor.Identity.ID)}
	if err := s.tickets.Create(ctx, &t, entries); err != nil {
		return Ticket{}, err
	}
	return t, nil
}

// Get loads a ticket, enforcing assignment-scoped reads: a principal that can
// read all tickets always succeeds, one that can only read assigned tickets
// must be the assignee.
func (s *TicketService) Get(ctx context.Context, projectID, ticketID string, actor auth.Principal) (Ticket, error) {
	t, err := s.tickets.FindInProject(ctx, projectID, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if actor.HasPermission(auth.PermTicketReadAll) {
		return t, nil
	}
	if actor.HasPermission(auth.PermTicketReadAssigned) && t.AssigneeID == actor.Identity.ID {
		return t, nil
	}
	return Ticket{}, ErrForbidden
}

// ListByProject returns the project's tickets, newest first.
func (s *TicketService) ListByProject(ctx context.Context, projectID string) ([]Ticket, error) {
	if _, err := s.projects.Find(ctx, projectID); err != nil {
		return nil, err
	}
	return s.tickets.ListByProject(ctx, projectID)
}

// ListByAssignee returns the tickets assigned to the given identity.
func (s *TicketService) ListByAssignee(ctx context.Context, assigneeID string) ([]Ticket, error) {
	return s.tickets.ListByAssignee(ctx, assigneeID)
}

// Update applies the proposed state and emits one UPDATED entry per field
// that actually changed, atomically with the row update. No field difference
// means no entries. State transitions are recorded, not validated.
func (s *TicketService) Update(ctx context.Context, projectID, ticketID string, params TicketUpdateParams, actor auth.Principal) (Ticket, error) {
	current, err := s.tickets.FindInProject(ctx, projectID, ticketID)
	if err != nil {
		return Ticket{}, err
	}
	if err := s.authorizeWrite(current, actor); err != nil {
		return Ticket{}, err
	}

	proposed := current
	proposed.Name = strings.TrimSpace(params.Name)
	proposed.Description = params.Description
	proposed.Priority = params.Priority
	proposed.State = params.State
	if proposed.Name == "" {
		return Ticket{}, fmt.Errorf("%w: ticket name is required", ErrInvalid)
	}

	changes := audit.Diff(snapshot(current), snapshot(proposed), audit.TrackedTicketFields)
	if len(changes) == 0 {
		return current, nil
	}
	entries := audit.NewFieldChanges(current.ID, actor.Identity.ID, changes)
	if err := s.tickets.Update(ctx, &proposed, entries); err != nil {
		return Ticket{}, err
	}
	return proposed, nil
}

// Delete removes the ticket. The DELETED entry is written before the row goes
// away, inside the same transaction, so history always has a terminal record.
func (s *TicketService) Delete(ctx context.Context, projectID, ticketID string, actor auth.Principal) error {
	current, err := s.tickets.FindInProject(ctx, projectID, ticketID)
	if err != nil {
		return err
	}
	entry := audit.NewDeletion(current.ID, actor.Identity.ID)
	return s.tickets.Delete(ctx, projectID, ticketID, entry)
}

// History returns the ticket's audit entries oldest first.
func (s *TicketService) History(ctx context.Context, projectID, ticketID string) ([]audit.Entry, error) {
	if _, err := s.tickets.FindInProject(ctx, projectID, ticketID); err != nil {
		return nil, err
	}
	return s.history.History(ctx, ticketID)
}

// authorizeWrite mirrors the read scoping for updates: full update rights or
// assignee-scoped update rights on an assigned ticket.
func (s *TicketService) authorizeWrite(t Ticket, actor auth.Principal) error {
	if actor.HasPermission(auth.PermTicketUpdate) {
		return nil
	}
	if actor.HasPermission(auth.PermTicketUpdateAssigned) && t.AssigneeID == actor.Identity.ID {
		return nil
	}
	return ErrForbidden
}

// snapshot reduces a ticket to its history-relevant fields, stringified.
func snapshot(t Ticket) audit.Snapshot {
	return audit.Snapshot{
		"name":        t.Name,
		"description": t.Description,
		"priority":    string(t.Priority),
		"state":       string(t.State),
	}
}

// --------- comments ---------

// Comments lists a ticket's comments oldest first.
func (s *TicketService) Comments(ctx context.Context, ticketID string) ([]Comment, error) {
	return s.comments.ListByTicket(ctx, ticketID)
}

// AddComment attaches a comment to a ticket.
func (s *TicketService) AddComment(ctx context.Context, ticketID, text string, actor auth.Principal) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, fmt.Errorf("%w: comment text is required", ErrInvalid)
	}
	c := Comment{
		ID:       ids.New(),
		TicketID: ticketID,
		AuthorID: actor.Identity.ID,
		Text:     text,
	}
	if err := s.comments.Create(ctx, &c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// UpdateComment replaces a comment's text.
func (s *TicketService) UpdateComment(ctx context.Context, commentID, text string) (Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Comment{}, fmt.Errorf("%w: comment text is required", ErrInvalid)
	}
	c, err := s.comments.Find(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	c.Text = text
	if err := s.comments.Update(ctx, &c); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// DeleteComment removes a comment.
func (s *TicketService) DeleteComment(ctx context.Context, commentID string) error {
	return s.comments.Delete(ctx, commentID)
}

// --------- projects ---------

// ProjectService is thin CRUD over projects.
type ProjectService struct {
	projects ProjectStore
}

// NewProjectService constructs a ProjectService.
func NewProjectService(projects ProjectStore) (*ProjectService, error) {
	if projects == nil {
		return nil, errors.New("tracker: project store is required")
	}
	return &ProjectService{projects: projects}, nil
}

// Create inserts a project.
func (s *ProjectService) Create(ctx context.Context, name, description string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name is required", ErrInvalid)
	}
	p := Project{ID: ids.New(), Name: name, Description: strings.TrimSpace(description)}
	if err := s.projects.Create(ctx, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Get loads a project by id.
func (s *ProjectService) Get(ctx context.Context, id string) (Project, error) {
	return s.projects.Find(ctx, id)
}

// List returns all projects.
func (s *ProjectService) List(ctx context.Context) ([]Project, error) {
	return s.projects.List(ctx)
}

// Update replaces name/description.
func (s *ProjectService) Update(ctx context.Context, id, name, description string) (Project, error) {
	p, err := s.projects.Find(ctx, id)
	if err != nil {
		return Project{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name is required", ErrInvalid)
	}
	p.Name = name
	p.Description = strings.TrimSpace(description)
	if err := s.projects.Update(ctx, &p); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return s.projects.Delete(ctx, id)
}

package tracker

import (
	"context"

	"tickettrail.org/internal/audit"
)

// ProjectStore manages project rows.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, id string) (Project, error)
	List(ctx context.Context) ([]Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id string) error
}

// TicketStore manages ticket rows. Every mutating operation accepts the audit
// entries caused by the mutation and must persist both in one transaction:
// either the change and its trail commit together or neither does. Delete
// writes the audit row before the physical delete so a crash between the two
// can never lose the trail.
type TicketStore interface {
	Create(ctx context.Context, t *Ticket, entries []audit.Entry) error
	FindInProject(ctx context.Context, projectID, ticketID string) (Ticket, error)
	ListByProject(ctx context.Context, projectID string) ([]Ticket, error)
	ListByAssignee(ctx context.Context, assigneeID string) ([]Ticket, error)
	Update(ctx context.Context, t *Ticket, entries []audit.Entry) error
	Delete(ctx context.Context, projectID, ticketID string, entry audit.Entry) error
}

// CommentStore manages ticket comments.
type CommentStore interface {
	Create(ctx context.Context, c *Comment) error
	Find(ctx context.Context, id string) (Comment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]Comment, error)
	Update(ctx context.Context, c *Comment) error
	Delete(ctx context.Context, id string) error
}

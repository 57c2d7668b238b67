package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tickettrail.org/internal/audit"
	"tickettrail.org/internal/tracker"
)

var (
	_ tracker.ProjectStore = (*projectStore)(nil)
	_ tracker.TicketStore  = (*ticketStore)(nil)
	_ tracker.CommentStore = (*commentStore)(nil)
)

// Projects returns the project store view.
func (s *Store) Projects() tracker.ProjectStore { return &projectStore{db: s.db} }

// Tickets returns the ticket store view.
func (s *Store) Tickets() tracker.TicketStore { return &ticketStore{db: s.db} }

// Comments returns the comment store view.
func (s *Store) Comments() tracker.CommentStore { return &commentStore{db: s.db} }

// --------- projects ---------

type projectStore struct{ db *sql.DB }

func (p *projectStore) Create(ctx context.Context, project *tracker.Project) error {
	err := p.db.QueryRowContext(ctx, `
		insert into projects (id, name, description)
		values ($1, $2, $3)
		returning created_at
	`, project.ID, project.Name, nullIfEmpty(project.Description)).Scan(&project.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return fmt.Errorf("%w: project name taken", tracker.ErrInvalid)
	}
	return err
}

func (p *projectStore) Find(ctx context.Context, id string) (tracker.Project, error) {
	var (
		project tracker.Project
		desc    sql.NullString
	)
	err := p.db.QueryRowContext(ctx, `
		select id, name, description, created_at from projects where id = $1
	`, id).Scan(&project.ID, &project.Name, &desc, &project.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Project{}, tracker.ErrNotFound
	}
	if err != nil {
		return tracker.Project{}, err
	}
	project.Description = desc.String
	return project, nil
}

func (p *projectStore) List(ctx context.Context) ([]tracker.Project, error) {
	rows, err := p.db.QueryContext(ctx, `
		select id, name, description, created_at from projects order by created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []tracker.Project
	for rows.Next() {
		var (
			project tracker.Project
			desc    sql.NullString
		)
		if err := rows.Scan(&project.ID, &project.Name, &desc, &project.CreatedAt); err != nil {
			return nil, err
		}
		project.Description = desc.String
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (p *projectStore) Update(ctx context.Context, project *tracker.Project) error {
	res, err := p.db.ExecContext(ctx, `
		update projects set name = $2, description = $3 where id = $1
	`, project.ID, project.Name, nullIfEmpty(project.Description))
	if err != nil {
		return err
	}
	return trackerAffected(res)
}

func (p *projectStore) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `delete from projects where id = $1`, id)
	if err != nil {
		return err
	}
	return trackerAffected(res)
}

// --------- tickets ---------

type ticketStore struct{ db *sql.DB }

const ticketColumns = `id, project_id, name, description, type, priority, state,
	author_id, assignee_id, created_at`

func scanTicket(row interface{ Scan(...any) error }) (tracker.Ticket, error) {
	var (
		t              tracker.Ticket
		desc, assignee sql.NullString
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &desc, &t.Type, &t.Priority,
		&t.State, &t.AuthorID, &assignee, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Ticket{}, tracker.ErrNotFound
	}
	if err != nil {
		return tracker.Ticket{}, err
	}
	t.Description = desc.String
	t.AssigneeID = assignee.String
	return t, nil
}

// Create inserts the ticket and its CREATED audit entry in one transaction.
func (t *ticketStore) Create(ctx context.Context, ticket *tracker.Ticket, entries []audit.Entry) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into tickets (id, project_id, name, description, type, priority, state, author_id, assignee_id)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		returning created_at
	`, ticket.ID, ticket.ProjectID, ticket.Name, nullIfEmpty(ticket.Description),
		string(ticket.Type), string(ticket.Priority), string(ticket.State),
		ticket.AuthorID, nullIfEmpty(ticket.AssigneeID)).Scan(&ticket.CreatedAt)
	if err != nil {
		return err
	}
	if err := appendAll(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *ticketStore) FindInProject(ctx context.Context, projectID, ticketID string) (tracker.Ticket, error) {
	row := t.db.QueryRowContext(ctx, `
		select `+ticketColumns+`
		from tickets
		where id = $1 and project_id = $2
	`, ticketID, projectID)
	return scanTicket(row)
}

func (t *ticketStore) ListByProject(ctx context.Context, projectID string) ([]tracker.Ticket, error) {
	return t.list(ctx, `
		select `+ticketColumns+`
		from tickets
		where project_id = $1
		order by created_at desc
	`, projectID)
}

func (t *ticketStore) ListByAssignee(ctx context.Context, assigneeID string) ([]tracker.Ticket, error) {
	return t.list(ctx, `
		select `+ticketColumns+`
		from tickets
		where assignee_id = $1
		order by created_at desc
	`, assigneeID)
}

func (t *ticketStore) list(ctx context.Context, query string, args ...any) ([]tracker.Ticket, error) {
	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []tracker.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}

// Update rewrites the audited fields and appends the UPDATED entries in one
// transaction; a failed audit write rolls the whole mutation back.
func (t *ticketStore) Update(ctx context.Context, ticket *tracker.Ticket, entries []audit.Entry) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update tickets
		set name = $2, description = $3, priority = $4, state = $5
		where id = $1
	`, ticket.ID, ticket.Name, nullIfEmpty(ticket.Description),
		string(ticket.Priority), string(ticket.State))
	if err != nil {
		return err
	}
	if err := trackerAffected(res); err != nil {
		return err
	}
	if err := appendAll(ctx, tx, entries); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete writes the DELETED audit entry first and removes the row second,
// within one transaction. The order matters: a crash in between must never
// leave a deletion without its trail.
func (t *ticketStore) Delete(ctx context.Context, projectID, ticketID string, entry audit.Entry) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := appendAuditEntry(ctx, tx, &entry); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		delete from tickets where id = $1 and project_id = $2
	`, ticketID, projectID)
	if err != nil {
		return err
	}
	if err := trackerAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func appendAll(ctx context.Context, q querier, entries []audit.Entry) error {
	for i := range entries {
		if err := appendAuditEntry(ctx, q, &entries[i]); err != nil {
			return fmt.Errorf("%w: %v", audit.ErrNotRecorded, err)
		}
	}
	return nil
}

// --------- comments ---------

type commentStore struct{ db *sql.DB }

func (c *commentStore) Create(ctx context.Context, comment *tracker.Comment) error {
	err := c.db.QueryRowContext(ctx, `
		insert into ticket_comments (id, ticket_id, author_id, text)
		values ($1, $2, $3, $4)
		returning created_at
	`, comment.ID, comment.TicketID, comment.AuthorID, comment.Text).Scan(&comment.CreatedAt)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return tracker.ErrNotFound
	}
	return err
}

func (c *commentStore) Find(ctx context.Context, id string) (tracker.Comment, error) {
	var comment tracker.Comment
	err := c.db.QueryRowContext(ctx, `
		select id, ticket_id, author_id, text, created_at
		from ticket_comments
		where id = $1
	`, id).Scan(&comment.ID, &comment.TicketID, &comment.AuthorID, &comment.Text, &comment.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Comment{}, tracker.ErrNotFound
	}
	if err != nil {
		return tracker.Comment{}, err
	}
	return comment, nil
}

func (c *commentStore) ListByTicket(ctx context.Context, ticketID string) ([]tracker.Comment, error) {
	rows, err := c.db.QueryContext(ctx, `
		select id, ticket_id, author_id, text, created_at
		from ticket_comments
		where ticket_id = $1
		order by created_at asc
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []tracker.Comment
	for rows.Next() {
		var comment tracker.Comment
		if err := rows.Scan(&comment.ID, &comment.TicketID, &comment.AuthorID, &comment.Text, &comment.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

func (c *commentStore) Update(ctx context.Context, comment *tracker.Comment) error {
	res, err := c.db.ExecContext(ctx, `
		update ticket_comments set text = $2 where id = $1
	`, comment.ID, comment.Text)
	if err != nil {
		return err
	}
	return trackerAffected(res)
}

func (c *commentStore) Delete(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `delete from ticket_comments where id = $1`, id)
	if err != nil {
		return err
	}
	return trackerAffected(res)
}

func trackerAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return tracker.ErrNotFound
	}
	return nil
}

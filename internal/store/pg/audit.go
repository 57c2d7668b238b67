package pg

import (
	"context"
	"database/sql"

	"tickettrail.org/internal/audit"
	"tickettrail.org/internal/ids"
	"tickettrail.org/internal/obs"
)

var _ audit.Store = (*auditStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx so audit rows can be
// written inside the transaction of the mutation that caused them.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type auditStore struct{ q querier }

// AuditEntries returns the audit store view over the shared pool.
func (s *Store) AuditEntries() audit.Store {
	return &auditStore{q: s.db}
}

func (a *auditStore) Append(ctx context.Context, entry *audit.Entry) error {
	return appendAuditEntry(ctx, a.q, entry)
}

func (a *auditStore) ListByEntity(ctx context.Context, entityID string) ([]audit.Entry, error) {
	rows, err := a.q.QueryContext(ctx, `
		select id, entity_id, actor_id, action, field, old_value, new_value, created_at
		from audit_entries
		where entity_id = $1
		order by created_at asc, id asc
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			e                 audit.Entry
			field, oldV, newV sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.EntityID, &e.ActorID, &e.Action, &field, &oldV, &newV, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Field = field.String
		e.OldValue = oldV.String
		e.NewValue = newV.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// appendAuditEntry is shared between the standalone audit store and the
// transactional ticket mutations.
func appendAuditEntry(ctx context.Context, q querier, e *audit.Entry) error {
	if e.ID == "" {
		e.ID = ids.New()
	}
	err := q.QueryRowContext(ctx, `
		insert into audit_entries (id, entity_id, actor_id, action, field, old_value, new_value)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at
	`, e.ID, e.EntityID, e.ActorID, string(e.Action),
		nullIfEmpty(e.Field), nullIfEmpty(e.OldValue), nullIfEmpty(e.NewValue),
	).Scan(&e.CreatedAt)
	if err != nil {
		return err
	}
	obs.CountAuditEntry(string(e.Action))
	return nil
}

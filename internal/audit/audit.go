// Package audit is the append-only change log fed by every mutating ticket
// operation. Entries are immutable once written and totally ordered per owning
// entity by creation time.
package audit

import (
	"context"
	"errors"
	"time"
)

// Action tags what a single entry records.
type Action string

const (
	ActionCreated Action = "CREATED"
	ActionUpdated Action = "UPDATED"
	ActionDeleted Action = "DELETED"
)

// ErrNotRecorded marks a mutation whose audit trail could not be written.
// Losing the ability to explain a change is treated as failing the change.
var ErrNotRecorded = errors.New("audit: entry not recorded")

// Entry describes one attributable change: a single field of one entity, or a
// creation/deletion event. Field, OldValue and NewValue are set only for
// UPDATED entries.
type Entry struct {
	ID        string    `json:"id"`
	EntityID  string    `json:"entity_id"`
	ActorID   string    `json:"actor_id"`
	Action    Action    `json:"action"`
	Field     string    `json:"field,omitempty"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists entries. Append must happen inside the same transactional
// boundary as the mutation that caused the entry; implementations accept a
// transaction-scoped handle for that reason.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByEntity(ctx context.Context, entityID string) ([]Entry, error)
}

// NewCreation builds the single CREATED entry of a fresh entity.
func NewCreation(entityID, actorID string) Entry {
	return Entry{EntityID: entityID, ActorID: actorID, Action: ActionCreated}
}

// NewDeletion builds the terminal DELETED entry. It must be persisted before
// or atomically with the physical delete, never after.
func NewDeletion(entityID, actorID string) Entry {
	return Entry{EntityID: entityID, ActorID: actorID, Action: ActionDeleted}
}

// NewFieldChanges expands a diff into one UPDATED entry per changed field,
// each independently attributable to the actor.
func NewFieldChanges(entityID, actorID string, changes []FieldChange) []Entry {
	if len(changes) == 0 {
		return nil
	}
	entries := make([]Entry, len(changes))
	for i, c := range changes {
		entries[i] = Entry{
			EntityID: entityID,
			ActorID:  actorID,
			Action:   ActionUpdated,
			Field:    c.Field,
			OldValue: c.Old,
			NewValue: c.New,
		}
	}
	return entries
}

// Log is the recorder consumed by the mutation layer when a mutation does not
// manage its own transaction. History is the read side for both cases.
type Log struct {
	store Store
}

// NewLog constructs a Log over the given store.
func NewLog(store Store) (*Log, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	return &Log{store: store}, nil
}

// RecordCreation appends the CREATED entry for a new entity.
func (l *Log) RecordCreation(ctx context.Context, entityID, actorID string) error {
	e := NewCreation(entityID, actorID)
	return l.store.Append(ctx, &e)
}

// RecordFieldChange appends one UPDATED entry for a single changed field.
func (l *Log) RecordFieldChange(ctx context.Context, entityID, actorID, field, oldValue, newValue string) error {
	e := Entry{
		EntityID: entityID,
		ActorID:  actorID,
		Action:   ActionUpdated,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
	}
	return l.store.Append(ctx, &e)
}

// RecordDeletion appends the terminal DELETED entry.
func (l *Log) RecordDeletion(ctx context.Context, entityID, actorID string) error {
	e := NewDeletion(entityID, actorID)
	return l.store.Append(ctx, &e)
}

// History returns all entries for the entity oldest first. The ordering is
// load-bearing: consumers reconstruct "what happened when" from it.
func (l *Log) History(ctx context.Context, entityID string) ([]Entry, error) {
	return l.store.ListByEntity(ctx, entityID)
}

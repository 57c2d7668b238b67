package tracker

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("tracker: not found")
	ErrForbidden = errors.New("tracker: forbidden")
	ErrInvalid   = errors.New("tracker: invalid input")
)

// Project groups tickets.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TicketType classifies a ticket.
type TicketType string

const (
	TypeBug     TicketType = "bug"
	TypeFeature TicketType = "feature"
	TypeTask    TicketType = "task"
)

// TicketPriority ranks urgency.
type TicketPriority string

const (
	PriorityLow  TicketPriority = "low"
	PriorityMed  TicketPriority = "med"
	PriorityHigh TicketPriority = "high"
)

// TicketState is the lifecycle tag. Transitions are recorded in history but
// never validated: any state is reachable from any state, matching the
// system this replaces. Tightening that would be a behavior change outside
// the audit core's responsibility.
type TicketState string

const (
	StateOpen       TicketState = "open"
	StateInProgress TicketState = "in_progress"
	StateDone       TicketState = "done"
)

// Ticket is the audited aggregate.
type Ticket struct {
	ID          string         `json:"id"`
	ProjectID   string         `json:"project_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        TicketType     `json:"type"`
	Priority    TicketPriority `json:"priority"`
	State       TicketState    `json:"state"`
	AuthorID    string         `json:"author_id"`
	AssigneeID  string         `json:"assignee_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Comment is a ticket note. Comments are not audited.
type Comment struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ParseTicketType validates a type tag from the outside.
func ParseTicketType(s string) (TicketType, error) {
	switch TicketType(strings.TrimSpace(strings.ToLower(s))) {
	case TypeBug:
		return TypeBug, nil
	case TypeFeature:
		return TypeFeature, nil
	case TypeTask:
		return TypeTask, nil
	}
	return "", fmt.Errorf("%w: unknown ticket type %q", ErrInvalid, s)
}

// ParseTicketPriority validates a priority tag from the outside.
func ParseTicketPriority(s string) (TicketPriority, error) {
	switch TicketPriority(strings.TrimSpace(strings.ToLower(s))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMed:
		return PriorityMed, nil
	case PriorityHigh:
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("%w: unknown priority %q", ErrInvalid, s)
}

// ParseTicketState validates a state tag from the outside.
func ParseTicketState(s string) (TicketState, error) {
	switch TicketState(strings.TrimSpace(strings.ToLower(s))) {
	case StateOpen:
		return StateOpen, nil
	case StateInProgress:
		return StateInProgress, nil
	case StateDone:
		return StateDone, nil
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrInvalid, s)
}

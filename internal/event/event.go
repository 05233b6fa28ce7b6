package event

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names a lifecycle event on the bus.
type EventType string

const (
	ChoreClaimed     EventType = "chore.claimed"
	ChoreApproved    EventType = "chore.approved"
	ChoreDisapproved EventType = "chore.disapproved"
	ChoreOverdue     EventType = "chore.overdue"
	ChoreReset       EventType = "chore.reset"
	ChoreSkipped     EventType = "chore.skipped"
)

// AllTypes lists every lifecycle event type, for consumers that subscribe
// to the full stream.
func AllTypes() []EventType {
	return []EventType{
		ChoreClaimed, ChoreApproved, ChoreDisapproved,
		ChoreOverdue, ChoreReset, ChoreSkipped,
	}
}

// Event is a typed lifecycle event.
type Event[T any] struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      T         `json:"data"`
}

// EventMessage is the serialized transport form.
type EventMessage struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// ChoreClaimedData is the payload for chore.claimed.
type ChoreClaimedData struct {
	ChoreID    string    `json:"chore_id"`
	AssigneeID string    `json:"assignee_id"`
	Actor      string    `json:"actor"`
	ClaimedAt  time.Time `json:"claimed_at"`
}

// ChoreApprovedData is the payload for chore.approved.
type ChoreApprovedData struct {
	ChoreID    string    `json:"chore_id"`
	AssigneeID string    `json:"assignee_id"`
	Approver   string    `json:"approver"`
	Points     int       `json:"points"`
	ApprovedAt time.Time `json:"approved_at"`
}

// ChoreDisapprovedData is the payload for chore.disapproved.
type ChoreDisapprovedData struct {
	ChoreID    string `json:"chore_id"`
	AssigneeID string `json:"assignee_id"`
	Reason     string `json:"reason,omitempty"`
}

// ChoreOverdueData is the payload for chore.overdue.
type ChoreOverdueData struct {
	ChoreID    string    `json:"chore_id"`
	AssigneeID string    `json:"assignee_id"`
	DueAt      time.Time `json:"due_at"`
}

// ChoreResetData is the payload for chore.reset.
type ChoreResetData struct {
	ChoreID    string     `json:"chore_id"`
	AssigneeID string     `json:"assignee_id"`
	FromState  string     `json:"from_state"`
	NextDueAt  *time.Time `json:"next_due_at,omitempty"`
}

// ChoreSkippedData is the payload for chore.skipped.
type ChoreSkippedData struct {
	ChoreID    string `json:"chore_id"`
	AssigneeID string `json:"assignee_id"`
}

// inferEventType maps a payload type to its event type.
func inferEventType(data any) EventType {
	dataType := reflect.TypeOf(data)
	if dataType.Kind() == reflect.Ptr {
		dataType = dataType.Elem()
	}
	switch dataType.Name() {
	case "ChoreClaimedData":
		return ChoreClaimed
	case "ChoreApprovedData":
		return ChoreApproved
	case "ChoreDisapprovedData":
		return ChoreDisapproved
	case "ChoreOverdueData":
		return ChoreOverdue
	case "ChoreResetData":
		return ChoreReset
	case "ChoreSkippedData":
		return ChoreSkipped
	default:
		return EventType(camelToDotted(dataType.Name()))
	}
}

func camelToDotted(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func newEventID() string {
	return ulid.Make().String()
}

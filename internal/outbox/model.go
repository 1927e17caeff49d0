package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status enumerates outbox event states. SENT and CANCELED are terminal.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSent     Status = "SENT"
	StatusError    Status = "ERROR"
	StatusCanceled Status = "CANCELED"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusCanceled
}

// Event is a durable record of an action awaiting delivery to the
// government system. Attempts only ever grows; TenantID is fixed at creation.
type Event struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     int64           `json:"tenant_id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Status       Status          `json:"status"`
	Protocol     string          `json:"protocol,omitempty"`
	Attempts     int             `json:"attempts"`
	LastError    string          `json:"last_error,omitempty"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	SentAt       *time.Time      `json:"sent_at,omitempty"`
}

// Stats aggregates event counts per status for one tenant.
type Stats struct {
	Pending  int `json:"pending"`
	Sent     int `json:"sent"`
	Error    int `json:"error"`
	Canceled int `json:"canceled"`
}

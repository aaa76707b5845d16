// Package audit records who changed which constraint and which methods were
// blocked at checkout. Events flow through a Publisher into a Store; the
// postgres store doubles as an outbox drained to Kafka by the worker.
package audit

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionConstraintCreated Action = "constraint_created"
	ActionConstraintUpdated Action = "constraint_updated"
	ActionConstraintDeleted Action = "constraint_deleted"
	ActionMethodBlocked     Action = "method_blocked"
)

type Category string

const (
	CategorySettings Category = "settings"
	CategoryCheckout Category = "checkout"
)

// CategoryOf maps an action to its reporting category.
func CategoryOf(a Action) Category {
	if a == ActionMethodBlocked {
		return CategoryCheckout
	}
	return CategorySettings
}

type Event struct {
	ID           uuid.UUID `json:"id"`
	Action       Action    `json:"action"`
	Category     Category  `json:"category"`
	ConstraintID string    `json:"constraint_id,omitempty"`
	TargetType   string    `json:"target_type,omitempty"`
	MethodID     string    `json:"method_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	Device       string    `json:"device,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

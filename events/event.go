package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

// User lifecycle event types. Each is published on a topic of the same name.
const (
	TypeUserCreated = "user.created"
	TypeUserUpdated = "user.updated"
	TypeUserDeleted = "user.deleted"
)

// UserLifecycleEvent is the envelope published by the user registry.
type UserLifecycleEvent struct {
	ID            uuid.UUID     `json:"id"`
	OccurredAt    time.Time     `json:"occurredAt"`
	CorrelationID uuid.NullUUID `json:"correlationId"`
	Type          string        `json:"type"`
	Version       int           `json:"version"`
	Actor         string        `json:"actor,omitempty"`
	Payload       UserPayload   `json:"payload"`
}

type UserPayload struct {
	UserID          uuid.NullUUID `json:"userId"`
	Email           string        `json:"email"`
	OldEmail        string        `json:"oldEmail,omitempty"`
	IsActive        *bool         `json:"isActive,omitempty"`
	LastWorkspaceID uuid.NullUUID `json:"lastWorkspaceId"`
	Invalidate      bool          `json:"invalidate"`
}

// Parse decodes an envelope. topic is used as the type when the envelope carries none.
func Parse(data []byte, topic string) (*UserLifecycleEvent, error) {
	var evt UserLifecycleEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "[events.Parse] decode envelope: %v", err)
	}
	if strings.TrimSpace(evt.Type) == "" {
		evt.Type = topic
	}
	if evt.Version == 0 {
		evt.Version = 1
	}
	return &evt, nil
}

// SessionPrincipal is the principal whose sessions an update must invalidate.
// Sessions were indexed under the email at login time, so a changed email
// points at the old value.
func (p UserPayload) SessionPrincipal() string {
	if old := strings.TrimSpace(p.OldEmail); old != "" {
		return old
	}
	return strings.TrimSpace(p.Email)
}

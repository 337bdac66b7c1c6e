package domain

import "time"

// EffectKind identifies one durable side effect of a committed transition
type EffectKind string

const (
	EffectNotifyPassenger EffectKind = "notify_passenger"
	EffectNotifyDriver    EffectKind = "notify_driver"
	EffectRosterUpsert    EffectKind = "roster_upsert"
	EffectRosterRemove    EffectKind = "roster_remove"
	EffectChatJoin        EffectKind = "chat_join"
	EffectChatLeave       EffectKind = "chat_leave"
)

// EffectStatus tracks the outbox lifecycle of an effect record
type EffectStatus string

const (
	EffectPending EffectStatus = "PENDING"
	EffectApplied EffectStatus = "APPLIED"
)

// Effect is an outbox record: the durable consequence of a committed state
// transition, queued in the same store transaction as the transition and
// applied at-least-once by the dispatcher. The (RequestID, Kind) pair is
// unique while pending, so a transition retried before its effects drain
// does not enqueue the same work twice.
type Effect struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	RideID    string         `json:"ride_id"`
	Kind      EffectKind     `json:"kind"`
	UserID    string         `json:"user_id"`
	Seats     int            `json:"seats,omitempty"`
	Title     string         `json:"title,omitempty"`
	Message   string         `json:"message,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Status    EffectStatus   `json:"status"`
	Attempts  int            `json:"attempts"`
	CreatedAt time.Time      `json:"created_at"`
	AppliedAt *time.Time     `json:"applied_at,omitempty"`
}

// NotificationType maps a notify effect to the client-facing type
func (e *Effect) NotificationType() string {
	if t, ok := e.Payload["type"].(string); ok {
		return t
	}
	return ""
}

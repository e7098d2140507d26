package events

import "time"

// Kind enumerates the deep-chat signals exchanged between a conversation panel
// and the rest of the application.
type Kind string

const (
	KindOpenChat        Kind = "chat.open"
	KindUseSession      Kind = "session.use"
	KindNewSession      Kind = "session.new"
	KindSessionsRefresh Kind = "sessions.refresh"
	KindCurrentSession  Kind = "session.current"
	KindTurnResolved    Kind = "turn.resolved"
)

// Kinds lists every deep-chat kind, in subscription order.
var Kinds = []Kind{
	KindOpenChat,
	KindUseSession,
	KindNewSession,
	KindSessionsRefresh,
	KindCurrentSession,
	KindTurnResolved,
}

func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// DeepChatEvent is the typed event emitted by conversation panels.
type DeepChatEvent struct {
	Kind       Kind                   `json:"kind"`
	UserID     string                 `json:"user_id"`
	GemID      string                 `json:"gem_id"`
	SessionID  string                 `json:"session_id"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NewDeepChatEvent stamps a new event with the current time.
func NewDeepChatEvent(kind Kind, userID, gemID, sessionID string, data map[string]interface{}) DeepChatEvent {
	return DeepChatEvent{
		Kind:       kind,
		UserID:     userID,
		GemID:      gemID,
		SessionID:  sessionID,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

func (e DeepChatEvent) EventType() string {
	return "deepchat." + string(e.Kind)
}

func (e DeepChatEvent) Payload() map[string]interface{} {
	payload := map[string]interface{}{
		"kind":        string(e.Kind),
		"user_id":     e.UserID,
		"gem_id":      e.GemID,
		"session_id":  e.SessionID,
		"occurred_at": e.OccurredAt,
	}
	if len(e.Data) > 0 {
		payload["data"] = e.Data
	}
	return payload
}

func (e DeepChatEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Package events broadcasts membership and session lifecycle notifications
// to connected clients. Components that emit events depend on the Publisher
// interface, never on the concrete hub.
package events

// Event is a real-time notification about an identity-core state change.
type Event struct {
	Type        string         `json:"type"`
	Entity      string         `json:"entity"`
	Action      string         `json:"action"`
	HouseholdID int64          `json:"household_id,omitempty"`
	UserID      int64          `json:"user_id,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// NewEvent creates an Event with the Type field derived from entity and action.
func NewEvent(entity, action string, householdID, userID int64) Event {
	return Event{
		Type:        entity + "_" + action,
		Entity:      entity,
		Action:      action,
		HouseholdID: householdID,
		UserID:      userID,
	}
}

// Publisher delivers events to interested clients.
type Publisher interface {
	Publish(Event)
}

// NopPublisher discards all events. Useful in tests and when no hub is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

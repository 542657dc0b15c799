package bus

import "time"

// Event is a domain event published in-process. Kind is a dot-separated
// name ("social.request_created", "chat.message_created"); subscribers
// filter by namespace prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Now builds an event stamped with the current time.
func Now(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}

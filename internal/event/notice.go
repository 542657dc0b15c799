package event

// PushNamespace is the bus namespace for dispatcher notices. Services
// publish under it; the dispatch forwarder subscribes to it.
const PushNamespace = "push."

// Notice is the bus payload asking the dispatcher to push one event to
// a set of users. Services stay transport-free by publishing notices
// instead of talking to the websocket layer directly.
type Notice struct {
	Recipients []string
	Type       Type
	Payload    any
}

// PushKind builds the bus kind for a notice of the given type.
func PushKind(t Type) string {
	return PushNamespace + string(t)
}

package model

// User is a room-scoped participant identity.
type User struct {
	ID          string
	DisplayName string

	// Secret is an opaque reconnection token, compared for equality only.
	// Never logged and never pushed to subscribers.
	Secret string

	IsModerator bool
}

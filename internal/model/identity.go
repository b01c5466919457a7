package model

// Identity is the authenticated principal of the current session.
// It is owned by the backend's auth subsystem; the client only holds a copy.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SameIdentity reports whether a and b name the same principal (both absent counts).
func SameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

package models

// Group represents a set of people who share expenses.
// A group owns its members and expenses: deleting a group cascades to both.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Currency is the group's accounting currency code.
	Currency Currency

	// OwnerID is the user ID of the group creator.
	OwnerID string

	// InviteCode is the currently active invite code, if any.
	// Codes are issued server-side; the engine only caches the value.
	InviteCode string

	// CreatedAt is the Unix millisecond timestamp when the group was created.
	CreatedAt int64

	// UpdatedAt is the Unix millisecond timestamp of the last modification.
	// It is the Last-Write-Wins comparison key.
	UpdatedAt int64

	// Dirty marks an unsynced local mutation. Local-only.
	Dirty bool
}

// Touch stamps the group with a new modification time and marks it dirty.
func (g *Group) Touch(now int64) {
	g.UpdatedAt = now
	g.Dirty = true
}

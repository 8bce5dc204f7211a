package models

// Member represents one participant within a group.
//
// A member is either a real user (ID is their account uid) or a ghost: a
// placeholder created by another group member before the real person joined.
// Ghost membership lives on the group document remotely, so ghost edits ride
// along with the next group upload.
type Member struct {
	// ID identifies the member. Unique within a group; real members use
	// their account uid, ghosts use a generated UUID.
	ID string

	// GroupID is the group this member belongs to.
	GroupID string

	// Name is the display name.
	Name string

	// PhotoURL is an optional avatar URL for real members.
	PhotoURL string

	// IsGhost reports whether this member is a placeholder participant.
	IsGhost bool

	// MergedWithUID is the real identity a claimed ghost redirects to.
	// Empty until the ghost is claimed. Once set, the redirect is terminal:
	// it is never cleared, and an older unclaimed copy of the same member
	// must never overwrite it.
	MergedWithUID string

	// CreatedAt is the Unix millisecond timestamp when the member was created.
	CreatedAt int64

	// UpdatedAt is the Unix millisecond timestamp of the last modification.
	UpdatedAt int64

	// Dirty marks an unsynced local mutation. Local-only.
	Dirty bool
}

// Claimed reports whether this member is a ghost that has been merged into
// a real identity.
func (m *Member) Claimed() bool {
	return m.MergedWithUID != ""
}

// Package remote defines the contract the sync engine consumes from the
// networked document store: snapshot subscriptions, atomic batch upserts,
// and the server-arbitrated operations that client-side LWW cannot resolve.
package remote

import "context"

// GroupSubscription is a cancellable stream of group snapshots.
//
// Each value received from Snapshots is the full current state of the
// subscribed scope (the remote redelivers complete state on subscribe, which
// is what lets a restarted listener self-heal). The channel is closed when
// the subscription ends; Err reports the terminal stream error, or nil after
// a clean Cancel.
type GroupSubscription interface {
	Snapshots() <-chan []GroupDoc
	Err() error
	Cancel()
}

// ExpenseSubscription is a cancellable stream of expense snapshots for one
// group. Same delivery semantics as GroupSubscription.
type ExpenseSubscription interface {
	Snapshots() <-chan []ExpenseDoc
	Err() error
	Cancel()
}

// Batch is a multi-document write. The remote applies it atomically: either
// every document is upserted or none is. Upserts use merge semantics for
// group documents (absent fields are preserved server-side) and replace
// semantics for expense documents (so payers/splits maps are replaced, not
// merged; the server recomputes is_math_valid afterwards).
type Batch struct {
	Groups   []GroupDoc
	Expenses []ExpenseDoc
}

// Empty reports whether the batch contains no documents.
func (b Batch) Empty() bool {
	return len(b.Groups) == 0 && len(b.Expenses) == 0
}

// Size returns the number of documents in the batch.
func (b Batch) Size() int {
	return len(b.Groups) + len(b.Expenses)
}

// Channel abstracts the remote document store.
//
// Subscriptions may deliver soft-deleted documents; filtering is the
// consumer's concern. Unsubscribing is safe at any time.
//
// The three named operations are server-arbitrated: concurrent clients
// racing on them cannot be reconciled with timestamps alone, so the server
// picks a single winner. Losing the race surfaces as an *ArbitrationError.
type Channel interface {
	// SubscribeGroups streams snapshots of every group the user belongs to.
	SubscribeGroups(ctx context.Context, userID string) (GroupSubscription, error)

	// SubscribeExpenses streams snapshots of one group's expense collection.
	SubscribeExpenses(ctx context.Context, groupID string) (ExpenseSubscription, error)

	// PushBatch atomically upserts the batch. No partial success: on error,
	// no document was written.
	PushBatch(ctx context.Context, batch Batch) error

	// ClaimGhost links a ghost member to the calling user's identity.
	// Exactly one concurrent claimant wins; the rest get an ArbitrationError.
	ClaimGhost(ctx context.Context, groupID, ghostID string) error

	// JoinByInviteCode redeems an invite code and returns the joined group ID.
	JoinByInviteCode(ctx context.Context, code string) (string, error)

	// CreateInviteCode issues a fresh invite code for the group.
	CreateInviteCode(ctx context.Context, groupID string) (string, error)
}

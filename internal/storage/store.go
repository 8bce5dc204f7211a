// Package storage provides abstractions for the local authoritative cache.
package storage

import (
	"context"
	"errors"

	"github.com/silkfinik/fairsplit/internal/models"
)

// ErrNotFound is returned when a requested entity does not exist locally.
var ErrNotFound = errors.New("entity not found")

// Store defines the interface for the per-device cache of groups, members
// and expenses. This abstraction allows swapping storage backends (SQLite,
// in-memory, etc.) without changing the sync layer.
//
// Writes are upserts keyed by primary ID. Reads observe a consistent
// snapshot. Storage errors abort the current operation without mutating
// dirty flags.
//
// The MarkXSynced methods implement the fencing check: they clear the dirty
// flag only if the stored row's UpdatedAt still equals ackUpdatedAt (the
// value captured when the upload batch was built). If the entity was edited
// again after the batch was constructed, the flag stays set and the new edit
// is picked up by the next upload cycle. The compare-and-clear is a single
// conditional UPDATE, so no edit can slip between the compare and the write.
type Store interface {
	// GetGroup retrieves a group by ID. Returns ErrNotFound if absent.
	GetGroup(ctx context.Context, id string) (*models.Group, error)

	// ListGroups returns all locally known groups, newest first.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// UpsertGroup inserts or replaces a group by ID.
	UpsertGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes a group and, by cascade, its members and expenses.
	DeleteGroup(ctx context.Context, id string) error

	// DirtyGroups returns all groups with unsynced local mutations.
	DirtyGroups(ctx context.Context) ([]*models.Group, error)

	// MarkGroupSynced clears the group's dirty flag under the fencing check.
	MarkGroupSynced(ctx context.Context, id string, ackUpdatedAt int64) error

	// GetMember retrieves one member of a group. Returns ErrNotFound if absent.
	GetMember(ctx context.Context, groupID, memberID string) (*models.Member, error)

	// ListMembers returns all members of a group ordered by name.
	ListMembers(ctx context.Context, groupID string) ([]*models.Member, error)

	// UpsertMember inserts or replaces a member by (groupID, memberID).
	UpsertMember(ctx context.Context, member *models.Member) error

	// DeleteMember removes one member of a group.
	DeleteMember(ctx context.Context, groupID, memberID string) error

	// DirtyMembers returns all members of a group with unsynced mutations.
	DirtyMembers(ctx context.Context, groupID string) ([]*models.Member, error)

	// MarkMemberSynced clears the member's dirty flag under the fencing check.
	MarkMemberSynced(ctx context.Context, groupID, memberID string, ackUpdatedAt int64) error

	// GetExpense retrieves an expense by ID. Returns ErrNotFound if absent.
	GetExpense(ctx context.Context, id string) (*models.Expense, error)

	// ListExpenses returns all expenses of a group, newest date first.
	// Soft-deleted expenses are included; filtering is a caller concern.
	ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error)

	// UpsertExpense inserts or replaces an expense by ID.
	UpsertExpense(ctx context.Context, expense *models.Expense) error

	// DirtyExpenses returns all expenses with unsynced local mutations,
	// across every group.
	DirtyExpenses(ctx context.Context) ([]*models.Expense, error)

	// MarkExpenseSynced clears the expense's dirty flag under the fencing check.
	MarkExpenseSynced(ctx context.Context, id string, ackUpdatedAt int64) error

	// Close releases any resources held by the store.
	Close() error
}

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/silkfinik/fairsplit/internal/metrics"
	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/storage"
)

// mergeOutcome labels the decision the three-way merge rule made for one
// entity.
type mergeOutcome string

const (
	outcomeInserted    mergeOutcome = "inserted"    // no local copy existed
	outcomeOverwritten mergeOutcome = "overwritten" // local copy was clean
	outcomeRemoteWon   mergeOutcome = "remote_won"  // dirty local copy, remote newer
	outcomeLocalKept   mergeOutcome = "local_kept"  // dirty local copy, local newer or equal
)

// fallbackMemberName is used for real members whose profile carries no
// display name and who are not the current user.
const fallbackMemberName = "Participant"

// applyGroupSnapshot reconciles one full-state group snapshot. Each document
// is merged independently; a storage error on one entity is logged and does
// not block the rest, and the next snapshot redelivers full state anyway.
func (c *Coordinator) applyGroupSnapshot(ctx context.Context, docs []remote.GroupDoc) {
	for _, doc := range docs {
		outcome, err := c.mergeGroup(ctx, doc)
		if err != nil {
			c.logger.Error("failed to merge group", "group_id", doc.ID, "error", err)
			continue
		}
		metrics.MergeOutcomes.WithLabelValues(string(outcome)).Inc()

		// The embedded rosters follow the per-item rule regardless of what
		// happened to the parent row.
		c.mergeGhosts(ctx, doc)
		c.mergeRealMembers(ctx, doc)
	}
	metrics.SnapshotsApplied.WithLabelValues("groups").Inc()
	c.logger.Debug("group snapshot applied", "documents", len(docs))
}

// applyExpenseSnapshot reconciles one full-state expense snapshot for a group.
func (c *Coordinator) applyExpenseSnapshot(ctx context.Context, groupID string, docs []remote.ExpenseDoc) {
	for _, doc := range docs {
		outcome, err := c.mergeExpense(ctx, groupID, doc)
		if err != nil {
			c.logger.Error("failed to merge expense", "expense_id", doc.ID, "error", err)
			continue
		}
		metrics.MergeOutcomes.WithLabelValues(string(outcome)).Inc()
	}
	metrics.SnapshotsApplied.WithLabelValues("expenses").Inc()
	c.logger.Debug("expense snapshot applied", "group_id", groupID, "documents", len(docs))
}

// mergeGroup applies the three-way rule to one group document:
//
//  1. No local copy: insert the remote copy, clean.
//  2. Local copy clean: overwrite, nothing pending to lose.
//  3. Local copy dirty: Last-Write-Wins on UpdatedAt; a stale local edit is
//     discarded, otherwise the local copy stays until the next upload cycle.
func (c *Coordinator) mergeGroup(ctx context.Context, doc remote.GroupDoc) (mergeOutcome, error) {
	local, err := c.store.GetGroup(ctx, doc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return outcomeInserted, c.store.UpsertGroup(ctx, doc.Group())
	}
	if err != nil {
		return "", err
	}

	if !local.Dirty {
		return outcomeOverwritten, c.store.UpsertGroup(ctx, doc.Group())
	}
	if doc.UpdatedAt > local.UpdatedAt {
		return outcomeRemoteWon, c.store.UpsertGroup(ctx, doc.Group())
	}
	return outcomeLocalKept, nil
}

// mergeExpense applies the same three-way rule to one expense document.
func (c *Coordinator) mergeExpense(ctx context.Context, groupID string, doc remote.ExpenseDoc) (mergeOutcome, error) {
	local, err := c.store.GetExpense(ctx, doc.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return outcomeInserted, c.store.UpsertExpense(ctx, doc.Expense(groupID))
	}
	if err != nil {
		return "", err
	}

	if !local.Dirty {
		return outcomeOverwritten, c.store.UpsertExpense(ctx, doc.Expense(groupID))
	}
	if doc.UpdatedAt > local.UpdatedAt {
		return outcomeRemoteWon, c.store.UpsertExpense(ctx, doc.Expense(groupID))
	}
	return outcomeLocalKept, nil
}

// mergeGhosts reconciles the embedded ghost roster per item.
//
// A claimed ghost is terminal: once merged_with_uid is set locally, a
// snapshot that carries the same ghost unclaimed never reverts it. The claim
// stamps a newer timestamp server-side, so under LWW this guard only fires
// for genuinely stale snapshots.
func (c *Coordinator) mergeGhosts(ctx context.Context, doc remote.GroupDoc) {
	for ghostID, ghost := range doc.Ghosts {
		local, err := c.store.GetMember(ctx, doc.ID, ghostID)
		if errors.Is(err, storage.ErrNotFound) {
			if err := c.store.UpsertMember(ctx, ghost.GhostMember(ghostID, doc.ID, doc.UpdatedAt)); err != nil {
				c.logger.Error("failed to insert ghost", "group_id", doc.ID, "ghost_id", ghostID, "error", err)
			}
			continue
		}
		if err != nil {
			c.logger.Error("failed to read ghost", "group_id", doc.ID, "ghost_id", ghostID, "error", err)
			continue
		}

		if local.Claimed() && ghost.MergedWithUID == "" {
			c.logger.Debug("ignoring stale unclaimed ghost", "group_id", doc.ID, "ghost_id", ghostID)
			continue
		}

		if local.Dirty && doc.UpdatedAt <= local.UpdatedAt {
			continue
		}

		if local.Name == ghost.Name && local.MergedWithUID == ghost.MergedWithUID {
			continue
		}
		local.Name = ghost.Name
		local.MergedWithUID = ghost.MergedWithUID
		if doc.UpdatedAt > local.UpdatedAt {
			local.UpdatedAt = doc.UpdatedAt
		}
		local.Dirty = false
		if err := c.store.UpsertMember(ctx, local); err != nil {
			c.logger.Error("failed to update ghost", "group_id", doc.ID, "ghost_id", ghostID, "error", err)
		}
	}
}

// mergeRealMembers hydrates member rows for the uids listed on the group
// document, using the embedded profiles for display data. The current user's
// own row falls back to the session display name when the profile is blank.
func (c *Coordinator) mergeRealMembers(ctx context.Context, doc remote.GroupDoc) {
	currentUID, _ := c.session.UserID()

	for _, memberID := range doc.Members {
		profile, hasProfile := doc.MemberProfiles[memberID]

		name := ""
		photoURL := ""
		if hasProfile {
			name = profile.DisplayName
			photoURL = profile.PhotoURL
		}
		if name == "" && memberID == currentUID {
			name = c.session.DisplayName()
		}
		if name == "" {
			name = fallbackMemberName
		}

		local, err := c.store.GetMember(ctx, doc.ID, memberID)
		if errors.Is(err, storage.ErrNotFound) {
			now := time.Now().UnixMilli()
			member := &models.Member{
				ID:        memberID,
				GroupID:   doc.ID,
				Name:      name,
				PhotoURL:  photoURL,
				IsGhost:   false,
				CreatedAt: now,
				UpdatedAt: now,
				Dirty:     false,
			}
			if err := c.store.UpsertMember(ctx, member); err != nil {
				c.logger.Error("failed to insert member", "group_id", doc.ID, "member_id", memberID, "error", err)
			}
			continue
		}
		if err != nil {
			c.logger.Error("failed to read member", "group_id", doc.ID, "member_id", memberID, "error", err)
			continue
		}

		if local.Dirty {
			continue
		}
		if local.Name == name && local.PhotoURL == photoURL {
			continue
		}
		local.Name = name
		local.PhotoURL = photoURL
		if err := c.store.UpsertMember(ctx, local); err != nil {
			c.logger.Error("failed to update member", "group_id", doc.ID, "member_id", memberID, "error", err)
		}
	}
}

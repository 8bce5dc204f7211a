package sync

import (
	"context"
	"log/slog"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/metrics"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/storage"
)

// memberAck identifies a member submitted in a group batch, with its fencing
// token.
type memberAck struct {
	groupID   string
	memberID  string
	updatedAt int64
}

// Uploader pushes dirty local rows to the remote store.
//
// Each cycle reads every dirty entity present at batch-construction time,
// captures each row's UpdatedAt as a fencing token, pushes one atomic batch
// per scope, and clears dirty flags only under the fencing check. A failed
// push leaves the whole batch dirty; the periodic scheduler retries with
// backoff. Re-pushing unchanged content is a no-op upsert remotely, so
// repeated attempts after a false-negative failure are safe.
type Uploader struct {
	store   storage.Store
	channel remote.Channel
	session *auth.Session
	logger  *slog.Logger
}

// NewUploader creates an Uploader with the given dependencies.
func NewUploader(store storage.Store, channel remote.Channel, session *auth.Session, logger *slog.Logger) *Uploader {
	return &Uploader{store: store, channel: channel, session: session, logger: logger}
}

// SyncLocalChanges pushes all dirty groups (with their member rosters) and
// all dirty expenses. Without a session it is a silent no-op. A transient
// error is returned for the scheduler to retry; no dirty flag is touched on
// failure.
func (u *Uploader) SyncLocalChanges(ctx context.Context) error {
	if _, ok := u.session.UserID(); !ok {
		u.logger.Debug("upload skipped, no session")
		return nil
	}

	if err := u.pushGroups(ctx); err != nil {
		return err
	}
	return u.pushExpenses(ctx)
}

// pushGroups uploads every dirty group as a full document including its
// current member and ghost roster, so a freshly created ghost rides along
// with the group push. Dirty member rows submitted inside a roster get their
// own fenced acknowledgment.
func (u *Uploader) pushGroups(ctx context.Context) error {
	dirtyGroups, err := u.store.DirtyGroups(ctx)
	if err != nil {
		return err
	}
	if len(dirtyGroups) == 0 {
		return nil
	}

	batch := remote.Batch{}
	groupAcks := make(map[string]int64, len(dirtyGroups))
	var memberAcks []memberAck

	for _, group := range dirtyGroups {
		members, err := u.store.ListMembers(ctx, group.ID)
		if err != nil {
			return err
		}
		batch.Groups = append(batch.Groups, remote.GroupDocFromModel(group, members))
		groupAcks[group.ID] = group.UpdatedAt

		for _, m := range members {
			if m.Dirty {
				memberAcks = append(memberAcks, memberAck{
					groupID:   group.ID,
					memberID:  m.ID,
					updatedAt: m.UpdatedAt,
				})
			}
		}
	}

	if err := u.channel.PushBatch(ctx, batch); err != nil {
		metrics.PushBatches.WithLabelValues("failed").Inc()
		u.logger.Warn("group batch push failed", "groups", len(batch.Groups), "error", err)
		return remote.Transient("push groups", err)
	}

	for id, ack := range groupAcks {
		if err := u.store.MarkGroupSynced(ctx, id, ack); err != nil {
			return err
		}
	}
	for _, ack := range memberAcks {
		if err := u.store.MarkMemberSynced(ctx, ack.groupID, ack.memberID, ack.updatedAt); err != nil {
			return err
		}
	}

	metrics.PushBatches.WithLabelValues("ok").Inc()
	metrics.EntitiesUploaded.Add(float64(len(batch.Groups)))
	u.logger.Info("uploaded groups", "count", len(batch.Groups))
	return nil
}

// pushExpenses uploads every dirty expense across all groups in one atomic
// batch.
func (u *Uploader) pushExpenses(ctx context.Context) error {
	dirtyExpenses, err := u.store.DirtyExpenses(ctx)
	if err != nil {
		return err
	}
	if len(dirtyExpenses) == 0 {
		return nil
	}

	batch := remote.Batch{}
	acks := make(map[string]int64, len(dirtyExpenses))
	for _, expense := range dirtyExpenses {
		batch.Expenses = append(batch.Expenses, remote.ExpenseDocFromModel(expense))
		acks[expense.ID] = expense.UpdatedAt
	}

	if err := u.channel.PushBatch(ctx, batch); err != nil {
		metrics.PushBatches.WithLabelValues("failed").Inc()
		u.logger.Warn("expense batch push failed", "expenses", len(batch.Expenses), "error", err)
		return remote.Transient("push expenses", err)
	}

	for id, ack := range acks {
		if err := u.store.MarkExpenseSynced(ctx, id, ack); err != nil {
			return err
		}
	}

	metrics.PushBatches.WithLabelValues("ok").Inc()
	metrics.EntitiesUploaded.Add(float64(len(batch.Expenses)))
	u.logger.Info("uploaded expenses", "count", len(batch.Expenses))
	return nil
}

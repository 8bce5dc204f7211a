// Package identity manages the ghost-participant lifecycle: creating
// placeholder members, claiming them into real identities via server
// arbitration, and the invite-code flow for joining groups.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/metrics"
	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/storage"
)

// Resolver handles ghost members and group membership transitions.
//
// Claims must be server-arbitrated: two clients can race to claim the same
// ghost and only the server can pick one winner. Everything else here is a
// plain local mutation that the uploader publishes later.
type Resolver struct {
	store   storage.Store
	channel remote.Channel
	session *auth.Session
	logger  *slog.Logger
}

// NewResolver creates a Resolver with the given dependencies.
func NewResolver(store storage.Store, channel remote.Channel, session *auth.Session, logger *slog.Logger) *Resolver {
	return &Resolver{store: store, channel: channel, session: session, logger: logger}
}

// CreateGhost adds a placeholder member to a group and returns its ID.
//
// The ghost row is created dirty, and the owning group is marked dirty too:
// ghost membership lives on the group document remotely, so the new ghost
// rides along with the next group push.
func (r *Resolver) CreateGhost(ctx context.Context, groupID, name string) (string, error) {
	group, err := r.store.GetGroup(ctx, groupID)
	if err != nil {
		return "", fmt.Errorf("failed to load group: %w", err)
	}

	now := time.Now().UnixMilli()
	ghost := &models.Member{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Name:      name,
		IsGhost:   true,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
	if err := r.store.UpsertMember(ctx, ghost); err != nil {
		return "", fmt.Errorf("failed to insert ghost: %w", err)
	}

	group.Touch(now)
	if err := r.store.UpsertGroup(ctx, group); err != nil {
		return "", fmt.Errorf("failed to mark group for sync: %w", err)
	}

	r.logger.Info("ghost created", "group_id", groupID, "ghost_id", ghost.ID)
	return ghost.ID, nil
}

// ClaimGhost links a ghost to the current user's identity through server
// arbitration.
//
// On success the local ghost row is patched optimistically with the accepted
// outcome: mergedWithUid set, dirty false, because the row already matches
// what the server decided. On failure nothing local changes and the error is
// surfaced to the caller once; a lost race would lose again on retry.
func (r *Resolver) ClaimGhost(ctx context.Context, groupID, ghostID string) error {
	userID, ok := r.session.UserID()
	if !ok {
		return remote.ErrAuthMissing
	}

	if err := r.channel.ClaimGhost(ctx, groupID, ghostID); err != nil {
		if remote.IsArbitrationRejected(err) {
			metrics.GhostClaims.WithLabelValues("rejected").Inc()
		} else {
			metrics.GhostClaims.WithLabelValues("error").Inc()
		}
		return err
	}

	ghost, err := r.store.GetMember(ctx, groupID, ghostID)
	if errors.Is(err, storage.ErrNotFound) {
		// Not hydrated locally yet: the next group snapshot carries the
		// claimed ghost.
		metrics.GhostClaims.WithLabelValues("ok").Inc()
		return nil
	}
	if err != nil {
		return err
	}

	ghost.MergedWithUID = userID
	ghost.UpdatedAt = time.Now().UnixMilli()
	ghost.Dirty = false
	if err := r.store.UpsertMember(ctx, ghost); err != nil {
		return fmt.Errorf("failed to patch claimed ghost: %w", err)
	}

	metrics.GhostClaims.WithLabelValues("ok").Inc()
	r.logger.Info("ghost claimed", "group_id", groupID, "ghost_id", ghostID, "user_id", userID)
	return nil
}

// JoinGroup redeems an invite code and returns the joined group's ID. The
// group itself arrives through the next snapshot once the server has added
// the user to its member list.
func (r *Resolver) JoinGroup(ctx context.Context, code string) (string, error) {
	if _, ok := r.session.UserID(); !ok {
		return "", remote.ErrAuthMissing
	}

	groupID, err := r.channel.JoinByInviteCode(ctx, code)
	if err != nil {
		return "", err
	}
	r.logger.Info("joined group by invite", "group_id", groupID)
	return groupID, nil
}

// CreateInviteCode issues a fresh invite code for a group and caches it on
// the local group row.
func (r *Resolver) CreateInviteCode(ctx context.Context, groupID string) (string, error) {
	if _, ok := r.session.UserID(); !ok {
		return "", remote.ErrAuthMissing
	}

	code, err := r.channel.CreateInviteCode(ctx, groupID)
	if err != nil {
		return "", err
	}

	group, err := r.store.GetGroup(ctx, groupID)
	if err == nil {
		group.InviteCode = code
		if err := r.store.UpsertGroup(ctx, group); err != nil {
			r.logger.Warn("failed to cache invite code", "group_id", groupID, "error", err)
		}
	}
	return code, nil
}

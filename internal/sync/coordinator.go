// Package sync keeps the local cache and the remote document store
// convergent: the Coordinator reconciles incoming snapshots with
// Last-Write-Wins, the Uploader pushes dirty rows with fenced
// acknowledgments.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/metrics"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/storage"
)

// Coordinator subscribes to remote scopes and merges incoming snapshots into
// the local store. One instance owns all active subscriptions; it is
// constructed with its dependencies and has an explicit start/stop
// lifecycle per scope.
//
// A stream error terminates that subscription and is logged. The coordinator
// never resubscribes on its own: restart is the caller's responsibility. A
// fresh subscribe redelivers full state, so any gap self-heals.
type Coordinator struct {
	store   storage.Store
	channel remote.Channel
	session *auth.Session
	logger  *slog.Logger

	mu          stdsync.Mutex
	groupSub    remote.GroupSubscription
	groupDone   chan struct{}
	expenseSubs map[string]remote.ExpenseSubscription
	expenseDone map[string]chan struct{}
}

// NewCoordinator creates a Coordinator with the given dependencies.
func NewCoordinator(store storage.Store, channel remote.Channel, session *auth.Session, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:       store,
		channel:     channel,
		session:     session,
		logger:      logger,
		expenseSubs: make(map[string]remote.ExpenseSubscription),
		expenseDone: make(map[string]chan struct{}),
	}
}

// StartGroups begins listening to the current user's group scope.
// Without a session the call is a silent no-op. If already listening,
// the existing subscription is kept.
func (c *Coordinator) StartGroups(ctx context.Context) error {
	userID, ok := c.session.UserID()
	if !ok {
		c.logger.Debug("group sync skipped, no session")
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groupSub != nil {
		return nil
	}

	sub, err := c.channel.SubscribeGroups(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to groups: %w", err)
	}
	done := make(chan struct{})
	c.groupSub = sub
	c.groupDone = done

	go func() {
		defer close(done)
		for docs := range sub.Snapshots() {
			c.applyGroupSnapshot(ctx, docs)
		}
		if err := sub.Err(); err != nil {
			metrics.StreamErrors.WithLabelValues("groups").Inc()
			c.logger.Error("group subscription terminated", "error", err)
		}
		c.mu.Lock()
		if c.groupSub == sub {
			c.groupSub = nil
			c.groupDone = nil
		}
		c.mu.Unlock()
	}()

	c.logger.Info("group sync started", "user_id", userID)
	return nil
}

// StopGroups cancels the group subscription and waits for the last snapshot
// to finish applying. Safe to call when not listening.
func (c *Coordinator) StopGroups() {
	c.mu.Lock()
	sub, done := c.groupSub, c.groupDone
	c.groupSub = nil
	c.groupDone = nil
	c.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Cancel()
	<-done
	c.logger.Info("group sync stopped")
}

// StartExpenses begins listening to one group's expense collection.
// Already-listening groups are left alone.
func (c *Coordinator) StartExpenses(ctx context.Context, groupID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.expenseSubs[groupID]; ok {
		return nil
	}

	sub, err := c.channel.SubscribeExpenses(ctx, groupID)
	if err != nil {
		return fmt.Errorf("failed to subscribe to expenses for group %s: %w", groupID, err)
	}
	done := make(chan struct{})
	c.expenseSubs[groupID] = sub
	c.expenseDone[groupID] = done

	go func() {
		defer close(done)
		for docs := range sub.Snapshots() {
			c.applyExpenseSnapshot(ctx, groupID, docs)
		}
		if err := sub.Err(); err != nil {
			metrics.StreamErrors.WithLabelValues("expenses").Inc()
			c.logger.Error("expense subscription terminated", "group_id", groupID, "error", err)
		}
		c.mu.Lock()
		if c.expenseSubs[groupID] == sub {
			delete(c.expenseSubs, groupID)
			delete(c.expenseDone, groupID)
		}
		c.mu.Unlock()
	}()

	c.logger.Info("expense sync started", "group_id", groupID)
	return nil
}

// StopExpenses cancels the expense subscription for one group and waits for
// the last snapshot to finish applying. Safe to call when not listening.
func (c *Coordinator) StopExpenses(groupID string) {
	c.mu.Lock()
	sub := c.expenseSubs[groupID]
	done := c.expenseDone[groupID]
	delete(c.expenseSubs, groupID)
	delete(c.expenseDone, groupID)
	c.mu.Unlock()

	if sub == nil {
		return
	}
	sub.Cancel()
	<-done
	c.logger.Info("expense sync stopped", "group_id", groupID)
}

// Stop cancels every active subscription.
func (c *Coordinator) Stop() {
	c.StopGroups()

	c.mu.Lock()
	groupIDs := make([]string, 0, len(c.expenseSubs))
	for id := range c.expenseSubs {
		groupIDs = append(groupIDs, id)
	}
	c.mu.Unlock()

	for _, id := range groupIDs {
		c.StopExpenses(id)
	}
}

// Package engine wires the sync components into the facade the hosting
// application drives: start/stop listeners, local mutations, ghost and
// invite operations, and balance reads.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/balance"
	"github.com/silkfinik/fairsplit/internal/identity"
	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/scheduler"
	"github.com/silkfinik/fairsplit/internal/storage"
	syncpkg "github.com/silkfinik/fairsplit/internal/sync"
)

// Engine is the top-level sync engine handle.
//
// Local mutations write to the store with dirty=true and kick the upload
// scheduler; remote state flows in through the coordinator's subscriptions.
// Background failures are retried silently; only explicit user actions
// (create/join group, claim ghost) surface errors to the caller.
type Engine struct {
	store       storage.Store
	session     *auth.Session
	logger      *slog.Logger
	coordinator *syncpkg.Coordinator
	uploader    *syncpkg.Uploader
	resolver    *identity.Resolver
	scheduler   *scheduler.Scheduler
}

// Config holds the dependencies for New.
type Config struct {
	Store    storage.Store
	Channel  remote.Channel
	Session  *auth.Session
	Logger   *slog.Logger
	CronSpec string // upload cadence, robfig/cron syntax; empty for default
}

// New assembles an Engine. The engine owns the coordinator, uploader,
// resolver and scheduler; the caller owns the store, channel and session.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	uploader := syncpkg.NewUploader(cfg.Store, cfg.Channel, cfg.Session, logger)
	return &Engine{
		store:       cfg.Store,
		session:     cfg.Session,
		logger:      logger,
		coordinator: syncpkg.NewCoordinator(cfg.Store, cfg.Channel, cfg.Session, logger),
		uploader:    uploader,
		resolver:    identity.NewResolver(cfg.Store, cfg.Channel, cfg.Session, logger),
		scheduler:   scheduler.New(uploader.SyncLocalChanges, cfg.CronSpec, logger),
	}
}

// Start launches the upload scheduler. Listeners are started separately per
// scope.
func (e *Engine) Start() error {
	return e.scheduler.Start()
}

// Stop cancels every subscription and halts the scheduler.
func (e *Engine) Stop() {
	e.coordinator.Stop()
	e.scheduler.Stop()
}

// StartGroupSync begins listening to the current user's groups.
func (e *Engine) StartGroupSync(ctx context.Context) error {
	return e.coordinator.StartGroups(ctx)
}

// StopGroupSync stops the group listener.
func (e *Engine) StopGroupSync() {
	e.coordinator.StopGroups()
}

// StartExpenseSync begins listening to one group's expenses.
func (e *Engine) StartExpenseSync(ctx context.Context, groupID string) error {
	return e.coordinator.StartExpenses(ctx, groupID)
}

// StopExpenseSync stops one group's expense listener.
func (e *Engine) StopExpenseSync(groupID string) {
	e.coordinator.StopExpenses(groupID)
}

// TriggerSync requests an upload cycle as soon as possible.
func (e *Engine) TriggerSync() {
	e.scheduler.Kick()
}

// CreateGroup creates a group owned by the current user, with the user as
// its first member, and schedules an upload.
func (e *Engine) CreateGroup(ctx context.Context, name string, currency models.Currency) (string, error) {
	userID, ok := e.session.UserID()
	if !ok {
		return "", remote.ErrAuthMissing
	}

	now := time.Now().UnixMilli()
	group := &models.Group{
		ID:        uuid.New().String(),
		Name:      name,
		Currency:  currency.OrDefault(),
		OwnerID:   userID,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
	if err := e.store.UpsertGroup(ctx, group); err != nil {
		return "", err
	}

	ownerName := e.session.DisplayName()
	if ownerName == "" {
		ownerName = "Me"
	}
	owner := &models.Member{
		ID:        userID,
		GroupID:   group.ID,
		Name:      ownerName,
		IsGhost:   false,
		CreatedAt: now,
		UpdatedAt: now,
		Dirty:     true,
	}
	if err := e.store.UpsertMember(ctx, owner); err != nil {
		return "", err
	}

	e.scheduler.Kick()
	e.logger.Info("group created", "group_id", group.ID, "name", name)
	return group.ID, nil
}

// UpdateGroup renames a group or changes its currency, and schedules an
// upload.
func (e *Engine) UpdateGroup(ctx context.Context, groupID, name string, currency models.Currency) error {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	group.Name = name
	group.Currency = currency.OrDefault()
	group.Touch(time.Now().UnixMilli())
	if err := e.store.UpsertGroup(ctx, group); err != nil {
		return err
	}
	e.scheduler.Kick()
	return nil
}

// AddExpense records a new expense and schedules an upload. Missing ID,
// creator and timestamps are filled in; the category is normalized.
func (e *Engine) AddExpense(ctx context.Context, expense *models.Expense) (string, error) {
	if _, err := e.store.GetGroup(ctx, expense.GroupID); err != nil {
		return "", fmt.Errorf("expense group: %w", err)
	}

	now := time.Now().UnixMilli()
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatorID == "" {
		expense.CreatorID, _ = e.session.UserID()
	}
	if expense.Date == 0 {
		expense.Date = now
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	expense.Category = string(models.CategoryFromID(expense.Category))
	expense.Currency = expense.Currency.OrDefault()
	expense.UpdatedAt = now
	expense.Dirty = true

	if err := e.store.UpsertExpense(ctx, expense); err != nil {
		return "", err
	}
	e.scheduler.Kick()
	e.logger.Info("expense added", "expense_id", expense.ID, "group_id", expense.GroupID)
	return expense.ID, nil
}

// UpdateExpense replaces an expense's content and schedules an upload.
func (e *Engine) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.Category = string(models.CategoryFromID(expense.Category))
	expense.Touch(time.Now().UnixMilli())
	if err := e.store.UpsertExpense(ctx, expense); err != nil {
		return err
	}
	e.scheduler.Kick()
	return nil
}

// DeleteExpense soft-deletes an expense. The tombstone syncs like any other
// edit and is excluded from balances.
func (e *Engine) DeleteExpense(ctx context.Context, expenseID string) error {
	expense, err := e.store.GetExpense(ctx, expenseID)
	if err != nil {
		return err
	}
	expense.IsDeleted = true
	expense.Touch(time.Now().UnixMilli())
	if err := e.store.UpsertExpense(ctx, expense); err != nil {
		return err
	}
	e.scheduler.Kick()
	e.logger.Info("expense deleted", "expense_id", expenseID)
	return nil
}

// CreateGhost adds a placeholder member to a group.
func (e *Engine) CreateGhost(ctx context.Context, groupID, name string) (string, error) {
	ghostID, err := e.resolver.CreateGhost(ctx, groupID, name)
	if err != nil {
		return "", err
	}
	e.scheduler.Kick()
	return ghostID, nil
}

// ClaimGhost links a ghost to the current user via server arbitration.
func (e *Engine) ClaimGhost(ctx context.Context, groupID, ghostID string) error {
	return e.resolver.ClaimGhost(ctx, groupID, ghostID)
}

// JoinGroup redeems an invite code and schedules a sync so the joined group
// hydrates promptly.
func (e *Engine) JoinGroup(ctx context.Context, code string) (string, error) {
	groupID, err := e.resolver.JoinGroup(ctx, code)
	if err != nil {
		return "", err
	}
	e.scheduler.Kick()
	return groupID, nil
}

// CreateInviteCode issues an invite code for a group.
func (e *Engine) CreateInviteCode(ctx context.Context, groupID string) (string, error) {
	return e.resolver.CreateInviteCode(ctx, groupID)
}

// GroupBalances computes the group's current net balances.
func (e *Engine) GroupBalances(ctx context.Context, groupID string) (map[string]decimal.Decimal, error) {
	expenses, err := e.store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := e.store.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return balance.Calculate(expenses, members), nil
}

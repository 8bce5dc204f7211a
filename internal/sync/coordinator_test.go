package sync

import (
	"context"
	"testing"
	"time"

	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/remote/remotetest"
)

// waitFor polls until check passes or the deadline expires.
func waitFor(t *testing.T, message string, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestCoordinatorGroupSync(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	session := newTestSession(t, "u1", "Alice")
	coordinator := NewCoordinator(store, server, session, testLogger())
	ctx := context.Background()

	server.SeedGroup(remote.GroupDoc{
		ID: "g1", Name: "Trip", Currency: "USD", OwnerID: "u1",
		Members: []string{"u1"}, UpdatedAt: 100,
		Ghosts: map[string]remote.GhostDoc{"ghost1": {Name: "Bob"}},
	})

	if err := coordinator.StartGroups(ctx); err != nil {
		t.Fatalf("StartGroups failed: %v", err)
	}
	defer coordinator.Stop()

	t.Run("initial snapshot hydrates the store", func(t *testing.T) {
		waitFor(t, "group never hydrated", func() bool {
			_, err := store.GetGroup(ctx, "g1")
			return err == nil
		})
		waitFor(t, "ghost never hydrated", func() bool {
			_, err := store.GetMember(ctx, "g1", "ghost1")
			return err == nil
		})
	})

	t.Run("later snapshots keep flowing", func(t *testing.T) {
		server.SeedGroup(remote.GroupDoc{
			ID: "g1", Name: "Trip 2026", Currency: "USD", OwnerID: "u1",
			Members: []string{"u1"}, UpdatedAt: 200,
		})
		waitFor(t, "rename never arrived", func() bool {
			got, err := store.GetGroup(ctx, "g1")
			return err == nil && got.Name == "Trip 2026"
		})
	})

	t.Run("StopGroups is idempotent", func(t *testing.T) {
		coordinator.StopGroups()
		coordinator.StopGroups()
	})
}

func TestCoordinatorExpenseSync(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	coordinator := NewCoordinator(store, server, newTestSession(t, "u1", "Alice"), testLogger())
	ctx := context.Background()

	server.SeedGroup(remote.GroupDoc{
		ID: "g1", Name: "Trip", Currency: "USD", OwnerID: "u1",
		Members: []string{"u1"}, UpdatedAt: 100,
	})
	server.SeedExpense(remote.ExpenseDoc{
		ID: "e1", GroupID: "g1", Description: "Dinner", Amount: 40,
		Currency: "USD", CreatorID: "u1",
		Payers: map[string]float64{"u1": 40}, Splits: map[string]float64{"u1": 40},
		UpdatedAt: 100,
	})

	if err := coordinator.StartGroups(ctx); err != nil {
		t.Fatalf("StartGroups failed: %v", err)
	}
	if err := coordinator.StartExpenses(ctx, "g1"); err != nil {
		t.Fatalf("StartExpenses failed: %v", err)
	}
	defer coordinator.Stop()

	waitFor(t, "expense never hydrated", func() bool {
		_, err := store.GetExpense(ctx, "e1")
		return err == nil
	})

	coordinator.StopExpenses("g1")

	// No subscription left, so a new remote expense must not arrive.
	server.SeedExpense(remote.ExpenseDoc{
		ID: "e2", GroupID: "g1", Description: "Taxi", Amount: 10,
		Currency: "USD", CreatorID: "u1",
		Payers: map[string]float64{"u1": 10}, Splits: map[string]float64{"u1": 10},
		UpdatedAt: 200,
	})
	time.Sleep(50 * time.Millisecond)
	if _, err := store.GetExpense(ctx, "e2"); err == nil {
		t.Error("Expected no delivery after StopExpenses")
	}
}

func TestCoordinatorWithoutSession(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	coordinator := NewCoordinator(store, server, newTestSession(t, "", ""), testLogger())

	// No session means no subscription and no error.
	if err := coordinator.StartGroups(context.Background()); err != nil {
		t.Fatalf("StartGroups failed: %v", err)
	}
	coordinator.StopGroups()
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/remote/remotetest"
	"github.com/silkfinik/fairsplit/internal/storage"
	"github.com/silkfinik/fairsplit/internal/storage/sqlite"
)

const testSecret = "test-secret"

func newTestSession(t *testing.T, userID, displayName string) *auth.Session {
	t.Helper()

	session := auth.NewSession(testSecret)
	if userID == "" {
		return session
	}

	claims := &auth.Claims{
		UserID:      userID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign test token: %v", err)
	}
	if err := session.SetToken(token); err != nil {
		t.Fatalf("Failed to install test token: %v", err)
	}
	return session
}

func newTestEngine(t *testing.T, userID string) (*Engine, storage.Store, *remotetest.Server) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "fairsplit-engine-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	server := remotetest.NewServer()
	server.CurrentUser = userID

	eng := New(Config{
		Store:   store,
		Channel: server,
		Session: newTestSession(t, userID, "Alice"),
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	})
	return eng, store, server
}

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

func TestEngineLocalMutations(t *testing.T) {
	eng, store, _ := newTestEngine(t, "u1")
	ctx := context.Background()

	groupID, err := eng.CreateGroup(ctx, "Trip", "EUR")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("CreateGroup writes a dirty group and owner member", func(t *testing.T) {
		group, err := store.GetGroup(ctx, groupID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !group.Dirty || group.OwnerID != "u1" || group.Currency != "EUR" {
			t.Errorf("Unexpected group row: %+v", group)
		}

		owner, err := store.GetMember(ctx, groupID, "u1")
		if err != nil {
			t.Fatalf("GetMember failed: %v", err)
		}
		if !owner.Dirty || owner.IsGhost || owner.Name != "Alice" {
			t.Errorf("Unexpected owner row: %+v", owner)
		}
	})

	t.Run("AddExpense fills defaults and marks dirty", func(t *testing.T) {
		expenseID, err := eng.AddExpense(ctx, &models.Expense{
			GroupID:     groupID,
			Description: "Dinner",
			Amount:      60,
			Payers:      map[string]float64{"u1": 60},
			Splits:      map[string]float64{"u1": 60},
			Category:    "not-a-category",
		})
		if err != nil {
			t.Fatalf("AddExpense failed: %v", err)
		}

		expense, err := store.GetExpense(ctx, expenseID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if !expense.Dirty || expense.CreatorID != "u1" || expense.Date == 0 {
			t.Errorf("Unexpected expense row: %+v", expense)
		}
		if expense.Category != string(models.CategoryOther) {
			t.Errorf("Expected category normalized to other, got %q", expense.Category)
		}
		if expense.Currency != "USD" {
			t.Errorf("Expected default currency, got %q", expense.Currency)
		}
	})

	t.Run("DeleteExpense leaves a tombstone", func(t *testing.T) {
		expenseID, err := eng.AddExpense(ctx, &models.Expense{
			GroupID: groupID, Description: "Refunded", Amount: 10,
			Payers: map[string]float64{"u1": 10}, Splits: map[string]float64{"u1": 10},
		})
		if err != nil {
			t.Fatalf("AddExpense failed: %v", err)
		}
		if err := eng.DeleteExpense(ctx, expenseID); err != nil {
			t.Fatalf("DeleteExpense failed: %v", err)
		}

		expense, _ := store.GetExpense(ctx, expenseID)
		if !expense.IsDeleted || !expense.Dirty {
			t.Errorf("Expected dirty tombstone, got %+v", expense)
		}
	})

	t.Run("GroupBalances folds the ledger", func(t *testing.T) {
		ghostID, err := eng.CreateGhost(ctx, groupID, "Bob")
		if err != nil {
			t.Fatalf("CreateGhost failed: %v", err)
		}
		if _, err := eng.AddExpense(ctx, &models.Expense{
			GroupID: groupID, Description: "Taxi", Amount: 20,
			Payers: map[string]float64{"u1": 20},
			Splits: map[string]float64{"u1": 10, ghostID: 10},
		}); err != nil {
			t.Fatalf("AddExpense failed: %v", err)
		}

		balances, err := eng.GroupBalances(ctx, groupID)
		if err != nil {
			t.Fatalf("GroupBalances failed: %v", err)
		}
		if !balances[ghostID].Equal(decimal.NewFromInt(-10)) {
			t.Errorf("Expected ghost to owe 10, got %s", balances[ghostID])
		}
	})
}

func TestEngineRequiresSessionForCreateGroup(t *testing.T) {
	eng, _, _ := newTestEngine(t, "")

	_, err := eng.CreateGroup(context.Background(), "Trip", "USD")
	if !errors.Is(err, remote.ErrAuthMissing) {
		t.Errorf("Expected ErrAuthMissing, got %v", err)
	}
}

func TestEngineRoundTrip(t *testing.T) {
	eng, store, server := newTestEngine(t, "u1")
	ctx := context.Background()

	if err := eng.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer eng.Stop()

	groupID, err := eng.CreateGroup(ctx, "Trip", "USD")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	// The kick from CreateGroup drives the upload in the background.
	waitFor(t, "group never reached the server", func() bool {
		_, ok := server.Group(groupID)
		return ok
	})
	waitFor(t, "dirty flag never cleared", func() bool {
		group, err := store.GetGroup(ctx, groupID)
		return err == nil && !group.Dirty
	})

	// A second device's activity arrives through the subscription.
	if err := eng.StartGroupSync(ctx); err != nil {
		t.Fatalf("StartGroupSync failed: %v", err)
	}
	if err := eng.StartExpenseSync(ctx, groupID); err != nil {
		t.Fatalf("StartExpenseSync failed: %v", err)
	}

	server.SeedExpense(remote.ExpenseDoc{
		ID: "e-theirs", GroupID: groupID, Description: "Hotel", Amount: 200,
		Currency: "USD", CreatorID: "u2",
		Payers: map[string]float64{"u2": 200}, Splits: map[string]float64{"u1": 100, "u2": 100},
		UpdatedAt: time.Now().UnixMilli(),
	})
	waitFor(t, "remote expense never hydrated", func() bool {
		_, err := store.GetExpense(ctx, "e-theirs")
		return err == nil
	})

	balances, err := eng.GroupBalances(ctx, groupID)
	if err != nil {
		t.Fatalf("GroupBalances failed: %v", err)
	}
	if !balances["u1"].Equal(decimal.NewFromInt(-100)) {
		t.Errorf("Expected u1 to owe 100, got %s", balances["u1"])
	}
}

package sync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/silkfinik/fairsplit/internal/auth"
	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/remote"
	"github.com/silkfinik/fairsplit/internal/remote/remotetest"
	"github.com/silkfinik/fairsplit/internal/storage"
	"github.com/silkfinik/fairsplit/internal/storage/sqlite"
)

const testSecret = "test-secret"

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "fairsplit-sync-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newTestSession returns a session logged in as userID.
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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMergeGroup(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	coordinator := NewCoordinator(store, server, newTestSession(t, "u1", "Alice"), testLogger())
	ctx := context.Background()

	doc := remote.GroupDoc{
		ID: "g1", Name: "Trip", Currency: "USD", OwnerID: "u1",
		Members: []string{"u1"}, CreatedAt: 100, UpdatedAt: 200,
	}

	t.Run("inserts when no local copy exists", func(t *testing.T) {
		outcome, err := coordinator.mergeGroup(ctx, doc)
		if err != nil {
			t.Fatalf("mergeGroup failed: %v", err)
		}
		if outcome != outcomeInserted {
			t.Errorf("Expected inserted, got %s", outcome)
		}

		got, err := store.GetGroup(ctx, "g1")
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.Name != "Trip" || got.Dirty {
			t.Errorf("Expected clean hydrated row, got %+v", got)
		}
	})

	t.Run("overwrites a clean local copy even if older remote", func(t *testing.T) {
		stale := doc
		stale.Name = "Trip (old)"
		stale.UpdatedAt = 150

		outcome, err := coordinator.mergeGroup(ctx, stale)
		if err != nil {
			t.Fatalf("mergeGroup failed: %v", err)
		}
		if outcome != outcomeOverwritten {
			t.Errorf("Expected overwritten, got %s", outcome)
		}

		got, _ := store.GetGroup(ctx, "g1")
		if got.Name != "Trip (old)" {
			t.Errorf("Expected remote copy to win over clean local, got %q", got.Name)
		}
	})

	t.Run("keeps a dirty local copy with newer timestamp", func(t *testing.T) {
		local, _ := store.GetGroup(ctx, "g1")
		local.Name = "Trip (mine)"
		local.Touch(300)
		if err := store.UpsertGroup(ctx, local); err != nil {
			t.Fatalf("UpsertGroup failed: %v", err)
		}

		older := doc
		older.UpdatedAt = 250

		outcome, err := coordinator.mergeGroup(ctx, older)
		if err != nil {
			t.Fatalf("mergeGroup failed: %v", err)
		}
		if outcome != outcomeLocalKept {
			t.Errorf("Expected local_kept, got %s", outcome)
		}

		got, _ := store.GetGroup(ctx, "g1")
		if got.Name != "Trip (mine)" || !got.Dirty {
			t.Errorf("Expected dirty local copy to survive, got %+v", got)
		}
	})

	t.Run("equal timestamps keep the local copy", func(t *testing.T) {
		tied := doc
		tied.UpdatedAt = 300

		outcome, err := coordinator.mergeGroup(ctx, tied)
		if err != nil {
			t.Fatalf("mergeGroup failed: %v", err)
		}
		if outcome != outcomeLocalKept {
			t.Errorf("Expected local_kept on tie, got %s", outcome)
		}
	})

	t.Run("newer remote wins over a dirty local copy", func(t *testing.T) {
		newer := doc
		newer.Name = "Trip (theirs)"
		newer.UpdatedAt = 400

		outcome, err := coordinator.mergeGroup(ctx, newer)
		if err != nil {
			t.Fatalf("mergeGroup failed: %v", err)
		}
		if outcome != outcomeRemoteWon {
			t.Errorf("Expected remote_won, got %s", outcome)
		}

		got, _ := store.GetGroup(ctx, "g1")
		if got.Name != "Trip (theirs)" || got.Dirty {
			t.Errorf("Expected clean remote copy, got %+v", got)
		}
	})
}

func TestMergeExpense(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	coordinator := NewCoordinator(store, server, newTestSession(t, "u1", "Alice"), testLogger())
	ctx := context.Background()

	if err := store.UpsertGroup(ctx, &models.Group{ID: "g1", Name: "Trip", Currency: "USD", OwnerID: "u1", UpdatedAt: 100}); err != nil {
		t.Fatalf("UpsertGroup failed: %v", err)
	}

	doc := remote.ExpenseDoc{
		ID: "e1", GroupID: "g1", Description: "Dinner", Amount: 50,
		Currency: "USD", Date: 500, CreatorID: "u1",
		Payers: map[string]float64{"u1": 50}, Splits: map[string]float64{"u1": 25, "u2": 25},
		IsMathValid: true, UpdatedAt: 200,
	}

	t.Run("inserts an unseen expense clean", func(t *testing.T) {
		outcome, err := coordinator.mergeExpense(ctx, "g1", doc)
		if err != nil {
			t.Fatalf("mergeExpense failed: %v", err)
		}
		if outcome != outcomeInserted {
			t.Errorf("Expected inserted, got %s", outcome)
		}
	})

	t.Run("remote tombstone overwrites a clean local copy", func(t *testing.T) {
		tombstone := doc
		tombstone.IsDeleted = true
		tombstone.UpdatedAt = 300

		outcome, err := coordinator.mergeExpense(ctx, "g1", tombstone)
		if err != nil {
			t.Fatalf("mergeExpense failed: %v", err)
		}
		if outcome != outcomeOverwritten {
			t.Errorf("Expected overwritten, got %s", outcome)
		}

		got, _ := store.GetExpense(ctx, "e1")
		if !got.IsDeleted {
			t.Error("Expected soft delete to propagate")
		}
	})

	t.Run("dirty local edit outlives an older remote copy", func(t *testing.T) {
		local, _ := store.GetExpense(ctx, "e1")
		local.IsDeleted = false
		local.Touch(400)
		if err := store.UpsertExpense(ctx, local); err != nil {
			t.Fatalf("UpsertExpense failed: %v", err)
		}

		outcome, err := coordinator.mergeExpense(ctx, "g1", doc)
		if err != nil {
			t.Fatalf("mergeExpense failed: %v", err)
		}
		if outcome != outcomeLocalKept {
			t.Errorf("Expected local_kept, got %s", outcome)
		}
	})
}

func TestMergeGhosts(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	coordinator := NewCoordinator(store, server, newTestSession(t, "u1", "Alice"), testLogger())
	ctx := context.Background()

	if err := store.UpsertGroup(ctx, &models.Group{ID: "g1", Name: "Trip", Currency: "USD", OwnerID: "u1", UpdatedAt: 100}); err != nil {
		t.Fatalf("UpsertGroup failed: %v", err)
	}

	t.Run("snapshot ghosts are hydrated as local members", func(t *testing.T) {
		doc := remote.GroupDoc{
			ID: "g1", UpdatedAt: 200,
			Ghosts: map[string]remote.GhostDoc{
				"ghost1": {Name: "Bob"},
			},
		}
		coordinator.mergeGhosts(ctx, doc)

		got, err := store.GetMember(ctx, "g1", "ghost1")
		if err != nil {
			t.Fatalf("GetMember failed: %v", err)
		}
		if !got.IsGhost || got.Name != "Bob" || got.Dirty {
			t.Errorf("Expected clean ghost row, got %+v", got)
		}
	})

	t.Run("claim from snapshot links the ghost", func(t *testing.T) {
		doc := remote.GroupDoc{
			ID: "g1", UpdatedAt: 300,
			Ghosts: map[string]remote.GhostDoc{
				"ghost1": {Name: "Bob", IsMerged: true, MergedWithUID: "u2"},
			},
		}
		coordinator.mergeGhosts(ctx, doc)

		got, _ := store.GetMember(ctx, "g1", "ghost1")
		if got.MergedWithUID != "u2" {
			t.Errorf("Expected ghost merged with u2, got %q", got.MergedWithUID)
		}
	})

	t.Run("stale unclaimed snapshot never reverts a claim", func(t *testing.T) {
		doc := remote.GroupDoc{
			ID: "g1", UpdatedAt: 400,
			Ghosts: map[string]remote.GhostDoc{
				"ghost1": {Name: "Bob"},
			},
		}
		coordinator.mergeGhosts(ctx, doc)

		got, _ := store.GetMember(ctx, "g1", "ghost1")
		if got.MergedWithUID != "u2" {
			t.Errorf("Expected claim to be terminal, got %q", got.MergedWithUID)
		}
	})

	t.Run("dirty local ghost rename survives an older snapshot", func(t *testing.T) {
		renamed := &models.Member{
			ID: "ghost2", GroupID: "g1", Name: "Robert", IsGhost: true,
			CreatedAt: 100, UpdatedAt: 500, Dirty: true,
		}
		if err := store.UpsertMember(ctx, renamed); err != nil {
			t.Fatalf("UpsertMember failed: %v", err)
		}

		doc := remote.GroupDoc{
			ID: "g1", UpdatedAt: 450,
			Ghosts: map[string]remote.GhostDoc{
				"ghost2": {Name: "Bob"},
			},
		}
		coordinator.mergeGhosts(ctx, doc)

		got, _ := store.GetMember(ctx, "g1", "ghost2")
		if got.Name != "Robert" || !got.Dirty {
			t.Errorf("Expected dirty rename to survive, got %+v", got)
		}
	})
}

func TestMergeRealMembers(t *testing.T) {
	store := newTestStore(t)
	server := remotetest.NewServer()
	coordinator := NewCoordinator(store, server, newTestSession(t, "u1", "Alice"), testLogger())
	ctx := context.Background()

	if err := store.UpsertGroup(ctx, &models.Group{ID: "g1", Name: "Trip", Currency: "USD", OwnerID: "u1", UpdatedAt: 100}); err != nil {
		t.Fatalf("UpsertGroup failed: %v", err)
	}

	doc := remote.GroupDoc{
		ID: "g1", UpdatedAt: 200,
		Members: []string{"u1", "u2", "u3"},
		MemberProfiles: map[string]remote.ProfileDoc{
			"u2": {DisplayName: "Carol", PhotoURL: "https://example.com/carol.png"},
		},
	}
	coordinator.mergeRealMembers(ctx, doc)

	t.Run("profile name is used when present", func(t *testing.T) {
		got, err := store.GetMember(ctx, "g1", "u2")
		if err != nil {
			t.Fatalf("GetMember failed: %v", err)
		}
		if got.Name != "Carol" || got.PhotoURL != "https://example.com/carol.png" {
			t.Errorf("Expected profile data, got %+v", got)
		}
	})

	t.Run("current user falls back to session display name", func(t *testing.T) {
		got, err := store.GetMember(ctx, "g1", "u1")
		if err != nil {
			t.Fatalf("GetMember failed: %v", err)
		}
		if got.Name != "Alice" {
			t.Errorf("Expected session display name, got %q", got.Name)
		}
	})

	t.Run("unknown members get a placeholder name", func(t *testing.T) {
		got, err := store.GetMember(ctx, "g1", "u3")
		if err != nil {
			t.Fatalf("GetMember failed: %v", err)
		}
		if got.Name != fallbackMemberName {
			t.Errorf("Expected %q, got %q", fallbackMemberName, got.Name)
		}
	})
}

package remote

import (
	"testing"

	"github.com/silkfinik/fairsplit/internal/models"
)

func TestGroupDocFromModel(t *testing.T) {
	group := &models.Group{
		ID: "g1", Name: "Trip", Currency: "EUR", OwnerID: "u1",
		InviteCode: "abc123", CreatedAt: 100, UpdatedAt: 200, Dirty: true,
	}
	members := []*models.Member{
		{ID: "u1", GroupID: "g1", Name: "Alice"},
		{ID: "ghost1", GroupID: "g1", Name: "Bob", IsGhost: true},
		{ID: "ghost2", GroupID: "g1", Name: "Carol", IsGhost: true, MergedWithUID: "u2"},
	}

	doc := GroupDocFromModel(group, members)

	t.Run("real members and ghosts are partitioned", func(t *testing.T) {
		if len(doc.Members) != 1 || doc.Members[0] != "u1" {
			t.Errorf("Members mismatch: got %v", doc.Members)
		}
		if len(doc.Ghosts) != 2 {
			t.Fatalf("Expected 2 ghosts, got %d", len(doc.Ghosts))
		}
		if doc.Ghosts["ghost1"].IsMerged {
			t.Error("Expected unclaimed ghost to carry is_merged false")
		}
		claimed := doc.Ghosts["ghost2"]
		if !claimed.IsMerged || claimed.MergedWithUID != "u2" {
			t.Errorf("Claimed ghost mismatch: got %+v", claimed)
		}
	})

	t.Run("hydrating back produces a clean row", func(t *testing.T) {
		row := doc.Group()
		if row.Dirty {
			t.Error("Expected hydrated group to be clean")
		}
		if row.Name != "Trip" || row.InviteCode != "abc123" || row.UpdatedAt != 200 {
			t.Errorf("Group mismatch: got %+v", row)
		}
	})

	t.Run("ghost entries hydrate as ghost members", func(t *testing.T) {
		row := doc.Ghosts["ghost2"].GhostMember("ghost2", "g1", 300)
		if !row.IsGhost || row.MergedWithUID != "u2" || row.Dirty {
			t.Errorf("Ghost member mismatch: got %+v", row)
		}
	})
}

func TestExpenseDocRoundTrip(t *testing.T) {
	expense := &models.Expense{
		ID: "e1", GroupID: "g1", Description: "Dinner", Amount: 60,
		Currency: "", Date: 500, CreatorID: "u1",
		Payers: map[string]float64{"u1": 60},
		Splits: map[string]float64{"u1": 30, "ghost1": 30},
		IsDeleted: true, CreatedAt: 400, UpdatedAt: 500, Dirty: true,
	}

	row := ExpenseDocFromModel(expense).Expense("g1")
	if row.Dirty {
		t.Error("Expected hydrated expense to be clean")
	}
	if !row.IsDeleted {
		t.Error("Expected tombstone flag to survive the round trip")
	}
	if row.Currency != models.DefaultCurrency {
		t.Errorf("Expected blank currency to default, got %q", row.Currency)
	}
	if row.Splits["ghost1"] != 30 {
		t.Errorf("Splits mismatch: got %v", row.Splits)
	}
}

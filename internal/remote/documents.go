package remote

import "github.com/silkfinik/fairsplit/internal/models"

// GhostDoc is the embedded ghost entry on a group document.
type GhostDoc struct {
	Name          string `json:"name"`
	IsMerged      bool   `json:"is_merged"`
	MergedWithUID string `json:"merged_with_uid,omitempty"`
}

// ProfileDoc is the embedded display profile for a real member.
type ProfileDoc struct {
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// GroupDoc is the remote group document. Real members are listed by uid in
// Members; ghost members are embedded in Ghosts keyed by ghost ID. Both
// rosters live on the group document so membership changes ride along with
// the group upsert.
type GroupDoc struct {
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Currency       string                `json:"currency"`
	OwnerID        string                `json:"owner_id"`
	Members        []string              `json:"members"`
	Ghosts         map[string]GhostDoc   `json:"ghosts,omitempty"`
	MemberProfiles map[string]ProfileDoc `json:"member_profiles,omitempty"`
	CreatedAt      int64                 `json:"created_at"`
	UpdatedAt      int64                 `json:"updated_at"`
	InviteCode     string                `json:"invite_code,omitempty"`
}

// ExpenseDoc is the remote expense document. The owning group is part of the
// document path, not the payload, so GroupID is not serialized.
type ExpenseDoc struct {
	ID          string             `json:"id"`
	GroupID     string             `json:"-"`
	Description string             `json:"description"`
	Amount      float64            `json:"amount"`
	Currency    string             `json:"currency"`
	Date        int64              `json:"date"`
	CreatorID   string             `json:"creator_id"`
	Payers      map[string]float64 `json:"payers"`
	Splits      map[string]float64 `json:"splits"`
	Category    string             `json:"category,omitempty"`
	IsDeleted   bool               `json:"is_deleted"`
	IsMathValid bool               `json:"is_math_valid"`
	CreatedAt   int64              `json:"created_at"`
	UpdatedAt   int64              `json:"updated_at"`
}

// GroupDocFromModel builds the uploadable group document from a local group
// row and its member roster. Real members become uid entries; ghosts become
// embedded GhostDoc entries.
func GroupDocFromModel(group *models.Group, members []*models.Member) GroupDoc {
	doc := GroupDoc{
		ID:         group.ID,
		Name:       group.Name,
		Currency:   group.Currency.String(),
		OwnerID:    group.OwnerID,
		Members:    []string{},
		CreatedAt:  group.CreatedAt,
		UpdatedAt:  group.UpdatedAt,
		InviteCode: group.InviteCode,
	}
	for _, m := range members {
		if m.IsGhost {
			if doc.Ghosts == nil {
				doc.Ghosts = make(map[string]GhostDoc)
			}
			doc.Ghosts[m.ID] = GhostDoc{
				Name:          m.Name,
				IsMerged:      m.Claimed(),
				MergedWithUID: m.MergedWithUID,
			}
		} else {
			doc.Members = append(doc.Members, m.ID)
		}
	}
	return doc
}

// Group converts the document into a local group row. The dirty flag is
// intentionally false: hydrated rows have nothing to upload.
func (d GroupDoc) Group() *models.Group {
	return &models.Group{
		ID:         d.ID,
		Name:       d.Name,
		Currency:   models.Currency(d.Currency).OrDefault(),
		OwnerID:    d.OwnerID,
		InviteCode: d.InviteCode,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		Dirty:      false,
	}
}

// GhostMember converts an embedded ghost entry into a local member row.
func (d GhostDoc) GhostMember(ghostID, groupID string, now int64) *models.Member {
	return &models.Member{
		ID:            ghostID,
		GroupID:       groupID,
		Name:          d.Name,
		IsGhost:       true,
		MergedWithUID: d.MergedWithUID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Dirty:         false,
	}
}

// ExpenseDocFromModel builds the uploadable expense document from a local row.
func ExpenseDocFromModel(e *models.Expense) ExpenseDoc {
	return ExpenseDoc{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount,
		Currency:    e.Currency.String(),
		Date:        e.Date,
		CreatorID:   e.CreatorID,
		Payers:      e.Payers,
		Splits:      e.Splits,
		Category:    e.Category,
		IsDeleted:   e.IsDeleted,
		IsMathValid: e.IsMathValid,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// Expense converts the document into a local expense row for the given
// group, with the dirty flag cleared.
func (d ExpenseDoc) Expense(groupID string) *models.Expense {
	return &models.Expense{
		ID:          d.ID,
		GroupID:     groupID,
		Description: d.Description,
		Amount:      d.Amount,
		Currency:    models.Currency(d.Currency).OrDefault(),
		Date:        d.Date,
		CreatorID:   d.CreatorID,
		Payers:      d.Payers,
		Splits:      d.Splits,
		Category:    d.Category,
		IsDeleted:   d.IsDeleted,
		IsMathValid: d.IsMathValid,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Dirty:       false,
	}
}

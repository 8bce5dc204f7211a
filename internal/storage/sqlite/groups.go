package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/storage"
)

const groupColumns = "id, name, currency, owner_id, invite_code, created_at, updated_at, dirty"

func scanGroup(row interface{ Scan(...any) error }) (*models.Group, error) {
	g := &models.Group{}
	var currency string
	err := row.Scan(&g.ID, &g.Name, &currency, &g.OwnerID, &g.InviteCode,
		&g.CreatedAt, &g.UpdatedAt, &g.Dirty)
	if err != nil {
		return nil, err
	}
	g.Currency = models.Currency(currency)
	return g, nil
}

// GetGroup retrieves a group by ID.
func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*models.Group, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE id = ?", id)
	group, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return group, nil
}

// ListGroups returns all locally known groups, newest first.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM groups ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// UpsertGroup inserts or replaces a group by ID.
func (s *SQLiteStore) UpsertGroup(ctx context.Context, group *models.Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, name, currency, owner_id, invite_code, created_at, updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			currency = excluded.currency,
			owner_id = excluded.owner_id,
			invite_code = excluded.invite_code,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty`,
		group.ID, group.Name, group.Currency.String(), group.OwnerID,
		group.InviteCode, group.CreatedAt, group.UpdatedAt, group.Dirty,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert group: %w", err)
	}
	return nil
}

// DeleteGroup removes a group; members and expenses cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return nil
}

// DirtyGroups returns all groups with unsynced local mutations.
func (s *SQLiteStore) DirtyGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+groupColumns+" FROM groups WHERE dirty = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dirty groups: %w", err)
	}
	return groups, nil
}

// MarkGroupSynced clears the dirty flag only if updated_at still equals the
// fencing token captured at batch-construction time.
func (s *SQLiteStore) MarkGroupSynced(ctx context.Context, id string, ackUpdatedAt int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE groups SET dirty = 0 WHERE id = ? AND updated_at = ?",
		id, ackUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to mark group synced: %w", err)
	}
	return nil
}

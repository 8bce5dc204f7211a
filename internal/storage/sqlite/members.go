package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/storage"
)

const memberColumns = "id, group_id, name, photo_url, is_ghost, merged_with_uid, created_at, updated_at, dirty"

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	m := &models.Member{}
	err := row.Scan(&m.ID, &m.GroupID, &m.Name, &m.PhotoURL, &m.IsGhost,
		&m.MergedWithUID, &m.CreatedAt, &m.UpdatedAt, &m.Dirty)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMember retrieves one member of a group.
func (s *SQLiteStore) GetMember(ctx context.Context, groupID, memberID string) (*models.Member, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE group_id = ? AND id = ?",
		groupID, memberID)
	member, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("member %s in group %s: %w", memberID, groupID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListMembers returns all members of a group ordered by name.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) ([]*models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE group_id = ? ORDER BY name ASC",
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// UpsertMember inserts or replaces a member by (id, group_id).
func (s *SQLiteStore) UpsertMember(ctx context.Context, member *models.Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, group_id, name, photo_url, is_ghost, merged_with_uid, created_at, updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, group_id) DO UPDATE SET
			name = excluded.name,
			photo_url = excluded.photo_url,
			is_ghost = excluded.is_ghost,
			merged_with_uid = excluded.merged_with_uid,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty`,
		member.ID, member.GroupID, member.Name, member.PhotoURL, member.IsGhost,
		member.MergedWithUID, member.CreatedAt, member.UpdatedAt, member.Dirty,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}
	return nil
}

// DeleteMember removes one member of a group.
func (s *SQLiteStore) DeleteMember(ctx context.Context, groupID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM members WHERE group_id = ? AND id = ?", groupID, memberID)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return nil
}

// DirtyMembers returns all members of a group with unsynced mutations.
func (s *SQLiteStore) DirtyMembers(ctx context.Context, groupID string) ([]*models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE group_id = ? AND dirty = 1",
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dirty members: %w", err)
	}
	return members, nil
}

// MarkMemberSynced clears the dirty flag only if updated_at still equals the
// fencing token captured at batch-construction time.
func (s *SQLiteStore) MarkMemberSynced(ctx context.Context, groupID, memberID string, ackUpdatedAt int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE members SET dirty = 0 WHERE group_id = ? AND id = ? AND updated_at = ?",
		groupID, memberID, ackUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to mark member synced: %w", err)
	}
	return nil
}

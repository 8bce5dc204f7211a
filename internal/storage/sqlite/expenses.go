package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/silkfinik/fairsplit/internal/models"
	"github.com/silkfinik/fairsplit/internal/storage"
)

const expenseColumns = "id, group_id, description, amount, currency, date, creator_id, " +
	"payers, splits, category, is_deleted, is_math_valid, created_at, updated_at, dirty"

func scanExpense(row interface{ Scan(...any) error }) (*models.Expense, error) {
	e := &models.Expense{}
	var currency, payersRaw, splitsRaw string
	err := row.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &currency,
		&e.Date, &e.CreatorID, &payersRaw, &splitsRaw, &e.Category,
		&e.IsDeleted, &e.IsMathValid, &e.CreatedAt, &e.UpdatedAt, &e.Dirty)
	if err != nil {
		return nil, err
	}
	e.Currency = models.Currency(currency)
	if e.Payers, err = decodeShares(payersRaw); err != nil {
		return nil, err
	}
	if e.Splits, err = decodeShares(splitsRaw); err != nil {
		return nil, err
	}
	return e, nil
}

// GetExpense retrieves an expense by ID.
func (s *SQLiteStore) GetExpense(ctx context.Context, id string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id)
	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("expense %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return expense, nil
}

// ListExpenses returns all expenses of a group, newest date first.
// Soft-deleted expenses are included.
func (s *SQLiteStore) ListExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE group_id = ? ORDER BY date DESC",
		groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return expenses, nil
}

// UpsertExpense inserts or replaces an expense by ID.
func (s *SQLiteStore) UpsertExpense(ctx context.Context, expense *models.Expense) error {
	payers, err := encodeShares(expense.Payers)
	if err != nil {
		return err
	}
	splits, err := encodeShares(expense.Splits)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, group_id, description, amount, currency, date, creator_id,
			payers, splits, category, is_deleted, is_math_valid, created_at, updated_at, dirty)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			description = excluded.description,
			amount = excluded.amount,
			currency = excluded.currency,
			date = excluded.date,
			creator_id = excluded.creator_id,
			payers = excluded.payers,
			splits = excluded.splits,
			category = excluded.category,
			is_deleted = excluded.is_deleted,
			is_math_valid = excluded.is_math_valid,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			dirty = excluded.dirty`,
		expense.ID, expense.GroupID, expense.Description, expense.Amount,
		expense.Currency.String(), expense.Date, expense.CreatorID,
		payers, splits, expense.Category, expense.IsDeleted, expense.IsMathValid,
		expense.CreatedAt, expense.UpdatedAt, expense.Dirty,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert expense: %w", err)
	}
	return nil
}

// DirtyExpenses returns all expenses with unsynced mutations across every group.
func (s *SQLiteStore) DirtyExpenses(ctx context.Context) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+expenseColumns+" FROM expenses WHERE dirty = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dirty expenses: %w", err)
	}
	return expenses, nil
}

// MarkExpenseSynced clears the dirty flag only if updated_at still equals the
// fencing token captured at batch-construction time.
func (s *SQLiteStore) MarkExpenseSynced(ctx context.Context, id string, ackUpdatedAt int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE expenses SET dirty = 0 WHERE id = ? AND updated_at = ?",
		id, ackUpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to mark expense synced: %w", err)
	}
	return nil
}

package models

// Expense represents one ledger entry: who paid and how the cost is split.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Description is the human-readable label (e.g., "Groceries week 12").
	Description string

	// Amount is the total expense amount in the expense currency.
	Amount float64

	// Currency is the expense currency code.
	Currency Currency

	// Date is the Unix millisecond timestamp of when the expense occurred
	// (user-facing date, distinct from CreatedAt).
	Date int64

	// CreatorID is the user ID of whoever recorded the expense.
	CreatorID string

	// Payers maps member ID to the amount that member put in.
	Payers map[string]float64

	// Splits maps member ID to the share that member owes.
	// The engine does not enforce that splits sum to Amount; the server
	// validates the math and reports the result in IsMathValid.
	Splits map[string]float64

	// Category is an optional expense category ID (see Category type).
	Category string

	// IsDeleted is the soft-delete tombstone. Deleted expenses keep syncing
	// like any other edit but are excluded from balance computation.
	IsDeleted bool

	// IsMathValid is computed server-side: whether splits add up to Amount.
	// Local edits upload without it; the server restores the field.
	IsMathValid bool

	// CreatedAt is the Unix millisecond timestamp when the expense was created.
	CreatedAt int64

	// UpdatedAt is the Unix millisecond timestamp of the last modification.
	UpdatedAt int64

	// Dirty marks an unsynced local mutation. Local-only.
	Dirty bool
}

// Touch stamps the expense with a new modification time and marks it dirty.
func (e *Expense) Touch(now int64) {
	e.UpdatedAt = now
	e.Dirty = true
}

// Package balance computes net balances over a group's ledger.
//
// The calculation is a pure read model: no side effects, recomputed from the
// current local rows whenever the ledger changes, never persisted.
package balance

import (
	"github.com/shopspring/decimal"

	"github.com/silkfinik/fairsplit/internal/models"
)

// RedirectMap maps a claimed ghost's ID to the real identity it was merged
// into. Single hop only: a redirect target is never itself redirected.
type RedirectMap map[string]string

// BuildRedirects extracts the ghost → real-identity redirects from a member
// roster. This is the one place redirect semantics live; every consumer of
// the ghost mapping goes through it.
func BuildRedirects(members []*models.Member) RedirectMap {
	redirects := make(RedirectMap)
	for _, m := range members {
		if m.Claimed() {
			redirects[m.ID] = m.MergedWithUID
		}
	}
	return redirects
}

// Resolve returns the effective identity for id: the redirect target for a
// claimed ghost, otherwise id itself.
func (r RedirectMap) Resolve(id string) string {
	if target, ok := r[id]; ok {
		return target
	}
	return id
}

// Calculate computes net balances from a group's expenses and members.
//
// For every non-deleted expense, each payer's amount is credited and each
// split share is debited, with ghost contributions folded into their claimed
// identity. Positive means owed money, negative means owes money. A claimed
// ghost never appears in the result under its own ID.
//
// Amounts are accumulated as decimals so repeated cent-level shares do not
// drift the way float sums would.
func Calculate(expenses []*models.Expense, members []*models.Member) map[string]decimal.Decimal {
	redirects := BuildRedirects(members)
	balances := make(map[string]decimal.Decimal)

	for _, expense := range expenses {
		if expense.IsDeleted {
			continue
		}

		for payerID, amount := range expense.Payers {
			id := redirects.Resolve(payerID)
			balances[id] = balances[id].Add(decimal.NewFromFloat(amount))
		}
		for splitID, amount := range expense.Splits {
			id := redirects.Resolve(splitID)
			balances[id] = balances[id].Sub(decimal.NewFromFloat(amount))
		}
	}

	// A redirect source must not leak into the output even if some stale
	// expense row still references it directly.
	for ghostID := range redirects {
		delete(balances, ghostID)
	}
	return balances
}

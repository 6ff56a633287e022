/*
ledger.go - Append-only audit trail of balance mutations

PURPOSE:
  Every committed change to a person's leave balance appends one entry here:
  accrual resets, apply-time debits, cancellation refunds, decline refunds,
  and promotion grants. The balance column on the person row remains the
  operational value; the ledger exists so "why is my balance 3?" always has
  an answer.

  Entries are never updated or deleted. Corrections append a compensating
  entry.

SEE ALSO:
  - lifecycle.go, accrual.go: writers
  - api/handlers.go: the read endpoint
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind classifies a balance mutation.
type LedgerKind string

const (
	LedgerAccrual LedgerKind = "accrual" // period reset or top-up
	LedgerDebit   LedgerKind = "debit"   // reserved at apply time
	LedgerRefund  LedgerKind = "refund"  // cancel or decline
	LedgerGrant   LedgerKind = "grant"   // promotion reset
)

// LedgerEntry records one balance mutation. Delta is signed: debits are
// negative. BalanceAfter is the committed balance the mutation produced.
type LedgerEntry struct {
	ID           string
	PersonID     string
	RequestID    string // empty for accrual and promotion entries
	Kind         LedgerKind
	Delta        decimal.Decimal
	BalanceAfter int
	Note         string
	At           time.Time
}

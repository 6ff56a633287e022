/*
accrual.go - Period-based balance reset and top-up

PURPOSE:
  Brings a person's balance and last-reset period up to date for the current
  calendar period before any balance-affecting operation.

  Intern  period = month ("YYYY-MM")
          On a new month the balance RESETS to the monthly allowance.
          Unused days do not carry over.

  Manager period = year ("YYYY")
          On a new year the balance tops up with carry-over:
            balance = min(yearlyGrant + max(0, old), ceiling)
          The same formula runs everywhere - lazily at apply time and from
          the periodic pass - so the two paths can never diverge.

  EnsureCurrent is idempotent: calling it twice in the same period is a
  no-op. No notification is sent for accrual events.

SEE ALSO:
  - lifecycle.go: invokes EnsureCurrent inline at apply time
  - api/accrualjob.go: the cron-driven manager pass
*/
package leave

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccrualManager applies period resets. Safe for concurrent use as long as
// callers hold the per-person lock (the lifecycle does).
type AccrualManager struct {
	Store Store
	Clock Clock
}

func NewAccrualManager(store Store, clock Clock) *AccrualManager {
	return &AccrualManager{Store: store, Clock: clock}
}

// EnsureCurrent resets or tops up the person's balance if their accrual
// period has lapsed. Mutates p in place and persists the change together
// with a ledger entry. Returns true when a reset was applied.
//
// Must be called with a transaction-bound store when part of a larger unit
// of work; it issues no transaction of its own.
func (am *AccrualManager) EnsureCurrent(ctx context.Context, store Store, p *Person) (bool, error) {
	today := am.Clock.Today()

	switch p.Role {
	case RoleManager:
		currentYear := today.YearToken()
		if p.ResetYear() == currentYear {
			return false, nil
		}
		old := p.Balance
		carry := old
		if carry < 0 {
			carry = 0
		}
		next := ManagerYearlyGrant + carry
		if next > ManagerBalanceCeiling {
			next = ManagerBalanceCeiling
		}
		if err := am.commit(ctx, store, p, next, currentYear,
			fmt.Sprintf("yearly top-up for %s (carry-over %d)", currentYear, carry)); err != nil {
			return false, err
		}
		log.Printf("[accrual] manager %s topped up %d -> %d for %s", p.ID, old, next, currentYear)
		return true, nil

	default: // interns, and any future role without a yearly grant
		currentMonth := today.MonthToken()
		if p.LastResetPeriod == currentMonth {
			return false, nil
		}
		old := p.Balance
		if err := am.commit(ctx, store, p, InternMonthlyAllowance, currentMonth,
			"monthly allowance reset for "+currentMonth); err != nil {
			return false, err
		}
		log.Printf("[accrual] intern %s reset %d -> %d for %s", p.ID, old, InternMonthlyAllowance, currentMonth)
		return true, nil
	}
}

func (am *AccrualManager) commit(ctx context.Context, store Store, p *Person, balance int, period, note string) error {
	delta := decimal.NewFromInt(int64(balance - p.Balance))
	if err := store.SetAccrual(ctx, p.ID, balance, period); err != nil {
		return err
	}
	entry := LedgerEntry{
		ID:           uuid.NewString(),
		PersonID:     p.ID,
		Kind:         LedgerAccrual,
		Delta:        delta,
		BalanceAfter: balance,
		Note:         note,
		At:           time.Now().UTC(),
	}
	if err := store.AppendLedger(ctx, entry); err != nil {
		return err
	}
	p.Balance = balance
	p.LastResetPeriod = period
	return nil
}

// RunManagerPass tops up every manager whose reset year has lapsed. Invoked
// once at startup and from the cron schedule. Uses the same formula as the
// lazy path.
func (am *AccrualManager) RunManagerPass(ctx context.Context) error {
	managers, err := am.Store.ListPeopleByRole(ctx, RoleManager)
	if err != nil {
		return fmt.Errorf("list managers: %w", err)
	}

	var updated int
	for i := range managers {
		m := managers[i]
		err := am.Store.WithTx(ctx, func(tx Store) error {
			changed, err := am.EnsureCurrent(ctx, tx, &m)
			if changed {
				updated++
			}
			return err
		})
		if err != nil {
			log.Printf("[accrual] manager pass: %s: %v", m.ID, err)
		}
	}
	log.Printf("[accrual] manager pass complete: %d of %d topped up", updated, len(managers))
	return nil
}

/*
lifecycle.go - The leave request state machine

PURPOSE:
  Owns the four-state workflow for a single leave request and the balance
  effects of each transition:

    Pending ──▶ Approved    no balance change (debited at apply)
            ──▶ Declined    refund, clamped to the role's ceiling
            ──▶ Cancelled   refund of exactly the debited days

  Balance is reserved OPTIMISTICALLY: Apply debits leave_days the moment the
  request is created, not at approval. Approval is therefore free; decline
  and cancel give the days back.

UNIT OF WORK:
  Each operation runs as one atomic unit: read person and requests, validate,
  mutate, commit. The per-person lock serializes same-person operations and
  the store's conditional decrement backs it up, so double-submitted applies
  cannot overdraw. Notifications happen after commit and are best-effort: a
  delivery failure is logged, never rolled back.

SEE ALSO:
  - accrual.go: invoked first on every apply
  - validate.go: admission rules
  - authz.go: mapping resolution and role gates
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

// Notifier is the outbound messaging gateway. Both methods are
// fire-and-forget from the engine's perspective.
type Notifier interface {
	// Notify delivers a direct message and returns a reference usable for
	// later in-place updates.
	Notify(ctx context.Context, personID, text string) (MessageRef, error)

	// UpdateMessage rewrites a previously delivered message.
	UpdateMessage(ctx context.Context, ref MessageRef, text string) error
}

// Action selects the manager's decision on a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
)

// Lifecycle orchestrates accrual, validation, and transitions.
type Lifecycle struct {
	Store     Store
	Accrual   *AccrualManager
	Validator *Validator
	Authz     *Authorizer
	Notifier  Notifier
	Clock     Clock

	locks *personLocks
}

func NewLifecycle(store Store, accrual *AccrualManager, validator *Validator, authz *Authorizer, notifier Notifier, clock Clock) *Lifecycle {
	return &Lifecycle{
		Store:     store,
		Accrual:   accrual,
		Validator: validator,
		Authz:     authz,
		Notifier:  notifier,
		Clock:     clock,
		locks:     newPersonLocks(),
	}
}

// ApplyResult reports a successful application.
type ApplyResult struct {
	Request   Request
	LeaveDays int
	Balance   int // remaining balance after the debit
}

// =============================================================================
// APPLY
// =============================================================================

// Apply validates and books a new leave request. Dates arrive as YYYY-MM-DD
// strings; malformed input is a validation failure. The person is created on
// first contact. On success the request is Pending, the balance is already
// debited, and the mapped manager has been notified (best-effort).
func (lm *Lifecycle) Apply(ctx context.Context, personID, startStr, endStr, reason, displayName string) (*ApplyResult, error) {
	start, err := ParseDate(startStr)
	if err != nil {
		return nil, err
	}
	end, err := ParseDate(endStr)
	if err != nil {
		return nil, err
	}

	unlock := lm.locks.acquire(personID)
	defer unlock()

	person, err := lm.Authz.EnsurePerson(ctx, personID, displayName)
	if err != nil {
		return nil, err
	}

	var (
		result  ApplyResult
		mapping *Mapping
	)
	err = lm.Store.WithTx(ctx, func(tx Store) error {
		if _, err := lm.Accrual.EnsureCurrent(ctx, tx, person); err != nil {
			return err
		}

		adm, err := lm.Validator.Admit(ctx, tx, person, start, end)
		if err != nil {
			return err
		}

		mapping, err = tx.GetMappingByEmployee(ctx, person.ID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		req := Request{
			ID:        uuid.NewString(),
			PersonID:  person.ID,
			ManagerID: mapping.ManagerID,
			Span:      adm.Span,
			LeaveDays: adm.LeaveDays,
			Reason:    reason,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			return err
		}
		if err := tx.DebitBalance(ctx, person.ID, adm.LeaveDays); err != nil {
			return err
		}
		person.Balance -= adm.LeaveDays

		if err := tx.AppendLedger(ctx, LedgerEntry{
			ID:           uuid.NewString(),
			PersonID:     person.ID,
			RequestID:    req.ID,
			Kind:         LedgerDebit,
			Delta:        decimal.NewFromInt(-int64(adm.LeaveDays)),
			BalanceAfter: person.Balance,
			Note:         "reserved for " + adm.Span.String(),
			At:           now,
		}); err != nil {
			return err
		}

		result = ApplyResult{Request: req, LeaveDays: adm.LeaveDays, Balance: person.Balance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort notification; the request stands even if delivery fails.
	text := fmt.Sprintf("%s has applied for leave from %s to %s.",
		person.Name, result.Request.Span.Start, result.Request.Span.End)
	ref, nerr := lm.Notifier.Notify(ctx, mapping.ManagerID, text)
	if nerr != nil {
		log.Printf("[lifecycle] notify manager %s about %s: %v", mapping.ManagerID, result.Request.ID, nerr)
	} else if !ref.IsZero() {
		if err := lm.Store.SetRequestMessage(ctx, result.Request.ID, ref); err != nil {
			log.Printf("[lifecycle] store message ref for %s: %v", result.Request.ID, err)
		} else {
			result.Request.Message = ref
		}
	}

	return &result, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel withdraws the caller's own pending request and restores exactly the
// debited leave days. Non-pending or foreign requests fail with a state or
// ownership error.
func (lm *Lifecycle) Cancel(ctx context.Context, personID, requestID string) (*Request, error) {
	unlock := lm.locks.acquire(personID)
	defer unlock()

	var (
		req    *Request
		person *Person
	)
	err := lm.Store.WithTx(ctx, func(tx Store) error {
		var err error
		person, err = tx.GetPerson(ctx, personID)
		if err != nil {
			return err
		}
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.PersonID != personID {
			return ErrNotRequestOwner
		}
		if req.Status.Terminal() {
			return &StateError{RequestID: req.ID, From: req.Status, To: StatusCancelled}
		}

		if err := tx.CreditBalance(ctx, personID, req.LeaveDays, 0); err != nil {
			return err
		}
		person.Balance += req.LeaveDays

		if err := tx.UpdateRequestStatus(ctx, requestID, StatusCancelled); err != nil {
			return err
		}
		req.Status = StatusCancelled

		return tx.AppendLedger(ctx, LedgerEntry{
			ID:           uuid.NewString(),
			PersonID:     personID,
			RequestID:    req.ID,
			Kind:         LedgerRefund,
			Delta:        decimal.NewFromInt(int64(req.LeaveDays)),
			BalanceAfter: person.Balance,
			Note:         "cancelled by requester",
			At:           time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	if !req.Message.IsZero() {
		text := fmt.Sprintf("This leave request was cancelled by %s.", person.Name)
		if nerr := lm.Notifier.UpdateMessage(ctx, req.Message, text); nerr != nil {
			log.Printf("[lifecycle] update message for %s: %v", req.ID, nerr)
		}
	}

	return req, nil
}

// =============================================================================
// DECIDE (approve / decline)
// =============================================================================

// Decide approves or declines a pending request. The caller must hold the
// Manager role. Approval changes no balance; decline refunds the debited
// days, clamped so the post-refund balance never exceeds the requester
// role's ceiling.
func (lm *Lifecycle) Decide(ctx context.Context, managerID, requestID string, action Action) (*Request, error) {
	mgr, err := lm.Store.GetPerson(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if mgr.Role != RoleManager {
		return nil, ErrManagerRoleRequired
	}

	var target Status
	switch action {
	case ActionApprove:
		target = StatusApproved
	case ActionDecline:
		target = StatusDeclined
	default:
		return nil, fmt.Errorf("invalid action %q: specify approve or decline", action)
	}

	// Peek at the request to learn whose balance we may touch, then take
	// that person's lock before the transactional re-read.
	peek, err := lm.Store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	unlock := lm.locks.acquire(peek.PersonID)
	defer unlock()

	var (
		req       *Request
		requester *Person
	)
	err = lm.Store.WithTx(ctx, func(tx Store) error {
		var err error
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !CanTransition(req.Status, target) {
			return &StateError{RequestID: req.ID, From: req.Status, To: target}
		}
		requester, err = tx.GetPerson(ctx, req.PersonID)
		if err != nil {
			return err
		}

		if target == StatusDeclined {
			ceiling := requester.Role.RefundCeiling()
			if err := tx.CreditBalance(ctx, requester.ID, req.LeaveDays, ceiling); err != nil {
				return err
			}
			refreshed, err := tx.GetPerson(ctx, requester.ID)
			if err != nil {
				return err
			}
			if err := tx.AppendLedger(ctx, LedgerEntry{
				ID:           uuid.NewString(),
				PersonID:     requester.ID,
				RequestID:    req.ID,
				Kind:         LedgerRefund,
				Delta:        decimal.NewFromInt(int64(refreshed.Balance - requester.Balance)),
				BalanceAfter: refreshed.Balance,
				Note:         fmt.Sprintf("declined by %s", managerID),
				At:           time.Now().UTC(),
			}); err != nil {
				return err
			}
			requester.Balance = refreshed.Balance
		}

		if err := tx.UpdateRequestStatus(ctx, requestID, target); err != nil {
			return err
		}
		req.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Best-effort notifications after commit.
	verb := "approved"
	if target == StatusDeclined {
		verb = "declined"
	}
	text := fmt.Sprintf("Your leave request from %s to %s has been %s.",
		req.Span.Start, req.Span.End, verb)
	if _, nerr := lm.Notifier.Notify(ctx, req.PersonID, text); nerr != nil {
		log.Printf("[lifecycle] notify requester %s about %s: %v", req.PersonID, req.ID, nerr)
	}
	if !req.Message.IsZero() {
		update := fmt.Sprintf("Leave request for %s (%s to %s) has been %s by %s.",
			requester.Name, req.Span.Start, req.Span.End, verb, mgr.Name)
		if nerr := lm.Notifier.UpdateMessage(ctx, req.Message, update); nerr != nil {
			log.Printf("[lifecycle] update message for %s: %v", req.ID, nerr)
		}
	}

	return req, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// ListPending returns the person's Pending requests.
func (lm *Lifecycle) ListPending(ctx context.Context, personID string) ([]Request, error) {
	if _, err := lm.Store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return lm.Store.ListRequestsByStatus(ctx, personID, []Status{StatusPending})
}

// ListPast returns the person's full request history, all statuses.
func (lm *Lifecycle) ListPast(ctx context.Context, personID string) ([]Request, error) {
	if _, err := lm.Store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return lm.Store.ListRequestsByPerson(ctx, personID)
}

// Balance returns the person's current balance without triggering accrual.
func (lm *Lifecycle) Balance(ctx context.Context, personID string) (int, error) {
	p, err := lm.Store.GetPerson(ctx, personID)
	if err != nil {
		return 0, err
	}
	return p.Balance, nil
}

// ListAllPendingForManager returns every Pending request routed to the
// manager. The caller must hold the Manager role.
func (lm *Lifecycle) ListAllPendingForManager(ctx context.Context, managerID string) ([]Request, error) {
	mgr, err := lm.Store.GetPerson(ctx, managerID)
	if err != nil {
		return nil, err
	}
	if mgr.Role != RoleManager {
		return nil, ErrManagerRoleRequired
	}
	return lm.Store.ListPendingForManager(ctx, managerID)
}

// EmployeeHistory returns the employee's full history, gated on an active
// mapping between the requesting manager and the employee.
func (lm *Lifecycle) EmployeeHistory(ctx context.Context, employeeID, managerID string) ([]Request, error) {
	if err := lm.Authz.AuthorizeHistory(ctx, employeeID, managerID); err != nil {
		return nil, err
	}
	return lm.Store.ListRequestsByPerson(ctx, employeeID)
}

// LedgerHistory returns the balance audit trail for a person.
func (lm *Lifecycle) LedgerHistory(ctx context.Context, personID string) ([]LedgerEntry, error) {
	if _, err := lm.Store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return lm.Store.ListLedger(ctx, personID)
}

// CalendarRequests returns the Approved and Pending requests visible to the
// person: their own plus any routed to them as approver.
func (lm *Lifecycle) CalendarRequests(ctx context.Context, personID string) ([]Request, error) {
	if _, err := lm.Store.GetPerson(ctx, personID); err != nil {
		return nil, err
	}
	return lm.Store.ListCalendarVisible(ctx, personID)
}

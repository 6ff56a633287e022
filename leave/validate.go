/*
validate.go - Admission rules for a candidate leave range

PURPOSE:
  Given a person and a candidate [start, end] range, decide admissibility:

  1. Reject end < start (checked before any weekend adjustment).
  2. A start on a weekend advances to the following Monday; if that pushes
     start past end the range was entirely a weekend - reject.
  3. leave_days = weekday count of the (adjusted) inclusive range. Weekend
     days inside the range are free.
  4. Reject when leave_days exceeds the post-accrual balance.
  5. Reject when any active (Pending or Approved) request overlaps the range.
  6. Intern monthly cap: over the person's active requests inside the
     current cap window (first of the month through 31 days later), sum each
     request's day overlap WITH THE CANDIDATE RANGE, clamped at zero. Reject
     when sum + leave_days exceeds the cap.

  Step 6 deliberately measures overlap with the candidate's own window, not
  each request's full duration. That is the inherited cap policy; changing
  it changes which second requests are admitted within a month.

SEE ALSO:
  - lifecycle.go: calls Admit inside the apply transaction
  - dates.go: the weekday and overlap arithmetic
*/
package leave

import "context"

// Admission is the successful outcome of validation: the weekend-adjusted
// span and the number of chargeable weekdays.
type Admission struct {
	Span      Span
	LeaveDays int
}

// Validator checks candidate ranges against balances, existing bookings,
// and the intern monthly cap.
type Validator struct {
	Clock Clock
}

func NewValidator(clock Clock) *Validator {
	return &Validator{Clock: clock}
}

// Admit validates the candidate range for the person. The store must be
// bound to the same transaction that later inserts the request, or two
// concurrent applications could both pass the overlap check.
func (v *Validator) Admit(ctx context.Context, store Store, p *Person, start, end Date) (*Admission, error) {
	span, err := NewSpan(start, end)
	if err != nil {
		return nil, err
	}

	span.Start = span.Start.NextMonday()
	if span.Start.After(span.End) {
		return nil, ErrWeekendOnly
	}

	leaveDays := span.Weekdays()

	if leaveDays > p.Balance {
		return nil, &InsufficientBalanceError{
			PersonID:  p.ID,
			Available: p.Balance,
			Requested: leaveDays,
		}
	}

	overlapping, err := store.ListOverlapping(ctx, p.ID, span, ActiveStatuses())
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, &OverlapError{
			PersonID:  p.ID,
			RequestID: overlapping[0].ID,
			Existing:  overlapping[0].Span,
			Candidate: span,
		}
	}

	if p.Role == RoleIntern {
		if err := v.checkMonthlyCap(ctx, store, p, span, leaveDays); err != nil {
			return nil, err
		}
	}

	return &Admission{Span: span, LeaveDays: leaveDays}, nil
}

func (v *Validator) checkMonthlyCap(ctx context.Context, store Store, p *Person, candidate Span, leaveDays int) error {
	monthStart := v.Clock.Today().StartOfMonth()
	window := Span{Start: monthStart, End: monthStart.AddDays(31)}

	thisMonth, err := store.ListInWindow(ctx, p.ID, window, ActiveStatuses())
	if err != nil {
		return err
	}

	taken := 0
	for _, r := range thisMonth {
		taken += r.Span.OverlapDays(candidate)
	}

	if taken+leaveDays > InternMonthlyCap {
		return &MonthlyCapError{
			PersonID:     p.ID,
			Cap:          InternMonthlyCap,
			AlreadyTaken: taken,
			Requested:    leaveDays,
		}
	}
	return nil
}

/*
Package leave implements the leave lifecycle and balance policy engine.

PURPOSE:
  Tracks employee leave requests against a periodically replenished balance,
  enforces eligibility and scheduling rules, and drives each request through
  an approval workflow between two roles (Intern, Manager).

KEY CONCEPTS IN THIS FILE (types.go):
  - Person: an employee identified by their chat-platform ID, with a role,
    a leave balance, and the period token of the last balance reset
  - Request: a bounded date range with a four-state lifecycle
  - Mapping: the single active approver assignment for an employee
  - Status: closed enum with an explicit transition table

DESIGN PRINCIPLES:
  1. Balance never goes negative by a committed operation - enforced by
     validation plus a conditional decrement in the store
  2. Non-terminal requests for one person never overlap
  3. Transitions not in the table are rejected as StateErrors, not ignored

SEE ALSO:
  - accrual.go: period-based balance reset/top-up
  - validate.go: date-range admission rules
  - lifecycle.go: the state machine itself
*/
package leave

import "time"

// =============================================================================
// ROLES AND ALLOWANCES
// =============================================================================

// Role determines accrual period, allowance size, and permitted operations.
type Role string

const (
	RoleIntern  Role = "Intern"
	RoleManager Role = "Manager"
)

// Allowance policy. Interns reset to a fixed monthly allowance with no
// carry-over; managers top up yearly with carry-over capped at a ceiling.
const (
	InternMonthlyAllowance = 2
	InternMonthlyCap       = 2 // max chargeable days inside one cap window
	ManagerYearlyGrant     = 14
	ManagerBalanceCeiling  = 20
)

// RefundCeiling is the post-refund balance clamp applied when a pending
// request is declined. Parameterized by role: the source system clamped
// every role to the intern allowance, which only makes sense for interns.
func (r Role) RefundCeiling() int {
	if r == RoleManager {
		return ManagerBalanceCeiling
	}
	return InternMonthlyAllowance
}

// =============================================================================
// PERSON
// =============================================================================

// Person is an employee (or manager) keyed by their stable external
// chat-platform identifier. Created on first interaction with role Intern
// and the intern monthly allowance.
type Person struct {
	ID      string
	Name    string
	Role    Role
	Balance int

	// LastResetPeriod holds the accrual period token of the last balance
	// reset: "YYYY-MM" for interns, "YYYY" (or a stale "YYYY-MM") for
	// managers. Interpreted by the accrual manager per role.
	LastResetPeriod string

	IsAdmin bool

	// Color is a unique display token for the calendar feed. No effect on
	// any balance or workflow rule.
	Color string

	CreatedAt time.Time
}

// ResetYear extracts the year component of LastResetPeriod, tolerating both
// "YYYY" and "YYYY-MM" forms.
func (p Person) ResetYear() string {
	if len(p.LastResetPeriod) >= 4 {
		return p.LastResetPeriod[:4]
	}
	return p.LastResetPeriod
}

// =============================================================================
// REQUEST LIFECYCLE
// =============================================================================

// Status is the lifecycle state of a leave request. Pending is the only
// non-terminal state.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusDeclined  Status = "Declined"
	StatusCancelled Status = "Cancelled"
)

// transitions is the closed transition table. Anything absent is illegal.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusDeclined:  true,
		StatusCancelled: true,
	},
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// Terminal reports whether no transition leaves this status.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// ActiveStatuses are the statuses whose requests still hold their dates:
// they participate in overlap detection and the monthly cap. Declined and
// cancelled requests release their range.
func ActiveStatuses() []Status {
	return []Status{StatusPending, StatusApproved}
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is a leave request: an inclusive date range submitted for approval.
// Requests are created by Apply and mutated only by lifecycle transitions;
// they are never deleted.
type Request struct {
	ID        string
	PersonID  string
	ManagerID string
	Span      Span

	// LeaveDays is the weekday count debited from the balance at apply time.
	// Persisted so cancellation refunds exactly what was debited, even if
	// the weekend arithmetic ever changes.
	LeaveDays int

	Reason string
	Status Status

	// Message correlates the outbound approval notification so later
	// transitions can update it in place. Empty when delivery failed.
	Message MessageRef

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageRef points at a delivered chat message (channel + provider
// timestamp). Used only by the notification gateway.
type MessageRef struct {
	ChannelID string
	Timestamp string
}

func (m MessageRef) IsZero() bool { return m.ChannelID == "" && m.Timestamp == "" }

// =============================================================================
// MANAGER MAPPING
// =============================================================================

// Mapping assigns an employee their single active approver. Reassignment
// replaces the prior mapping; at most one row per employee exists at a time.
type Mapping struct {
	EmployeeID string
	ManagerID  string
}

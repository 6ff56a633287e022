/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All engine errors in one place. The taxonomy has four classes, each with a
  sentinel the presentation layer can branch on:

  1. Validation  - malformed dates, end before start, weekend-only range,
                   insufficient balance, overlap, monthly cap exceeded
  2. NotFound    - unknown person, unknown request, no manager mapping
  3. Authorization - non-manager acting as manager, manager querying an
                   employee they are not mapped to, cancelling another
                   person's request
  4. State       - transition attempted from the wrong source state

  Every class is handled at the point of detection and returned as a value;
  nothing here is ever allowed to escape the public operations as a panic.
  Storage failures during commit are wrapped separately (ErrStorage) so the
  caller can distinguish "you can't" from "we broke".

USAGE:
  Handlers branch with the class helpers:

    if leave.IsValidation(err) { respond 400 }
    if leave.IsNotFound(err)   { respond 404 }

SEE ALSO:
  - lifecycle.go: where most of these are produced
  - api/handlers.go: where they become HTTP statuses
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// Validation
	ErrEndBeforeStart      = errors.New("end date cannot be earlier than start date")
	ErrWeekendOnly         = errors.New("requested range falls entirely on a weekend")
	ErrInsufficientBalance = errors.New("insufficient leave balance")
	ErrOverlappingRequest  = errors.New("leave already requested for one or more of these dates")
	ErrMonthlyCapExceeded  = errors.New("monthly leave cap exceeded")
	ErrMalformedDate       = errors.New("malformed date")

	// NotFound
	ErrPersonNotFound  = errors.New("person not found")
	ErrRequestNotFound = errors.New("leave request not found")
	ErrNoManagerMapped = errors.New("manager not found")

	// Authorization
	ErrManagerRoleRequired = errors.New("only managers can perform this action")
	ErrNotYourEmployee     = errors.New("no manager mapping to this employee")
	ErrAdminRequired       = errors.New("admin privileges required")
	ErrNotRequestOwner     = errors.New("leave request belongs to another person")

	// State
	ErrNotPending = errors.New("leave request is not pending")

	// Operational: persistence failed mid-operation and the mutation was
	// rolled back. Distinct from the taxonomy above.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MalformedDateError reports unparseable date input.
type MalformedDateError struct {
	Input string
	Err   error
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("invalid date %q: use YYYY-MM-DD", e.Input)
}

func (e *MalformedDateError) Unwrap() error { return ErrMalformedDate }

// InsufficientBalanceError reports a balance shortage with the numbers.
type InsufficientBalanceError struct {
	PersonID  string
	Available int
	Requested int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance: %d available, %d requested",
		e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapError reports which existing request conflicts with the candidate.
type OverlapError struct {
	PersonID  string
	RequestID string
	Existing  Span
	Candidate Span
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("requested range %s overlaps existing request %s covering %s",
		e.Candidate, e.RequestID, e.Existing)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRequest }

// MonthlyCapError reports the clamped-overlap sum that tripped the cap.
type MonthlyCapError struct {
	PersonID     string
	Cap          int
	AlreadyTaken int
	Requested    int
}

func (e *MonthlyCapError) Error() string {
	return fmt.Sprintf("leave limit exceeded: at most %d days per month (%d counted, %d requested)",
		e.Cap, e.AlreadyTaken, e.Requested)
}

func (e *MonthlyCapError) Unwrap() error { return ErrMonthlyCapExceeded }

// StateError reports an illegal lifecycle transition.
type StateError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("leave request %s: cannot move from %s to %s", e.RequestID, e.From, e.To)
}

func (e *StateError) Unwrap() error { return ErrNotPending }

// =============================================================================
// CLASS HELPERS
// =============================================================================

// IsValidation reports whether the error belongs to the validation class.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEndBeforeStart) ||
		errors.Is(err, ErrWeekendOnly) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrMonthlyCapExceeded) ||
		errors.Is(err, ErrMalformedDate)
}

// IsNotFound reports whether the error belongs to the not-found class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPersonNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrNoManagerMapped)
}

// IsAuthorization reports whether the error belongs to the authorization class.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrManagerRoleRequired) ||
		errors.Is(err, ErrNotYourEmployee) ||
		errors.Is(err, ErrAdminRequired) ||
		errors.Is(err, ErrNotRequestOwner)
}

// IsState reports whether the error belongs to the state class.
func IsState(err error) bool {
	return errors.Is(err, ErrNotPending)
}

/*
store.go - Persistence interface consumed by the engine

PURPOSE:
  Defines the contract between the engine and the database. The engine never
  touches SQL; it talks to this interface and the sqlite package implements
  it. Two storage-level contracts matter for correctness:

  CONDITIONAL DEBIT:
    DebitBalance must be a conditional update of the form
      UPDATE ... SET balance = balance - :n WHERE id = :id AND balance >= :n
    and must fail (ErrInsufficientBalance) when the precondition does not
    hold. This is what keeps concurrent applications from overdrawing.

  CLAMPED CREDIT:
    CreditBalance adds days but clamps the result at a ceiling, in one
    statement, so refunds can never push a balance above the role's cap.

  Overlap queries and the insert that depends on them must run inside the
  same WithTx unit.

SEE ALSO:
  - store/sqlite/sqlite.go: the implementation
  - lifecycle.go: the only caller of the mutating methods
*/
package leave

import "context"

// Store is the persistence surface for people, requests, mappings, and the
// balance ledger.
type Store interface {
	// People
	GetPerson(ctx context.Context, id string) (*Person, error)
	SavePerson(ctx context.Context, p Person) error
	UpdatePerson(ctx context.Context, p Person) error
	ListPeople(ctx context.Context) ([]Person, error)
	ListPeopleByRole(ctx context.Context, role Role) ([]Person, error)
	ListAdmins(ctx context.Context) ([]Person, error)
	UsedColors(ctx context.Context) ([]string, error)

	// Balance mutation. DebitBalance fails with ErrInsufficientBalance when
	// the person's balance is below days. CreditBalance clamps the result
	// at ceiling; a ceiling <= 0 means unclamped. SetAccrual writes balance
	// and reset period together.
	DebitBalance(ctx context.Context, personID string, days int) error
	CreditBalance(ctx context.Context, personID string, days, ceiling int) error
	SetAccrual(ctx context.Context, personID string, balance int, resetPeriod string) error

	// Requests
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id string) (*Request, error)
	UpdateRequestStatus(ctx context.Context, id string, status Status) error
	SetRequestMessage(ctx context.Context, id string, ref MessageRef) error
	ListRequestsByPerson(ctx context.Context, personID string) ([]Request, error)
	ListRequestsByStatus(ctx context.Context, personID string, statuses []Status) ([]Request, error)
	ListPendingForManager(ctx context.Context, managerID string) ([]Request, error)

	// ListOverlapping returns this person's requests whose status is in
	// statuses and whose span overlaps the given span (inclusive test).
	ListOverlapping(ctx context.Context, personID string, span Span, statuses []Status) ([]Request, error)

	// ListInWindow returns this person's requests whose span falls within
	// the window (start ≥ window.Start and end ≤ window.End), filtered by
	// status. Used for the monthly cap.
	ListInWindow(ctx context.Context, personID string, window Span, statuses []Status) ([]Request, error)

	// ListCalendarVisible returns Approved and Pending requests a person may
	// see on the calendar: their own plus those routed to them as manager.
	ListCalendarVisible(ctx context.Context, personID string) ([]Request, error)

	// Mappings. SetMapping replaces any prior mapping for the employee.
	SetMapping(ctx context.Context, m Mapping) error
	GetMappingByEmployee(ctx context.Context, employeeID string) (*Mapping, error)
	GetMapping(ctx context.Context, employeeID, managerID string) (*Mapping, error)

	// Balance ledger (append-only)
	AppendLedger(ctx context.Context, e LedgerEntry) error
	ListLedger(ctx context.Context, personID string) ([]LedgerEntry, error)

	// WithTx runs fn inside a database transaction. fn receives a Store
	// bound to that transaction; returning an error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

/*
Package sqlite provides the SQLite-backed implementation of leave.Store.

PURPOSE:
  All persistence in one place: people, leave requests, manager mappings,
  and the balance ledger. The same SQL shapes apply to PostgreSQL with
  minor dialect changes.

STORAGE CONTRACTS:
  Two statements carry correctness weight (see leave/store.go):

  DebitBalance
    UPDATE people SET leave_balance = leave_balance - :n
    WHERE id = :id AND leave_balance >= :n
    Zero rows affected means the precondition failed - the engine receives
    ErrInsufficientBalance and nothing is committed.

  CreditBalance
    UPDATE people SET leave_balance = MIN(leave_balance + :n, :ceiling)
    The clamp happens in the same statement as the add, so a refund can
    never race past the role ceiling.

  The unique index on people.color backs unique calendar colors; the CHECK
  on leave_requests backs the start ≤ end invariant as a last line.

WAL MODE:
  The database opens with WAL and a busy timeout. Concurrency control on
  balances lives in the engine (per-person locks) plus the conditional
  updates above, not in a store-wide mutex.

MIGRATIONS:
  Versioned SQL files under migrations/ are embedded and applied with goose
  on New().

SEE ALSO:
  - leave/store.go: interface definition
  - migrations/00001_init.sql: schema
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so every method can run
// standalone or inside WithTx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements leave.Store on SQLite.
type Store struct {
	db *sql.DB
	q  queryer
}

var _ leave.Store = (*Store)(nil)

// New opens (or creates) the database at path and applies pending
// migrations. Use ":memory:" for tests.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// migrations and queries see the same database.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, q: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction; fn's store is bound to that
// transaction. Nested calls reuse the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", leave.ErrStorage, err)
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", leave.ErrStorage, err)
	}
	return nil
}

// =============================================================================
// PEOPLE
// =============================================================================

const personColumns = "id, name, role, leave_balance, last_reset_period, is_admin, color, created_at"

func (s *Store) GetPerson(ctx context.Context, id string) (*leave.Person, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+personColumns+" FROM people WHERE id = ?", id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrPersonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get person: %v", leave.ErrStorage, err)
	}
	return p, nil
}

func (s *Store) SavePerson(ctx context.Context, p leave.Person) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO people (id, name, role, leave_balance, last_reset_period, is_admin, color, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Role, p.Balance, p.LastResetPeriod,
		boolToInt(p.IsAdmin), nullIfEmpty(p.Color), formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: save person: %v", leave.ErrStorage, err)
	}
	return nil
}

func (s *Store) UpdatePerson(ctx context.Context, p leave.Person) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE people
		SET name = ?, role = ?, leave_balance = ?, last_reset_period = ?, is_admin = ?, color = ?
		WHERE id = ?`,
		p.Name, p.Role, p.Balance, p.LastResetPeriod,
		boolToInt(p.IsAdmin), nullIfEmpty(p.Color), p.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update person: %v", leave.ErrStorage, err)
	}
	return requireRow(res, leave.ErrPersonNotFound)
}

func (s *Store) ListPeople(ctx context.Context) ([]leave.Person, error) {
	return s.queryPeople(ctx, "SELECT "+personColumns+" FROM people ORDER BY created_at")
}

func (s *Store) ListPeopleByRole(ctx context.Context, role leave.Role) ([]leave.Person, error) {
	return s.queryPeople(ctx,
		"SELECT "+personColumns+" FROM people WHERE role = ? ORDER BY created_at", role)
}

func (s *Store) ListAdmins(ctx context.Context) ([]leave.Person, error) {
	return s.queryPeople(ctx,
		"SELECT "+personColumns+" FROM people WHERE is_admin = 1 ORDER BY created_at")
}

func (s *Store) UsedColors(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		"SELECT color FROM people WHERE color IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("%w: used colors: %v", leave.ErrStorage, err)
	}
	defer rows.Close()

	var colors []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("%w: used colors: %v", leave.ErrStorage, err)
		}
		colors = append(colors, c)
	}
	return colors, rows.Err()
}

// =============================================================================
// BALANCE MUTATION
// =============================================================================

func (s *Store) DebitBalance(ctx context.Context, personID string, days int) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE people SET leave_balance = leave_balance - ?
		WHERE id = ? AND leave_balance >= ?`,
		days, personID, days,
	)
	if err != nil {
		return fmt.Errorf("%w: debit balance: %v", leave.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: debit balance: %v", leave.ErrStorage, err)
	}
	if n == 0 {
		// Distinguish a missing person from a failed precondition.
		if _, gerr := s.GetPerson(ctx, personID); gerr != nil {
			return gerr
		}
		return leave.ErrInsufficientBalance
	}
	return nil
}

func (s *Store) CreditBalance(ctx context.Context, personID string, days, ceiling int) error {
	var (
		res sql.Result
		err error
	)
	if ceiling > 0 {
		res, err = s.q.ExecContext(ctx, `
			UPDATE people SET leave_balance = MIN(leave_balance + ?, ?)
			WHERE id = ?`,
			days, ceiling, personID,
		)
	} else {
		res, err = s.q.ExecContext(ctx,
			"UPDATE people SET leave_balance = leave_balance + ? WHERE id = ?",
			days, personID,
		)
	}
	if err != nil {
		return fmt.Errorf("%w: credit balance: %v", leave.ErrStorage, err)
	}
	return requireRow(res, leave.ErrPersonNotFound)
}

func (s *Store) SetAccrual(ctx context.Context, personID string, balance int, resetPeriod string) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE people SET leave_balance = ?, last_reset_period = ? WHERE id = ?",
		balance, resetPeriod, personID,
	)
	if err != nil {
		return fmt.Errorf("%w: set accrual: %v", leave.ErrStorage, err)
	}
	return requireRow(res, leave.ErrPersonNotFound)
}

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

const requestColumns = "id, person_id, manager_id, start_date, end_date, leave_days, reason, status, channel_id, message_ts, created_at, updated_at"

func (s *Store) CreateRequest(ctx context.Context, r leave.Request) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, person_id, manager_id, start_date, end_date, leave_days, reason, status, channel_id, message_ts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PersonID, r.ManagerID,
		r.Span.Start.String(), r.Span.End.String(),
		r.LeaveDays, r.Reason, r.Status,
		r.Message.ChannelID, r.Message.Timestamp,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", leave.ErrStorage, err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id string) (*leave.Request, error) {
	row := s.q.QueryRowContext(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE id = ?", id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get request: %v", leave.ErrStorage, err)
	}
	return r, nil
}

func (s *Store) UpdateRequestStatus(ctx context.Context, id string, status leave.Status) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE leave_requests SET status = ?, updated_at = ? WHERE id = ?",
		status, formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("%w: update request status: %v", leave.ErrStorage, err)
	}
	return requireRow(res, leave.ErrRequestNotFound)
}

func (s *Store) SetRequestMessage(ctx context.Context, id string, ref leave.MessageRef) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE leave_requests SET channel_id = ?, message_ts = ? WHERE id = ?",
		ref.ChannelID, ref.Timestamp, id,
	)
	if err != nil {
		return fmt.Errorf("%w: set request message: %v", leave.ErrStorage, err)
	}
	return requireRow(res, leave.ErrRequestNotFound)
}

func (s *Store) ListRequestsByPerson(ctx context.Context, personID string) ([]leave.Request, error) {
	return s.queryRequests(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE person_id = ? ORDER BY start_date",
		personID)
}

func (s *Store) ListRequestsByStatus(ctx context.Context, personID string, statuses []leave.Status) ([]leave.Request, error) {
	ph, args := statusArgs(statuses)
	args = append([]any{personID}, args...)
	return s.queryRequests(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE person_id = ? AND status IN ("+ph+") ORDER BY start_date",
		args...)
}

func (s *Store) ListPendingForManager(ctx context.Context, managerID string) ([]leave.Request, error) {
	return s.queryRequests(ctx,
		"SELECT "+requestColumns+" FROM leave_requests WHERE manager_id = ? AND status = ? ORDER BY start_date",
		managerID, leave.StatusPending)
}

func (s *Store) ListOverlapping(ctx context.Context, personID string, span leave.Span, statuses []leave.Status) ([]leave.Request, error) {
	ph, args := statusArgs(statuses)
	args = append([]any{personID, span.End.String(), span.Start.String()}, args...)
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE person_id = ? AND start_date <= ? AND end_date >= ?
		  AND status IN (`+ph+`)
		ORDER BY start_date`,
		args...)
}

func (s *Store) ListInWindow(ctx context.Context, personID string, window leave.Span, statuses []leave.Status) ([]leave.Request, error) {
	ph, args := statusArgs(statuses)
	args = append([]any{personID, window.Start.String(), window.End.String()}, args...)
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE person_id = ? AND start_date >= ? AND end_date <= ?
		  AND status IN (`+ph+`)
		ORDER BY start_date`,
		args...)
}

func (s *Store) ListCalendarVisible(ctx context.Context, personID string) ([]leave.Request, error) {
	return s.queryRequests(ctx, `
		SELECT `+requestColumns+` FROM leave_requests
		WHERE (person_id = ? OR manager_id = ?) AND status IN (?, ?)
		ORDER BY start_date`,
		personID, personID, leave.StatusApproved, leave.StatusPending)
}

// =============================================================================
// MANAGER MAPPINGS
// =============================================================================

func (s *Store) SetMapping(ctx context.Context, m leave.Mapping) error {
	// Replace the prior mapping: at most one active mapping per employee.
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO manager_mappings (employee_id, manager_id) VALUES (?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET manager_id = excluded.manager_id`,
		m.EmployeeID, m.ManagerID,
	)
	if err != nil {
		return fmt.Errorf("%w: set mapping: %v", leave.ErrStorage, err)
	}
	return nil
}

func (s *Store) GetMappingByEmployee(ctx context.Context, employeeID string) (*leave.Mapping, error) {
	var m leave.Mapping
	err := s.q.QueryRowContext(ctx,
		"SELECT employee_id, manager_id FROM manager_mappings WHERE employee_id = ?",
		employeeID,
	).Scan(&m.EmployeeID, &m.ManagerID)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNoManagerMapped
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get mapping: %v", leave.ErrStorage, err)
	}
	return &m, nil
}

func (s *Store) GetMapping(ctx context.Context, employeeID, managerID string) (*leave.Mapping, error) {
	var m leave.Mapping
	err := s.q.QueryRowContext(ctx,
		"SELECT employee_id, manager_id FROM manager_mappings WHERE employee_id = ? AND manager_id = ?",
		employeeID, managerID,
	).Scan(&m.EmployeeID, &m.ManagerID)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNoManagerMapped
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get mapping: %v", leave.ErrStorage, err)
	}
	return &m, nil
}

// =============================================================================
// BALANCE LEDGER
// =============================================================================

func (s *Store) AppendLedger(ctx context.Context, e leave.LedgerEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO balance_ledger (id, person_id, request_id, kind, delta, balance_after, note, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.PersonID, e.RequestID, e.Kind,
		e.Delta.String(), e.BalanceAfter, e.Note, formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("%w: append ledger: %v", leave.ErrStorage, err)
	}
	return nil
}

func (s *Store) ListLedger(ctx context.Context, personID string) ([]leave.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, person_id, request_id, kind, delta, balance_after, note, at
		FROM balance_ledger WHERE person_id = ? ORDER BY at, id`,
		personID)
	if err != nil {
		return nil, fmt.Errorf("%w: list ledger: %v", leave.ErrStorage, err)
	}
	defer rows.Close()

	var entries []leave.LedgerEntry
	for rows.Next() {
		var (
			e        leave.LedgerEntry
			deltaStr string
			atStr    string
		)
		if err := rows.Scan(&e.ID, &e.PersonID, &e.RequestID, &e.Kind, &deltaStr, &e.BalanceAfter, &e.Note, &atStr); err != nil {
			return nil, fmt.Errorf("%w: list ledger: %v", leave.ErrStorage, err)
		}
		e.Delta, err = decimal.NewFromString(deltaStr)
		if err != nil {
			return nil, fmt.Errorf("%w: list ledger: bad delta %q: %v", leave.ErrStorage, deltaStr, err)
		}
		e.At, _ = time.Parse(time.RFC3339, atStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// SCAN HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*leave.Person, error) {
	var (
		p         leave.Person
		isAdmin   int
		color     sql.NullString
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Balance, &p.LastResetPeriod, &isAdmin, &color, &createdAt)
	if err != nil {
		return nil, err
	}
	p.IsAdmin = isAdmin != 0
	p.Color = color.String
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &p, nil
}

func scanRequest(row rowScanner) (*leave.Request, error) {
	var (
		r                    leave.Request
		startStr, endStr     string
		createdAt, updatedAt string
	)
	err := row.Scan(&r.ID, &r.PersonID, &r.ManagerID, &startStr, &endStr,
		&r.LeaveDays, &r.Reason, &r.Status,
		&r.Message.ChannelID, &r.Message.Timestamp,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	start, err := leave.ParseDate(startStr)
	if err != nil {
		return nil, fmt.Errorf("bad start_date %q: %v", startStr, err)
	}
	end, err := leave.ParseDate(endStr)
	if err != nil {
		return nil, fmt.Errorf("bad end_date %q: %v", endStr, err)
	}
	r.Span = leave.Span{Start: start, End: end}
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &r, nil
}

func (s *Store) queryPeople(ctx context.Context, query string, args ...any) ([]leave.Person, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query people: %v", leave.ErrStorage, err)
	}
	defer rows.Close()

	var people []leave.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: query people: %v", leave.ErrStorage, err)
		}
		people = append(people, *p)
	}
	return people, rows.Err()
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]leave.Request, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query requests: %v", leave.ErrStorage, err)
	}
	defer rows.Close()

	var requests []leave.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: query requests: %v", leave.ErrStorage, err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func statusArgs(statuses []leave.Status) (placeholders string, args []any) {
	for i, st := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args = append(args, st)
	}
	return placeholders, args
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", leave.ErrStorage, err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

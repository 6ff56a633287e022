/*
helpers_test.go - Shared fixtures for the leave package tests

All tests run against the real SQLite store in memory; the engine has no
behavior worth testing against a mock that the store could contradict.
The fixed clock pins "today" to Tuesday 2026-03-10 so weekend and
month-window arithmetic is deterministic.
*/
package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func testClock() leave.FixedClock {
	return leave.FixedClock{Date: leave.NewDate(2026, time.March, 10)}
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedIntern(t *testing.T, store leave.Store, id string, balance int) *leave.Person {
	t.Helper()
	p := leave.Person{
		ID:              id,
		Name:            "Intern " + id,
		Role:            leave.RoleIntern,
		Balance:         balance,
		LastResetPeriod: "2026-03",
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.SavePerson(context.Background(), p))
	return &p
}

func seedManager(t *testing.T, store leave.Store, id string, balance int) *leave.Person {
	t.Helper()
	m := leave.Person{
		ID:              id,
		Name:            "Manager " + id,
		Role:            leave.RoleManager,
		Balance:         balance,
		LastResetPeriod: "2026",
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, store.SavePerson(context.Background(), m))
	return &m
}

func seedRequest(t *testing.T, store leave.Store, id, personID, managerID string, start, end leave.Date, status leave.Status) leave.Request {
	t.Helper()
	span := leave.Span{Start: start, End: end}
	r := leave.Request{
		ID:        id,
		PersonID:  personID,
		ManagerID: managerID,
		Span:      span,
		LeaveDays: span.Weekdays(),
		Reason:    "seeded",
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateRequest(context.Background(), r))
	return r
}

// =============================================================================
// RECORDING NOTIFIER
// =============================================================================

type notice struct {
	PersonID string
	Text     string
}

// recordingNotifier captures outbound messages instead of delivering them.
type recordingNotifier struct {
	notices []notice
	updates []string
}

func (n *recordingNotifier) Notify(ctx context.Context, personID, text string) (leave.MessageRef, error) {
	n.notices = append(n.notices, notice{PersonID: personID, Text: text})
	return leave.MessageRef{ChannelID: "C-test", Timestamp: "ts-test"}, nil
}

func (n *recordingNotifier) UpdateMessage(ctx context.Context, ref leave.MessageRef, text string) error {
	n.updates = append(n.updates, text)
	return nil
}

// =============================================================================
// ENGINE ASSEMBLY
// =============================================================================

type testEngine struct {
	Store     *sqlite.Store
	Lifecycle *leave.Lifecycle
	Authz     *leave.Authorizer
	Accrual   *leave.AccrualManager
	Notifier  *recordingNotifier
}

// newTestEngine wires a full engine around an in-memory store with a manager
// "mgr-1" already provisioned.
func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	store := newTestStore(t)
	clock := testClock()
	notifier := &recordingNotifier{}

	accrual := leave.NewAccrualManager(store, clock)
	validator := leave.NewValidator(clock)
	authz := leave.NewAuthorizer(store, clock)
	lifecycle := leave.NewLifecycle(store, accrual, validator, authz, notifier, clock)

	_, err := authz.CreateManager(context.Background(), "mgr-1", "Mara")
	require.NoError(t, err)

	return &testEngine{
		Store:     store,
		Lifecycle: lifecycle,
		Authz:     authz,
		Accrual:   accrual,
		Notifier:  notifier,
	}
}

// mapEmployee provisions an intern and routes their requests to mgr-1.
func (e *testEngine) mapEmployee(t *testing.T, id string) *leave.Person {
	t.Helper()
	p, err := e.Authz.EnsurePerson(context.Background(), id, "")
	require.NoError(t, err)
	require.NoError(t, e.Authz.AssignManager(context.Background(), id, "mgr-1"))
	return p
}

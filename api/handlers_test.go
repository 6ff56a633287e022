package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/notify"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	URL       string
	Store     *sqlite.Store
	Authz     *leave.Authorizer
	Lifecycle *leave.Lifecycle
}

// newTestServer stands up the full HTTP stack on an in-memory store with a
// manager "mgr-1" provisioned and "emp-1" mapped to them. The clock is
// pinned to Tuesday 2026-03-10.
func newTestServer(t *testing.T, signingSecret string) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := leave.FixedClock{Date: leave.NewDate(2026, time.March, 10)}
	accrual := leave.NewAccrualManager(store, clock)
	validator := leave.NewValidator(clock)
	authz := leave.NewAuthorizer(store, clock)
	lifecycle := leave.NewLifecycle(store, accrual, validator, authz, notify.LogGateway{}, clock)

	handler := api.NewHandler(lifecycle, authz, accrual, store)
	ts := httptest.NewServer(api.NewRouter(handler, signingSecret))
	t.Cleanup(ts.Close)

	ctx := context.Background()
	_, err = authz.CreateManager(ctx, "mgr-1", "Mara")
	require.NoError(t, err)
	_, err = authz.EnsurePerson(ctx, "emp-1", "Sam")
	require.NoError(t, err)
	require.NoError(t, authz.AssignManager(ctx, "emp-1", "mgr-1"))

	return &testServer{URL: ts.URL, Store: store, Authz: authz, Lifecycle: lifecycle}
}

func postJSON(t *testing.T, url string, body any) (int, []byte) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) apply(t *testing.T, personID, start, end string) api.ApplyResponse {
	t.Helper()
	status, data := postJSON(t, s.URL+"/api/leave", api.ApplyRequest{
		PersonID:  personID,
		StartDate: start,
		EndDate:   end,
		Reason:    "test",
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", data)
	var out api.ApplyResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// =============================================================================
// LEAVE LIFECYCLE OVER HTTP
// =============================================================================

func TestHTTP_ApplyAndBalance(t *testing.T) {
	s := newTestServer(t, "")

	out := s.apply(t, "emp-1", "2026-03-16", "2026-03-17")
	assert.Equal(t, "Pending", out.Request.Status)
	assert.Equal(t, 2, out.LeaveDays)
	assert.Equal(t, 0, out.Balance)

	var bal api.BalanceResponse
	status := getJSON(t, s.URL+"/api/people/emp-1/balance", &bal)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, bal.Balance)
}

func TestHTTP_ApplyValidationFailure(t *testing.T) {
	s := newTestServer(t, "")
	s.apply(t, "emp-1", "2026-03-16", "2026-03-17")

	// Balance is exhausted; the second application fails as 400.
	status, data := postJSON(t, s.URL+"/api/leave", api.ApplyRequest{
		PersonID: "emp-1", StartDate: "2026-03-23", EndDate: "2026-03-24", Reason: "more",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(data, &errResp))
	assert.NotEmpty(t, errResp.Details)
}

func TestHTTP_CancelRefunds(t *testing.T) {
	s := newTestServer(t, "")
	out := s.apply(t, "emp-1", "2026-03-16", "2026-03-17")

	status, data := postJSON(t, s.URL+"/api/leave/"+out.Request.ID+"/cancel",
		api.CancelRequest{PersonID: "emp-1"})
	require.Equal(t, http.StatusOK, status, "body: %s", data)

	var req api.RequestDTO
	require.NoError(t, json.Unmarshal(data, &req))
	assert.Equal(t, "Cancelled", req.Status)

	var bal api.BalanceResponse
	getJSON(t, s.URL+"/api/people/emp-1/balance", &bal)
	assert.Equal(t, 2, bal.Balance)
}

func TestHTTP_ApproveAndConflictOnSecondDecision(t *testing.T) {
	s := newTestServer(t, "")
	out := s.apply(t, "emp-1", "2026-03-16", "2026-03-17")

	status, _ := postJSON(t, s.URL+"/api/leave/"+out.Request.ID+"/approve",
		api.DecideRequest{ManagerID: "mgr-1"})
	assert.Equal(t, http.StatusOK, status)

	status, _ = postJSON(t, s.URL+"/api/leave/"+out.Request.ID+"/decline",
		api.DecideRequest{ManagerID: "mgr-1"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestHTTP_DecideByNonManagerForbidden(t *testing.T) {
	s := newTestServer(t, "")
	out := s.apply(t, "emp-1", "2026-03-16", "2026-03-17")

	status, _ := postJSON(t, s.URL+"/api/leave/"+out.Request.ID+"/approve",
		api.DecideRequest{ManagerID: "emp-1"})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHTTP_UnknownPersonIs404(t *testing.T) {
	s := newTestServer(t, "")
	status := getJSON(t, s.URL+"/api/people/ghost/balance", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

// =============================================================================
// MANAGER AND HISTORY ROUTES
// =============================================================================

func TestHTTP_ManagerQueueAndHistory(t *testing.T) {
	s := newTestServer(t, "")
	out := s.apply(t, "emp-1", "2026-03-16", "2026-03-17")

	var queue []api.RequestDTO
	status := getJSON(t, s.URL+"/api/managers/mgr-1/pending", &queue)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, queue, 1)
	assert.Equal(t, out.Request.ID, queue[0].ID)

	var history []api.RequestDTO
	status = getJSON(t, s.URL+"/api/managers/mgr-1/employees/emp-1/history", &history)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, history, 1)

	// A manager without a mapping to the employee is rejected.
	_, err := s.Authz.CreateManager(context.Background(), "mgr-2", "Noor")
	require.NoError(t, err)
	status = getJSON(t, s.URL+"/api/managers/mgr-2/employees/emp-1/history", nil)
	assert.Equal(t, http.StatusForbidden, status)
}

// =============================================================================
// CALENDAR
// =============================================================================

func TestHTTP_CalendarEvents(t *testing.T) {
	// GIVEN: One approved and one pending request for the same person
	// WHEN: Fetching their calendar feed
	// THEN: The approved event carries the person's color, the pending one grey

	s := newTestServer(t, "")
	first := s.apply(t, "emp-1", "2026-03-16", "2026-03-16")
	second := s.apply(t, "emp-1", "2026-03-24", "2026-03-24")

	status, _ := postJSON(t, s.URL+"/api/leave/"+first.Request.ID+"/approve",
		api.DecideRequest{ManagerID: "mgr-1"})
	require.Equal(t, http.StatusOK, status)

	var events []api.CalendarEventDTO
	status = getJSON(t, s.URL+"/api/calendar/emp-1/events", &events)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, events, 2)

	byID := make(map[string]api.CalendarEventDTO)
	for _, e := range events {
		byID[e.ID] = e
	}

	p, err := s.Store.GetPerson(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, p.Color, byID[first.Request.ID].Color)
	assert.Equal(t, "#808080", byID[second.Request.ID].Color)

	// End dates are exclusive in the feed.
	assert.Equal(t, "2026-03-17", byID[first.Request.ID].End)
}

// =============================================================================
// ADMIN ROUTES
// =============================================================================

func TestHTTP_AdminGate(t *testing.T) {
	s := newTestServer(t, "")

	// emp-1 is not an admin.
	status, _ := postJSON(t, s.URL+"/api/admin/managers", api.CreateManagerRequest{
		AdminID: "emp-1", ManagerID: "mgr-new", Name: "New",
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestHTTP_AdminFlow(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()
	_, err := s.Authz.GrantAdmin(ctx, "emp-1")
	require.NoError(t, err)

	// Create a manager.
	status, data := postJSON(t, s.URL+"/api/admin/managers", api.CreateManagerRequest{
		AdminID: "emp-1", ManagerID: "mgr-new", Name: "New",
	})
	require.Equal(t, http.StatusCreated, status, "body: %s", data)

	var person api.PersonDTO
	require.NoError(t, json.Unmarshal(data, &person))
	assert.Equal(t, "Manager", person.Role)
	assert.Equal(t, 14, person.Balance)

	// Promote an intern.
	_, err = s.Authz.EnsurePerson(ctx, "emp-2", "")
	require.NoError(t, err)
	status, data = postJSON(t, s.URL+"/api/admin/promotions", api.PromoteRequest{
		AdminID: "emp-1", PersonID: "emp-2",
	})
	require.Equal(t, http.StatusOK, status, "body: %s", data)

	// Re-route emp-2's requests to the new manager.
	status, _ = postJSON(t, s.URL+"/api/admin/mappings", api.MappingRequest{
		AdminID: "emp-1", EmployeeID: "emp-2", ManagerID: "mgr-new",
	})
	assert.Equal(t, http.StatusOK, status)

	// Run the accrual pass on demand.
	status, _ = postJSON(t, s.URL+"/api/admin/accrual/run", api.RunAccrualRequest{AdminID: "emp-1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestHTTP_AdminListUsers(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()
	_, err := s.Authz.GrantAdmin(ctx, "emp-1")
	require.NoError(t, err)

	// WHEN: a non-admin asks for the listing
	status := getJSON(t, s.URL+"/api/admin/users?admin_id=mgr-1", nil)
	assert.Equal(t, http.StatusForbidden, status)

	// WHEN: the admin asks
	var users []api.UserDTO
	status = getJSON(t, s.URL+"/api/admin/users?admin_id=emp-1", &users)
	require.Equal(t, http.StatusOK, status)

	byID := make(map[string]api.UserDTO, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	// THEN: emp-1 carries its manager assignment, mgr-1 has none
	require.Contains(t, byID, "emp-1")
	require.Contains(t, byID, "mgr-1")
	assert.Equal(t, "mgr-1", byID["emp-1"].ManagerID)
	assert.Empty(t, byID["mgr-1"].ManagerID)
	assert.Equal(t, "Manager", byID["mgr-1"].Role)
}

func TestHTTP_AdminListManagersAndAdmins(t *testing.T) {
	s := newTestServer(t, "")
	ctx := context.Background()
	_, err := s.Authz.GrantAdmin(ctx, "emp-1")
	require.NoError(t, err)

	// Both listings are admin-gated.
	status := getJSON(t, s.URL+"/api/admin/managers?admin_id=mgr-1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	status = getJSON(t, s.URL+"/api/admin/admins?admin_id=mgr-1", nil)
	assert.Equal(t, http.StatusForbidden, status)

	var managers []api.PersonDTO
	status = getJSON(t, s.URL+"/api/admin/managers?admin_id=emp-1", &managers)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, managers, 1)
	assert.Equal(t, "mgr-1", managers[0].ID)
	assert.Equal(t, "Manager", managers[0].Role)

	var admins []api.PersonDTO
	status = getJSON(t, s.URL+"/api/admin/admins?admin_id=emp-1", &admins)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, admins, 1)
	assert.Equal(t, "emp-1", admins[0].ID)
	assert.True(t, admins[0].IsAdmin)
}

/*
handlers.go - HTTP handlers for the leave engine

PURPOSE:
  Exposes the leave workflow via REST. Handlers parse HTTP, delegate to the
  domain layer, and translate domain errors to statuses.

ENDPOINTS:
  Leave requests:
    POST   /api/leave                     Apply for leave
    POST   /api/leave/{id}/cancel        Cancel own pending request
    POST   /api/leave/{id}/approve       Approve (manager)
    POST   /api/leave/{id}/decline       Decline (manager)

  People:
    GET    /api/people/{id}              Person details
    GET    /api/people/{id}/pending      Own pending requests
    GET    /api/people/{id}/past         Full request history
    GET    /api/people/{id}/balance      Current balance
    GET    /api/people/{id}/ledger       Balance audit trail

  Managers:
    GET    /api/managers/{id}/pending                     Queue of pending requests
    GET    /api/managers/{id}/employees/{eid}/history     Mapped employee's history

  Calendar:
    GET    /api/calendar/{id}/events     Approved + pending, colored per person

  Admin (caller must be admin):
    POST   /api/admin/managers           Create a manager account
    GET    /api/admin/managers           List managers
    POST   /api/admin/promotions         Promote a person to manager
    POST   /api/admin/mappings           Assign employee -> manager
    POST   /api/admin/admins             Grant admin
    GET    /api/admin/admins             List admins
    GET    /api/admin/users              List people with their managers
    POST   /api/admin/accrual/run        Run the manager accrual pass now

ERROR HANDLING:
  Domain error classes map to statuses:
    validation -> 400, not found -> 404, authorization -> 403,
    state conflict -> 409, anything else -> 500

SEE ALSO:
  - dto.go: wire shapes
  - server.go: router and middleware
  - commands.go: slash-command webhook
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Lifecycle *leave.Lifecycle
	Authz     *leave.Authorizer
	Accrual   *leave.AccrualManager
	Store     leave.Store
}

func NewHandler(lc *leave.Lifecycle, authz *leave.Authorizer, accrual *leave.AccrualManager, store leave.Store) *Handler {
	return &Handler{Lifecycle: lc, Authz: authz, Accrual: accrual, Store: store}
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// ApplyLeave books a new leave request.
func (h *Handler) ApplyLeave(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.PersonID == "" {
		writeError(w, http.StatusBadRequest, "person_id is required", nil)
		return
	}

	result, err := h.Lifecycle.Apply(r.Context(), req.PersonID, req.StartDate, req.EndDate, req.Reason, req.DisplayName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ApplyResponse{
		Request:   toRequestDTO(result.Request),
		LeaveDays: result.LeaveDays,
		Balance:   result.Balance,
	})
}

// CancelLeave withdraws the caller's own pending request.
func (h *Handler) CancelLeave(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Lifecycle.Cancel(r.Context(), req.PersonID, requestID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*updated))
}

// ApproveLeave approves a pending request.
func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.ActionApprove)
}

// DeclineLeave declines a pending request.
func (h *Handler) DeclineLeave(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, leave.ActionDecline)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, action leave.Action) {
	requestID := chi.URLParam(r, "id")

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	updated, err := h.Lifecycle.Decide(r.Context(), req.ManagerID, requestID, action)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*updated))
}

// =============================================================================
// PEOPLE HANDLERS
// =============================================================================

// GetPerson returns a person's details.
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// ListPending returns the person's pending requests.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Lifecycle.ListPending(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// ListPast returns the person's full request history.
func (h *Handler) ListPast(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Lifecycle.ListPast(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// GetBalance returns the person's current balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "id")
	balance, err := h.Lifecycle.Balance(r.Context(), personID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{PersonID: personID, Balance: balance})
}

// GetLedger returns the person's balance audit trail.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Lifecycle.LedgerHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LedgerEntryDTO{
			ID:           e.ID,
			RequestID:    e.RequestID,
			Kind:         string(e.Kind),
			Delta:        e.Delta.String(),
			BalanceAfter: e.BalanceAfter,
			Note:         e.Note,
			At:           e.At.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// MANAGER HANDLERS
// =============================================================================

// ListManagerPending returns every pending request routed to the manager.
func (h *Handler) ListManagerPending(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Lifecycle.ListAllPendingForManager(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// EmployeeHistory returns a mapped employee's full history.
func (h *Handler) EmployeeHistory(w http.ResponseWriter, r *http.Request) {
	managerID := chi.URLParam(r, "id")
	employeeID := chi.URLParam(r, "eid")
	reqs, err := h.Lifecycle.EmployeeHistory(r.Context(), employeeID, managerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// =============================================================================
// CALENDAR HANDLER
// =============================================================================

// CalendarEvents returns approved and pending requests visible to the person
// as calendar events. Approved requests carry the requester's color, pending
// ones render grey.
func (h *Handler) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Lifecycle.CalendarRequests(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Resolve requester names and colors once per distinct person.
	people := make(map[string]*leave.Person)
	events := make([]CalendarEventDTO, 0, len(reqs))
	for _, req := range reqs {
		p, ok := people[req.PersonID]
		if !ok {
			p, err = h.Store.GetPerson(r.Context(), req.PersonID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			people[req.PersonID] = p
		}
		events = append(events, CalendarEventDTO{
			ID:    req.ID,
			Title: p.Name + " - " + req.Reason,
			Start: req.Span.Start.String(),
			// FullCalendar treats end as exclusive.
			End:   req.Span.End.AddDays(1).String(),
			Color: leave.EventColor(p, req.Status),
		})
	}
	writeJSON(w, http.StatusOK, events)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreateManager provisions a new manager account.
func (h *Handler) CreateManager(w http.ResponseWriter, r *http.Request) {
	var req CreateManagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Authz.RequireAdmin(r.Context(), req.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.Authz.CreateManager(r.Context(), req.ManagerID, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(p))
}

// PromotePerson promotes an existing person to the manager role.
func (h *Handler) PromotePerson(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Authz.RequireAdmin(r.Context(), req.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.Authz.Promote(r.Context(), req.PersonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// AssignMapping routes an employee's future requests to a manager.
func (h *Handler) AssignMapping(w http.ResponseWriter, r *http.Request) {
	var req MappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Authz.RequireAdmin(r.Context(), req.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Authz.AssignManager(r.Context(), req.EmployeeID, req.ManagerID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"employee_id": req.EmployeeID,
		"manager_id":  req.ManagerID,
	})
}

// GrantAdmin marks a person as administrator.
func (h *Handler) GrantAdmin(w http.ResponseWriter, r *http.Request) {
	var req GrantAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Authz.RequireAdmin(r.Context(), req.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.Authz.GrantAdmin(r.Context(), req.PersonID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(p))
}

// ListUsers returns every person with their assigned manager, if any.
// Admin-gated; the caller identifies via the admin_id query parameter.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	adminID := r.URL.Query().Get("admin_id")
	if err := h.Authz.RequireAdmin(r.Context(), adminID); err != nil {
		writeDomainError(w, err)
		return
	}

	people, err := h.Store.ListPeople(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	users := make([]UserDTO, len(people))
	for i := range people {
		users[i] = UserDTO{PersonDTO: toPersonDTO(&people[i])}
		mapping, err := h.Store.GetMappingByEmployee(r.Context(), people[i].ID)
		switch {
		case err == nil:
			users[i].ManagerID = mapping.ManagerID
		case leave.IsNotFound(err):
			// unmapped is fine
		default:
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, users)
}

// ListManagers returns everyone with the Manager role. Admin-gated via the
// admin_id query parameter.
func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	adminID := r.URL.Query().Get("admin_id")
	if err := h.Authz.RequireAdmin(r.Context(), adminID); err != nil {
		writeDomainError(w, err)
		return
	}

	managers, err := h.Store.ListPeopleByRole(r.Context(), leave.RoleManager)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTOs(managers))
}

// ListAdmins returns everyone holding the admin flag. Admin-gated via the
// admin_id query parameter.
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	adminID := r.URL.Query().Get("admin_id")
	if err := h.Authz.RequireAdmin(r.Context(), adminID); err != nil {
		writeDomainError(w, err)
		return
	}

	admins, err := h.Store.ListAdmins(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTOs(admins))
}

// RunAccrual triggers the manager accrual pass immediately.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	var req RunAccrualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Authz.RequireAdmin(r.Context(), req.AdminID); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.Accrual.RunManagerPass(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Accrual pass failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ERROR TRANSLATION AND HELPERS
// =============================================================================

// writeDomainError maps domain error classes to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case leave.IsAuthorization(err):
		writeError(w, http.StatusForbidden, "Not authorized", err)
	case leave.IsState(err):
		writeError(w, http.StatusConflict, "Invalid state transition", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

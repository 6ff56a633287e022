/*
dto.go - Request/response shapes for the HTTP API

PURPOSE:
  Keeps wire structures separate from domain types. Dates cross the wire as
  YYYY-MM-DD strings, timestamps as RFC3339.

SEE ALSO:
  - handlers.go: where these are populated
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUESTS
// =============================================================================

type ApplyRequest struct {
	PersonID    string `json:"person_id"`
	DisplayName string `json:"display_name,omitempty"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Reason      string `json:"reason"`
}

type CancelRequest struct {
	PersonID string `json:"person_id"`
}

type DecideRequest struct {
	ManagerID string `json:"manager_id"`
}

type CreateManagerRequest struct {
	AdminID   string `json:"admin_id"`
	ManagerID string `json:"manager_id"`
	Name      string `json:"name"`
}

type PromoteRequest struct {
	AdminID  string `json:"admin_id"`
	PersonID string `json:"person_id"`
}

type MappingRequest struct {
	AdminID    string `json:"admin_id"`
	EmployeeID string `json:"employee_id"`
	ManagerID  string `json:"manager_id"`
}

type GrantAdminRequest struct {
	AdminID  string `json:"admin_id"`
	PersonID string `json:"person_id"`
}

type RunAccrualRequest struct {
	AdminID string `json:"admin_id"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type RequestDTO struct {
	ID        string `json:"id"`
	PersonID  string `json:"person_id"`
	ManagerID string `json:"manager_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	LeaveDays int    `json:"leave_days"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ApplyResponse struct {
	Request   RequestDTO `json:"request"`
	LeaveDays int        `json:"leave_days"`
	Balance   int        `json:"balance"`
}

type PersonDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	Balance int    `json:"balance"`
	IsAdmin bool   `json:"is_admin"`
	Color   string `json:"color,omitempty"`
}

// UserDTO is a person plus their assigned manager, for the admin listing.
type UserDTO struct {
	PersonDTO
	ManagerID string `json:"manager_id,omitempty"`
}

type BalanceResponse struct {
	PersonID string `json:"person_id"`
	Balance  int    `json:"balance"`
}

type LedgerEntryDTO struct {
	ID           string `json:"id"`
	RequestID    string `json:"request_id,omitempty"`
	Kind         string `json:"kind"`
	Delta        string `json:"delta"`
	BalanceAfter int    `json:"balance_after"`
	Note         string `json:"note,omitempty"`
	At           string `json:"at"`
}

// CalendarEventDTO follows the FullCalendar event shape so a frontend can
// consume the feed directly. End is exclusive per that convention.
type CalendarEventDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Color string `json:"color"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toRequestDTO(r leave.Request) RequestDTO {
	return RequestDTO{
		ID:        r.ID,
		PersonID:  r.PersonID,
		ManagerID: r.ManagerID,
		StartDate: r.Span.Start.String(),
		EndDate:   r.Span.End.String(),
		LeaveDays: r.LeaveDays,
		Reason:    r.Reason,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

func toRequestDTOs(rs []leave.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toPersonDTOs(ps []leave.Person) []PersonDTO {
	dtos := make([]PersonDTO, len(ps))
	for i := range ps {
		dtos[i] = toPersonDTO(&ps[i])
	}
	return dtos
}

func toPersonDTO(p *leave.Person) PersonDTO {
	return PersonDTO{
		ID:      p.ID,
		Name:    p.Name,
		Role:    string(p.Role),
		Balance: p.Balance,
		IsAdmin: p.IsAdmin,
		Color:   p.Color,
	}
}

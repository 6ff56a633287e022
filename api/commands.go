/*
commands.go - Slash-command webhook

PURPOSE:
  Lets people drive the leave workflow from a chat client. The chat platform
  POSTs an application/x-www-form-urlencoded payload (command, user_id,
  user_name, text) to /webhook/commands; the response body is shown only to
  the invoking user.

COMMANDS:
  /applyleave <start> <end> <reason...>   Apply for leave (dates YYYY-MM-DD)
  /pendingleave                           Own pending requests
  /pastleaves                             Own full history
  /leavebalance                           Current balance
  /cancelleave <request-id>               Cancel own pending request
  /approveleave <request-id>              Approve (manager)
  /declineleave <request-id>              Decline (manager)
  /viewpendingleaves                      Manager's pending queue
  /leavehistory <employee-id>             Mapped employee's history (manager)
  /assignmanager <employee-id> <manager-id>   Route requests (admin)
  /promotetomanager <person-id>           Promote to manager (admin)
  /viewmanagers                           List managers (admin)
  /viewadmins                             List admins (admin)

SIGNATURE VERIFICATION:
  Requests carry X-Request-Timestamp and X-Signature headers. The signature
  is "v0=" + hex(HMAC-SHA256(secret, "v0:" + timestamp + ":" + body)).
  Requests older than five minutes are rejected to blunt replays.

SEE ALSO:
  - server.go: mounts this under /webhook with the verification middleware
*/
package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/warp/leave-engine/leave"
)

const signatureMaxAge = 5 * time.Minute

// =============================================================================
// SIGNATURE VERIFICATION
// =============================================================================

// verifySignature authenticates webhook calls with the shared signing secret.
// An empty secret disables verification.
func verifySignature(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "unreadable body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			tsHeader := r.Header.Get("X-Request-Timestamp")
			ts, err := strconv.ParseInt(tsHeader, 10, 64)
			if err != nil {
				http.Error(w, "missing timestamp", http.StatusUnauthorized)
				return
			}
			age := time.Since(time.Unix(ts, 0))
			if age > signatureMaxAge || age < -signatureMaxAge {
				http.Error(w, "stale request", http.StatusUnauthorized)
				return
			}

			mac := hmac.New(sha256.New, []byte(secret))
			fmt.Fprintf(mac, "v0:%s:%s", tsHeader, body)
			expected := "v0=" + hex.EncodeToString(mac.Sum(nil))
			if !hmac.Equal([]byte(expected), []byte(r.Header.Get("X-Signature"))) {
				http.Error(w, "bad signature", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

// HandleCommand parses a slash-command payload and routes it.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form payload", http.StatusBadRequest)
		return
	}

	command := r.PostFormValue("command")
	userID := r.PostFormValue("user_id")
	userName := r.PostFormValue("user_name")
	text := strings.TrimSpace(r.PostFormValue("text"))
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	var reply string
	switch command {
	case "/applyleave":
		reply = h.cmdApply(r, userID, userName, text)
	case "/pendingleave":
		reply = h.cmdPending(r, userID)
	case "/pastleaves":
		reply = h.cmdPast(r, userID)
	case "/leavebalance":
		reply = h.cmdBalance(r, userID)
	case "/cancelleave":
		reply = h.cmdCancel(r, userID, text)
	case "/approveleave":
		reply = h.cmdDecide(r, userID, text, leave.ActionApprove)
	case "/declineleave":
		reply = h.cmdDecide(r, userID, text, leave.ActionDecline)
	case "/viewpendingleaves":
		reply = h.cmdViewPending(r, userID)
	case "/leavehistory":
		reply = h.cmdHistory(r, userID, text)
	case "/assignmanager":
		reply = h.cmdAssignManager(r, userID, text)
	case "/promotetomanager":
		reply = h.cmdPromote(r, userID, text)
	case "/viewmanagers":
		reply = h.cmdViewManagers(r, userID)
	case "/viewadmins":
		reply = h.cmdViewAdmins(r, userID)
	default:
		reply = fmt.Sprintf("Unknown command %s.", command)
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"response_type": "ephemeral",
		"text":          reply,
	})
}

// =============================================================================
// COMMAND IMPLEMENTATIONS
// =============================================================================

func (h *Handler) cmdApply(r *http.Request, userID, userName, text string) string {
	parts := strings.SplitN(text, " ", 3)
	if len(parts) < 3 {
		return "Usage: /applyleave YYYY-MM-DD YYYY-MM-DD reason"
	}

	result, err := h.Lifecycle.Apply(r.Context(), userID, parts[0], parts[1], parts[2], userName)
	if err != nil {
		return commandError(err)
	}
	return fmt.Sprintf("Leave applied from %s to %s (%d leave days). Remaining balance: %d. Request ID: %s",
		result.Request.Span.Start, result.Request.Span.End, result.LeaveDays, result.Balance, result.Request.ID)
}

func (h *Handler) cmdPending(r *http.Request, userID string) string {
	reqs, err := h.Lifecycle.ListPending(r.Context(), userID)
	if err != nil {
		return commandError(err)
	}
	if len(reqs) == 0 {
		return "You have no pending leave requests."
	}
	return "Your pending requests:\n" + formatRequests(reqs)
}

func (h *Handler) cmdPast(r *http.Request, userID string) string {
	reqs, err := h.Lifecycle.ListPast(r.Context(), userID)
	if err != nil {
		return commandError(err)
	}
	if len(reqs) == 0 {
		return "You have no leave requests on record."
	}
	return "Your leave history:\n" + formatRequests(reqs)
}

func (h *Handler) cmdBalance(r *http.Request, userID string) string {
	balance, err := h.Lifecycle.Balance(r.Context(), userID)
	if err != nil {
		return commandError(err)
	}
	return fmt.Sprintf("Your current leave balance is %d day(s).", balance)
}

func (h *Handler) cmdCancel(r *http.Request, userID, text string) string {
	if text == "" {
		return "Usage: /cancelleave <request-id>"
	}
	req, err := h.Lifecycle.Cancel(r.Context(), userID, text)
	if err != nil {
		return commandError(err)
	}
	return fmt.Sprintf("Cancelled leave from %s to %s; %d day(s) returned to your balance.",
		req.Span.Start, req.Span.End, req.LeaveDays)
}

func (h *Handler) cmdDecide(r *http.Request, userID, text string, action leave.Action) string {
	if text == "" {
		return fmt.Sprintf("Usage: /%sleave <request-id>", action)
	}
	req, err := h.Lifecycle.Decide(r.Context(), userID, text, action)
	if err != nil {
		return commandError(err)
	}
	return fmt.Sprintf("Request %s is now %s.", req.ID, req.Status)
}

func (h *Handler) cmdViewPending(r *http.Request, userID string) string {
	reqs, err := h.Lifecycle.ListAllPendingForManager(r.Context(), userID)
	if err != nil {
		return commandError(err)
	}
	if len(reqs) == 0 {
		return "No pending requests in your queue."
	}
	return "Pending requests awaiting your decision:\n" + formatRequests(reqs)
}

func (h *Handler) cmdHistory(r *http.Request, userID, text string) string {
	if text == "" {
		return "Usage: /leavehistory <employee-id>"
	}
	reqs, err := h.Lifecycle.EmployeeHistory(r.Context(), text, userID)
	if err != nil {
		return commandError(err)
	}
	if len(reqs) == 0 {
		return "That employee has no leave requests on record."
	}
	return "Leave history:\n" + formatRequests(reqs)
}

func (h *Handler) cmdAssignManager(r *http.Request, userID, text string) string {
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return "Usage: /assignmanager <employee-id> <manager-id>"
	}
	if err := h.Authz.RequireAdmin(r.Context(), userID); err != nil {
		return commandError(err)
	}
	if err := h.Authz.AssignManager(r.Context(), parts[0], parts[1]); err != nil {
		return commandError(err)
	}
	return fmt.Sprintf("Requests from %s now route to %s.", parts[0], parts[1])
}

func (h *Handler) cmdPromote(r *http.Request, userID, text string) string {
	if text == "" {
		return "Usage: /promotetomanager <person-id>"
	}
	if err := h.Authz.RequireAdmin(r.Context(), userID); err != nil {
		return commandError(err)
	}
	p, err := h.Authz.Promote(r.Context(), text)
	if err != nil {
		return commandError(err)
	}
	return fmt.Sprintf("%s is now a manager with a balance of %d day(s).", p.Name, p.Balance)
}

func (h *Handler) cmdViewManagers(r *http.Request, userID string) string {
	if err := h.Authz.RequireAdmin(r.Context(), userID); err != nil {
		return commandError(err)
	}
	managers, err := h.Store.ListPeopleByRole(r.Context(), leave.RoleManager)
	if err != nil {
		return commandError(err)
	}
	if len(managers) == 0 {
		return "No managers found."
	}
	return "Managers:\n" + formatPeople(managers)
}

func (h *Handler) cmdViewAdmins(r *http.Request, userID string) string {
	if err := h.Authz.RequireAdmin(r.Context(), userID); err != nil {
		return commandError(err)
	}
	admins, err := h.Store.ListAdmins(r.Context())
	if err != nil {
		return commandError(err)
	}
	if len(admins) == 0 {
		return "No admins found."
	}
	return "Admins:\n" + formatPeople(admins)
}

// =============================================================================
// FORMATTING
// =============================================================================

func formatPeople(people []leave.Person) string {
	var b strings.Builder
	for _, p := range people {
		fmt.Fprintf(&b, "• %s - %s (%s)\n", p.ID, p.Name, p.Role)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRequests(reqs []leave.Request) string {
	var b strings.Builder
	for _, req := range reqs {
		fmt.Fprintf(&b, "• %s to %s (%d day(s), %s) [%s] %s\n",
			req.Span.Start, req.Span.End, req.LeaveDays, req.Status, req.ID, req.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// commandError renders a domain error as a user-facing sentence.
func commandError(err error) string {
	switch {
	case leave.IsValidation(err):
		return "That request is not valid: " + err.Error()
	case leave.IsNotFound(err):
		return "Not found: " + err.Error()
	case leave.IsAuthorization(err):
		return "You are not allowed to do that: " + err.Error()
	case leave.IsState(err):
		return "That request has already been decided: " + err.Error()
	default:
		return "Something went wrong. Please try again."
	}
}

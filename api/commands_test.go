package api_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HELPERS
// =============================================================================

func signedCommand(t *testing.T, serverURL, secret string, form url.Values, ts time.Time) *http.Response {
	t.Helper()
	body := form.Encode()

	req, err := http.NewRequest(http.MethodPost, serverURL+"/webhook/commands", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if secret != "" {
		tsStr := strconv.FormatInt(ts.Unix(), 10)
		mac := hmac.New(sha256.New, []byte(secret))
		fmt.Fprintf(mac, "v0:%s:%s", tsStr, body)
		req.Header.Set("X-Request-Timestamp", tsStr)
		req.Header.Set("X-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func commandText(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out struct {
		ResponseType string `json:"response_type"`
		Text         string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	assert.Equal(t, "ephemeral", out.ResponseType)
	return out.Text
}

// =============================================================================
// SIGNATURE VERIFICATION
// =============================================================================

func TestWebhook_ValidSignatureAccepted(t *testing.T) {
	s := newTestServer(t, "shh")

	form := url.Values{"command": {"/leavebalance"}, "user_id": {"emp-1"}}
	resp := signedCommand(t, s.URL, "shh", form, time.Now())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := commandText(t, resp)
	assert.Contains(t, text, "2 day(s)")
}

func TestWebhook_BadSignatureRejected(t *testing.T) {
	s := newTestServer(t, "shh")

	form := url.Values{"command": {"/leavebalance"}, "user_id": {"emp-1"}}
	resp := signedCommand(t, s.URL, "wrong-secret", form, time.Now())
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_StaleTimestampRejected(t *testing.T) {
	s := newTestServer(t, "shh")

	form := url.Values{"command": {"/leavebalance"}, "user_id": {"emp-1"}}
	resp := signedCommand(t, s.URL, "shh", form, time.Now().Add(-10*time.Minute))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhook_NoSecretSkipsVerification(t *testing.T) {
	s := newTestServer(t, "")

	form := url.Values{"command": {"/leavebalance"}, "user_id": {"emp-1"}}
	resp := signedCommand(t, s.URL, "", form, time.Now())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// COMMAND DISPATCH
// =============================================================================

func TestCommand_ApplyAndCancelRoundTrip(t *testing.T) {
	s := newTestServer(t, "")

	form := url.Values{
		"command":   {"/applyleave"},
		"user_id":   {"emp-1"},
		"user_name": {"Sam"},
		"text":      {"2026-03-16 2026-03-17 family visit"},
	}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	text := commandText(t, resp)
	assert.Contains(t, text, "2026-03-16")
	assert.Contains(t, text, "Remaining balance: 0")

	// Pull the request ID out of the reply and cancel through the command.
	fields := strings.Fields(text)
	requestID := fields[len(fields)-1]

	form = url.Values{
		"command": {"/cancelleave"},
		"user_id": {"emp-1"},
		"text":    {requestID},
	}
	resp = signedCommand(t, s.URL, "", form, time.Now())
	text = commandText(t, resp)
	assert.Contains(t, text, "2 day(s) returned")
}

func TestCommand_ApplyUsage(t *testing.T) {
	s := newTestServer(t, "")

	form := url.Values{"command": {"/applyleave"}, "user_id": {"emp-1"}, "text": {"2026-03-16"}}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "Usage:")
}

func TestCommand_ValidationErrorIsFriendly(t *testing.T) {
	s := newTestServer(t, "")

	// Weekend-only range.
	form := url.Values{
		"command": {"/applyleave"},
		"user_id": {"emp-1"},
		"text":    {"2026-03-14 2026-03-15 weekend"},
	}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "not valid")
}

func TestCommand_ManagerQueueAndDecision(t *testing.T) {
	s := newTestServer(t, "")
	out := s.apply(t, "emp-1", "2026-03-16", "2026-03-17")

	form := url.Values{"command": {"/viewpendingleaves"}, "user_id": {"mgr-1"}}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), out.Request.ID)

	form = url.Values{"command": {"/approveleave"}, "user_id": {"mgr-1"}, "text": {out.Request.ID}}
	resp = signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "Approved")
}

func TestCommand_AdminOnly(t *testing.T) {
	s := newTestServer(t, "")

	form := url.Values{
		"command": {"/assignmanager"},
		"user_id": {"emp-1"},
		"text":    {"emp-1 mgr-1"},
	}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "not allowed")
}

func TestCommand_ViewManagersAndAdmins(t *testing.T) {
	s := newTestServer(t, "")
	_, err := s.Authz.GrantAdmin(context.Background(), "emp-1")
	require.NoError(t, err)

	// Non-admins are turned away.
	form := url.Values{"command": {"/viewmanagers"}, "user_id": {"mgr-1"}}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "not allowed")

	form = url.Values{"command": {"/viewmanagers"}, "user_id": {"emp-1"}}
	resp = signedCommand(t, s.URL, "", form, time.Now())
	text := commandText(t, resp)
	assert.Contains(t, text, "mgr-1")
	assert.Contains(t, text, "Manager")

	form = url.Values{"command": {"/viewadmins"}, "user_id": {"emp-1"}}
	resp = signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "emp-1")
}

func TestCommand_Unknown(t *testing.T) {
	s := newTestServer(t, "")

	form := url.Values{"command": {"/pizza"}, "user_id": {"emp-1"}}
	resp := signedCommand(t, s.URL, "", form, time.Now())
	assert.Contains(t, commandText(t, resp), "Unknown command")
}

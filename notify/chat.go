package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/leave"
)

// ChatGateway delivers direct messages through a chat platform web API.
// Constructed once per process and handed to the lifecycle manager; it is
// never a package-level global.
type ChatGateway struct {
	BaseURL string // e.g. https://chat.example.com/api
	Token   string
	Client  *http.Client
}

func NewChatGateway(baseURL, token string) *ChatGateway {
	return &ChatGateway{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

var _ leave.Notifier = (*ChatGateway)(nil)

// Notify opens a DM channel to the person and posts the text. The returned
// reference (channel + provider timestamp) lets later transitions update
// the message in place.
func (g *ChatGateway) Notify(ctx context.Context, personID, text string) (leave.MessageRef, error) {
	var opened struct {
		OK      bool `json:"ok"`
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
		Error string `json:"error"`
	}
	if err := g.post(ctx, "/conversations.open", map[string]any{"users": personID}, &opened); err != nil {
		return leave.MessageRef{}, err
	}
	if !opened.OK || opened.Channel.ID == "" {
		return leave.MessageRef{}, fmt.Errorf("open conversation with %s: %s", personID, opened.Error)
	}

	var posted struct {
		OK        bool   `json:"ok"`
		Timestamp string `json:"ts"`
		Error     string `json:"error"`
	}
	payload := map[string]any{"channel": opened.Channel.ID, "text": text}
	if err := g.post(ctx, "/chat.postMessage", payload, &posted); err != nil {
		return leave.MessageRef{}, err
	}
	if !posted.OK {
		return leave.MessageRef{}, fmt.Errorf("post message to %s: %s", personID, posted.Error)
	}

	return leave.MessageRef{ChannelID: opened.Channel.ID, Timestamp: posted.Timestamp}, nil
}

// UpdateMessage rewrites a previously posted message.
func (g *ChatGateway) UpdateMessage(ctx context.Context, ref leave.MessageRef, text string) error {
	var updated struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	payload := map[string]any{"channel": ref.ChannelID, "ts": ref.Timestamp, "text": text}
	if err := g.post(ctx, "/chat.update", payload, &updated); err != nil {
		return err
	}
	if !updated.OK {
		return fmt.Errorf("update message %s/%s: %s", ref.ChannelID, ref.Timestamp, updated.Error)
	}
	return nil
}

func (g *ChatGateway) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.Token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chat API %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

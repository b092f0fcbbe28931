package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ChatID identifies a Telegram chat, group or channel.
type ChatID int64

func (id ChatID) String() string { return strconv.FormatInt(int64(id), 10) }

// Update is one entry of a getUpdates response. Non-message update kinds
// arrive with Message unset.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is an incoming chat message. Non-text messages arrive with an
// empty Text.
type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Peer   `json:"chat"`
	Text      string `json:"text"`
}

type Peer struct {
	ID ChatID `json:"id"`
}

// API is the slice of the Bot API the alert engine needs. The poll loop
// needs GetUpdates; notification delivery needs only SendMessage.
type API interface {
	SendMessage(ctx context.Context, chat ChatID, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Client talks to the Telegram Bot API over HTTP. It is safe for
// concurrent use.
type Client struct {
	base string
	http *http.Client
}

// NewClient builds a client for api.telegram.org with the given bot token.
func NewClient(token string) *Client {
	return NewClientBase("https://api.telegram.org/bot" + token)
}

// NewClientBase builds a client against an explicit API base URL, which
// lets tests point the bot at a local fake.
func NewClientBase(base string) *Client {
	return &Client{
		base: base,
		// Long polls pass their own timeout; leave headroom above it.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) SendMessage(ctx context.Context, chat ChatID, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": int64(chat),
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode sendMessage: %w", err)
	}
	_, err = c.call(ctx, "sendMessage", body)
	return err
}

// GetUpdates long-polls for incoming updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	body, err := json.Marshal(map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: encode getUpdates: %w", err)
	}
	result, err := c.call(ctx, "getUpdates", body)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("telegram: decode updates: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, body []byte) (json.RawMessage, error) {
	endpoint, err := url.JoinPath(c.base, method)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: read response: %w", method, err)
	}
	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("telegram: %s: status %d: %w", method, resp.StatusCode, err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, parsed.Description)
	}
	return parsed.Result, nil
}

// Package telegram is a minimal Bot API client covering exactly what the
// relay needs: long polling for updates and sending text messages.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

const defaultAPIBase = "https://api.telegram.org"

// User is the sender of an inbound update.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	LanguageCode string `json:"language_code"`
}

// Chat identifies where an inbound message was posted.
type Chat struct {
	ID int64 `json:"id"`
}

// IncomingMessage is the message payload of an update.
type IncomingMessage struct {
	MessageID int64  `json:"message_id"`
	From      User   `json:"from"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

// Update is one element of a getUpdates batch.
type Update struct {
	UpdateID int64            `json:"update_id"`
	Message  *IncomingMessage `json:"message"`
}

// Client talks to the Bot API for one bot token.
type Client struct {
	hc      *http.Client
	baseURL string
	token   string
}

// New constructs a client for the given bot token. The timeout bounds
// outbound sends; polling calls extend it by the long-poll window.
func New(token string, timeout time.Duration) *Client {
	return NewWithBaseURL(token, defaultAPIBase, timeout)
}

// NewWithBaseURL is New with an overridable API base, for tests.
func NewWithBaseURL(token, baseURL string, timeout time.Duration) *Client {
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, params url.Values, timeout time.Duration) (json.RawMessage, error) {
	hc := c.hc
	if timeout > 0 && timeout != hc.Timeout {
		clone := *hc
		clone.Timeout = timeout
		hc = &clone
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = params.Encode()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s decode: %w", method, err)
	}
	if !out.OK {
		return nil, fmt.Errorf("%s: %s", method, out.Description)
	}
	return out.Result, nil
}

// SendMessage delivers text to a chat. Failures surface as
// domain.ErrTransportFailed; the caller decides whether that matters.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	params.Set("text", text)
	if _, err := c.call(ctx, "sendMessage", params, 0); err != nil {
		return fmt.Errorf("op=telegram.send: %w: %v", domain.ErrTransportFailed, err)
	}
	return nil
}

// GetUpdates long-polls for the next batch of updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]Update, error) {
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", strconv.FormatInt(offset, 10))
	}
	seconds := int(pollTimeout / time.Second)
	params.Set("timeout", strconv.Itoa(seconds))
	params.Set("allowed_updates", `["message"]`)

	result, err := c.call(ctx, "getUpdates", params, c.hc.Timeout+pollTimeout)
	if err != nil {
		return nil, fmt.Errorf("op=telegram.get_updates: %w: %v", domain.ErrTransportFailed, err)
	}
	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("op=telegram.get_updates: %w", err)
	}
	return updates, nil
}

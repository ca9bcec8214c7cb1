// Package telephony talks to the Twilio voice API: placing outbound
// calls, answering webhook requests with stream TwiML, and interpreting
// call status callbacks.
package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultAPIBaseURL is the Twilio REST API base URL.
const DefaultAPIBaseURL = "https://api.twilio.com/2010-04-01"

// ErrPlacement reports a failed outbound call attempt. Callers treat it
// as retryable.
var ErrPlacement = errors.New("telephony: call placement failed")

// Config identifies the Twilio account and the numbers and webhooks the
// client uses for outbound calls.
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ToNumber   string
	// WebhookBase is the public base URL Twilio calls back on, e.g.
	// "https://example.ngrok.app".
	WebhookBase string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// Client places outbound calls through the Twilio REST API.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("telephony: account sid and auth token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIBaseURL
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// PlaceCall starts an outbound call to the given number and returns the
// call SID. Twilio fetches TwiML from the voice webhook once the callee
// picks up, and reports lifecycle transitions to the status webhook.
func (c *Client) PlaceCall(ctx context.Context, to string) (string, error) {
	if to == "" {
		to = c.cfg.ToNumber
	}
	if to == "" {
		return "", fmt.Errorf("%w: no destination number", ErrPlacement)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.cfg.FromNumber)
	form.Set("Url", c.cfg.WebhookBase+"/webhook/voice")
	form.Set("Method", "POST")
	form.Set("StatusCallback", c.cfg.WebhookBase+"/webhook/status")
	for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", ev)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlacement, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlacement, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrPlacement, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrPlacement, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var created struct {
		Sid string `json:"sid"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.Sid == "" {
		return "", fmt.Errorf("%w: unexpected response body", ErrPlacement)
	}
	return created.Sid, nil
}

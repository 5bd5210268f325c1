package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/carewire/consultscribe/internal/notify"
)

// TwilioChannel posts WhatsApp messages through a Twilio-compatible
// Messages API and returns the provider message SID for callback
// correlation.
type TwilioChannel struct {
	baseURL           string
	accountSID        string
	authToken         string
	fromNumber        string
	statusCallbackURL string
	client            *http.Client
}

type TwilioConfig struct {
	BaseURL           string
	AccountSID        string
	AuthToken         string
	FromNumber        string
	StatusCallbackURL string
}

func NewTwilioChannel(cfg TwilioConfig) notify.Channel {
	return &TwilioChannel{
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		accountSID:        cfg.AccountSID,
		authToken:         cfg.AuthToken,
		fromNumber:        cfg.FromNumber,
		statusCallbackURL: cfg.StatusCallbackURL,
		client:            &http.Client{},
	}
}

func (c *TwilioChannel) Send(ctx context.Context, recipient, body string) (string, error) {
	form := url.Values{}
	form.Set("From", "whatsapp:"+c.fromNumber)
	form.Set("To", "whatsapp:"+recipient)
	form.Set("Body", body)
	if c.statusCallbackURL != "" {
		form.Set("StatusCallback", c.statusCallbackURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", notify.ErrSendFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", notify.ErrSendFailed, err)
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return "", fmt.Errorf("%w: provider returned status %d: %s", notify.ErrSendFailed, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil || parsed.SID == "" {
		return "", fmt.Errorf("%w: provider response missing message sid", notify.ErrSendFailed)
	}
	return parsed.SID, nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// Twilio error codes with dedicated handling.
const (
	twilioCodeInvalidNumber = 21211
	twilioCodeCannotReceive = 21614
	twilioCodeRateLimited   = 20429
)

var (
	// ErrInvalidNumber is returned when Twilio rejects the destination.
	ErrInvalidNumber = errors.New("invalid phone number")
	// ErrCannotReceive is returned when the destination cannot receive SMS.
	ErrCannotReceive = errors.New("phone cannot receive sms")
	// ErrRateLimited is returned when Twilio throttles the account.
	ErrRateLimited = errors.New("twilio rate limited")
)

// TwilioError is an error response from the Twilio API.
type TwilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *TwilioError) Error() string {
	return fmt.Sprintf("twilio error %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap maps well-known codes to sentinel errors.
func (e *TwilioError) Unwrap() error {
	switch e.Code {
	case twilioCodeInvalidNumber:
		return ErrInvalidNumber
	case twilioCodeCannotReceive:
		return ErrCannotReceive
	case twilioCodeRateLimited:
		return ErrRateLimited
	default:
		return nil
	}
}

// TwilioGateway implements Gateway via Twilio Programmable Messaging,
// authenticating with an API key and secret.
type TwilioGateway struct {
	accountSID string
	apiKey     string
	apiSecret  string
	from       string
	baseURL    string
	client     *http.Client
}

// TwilioOption configures a TwilioGateway.
type TwilioOption func(*TwilioGateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) TwilioOption {
	return func(g *TwilioGateway) {
		g.client = c
	}
}

// WithBaseURL overrides the API root.
func WithBaseURL(u string) TwilioOption {
	return func(g *TwilioGateway) {
		g.baseURL = strings.TrimRight(u, "/")
	}
}

// NewTwilioGateway creates a new TwilioGateway.
func NewTwilioGateway(accountSID, apiKey, apiSecret, from string, opts ...TwilioOption) *TwilioGateway {
	g := &TwilioGateway{
		accountSID: accountSID,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		from:       from,
		baseURL:    DefaultTwilioBaseURL,
		client:     http.DefaultClient,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send posts one message to the Messages resource.
func (g *TwilioGateway) Send(ctx context.Context, phone, message string) error {
	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", g.from)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		g.baseURL, url.PathEscape(g.accountSID))

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("creating twilio request: %w", err)
	}
	req.SetBasicAuth(g.apiKey, g.apiSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending twilio message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if readErr != nil {
		return fmt.Errorf("twilio returned %d (body unreadable)", resp.StatusCode)
	}

	var terr TwilioError
	if err := json.Unmarshal(body, &terr); err != nil || terr.Code == 0 {
		if resp.StatusCode == http.StatusTooManyRequests {
			return &TwilioError{Code: twilioCodeRateLimited, Status: resp.StatusCode, Message: "too many requests"}
		}
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, body)
	}
	if terr.Status == 0 {
		terr.Status = resp.StatusCode
	}
	return &terr
}

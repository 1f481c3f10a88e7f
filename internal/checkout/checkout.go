package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	cb "github.com/libtrack/borrowing-service/pkg/circuit_breaker"
)

// The checkout provider keeps a created session payable for 24 hours.
const SessionTTL = 24 * time.Hour

const (
	StatusOpen     = "open"
	StatusComplete = "complete"
	StatusExpired  = "expired"
)

type Config struct {
	APIKey     string `envconfig:"CHECKOUT_API_KEY"`
	BaseURL    string `envconfig:"CHECKOUT_BASE_URL" default:"https://api.stripe.com"`
	SuccessURL string `envconfig:"CHECKOUT_SUCCESS_URL" default:"http://localhost:8080/api/v1/payments/success"`
	CancelURL  string `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:8080/api/v1/payments/cancel"`
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Client talks to the remote checkout-session provider. All calls go
// through a circuit breaker so a dead provider fails fast instead of
// hanging borrowing requests.
type Client struct {
	cfg     Config
	client  *http.Client
	breaker cb.CircuitBreaker
	log     *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: time.Minute},
		breaker: cb.New(20, 30*time.Second, 0.5, 3),
		log:     log.Named("checkout"),
	}
}

// CreateSession opens a checkout session for a single item and returns
// its opaque url+id handle.
func (c *Client) CreateSession(ctx context.Context, itemName string, amountCents int64) (Session, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", uuid.NewString())
	form.Set("success_url", c.cfg.SuccessURL+"?session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.cfg.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(amountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", itemName)
	form.Set("expires_at", strconv.FormatInt(time.Now().Add(SessionTTL).Unix(), 10))

	var session Session
	if err := c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.cfg.BaseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode >= http.StatusMultipleChoices {
			return fmt.Errorf("checkout create session: %s", resp.Status)
		}
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return err
		}
		if session.ID == "" {
			return errors.New("checkout: empty session id")
		}
		return nil
	}); err != nil {
		return Session{}, err
	}

	c.log.Debug("session created", zap.String("session_id", session.ID))
	return session, nil
}

// RetrieveSession reports the remote status of a session.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (string, error) {
	var out struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := c.breaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.cfg.BaseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID), http.NoBody)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close() //nolint:errcheck
		if resp.StatusCode >= http.StatusMultipleChoices {
			return fmt.Errorf("checkout retrieve session: %s", resp.Status)
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	}); err != nil {
		return "", err
	}
	return out.Status, nil
}

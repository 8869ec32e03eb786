// Package emis talks to the EMIS GPO (Multicaixa Express) hosted-payment
// gateway. The request schema is not publicly documented; the snake_case
// field set below is what the gateway actually accepts, and the response
// body arrives either as a bare token string or as JSON carrying
// transactionId/id. Both shapes must stay supported.
package emis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/infopay/backend/internal/infra/httpclient"
)

const (
	// MobilePayment is the payment-method enablement flag the gateway
	// expects on every frame-token request.
	MobilePayment = "PAYMENT"

	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20
)

type Config struct {
	ChargeURL string
	FrameURL  string
	Timeout   time.Duration
}

type Client struct {
	httpClient *http.Client
	chargeURL  string
	frameURL   string
}

// ChargeRequest is the gateway's frame-token request body. Field names and
// casing are the gateway's contract, not ours.
type ChargeRequest struct {
	Token        string `json:"token"`
	Reference    string `json:"reference"`
	Amount       string `json:"amount"`
	CallbackURL  string `json:"callback_url"`
	ClientName   string `json:"client_name"`
	ClientEmail  string `json:"client_email"`
	ClientMSISDN string `json:"client_msisdn"`
	Mobile       string `json:"mobile"`
}

// GatewayError carries the gateway's raw response text for operator
// diagnosis.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error: status=%d body=%q", e.StatusCode, e.Body)
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ChargeURL) == "" {
		return nil, fmt.Errorf("emis charge url is required")
	}
	if strings.TrimSpace(cfg.FrameURL) == "" {
		return nil, fmt.Errorf("emis frame url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: httpclient.New(timeout),
		chargeURL:  strings.TrimSpace(cfg.ChargeURL),
		frameURL:   strings.TrimSpace(cfg.FrameURL),
	}, nil
}

// CreateFrameToken mints a hosted-payment frame token for one checkout
// attempt. The call is not retried: token issuance idempotency on the
// gateway side is unknown.
func (c *Client) CreateFrameToken(ctx context.Context, req ChargeRequest) (string, error) {
	if c == nil || c.httpClient == nil {
		return "", fmt.Errorf("emis client is not initialized")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return "", fmt.Errorf("charge reference is required")
	}
	if req.Mobile == "" {
		req.Mobile = MobilePayment
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chargeURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call payment gateway: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &GatewayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	token := extractToken(raw)
	if token == "" {
		return "", &GatewayError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	return token, nil
}

// FrameURL builds the hosted-payment iframe URL for a minted token.
func (c *Client) FrameURL(token string) string {
	return c.frameURL + "?token=" + url.QueryEscape(token)
}

// extractToken tolerates the gateway's observed response shapes: a JSON
// object with transactionId or id, a JSON-quoted string, or a bare token.
func extractToken(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			TransactionID string `json:"transactionId"`
			ID            string `json:"id"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return ""
		}
		if payload.TransactionID != "" {
			return payload.TransactionID
		}
		return payload.ID
	}

	if strings.HasPrefix(trimmed, `"`) {
		var quoted string
		if err := json.Unmarshal([]byte(trimmed), &quoted); err != nil {
			return ""
		}
		return strings.TrimSpace(quoted)
	}

	if strings.ContainsAny(trimmed, " \t\r\n") {
		return ""
	}
	return trimmed
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/coursedesk/coursedesk/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.paynest.dev/v1"

// ErrUnavailable marks network-level or 5xx gateway failures. Callers may
// retry; no local state has been written when it is returned.
var ErrUnavailable = errors.New("payment gateway unavailable")

// ErrRefundExceedsCaptured is returned by the gateway when a refund amount
// is larger than the originally captured charge.
var ErrRefundExceedsCaptured = errors.New("refund exceeds captured amount")

// Client is a thin HTTP wrapper around the payment processor API. It only
// covers the three calls the checkout core needs: create a hosted checkout
// session, read a session back, and create a refund.
type Client struct {
	APIBaseURL string
	APIKey     string
	SuccessURL string
	CancelURL  string

	HTTPClient *http.Client
}

// CheckoutSession mirrors the processor's session object.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
}

// SessionMetadata is echoed back to us in webhook events and ties a gateway
// session to the local (user, course) pair.
type SessionMetadata struct {
	UserID   uint
	CourseID uint
}

// RefundResult mirrors the processor's refund object.
type RefundResult struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount"`
}

func NewClientFromEnv() *Client {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("CHECKOUT_SUCCESS_URL", ""))
	cancelURL := strings.TrimSpace(env.GetEnv("CHECKOUT_CANCEL_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/checkout/success"
	}
	if cancelURL == "" && base != "" {
		cancelURL = base + "/checkout/canceled"
	}

	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("GATEWAY_API_BASE_URL", defaultAPIBaseURL), "/"),
		APIKey:     strings.TrimSpace(env.GetEnv("GATEWAY_API_KEY", "")),
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession asks the processor for a hosted checkout session.
// The idempotency key travels as a header so client retries never create a
// second charge on the processor side.
func (c *Client) CreateCheckoutSession(ctx context.Context, amountCents int64, currency string, meta SessionMetadata, idempotencyKey string) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", strings.ToLower(strings.TrimSpace(currency)))
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(meta.UserID), 10))
	form.Set("metadata[course_id]", strconv.FormatUint(uint64(meta.CourseID), 10))

	headers := map[string]string{"Idempotency-Key": idempotencyKey}

	var session CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, headers, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		return nil, fmt.Errorf("gateway returned session without id")
	}
	return &session, nil
}

// GetCheckoutSession reads live session state for status polling.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/checkout/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	var session CheckoutSession
	if err := c.doJSON(req, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateRefund refunds up to the captured amount of a charge. The processor
// rejects over-refunds with a dedicated error code which is mapped to
// ErrRefundExceedsCaptured.
func (c *Client) CreateRefund(ctx context.Context, externalSessionID string, amountCents int64) (*RefundResult, error) {
	form := url.Values{}
	form.Set("checkout_session", strings.TrimSpace(externalSessionID))
	form.Set("amount", strconv.FormatInt(amountCents, 10))

	var result RefundResult
	if err := c.postForm(ctx, "/refunds", form, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return c.doJSON(req, out)
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil {
			if apiErr.Error.Code == "refund_exceeds_captured" {
				return ErrRefundExceedsCaptured
			}
			if apiErr.Error.Message != "" {
				return fmt.Errorf("gateway error %d: %s (%s)", resp.StatusCode, apiErr.Error.Message, apiErr.Error.Code)
			}
		}
		return fmt.Errorf("gateway error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	return nil
}

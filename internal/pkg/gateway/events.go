package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Event types consumed by the reconciliation engine. Anything else is
// acknowledged and ignored.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
	EventRefundUpdated            = "refund.updated"
)

// Event is the webhook envelope: {"id","type","created","data":{"object":…}}.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// SessionCompletedEvent is the object payload of checkout.session.completed.
type SessionCompletedEvent struct {
	SessionID     string
	PaymentStatus string
	AmountTotal   int64
	Currency      string
	UserID        uint
	CourseID      uint
}

// PaymentFailedEvent is the object payload of payment_intent.payment_failed.
type PaymentFailedEvent struct {
	SessionID    string
	ErrorCode    string
	ErrorMessage string
}

// RefundUpdatedEvent is the object payload of refund.updated.
type RefundUpdatedEvent struct {
	RefundID    string
	SessionID   string
	AmountCents int64
	Status      string
}

// ParseEvent decodes the raw webhook body into the envelope. Only the
// envelope is validated here; object payloads are decoded on demand.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decoding webhook envelope: %w", err)
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, fmt.Errorf("webhook event has no type")
	}
	return &ev, nil
}

func (e *Event) SessionCompleted() (*SessionCompletedEvent, error) {
	var obj struct {
		ID            string            `json:"id"`
		PaymentStatus string            `json:"payment_status"`
		AmountTotal   int64             `json:"amount_total"`
		Currency      string            `json:"currency"`
		Metadata      map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("decoding checkout session object: %w", err)
	}
	if obj.ID == "" {
		return nil, fmt.Errorf("checkout session object has no id")
	}

	userID, err := parseMetadataID(obj.Metadata, "user_id")
	if err != nil {
		return nil, err
	}
	courseID, err := parseMetadataID(obj.Metadata, "course_id")
	if err != nil {
		return nil, err
	}

	return &SessionCompletedEvent{
		SessionID:     obj.ID,
		PaymentStatus: strings.ToLower(strings.TrimSpace(obj.PaymentStatus)),
		AmountTotal:   obj.AmountTotal,
		Currency:      strings.ToUpper(strings.TrimSpace(obj.Currency)),
		UserID:        userID,
		CourseID:      courseID,
	}, nil
}

func (e *Event) PaymentFailed() (*PaymentFailedEvent, error) {
	var obj struct {
		ID               string `json:"id"`
		CheckoutSession  string `json:"checkout_session"`
		LastPaymentError struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"last_payment_error"`
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("decoding payment intent object: %w", err)
	}
	sessionID := obj.CheckoutSession
	if sessionID == "" {
		sessionID = obj.ID
	}
	if sessionID == "" {
		return nil, fmt.Errorf("payment intent object has no session reference")
	}
	return &PaymentFailedEvent{
		SessionID:    sessionID,
		ErrorCode:    obj.LastPaymentError.Code,
		ErrorMessage: obj.LastPaymentError.Message,
	}, nil
}

func (e *Event) RefundUpdated() (*RefundUpdatedEvent, error) {
	var obj struct {
		ID              string `json:"id"`
		CheckoutSession string `json:"checkout_session"`
		Amount          int64  `json:"amount"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(e.Data.Object, &obj); err != nil {
		return nil, fmt.Errorf("decoding refund object: %w", err)
	}
	if obj.CheckoutSession == "" {
		return nil, fmt.Errorf("refund object has no session reference")
	}
	return &RefundUpdatedEvent{
		RefundID:    obj.ID,
		SessionID:   obj.CheckoutSession,
		AmountCents: obj.Amount,
		Status:      strings.ToLower(strings.TrimSpace(obj.Status)),
	}, nil
}

func parseMetadataID(meta map[string]string, key string) (uint, error) {
	raw := strings.TrimSpace(meta[key])
	if raw == "" {
		return 0, fmt.Errorf("session metadata missing %s", key)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("session metadata %s is not a valid id: %q", key, raw)
	}
	return uint(id), nil
}

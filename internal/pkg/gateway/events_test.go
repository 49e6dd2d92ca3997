package gateway

import (
	"testing"
)

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1756600000,
		"data": {"object": {"id": "cs_123"}}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.ID != "evt_1" || ev.Type != EventCheckoutSessionCompleted {
		t.Fatalf("unexpected envelope: id=%q type=%q", ev.ID, ev.Type)
	}

	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected malformed body to fail")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt_2"}`)); err == nil {
		t.Fatalf("expected missing type to fail")
	}
}

func TestSessionCompleted(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_3",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_456",
			"payment_status": "Paid",
			"amount_total": 9999,
			"currency": "usd",
			"metadata": {"user_id": "10", "course_id": "1"}
		}}
	}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	completed, err := ev.SessionCompleted()
	if err != nil {
		t.Fatalf("unexpected object error: %v", err)
	}
	if completed.SessionID != "cs_456" {
		t.Fatalf("unexpected session id %q", completed.SessionID)
	}
	if completed.PaymentStatus != "paid" {
		t.Fatalf("expected normalized payment status, got %q", completed.PaymentStatus)
	}
	if completed.AmountTotal != 9999 || completed.Currency != "USD" {
		t.Fatalf("unexpected amount/currency: %d %q", completed.AmountTotal, completed.Currency)
	}
	if completed.UserID != 10 || completed.CourseID != 1 {
		t.Fatalf("unexpected metadata ids: user=%d course=%d", completed.UserID, completed.CourseID)
	}
}

func TestSessionCompletedMissingMetadata(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_4",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_789", "payment_status": "paid", "metadata": {"user_id": "10"}}}
	}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := ev.SessionCompleted(); err == nil {
		t.Fatalf("expected missing course_id to fail")
	}
}

func TestPaymentFailedSessionFallback(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_5",
		"type": "payment_intent.payment_failed",
		"data": {"object": {
			"id": "pi_1",
			"checkout_session": "cs_abc",
			"last_payment_error": {"code": "card_declined", "message": "Card declined"}
		}}
	}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	failed, err := ev.PaymentFailed()
	if err != nil {
		t.Fatalf("unexpected object error: %v", err)
	}
	if failed.SessionID != "cs_abc" {
		t.Fatalf("expected checkout_session to win, got %q", failed.SessionID)
	}
	if failed.ErrorCode != "card_declined" {
		t.Fatalf("unexpected error code %q", failed.ErrorCode)
	}

	// Without checkout_session the intent id is the session reference.
	ev2, err := ParseEvent([]byte(`{
		"id": "evt_6",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "cs_direct"}}
	}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	failed2, err := ev2.PaymentFailed()
	if err != nil {
		t.Fatalf("unexpected object error: %v", err)
	}
	if failed2.SessionID != "cs_direct" {
		t.Fatalf("expected id fallback, got %q", failed2.SessionID)
	}
}

func TestRefundUpdated(t *testing.T) {
	ev, err := ParseEvent([]byte(`{
		"id": "evt_7",
		"type": "refund.updated",
		"data": {"object": {"id": "re_1", "checkout_session": "cs_ref", "amount": 5000, "status": "Succeeded"}}
	}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	refund, err := ev.RefundUpdated()
	if err != nil {
		t.Fatalf("unexpected object error: %v", err)
	}
	if refund.SessionID != "cs_ref" || refund.AmountCents != 5000 {
		t.Fatalf("unexpected refund: session=%q amount=%d", refund.SessionID, refund.AmountCents)
	}
	if refund.Status != "succeeded" {
		t.Fatalf("expected normalized status, got %q", refund.Status)
	}

	ev2, err := ParseEvent([]byte(`{
		"id": "evt_8",
		"type": "refund.updated",
		"data": {"object": {"id": "re_2", "amount": 5000}}
	}`))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := ev2.RefundUpdated(); err == nil {
		t.Fatalf("expected missing session reference to fail")
	}
}

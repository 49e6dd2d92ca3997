package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return &Client{
		APIBaseURL: url,
		APIKey:     "sk_test_123",
		SuccessURL: "https://coursedesk.example/checkout/success",
		CancelURL:  "https://coursedesk.example/checkout/canceled",
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "idem-1" {
			t.Errorf("unexpected idempotency key %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("amount") != "9999" || r.PostForm.Get("currency") != "usd" {
			t.Errorf("unexpected amount/currency: %q %q", r.PostForm.Get("amount"), r.PostForm.Get("currency"))
		}
		if r.PostForm.Get("metadata[user_id]") != "10" || r.PostForm.Get("metadata[course_id]") != "1" {
			t.Errorf("unexpected metadata: %v", r.PostForm)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_new","url":"https://pay.example/cs_new","status":"open","payment_status":"unpaid","amount_total":9999,"currency":"usd"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.CreateCheckoutSession(context.Background(), 9999, "USD", SessionMetadata{UserID: 10, CourseID: 1}, "idem-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_new" || session.URL != "https://pay.example/cs_new" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCreateCheckoutSessionMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.CreateCheckoutSession(context.Background(), 9999, "USD", SessionMetadata{UserID: 10, CourseID: 1}, "idem-2"); err == nil {
		t.Fatalf("expected session without id to fail")
	}
}

func TestGetCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/sessions/cs_live" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"id":"cs_live","status":"complete","payment_status":"paid"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	session, err := client.GetCheckoutSession(context.Background(), "cs_live")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.PaymentStatus != "paid" {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := client.GetCheckoutSession(context.Background(), "  "); err == nil {
		t.Fatalf("expected empty session id to fail")
	}
}

func TestCreateRefundErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":{"code":"refund_exceeds_captured","message":"Refund amount exceeds charge"}}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateRefund(context.Background(), "cs_over", 100000)
	if !errors.Is(err, ErrRefundExceedsCaptured) {
		t.Fatalf("expected ErrRefundExceedsCaptured, got %v", err)
	}
}

func TestServerErrorsMapToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.CreateRefund(context.Background(), "cs_down", 100)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	srv.Close()
	_, err = client.GetCheckoutSession(context.Background(), "cs_conn")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected connection failure to map to ErrUnavailable, got %v", err)
	}
}

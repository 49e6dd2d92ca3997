package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"
)

func signPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Unix(1756600000, 0)

	header := signPayload(payload, secret, now)
	if !verifyWebhookSignatureAt(payload, header, secret, now) {
		t.Fatalf("expected valid signature to verify")
	}

	if verifyWebhookSignatureAt(payload, header, "whsec_other", now) {
		t.Fatalf("expected wrong secret to fail")
	}
	if verifyWebhookSignatureAt([]byte(`{"tampered":true}`), header, secret, now) {
		t.Fatalf("expected tampered payload to fail")
	}
	if verifyWebhookSignatureAt(payload, "", secret, now) {
		t.Fatalf("expected empty header to fail")
	}
	if verifyWebhookSignatureAt(payload, header, "", now) {
		t.Fatalf("expected empty secret to fail")
	}
	if verifyWebhookSignatureAt(payload, "t=abc,v1=deadbeef", secret, now) {
		t.Fatalf("expected non-numeric timestamp to fail")
	}
}

func TestVerifyWebhookSignatureTolerance(t *testing.T) {
	payload := []byte(`{"id":"evt_2"}`)
	secret := "whsec_test"
	signedAt := time.Unix(1756600000, 0)
	header := signPayload(payload, secret, signedAt)

	if !verifyWebhookSignatureAt(payload, header, secret, signedAt.Add(4*time.Minute)) {
		t.Fatalf("expected delivery within tolerance to verify")
	}
	if verifyWebhookSignatureAt(payload, header, secret, signedAt.Add(6*time.Minute)) {
		t.Fatalf("expected stale timestamp to fail")
	}
	if verifyWebhookSignatureAt(payload, header, secret, signedAt.Add(-6*time.Minute)) {
		t.Fatalf("expected future timestamp to fail")
	}
}

func TestVerifyWebhookSignatureMultipleCandidates(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	secret := "whsec_test"
	now := time.Unix(1756600000, 0)

	ts := strconv.FormatInt(now.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)

	// Secret rollover: an old v1 entry plus the current one.
	header := "t=" + ts + ",v1=deadbeef,v1=" + hex.EncodeToString(mac.Sum(nil))
	if !verifyWebhookSignatureAt(payload, header, secret, now) {
		t.Fatalf("expected one matching candidate to verify")
	}
}

func TestComputeWebhookSignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_4","type":"refund.updated"}`)
	secret := "whsec_roundtrip"
	now := time.Unix(1756600000, 0)

	header := ComputeWebhookSignature(payload, secret, now)
	if !verifyWebhookSignatureAt(payload, header, secret, now) {
		t.Fatalf("expected computed signature to verify")
	}
}

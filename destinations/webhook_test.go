package destinations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/cavendo/go-dispatch/core"
	"github.com/cavendo/go-dispatch/security"
)

type allowAllValidator struct{}

func (allowAllValidator) ValidateOutboundURL(context.Context, string) error { return nil }

type rejectingValidator struct{}

func (rejectingValidator) ValidateOutboundURL(context.Context, string) error {
	return fmt.Errorf("destination resolves to blocked address 10.0.0.5")
}

func TestWebhookDestination_DeliversSignedJSON(t *testing.T) {
	var (
		gotBody    []byte
		gotHeaders http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	signer := security.NewHMACSigner("X-Cavendo-Signature", "X-Cavendo-Timestamp")
	destination := NewWebhookDestination(allowAllValidator{}, signer, 5*time.Second, 4096)

	result, err := destination.Deliver(context.Background(),
		map[string]any{"url": server.URL, "secret": "whsec_abc"},
		map[string]any{"event": "task.updated", "deliveryId": "d1"},
	)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if result.ResponseCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", result.ResponseCode)
	}

	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Fatalf("expected json content type, got %q", gotHeaders.Get("Content-Type"))
	}
	signature := gotHeaders.Get("X-Cavendo-Signature")
	timestamp := gotHeaders.Get("X-Cavendo-Timestamp")
	if !strings.HasPrefix(signature, "sha256=") || timestamp == "" {
		t.Fatalf("expected signature headers, got %q %q", signature, timestamp)
	}
	if !signer.Verify("whsec_abc", timestamp, gotBody, signature) {
		t.Fatalf("signature must verify against the received body")
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if payload["deliveryId"] != "d1" {
		t.Fatalf("unexpected body %v", payload)
	}
}

func TestWebhookDestination_UnsignedWithoutSecret(t *testing.T) {
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	destination := NewWebhookDestination(allowAllValidator{},
		security.NewHMACSigner("", ""), 5*time.Second, 4096)
	if _, err := destination.Deliver(context.Background(),
		map[string]any{"url": server.URL}, map[string]any{}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if gotHeaders.Get("X-Cavendo-Signature") != "" {
		t.Fatalf("secretless route must deliver unsigned")
	}
}

func TestWebhookDestination_GuardRejectionIsSecurityError(t *testing.T) {
	destination := NewWebhookDestination(rejectingValidator{}, nil, 5*time.Second, 4096)

	_, err := destination.Deliver(context.Background(),
		map[string]any{"url": "https://hooks.example.com/x"}, map[string]any{})
	if err == nil {
		t.Fatalf("expected guard rejection")
	}
	if !core.IsSecurityRejection(err) {
		t.Fatalf("expected security rejection text code, got %v", err)
	}
	if core.IsRetryable(err) {
		t.Fatalf("guard rejections must not retry")
	}
}

func TestWebhookDestination_Non2xxReturnsResultAndError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broken")
	}))
	defer server.Close()

	destination := NewWebhookDestination(allowAllValidator{}, nil, 5*time.Second, 4096)
	result, err := destination.Deliver(context.Background(),
		map[string]any{"url": server.URL}, map[string]any{})
	if err == nil {
		t.Fatalf("expected error for 502")
	}
	if result == nil || result.ResponseCode != http.StatusBadGateway {
		t.Fatalf("expected result alongside the error, got %+v", result)
	}
	if result.ResponseBody != "upstream broken" {
		t.Fatalf("expected captured body, got %q", result.ResponseBody)
	}
	if !core.IsRetryable(err) {
		t.Fatalf("5xx responses retry")
	}
}

func TestWebhookDestination_ResponseBodyCapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	destination := NewWebhookDestination(allowAllValidator{}, nil, 5*time.Second, 10)
	result, err := destination.Deliver(context.Background(),
		map[string]any{"url": server.URL}, map[string]any{})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(result.ResponseBody) != 10 {
		t.Fatalf("expected capped body, got %d bytes", len(result.ResponseBody))
	}
}

func TestWebhookDestination_RedirectNotFollowed(t *testing.T) {
	var targetHit bool
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		targetHit = true
	}))
	defer target.Close()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer server.Close()

	destination := NewWebhookDestination(allowAllValidator{}, nil, 5*time.Second, 4096)
	result, err := destination.Deliver(context.Background(),
		map[string]any{"url": server.URL}, map[string]any{})
	if err == nil {
		t.Fatalf("redirect status is not a success")
	}
	if result.ResponseCode != http.StatusFound {
		t.Fatalf("expected the redirect status itself, got %d", result.ResponseCode)
	}
	if targetHit {
		t.Fatalf("redirect target must never be fetched")
	}
}

func TestWebhookDestination_TimeoutClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	destination := NewWebhookDestination(allowAllValidator{}, nil, 20*time.Millisecond, 4096)
	_, err := destination.Deliver(context.Background(),
		map[string]any{"url": server.URL}, map[string]any{})
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != core.DispatchErrorTimeout {
		t.Fatalf("expected timeout text code, got %v", err)
	}
	if !core.IsRetryable(err) {
		t.Fatalf("timeouts retry")
	}
}

func TestWebhookDestination_MissingURL(t *testing.T) {
	destination := NewWebhookDestination(nil, nil, time.Second, 4096)
	if _, err := destination.Deliver(context.Background(), map[string]any{}, map[string]any{}); err == nil {
		t.Fatalf("expected validation error for missing url")
	}
	if err := destination.CheckConfig(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected config error for missing url")
	}
}

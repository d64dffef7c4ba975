package destinations

import (
	"context"
	"fmt"
	"testing"

	"github.com/cavendo/go-dispatch/core"
)

type stubChatProvider struct {
	posts   []map[string]any
	urls    []string
	postErr error
}

func (p *stubChatProvider) Post(_ context.Context, webhookURL string, payload map[string]any) error {
	if p.postErr != nil {
		return p.postErr
	}
	p.urls = append(p.urls, webhookURL)
	p.posts = append(p.posts, payload)
	return nil
}

func TestSlackDestination_PostsNotification(t *testing.T) {
	provider := &stubChatProvider{}
	destination := NewSlackDestination(provider, allowAllValidator{})

	_, err := destination.Deliver(context.Background(),
		map[string]any{
			"webhook_url": "https://hooks.slack.com/services/T/B/x",
			"channel":     "#deploys",
		},
		map[string]any{"event": "task.updated"},
	)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(provider.posts) != 1 {
		t.Fatalf("expected one post, got %d", len(provider.posts))
	}
	message := provider.posts[0]
	if message["text"] != "Event received: task.updated" {
		t.Fatalf("unexpected text %v", message["text"])
	}
	if message["channel"] != "#deploys" {
		t.Fatalf("expected channel override, got %v", message["channel"])
	}
	if _, ok := message["blocks"]; !ok {
		t.Fatalf("expected block kit payload")
	}
}

func TestSlackDestination_GuardRejection(t *testing.T) {
	provider := &stubChatProvider{}
	destination := NewSlackDestination(provider, rejectingValidator{})

	_, err := destination.Deliver(context.Background(),
		map[string]any{"webhook_url": "https://internal.example.com/hook"},
		map[string]any{})
	if err == nil {
		t.Fatalf("expected guard rejection")
	}
	if !core.IsSecurityRejection(err) {
		t.Fatalf("expected security rejection, got %v", err)
	}
	if len(provider.posts) != 0 {
		t.Fatalf("rejected url must not be posted to")
	}
}

func TestSlackDestination_ProviderFailureRetries(t *testing.T) {
	provider := &stubChatProvider{postErr: fmt.Errorf("slack returned 500")}
	destination := NewSlackDestination(provider, allowAllValidator{})

	_, err := destination.Deliver(context.Background(),
		map[string]any{"webhook_url": "https://hooks.slack.com/services/T/B/x"},
		map[string]any{})
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if !core.IsRetryable(err) {
		t.Fatalf("provider failures retry")
	}
}

func TestSlackDestination_CheckConfigValidatesURLOnly(t *testing.T) {
	provider := &stubChatProvider{}
	destination := NewSlackDestination(provider, allowAllValidator{})

	if err := destination.CheckConfig(context.Background(),
		map[string]any{"webhook_url": "https://hooks.slack.com/services/T/B/x"}); err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(provider.posts) != 0 {
		t.Fatalf("config check must not post")
	}
	if err := destination.CheckConfig(context.Background(), map[string]any{}); err == nil {
		t.Fatalf("expected error without webhook url")
	}
}

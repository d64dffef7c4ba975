package destinations

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

type stubStorageProvider struct {
	puts     map[string][]byte
	putErr   error
	checkErr error
}

func newStubStorageProvider() *stubStorageProvider {
	return &stubStorageProvider{puts: map[string][]byte{}}
}

func (p *stubStorageProvider) Put(_ context.Context, key string, _ string, body []byte) error {
	if p.putErr != nil {
		return p.putErr
	}
	p.puts[key] = body
	return nil
}

func (p *stubStorageProvider) Check(context.Context) error { return p.checkErr }

func TestObjectKey_SanitizesProjectName(t *testing.T) {
	cases := []struct {
		project string
		want    string
	}{
		{"My Project!@#", "cavendo/My_Project___/dl-1/payload.json"},
		{"plain-name_1", "cavendo/plain-name_1/dl-1/payload.json"},
		{"../escape", "cavendo/___escape/dl-1/payload.json"},
		{"", "cavendo//dl-1/payload.json"},
	}
	for _, tc := range cases {
		if got := ObjectKey("cavendo/", tc.project, "dl-1", "payload.json"); got != tc.want {
			t.Fatalf("project %q: expected %q, got %q", tc.project, tc.want, got)
		}
	}
}

func TestStorageDestination_WritesPayloadObject(t *testing.T) {
	provider := newStubStorageProvider()
	destination := NewStorageDestination(provider, "cavendo/")

	_, err := destination.Deliver(context.Background(),
		map[string]any{"project_name": "Acme Corp", "filename": "event.json"},
		map[string]any{"deliveryId": "d1", "event": "deliverable.approved"},
	)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}

	body, ok := provider.puts["cavendo/Acme_Corp/d1/event.json"]
	if !ok {
		t.Fatalf("expected object written, got keys %v", keysOf(provider.puts))
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("stored object is not json: %v", err)
	}
	if payload["event"] != "deliverable.approved" {
		t.Fatalf("unexpected stored payload %v", payload)
	}
}

func TestStorageDestination_DefaultsFilename(t *testing.T) {
	provider := newStubStorageProvider()
	destination := NewStorageDestination(provider, "")

	if _, err := destination.Deliver(context.Background(),
		map[string]any{"project_name": "p"},
		map[string]any{"deliveryId": "d1"}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, ok := provider.puts["p/d1/payload.json"]; !ok {
		t.Fatalf("expected default filename, got keys %v", keysOf(provider.puts))
	}
}

func TestStorageDestination_CheckConfig(t *testing.T) {
	provider := newStubStorageProvider()
	destination := NewStorageDestination(provider, "")
	if err := destination.CheckConfig(context.Background(), nil); err != nil {
		t.Fatalf("check: %v", err)
	}

	provider.checkErr = fmt.Errorf("bucket unreachable")
	if err := destination.CheckConfig(context.Background(), nil); err == nil {
		t.Fatalf("expected connectivity error")
	}

	missing := NewStorageDestination(nil, "")
	if err := missing.CheckConfig(context.Background(), nil); err == nil {
		t.Fatalf("expected error without a provider")
	}
}

func keysOf(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	return out
}

func TestStorageDestination_KeyPrefersDeliverableID(t *testing.T) {
	provider := newStubStorageProvider()
	destination := NewStorageDestination(provider, "cavendo/")

	_, err := destination.Deliver(context.Background(),
		map[string]any{"project_name": "Acme", "filename": "out.json"},
		map[string]any{"deliverableId": "dl-9", "deliveryId": "d1"},
	)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if _, ok := provider.puts["cavendo/Acme/dl-9/out.json"]; !ok {
		t.Fatalf("expected deliverable id key segment, got keys %v", keysOf(provider.puts))
	}
}

package core

import (
	"testing"
	"time"
)

func TestDeliveryStatus_TransitionTo(t *testing.T) {
	valid := []struct{ from, to DeliveryStatus }{
		{DeliveryStatusPending, DeliveryStatusDelivered},
		{DeliveryStatusPending, DeliveryStatusRetrying},
		{DeliveryStatusPending, DeliveryStatusFailed},
		{DeliveryStatusRetrying, DeliveryStatusRetrying},
		{DeliveryStatusRetrying, DeliveryStatusDelivered},
		{DeliveryStatusRetrying, DeliveryStatusFailed},
	}
	for _, tc := range valid {
		if err := tc.from.TransitionTo(tc.to); err != nil {
			t.Fatalf("expected valid transition %s -> %s, got error: %v", tc.from, tc.to, err)
		}
	}

	invalid := []struct{ from, to DeliveryStatus }{
		{DeliveryStatusDelivered, DeliveryStatusRetrying},
		{DeliveryStatusDelivered, DeliveryStatusPending},
		{DeliveryStatusFailed, DeliveryStatusRetrying},
		{DeliveryStatusFailed, DeliveryStatusDelivered},
		{DeliveryStatusRetrying, DeliveryStatusPending},
	}
	for _, tc := range invalid {
		if err := tc.from.TransitionTo(tc.to); err == nil {
			t.Fatalf("expected invalid transition %s -> %s", tc.from, tc.to)
		}
	}

	if err := DeliveryStatus("bogus").TransitionTo(DeliveryStatusFailed); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestDeliveryStatus_IsTerminal(t *testing.T) {
	if DeliveryStatusPending.IsTerminal() || DeliveryStatusRetrying.IsTerminal() {
		t.Fatalf("pending and retrying are not terminal")
	}
	if !DeliveryStatusDelivered.IsTerminal() || !DeliveryStatusFailed.IsTerminal() {
		t.Fatalf("delivered and failed are terminal")
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	cases := []struct {
		policy        RetryPolicy
		failedAttempt int
		want          time.Duration
	}{
		{RetryPolicy{BackoffType: BackoffFixed, InitialDelayMs: 500}, 1, 500 * time.Millisecond},
		{RetryPolicy{BackoffType: BackoffFixed, InitialDelayMs: 500}, 4, 500 * time.Millisecond},
		{RetryPolicy{BackoffType: BackoffLinear, InitialDelayMs: 1000}, 1, 2 * time.Second},
		{RetryPolicy{BackoffType: BackoffLinear, InitialDelayMs: 1000}, 3, 4 * time.Second},
		{RetryPolicy{BackoffType: BackoffExponential, InitialDelayMs: 1000}, 1, 2 * time.Second},
		{RetryPolicy{BackoffType: BackoffExponential, InitialDelayMs: 1000}, 3, 8 * time.Second},
		// Attempt numbers below 1 clamp to the first attempt delay.
		{RetryPolicy{BackoffType: BackoffExponential, InitialDelayMs: 1000}, 0, 2 * time.Second},
	}
	for i, tc := range cases {
		if got := tc.policy.Delay(tc.failedAttempt); got != tc.want {
			t.Fatalf("case %d: expected %v, got %v", i, tc.want, got)
		}
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	if err := DefaultRetryPolicy().Validate(); err != nil {
		t.Fatalf("default policy must validate: %v", err)
	}
	if err := (RetryPolicy{MaxRetries: -1, BackoffType: BackoffFixed}).Validate(); err == nil {
		t.Fatalf("expected error for negative retries")
	}
	if err := (RetryPolicy{InitialDelayMs: -10, BackoffType: BackoffFixed}).Validate(); err == nil {
		t.Fatalf("expected error for negative delay")
	}
	if err := (RetryPolicy{BackoffType: "quadratic"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown backoff type")
	}
}

func TestAgentWebhook_WantsEvent(t *testing.T) {
	open := AgentWebhook{}
	if !open.WantsEvent(EventTaskUpdated) {
		t.Fatalf("empty event list subscribes to everything")
	}

	filtered := AgentWebhook{Events: []string{EventTaskUpdated, EventTaskClaimed}}
	if !filtered.WantsEvent(EventTaskClaimed) {
		t.Fatalf("listed event must match")
	}
	if filtered.WantsEvent(EventDeliverableApproved) {
		t.Fatalf("unlisted event must not match")
	}
}

func TestRouteScopeAndDestinationValidity(t *testing.T) {
	if !RouteScopeGlobal.Valid() || !RouteScopeProject.Valid() {
		t.Fatalf("known scopes must validate")
	}
	if RouteScope("tenant").Valid() {
		t.Fatalf("unknown scope must not validate")
	}
	for _, kind := range []DestinationKind{DestinationWebhook, DestinationEmail, DestinationStorage, DestinationSlack} {
		if !kind.Valid() {
			t.Fatalf("known destination %q must validate", kind)
		}
	}
	if DestinationKind("sms").Valid() {
		t.Fatalf("unknown destination must not validate")
	}
}

func TestEventVocabulary(t *testing.T) {
	want := map[string]string{
		EventTaskAssigned:                 "task.assigned",
		EventTaskUpdated:                  "task.updated",
		EventTaskClaimed:                  "task.claimed",
		EventTaskProgressUpdated:          "task.progress_updated",
		EventDeliverableApproved:          "deliverable.approved",
		EventDeliverableRevisionRequested: "deliverable.revision_requested",
		EventDeliverableRejected:          "deliverable.rejected",
		EventSprintStarted:                "sprint.started",
		EventProjectKnowledgeUpdated:      "project.knowledge_updated",
		EventBriefingGenerated:            "briefing.generated",
		EventAgentRegistered:              "agent.registered",
	}
	for constant, name := range want {
		if constant != name {
			t.Fatalf("expected %q, got %q", name, constant)
		}
	}
	if _, ok := GlobalOnlyEvents[EventAgentRegistered]; !ok {
		t.Fatalf("agent.registered must be global only")
	}
	if _, ok := GlobalOnlyEvents[EventTaskUpdated]; ok {
		t.Fatalf("task events carry project affinity")
	}
}

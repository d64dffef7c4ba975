package core

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type stubEncryptedSource struct {
	refs []EncryptedColumnRef
	err  error
}

func (s stubEncryptedSource) EncryptedValues(context.Context) ([]EncryptedColumnRef, error) {
	return s.refs, s.err
}

func routeService() *Service {
	svc := newTestService(&stubRouteStore{}, newRecordingDeliveryStore(), nil)
	svc.urlValidator = stubURLValidator{}
	return svc
}

func validCreateRequest() CreateRouteRequest {
	return CreateRouteRequest{
		Scope:        RouteScopeProject,
		ProjectID:    "p1",
		Name:         "on task updated",
		TriggerEvent: EventTaskUpdated,
		Destination:  DestinationWebhook,
		DestinationConfig: map[string]any{
			"url": "https://hooks.example.com/x",
		},
	}
}

func TestCreateRoute_AppliesDefaults(t *testing.T) {
	svc := routeService()

	created, err := svc.CreateRoute(context.Background(), validCreateRequest())
	if err != nil {
		t.Fatalf("create route: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated route id")
	}
	if !created.Enabled {
		t.Fatalf("routes default to enabled")
	}
	if created.RetryPolicy != DefaultRetryPolicy() {
		t.Fatalf("expected default retry policy, got %+v", created.RetryPolicy)
	}
}

func TestCreateRoute_FieldValidation(t *testing.T) {
	svc := routeService()

	cases := []struct {
		name   string
		mutate func(*CreateRouteRequest)
		field  string
	}{
		{"bad scope", func(r *CreateRouteRequest) { r.Scope = "tenant" }, "scope"},
		{"project scope without project", func(r *CreateRouteRequest) { r.ProjectID = "" }, "project_id"},
		{"global scope with project", func(r *CreateRouteRequest) { r.Scope = RouteScopeGlobal }, "project_id"},
		{"empty trigger", func(r *CreateRouteRequest) { r.TriggerEvent = " " }, "trigger_event"},
		{"bad destination", func(r *CreateRouteRequest) { r.Destination = "carrier-pigeon" }, "destination"},
		{"bad retry policy", func(r *CreateRouteRequest) {
			r.RetryPolicy = &RetryPolicy{MaxRetries: -1, BackoffType: BackoffFixed}
		}, "retry_policy"},
		{"webhook without url", func(r *CreateRouteRequest) {
			r.DestinationConfig = map[string]any{}
		}, "destination_config.url"},
	}

	for _, tc := range cases {
		req := validCreateRequest()
		tc.mutate(&req)
		_, err := svc.CreateRoute(context.Background(), req)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		var richErr *goerrors.Error
		if !goerrors.As(err, &richErr) {
			t.Fatalf("%s: expected rich error, got %T", tc.name, err)
		}
		found := false
		for _, fieldErr := range richErr.AllValidationErrors() {
			if fieldErr.Field == tc.field {
				found = true
			}
		}
		if !found {
			t.Fatalf("%s: expected field error on %q, got %v", tc.name, tc.field, richErr.AllValidationErrors())
		}
	}
}

func TestCreateRoute_WebhookURLGuard(t *testing.T) {
	svc := routeService()
	svc.urlValidator = stubURLValidator{rejectFn: func(string) error {
		return newDispatchError("url resolves to a private address",
			goerrors.CategoryAuthz, DispatchErrorSecurityRejected)
	}}

	_, err := svc.CreateRoute(context.Background(), validCreateRequest())
	if err == nil {
		t.Fatalf("expected guard rejection")
	}
	if !IsSecurityRejection(err) {
		t.Fatalf("expected security rejection, got %v", err)
	}
}

func TestUpdateRoute_PatchKeepsUntouchedFields(t *testing.T) {
	existing := enabledWebhookRoute("r1", RouteScopeProject, "p1")
	existing.Name = "original name"
	svc := routeService()
	svc.routeStore = &stubRouteStore{routes: []Route{existing}}

	name := "renamed"
	enabled := false
	updated, err := svc.UpdateRoute(context.Background(), UpdateRouteRequest{
		ID:      "r1",
		Name:    &name,
		Enabled: &enabled,
	})
	if err != nil {
		t.Fatalf("update route: %v", err)
	}
	if updated.Name != "renamed" || updated.Enabled {
		t.Fatalf("expected patched fields, got %+v", updated)
	}
	if updated.TriggerEvent != existing.TriggerEvent {
		t.Fatalf("untouched fields must survive the patch")
	}
}

func TestUpdateRoute_ChangedWebhookConfigRevalidatesURL(t *testing.T) {
	existing := enabledWebhookRoute("r1", RouteScopeProject, "p1")
	svc := routeService()
	svc.routeStore = &stubRouteStore{routes: []Route{existing}}
	var checked []string
	svc.urlValidator = stubURLValidator{rejectFn: func(rawURL string) error {
		checked = append(checked, rawURL)
		return nil
	}}

	_, err := svc.UpdateRoute(context.Background(), UpdateRouteRequest{
		ID:                "r1",
		DestinationConfig: map[string]any{"url": "https://hooks.example.com/new"},
	})
	if err != nil {
		t.Fatalf("update route: %v", err)
	}
	if len(checked) != 1 || checked[0] != "https://hooks.example.com/new" {
		t.Fatalf("expected new url validated, got %v", checked)
	}

	// A patch that leaves the destination config alone skips the guard.
	name := "renamed"
	checked = nil
	if _, err := svc.UpdateRoute(context.Background(), UpdateRouteRequest{ID: "r1", Name: &name}); err != nil {
		t.Fatalf("update route: %v", err)
	}
	if len(checked) != 0 {
		t.Fatalf("unchanged config must not revalidate, got %v", checked)
	}
}

func TestUpdateRoute_RejectsEmptyTrigger(t *testing.T) {
	existing := enabledWebhookRoute("r1", RouteScopeProject, "p1")
	svc := routeService()
	svc.routeStore = &stubRouteStore{routes: []Route{existing}}

	blank := "  "
	_, err := svc.UpdateRoute(context.Background(), UpdateRouteRequest{ID: "r1", TriggerEvent: &blank})
	if err == nil {
		t.Fatalf("expected validation error for blank trigger")
	}
}

func TestEncryptionHealthCheck_ReportsVersionsAndFailures(t *testing.T) {
	refs := []EncryptedColumnRef{
		{Table: "agent_webhooks", RowID: "w1", Column: "secret", Value: EncryptedValue{Ciphertext: "enc(a)", KeyVersion: 1}},
		{Table: "agent_webhooks", RowID: "w2", Column: "secret", Value: EncryptedValue{Ciphertext: "enc(b)", KeyVersion: 2}},
		{Table: "agent_webhooks", RowID: "w3", Column: "secret", Value: EncryptedValue{Ciphertext: "corrupt", KeyVersion: 1}},
	}
	svc := routeService()
	svc.keyring = stubKeyring{version: 2}
	svc.encryptedSource = stubEncryptedSource{refs: refs}

	report, err := svc.EncryptionHealthCheck(context.Background())
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if report.OK {
		t.Fatalf("corrupt value must fail the report")
	}
	if report.Scanned != 3 || report.Failed != 1 {
		t.Fatalf("expected 3 scanned 1 failed, got %+v", report)
	}
	if report.KeyVersions[1] != 2 || report.KeyVersions[2] != 1 {
		t.Fatalf("expected version histogram, got %v", report.KeyVersions)
	}
	if report.CurrentVersion != 2 {
		t.Fatalf("expected current keyring version, got %d", report.CurrentVersion)
	}
	if len(report.Failures) != 1 || report.Failures[0].RowID != "w3" {
		t.Fatalf("expected failing row listed, got %v", report.Failures)
	}
	if !strings.Contains(report.Failures[0].Error, "key version 1") {
		t.Fatalf("expected failure detail on the listed row, got %q", report.Failures[0].Error)
	}
	if report.Truncated {
		t.Fatalf("report under the failure cap must not truncate")
	}
}

func TestEncryptionHealthCheck_TruncatesFailureDetail(t *testing.T) {
	refs := make([]EncryptedColumnRef, 5)
	for i := range refs {
		refs[i] = EncryptedColumnRef{Table: "agent_webhooks", Column: "secret",
			Value: EncryptedValue{Ciphertext: "corrupt", KeyVersion: 1}}
	}
	svc := routeService()
	svc.keyring = stubKeyring{version: 1}
	svc.encryptedSource = stubEncryptedSource{refs: refs}
	svc.config.HealthCheckMaxFailures = 2

	report, err := svc.EncryptionHealthCheck(context.Background())
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if report.Failed != 5 {
		t.Fatalf("counters are never capped, got %d", report.Failed)
	}
	if len(report.Failures) != 2 || !report.Truncated {
		t.Fatalf("expected detail capped at 2 with truncation flag, got %d truncated=%v",
			len(report.Failures), report.Truncated)
	}
}

type stubEndpointValidator struct {
	stubURLValidator
	baseURLFn func(rawURL string) error
}

func (v stubEndpointValidator) ValidateProviderBaseURL(_ context.Context, rawURL string) error {
	if v.baseURLFn != nil {
		return v.baseURLFn(rawURL)
	}
	return nil
}

func TestCreateRoute_CustomProviderEndpointGuard(t *testing.T) {
	svc := routeService()
	var checked string
	svc.urlValidator = stubEndpointValidator{baseURLFn: func(rawURL string) error {
		checked = rawURL
		return goerrors.New("host not allowlisted", goerrors.CategoryAuthz)
	}}

	req := validCreateRequest()
	req.Destination = DestinationEmail
	req.DestinationConfig = map[string]any{
		"to":                []string{"team@example.com"},
		"provider_base_url": "https://mail.internal.example.com",
	}

	_, err := svc.CreateRoute(context.Background(), req)
	if err == nil {
		t.Fatalf("expected rejected provider endpoint")
	}
	if checked != "https://mail.internal.example.com" {
		t.Fatalf("expected base url handed to the validator, got %q", checked)
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != DispatchErrorSecurityRejected {
		t.Fatalf("expected security rejection code, got %v", err)
	}
}

func TestCreateRoute_CustomProviderEndpointAccepted(t *testing.T) {
	svc := routeService()
	svc.urlValidator = stubEndpointValidator{}

	req := validCreateRequest()
	req.Destination = DestinationEmail
	req.DestinationConfig = map[string]any{
		"to":                []string{"team@example.com"},
		"provider_base_url": "https://mail.example.com",
	}

	if _, err := svc.CreateRoute(context.Background(), req); err != nil {
		t.Fatalf("create route with allowlisted endpoint: %v", err)
	}
}

func TestUpdateRoute_CustomProviderEndpointRevalidated(t *testing.T) {
	existing := enabledWebhookRoute("r1", RouteScopeProject, "p1")
	svc := routeService()
	svc.routeStore = &stubRouteStore{routes: []Route{existing}}
	svc.urlValidator = stubEndpointValidator{baseURLFn: func(string) error {
		return goerrors.New("host not allowlisted", goerrors.CategoryAuthz)
	}}

	newConfig := map[string]any{
		"url":               "https://hooks.example.com/x",
		"provider_base_url": "https://hooks.internal.example.com",
	}
	if _, err := svc.UpdateRoute(context.Background(), UpdateRouteRequest{ID: "r1", DestinationConfig: newConfig}); err == nil {
		t.Fatalf("expected rejected provider endpoint on update")
	}
}

package core

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// CreateRoute validates and persists a new delivery route. Webhook routes
// have their destination URL checked against the outbound guard before
// anything is stored.
func (s *Service) CreateRoute(ctx context.Context, req CreateRouteRequest) (Route, error) {
	startedAt := s.clock()
	fields := map[string]any{
		"project_id":  req.ProjectID,
		"event_type":  req.TriggerEvent,
		"destination": string(req.Destination),
	}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "create_route", err, fields) }()

	if s.routeStore == nil {
		err = errNotConfigured("route store")
		return Route{}, s.mapError(err)
	}
	if validateErr := s.validateCreateRoute(ctx, req); validateErr != nil {
		err = validateErr
		return Route{}, s.mapError(validateErr)
	}

	route := Route{
		ID:                uuid.NewString(),
		Scope:             req.Scope,
		ProjectID:         req.ProjectID,
		Name:              strings.TrimSpace(req.Name),
		TriggerEvent:      strings.TrimSpace(req.TriggerEvent),
		TriggerConditions: req.TriggerConditions,
		Destination:       req.Destination,
		DestinationConfig: copyAnyMap(req.DestinationConfig),
		FieldMapping:      copyStringMap(req.FieldMapping),
		PayloadTemplate:   req.PayloadTemplate,
		RetryPolicy:       DefaultRetryPolicy(),
		Enabled:           true,
	}
	if req.RetryPolicy != nil {
		route.RetryPolicy = *req.RetryPolicy
	}
	if req.Enabled != nil {
		route.Enabled = *req.Enabled
	}

	created, createErr := s.routeStore.Create(ctx, route)
	if createErr != nil {
		err = createErr
		return Route{}, s.mapError(createErr)
	}
	fields["route_id"] = created.ID
	return created, nil
}

func (s *Service) validateCreateRoute(ctx context.Context, req CreateRouteRequest) error {
	var fieldErrs []goerrors.FieldError
	if !req.Scope.Valid() {
		fieldErrs = append(fieldErrs, goerrors.FieldError{Field: "scope", Message: "must be global or project"})
	}
	if req.Scope == RouteScopeProject && strings.TrimSpace(req.ProjectID) == "" {
		fieldErrs = append(fieldErrs, goerrors.FieldError{Field: "project_id", Message: "required for project scope"})
	}
	if req.Scope == RouteScopeGlobal && strings.TrimSpace(req.ProjectID) != "" {
		fieldErrs = append(fieldErrs, goerrors.FieldError{Field: "project_id", Message: "must be empty for global scope"})
	}
	if strings.TrimSpace(req.TriggerEvent) == "" {
		fieldErrs = append(fieldErrs, goerrors.FieldError{Field: "trigger_event", Message: "must not be empty"})
	}
	if !req.Destination.Valid() {
		fieldErrs = append(fieldErrs, goerrors.FieldError{Field: "destination", Message: "unknown destination kind"})
	}
	if req.RetryPolicy != nil {
		if policyErr := req.RetryPolicy.Validate(); policyErr != nil {
			fieldErrs = append(fieldErrs, goerrors.FieldError{Field: "retry_policy", Message: policyErr.Error()})
		}
	}
	if len(fieldErrs) > 0 {
		return goerrors.NewValidation("route validation failed", fieldErrs...)
	}

	if req.Destination == DestinationWebhook {
		rawURL, _ := req.DestinationConfig["url"].(string)
		if strings.TrimSpace(rawURL) == "" {
			return goerrors.NewValidation("route validation failed",
				goerrors.FieldError{Field: "destination_config.url", Message: "required for webhook routes"})
		}
		if err := s.validateOutboundURL(ctx, rawURL); err != nil {
			return err
		}
	}
	return s.validateCustomEndpoint(ctx, req.DestinationConfig)
}

// validateCustomEndpoint checks the optional provider base URL a route can
// carry for self-hosted backends. Policy comes from the custom endpoint
// allowlist the validator was built with.
func (s *Service) validateCustomEndpoint(ctx context.Context, config map[string]any) error {
	rawURL, _ := config["provider_base_url"].(string)
	if strings.TrimSpace(rawURL) == "" {
		return nil
	}
	endpointValidator, ok := s.urlValidator.(ProviderEndpointValidator)
	if !ok {
		return errNotConfigured("provider endpoint validator")
	}
	if err := endpointValidator.ValidateProviderBaseURL(ctx, rawURL); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryAuthz, "custom provider endpoint rejected").
			WithTextCode(DispatchErrorSecurityRejected)
	}
	return nil
}

// UpdateRoute patches an existing route. Nil request fields keep the stored
// value. A changed webhook URL is re-validated.
func (s *Service) UpdateRoute(ctx context.Context, req UpdateRouteRequest) (Route, error) {
	startedAt := s.clock()
	fields := map[string]any{"route_id": req.ID}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "update_route", err, fields) }()

	if s.routeStore == nil {
		err = errNotConfigured("route store")
		return Route{}, s.mapError(err)
	}
	route, getErr := s.routeStore.Get(ctx, req.ID)
	if getErr != nil {
		err = getErr
		return Route{}, s.mapError(getErr)
	}

	if req.Name != nil {
		route.Name = strings.TrimSpace(*req.Name)
	}
	if req.TriggerEvent != nil {
		if strings.TrimSpace(*req.TriggerEvent) == "" {
			err = goerrors.NewValidation("route validation failed",
				goerrors.FieldError{Field: "trigger_event", Message: "must not be empty"})
			return Route{}, s.mapError(err)
		}
		route.TriggerEvent = strings.TrimSpace(*req.TriggerEvent)
	}
	if req.TriggerConditions != nil {
		route.TriggerConditions = *req.TriggerConditions
	}
	if req.Destination != nil {
		if !req.Destination.Valid() {
			err = goerrors.NewValidation("route validation failed",
				goerrors.FieldError{Field: "destination", Message: "unknown destination kind"})
			return Route{}, s.mapError(err)
		}
		route.Destination = *req.Destination
	}
	if req.DestinationConfig != nil {
		route.DestinationConfig = copyAnyMap(req.DestinationConfig)
	}
	if req.FieldMapping != nil {
		route.FieldMapping = copyStringMap(req.FieldMapping)
	}
	if req.PayloadTemplate != nil {
		route.PayloadTemplate = *req.PayloadTemplate
	}
	if req.RetryPolicy != nil {
		if policyErr := req.RetryPolicy.Validate(); policyErr != nil {
			err = goerrors.NewValidation("route validation failed",
				goerrors.FieldError{Field: "retry_policy", Message: policyErr.Error()})
			return Route{}, s.mapError(err)
		}
		route.RetryPolicy = *req.RetryPolicy
	}
	if req.Enabled != nil {
		route.Enabled = *req.Enabled
	}

	if route.Destination == DestinationWebhook && (req.DestinationConfig != nil || req.Destination != nil) {
		rawURL, _ := route.DestinationConfig["url"].(string)
		if validateErr := s.validateOutboundURL(ctx, rawURL); validateErr != nil {
			err = validateErr
			return Route{}, s.mapError(validateErr)
		}
	}
	if req.DestinationConfig != nil {
		if validateErr := s.validateCustomEndpoint(ctx, route.DestinationConfig); validateErr != nil {
			err = validateErr
			return Route{}, s.mapError(validateErr)
		}
	}

	updated, updateErr := s.routeStore.Update(ctx, route)
	if updateErr != nil {
		err = updateErr
		return Route{}, s.mapError(updateErr)
	}
	return updated, nil
}

func (s *Service) DeleteRoute(ctx context.Context, id string) error {
	startedAt := s.clock()
	fields := map[string]any{"route_id": id}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "delete_route", err, fields) }()

	if s.routeStore == nil {
		err = errNotConfigured("route store")
		return s.mapError(err)
	}
	if deleteErr := s.routeStore.Delete(ctx, id); deleteErr != nil {
		err = deleteErr
		return s.mapError(deleteErr)
	}
	return nil
}

func (s *Service) GetRoute(ctx context.Context, id string) (Route, error) {
	startedAt := s.clock()
	fields := map[string]any{"route_id": id}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "get_route", err, fields) }()

	if s.routeStore == nil {
		err = errNotConfigured("route store")
		return Route{}, s.mapError(err)
	}
	route, getErr := s.routeStore.Get(ctx, id)
	if getErr != nil {
		err = getErr
		return Route{}, s.mapError(getErr)
	}
	return route, nil
}

func (s *Service) ListRoutes(ctx context.Context, filter RouteFilter) ([]Route, error) {
	startedAt := s.clock()
	fields := map[string]any{"project_id": filter.ProjectID}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "list_routes", err, fields) }()

	if s.routeStore == nil {
		err = errNotConfigured("route store")
		return nil, s.mapError(err)
	}
	routes, listErr := s.routeStore.List(ctx, filter)
	if listErr != nil {
		err = listErr
		return nil, s.mapError(listErr)
	}
	return routes, nil
}

func (s *Service) GetDelivery(ctx context.Context, id string) (DeliveryAttempt, error) {
	startedAt := s.clock()
	fields := map[string]any{"delivery_id": id}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "get_delivery", err, fields) }()

	if s.deliveryStore == nil {
		err = errNotConfigured("delivery store")
		return DeliveryAttempt{}, s.mapError(err)
	}
	attempt, getErr := s.deliveryStore.Get(ctx, id)
	if getErr != nil {
		err = getErr
		return DeliveryAttempt{}, s.mapError(getErr)
	}
	return attempt, nil
}

func (s *Service) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]DeliveryAttempt, error) {
	startedAt := s.clock()
	fields := map[string]any{
		"route_id":   filter.RouteID,
		"project_id": filter.ProjectID,
	}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "list_deliveries", err, fields) }()

	if s.deliveryStore == nil {
		err = errNotConfigured("delivery store")
		return nil, s.mapError(err)
	}
	attempts, listErr := s.deliveryStore.List(ctx, filter)
	if listErr != nil {
		err = listErr
		return nil, s.mapError(listErr)
	}
	return attempts, nil
}

// EncryptionHealthCheck sweeps every encrypted column value and verifies it
// decrypts under the keyring. The detail list is capped, the counters are
// not.
func (s *Service) EncryptionHealthCheck(ctx context.Context) (EncryptionHealthReport, error) {
	startedAt := s.clock()
	fields := map[string]any{}
	var err error
	defer func() { s.observeOperation(ctx, startedAt, "encryption_health_check", err, fields) }()

	if s.keyring == nil {
		err = errNotConfigured("keyring")
		return EncryptionHealthReport{}, s.mapError(err)
	}
	if s.encryptedSource == nil {
		err = errNotConfigured("encrypted value source")
		return EncryptionHealthReport{}, s.mapError(err)
	}

	values, scanErr := s.encryptedSource.EncryptedValues(ctx)
	if scanErr != nil {
		err = scanErr
		return EncryptionHealthReport{}, s.mapError(scanErr)
	}

	report := EncryptionHealthReport{
		KeyVersions:    map[int]int{},
		CurrentVersion: s.keyring.CurrentVersion(),
	}
	maxFailures := s.config.HealthCheckMaxFailures
	for _, ref := range values {
		report.Scanned++
		report.KeyVersions[ref.Value.KeyVersion]++
		if s.keyring.Decrypt(ref.Value) == nil {
			report.Failed++
			if len(report.Failures) < maxFailures {
				ref.Error = fmt.Sprintf("ciphertext does not decrypt under key version %d", ref.Value.KeyVersion)
				report.Failures = append(report.Failures, ref)
			} else {
				report.Truncated = true
			}
		}
	}
	report.OK = report.Failed == 0
	fields["scanned"] = report.Scanned
	fields["failed"] = report.Failed
	return report, nil
}

func copyStringMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

package core

import "context"

// FindMatchingRoutes returns enabled routes whose trigger and conditions
// accept the event. Project events see their project's routes plus global
// routes, projectless events see global routes only.
func (s *Service) FindMatchingRoutes(ctx context.Context, event Event) ([]Route, error) {
	if s == nil || s.routeStore == nil {
		return nil, errNotConfigured("route store")
	}

	projectID := event.ProjectID
	_, globalOnly := GlobalOnlyEvents[event.Type]
	if globalOnly {
		projectID = ""
	}

	candidates, err := s.routeStore.FindCandidates(ctx, event.Type, projectID)
	if err != nil {
		return nil, err
	}

	matched := make([]Route, 0, len(candidates))
	for _, route := range candidates {
		if !route.Enabled {
			continue
		}
		if globalOnly && route.Scope != RouteScopeGlobal {
			continue
		}
		if route.Scope == RouteScopeProject && route.ProjectID != event.ProjectID {
			continue
		}
		if !conditionsMatch(route.TriggerConditions, event) {
			continue
		}
		matched = append(matched, route)
	}
	return matched, nil
}

// conditionsMatch applies the trigger conditions to the event. Every present
// condition must pass, absent conditions always pass.
func conditionsMatch(conditions TriggerConditions, event Event) bool {
	if len(conditions.TagsIncludeAny) > 0 {
		if !tagsIncludeAny(event.Tags, conditions.TagsIncludeAny) {
			return false
		}
	}
	if len(conditions.TagsIncludeAll) > 0 {
		if !tagsIncludeAll(event.Tags, conditions.TagsIncludeAll) {
			return false
		}
	}
	for key, want := range conditions.Metadata {
		if event.Metadata[key] != want {
			return false
		}
	}
	return true
}

func tagsIncludeAny(have []string, want []string) bool {
	for _, tag := range want {
		for _, candidate := range have {
			if candidate == tag {
				return true
			}
		}
	}
	return false
}

func tagsIncludeAll(have []string, want []string) bool {
	for _, tag := range want {
		found := false
		for _, candidate := range have {
			if candidate == tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

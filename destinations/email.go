package destinations

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/cavendo/go-dispatch/core"
	"github.com/cavendo/go-dispatch/render"
)

// EmailDestination renders the payload into a notification email and hands
// it to the provider. Recipient entries may be templated against the
// payload, entries that render empty are dropped and delivering to zero
// recipients is a configuration error, never a silent success.
type EmailDestination struct {
	provider core.EmailProvider
	engine   *render.Engine
}

func NewEmailDestination(provider core.EmailProvider, engine *render.Engine) *EmailDestination {
	return &EmailDestination{provider: provider, engine: engine}
}

func (d *EmailDestination) Kind() core.DestinationKind {
	return core.DestinationEmail
}

func (d *EmailDestination) Deliver(ctx context.Context, config map[string]any, payload map[string]any) (*core.DeliveryResult, error) {
	if d.provider == nil {
		return nil, fmt.Errorf("destinations: email provider is not configured")
	}

	entries := recipientEntries(config)
	recipients, warnings := render.ResolveRecipients(d.engine, entries, payload)
	if len(recipients) == 0 {
		detail := "no recipients configured"
		if len(warnings) > 0 {
			detail = strings.Join(warnings, "; ")
		}
		return nil, goerrors.NewValidation("email route has no deliverable recipients",
			goerrors.FieldError{Field: "recipients", Message: detail})
	}

	subject, _ := config["subject"].(string)
	if strings.TrimSpace(subject) == "" {
		if event, ok := payload["event"].(string); ok && event != "" {
			subject = "Event notification: " + event
		} else {
			subject = "Event notification"
		}
	} else if strings.Contains(subject, "{{") && d.engine != nil {
		rendered, err := d.engine.Render(subject, payload)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "email subject template failed")
		}
		subject = rendered
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "email payload is not serializable")
	}

	if err := d.provider.Send(ctx, core.EmailMessage{
		To:      recipients,
		Subject: subject,
		Body:    string(body),
	}); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "email delivery failed").
			WithTextCode(core.DispatchErrorDestination)
	}
	return &core.DeliveryResult{}, nil
}

// CheckConfig verifies the provider is reachable and at least one literal
// recipient is configured.
func (d *EmailDestination) CheckConfig(ctx context.Context, config map[string]any) error {
	if d.provider == nil {
		return fmt.Errorf("destinations: email provider is not configured")
	}
	if len(recipientEntries(config)) == 0 {
		return fmt.Errorf("destinations: email route has no recipients configured")
	}
	return d.provider.Check(ctx)
}

func recipientEntries(config map[string]any) []string {
	switch raw := config["recipients"].(type) {
	case []string:
		return raw
	case []any:
		entries := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				entries = append(entries, s)
			}
		}
		return entries
	case string:
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		parts := strings.Split(raw, ",")
		entries := make([]string, 0, len(parts))
		for _, part := range parts {
			entries = append(entries, strings.TrimSpace(part))
		}
		return entries
	}
	return nil
}

var _ core.Destination = (*EmailDestination)(nil)

package destinations

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/cavendo/go-dispatch/core"
)

// SlackDestination posts a formatted notification to an incoming webhook
// URL. The URL goes through the same outbound guard as any other webhook.
type SlackDestination struct {
	provider  core.ChatProvider
	validator core.URLValidator
}

func NewSlackDestination(provider core.ChatProvider, validator core.URLValidator) *SlackDestination {
	return &SlackDestination{provider: provider, validator: validator}
}

func (d *SlackDestination) Kind() core.DestinationKind {
	return core.DestinationSlack
}

func (d *SlackDestination) Deliver(ctx context.Context, config map[string]any, payload map[string]any) (*core.DeliveryResult, error) {
	if d.provider == nil {
		return nil, fmt.Errorf("destinations: chat provider is not configured")
	}
	webhookURL, _ := config["webhook_url"].(string)
	if strings.TrimSpace(webhookURL) == "" {
		return nil, goerrors.NewValidation("slack webhook url is required",
			goerrors.FieldError{Field: "webhook_url", Message: "must not be empty"})
	}
	if d.validator != nil {
		if err := d.validator.ValidateOutboundURL(ctx, webhookURL); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuthz, "slack destination rejected").
				WithTextCode(core.DispatchErrorSecurityRejected)
		}
	}

	event, _ := payload["event"].(string)
	text := "Event received"
	if event != "" {
		text = "Event received: " + event
	}
	message := map[string]any{"text": text}
	if channel, _ := config["channel"].(string); channel != "" {
		message["channel"] = channel
	}
	message["blocks"] = []any{
		map[string]any{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": text},
		},
	}

	if err := d.provider.Post(ctx, webhookURL, message); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "slack delivery failed").
			WithTextCode(core.DispatchErrorDestination)
	}
	return &core.DeliveryResult{}, nil
}

// CheckConfig validates the webhook URL only. Posting a test message to a
// shared channel is the caller's call, not a side effect of a config check.
func (d *SlackDestination) CheckConfig(ctx context.Context, config map[string]any) error {
	webhookURL, _ := config["webhook_url"].(string)
	if strings.TrimSpace(webhookURL) == "" {
		return fmt.Errorf("destinations: slack webhook url is required")
	}
	if d.validator == nil {
		return nil
	}
	return d.validator.ValidateOutboundURL(ctx, webhookURL)
}

var _ core.Destination = (*SlackDestination)(nil)

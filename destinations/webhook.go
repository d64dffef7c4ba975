package destinations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/cavendo/go-dispatch/core"
)

// WebhookDestination posts JSON payloads to route-configured URLs. The URL
// guard runs again on every delivery, a hostname whose DNS flipped to
// private space since route creation is rejected here. Redirects are never
// followed, a redirect to an internal address would bypass the guard.
type WebhookDestination struct {
	client    *http.Client
	validator core.URLValidator
	signer    core.PayloadSigner
	maxBody   int
	now       func() time.Time
}

func NewWebhookDestination(validator core.URLValidator, signer core.PayloadSigner, timeout time.Duration, maxBody int) *WebhookDestination {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBody <= 0 {
		maxBody = 4096
	}
	return &WebhookDestination{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		validator: validator,
		signer:    signer,
		maxBody:   maxBody,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *WebhookDestination) Kind() core.DestinationKind {
	return core.DestinationWebhook
}

func (d *WebhookDestination) Deliver(ctx context.Context, config map[string]any, payload map[string]any) (*core.DeliveryResult, error) {
	rawURL, _ := config["url"].(string)
	if strings.TrimSpace(rawURL) == "" {
		return nil, goerrors.NewValidation("webhook url is required",
			goerrors.FieldError{Field: "url", Message: "must not be empty"})
	}
	if d.validator != nil {
		if err := d.validator.ValidateOutboundURL(ctx, rawURL); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuthz, "webhook destination rejected").
				WithTextCode(core.DispatchErrorSecurityRejected)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "webhook payload is not serializable")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "webhook request build failed")
	}
	req.Header.Set("Content-Type", "application/json")

	if secret, _ := config["secret"].(string); secret != "" && d.signer != nil {
		for name, value := range d.signer.SignatureHeaders(secret, d.now(), body) {
			req.Header.Set(name, value)
		}
	}

	began := d.now()
	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "webhook delivery timed out").
				WithTextCode(core.DispatchErrorTimeout)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "webhook delivery failed").
			WithTextCode(core.DispatchErrorDestination)
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, int64(d.maxBody)))
	result := &core.DeliveryResult{
		ResponseCode: resp.StatusCode,
		ResponseBody: string(snippet),
		Duration:     d.now().Sub(began),
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, goerrors.New(
			fmt.Sprintf("webhook endpoint returned status %d", resp.StatusCode),
			goerrors.CategoryExternal,
		).WithTextCode(core.DispatchErrorDestination).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}
	return result, nil
}

// CheckConfig validates the configured URL without sending anything.
func (d *WebhookDestination) CheckConfig(ctx context.Context, config map[string]any) error {
	rawURL, _ := config["url"].(string)
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("destinations: webhook url is required")
	}
	if d.validator == nil {
		return nil
	}
	return d.validator.ValidateOutboundURL(ctx, rawURL)
}

func isTimeout(err error) bool {
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}

var _ core.Destination = (*WebhookDestination)(nil)

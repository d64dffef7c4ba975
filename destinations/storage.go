package destinations

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/cavendo/go-dispatch/core"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// StorageDestination writes the payload as a JSON object into the
// configured bucket path.
type StorageDestination struct {
	provider  core.StorageProvider
	keyPrefix string
}

func NewStorageDestination(provider core.StorageProvider, keyPrefix string) *StorageDestination {
	return &StorageDestination{provider: provider, keyPrefix: keyPrefix}
}

func (d *StorageDestination) Kind() core.DestinationKind {
	return core.DestinationStorage
}

// ObjectKey builds the storage key for a deliverable. The project name is
// sanitized to a safe character set, the deliverable ID and filename are
// system-generated and used as-is.
func ObjectKey(prefix, projectName, deliverableID, filename string) string {
	return prefix + sanitizeProjectName(projectName) + "/" + deliverableID + "/" + filename
}

func sanitizeProjectName(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}

func (d *StorageDestination) Deliver(ctx context.Context, config map[string]any, payload map[string]any) (*core.DeliveryResult, error) {
	if d.provider == nil {
		return nil, fmt.Errorf("destinations: storage provider is not configured")
	}

	projectName, _ := config["project_name"].(string)
	deliverableID, _ := payload["deliverableId"].(string)
	if deliverableID == "" {
		// attempt record id keeps keys unique for non-deliverable events
		deliverableID, _ = payload["deliveryId"].(string)
	}
	if deliverableID == "" {
		deliverableID = "delivery"
	}
	filename, _ := config["filename"].(string)
	if strings.TrimSpace(filename) == "" {
		filename = "payload.json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "storage payload is not serializable")
	}

	key := ObjectKey(d.keyPrefix, projectName, deliverableID, filename)
	if err := d.provider.Put(ctx, key, "application/json", body); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "storage write failed").
			WithTextCode(core.DispatchErrorDestination)
	}
	return &core.DeliveryResult{}, nil
}

// CheckConfig verifies storage connectivity without writing an object.
func (d *StorageDestination) CheckConfig(ctx context.Context, _ map[string]any) error {
	if d.provider == nil {
		return fmt.Errorf("destinations: storage provider is not configured")
	}
	return d.provider.Check(ctx)
}

var _ core.Destination = (*StorageDestination)(nil)

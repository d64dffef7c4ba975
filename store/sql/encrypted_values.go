package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/cavendo/go-dispatch/core"
)

// EncryptedValueSource enumerates every encrypted column value in the
// dispatch schema for the keyring health scan. Today that is the agent
// webhook signing secret, new encrypted columns get added here so the scan
// never silently misses one.
type EncryptedValueSource struct {
	db *bun.DB
}

func NewEncryptedValueSource(db *bun.DB) (*EncryptedValueSource, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &EncryptedValueSource{db: db}, nil
}

func (s *EncryptedValueSource) EncryptedValues(ctx context.Context) ([]core.EncryptedColumnRef, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: encrypted value source is not configured")
	}
	var records []agentWebhookRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.secret <> ''").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]core.EncryptedColumnRef, 0, len(records))
	for _, record := range records {
		ciphertext := record.Secret
		iv := ""
		if parts := strings.SplitN(record.Secret, ":", 2); len(parts) == 2 {
			ciphertext = parts[0]
			iv = parts[1]
		}
		refs = append(refs, core.EncryptedColumnRef{
			Table:  "agent_webhooks",
			RowID:  record.ID,
			Column: "secret",
			Value: core.EncryptedValue{
				Ciphertext: ciphertext,
				IV:         iv,
				KeyVersion: record.SecretVersion,
			},
		})
	}
	return refs, nil
}

var _ core.EncryptedValueSource = (*EncryptedValueSource)(nil)

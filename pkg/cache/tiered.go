package cache

import (
	"context"
	"errors"

	"github.com/platinummonkey/clientops/pkg/observability"
)

// Tiered serves from a local cache first and falls back to a shared one.
// Shared hits are copied into the local tier. When the shared tier fails,
// reads report a miss and writes still land locally.
type Tiered struct {
	local  Cache
	shared Cache
	logger *observability.Logger
}

// NewTiered layers local over shared
func NewTiered(local, shared Cache, logger *observability.Logger) *Tiered {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Tiered{local: local, shared: shared, logger: logger}
}

// Get checks local then shared
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, error) {
	if data, err := t.local.Get(ctx, key); err == nil {
		return data, nil
	}
	data, err := t.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			t.logger.WithError(err).WithField("key", key).Warn("shared cache read failed")
		}
		return nil, ErrMiss
	}
	_ = t.local.Set(ctx, key, data)
	return data, nil
}

// Set writes both tiers; a shared failure is returned after the local write
func (t *Tiered) Set(ctx context.Context, key string, value []byte) error {
	_ = t.local.Set(ctx, key, value)
	return t.shared.Set(ctx, key, value)
}

// Delete removes key from both tiers
func (t *Tiered) Delete(ctx context.Context, key string) error {
	_ = t.local.Delete(ctx, key)
	return t.shared.Delete(ctx, key)
}

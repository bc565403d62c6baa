package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rhymeas/tripweaver/app/observability/metrics"
)

// Logical namespaces. Every cached value lives under exactly one of these;
// keys are opaque hashes built with Key.
const (
	NamespaceRoute    = "route"
	NamespacePOI      = "poi"
	NamespaceCountry  = "country"
	NamespaceGeocode  = "geocode"
	NamespaceAdvisory = "advisory"
)

// Store is the shared cache contract. Values are opaque blobs with a TTL;
// writes are idempotent upserts (the value is a deterministic function of
// the key), so last-writer-wins is acceptable.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

// Key builds a content-addressed cache key from its parts.
func Key(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:])
}

// GetJSON reads and decodes a cached value into dst. A decode failure is
// treated as a miss so a stale or corrupt entry never poisons a request.
func GetJSON(ctx context.Context, s Store, namespace, key string, dst interface{}) bool {
	raw, ok := s.Get(ctx, namespace, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		_ = s.Delete(ctx, namespace, key)
		return false
	}
	metrics.Get().CacheHitsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("namespace", namespace)))
	return true
}

// SetJSON encodes value and stores it under namespace/key with the given TTL.
func SetJSON(ctx context.Context, s Store, namespace, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return s.Set(ctx, namespace, key, raw, ttl)
}

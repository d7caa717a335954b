// Package cache provides caching for optimization artifacts.
//
// The engine caches placement results, routing results, and whole run
// snapshots keyed by a hash of the layout fingerprint, the algorithm, and
// the normalized parameters. Backends: file (CLI), Redis (shared
// deployments), and a null cache that disables caching.
package cache

import (
	"context"
	"time"
)

// TTL values per artifact class. Placement and routing results are pure
// functions of their key, so they keep for a long time; run snapshots
// carry timing data and age out faster.
const (
	TTLPlacement = 7 * 24 * time.Hour
	TTLRouting   = 7 * 24 * time.Hour
	TTLRun       = 24 * time.Hour
)

// Cache is the storage interface for optimization artifacts.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer produces cache keys for the engine's artifact classes.
// Implementations must be deterministic: equal inputs yield equal keys.
type Keyer interface {
	// PlacementKey identifies a placement result by layout fingerprint,
	// algorithm, and serialized parameters.
	PlacementKey(fingerprint, algorithm string, params any) string

	// RoutingKey identifies a routing result by the placed layout
	// fingerprint, algorithm, and serialized parameters.
	RoutingKey(fingerprint, algorithm string, params any) string

	// RunKey identifies a full orchestrator run snapshot.
	RunKey(fingerprint string, params any) string
}

// DefaultKeyer implements Keyer with sha256-hashed key suffixes.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// PlacementKey implements Keyer.
func (k *DefaultKeyer) PlacementKey(fingerprint, algorithm string, params any) string {
	return hashKey("placement", fingerprint, algorithm, params)
}

// RoutingKey implements Keyer.
func (k *DefaultKeyer) RoutingKey(fingerprint, algorithm string, params any) string {
	return hashKey("routing", fingerprint, algorithm, params)
}

// RunKey implements Keyer.
func (k *DefaultKeyer) RunKey(fingerprint string, params any) string {
	return hashKey("run", fingerprint, params)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)

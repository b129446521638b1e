package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Daniel-Humberto/Micron-Linealytics/internal/config"
	"github.com/Daniel-Humberto/Micron-Linealytics/internal/domain"
)

const planRunKeyPrefix = "plan:run"

// PlanCache memoizes plan runs by input fingerprint.
type PlanCache interface {
	GetRun(ctx context.Context, fingerprint string) (*domain.PlanRun, bool, error)
	SetRun(ctx context.Context, fingerprint string, run *domain.PlanRun) error
	// InvalidateAll drops every cached run and returns how many were removed.
	InvalidateAll(ctx context.Context) (int, error)
	Close() error
}

type redisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopPlanCache struct{}

// NewPlanCache returns a redis-backed cache, or a no-op cache when caching is
// disabled.
func NewPlanCache(ctx context.Context, cfg config.CacheConfig) (PlanCache, error) {
	if !cfg.Enabled {
		return &noopPlanCache{}, nil
	}

	client, err := dialRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &redisPlanCache{
		client: client,
		ttl:    planTTL(cfg),
	}, nil
}

func NewNoopPlanCache() PlanCache {
	return &noopPlanCache{}
}

func (c *redisPlanCache) GetRun(ctx context.Context, fingerprint string) (*domain.PlanRun, bool, error) {
	payload, err := c.client.Get(ctx, planRunKey(fingerprint)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var run domain.PlanRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, false, fmt.Errorf("decode plan run cache: %w", err)
	}

	return &run, true, nil
}

func (c *redisPlanCache) SetRun(ctx context.Context, fingerprint string, run *domain.PlanRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode plan run cache: %w", err)
	}

	if err := c.client.Set(ctx, planRunKey(fingerprint), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (c *redisPlanCache) InvalidateAll(ctx context.Context) (int, error) {
	return purgePrefix(ctx, c.client, planRunKeyPrefix+":")
}

func (c *redisPlanCache) Close() error {
	return c.client.Close()
}

func (n *noopPlanCache) GetRun(ctx context.Context, fingerprint string) (*domain.PlanRun, bool, error) {
	return nil, false, nil
}

func (n *noopPlanCache) SetRun(ctx context.Context, fingerprint string, run *domain.PlanRun) error {
	return nil
}

func (n *noopPlanCache) InvalidateAll(ctx context.Context) (int, error) {
	return 0, nil
}

func (n *noopPlanCache) Close() error {
	return nil
}

// fingerprintPayload is everything that can change the outcome of a plan.
type fingerprintPayload struct {
	Source      string               `json:"source"`
	Input       domain.PlanningInput `json:"input"`
	Provenance  domain.Provenance    `json:"provenance"`
	Corrections []domain.Correction  `json:"corrections"`
	MaxAttempts int                  `json:"max_attempts"`
	Relaxation  interface{}          `json:"relaxation"`
}

// Fingerprint hashes a source name and its normalized input together with the
// recovery settings. Equal arguments always produce the same fingerprint; the
// same data under another source name does not share a cached run.
func Fingerprint(source string, norm domain.NormalizedInput, maxAttempts int, relaxation interface{}) string {
	in, provenance := norm.Input()
	raw, err := json.Marshal(fingerprintPayload{
		Source:      source,
		Input:       in,
		Provenance:  provenance,
		Corrections: norm.Corrections,
		MaxAttempts: maxAttempts,
		Relaxation:  relaxation,
	})
	if err != nil {
		// only reachable with non-finite floats, which never pass normalization
		raw = []byte(fmt.Sprintf("%#v", in))
	}
	hash := sha1.Sum(raw)
	return hex.EncodeToString(hash[:])
}

func planRunKey(fingerprint string) string {
	return fmt.Sprintf("%s:%s", planRunKeyPrefix, fingerprint)
}

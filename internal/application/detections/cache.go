package detections

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bryanwahyu/wildlife-dashboard/internal/application"
	domain "github.com/bryanwahyu/wildlife-dashboard/internal/domain/detections"
)

// Recorder receives pipeline counters. The middleware Prometheus metrics implement it.
type Recorder interface {
	CacheResult(result string)
	FetchOutcome(outcome string)
	ClassificationSkipped(reason string, n int)
	RecordsClassified(n int)
}

type nopRecorder struct{}

func (nopRecorder) CacheResult(string)                {}
func (nopRecorder) FetchOutcome(string)               {}
func (nopRecorder) ClassificationSkipped(string, int) {}
func (nopRecorder) RecordsClassified(int)             {}

const (
	CacheHit     = "hit"
	CacheMiss    = "miss"
	CacheRefresh = "refresh"

	FetchSuccess = "success"
	FetchError   = "error"
)

// CacheConfig describes the one query the cache wraps.
type CacheConfig struct {
	Folder  string
	Limit   int
	TTL     time.Duration
	Timeout time.Duration
}

// RecordCache memoizes the asset listing for TTL. Only one remote query per
// key is in flight at a time; failures return an empty listing and leave
// the stored snapshot untouched.
type RecordCache struct {
	source  domain.AssetSource
	store   SnapshotStore
	clock   application.Clock
	cfg     CacheConfig
	logger  *slog.Logger
	metrics Recorder
	group   singleflight.Group
}

type CacheOption func(*RecordCache)

func WithStore(s SnapshotStore) CacheOption       { return func(c *RecordCache) { c.store = s } }
func WithClock(clk application.Clock) CacheOption { return func(c *RecordCache) { c.clock = clk } }

func WithLogger(l *slog.Logger) CacheOption {
	return func(c *RecordCache) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRecorder(r Recorder) CacheOption {
	return func(c *RecordCache) {
		if r != nil {
			c.metrics = r
		}
	}
}

func NewRecordCache(source domain.AssetSource, cfg CacheConfig, opts ...CacheOption) *RecordCache {
	c := &RecordCache{
		source:  source,
		store:   NewMemoryStore(),
		clock:   application.SystemClock{},
		cfg:     cfg,
		logger:  slog.Default(),
		metrics: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key identifies the cached query.
func (c *RecordCache) Key() string {
	return c.cfg.Folder + "|" + strconv.Itoa(c.cfg.Limit)
}

// Get returns the cached listing when fresh, otherwise queries the source.
// forceRefresh skips the freshness check. On failure the result is an empty
// slice and an error wrapping domain.ErrRemoteQuery.
func (c *RecordCache) Get(ctx context.Context, forceRefresh bool) ([]domain.RawAsset, error) {
	key := c.Key()
	if !forceRefresh {
		if snap, ok := c.fresh(ctx, key); ok {
			c.metrics.CacheResult(CacheHit)
			return snap.Assets, nil
		}
		c.metrics.CacheResult(CacheMiss)
	} else {
		c.metrics.CacheResult(CacheRefresh)
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		if !forceRefresh {
			// a flight that finished while we were waiting may have filled it
			if snap, ok := c.fresh(ctx, key); ok {
				return snap.Assets, nil
			}
		}
		return c.fetch(ctx, key)
	})
	if err != nil {
		c.logger.Warn("asset query failed",
			"folder", c.cfg.Folder,
			"limit", c.cfg.Limit,
			"shared", shared,
			"error", err,
		)
		return []domain.RawAsset{}, fmt.Errorf("%w: %v", domain.ErrRemoteQuery, err)
	}
	return v.([]domain.RawAsset), nil
}

// Invalidate drops the stored snapshot.
func (c *RecordCache) Invalidate(ctx context.Context) error {
	return c.store.Delete(ctx, c.Key())
}

func (c *RecordCache) fresh(ctx context.Context, key string) (Snapshot, bool) {
	snap, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.Warn("record cache load failed", "key", key, "error", err)
		return Snapshot{}, false
	}
	if !ok {
		return Snapshot{}, false
	}
	if c.clock.Now().Sub(snap.FetchedAt) >= c.cfg.TTL {
		return Snapshot{}, false
	}
	return snap, true
}

func (c *RecordCache) fetch(ctx context.Context, key string) ([]domain.RawAsset, error) {
	// detached: callers sharing this flight must not fail because the first one went away
	bg := context.WithoutCancel(ctx)
	qctx := bg
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(bg, c.cfg.Timeout)
		defer cancel()
	}

	start := c.clock.Now()
	assets, err := c.source.ListAssets(qctx, domain.NewAssetQuery(c.cfg.Folder, c.cfg.Limit))
	if err != nil {
		c.metrics.FetchOutcome(FetchError)
		return nil, err
	}
	c.metrics.FetchOutcome(FetchSuccess)
	if assets == nil {
		assets = []domain.RawAsset{}
	}

	snap := Snapshot{Assets: assets, FetchedAt: c.clock.Now()}
	if err := c.store.Save(bg, key, snap, c.cfg.TTL); err != nil {
		c.logger.Warn("record cache save failed", "key", key, "error", err)
	}
	c.logger.Debug("asset query done",
		"folder", c.cfg.Folder,
		"assets", len(assets),
		"duration", c.clock.Now().Sub(start),
	)
	return cloneAssets(assets), nil
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smarties/backend/internal/domain"
	"github.com/smarties/backend/internal/pkg/logger"
)

const keyPrefix = "judgment:"

// entry is the serialized form stored in every tier. CreatedAt supports the
// staleness check against the product record's last update.
type entry struct {
	Judgment  *domain.ComplianceJudgment `json:"judgment"`
	CreatedAt time.Time                  `json:"createdAt"`
}

// tier pairs a store with its name and write TTL.
type tier struct {
	name  string
	store domain.CacheStore
	ttl   time.Duration
}

// Manager layers the session, local and backend tiers behind one judgment
// cache. Reads walk the tiers in order and promote backend hits; a failing
// tier is skipped, never fatal.
type Manager struct {
	tiers []tier
	log   *logger.Logger
}

// ManagerConfig sets per-tier TTLs. Zero values fall back to defaults.
type ManagerConfig struct {
	SessionTTL time.Duration
	LocalTTL   time.Duration
	BackendTTL time.Duration
}

// NewManager assembles the tier chain. Any store may be nil; that tier is
// simply absent.
func NewManager(session, local, backend domain.CacheStore, log *logger.Logger, config ManagerConfig) *Manager {
	if config.SessionTTL <= 0 {
		config.SessionTTL = time.Hour
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = 24 * time.Hour
	}
	if config.BackendTTL <= 0 {
		config.BackendTTL = 12 * time.Hour
	}

	m := &Manager{log: log}
	if session != nil {
		m.tiers = append(m.tiers, tier{name: "session", store: session, ttl: config.SessionTTL})
	}
	if local != nil {
		m.tiers = append(m.tiers, tier{name: "local", store: local, ttl: config.LocalTTL})
	}
	if backend != nil {
		m.tiers = append(m.tiers, tier{name: "backend", store: backend, ttl: config.BackendTTL})
	}
	return m
}

// Key builds the composite cache key for a product and profile fingerprint.
func Key(productCode, fingerprint string) string {
	return keyPrefix + productCode + ":" + fingerprint
}

// Get walks the tiers in order. An entry older than the product record is
// stale and treated as a miss. A hit found below the first tier is promoted
// upward so the next lookup stays cheap.
func (m *Manager) Get(ctx context.Context, productCode, fingerprint string, productLastUpdated time.Time) (*domain.ComplianceJudgment, error) {
	key := Key(productCode, fingerprint)

	for i, t := range m.tiers {
		raw, err := t.store.Get(ctx, key)
		if err != nil {
			if !isMiss(err) {
				m.log.Warn("cache tier read failed", "tier", t.name, "error", err)
			}
			continue
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil || e.Judgment == nil {
			m.log.Warn("corrupt cache entry dropped", "tier", t.name, "key", key)
			_ = t.store.Delete(ctx, key)
			continue
		}

		if e.CreatedAt.Before(productLastUpdated) {
			_ = t.store.Delete(ctx, key)
			continue
		}

		m.promote(ctx, key, raw, i)
		return e.Judgment, nil
	}

	return nil, domain.ErrCacheMiss
}

// Put writes the judgment to every tier. The session and local writes are
// synchronous; the backend write runs detached so a slow shared store never
// delays the response.
func (m *Manager) Put(ctx context.Context, productCode, fingerprint string, judgment *domain.ComplianceJudgment) error {
	key := Key(productCode, fingerprint)
	raw, err := json.Marshal(entry{Judgment: judgment, CreatedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	for _, t := range m.tiers {
		if t.name == "backend" {
			go func(t tier) {
				writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := t.store.Set(writeCtx, key, raw, t.ttl); err != nil {
					m.log.Warn("backend cache write failed", "error", err)
				}
			}(t)
			continue
		}
		if err := t.store.Set(ctx, key, raw, t.ttl); err != nil {
			m.log.Warn("cache tier write failed", "tier", t.name, "error", err)
		}
	}
	return nil
}

// Invalidate drops every cached judgment for a product across all tiers,
// regardless of profile fingerprint. Used when product data is corrected.
func (m *Manager) Invalidate(ctx context.Context, productCode string) error {
	prefix := keyPrefix + productCode + ":"
	var firstErr error
	for _, t := range m.tiers {
		if err := t.store.DeletePrefix(ctx, prefix); err != nil {
			m.log.Warn("cache tier invalidation failed", "tier", t.name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// promote copies a hit into the tiers above the one that served it.
func (m *Manager) promote(ctx context.Context, key string, raw []byte, hitIndex int) {
	for i := 0; i < hitIndex; i++ {
		t := m.tiers[i]
		if err := t.store.Set(ctx, key, raw, t.ttl); err != nil {
			m.log.Warn("cache promotion failed", "tier", t.name, "error", err)
		}
	}
}

func isMiss(err error) bool {
	return errors.Is(err, domain.ErrCacheMiss)
}

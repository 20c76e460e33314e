package access

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vertice-erp/vertice-erp/internal/observability"
)

const snapshotVersionKey = "access:version"

// SnapshotStore loads per-principal permission snapshots, caching them in
// Redis under a versioned key. Invalidation is explicit: user-scoped
// mutations call Invalidate, catalog or profile-wide mutations call Bump.
// There is no automatic refresh; staleness between mutation and the
// caller-driven invalidation is a documented non-behavior.
type SnapshotStore struct {
	repo    Repository
	client  *redis.Client
	logger  *slog.Logger
	metrics *observability.Metrics
	ttl     time.Duration
	timeout time.Duration
	group   singleflight.Group
}

// NewSnapshotStore constructs a SnapshotStore. The Redis client and metrics
// may be nil; loads then go straight to the repository.
func NewSnapshotStore(repo Repository, client *redis.Client, logger *slog.Logger, metrics *observability.Metrics, ttl, timeout time.Duration) *SnapshotStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SnapshotStore{
		repo:    repo,
		client:  client,
		logger:  logger,
		metrics: metrics,
		ttl:     ttl,
		timeout: timeout,
	}
}

// Get returns the cached snapshot for a principal, loading and caching it
// when missing. Concurrent loads for the same principal are collapsed.
func (s *SnapshotStore) Get(ctx context.Context, principal Principal) (*Snapshot, error) {
	key, err := s.key(ctx, principal.ID)
	if err != nil {
		s.observe("error")
		return nil, fmt.Errorf("access: cache key: %w", err)
	}

	if s.client != nil {
		payload, err := s.client.Get(ctx, key).Bytes()
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal(payload, &snap); err == nil {
				snap.index()
				s.observe("hit")
				return &snap, nil
			}
			// Corrupt payload falls through to a fresh load.
		} else if err != redis.Nil {
			s.observe("error")
			return nil, fmt.Errorf("access: cache read: %w", err)
		}
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		snap, err := s.load(ctx, principal)
		if err != nil {
			return nil, err
		}
		s.observe("miss")
		if s.client != nil {
			if raw, err := json.Marshal(snap); err == nil {
				// The cache write must outlive the triggering request, which
				// may be cancelled the moment the load resolves.
				wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
				defer cancel()
				if err := s.client.Set(wctx, key, raw, s.ttl).Err(); err != nil && s.logger != nil {
					s.logger.Warn("cache snapshot", slog.Any("error", err))
				}
			}
		}
		return snap, nil
	})
	if err != nil {
		s.observe("error")
		return nil, err
	}
	return result.(*Snapshot), nil
}

// load builds a fresh snapshot under the configured deadline.
func (s *SnapshotStore) load(ctx context.Context, principal Principal) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap := &Snapshot{Principal: principal, LoadedAt: time.Now().UTC()}

	var profile *AccessProfile
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		role, err := s.repo.FetchRole(gctx, principal.ID)
		if err != nil {
			return fmt.Errorf("access: fetch role: %w", err)
		}
		snap.Principal.Role = role
		snap.Caps = role.Capabilities()
		return nil
	})
	g.Go(func() error {
		p, err := s.repo.FetchProfile(gctx, principal.ID)
		if err != nil {
			return fmt.Errorf("access: fetch profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		modules, err := s.repo.FetchActiveModules(gctx)
		if err != nil {
			return fmt.Errorf("access: fetch modules: %w", err)
		}
		snap.Modules = modules
		return nil
	})
	g.Go(func() error {
		tabs, err := s.repo.FetchActiveSubModules(gctx)
		if err != nil {
			return fmt.Errorf("access: fetch sub-modules: %w", err)
		}
		snap.Tabs = tabs
		return nil
	})
	g.Go(func() error {
		grants, err := s.repo.FetchUserTabPermissions(gctx, principal.ID)
		if err != nil {
			return fmt.Errorf("access: fetch tab grants: %w", err)
		}
		snap.TabGrants = grants
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// An absent or inactive profile resolves to zero profile access, not an
	// error. The grant rows are only fetched for a usable profile.
	if profile != nil && profile.IsActive {
		snap.Profile = profile
		grants, err := s.repo.FetchProfileModulePermissions(ctx, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("access: fetch grants: %w", err)
		}
		snap.Grants = grants
	}

	// Index before publishing so the snapshot is read-only from here on.
	snap.index()
	return snap, nil
}

// Invalidate drops the cached snapshot of one user. The next access
// decision for that user reloads from the repository.
func (s *SnapshotStore) Invalidate(ctx context.Context, userID int64) error {
	if s.client == nil {
		return nil
	}
	key, err := s.key(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("access: invalidate: %w", err)
	}
	return nil
}

// Bump invalidates every cached snapshot by incrementing the global
// version, for mutations whose blast radius spans users (catalog toggles,
// profile grant edits).
func (s *SnapshotStore) Bump(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Incr(ctx, snapshotVersionKey).Err(); err != nil {
		return fmt.Errorf("access: bump version: %w", err)
	}
	return nil
}

// version returns the current cache version, initialising when missing.
func (s *SnapshotStore) version(ctx context.Context) (int64, error) {
	if s.client == nil {
		return 0, nil
	}
	ver, err := s.client.Get(ctx, snapshotVersionKey).Int64()
	if err == redis.Nil {
		if err := s.client.Set(ctx, snapshotVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (s *SnapshotStore) key(ctx context.Context, userID int64) (string, error) {
	ver, err := s.version(ctx)
	if err != nil {
		return "", err
	}
	return "access:snapshot:" + strconv.FormatInt(ver, 10) + ":" + strconv.FormatInt(userID, 10), nil
}

func (s *SnapshotStore) observe(result string) {
	if s.metrics != nil {
		s.metrics.ObserveSnapshotLoad(result)
	}
}

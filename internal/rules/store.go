package rules

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"kidsafe/internal/models"
	"kidsafe/internal/repository"
)

// Store serves the built-in rule snapshot and per-guardian custom filters.
// Filters are read from the repository on a fixed refresh cycle and served
// from an in-memory cache, so classification never blocks on the backing
// store. If a refresh fails the last-known-good cache stays in place and the
// store reports itself degraded.
type Store struct {
	builtin  *RuleSet
	repo     repository.FilterRepository
	logger   *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	filters  map[int64][]models.Filter
	degraded bool
	loaded   bool
}

// NewStore creates a rule store around an immutable built-in snapshot and a
// filter repository. Call Refresh or Run before serving traffic.
func NewStore(builtin *RuleSet, repo repository.FilterRepository, interval time.Duration, logger *zap.Logger) *Store {
	return &Store{
		builtin:  builtin,
		repo:     repo,
		logger:   logger,
		interval: interval,
		filters:  make(map[int64][]models.Filter),
	}
}

// BuiltinRules returns the shared built-in rule snapshot.
func (s *Store) BuiltinRules() *RuleSet {
	return s.builtin
}

// ActiveFilters returns the cached active filters for one guardian.
// Staleness is bounded by one refresh cycle.
func (s *Store) ActiveFilters(guardianID int64) []models.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters[guardianID]
}

// Degraded reports whether the last refresh failed and the store is serving
// a stale snapshot.
func (s *Store) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Loaded reports whether at least one refresh has succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Refresh replaces the filter cache with the current active filters. On
// failure the previous cache is kept so classification degrades to a stale
// rule set instead of an empty one.
func (s *Store) Refresh(ctx context.Context) error {
	active, err := s.repo.ListAllActive(ctx)
	if err != nil {
		s.mu.Lock()
		s.degraded = true
		s.mu.Unlock()
		s.logger.Error("Filter refresh failed, serving last-known-good snapshot", zap.Error(err))
		return err
	}

	byGuardian := make(map[int64][]models.Filter, len(active))
	for _, f := range active {
		byGuardian[f.GuardianID] = append(byGuardian[f.GuardianID], f)
	}

	s.mu.Lock()
	s.filters = byGuardian
	s.degraded = false
	s.loaded = true
	s.mu.Unlock()

	s.logger.Debug("Filter cache refreshed", zap.Int("filters", len(active)), zap.Int("guardians", len(byGuardian)))
	return nil
}

// Run refreshes the filter cache on a fixed interval until ctx is done.
func (s *Store) Run(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn("Initial filter refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Rule store refresh loop stopped.")
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

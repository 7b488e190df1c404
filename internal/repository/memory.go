package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"kidsafe/internal/models"
)

// In-memory implementations of the repository interfaces. Used by tests and
// by standalone mode, where no Postgres instance is configured.

type MemoryAlertRepository struct {
	mu     sync.RWMutex
	nextID int64
	alerts []models.Alert
}

func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{nextID: 1}
}

func (r *MemoryAlertRepository) Insert(_ context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert.ID = r.nextID
	r.nextID++
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *MemoryAlertRepository) GetByID(_ context.Context, id int64) (*models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			a := r.alerts[i]
			return &a, nil
		}
	}
	return nil, ErrAlertNotFound
}

func (r *MemoryAlertRepository) RecentByGuardian(_ context.Context, guardianID int64, limit int) ([]models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.Alert
	for i := range r.alerts {
		if r.alerts[i].GuardianID == guardianID {
			result = append(result, r.alerts[i])
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryAlertRepository) UpdateState(_ context.Context, id int64, state models.AlertState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].State = state
			return nil
		}
	}
	return ErrAlertNotFound
}

// CountAll returns the total number of stored alerts, regardless of guardian.
func (r *MemoryAlertRepository) CountAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.alerts)
}

type MemoryFilterRepository struct {
	mu      sync.RWMutex
	nextID  int64
	filters map[int64]models.Filter

	// FailNext makes the next list call fail, for exercising the rule
	// store's last-known-good fallback.
	FailNext error
}

func NewMemoryFilterRepository() *MemoryFilterRepository {
	return &MemoryFilterRepository{nextID: 1, filters: make(map[int64]models.Filter)}
}

func (r *MemoryFilterRepository) Upsert(_ context.Context, filter *models.Filter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if filter.ID == 0 {
		filter.ID = r.nextID
		r.nextID++
		filter.CreatedAt = now
	} else if _, ok := r.filters[filter.ID]; !ok {
		return ErrFilterNotFound
	}
	filter.UpdatedAt = now
	r.filters[filter.ID] = *filter
	return nil
}

func (r *MemoryFilterRepository) Delete(_ context.Context, filterID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.filters[filterID]; !ok {
		return ErrFilterNotFound
	}
	delete(r.filters, filterID)
	return nil
}

func (r *MemoryFilterRepository) ListByGuardian(_ context.Context, guardianID int64) ([]models.Filter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.Filter
	for _, f := range r.filters {
		if f.GuardianID == guardianID {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryFilterRepository) ListAllActive(_ context.Context) ([]models.Filter, error) {
	r.mu.Lock()
	if r.FailNext != nil {
		err := r.FailNext
		r.FailNext = nil
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.Filter
	for _, f := range r.filters {
		if f.Active {
			result = append(result, f)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type MemoryGuardianLinkRepository struct {
	mu    sync.RWMutex
	links []models.GuardianLink
}

func NewMemoryGuardianLinkRepository() *MemoryGuardianLinkRepository {
	return &MemoryGuardianLinkRepository{}
}

// Link adds a guardian/child relation. Test seeding helper; production links
// are created externally.
func (r *MemoryGuardianLinkRepository) Link(guardianID, childID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links = append(r.links, models.GuardianLink{
		GuardianID: guardianID,
		ChildID:    childID,
		CreatedAt:  time.Now(),
	})
}

func (r *MemoryGuardianLinkRepository) GuardiansForChild(_ context.Context, childID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var guardians []int64
	for _, l := range r.links {
		if l.ChildID == childID {
			guardians = append(guardians, l.GuardianID)
		}
	}
	sort.Slice(guardians, func(i, j int) bool { return guardians[i] < guardians[j] })
	return guardians, nil
}

func (r *MemoryGuardianLinkRepository) HasLink(_ context.Context, guardianID, childID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.links {
		if l.GuardianID == guardianID && l.ChildID == childID {
			return true, nil
		}
	}
	return false, nil
}

type MemoryChannelRepository struct {
	mu       sync.RWMutex
	channels map[int64]models.Channel
}

func NewMemoryChannelRepository(channels ...models.Channel) *MemoryChannelRepository {
	m := make(map[int64]models.Channel, len(channels))
	for _, c := range channels {
		m[c.ID] = c
	}
	return &MemoryChannelRepository{channels: m}
}

func (r *MemoryChannelRepository) ListActive(_ context.Context) ([]models.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.Channel
	for _, c := range r.channels {
		if c.MonitoringActive {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *MemoryChannelRepository) UpdateLastCollectedMessageID(_ context.Context, channelID, messageID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.channels[channelID]
	if !ok {
		return ErrChannelNotFound
	}
	c.LastCollectedMessageID = messageID
	r.channels[channelID] = c
	return nil
}

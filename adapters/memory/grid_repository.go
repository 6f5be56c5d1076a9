package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/models"
)

// GridRepository keeps grids in process memory. It also acts as the change
// feed for every instance sharing it, which is how tests and single-binary
// setups get cross-session sync without a database.
type GridRepository struct {
	mu        sync.RWMutex
	grids     map[core.GridKey]*models.StoredGrid
	listeners map[*listener]struct{}
	now       func() time.Time
}

// listener queues changes without bound so Save never waits on a handler.
// Handlers may take locks that a caller of Save already holds.
type listener struct {
	mu      sync.Mutex
	pending []models.GridChange
	wake    chan struct{}
}

func (l *listener) push(change models.GridChange) {
	l.mu.Lock()
	l.pending = append(l.pending, change)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) drain() []models.GridChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.pending
	l.pending = nil
	return batch
}

// NewGridRepository creates an empty in-memory repository
func NewGridRepository() *GridRepository {
	return &GridRepository{
		grids:     make(map[core.GridKey]*models.StoredGrid),
		listeners: make(map[*listener]struct{}),
		now:       time.Now,
	}
}

// Load returns a copy of the grid stored under key
func (r *GridRepository) Load(ctx context.Context, key core.GridKey) (*models.StoredGrid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.grids[key]
	if !ok {
		return nil, fmt.Errorf("grid %s: %w", key, core.ErrGridNotFound)
	}
	return copyStored(stored), nil
}

// Save stores a copy of raw and queues a change for every listener once the
// write is visible. It never blocks on listeners.
func (r *GridRepository) Save(ctx context.Context, key core.GridKey, raw grid.RawGrid, origin core.InstanceID) (*models.StoredGrid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	version := int64(1)
	if prev, ok := r.grids[key]; ok {
		version = prev.Version + 1
	}
	stored := &models.StoredGrid{
		Key:       key,
		Raw:       raw.Clone(),
		Version:   version,
		Origin:    origin,
		UpdatedAt: r.now().UTC(),
	}
	r.grids[key] = stored
	targets := make([]*listener, 0, len(r.listeners))
	for l := range r.listeners {
		targets = append(targets, l)
	}
	r.mu.Unlock()

	change := models.GridChange{Key: key, Origin: origin, Version: version}
	for _, l := range targets {
		l.push(change)
	}

	return copyStored(stored), nil
}

// Delete removes key; deleting a missing key is not an error
func (r *GridRepository) Delete(ctx context.Context, key core.GridKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grids, key)
	return nil
}

// ListKeys returns the stored keys in ascending order
func (r *GridRepository) ListKeys(ctx context.Context) ([]core.GridKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]core.GridKey, 0, len(r.grids))
	for key := range r.grids {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Listen delivers every subsequent Save to handler until ctx is done
func (r *GridRepository) Listen(ctx context.Context, handler func(models.GridChange)) error {
	l := &listener{wake: make(chan struct{}, 1)}

	r.mu.Lock()
	r.listeners[l] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.listeners, l)
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.wake:
			for _, change := range l.drain() {
				if ctx.Err() != nil {
					return nil
				}
				handler(change)
			}
		}
	}
}

func copyStored(s *models.StoredGrid) *models.StoredGrid {
	out := *s
	out.Raw = s.Raw.Clone()
	return &out
}

// Listeners reports how many Listen calls are active
func (r *GridRepository) Listeners() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry tracks pipeline items for a single run. It hands out copies so
// callers never share memory with the stored record; every change flows back
// through Update, which enforces lifecycle transitions.
type Registry struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Item
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{items: make(map[int64]*Item)}
}

// Add registers a source object and returns the stored item.
func (r *Registry) Add(sourceKey, outputKey, languageHint string) *Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := time.Now().UTC()
	item := &Item{
		ID:           r.nextID,
		SourceKey:    sourceKey,
		OutputKey:    outputKey,
		LanguageHint: languageHint,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.items[item.ID] = item
	return item.Clone()
}

// GetByID returns a copy of the item, or nil when absent.
func (r *Registry) GetByID(id int64) *Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Clone()
}

// Update stores the item after validating its status transition.
func (r *Registry) Update(item *Item) error {
	if item == nil {
		return fmt.Errorf("update: nil item")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[item.ID]
	if !ok {
		return fmt.Errorf("update: unknown item %d", item.ID)
	}
	if !ValidTransition(current.Status, item.Status) {
		return fmt.Errorf("update item %d: invalid transition %s -> %s", item.ID, current.Status, item.Status)
	}

	stored := item.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.UpdatedAt = time.Now().UTC()
	r.items[item.ID] = stored
	return nil
}

// List returns copies of all items, optionally filtered by status, ordered
// by ID.
func (r *Registry) List(statuses ...Status) []*Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	var filter map[Status]struct{}
	if len(statuses) > 0 {
		filter = make(map[Status]struct{}, len(statuses))
		for _, status := range statuses {
			filter[status] = struct{}{}
		}
	}

	result := make([]*Item, 0, len(r.items))
	for _, item := range r.items {
		if filter != nil {
			if _, ok := filter[item.Status]; !ok {
				continue
			}
		}
		result = append(result, item.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Stats returns aggregate counts across the registry.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{ByStatus: make(map[Status]int, len(allStatuses))}
	for _, item := range r.items {
		stats.Total++
		stats.ByStatus[item.Status]++
		if item.Status.Terminal() {
			stats.Terminal++
		}
		if item.Status.InFlight() {
			stats.InFlight++
		}
		switch item.Status {
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// AllTerminal reports whether every item reached a final state. An empty
// registry counts as terminal.
func (r *Registry) AllTerminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if !item.Status.Terminal() {
			return false
		}
	}
	return true
}

// FailRemaining marks every non-terminal item failed with the given reason
// and returns how many items it touched. In-flight provider jobs keep
// running server-side; the run simply stops tracking them.
func (r *Registry) FailRemaining(reason string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := 0
	now := time.Now().UTC()
	for _, item := range r.items {
		if item.Status.Terminal() {
			continue
		}
		item.SetFailed(reason)
		item.UpdatedAt = now
		touched++
	}
	return touched
}

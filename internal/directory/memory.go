package directory

import (
	"context"
	"sort"
	"sync"

	"monogest/backend/internal/domain"
)

// MemoryDirectory is an in-process Directory used by tests and by
// deployments without a directory database configured.
type MemoryDirectory struct {
	mu             sync.RWMutex
	counterparties map[string]domain.Counterparty
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{counterparties: make(map[string]domain.Counterparty)}
}

// Add registers or replaces a counterparty.
func (d *MemoryDirectory) Add(cp domain.Counterparty) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counterparties[cp.ID] = cp
}

// GetCounterparty returns one counterparty by id.
func (d *MemoryDirectory) GetCounterparty(_ context.Context, id string) (*domain.Counterparty, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cp, ok := d.counterparties[id]
	if !ok {
		return nil, ErrCounterpartyNotFound
	}
	return &cp, nil
}

// ListCounterparties returns the counterparties matching the filter,
// ordered by display name for stable output.
func (d *MemoryDirectory) ListCounterparties(_ context.Context, filter Filter) ([]domain.Counterparty, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []domain.Counterparty
	for _, cp := range d.counterparties {
		if filter.Kind != "" && cp.Kind != filter.Kind {
			continue
		}
		if filter.Classification != "" && cp.Classification != filter.Classification {
			continue
		}
		if filter.AssignedStaff != "" && cp.AssignedStaffID != filter.AssignedStaff {
			continue
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

package store

import (
	"context"
	"sort"
	"sync"

	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
	"storegate/pkg/platform/sentinel"
	"storegate/pkg/requestcontext"
)

// Memory is an in-memory Store for development and tests.
type Memory struct {
	mu          sync.RWMutex
	constraints map[domain.ConstraintID]*models.Constraint
	// seq preserves creation order for stable listings.
	seq     map[domain.ConstraintID]uint64
	nextSeq uint64
}

func NewMemory() *Memory {
	return &Memory{
		constraints: make(map[domain.ConstraintID]*models.Constraint),
		seq:         make(map[domain.ConstraintID]uint64),
	}
}

func (m *Memory) Create(ctx context.Context, c *models.Constraint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.constraints[c.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	now := requestcontext.Now(ctx)
	c.Version = 1
	c.CreatedAt = now
	c.UpdatedAt = now
	m.constraints[c.ID] = c.Clone()
	m.seq[c.ID] = m.nextSeq
	m.nextSeq++
	return nil
}

func (m *Memory) Update(ctx context.Context, c *models.Constraint, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.constraints[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	c.Version = expectedVersion + 1
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = requestcontext.Now(ctx)
	m.constraints[c.ID] = c.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, id domain.ConstraintID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.constraints[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.constraints, id)
	delete(m.seq, id)
	return nil
}

func (m *Memory) FindByID(_ context.Context, id domain.ConstraintID) (*models.Constraint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.constraints[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (m *Memory) List(_ context.Context, tt models.TargetType) ([]*models.Constraint, error) {
	return m.list(tt, false), nil
}

func (m *Memory) ListActive(_ context.Context, tt models.TargetType) ([]*models.Constraint, error) {
	return m.list(tt, true), nil
}

func (m *Memory) list(tt models.TargetType, activeOnly bool) []*models.Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Constraint, 0, len(m.constraints))
	for _, c := range m.constraints {
		if c.TargetType != tt {
			continue
		}
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out
}

package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/raterudder/cezhdo/pkg/types"
)

// Memory is a process-local Database. Nothing survives a restart.
type Memory struct {
	mu        sync.Mutex
	bindings  map[string]StoredBinding
	schedules map[string]StoredSchedule
}

// NewMemory returns an empty Memory database.
func NewMemory() *Memory {
	return &Memory{
		bindings:  make(map[string]StoredBinding),
		schedules: make(map[string]StoredSchedule),
	}
}

var _ Database = (*Memory)(nil)

func (m *Memory) GetBinding(ctx context.Context, id string) (StoredBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bindings[id]
	if !ok {
		return StoredBinding{}, ErrBindingNotFound
	}
	return b, nil
}

// ListBindings returns all bindings ordered by ID.
func (m *Memory) ListBindings(ctx context.Context) ([]StoredBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StoredBinding, 0, len(m.bindings))
	for _, b := range m.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config.ID() < out[j].Config.ID()
	})
	return out, nil
}

func (m *Memory) SetBinding(ctx context.Context, cfg types.BindingConfig, version int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[cfg.ID()] = StoredBinding{Config: cfg, Version: version}
	return nil
}

func (m *Memory) DeleteBinding(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bindings[id]; !ok {
		return ErrBindingNotFound
	}
	delete(m.bindings, id)
	return nil
}

func (m *Memory) GetSchedule(ctx context.Context, region, code string) (StoredSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[scheduleKey(region, code)]
	if !ok {
		return StoredSchedule{}, ErrScheduleNotFound
	}
	s.Payload = slices.Clone(s.Payload)
	return s, nil
}

func (m *Memory) SetSchedule(ctx context.Context, s StoredSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Payload = slices.Clone(s.Payload)
	m.schedules[scheduleKey(s.Region, s.Code)] = s
	return nil
}

func (m *Memory) Close() error {
	return nil
}

package store

import (
	"context"
	"sort"
	"sync"

	"FountainProtocol/internal/model"
)

// MemoryStore keeps records in process memory. Used when no persistence is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	states    map[string]model.OracleState
	snapshots map[string]model.DailySnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:    make(map[string]model.OracleState),
		snapshots: make(map[string]model.DailySnapshot),
	}
}

func (m *MemoryStore) GetPriorState(_ context.Context, date string) (*model.OracleState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *model.OracleState
	for d, st := range m.states {
		if d >= date {
			continue
		}
		if best == nil || d > best.Date {
			st := st
			best = &st
		}
	}
	return best, nil
}

func (m *MemoryStore) PutState(_ context.Context, st *model.OracleState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[st.Date]; ok {
		return ErrAlreadyExists
	}
	m.states[st.Date] = *st
	return nil
}

func (m *MemoryStore) GetSnapshot(_ context.Context, date string) (*model.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[date]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *MemoryStore) PutSnapshot(_ context.Context, snap *model.DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[snap.Date]; ok {
		return ErrAlreadyExists
	}
	m.snapshots[snap.Date] = *snap
	return nil
}

func (m *MemoryStore) CommitDay(_ context.Context, st *model.OracleState, snap *model.DailySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[snap.Date]; ok {
		return ErrAlreadyExists
	}
	if _, ok := m.states[st.Date]; ok {
		return ErrAlreadyExists
	}
	m.states[st.Date] = *st
	m.snapshots[snap.Date] = *snap
	return nil
}

func (m *MemoryStore) ListSnapshots(_ context.Context, limit int) ([]*model.DailySnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.DailySnapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		snap := snap
		out = append(out, &snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

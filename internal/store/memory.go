// Package store provides snapshot, settings and price persistence plus
// the exclusive run guard.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/wonny/rotor/internal/contracts"
)

// MemorySnapshots is an in-memory append-only SnapshotStore.
// 백테스트와 테스트 전용: 영속성 없음, 잠금 규칙은 동일.
type MemorySnapshots struct {
	mu        sync.RWMutex
	snapshots []*contracts.Snapshot
	nextID    int64
}

// NewMemorySnapshots creates an empty in-memory snapshot store
func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{nextID: 1}
}

// Save appends a copy of the snapshot and returns its id
func (m *MemorySnapshots) Save(_ context.Context, snapshot *contracts.Snapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *snapshot
	cp.ID = m.nextID
	m.nextID++
	m.snapshots = append(m.snapshots, &cp)
	return cp.ID, nil
}

// Latest returns the most recent snapshot, nil when empty
func (m *MemorySnapshots) Latest(_ context.Context) (*contracts.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.snapshots) == 0 {
		return nil, nil
	}
	cp := *m.snapshots[len(m.snapshots)-1]
	return &cp, nil
}

// History returns up to limit snapshots, newest first
func (m *MemorySnapshots) History(_ context.Context, limit int) ([]*contracts.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*contracts.Snapshot, 0, limit)
	for i := len(m.snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *m.snapshots[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Lock seals a stored draft in place
func (m *MemorySnapshots) Lock(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.snapshots {
		if s.ID == id {
			s.Seal()
			return nil
		}
	}
	return fmt.Errorf("snapshot %d not found", id)
}

// MemorySettings is an in-memory SettingsStore seeded with defaults
type MemorySettings struct {
	mu       sync.RWMutex
	settings *contracts.Settings
}

// NewMemorySettings creates a settings store holding the defaults
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{settings: contracts.DefaultSettings()}
}

// Load returns a copy of the current settings
func (m *MemorySettings) Load(_ context.Context) (*contracts.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := *m.settings
	return &cp, nil
}

// Save validates and replaces the settings
func (m *MemorySettings) Save(_ context.Context, settings *contracts.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *settings
	m.settings = &cp
	return nil
}

// LocalRunGuard serializes runs within one process.
// 프로덕션은 PG advisory lock(RunLock) 사용, 테스트/백테스트는 이걸로 충분.
type LocalRunGuard struct {
	mu     sync.Mutex
	locked bool
}

// NewLocalRunGuard creates an in-process run guard
func NewLocalRunGuard() *LocalRunGuard {
	return &LocalRunGuard{}
}

// Acquire takes the guard or fails fast with ErrRunInProgress.
// release는 모든 종료 경로에서 호출되어야 함 (defer).
func (g *LocalRunGuard) Acquire(_ context.Context) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked {
		return nil, contracts.ErrRunInProgress
	}
	g.locked = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			g.mu.Lock()
			g.locked = false
			g.mu.Unlock()
		})
	}
	return release, nil
}

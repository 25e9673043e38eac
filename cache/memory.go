// Package cache provides payroll.ResultCache implementations: an in-process
// map for single-node deployments and Redis for shared caches.
package cache

import (
	"context"
	"sync"

	"github.com/warp/payroll-engine/payroll"
)

// Memory is a process-local result cache. Entries never expire.
type Memory struct {
	mu      sync.RWMutex
	entries map[payroll.CacheKey]*payroll.SalaryResult
}

var _ payroll.ResultCache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[payroll.CacheKey]*payroll.SalaryResult)}
}

func (m *Memory) Get(_ context.Context, key payroll.CacheKey) (*payroll.SalaryResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (m *Memory) Set(_ context.Context, key payroll.CacheKey, result *payroll.SalaryResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = result.Clone()
	return nil
}

func (m *Memory) Clear(_ context.Context, scope payroll.ClearScope) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scope.IsAll() {
		n := len(m.entries)
		m.entries = make(map[payroll.CacheKey]*payroll.SalaryResult)
		return n, nil
	}
	n := 0
	for k := range m.entries {
		if scope.Matches(k) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of cached results.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

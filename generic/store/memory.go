// Package store provides in-process Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/gym-desk/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	movements   []generic.Movement
	idempotency map[string]bool
}

func NewMemory() *Memory {
	return &Memory{idempotency: make(map[string]bool)}
}

// Append adds a single movement. Append-only.
func (m *Memory) Append(_ context.Context, mv generic.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(mv)
}

// AppendBatch adds multiple movements atomically.
func (m *Memory) AppendBatch(_ context.Context, ms []generic.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all keys before writing anything
	seen := make(map[string]bool)
	for _, mv := range ms {
		if mv.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[mv.IdempotencyKey] || seen[mv.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[mv.IdempotencyKey] = true
	}

	for _, mv := range ms {
		if err := m.appendLocked(mv); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(mv generic.Movement) error {
	if mv.IdempotencyKey != "" {
		if m.idempotency[mv.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		m.idempotency[mv.IdempotencyKey] = true
	}
	m.movements = append(m.movements, mv)
	return nil
}

func (m *Memory) LoadSession(_ context.Context, tenantID generic.TenantID, sessionID generic.SessionID) ([]generic.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Movement
	for _, mv := range m.movements {
		if mv.TenantID == tenantID && mv.SessionID == sessionID {
			result = append(result, mv)
		}
	}
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, tenantID generic.TenantID, from, to generic.Date) ([]generic.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Movement
	for _, mv := range m.movements {
		if mv.TenantID != tenantID {
			continue
		}
		if from.BeforeOrEqual(mv.EffectiveAt) && mv.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, mv)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with snapshot/rollback transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against a view of the store; an error restores the snapshot.
func (tm *TxMemory) WithTx(_ context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := append([]generic.Movement(nil), tm.movements...)
	savedKeys := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		savedKeys[k] = v
	}

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.movements = saved
		tm.idempotency = savedKeys
		return err
	}
	return nil
}

// txMemoryView runs with the parent lock already held.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, mv generic.Movement) error {
	return tv.parent.appendLocked(mv)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, ms []generic.Movement) error {
	for _, mv := range ms {
		if err := tv.parent.appendLocked(mv); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) LoadSession(_ context.Context, tenantID generic.TenantID, sessionID generic.SessionID) ([]generic.Movement, error) {
	var result []generic.Movement
	for _, mv := range tv.parent.movements {
		if mv.TenantID == tenantID && mv.SessionID == sessionID {
			result = append(result, mv)
		}
	}
	return result, nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, tenantID generic.TenantID, from, to generic.Date) ([]generic.Movement, error) {
	var result []generic.Movement
	for _, mv := range tv.parent.movements {
		if mv.TenantID == tenantID && from.BeforeOrEqual(mv.EffectiveAt) && mv.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, mv)
		}
	}
	return result, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

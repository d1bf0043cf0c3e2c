package memory

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-memory ClaimLedger. All records are lost when
// the process exits, so it is suitable for tests and local development
// only; production campaigns should use the badger or redis backends.
// Thread-safe via sync.RWMutex.
type MemoryLedger struct {
	mu      sync.RWMutex
	claimed map[common.Address]bool
	closed  bool
}

// NewMemoryLedger creates an empty in-memory claim ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		claimed: make(map[common.Address]bool),
	}
}

// HasClaimed reports whether the account's claim has been recorded.
func (m *MemoryLedger) HasClaimed(account common.Address) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, fmt.Errorf("ledger is closed")
	}
	return m.claimed[account], nil
}

// MarkClaimed records the account's claim. Errors if already recorded.
func (m *MemoryLedger) MarkClaimed(account common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("ledger is closed")
	}
	if m.claimed[account] {
		return fmt.Errorf("account %s already marked claimed", account.Hex())
	}
	m.claimed[account] = true
	return nil
}

// Unmark erases the account's claim record. Idempotent.
func (m *MemoryLedger) Unmark(account common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("ledger is closed")
	}
	delete(m.claimed, account)
	return nil
}

// Close shuts the ledger down. Idempotent.
func (m *MemoryLedger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// HealthCheck reports whether the ledger is usable.
func (m *MemoryLedger) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("ledger is closed")
	}
	return nil
}

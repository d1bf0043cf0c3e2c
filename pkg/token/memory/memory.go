package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryToken is an in-process asset ledger implementing the Transferor
// capability. A fixed pool is funded at construction; transfers draw it
// down and credit per-account balances. Intended for tests and local
// development; a failed transfer (insufficient pool) exercises the
// distributor's rollback path without a chain.
type MemoryToken struct {
	mu       sync.Mutex
	pool     *big.Int
	balances map[common.Address]*big.Int
}

// NewMemoryToken creates a token ledger holding the given pool.
func NewMemoryToken(pool *big.Int) *MemoryToken {
	return &MemoryToken{
		pool:     new(big.Int).Set(pool),
		balances: make(map[common.Address]*big.Int),
	}
}

// Transfer moves amount from the pool to the recipient. Fails without
// side effects when the pool is insufficient.
func (m *MemoryToken) Transfer(_ context.Context, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer amount %s", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient pool: have %s, need %s", m.pool, amount)
	}

	m.pool.Sub(m.pool, amount)
	bal, ok := m.balances[to]
	if !ok {
		bal = new(big.Int)
		m.balances[to] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// BalanceOf returns the recipient's credited balance.
func (m *MemoryToken) BalanceOf(account common.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()

	bal, ok := m.balances[account]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(bal)
}

// Pool returns the remaining undistributed balance.
func (m *MemoryToken) Pool() *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.pool)
}

package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryToken_Transfer(t *testing.T) {
	mt := NewMemoryToken(big.NewInt(100))
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, mt.Transfer(context.Background(), recipient, big.NewInt(25)))

	assert.Equal(t, big.NewInt(25), mt.BalanceOf(recipient))
	assert.Equal(t, big.NewInt(75), mt.Pool())
}

func TestMemoryToken_InsufficientPool(t *testing.T) {
	mt := NewMemoryToken(big.NewInt(10))
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	err := mt.Transfer(context.Background(), recipient, big.NewInt(25))
	require.Error(t, err)

	// Failed transfer leaves no side effects
	assert.Equal(t, big.NewInt(0), mt.BalanceOf(recipient))
	assert.Equal(t, big.NewInt(10), mt.Pool())
}

func TestMemoryToken_NegativeAmount(t *testing.T) {
	mt := NewMemoryToken(big.NewInt(100))
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	assert.Error(t, mt.Transfer(context.Background(), recipient, big.NewInt(-1)))
	assert.Equal(t, big.NewInt(100), mt.Pool())
}

func TestMemoryToken_AccumulatesBalances(t *testing.T) {
	mt := NewMemoryToken(big.NewInt(100))
	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")

	require.NoError(t, mt.Transfer(context.Background(), a, big.NewInt(10)))
	require.NoError(t, mt.Transfer(context.Background(), a, big.NewInt(5)))
	require.NoError(t, mt.Transfer(context.Background(), b, big.NewInt(20)))

	assert.Equal(t, big.NewInt(15), mt.BalanceOf(a))
	assert.Equal(t, big.NewInt(20), mt.BalanceOf(b))
	assert.Equal(t, big.NewInt(65), mt.Pool())
}

func TestMemoryToken_DoesNotAliasCallerAmount(t *testing.T) {
	pool := big.NewInt(100)
	mt := NewMemoryToken(pool)
	pool.SetInt64(0)

	assert.Equal(t, big.NewInt(100), mt.Pool())

	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(30)
	require.NoError(t, mt.Transfer(context.Background(), recipient, amount))
	assert.Equal(t, int64(30), amount.Int64())

	// Returned balances are copies
	mt.BalanceOf(recipient).SetInt64(999)
	assert.Equal(t, big.NewInt(30), mt.BalanceOf(recipient))
}

func TestMemoryToken_ZeroAmount(t *testing.T) {
	mt := NewMemoryToken(big.NewInt(100))
	recipient := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, mt.Transfer(context.Background(), recipient, big.NewInt(0)))
	assert.Equal(t, big.NewInt(0), mt.BalanceOf(recipient))
	assert.Equal(t, big.NewInt(100), mt.Pool())
}

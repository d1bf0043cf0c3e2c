package badger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merkledrop-labs/merkledrop-go/pkg/logger"
)

func newTestLedger(t *testing.T) *BadgerLedger {
	t.Helper()

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	bl, err := NewBadgerLedger(t.TempDir(), l)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bl.Close() })
	return bl
}

func TestBadgerLedger_MarkAndQuery(t *testing.T) {
	bl := newTestLedger(t)
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	claimed, err := bl.HasClaimed(account)
	require.NoError(t, err)
	assert.False(t, claimed)

	require.NoError(t, bl.MarkClaimed(account))

	claimed, err = bl.HasClaimed(account)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestBadgerLedger_DoubleMarkIsError(t *testing.T) {
	bl := newTestLedger(t)
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, bl.MarkClaimed(account))
	assert.Error(t, bl.MarkClaimed(account))
}

func TestBadgerLedger_Unmark(t *testing.T) {
	bl := newTestLedger(t)
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	require.NoError(t, bl.MarkClaimed(account))
	require.NoError(t, bl.Unmark(account))

	claimed, err := bl.HasClaimed(account)
	require.NoError(t, err)
	assert.False(t, claimed)

	// Idempotent on unclaimed accounts
	assert.NoError(t, bl.Unmark(account))

	// Claimable again after rollback
	assert.NoError(t, bl.MarkClaimed(account))
}

func TestBadgerLedger_SurvivesReopen(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	dir := t.TempDir()
	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	bl, err := NewBadgerLedger(dir, l)
	require.NoError(t, err)
	require.NoError(t, bl.MarkClaimed(account))
	require.NoError(t, bl.Close())

	reopened, err := NewBadgerLedger(dir, l)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	claimed, err := reopened.HasClaimed(account)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestBadgerLedger_HealthCheck(t *testing.T) {
	bl := newTestLedger(t)
	assert.NoError(t, bl.HealthCheck())
}

func TestBadgerLedger_Closed(t *testing.T) {
	bl := newTestLedger(t)
	require.NoError(t, bl.Close())
	require.NoError(t, bl.Close()) // idempotent

	account := common.HexToAddress("0x1111111111111111111111111111111111111111")

	_, err := bl.HasClaimed(account)
	assert.Error(t, err)
	assert.Error(t, bl.MarkClaimed(account))
	assert.Error(t, bl.Unmark(account))
	assert.Error(t, bl.HealthCheck())
}

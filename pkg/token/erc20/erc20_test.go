package erc20

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackTransfer(t *testing.T) {
	to := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount := big.NewInt(25)

	data, err := packTransfer(to, amount)
	require.NoError(t, err)

	// 4-byte selector plus two 32-byte arguments
	require.Len(t, data, 4+64)
	assert.Equal(t, transferMethodID, data[:4])
	assert.Equal(t, common.LeftPadBytes(to.Bytes(), 32), data[4:36])
	assert.Equal(t, common.LeftPadBytes(amount.Bytes(), 32), data[36:68])
}

func TestPackTransfer_KnownSelector(t *testing.T) {
	// transfer(address,uint256) selector per the ERC-20 ABI
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, transferMethodID)
}

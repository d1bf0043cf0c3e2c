package payoutsigner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ITransactionSigner signs and submits payout transactions. The
// distributor's ERC-20 transferor hands it a skeleton transaction (to +
// calldata); the signer owns fee estimation, nonce management, signing
// and submission.
type ITransactionSigner interface {
	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address

	// SignAndSendTransaction estimates fees, signs the transaction and
	// sends it to the network, returning the mined receipt.
	SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// fallbackGasTipCap is used when the backend does not support
// eth_maxPriorityFeePerGas.
var fallbackGasTipCap = big.NewInt(1500000000) // 1.5 gwei

// baseFeeMultiplier buffers against base-fee spikes between estimation
// and inclusion.
const baseFeeMultiplier = 2

// prepareDynamicFeeTx rebuilds the skeleton tx with estimated fees, gas
// limit (with 20% buffer) and the current pending nonce.
func prepareDynamicFeeTx(ctx context.Context, client *ethclient.Client, chainID *big.Int, from common.Address, tx *types.Transaction, logger *zap.Logger) (*types.Transaction, error) {
	gasTipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		logger.Sugar().Warnw("prepareDynamicFeeTx: cannot get gasTipCap, using fallback",
			zap.Error(err),
		)
		gasTipCap = fallbackGasTipCap
	}

	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}

	maxFeePerGas := new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(baseFeeMultiplier)),
		gasTipCap,
	)

	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, err
	}
	gasLimit = gasLimit + gasLimit/5

	// Always fetch the nonce: the skeleton carries 0 and nonce 0 is valid
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, err
	}

	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
	}), nil
}

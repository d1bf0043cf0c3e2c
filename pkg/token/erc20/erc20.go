package erc20

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/payoutsigner"
)

// transferMethodID is the 4-byte selector of transfer(address,uint256)
var transferMethodID = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// ERC20Transferor implements the Transferor capability against an
// on-chain ERC-20 token. Each Transfer submits one token transfer from
// the payout signer's address and waits for the receipt; a reverted
// transaction surfaces as an error so the distributor rolls the claim
// back.
type ERC20Transferor struct {
	tokenAddress common.Address
	signer       payoutsigner.ITransactionSigner
	logger       *zap.Logger
}

// NewERC20Transferor creates a transferor for the given token contract.
func NewERC20Transferor(tokenAddress common.Address, signer payoutsigner.ITransactionSigner, logger *zap.Logger) *ERC20Transferor {
	return &ERC20Transferor{
		tokenAddress: tokenAddress,
		signer:       signer,
		logger:       logger,
	}
}

// Transfer moves amount of the token to the recipient.
func (e *ERC20Transferor) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	data, err := packTransfer(to, amount)
	if err != nil {
		return errors.Wrap(err, "failed to encode transfer calldata")
	}

	// Skeleton only; the signer owns fees, gas and nonce
	tx := types.NewTx(&types.DynamicFeeTx{
		To:   &e.tokenAddress,
		Data: data,
	})

	receipt, err := e.signer.SignAndSendTransaction(ctx, tx)
	if err != nil {
		return errors.Wrapf(err, "token transfer to %s failed", to.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return errors.Errorf("token transfer to %s reverted in tx %s", to.Hex(), receipt.TxHash.Hex())
	}

	e.logger.Sugar().Infow("Token transfer mined",
		"token", e.tokenAddress.Hex(),
		"to", to.Hex(),
		"amount", amount.String(),
		"tx", receipt.TxHash.Hex(),
	)
	return nil
}

// packTransfer ABI-encodes transfer(to, amount)
func packTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build address ABI type")
	}
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build uint256 ABI type")
	}
	arguments := abi.Arguments{{Type: addressType}, {Type: uint256Type}}

	encoded, err := arguments.Pack(to, amount)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, transferMethodID...), encoded...), nil
}

package payoutsigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PrivateKeySigner signs payout transactions with an in-process
// secp256k1 key. Suitable for development and low-value campaigns; use
// the AWS KMS signer when the payout key must not live on the host.
type PrivateKeySigner struct {
	ethClient   *ethclient.Client
	logger      *zap.Logger
	chainID     *big.Int
	privateKey  *cryptoEcdsa.PrivateKey
	fromAddress common.Address
}

// NewPrivateKeySigner creates a signer from a hex-encoded private key.
func NewPrivateKeySigner(privateKeyHex string, ethClient *ethclient.Client, logger *zap.Logger) (*PrivateKeySigner, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &PrivateKeySigner{
		ethClient:   ethClient,
		logger:      logger,
		chainID:     chainID,
		privateKey:  key,
		fromAddress: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// GetFromAddress returns the address that will be used for signing
func (p *PrivateKeySigner) GetFromAddress() common.Address {
	return p.fromAddress
}

// SignAndSendTransaction estimates fees, signs and submits the
// transaction, then waits for it to be mined.
func (p *PrivateKeySigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	prepared, err := prepareDynamicFeeTx(ctx, p.ethClient, p.chainID, p.fromAddress, tx, p.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare transaction: %w", err)
	}

	signedTx, err := types.SignTx(prepared, types.LatestSignerForChainID(p.chainID), p.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := p.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	p.logger.Sugar().Infow("Payout transaction sent",
		"hash", signedTx.Hash().Hex(),
		"nonce", signedTx.Nonce(),
	)

	receipt, err := bind.WaitMined(ctx, p.ethClient, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", signedTx.Hash().Hex(), err)
	}
	return receipt, nil
}

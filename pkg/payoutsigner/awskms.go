package payoutsigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AWSKMSSigner signs payout transactions with a secp256k1 key held in
// AWS KMS. The private key never leaves KMS; only digests are sent for
// signing. KMS returns DER-encoded (r, s) signatures, so the signer
// normalizes s to the lower half-order and searches for the recovery id
// that yields the known public key.
type AWSKMSSigner struct {
	ethClient   *ethclient.Client
	logger      *zap.Logger
	chainID     *big.Int
	kmsClient   *kms.Client
	keyID       string
	publicKey   *cryptoEcdsa.PublicKey
	fromAddress common.Address
}

// NewAWSKMSSigner creates a signer bound to the given KMS key id. The
// key must be an ECC_SECG_P256K1 sign/verify key.
func NewAWSKMSSigner(ctx context.Context, awsCfg aws.Config, keyID string, ethClient *ethclient.Client, logger *zap.Logger) (*AWSKMSSigner, error) {
	kmsClient := kms.NewFromConfig(awsCfg)

	pubOut, err := kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyID)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for KMS key %s", keyID)
	}

	pubKey, err := parseECDSAPublicKey(pubOut.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for KMS key %s", keyID)
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &AWSKMSSigner{
		ethClient:   ethClient,
		logger:      logger,
		chainID:     chainID,
		kmsClient:   kmsClient,
		keyID:       keyID,
		publicKey:   pubKey,
		fromAddress: crypto.PubkeyToAddress(*pubKey),
	}, nil
}

// GetFromAddress returns the address that will be used for signing
func (a *AWSKMSSigner) GetFromAddress() common.Address {
	return a.fromAddress
}

// SignAndSendTransaction estimates fees, signs the digest via KMS,
// assembles the Ethereum signature, submits and waits for mining.
func (a *AWSKMSSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	prepared, err := prepareDynamicFeeTx(ctx, a.ethClient, a.chainID, a.fromAddress, tx, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare transaction: %w", err)
	}

	signer := types.LatestSignerForChainID(a.chainID)
	digest := signer.Hash(prepared)

	ethSig, err := a.signDigest(ctx, digest.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign digest with KMS key %s", a.keyID)
	}

	signedTx, err := prepared.WithSignature(signer, ethSig)
	if err != nil {
		return nil, fmt.Errorf("failed to attach signature: %w", err)
	}

	if err := a.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	a.logger.Sugar().Infow("Payout transaction sent",
		"hash", signedTx.Hash().Hex(),
		"nonce", signedTx.Nonce(),
		"kmsKey", a.keyID,
	)

	receipt, err := bind.WaitMined(ctx, a.ethClient, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for transaction %s: %w", signedTx.Hash().Hex(), err)
	}
	return receipt, nil
}

// signDigest asks KMS for a signature over the 32-byte digest and
// converts the DER (r, s) into the 65-byte r || s || v Ethereum form.
func (a *AWSKMSSigner) signDigest(ctx context.Context, digest []byte) ([]byte, error) {
	out, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyID),
		Message:          digest,
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS sign failed: %w", err)
	}

	var parsed asn1EcSig
	if _, err := asn1.Unmarshal(out.Signature, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse DER signature: %w", err)
	}

	curveN := crypto.S256().Params().N
	s := new(big.Int).Set(parsed.S)
	// KMS may return the malleable high-s form; Ethereum requires low s
	halfN := new(big.Int).Rsh(curveN, 1)
	if s.Cmp(halfN) > 0 {
		s.Sub(curveN, s)
	}

	sig := make([]byte, 65)
	parsed.R.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])

	expected := crypto.FromECDSAPub(a.publicKey)
	for v := byte(0); v <= 1; v++ {
		sig[64] = v
		recovered, err := crypto.Ecrecover(digest, sig)
		if err == nil && string(recovered) == string(expected) {
			return sig, nil
		}
	}
	return nil, fmt.Errorf("could not determine recovery id for KMS signature")
}

// ASN.1 structures for KMS DER-encoded keys and signatures

type asn1EcSig struct {
	R *big.Int
	S *big.Int
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

// parseECDSAPublicKey parses the DER-encoded public key from KMS
func parseECDSAPublicKey(derBytes []byte) (*cryptoEcdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}

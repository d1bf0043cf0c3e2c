package sigverify

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the wire size of a claim authorization signature:
// 32-byte r, 32-byte s, 1-byte recovery id.
const SignatureLength = 65

var (
	// ErrMalformedSignature means the signature failed structural
	// validation (length, component ranges) before any recovery was
	// attempted.
	ErrMalformedSignature = errors.New("sigverify: malformed signature")

	// ErrRecoveryFailed means the signature was well-formed but no
	// public key could be recovered from it for the given digest.
	ErrRecoveryFailed = errors.New("sigverify: public key recovery failed")
)

// Signature is a parsed, range-checked ECDSA signature.
type Signature struct {
	V uint8 // recovery id, normalized to 0 or 1
	R [32]byte
	S [32]byte
}

// ParseSignature validates and decodes a 65-byte (r || s || v) signature.
// Accepts v in {0, 1, 27, 28} and normalizes to {0, 1}. Rejects zero r
// or s and any s above the curve half-order (malleable form). All
// rejections wrap ErrMalformedSignature so callers can distinguish
// parse failures from recovery failures.
func ParseSignature(sig []byte) (Signature, error) {
	if len(sig) != SignatureLength {
		return Signature{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedSignature, SignatureLength, len(sig))
	}

	v := sig[64]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v > 1 {
		return Signature{}, fmt.Errorf("%w: recovery id %d out of range", ErrMalformedSignature, sig[64])
	}

	r := new(big.Int).SetBytes(sig[0:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, true) {
		return Signature{}, fmt.Errorf("%w: r/s out of range", ErrMalformedSignature)
	}

	var parsed Signature
	parsed.V = v
	copy(parsed.R[:], sig[0:32])
	copy(parsed.S[:], sig[32:64])
	return parsed, nil
}

// Recover returns the address whose key produced sig over digest.
// Returns ErrRecoveryFailed (wrapped) when no key can be recovered.
// Pure; no state.
func Recover(digest [32]byte, sig Signature) (common.Address, error) {
	compact := make([]byte, SignatureLength)
	copy(compact[0:32], sig.R[:])
	copy(compact[32:64], sig.S[:])
	compact[64] = sig.V

	pubkey, err := crypto.SigToPub(digest[:], compact)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrRecoveryFailed, err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// RecoverBytes parses and recovers in one step, for callers holding the
// raw wire form.
func RecoverBytes(digest [32]byte, sig []byte) (common.Address, error) {
	parsed, err := ParseSignature(sig)
	if err != nil {
		return common.Address{}, err
	}
	return Recover(digest, parsed)
}

// Sign produces a 65-byte (r || s || v) signature over digest with v in
// {27, 28}, the form wallets emit for typed-data signatures. Used by
// the claim client and tests; the verification path never signs.
func Sign(digest [32]byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

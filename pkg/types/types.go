package types

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Entitlement is one (account, amount) row committed into the campaign tree.
// It is immutable and fully defined by its two fields; the engine never
// materializes the full entitlement list, it only sees one row per claim.
type Entitlement struct {
	Account common.Address `json:"account"`
	Amount  *big.Int       `json:"amount"`
}

// ClaimFile is the per-recipient artifact produced by the offline tree
// builder: the entitlement plus the sibling path needed to reach the
// committed root. This is what drop-client loads from disk.
type ClaimFile struct {
	Account string   `json:"account"`
	Amount  string   `json:"amount"` // decimal string
	Proof   []string `json:"proof"`  // 0x-prefixed 32-byte hex, leaf-to-root order
}

// ParseHash32 decodes a 0x-prefixed hex string into a 32-byte hash.
func ParseHash32(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hexutil.Decode(s)
	if err != nil {
		return out, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != 32 {
		return out, fmt.Errorf("invalid hash %q: expected 32 bytes, got %d", s, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseProof decodes an ordered list of 0x-prefixed sibling hashes.
func ParseProof(hashes []string) ([][32]byte, error) {
	proof := make([][32]byte, len(hashes))
	for i, h := range hashes {
		parsed, err := ParseHash32(h)
		if err != nil {
			return nil, fmt.Errorf("proof element %d: %w", i, err)
		}
		proof[i] = parsed
	}
	return proof, nil
}

// ParseAmount decodes a non-negative decimal amount string. Amounts
// must fit in a uint256: the leaf and digest encodings reduce mod
// 2^256, so a wider value would alias a committed entitlement.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q: not a decimal integer", s)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q: must be non-negative", s)
	}
	if amount.BitLen() > 256 {
		return nil, fmt.Errorf("invalid amount %q: exceeds uint256 range", s)
	}
	return amount, nil
}

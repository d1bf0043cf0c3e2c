package testutil

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/merkledrop-labs/merkledrop-go/pkg/eip712"
	"github.com/merkledrop-labs/merkledrop-go/pkg/leaf"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/sigverify"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

// Test-side stand-in for the offline tree builder. It uses the same
// pairing convention as the verifier (sorted keccak256 pairs, odd nodes
// duplicated) so generated proofs verify against the committed root.
// Production code never builds trees; only tests do.

// Tree is a binary merkle tree over entitlement leaves.
type Tree struct {
	Root   [32]byte
	Leaves [][32]byte

	// levels[0] = leaves, levels[len-1] = root
	levels [][][32]byte
}

// BuildTree builds a tree from entitlements. Entitlements are sorted by
// account for deterministic construction.
func BuildTree(ents []types.Entitlement) (*Tree, error) {
	if len(ents) == 0 {
		return nil, fmt.Errorf("cannot build merkle tree from empty entitlement list")
	}

	sorted := make([]types.Entitlement, len(ents))
	copy(sorted, ents)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Account.Cmp(sorted[j].Account) < 0
	})

	leaves := make([][32]byte, len(sorted))
	for i, e := range sorted {
		leaves[i] = leaf.Hash(e.Account, e.Amount)
	}

	levels := [][][32]byte{leaves}
	currentLevel := leaves
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, 0, (len(currentLevel)+1)/2)
		for i := 0; i < len(currentLevel); i += 2 {
			left := currentLevel[i]
			right := left
			if i+1 < len(currentLevel) {
				right = currentLevel[i+1]
			}
			nextLevel = append(nextLevel, merkle.HashPair(left, right))
		}
		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	return &Tree{
		Root:   currentLevel[0],
		Leaves: leaves,
		levels: levels,
	}, nil
}

// ProofForLeaf returns the sibling path for the leaf equal to the given
// hash.
func (t *Tree) ProofForLeaf(leafHash [32]byte) ([][32]byte, error) {
	for i, l := range t.Leaves {
		if l == leafHash {
			return t.Proof(i)
		}
	}
	return nil, fmt.Errorf("leaf not found in tree")
}

// Proof returns the sibling path for the leaf at index i.
func (t *Tree) Proof(leafIndex int) ([][32]byte, error) {
	if leafIndex < 0 || leafIndex >= len(t.Leaves) {
		return nil, fmt.Errorf("leaf index %d out of bounds (tree has %d leaves)", leafIndex, len(t.Leaves))
	}

	proof := make([][32]byte, 0, len(t.levels)-1)
	index := leafIndex
	for level := 0; level < len(t.levels)-1; level++ {
		currentLevel := t.levels[level]
		siblingIndex := index ^ 1
		if siblingIndex >= len(currentLevel) {
			siblingIndex = index // odd node pairs with itself
		}
		proof = append(proof, currentLevel[siblingIndex])
		index = index / 2
	}
	return proof, nil
}

// GenerateAccount creates a fresh secp256k1 key and its address.
func GenerateAccount() (*ecdsa.PrivateKey, common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, common.Address{}, err
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

// SignClaim produces the 65-byte authorization signature for
// (account, amount) under the given domain.
func SignClaim(domain *eip712.Domain, key *ecdsa.PrivateKey, account common.Address, amount *big.Int) ([]byte, error) {
	digest := domain.ClaimDigest(account, amount)
	return sigverify.Sign(digest, key)
}

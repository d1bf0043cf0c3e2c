package merkle

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
)

// VerifyProof checks that leaf is included in the tree committed to by
// root, given the ordered sibling path from leaf level up to (but not
// including) the root.
//
// Pairing convention (fixed protocol parameter):
//
//	parent = keccak256(min(a, b) || max(a, b))
//
// i.e. each pair is sorted bytewise before hashing, so the proof does
// not need to carry left/right position bits. The offline tree builder
// MUST hash sorted keccak256 pairs (OpenZeppelin MerkleProof
// convention); proofs generated under any other convention will not
// verify. Changing the convention invalidates every issued proof; it
// is a deployment coupling, not an implementation detail.
//
// An empty proof is valid only for a single-entry tree where the leaf
// is itself the root. Pure function; cost is linear in proof length.
func VerifyProof(proof [][32]byte, root, leaf [32]byte) bool {
	current := leaf
	for _, sibling := range proof {
		current = HashPair(current, sibling)
	}
	return current == root
}

// HashPair computes keccak256 over the sorted concatenation of two
// 32-byte nodes. Exported so proof generators stay pinned to the same
// convention as the verifier.
func HashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}

	data := make([]byte, 64)
	copy(data[0:32], a[:])
	copy(data[32:64], b[:])

	return [32]byte(crypto.Keccak256Hash(data))
}

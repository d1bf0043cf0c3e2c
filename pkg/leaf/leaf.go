package leaf

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Hash computes the merkle leaf for an (account, amount) entitlement.
//
// Encoding matches the offline tree builder exactly:
// keccak256(keccak256(abi.encodePacked(account, uint256(amount)))),
// i.e. 20-byte address followed by the 32-byte big-endian amount,
// hashed twice. The double hash ensures an internal tree node (which is
// the hash of a 64-byte sibling pair) can never be presented as a valid
// leaf, closing the classic second-preimage attack on single-hash
// merkle trees.
//
// Any change to field order, widths or hash function silently
// invalidates every previously generated proof.
func Hash(account common.Address, amount *big.Int) [32]byte {
	data := make([]byte, 0, 20+32)
	data = append(data, account.Bytes()...)
	data = append(data, math.U256Bytes(new(big.Int).Set(amount))...)

	inner := crypto.Keccak256(data)
	return [32]byte(crypto.Keccak256Hash(inner))
}

package eip712

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
Claim Authorization Digest

Claims are authorized by an EIP-712 typed-data signature from the
entitled account, not by the transaction submitter. The digest binds
exactly one (account, amount) pair to exactly one deployed distributor
instance:

	structHash = keccak256(CLAIM_TYPEHASH || pad32(account) || uint256(amount))
	digest     = keccak256(0x19 0x01 || domainSeparator || structHash)

with CLAIM_TYPEHASH = keccak256("Claim(address account,uint256 amount)")
and the domain separator built from {name, version, chainId,
verifyingContract}. A signature over this digest cannot be replayed
against a different campaign instance, a different chain, or a
different entitlement; any one field changing changes the digest.

Wallets that implement eth_signTypedData can present the Claim struct
to the signer as an auditable structure rather than an opaque blob.
*/

var (
	// eip712DomainTypehash is the typehash for the standard EIP-712
	// domain with name, version, chainId and verifyingContract.
	eip712DomainTypehash = crypto.Keccak256Hash([]byte(
		"EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)",
	))

	// ClaimTypehash is the typehash of the signed Claim struct.
	ClaimTypehash = crypto.Keccak256Hash([]byte(
		"Claim(address account,uint256 amount)",
	))
)

// Domain is the instance-binding context for claim digests. Built once
// at distributor construction and immutable thereafter.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address

	separator [32]byte
}

// NewDomain creates a Domain and precomputes its separator.
func NewDomain(name, version string, chainID *big.Int, verifyingContract common.Address) *Domain {
	d := &Domain{
		Name:              name,
		Version:           version,
		ChainID:           new(big.Int).Set(chainID),
		VerifyingContract: verifyingContract,
	}

	// keccak256(abi.encode(typehash, keccak(name), keccak(version), chainId, contract))
	data := make([]byte, 0, 5*32)
	data = append(data, eip712DomainTypehash.Bytes()...)
	data = append(data, crypto.Keccak256([]byte(d.Name))...)
	data = append(data, crypto.Keccak256([]byte(d.Version))...)
	data = append(data, math.U256Bytes(new(big.Int).Set(d.ChainID))...)
	data = append(data, common.LeftPadBytes(d.VerifyingContract.Bytes(), 32)...)

	d.separator = [32]byte(crypto.Keccak256Hash(data))
	return d
}

// Separator returns the precomputed EIP-712 domain separator.
func (d *Domain) Separator() [32]byte {
	return d.separator
}

// ClaimDigest computes the signable digest for an (account, amount)
// entitlement. Pure and deterministic.
func (d *Domain) ClaimDigest(account common.Address, amount *big.Int) [32]byte {
	structData := make([]byte, 0, 3*32)
	structData = append(structData, ClaimTypehash.Bytes()...)
	structData = append(structData, common.LeftPadBytes(account.Bytes(), 32)...)
	structData = append(structData, math.U256Bytes(new(big.Int).Set(amount))...)
	structHash := crypto.Keccak256(structData)

	data := make([]byte, 0, 2+2*32)
	data = append(data, 0x19, 0x01)
	data = append(data, d.separator[:]...)
	data = append(data, structHash...)

	return [32]byte(crypto.Keccak256Hash(data))
}

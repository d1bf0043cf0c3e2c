package testutil

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merkledrop-labs/merkledrop-go/pkg/eip712"
	"github.com/merkledrop-labs/merkledrop-go/pkg/leaf"
	"github.com/merkledrop-labs/merkledrop-go/pkg/merkle"
	"github.com/merkledrop-labs/merkledrop-go/pkg/sigverify"
	"github.com/merkledrop-labs/merkledrop-go/pkg/types"
)

func newTestDomain() *eip712.Domain {
	return eip712.NewDomain(
		"MerkleDrop",
		"1",
		big.NewInt(1),
		common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3"),
	)
}

func makeEntitlements(t *testing.T, n int) []types.Entitlement {
	t.Helper()

	ents := make([]types.Entitlement, n)
	for i := 0; i < n; i++ {
		_, account, err := GenerateAccount()
		require.NoError(t, err)
		ents[i] = types.Entitlement{Account: account, Amount: big.NewInt(int64(100 + i))}
	}
	return ents
}

func TestBuildTree_EmptyFails(t *testing.T) {
	_, err := BuildTree(nil)
	assert.Error(t, err)
}

// Every proof the builder emits must verify against the root it emits,
// for balanced and unbalanced trees alike.
func TestBuildTree_ProofsVerify(t *testing.T) {
	for n := 1; n <= 16; n++ {
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			tree, err := BuildTree(makeEntitlements(t, n))
			require.NoError(t, err)
			require.Len(t, tree.Leaves, n)

			for i := 0; i < n; i++ {
				proof, err := tree.Proof(i)
				require.NoError(t, err)
				assert.True(t, merkle.VerifyProof(proof, tree.Root, tree.Leaves[i]),
					"proof for leaf %d of %d should verify", i, n)
			}
		})
	}
}

func TestBuildTree_DeterministicAcrossInputOrder(t *testing.T) {
	ents := makeEntitlements(t, 5)

	reversed := make([]types.Entitlement, len(ents))
	for i, e := range ents {
		reversed[len(ents)-1-i] = e
	}

	a, err := BuildTree(ents)
	require.NoError(t, err)
	b, err := BuildTree(reversed)
	require.NoError(t, err)

	assert.Equal(t, a.Root, b.Root)
}

func TestProof_IndexOutOfBounds(t *testing.T) {
	tree, err := BuildTree(makeEntitlements(t, 3))
	require.NoError(t, err)

	_, err = tree.Proof(-1)
	assert.Error(t, err)
	_, err = tree.Proof(3)
	assert.Error(t, err)
}

func TestProofForLeaf(t *testing.T) {
	ents := makeEntitlements(t, 4)
	tree, err := BuildTree(ents)
	require.NoError(t, err)

	leafHash := leaf.Hash(ents[2].Account, ents[2].Amount)
	proof, err := tree.ProofForLeaf(leafHash)
	require.NoError(t, err)
	assert.True(t, merkle.VerifyProof(proof, tree.Root, leafHash))

	_, err = tree.ProofForLeaf([32]byte{0xde, 0xad})
	assert.Error(t, err)
}

func TestSignClaim_RecoversToAccount(t *testing.T) {
	key, account, err := GenerateAccount()
	require.NoError(t, err)

	domain := newTestDomain()
	amount := big.NewInt(25)

	sig, err := SignClaim(domain, key, account, amount)
	require.NoError(t, err)

	recovered, err := sigverify.RecoverBytes(domain.ClaimDigest(account, amount), sig)
	require.NoError(t, err)
	assert.Equal(t, account, recovered)
}

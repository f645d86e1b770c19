package merkletree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_EmptyInput(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestBuild_SingleLeaf(t *testing.T) {
	tree, err := Build([]string{"QmA"})
	require.NoError(t, err)
	assert.Equal(t, leafHash("QmA"), tree.Root)
	assert.Empty(t, tree.Proofs["QmA"])
	assert.True(t, Verify("QmA", tree.Proofs["QmA"], tree.Root))
}

func TestBuild_Determinism(t *testing.T) {
	leaves := []string{"QmC", "QmA", "QmB"}
	permuted := []string{"QmB", "QmC", "QmA"}

	t1, err := Build(leaves)
	require.NoError(t, err)
	t2, err := Build(permuted)
	require.NoError(t, err)

	assert.Equal(t, t1.Root, t2.Root)
	for _, l := range leaves {
		assert.Equal(t, t1.Proofs[l], t2.Proofs[l])
	}
}

func TestRoundTrip_AllLeavesVerify(t *testing.T) {
	leaves := []string{"QmA", "QmB", "QmC", "QmD", "QmE"}
	tree, err := Build(leaves)
	require.NoError(t, err)

	for _, l := range leaves {
		assert.True(t, Verify(l, tree.Proofs[l], tree.Root), "leaf %s must verify", l)
	}
	assert.False(t, Verify("QmNotInSet", tree.Proofs["QmA"], tree.Root))
}

func TestProofLength_PowerOfTwoBounds(t *testing.T) {
	tree, err := Build([]string{"QmA", "QmB", "QmC"})
	require.NoError(t, err)
	for _, l := range tree.SortedLeaves {
		assert.LessOrEqual(t, len(tree.Proofs[l]), 2)
	}
}

// TestProofLength_OddLeafDuplicated pins spec.md scenario S1: every invoice
// in a 3-leaf batch, including the odd one out that gets duplicated rather
// than promoted unchanged, must get a proof of length ceil(log2(3))=2.
func TestProofLength_OddLeafDuplicated(t *testing.T) {
	tree, err := Build([]string{"QmA", "QmB", "QmC"})
	require.NoError(t, err)
	require.Len(t, tree.SortedLeaves, 3)
	for _, l := range tree.SortedLeaves {
		assert.Len(t, tree.Proofs[l], 2, "leaf %s must have a depth-2 proof", l)
		assert.True(t, Verify(l, tree.Proofs[l], tree.Root))
	}
}

func TestSwappedProofFailsVerification(t *testing.T) {
	tree, err := Build([]string{"QmA", "QmB", "QmC"})
	require.NoError(t, err)

	proofA := tree.Proofs["QmA"]
	proofB := tree.Proofs["QmB"]
	assert.True(t, Verify("QmA", proofA, tree.Root))
	if len(proofA) > 0 && len(proofB) > 0 {
		assert.False(t, Verify("QmB", proofA, tree.Root))
	}
}

func TestFuzzSizes_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for size := 1; size <= 33; size++ {
		leaves := make([]string, size)
		for i := range leaves {
			leaves[i] = randomCID(rng, i)
		}
		tree, err := Build(leaves)
		require.NoError(t, err)
		for _, l := range leaves {
			assert.True(t, Verify(l, tree.Proofs[l], tree.Root), "size=%d leaf=%s", size, l)
		}
	}
}

func TestVerifyHex_RoundTrip(t *testing.T) {
	tree, err := Build([]string{"QmA", "QmB", "QmC"})
	require.NoError(t, err)

	ok, err := VerifyHex("QmA", tree.ProofHex("QmA"), tree.RootHex())
	require.NoError(t, err)
	assert.True(t, ok)
}

func randomCID(rng *rand.Rand, salt int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, 46)
	for i := range b {
		b[i] = charset[rng.Intn(len(charset))]
	}
	return "Qm" + string(b) + string(rune('a'+salt%26))
}

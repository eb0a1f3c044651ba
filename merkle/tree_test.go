package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distribution/sealedblock/cryptoutil"
	"github.com/distribution/sealedblock/format"
)

func TestExtraBlocks(t *testing.T) {
	// HashesPerBlock is 127 for a 4096-byte block.
	require.Equal(t, uint64(1+1), ExtraBlocks(8))
	require.Equal(t, uint64(1+3), ExtraBlocks(256))
	require.Equal(t, uint64(1+1), ExtraBlocks(127))
	require.Equal(t, uint64(1+2), ExtraBlocks(128))
}

func TestIsValidSize(t *testing.T) {
	require.False(t, IsValidSize(0))
	require.False(t, IsValidSize(1))
	require.False(t, IsValidSize(3))
	require.True(t, IsValidSize(2))
	require.True(t, IsValidSize(256))
	require.False(t, IsValidSize(255))
}

func zeroDigest() cryptoutil.Digest {
	var blk [4096]byte
	return cryptoutil.SHA256(blk[:])
}

func TestInitializeThenRecomputeMatchesRoot(t *testing.T) {
	tree := NewTree(8)
	tree.InitializeLeaves(zeroDigest())
	root := tree.RecomputeUpper()
	require.Equal(t, root, tree.Root())
}

// TestUpdateWritesBackParentHashes guards against the source's latent bug,
// where the recomputed parent digest was discarded instead of stored into
// upper[parent]. Update must leave the tree in the same state a full
// RecomputeUpper would.
func TestUpdateWritesBackParentHashes(t *testing.T) {
	tree := NewTree(8)
	tree.InitializeLeaves(zeroDigest())
	tree.RecomputeUpper()

	newLeaf := cryptoutil.SHA256([]byte("written"))
	tree.Update(3, newLeaf)

	gotRoot := tree.Root()

	want := NewTree(8)
	want.InitializeLeaves(zeroDigest())
	want.SetLeaf(3, newLeaf)
	wantRoot := want.RecomputeUpper()

	require.Equal(t, wantRoot, gotRoot)
	require.Equal(t, newLeaf, tree.LeafDigest(3))
	require.True(t, tree.CheckLeaf(3, newLeaf))
	require.False(t, tree.CheckLeaf(3, zeroDigest()))
}

func TestUpdateMarksOwningHashBlockDirty(t *testing.T) {
	tree := NewTree(256)
	tree.InitializeLeaves(zeroDigest())
	tree.RecomputeUpper()
	for _, i := range tree.DirtyIndices() {
		tree.ClearDirty(i)
	}
	require.False(t, tree.AnyDirty())

	tree.Update(130, cryptoutil.SHA256([]byte("x")))

	require.True(t, tree.AnyDirty())
	require.Equal(t, []uint64{1}, tree.DirtyIndices()) // 130 / 127 == 1
}

func TestHashBlockRoundTripsThroughTree(t *testing.T) {
	tree := NewTree(256)
	tree.InitializeLeaves(zeroDigest())

	var hb format.HashBlock
	hb.Hashes[0] = cryptoutil.SHA256([]byte("a"))
	tree.SetHashBlock(2, hb)

	require.Equal(t, hb, tree.HashBlock(2))
}

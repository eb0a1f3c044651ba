// Package merkle holds the split in-memory representation of the Merkle
// tree authenticating a sealed block device, and the index math and
// recompute walks that keep it consistent. It has no knowledge of the
// lower block device or of encryption; sealed.Device drives IO and calls
// into Tree for the pure computation, the same separation distribution
// keeps between blobStore (IO) and digest verification.
package merkle

import (
	"github.com/distribution/sealedblock/cryptoutil"
	"github.com/distribution/sealedblock/format"
)

// Tree is the complete binary tree over 2*nblks-1 nodes, physically split
// into a packed array of non-leaf digests (upper) and leaves embedded in
// per-block groups (hashBlocks), per spec.
type Tree struct {
	nblks         uint64
	upperSize     uint64 // nblks - 1
	numHashBlocks uint64

	upper      []cryptoutil.Digest
	hashBlocks []format.HashBlock
	dirty      []bool
	anyDirty   bool
}

// NewTree allocates an empty Tree for nblks data blocks. nblks must
// already be validated (power of two, > 1) by the caller.
func NewTree(nblks uint64) *Tree {
	numHashBlocks := ExtraHashBlocks(nblks)
	return &Tree{
		nblks:         nblks,
		upperSize:     nblks - 1,
		numHashBlocks: numHashBlocks,
		upper:         make([]cryptoutil.Digest, nblks-1),
		hashBlocks:    make([]format.HashBlock, numHashBlocks),
		dirty:         make([]bool, numHashBlocks),
	}
}

// ExtraHashBlocks returns ceil(nblks / HashesPerBlock), the number of hash
// blocks needed to hold nblks leaf digests.
func ExtraHashBlocks(nblks uint64) uint64 {
	return (nblks + format.HashesPerBlock - 1) / format.HashesPerBlock
}

// ExtraBlocks implements the C6 capacity helper: the number of overhead
// blocks (header + hash blocks) a caller must add to nblks when sizing the
// lower device. Accepts any nblks; the power-of-two discipline is Open's
// responsibility, not this helper's.
func ExtraBlocks(nblks uint64) uint64 {
	return 1 + ExtraHashBlocks(nblks)
}

// IsValidSize reports whether nblks satisfies the "power of two, > 1"
// requirement every Tree (and sealed.Device) enforces.
func IsValidSize(nblks uint64) bool {
	return nblks > 1 && nblks&(nblks-1) == 0
}

func left(i uint64) uint64  { return 2*i + 1 }
func right(i uint64) uint64 { return 2*i + 2 }

// parent returns the parent index of i and whether one exists (i == 0 has
// none).
func parent(i uint64) (uint64, bool) {
	if i == 0 {
		return 0, false
	}
	return (i - 1) / 2, true
}

// childHash returns the digest of node k, whether it lives in the upper
// array or is a leaf embedded in a hash block.
func (t *Tree) childHash(k uint64) cryptoutil.Digest {
	if k < t.upperSize {
		return t.upper[k]
	}
	return t.LeafDigest(k - t.upperSize)
}

// LeafDigest returns the stored digest for data block blkno.
func (t *Tree) LeafDigest(blkno uint64) cryptoutil.Digest {
	i, j := blkno/format.HashesPerBlock, blkno%format.HashesPerBlock
	return t.hashBlocks[i].Hashes[j]
}

// SetLeaf stores digest as the leaf for data block blkno and marks the
// owning hash block dirty. It does not touch the upper tree; callers walk
// the path to the root separately via Update.
func (t *Tree) SetLeaf(blkno uint64, digest cryptoutil.Digest) {
	i, j := blkno/format.HashesPerBlock, blkno%format.HashesPerBlock
	t.hashBlocks[i].Hashes[j] = digest
	t.dirty[i] = true
	t.anyDirty = true
}

// Update sets the leaf for blkno to digest and recomputes every ancestor
// hash on the path to the root, writing each recomputed digest back into
// upper[] before continuing. This fixes the source's latent bug, which
// discarded the recomputed parent hash instead of storing it.
func (t *Tree) Update(blkno uint64, digest cryptoutil.Digest) {
	t.SetLeaf(blkno, digest)

	node := t.upperSize + blkno
	p, ok := parent(node)
	for ok {
		t.upper[p] = cryptoutil.HashPair(t.childHash(left(p)), t.childHash(right(p)))
		p, ok = parent(p)
	}
}

// RecomputeUpper rebuilds the entire upper tree bottom-up from the current
// leaves, used by Initialize and Load. Returns the new root.
func (t *Tree) RecomputeUpper() cryptoutil.Digest {
	for i := t.upperSize; i > 0; i-- {
		index := i - 1
		t.upper[index] = cryptoutil.HashPair(t.childHash(left(index)), t.childHash(right(index)))
	}
	return t.Root()
}

// Root returns upper[0], the single authenticator of the whole data
// region. Only valid once the upper tree has been computed at least once.
func (t *Tree) Root() cryptoutil.Digest {
	return t.upper[0]
}

// CheckLeaf reports whether digest matches the stored leaf for blkno.
func (t *Tree) CheckLeaf(blkno uint64, digest cryptoutil.Digest) bool {
	return t.LeafDigest(blkno) == digest
}

// AnyDirty reports whether any hash block has unflushed changes.
func (t *Tree) AnyDirty() bool {
	return t.anyDirty
}

// DirtyIndices returns the indices of hash blocks with unflushed changes.
func (t *Tree) DirtyIndices() []uint64 {
	var out []uint64
	for i, d := range t.dirty {
		if d {
			out = append(out, uint64(i))
		}
	}
	return out
}

// ClearDirty clears the dirty flag for hash block i and, once no hash
// block remains dirty, the aggregate flag too.
func (t *Tree) ClearDirty(i uint64) {
	t.dirty[i] = false
	for _, d := range t.dirty {
		if d {
			return
		}
	}
	t.anyDirty = false
}

// NumHashBlocks returns the number of hash blocks this tree holds.
func (t *Tree) NumHashBlocks() uint64 {
	return t.numHashBlocks
}

// HashBlock returns the in-memory plaintext hash block at index i, for
// encoding during flush.
func (t *Tree) HashBlock(i uint64) format.HashBlock {
	return t.hashBlocks[i]
}

// SetHashBlock installs a decoded hash block at index i, used while
// loading a persisted image before the upper tree is recomputed.
func (t *Tree) SetHashBlock(i uint64, hb format.HashBlock) {
	t.hashBlocks[i] = hb
}

// InitializeLeaves fills every leaf with digest, the content hash of an
// implicitly all-zero data block, as required when formatting a fresh
// device (every unwritten data block reads back as zero).
func (t *Tree) InitializeLeaves(digest cryptoutil.Digest) {
	for i := range t.hashBlocks {
		for j := range t.hashBlocks[i].Hashes {
			t.hashBlocks[i].Hashes[j] = digest
		}
		t.dirty[i] = true
	}
	t.anyDirty = true
}

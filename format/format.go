// Package format encodes and decodes the two on-disk block structures this
// module persists: the header block and the hash block. Both are exactly
// one blockdev.Block in size; this package is the single place that knows
// their byte layout.
package format

import (
	"encoding/binary"

	"github.com/distribution/sealedblock/blockdev"
	"github.com/distribution/sealedblock/cryptoutil"
)

// Magic identifies a valid header block.
const Magic uint64 = 0xEA6A86F99E6A4F83

const digestSize = 32

// HashesPerBlock is the number of leaf digests a single hash block holds:
// (BlockSize / sizeof(Digest)) - 1, reserving one digest slot's worth of
// space for the 16-byte tag and 16-byte padding that precede the hashes.
const HashesPerBlock = (blockdev.BlockSize / digestSize) - 1

// Header is the decoded form of the header block:
//
//	0..8    magic
//	8..16   nblks
//	16..48  root
//	48..end zero padding
type Header struct {
	Magic uint64
	NBlks uint64
	Root  cryptoutil.Digest
}

// Encode writes h into a fresh block image.
func (h Header) Encode() *blockdev.Block {
	var blk blockdev.Block
	binary.LittleEndian.PutUint64(blk[0:8], h.Magic)
	binary.LittleEndian.PutUint64(blk[8:16], h.NBlks)
	copy(blk[16:48], h.Root[:])
	// blk[48:] remains zero.
	return &blk
}

// DecodeHeader parses a block image into a Header, without validating the
// magic number; callers check that explicitly to produce
// blockdev.ErrCorruptHeader.
func DecodeHeader(blk *blockdev.Block) Header {
	var h Header
	h.Magic = binary.LittleEndian.Uint64(blk[0:8])
	h.NBlks = binary.LittleEndian.Uint64(blk[8:16])
	copy(h.Root[:], blk[16:48])
	return h
}

// HashBlock is the decoded, plaintext form of a hash block: its
// authentication tag and its HashesPerBlock leaf digests. Padding is
// write-only zero and is not represented here.
type HashBlock struct {
	Tag    [cryptoutil.TagSize]byte
	Hashes [HashesPerBlock]cryptoutil.Digest
}

// EncodeHashBlock assembles the on-disk image of a hash block from its
// AES-GCM tag and ciphertext (exactly HashesPerBlock*32 bytes). Padding is
// zeroed.
func EncodeHashBlock(tag [cryptoutil.TagSize]byte, ciphertext []byte) *blockdev.Block {
	var blk blockdev.Block
	copy(blk[0:16], tag[:])
	// blk[16:32] (padding) remains zero.
	copy(blk[32:], ciphertext)
	return &blk
}

// SplitHashBlock extracts the tag and ciphertext region from a persisted
// hash block image, ignoring the padding bytes.
func SplitHashBlock(blk *blockdev.Block) (tag [cryptoutil.TagSize]byte, ciphertext []byte) {
	copy(tag[:], blk[0:16])
	ciphertext = make([]byte, blockdev.BlockSize-32)
	copy(ciphertext, blk[32:])
	return tag, ciphertext
}

// DecodeHashes unpacks a decrypted plaintext hashes region into digests.
func DecodeHashes(plaintext []byte) [HashesPerBlock]cryptoutil.Digest {
	var hashes [HashesPerBlock]cryptoutil.Digest
	for i := range hashes {
		copy(hashes[i][:], plaintext[i*digestSize:(i+1)*digestSize])
	}
	return hashes
}

// EncodeHashes packs digests into the flat plaintext byte slice that gets
// AES-GCM encrypted.
func EncodeHashes(hashes [HashesPerBlock]cryptoutil.Digest) []byte {
	out := make([]byte, HashesPerBlock*digestSize)
	for i, h := range hashes {
		copy(out[i*digestSize:(i+1)*digestSize], h[:])
	}
	return out
}

package format

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distribution/sealedblock/blockdev"
	"github.com/distribution/sealedblock/cryptoutil"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Magic: Magic,
		NBlks: 256,
		Root:  cryptoutil.SHA256([]byte("root")),
	}

	decoded := DecodeHeader(h.Encode())
	require.Equal(t, h, decoded)
}

func TestHeaderReservedIsZero(t *testing.T) {
	h := Header{Magic: Magic, NBlks: 8}
	blk := h.Encode()

	for i := 48; i < len(blk); i++ {
		require.Zerof(t, blk[i], "byte %d of reserved region must be zero", i)
	}
}

func TestHashBlockRoundTrip(t *testing.T) {
	var key [cryptoutil.KeySize]byte
	var hashes [HashesPerBlock]cryptoutil.Digest
	for i := range hashes {
		hashes[i] = cryptoutil.SHA256([]byte{byte(i)})
	}

	ciphertext, tag, err := cryptoutil.Encrypt(key, 0, EncodeHashes(hashes))
	require.NoError(t, err)

	var tagArr [cryptoutil.TagSize]byte
	copy(tagArr[:], tag)
	blk := EncodeHashBlock(tagArr, ciphertext)

	for i := 16; i < 32; i++ {
		require.Zerof(t, blk[i], "byte %d of padding region must be zero", i)
	}

	gotTag, gotCiphertext := SplitHashBlock(blk)
	require.Equal(t, tagArr, gotTag)

	plaintext, err := cryptoutil.Decrypt(key, 0, gotCiphertext, gotTag[:])
	require.NoError(t, err)
	require.Equal(t, hashes, DecodeHashes(plaintext))
}

func TestHashesPerBlockFillsExactlyOneBlock(t *testing.T) {
	// tag(16) + padding(16) + hashes(HashesPerBlock*32) must equal BlockSize.
	require.Equal(t, blockdev.BlockSize, 32+HashesPerBlock*32)
}

// Package cryptoutil wraps the AES-GCM and SHA-256 primitives this module
// treats as opaque collaborators with a standard contract (spec scope
// excludes the primitives themselves). It supplies deterministic per-block
// IV derivation so hash blocks can be encrypted without persisting a nonce.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/distribution/sealedblock/blockdev"
)

// KeySize is the size, in bytes, of the device key.
const KeySize = 32

// IVSize is the size, in bytes, of the AES-GCM initialization vector.
const IVSize = 12

// TagSize is the size, in bytes, of the AES-GCM authentication tag.
const TagSize = 16

// Digest is a SHA-256 output.
type Digest [sha256.Size]byte

// SHA256 hashes data and returns the digest.
func SHA256(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// HashPair hashes the concatenation of left and right, used to combine two
// child digests into their parent's digest while walking the Merkle tree.
func HashPair(left, right Digest) Digest {
	var buf [2 * sha256.Size]byte
	copy(buf[:sha256.Size], left[:])
	copy(buf[sha256.Size:], right[:])
	return SHA256(buf[:])
}

// deriveIV computes iv(key, blkno) = first IVSize bytes of
// AES-ECB-Encrypt(SHA256(key), LE64(blkno) || zeros). Deterministic per
// (key, blkno): it gives every hash block a unique, stable IV without
// persisting a nonce, and ties the IV to the block number so a tampered
// block number produces an auth failure instead of a silent swap.
func deriveIV(key [KeySize]byte, blkno uint64) ([IVSize]byte, error) {
	khash := sha256.Sum256(key[:])

	block, err := aes.NewCipher(khash[:])
	if err != nil {
		return [IVSize]byte{}, fmt.Errorf("%w: %v", blockdev.ErrCryptoFailure, err)
	}

	var in, out [aes.BlockSize]byte
	binary.LittleEndian.PutUint64(in[:8], blkno)

	block.Encrypt(out[:], in[:])

	var iv [IVSize]byte
	copy(iv[:], out[:IVSize])
	return iv, nil
}

func newGCM(key [KeySize]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", blockdev.ErrCryptoFailure, err)
	}

	gcm, err := cipher.NewGCMWithTagSize(block, TagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", blockdev.ErrCryptoFailure, err)
	}

	return gcm, nil
}

// Encrypt encrypts plaintext under key with a deterministic per-blkno IV,
// empty AAD, and a TagSize-byte tag, returning the ciphertext and tag
// separately so callers can place them into the on-disk hash block layout.
func Encrypt(key [KeySize]byte, blkno uint64, plaintext []byte) (ciphertext, tag []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	iv, err := deriveIV(key, blkno)
	if err != nil {
		return nil, nil, err
	}

	sealed := gcm.Seal(nil, iv[:], plaintext, nil)
	n := len(sealed) - TagSize
	return sealed[:n], sealed[n:], nil
}

// Decrypt reverses Encrypt, returning CorruptOrTamperedError if the tag
// fails to authenticate.
func Decrypt(key [KeySize]byte, blkno uint64, ciphertext, tag []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv, err := deriveIV(key, blkno)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv[:], sealed, nil)
	if err != nil {
		return nil, blockdev.CorruptOrTamperedError{HashBlockIndex: blkno}
	}

	return plaintext, nil
}

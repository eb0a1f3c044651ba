package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}

	plaintext := make([]byte, 127*32)
	for i := range plaintext {
		plaintext[i] = byte(i * 7)
	}

	ciphertext, tag, err := Encrypt(key, 3, plaintext)
	require.NoError(t, err)
	require.Len(t, tag, TagSize)
	require.Len(t, ciphertext, len(plaintext))

	decoded, err := Decrypt(key, 3, ciphertext, tag)
	require.NoError(t, err)
	require.Equal(t, plaintext, decoded)
}

func TestDecryptRejectsTamperedTag(t *testing.T) {
	var key [KeySize]byte
	plaintext := make([]byte, 64)

	ciphertext, tag, err := Encrypt(key, 1, plaintext)
	require.NoError(t, err)

	tag[0] ^= 0x01

	_, err = Decrypt(key, 1, ciphertext, tag)
	require.Error(t, err)
}

func TestDecryptRejectsWrongBlockNumber(t *testing.T) {
	var key [KeySize]byte
	plaintext := make([]byte, 64)

	ciphertext, tag, err := Encrypt(key, 1, plaintext)
	require.NoError(t, err)

	_, err = Decrypt(key, 2, ciphertext, tag)
	require.Error(t, err)
}

func TestHashPairDeterministic(t *testing.T) {
	a := SHA256([]byte("left"))
	b := SHA256([]byte("right"))

	require.Equal(t, HashPair(a, b), HashPair(a, b))
	require.NotEqual(t, HashPair(a, b), HashPair(b, a))
}

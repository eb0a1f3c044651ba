package blockdev

import (
	"errors"
	"fmt"
)

// ErrCorruptHeader is returned when a loaded header block fails its magic
// number check.
var ErrCorruptHeader = errors.New("blockdev: corrupt header block")

// ErrAllocFailure names the buffer-allocation-failure error kind. No code
// path in this module currently returns it: buffers are allocated with
// make, which panics rather than returning an error.
var ErrAllocFailure = errors.New("blockdev: buffer allocation failure")

// ErrCryptoFailure wraps an unexpected failure from the AES-GCM or SHA-256
// primitives themselves, as opposed to an authentication failure, which is
// reported as CorruptOrTamperedError.
var ErrCryptoFailure = errors.New("blockdev: crypto primitive failure")

// InvalidArgumentError reports a bad parameter: a nil device, an nblks that
// is not a power of two greater than one, or an out-of-range block number.
type InvalidArgumentError struct {
	Reason string
}

func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("blockdev: invalid argument: %s", e.Reason)
}

// LowerDeviceError wraps an error returned by the underlying (lower) block
// device, preserving the failing operation name and the original error for
// errors.Unwrap/errors.Is.
type LowerDeviceError struct {
	Op  string
	Err error
}

func (e *LowerDeviceError) Error() string {
	return fmt.Sprintf("blockdev: lower device %s failed: %v", e.Op, e.Err)
}

func (e *LowerDeviceError) Unwrap() error {
	return e.Err
}

// CorruptOrTamperedError is returned when an AES-GCM authentication tag
// check fails while decrypting a persisted hash block.
type CorruptOrTamperedError struct {
	HashBlockIndex uint64
}

func (e CorruptOrTamperedError) Error() string {
	return fmt.Sprintf("blockdev: hash block %d failed authentication", e.HashBlockIndex)
}

// TamperDetectedError is returned from Get when the leaf digest recomputed
// from the returned block does not match the digest recorded in the Merkle
// tree.
type TamperDetectedError struct {
	Blkno uint64
}

func (e TamperDetectedError) Error() string {
	return fmt.Sprintf("blockdev: data block %d failed tamper check", e.Blkno)
}

// RootMismatchError is returned at load time when the Merkle root
// recomputed from the persisted hash blocks does not match the root stored
// in the header block.
type RootMismatchError struct {
	Want [32]byte
	Got  [32]byte
}

func (e RootMismatchError) Error() string {
	return fmt.Sprintf("blockdev: root mismatch: header has %x, recomputed %x", e.Want, e.Got)
}

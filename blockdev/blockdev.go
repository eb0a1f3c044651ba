// Package blockdev defines the stackable block-device capability set that
// every layer in this module both consumes and implements: get, put,
// begin/end transaction brackets, and reference counting. A layer that
// implements BlockDevice can always be stacked on top of another one,
// the same way distribution's storagedriver.StorageDriver implementations
// compose through base and middleware wrappers.
package blockdev

import "context"

// BlockSize is the fixed size, in bytes, of every block moved through a
// BlockDevice. All persisted structures (data blocks, the header block,
// hash blocks) are exactly one block.
const BlockSize = 4096

// Block is a single fixed-size buffer as moved by Get/Put.
type Block [BlockSize]byte

// BlockDevice is the capability set consumed from, and exposed by, every
// layer in this module. Implementations are not required to be safe for
// concurrent Get/Put/Begin/End calls from multiple goroutines; AddRef and
// Release are the only methods that must tolerate concurrent use.
type BlockDevice interface {
	// Get reads the block numbered blkno into out. blkno must be less
	// than the device's capacity.
	Get(ctx context.Context, blkno uint64, out *Block) error

	// Put writes in to the block numbered blkno. blkno must be less than
	// the device's capacity.
	Put(ctx context.Context, blkno uint64, in *Block) error

	// Begin brackets the start of a transaction. Implementations with no
	// transactional substrate treat this as a no-op.
	Begin(ctx context.Context) error

	// End brackets the end of a transaction, flushing any buffered state.
	End(ctx context.Context) error

	// AddRef increments the device's reference count. Safe for concurrent use.
	AddRef()

	// Release decrements the device's reference count, tearing the device
	// down when it reaches zero. Safe for concurrent use.
	Release() error
}

// Capacity is implemented by devices that know their own block count, used
// by base.Base for bounds checking. A BlockDevice need not implement it;
// devices that don't skip the bounds check and rely on a wrapping layer
// (such as the sealed façade, which already enforces blkno < nblks).
type Capacity interface {
	Capacity() uint64
}

// Package memorydev implements an in-process blockdev.BlockDevice backed by
// a slice of blocks. Intended for tests; it is registered with the factory
// under the "memory" backend name, though the sealedblockctl CLI always
// selects the "file" backend. Content does not survive process exit. Grounded on distribution's
// registry/storage/driver/inmemory.
package memorydev

import (
	"context"
	"sync"

	"github.com/distribution/sealedblock/blockdev"
	"github.com/distribution/sealedblock/blockdev/base"
	"github.com/distribution/sealedblock/blockdev/factory"
)

const backendName = "memory"

func init() {
	factory.Register(backendName, &driverFactory{})
}

type driverFactory struct{}

func (driverFactory) Create(ctx context.Context, parameters map[string]interface{}) (blockdev.BlockDevice, error) {
	nblks, _ := parameters["nblks"].(uint64)
	return New(nblks), nil
}

type driver struct {
	mu     sync.RWMutex
	blocks [][]byte
	refs   int64
}

// baseEmbed hides the Base embed from Driver's exported surface, matching
// distribution's driver/baseEmbed/Driver three-layer pattern.
type baseEmbed struct {
	base.Base
}

// Driver is an in-memory blockdev.BlockDevice.
type Driver struct {
	baseEmbed
}

var _ blockdev.BlockDevice = (*Driver)(nil)
var _ blockdev.Capacity = (*Driver)(nil)

// New constructs a Driver with the given fixed capacity, in blocks.
func New(nblks uint64) *Driver {
	return &Driver{
		baseEmbed: baseEmbed{
			Base: base.Base{
				BlockDevice: &driver{
					blocks: make([][]byte, nblks),
					refs:   1,
				},
			},
		},
	}
}

// Capacity returns the number of blocks this device holds.
func (d *Driver) Capacity() uint64 {
	return d.baseEmbed.Base.BlockDevice.(*driver).Capacity()
}

func (d *driver) Capacity() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint64(len(d.blocks))
}

func (d *driver) Get(_ context.Context, blkno uint64, out *blockdev.Block) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if blkno >= uint64(len(d.blocks)) {
		return blockdev.InvalidArgumentError{Reason: "block number out of range"}
	}

	if d.blocks[blkno] == nil {
		*out = blockdev.Block{}
		return nil
	}

	copy(out[:], d.blocks[blkno])
	return nil
}

func (d *driver) Put(_ context.Context, blkno uint64, in *blockdev.Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if blkno >= uint64(len(d.blocks)) {
		return blockdev.InvalidArgumentError{Reason: "block number out of range"}
	}

	buf := make([]byte, blockdev.BlockSize)
	copy(buf, in[:])
	d.blocks[blkno] = buf
	return nil
}

// Begin is a no-op: memorydev has no transactional substrate to bracket.
func (d *driver) Begin(_ context.Context) error { return nil }

// End is a no-op for the same reason.
func (d *driver) End(_ context.Context) error { return nil }

func (d *driver) AddRef() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs++
}

func (d *driver) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs--
	if d.refs == 0 {
		d.blocks = nil
	}
	return nil
}

// Corrupt XORs the byte at byteOffset within block blkno with mask,
// flipping every bit set in mask, for use in tests
// that exercise the tamper-detection paths of spec scenarios 4-6.
func (d *Driver) Corrupt(blkno uint64, byteOffset int, mask byte) {
	inner := d.baseEmbed.Base.BlockDevice.(*driver)
	inner.mu.Lock()
	defer inner.mu.Unlock()
	if inner.blocks[blkno] == nil {
		inner.blocks[blkno] = make([]byte, blockdev.BlockSize)
	}
	inner.blocks[blkno][byteOffset] ^= mask
}

// RawBlock returns a copy of the raw persisted bytes for blkno, bypassing
// any verification, for test assertions.
func (d *Driver) RawBlock(blkno uint64) []byte {
	inner := d.baseEmbed.Base.BlockDevice.(*driver)
	inner.mu.RLock()
	defer inner.mu.RUnlock()
	if inner.blocks[blkno] == nil {
		return make([]byte, blockdev.BlockSize)
	}
	out := make([]byte, blockdev.BlockSize)
	copy(out, inner.blocks[blkno])
	return out
}

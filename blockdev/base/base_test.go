package base

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distribution/sealedblock/blockdev"
)

// fakeDevice is a minimal blockdev.BlockDevice + blockdev.Capacity stub for
// exercising Base's bounds-checking behavior in isolation.
type fakeDevice struct {
	nblks     uint64
	gets      int
	lastBlkno uint64
}

func (f *fakeDevice) Capacity() uint64 { return f.nblks }

func (f *fakeDevice) Get(_ context.Context, blkno uint64, out *blockdev.Block) error {
	f.gets++
	f.lastBlkno = blkno
	return nil
}

func (f *fakeDevice) Put(_ context.Context, blkno uint64, in *blockdev.Block) error {
	f.lastBlkno = blkno
	return nil
}

func (f *fakeDevice) Begin(_ context.Context) error { return nil }
func (f *fakeDevice) End(_ context.Context) error   { return nil }
func (f *fakeDevice) AddRef()                       {}
func (f *fakeDevice) Release() error                { return nil }

func TestBaseRejectsOutOfRangeBlkno(t *testing.T) {
	inner := &fakeDevice{nblks: 4}
	b := &Base{BlockDevice: inner}

	var blk blockdev.Block
	err := b.Get(context.Background(), 4, &blk)
	require.Error(t, err)
	require.IsType(t, blockdev.InvalidArgumentError{}, err)
	require.Equal(t, 0, inner.gets)
}

func TestBasePassesThroughInRangeCalls(t *testing.T) {
	inner := &fakeDevice{nblks: 4}
	b := &Base{BlockDevice: inner}

	var blk blockdev.Block
	require.NoError(t, b.Get(context.Background(), 2, &blk))
	require.Equal(t, 1, inner.gets)
	require.Equal(t, uint64(2), inner.lastBlkno)
}

func TestBaseSkipsBoundsCheckWithoutCapacity(t *testing.T) {
	// A device that doesn't implement blockdev.Capacity gets no bounds
	// checking from Base; it's on the concrete driver to reject bad blknos.
	inner := &noCapacityDevice{}
	b := &Base{BlockDevice: inner}

	var blk blockdev.Block
	require.NoError(t, b.Get(context.Background(), 999, &blk))
}

type noCapacityDevice struct{}

func (noCapacityDevice) Get(_ context.Context, blkno uint64, out *blockdev.Block) error { return nil }
func (noCapacityDevice) Put(_ context.Context, blkno uint64, in *blockdev.Block) error  { return nil }
func (noCapacityDevice) Begin(_ context.Context) error                                  { return nil }
func (noCapacityDevice) End(_ context.Context) error                                    { return nil }
func (noCapacityDevice) AddRef()                                                        {}
func (noCapacityDevice) Release() error                                                 { return nil }

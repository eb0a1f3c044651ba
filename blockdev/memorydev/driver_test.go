package memorydev

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distribution/sealedblock/blockdev"
)

func TestGetOfUnwrittenBlockIsZero(t *testing.T) {
	ctx := context.Background()
	dev := New(4)

	var out blockdev.Block
	require.NoError(t, dev.Get(ctx, 0, &out))
	require.Equal(t, blockdev.Block{}, out)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	dev := New(4)

	var in blockdev.Block
	for i := range in {
		in[i] = byte(i % 256)
	}

	require.NoError(t, dev.Put(ctx, 1, &in))

	var out blockdev.Block
	require.NoError(t, dev.Get(ctx, 1, &out))
	require.Equal(t, in, out)
}

func TestOutOfRangeBlocknoFails(t *testing.T) {
	ctx := context.Background()
	dev := New(4)

	var blk blockdev.Block
	require.Error(t, dev.Get(ctx, 4, &blk))
	require.Error(t, dev.Put(ctx, 4, &blk))
}

func TestCapacity(t *testing.T) {
	dev := New(16)
	require.Equal(t, uint64(16), dev.Capacity())
}

package filedev

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/distribution/sealedblock/blockdev"
)

func TestOpenCreatesRightSizedFile(t *testing.T) {
	dir := t.TempDir()
	dev, err := Open(dir+"/img.bin", 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), dev.Capacity())
	require.NoError(t, dev.Release())
}

func TestPutThenGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dev, err := Open(dir+"/img.bin", 4)
	require.NoError(t, err)
	defer dev.Release()

	var in blockdev.Block
	for i := range in {
		in[i] = byte(i % 256)
	}
	require.NoError(t, dev.Put(ctx, 2, &in))

	var out blockdev.Block
	require.NoError(t, dev.Get(ctx, 2, &out))
	require.Equal(t, in, out)
}

func TestReopenPersistsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := dir + "/img.bin"

	dev, err := Open(path, 4)
	require.NoError(t, err)

	var in blockdev.Block
	in[0] = 0x5A
	require.NoError(t, dev.Put(ctx, 1, &in))
	require.NoError(t, dev.End(ctx))
	require.NoError(t, dev.Release())

	reopened, err := Open(path, 4)
	require.NoError(t, err)
	defer reopened.Release()

	var out blockdev.Block
	require.NoError(t, reopened.Get(ctx, 1, &out))
	require.Equal(t, in, out)
}

func TestOutOfRangeBlocknoFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dev, err := Open(dir+"/img.bin", 4)
	require.NoError(t, err)
	defer dev.Release()

	var blk blockdev.Block
	require.Error(t, dev.Get(ctx, 4, &blk))
	require.Error(t, dev.Put(ctx, 4, &blk))
}

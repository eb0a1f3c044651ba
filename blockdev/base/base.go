// Package base provides a base implementation of blockdev.BlockDevice that
// adds bounds checking and debug-duration logging in front of a concrete
// backend. The canonical use is to embed Base in an exported driver type,
// the same pattern used by distribution's registry/storage/driver/base:
//
//	type driver struct { ... internal ... }
//
//	type baseEmbed struct {
//		base.Base
//	}
//
//	type Driver struct {
//		baseEmbed
//	}
//
// Driver then implements blockdev.BlockDevice by proxying through Base,
// which proxies through the concrete driver, without exporting the embed.
package base

import (
	"context"
	"time"

	"github.com/distribution/sealedblock/blockdev"
	"github.com/distribution/sealedblock/internal/dcontext"
)

// Base wraps a concrete blockdev.BlockDevice, adding bounds checks against
// Capacity (when the wrapped device implements it) and debug logging of
// call durations.
type Base struct {
	blockdev.BlockDevice
}

func durationDebugLog(ctx context.Context, method string) func() {
	start := time.Now()
	return func() {
		dcontext.GetLogger(ctx).Debugf("blockdev.%s took %s", method, time.Since(start))
	}
}

func (b *Base) checkBounds(blkno uint64) error {
	if cap, ok := b.BlockDevice.(blockdev.Capacity); ok {
		if blkno >= cap.Capacity() {
			return blockdev.InvalidArgumentError{Reason: "block number out of range"}
		}
	}
	return nil
}

// Get wraps Get of the underlying device.
func (b *Base) Get(ctx context.Context, blkno uint64, out *blockdev.Block) error {
	if err := b.checkBounds(blkno); err != nil {
		return err
	}
	defer durationDebugLog(ctx, "Get")()
	return b.BlockDevice.Get(ctx, blkno, out)
}

// Put wraps Put of the underlying device.
func (b *Base) Put(ctx context.Context, blkno uint64, in *blockdev.Block) error {
	if err := b.checkBounds(blkno); err != nil {
		return err
	}
	defer durationDebugLog(ctx, "Put")()
	return b.BlockDevice.Put(ctx, blkno, in)
}

// Begin wraps Begin of the underlying device.
func (b *Base) Begin(ctx context.Context) error {
	defer durationDebugLog(ctx, "Begin")()
	return b.BlockDevice.Begin(ctx)
}

// End wraps End of the underlying device.
func (b *Base) End(ctx context.Context) error {
	defer durationDebugLog(ctx, "End")()
	return b.BlockDevice.End(ctx)
}

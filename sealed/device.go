// Package sealed implements the Merkle-authenticated, encrypted block
// device façade (spec component C5): it wraps a lower blockdev.BlockDevice,
// hashing every block moved through Get/Put and checking or updating a
// merkle.Tree accordingly, flushing the encrypted hash-block region and the
// header at transaction end.
package sealed

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/distribution/sealedblock/blockdev"
	"github.com/distribution/sealedblock/cryptoutil"
	"github.com/distribution/sealedblock/format"
	"github.com/distribution/sealedblock/internal/dcontext"
	"github.com/distribution/sealedblock/merkle"
	"github.com/distribution/sealedblock/metrics"
)

// OpenOptions parameterizes Open.
type OpenOptions struct {
	// Initialize formats a fresh device when true, loads and verifies a
	// persisted one when false.
	Initialize bool

	// NBlocks is the number of data blocks the device exposes to callers.
	// Must be a power of two greater than one. Required for both
	// Initialize and load, since the on-disk layout places the header at
	// block NBlocks and the caller is assumed to already track its own
	// device sizing (the same way a filesystem superblock would).
	NBlocks uint64

	// Key is the 256-bit key used to encrypt the hash-block region.
	Key [cryptoutil.KeySize]byte
}

// Device implements blockdev.BlockDevice over a lower device, adding
// tamper-evidence and confidentiality per spec. AddRef and Release update
// the reference count atomically and are safe to call concurrently with
// each other. The Release that drops the count to zero flushes and tears
// the device down, so it must not overlap Get/Put/Begin/End.
// Get/Put/Begin/End themselves are not safe for concurrent use by multiple
// goroutines, the caller is expected to serialize them (spec §5).
type Device struct {
	key    [cryptoutil.KeySize]byte
	header format.Header
	tree   *merkle.Tree
	next   blockdev.BlockDevice

	refCount atomic.Int64
}

var _ blockdev.BlockDevice = (*Device)(nil)
var _ blockdev.Capacity = (*Device)(nil)

// Open opens a sealed device stacked on next, either formatting it fresh
// (opts.Initialize) or loading and verifying a persisted image.
func Open(ctx context.Context, next blockdev.BlockDevice, opts OpenOptions) (*Device, error) {
	if next == nil {
		return nil, blockdev.InvalidArgumentError{Reason: "nil lower device"}
	}
	if !merkle.IsValidSize(opts.NBlocks) {
		return nil, blockdev.InvalidArgumentError{Reason: "nblks must be a power of two greater than one"}
	}

	dev := &Device{key: opts.Key, next: next}
	dev.refCount.Store(1)

	var err error
	if opts.Initialize {
		err = dev.initialize(ctx, opts.NBlocks)
	} else {
		err = dev.load(ctx, opts.NBlocks)
	}
	if err != nil {
		return nil, err
	}

	next.AddRef()
	return dev, nil
}

func (d *Device) initialize(ctx context.Context, nblks uint64) error {
	d.header = format.Header{Magic: format.Magic, NBlks: nblks}
	d.tree = merkle.NewTree(nblks)

	var zeroBlock blockdev.Block
	d.tree.InitializeLeaves(cryptoutil.SHA256(zeroBlock[:]))
	d.header.Root = d.tree.RecomputeUpper()

	if err := d.flushMerkle(ctx); err != nil {
		dcontext.GetLogger(ctx).WithError(err).Error("sealed: initialize failed")
		return err
	}

	dcontext.GetLogger(ctx).Infof("sealed: initialized device with %d data blocks", nblks)
	return nil
}

func (d *Device) load(ctx context.Context, nblks uint64) error {
	headerBlk, err := d.getRaw(ctx, nblks)
	if err != nil {
		return err
	}

	hdr := format.DecodeHeader(headerBlk)
	if hdr.Magic != format.Magic || hdr.NBlks != nblks {
		dcontext.GetLogger(ctx).Warn("sealed: header failed magic/size check on load")
		return blockdev.ErrCorruptHeader
	}

	d.header = hdr
	d.tree = merkle.NewTree(nblks)

	firstHashBlkno := nblks + 1
	for i := uint64(0); i < d.tree.NumHashBlocks(); i++ {
		blk, err := d.getRaw(ctx, firstHashBlkno+i)
		if err != nil {
			return err
		}

		tag, ciphertext := format.SplitHashBlock(blk)
		plaintext, err := cryptoutil.Decrypt(d.key, i, ciphertext, tag[:])
		if err != nil {
			dcontext.GetLogger(ctx).WithError(err).Warnf("sealed: hash block %d failed authentication", i)
			return err
		}

		d.tree.SetHashBlock(i, format.HashBlock{Hashes: format.DecodeHashes(plaintext)})
	}

	root := d.tree.RecomputeUpper()
	if root != hdr.Root {
		metrics.RootMismatch.Inc()
		dcontext.GetLogger(ctx).Warn("sealed: recomputed root does not match persisted root")
		return blockdev.RootMismatchError{Want: hdr.Root, Got: root}
	}

	dcontext.GetLogger(ctx).Infof("sealed: loaded and verified device with %d data blocks", nblks)
	return nil
}

// Capacity returns the number of data blocks this device exposes.
func (d *Device) Capacity() uint64 {
	return d.header.NBlks
}

// RootDigest returns the current Merkle root as an OCI-style content digest.
func (d *Device) RootDigest() digest.Digest {
	root := d.tree.Root()
	return digest.NewDigestFromBytes(digest.SHA256, root[:])
}

// LeafDigest returns the stored leaf digest for blkno as an OCI-style
// content digest.
func (d *Device) LeafDigest(blkno uint64) (digest.Digest, error) {
	if blkno >= d.header.NBlks {
		return "", blockdev.InvalidArgumentError{Reason: "block number out of range"}
	}
	leaf := d.tree.LeafDigest(blkno)
	return digest.NewDigestFromBytes(digest.SHA256, leaf[:]), nil
}

// Get reads data block blkno, verifying it against the Merkle tree. On
// tamper detection the output block is zeroed before returning.
func (d *Device) Get(ctx context.Context, blkno uint64, out *blockdev.Block) error {
	if blkno >= d.header.NBlks {
		return blockdev.InvalidArgumentError{Reason: "block number out of range"}
	}

	blk, err := d.getRaw(ctx, blkno)
	if err != nil {
		metrics.Gets.WithValues("error").Inc()
		return err
	}

	hash := cryptoutil.SHA256(blk[:])
	if !d.tree.CheckLeaf(blkno, hash) {
		*blk = blockdev.Block{}
		*out = *blk
		metrics.Gets.WithValues("tamper").Inc()
		metrics.TamperDetected.Inc()
		dcontext.GetLogger(ctx).Warnf("sealed: data block %d failed tamper check", blkno)
		return blockdev.TamperDetectedError{Blkno: blkno}
	}

	*out = *blk
	metrics.Gets.WithValues("ok").Inc()
	return nil
}

// Put writes data block blkno and updates the Merkle tree in memory. The
// new root is not flushed until End.
func (d *Device) Put(ctx context.Context, blkno uint64, in *blockdev.Block) error {
	if blkno >= d.header.NBlks {
		return blockdev.InvalidArgumentError{Reason: "block number out of range"}
	}

	hash := cryptoutil.SHA256(in[:])
	d.tree.Update(blkno, hash)
	d.header.Root = d.tree.Root()

	if err := d.putRaw(ctx, blkno, in); err != nil {
		metrics.Puts.WithValues("error").Inc()
		return err
	}

	metrics.Puts.WithValues("ok").Inc()
	return nil
}

// Begin delegates to the lower device's Begin.
func (d *Device) Begin(ctx context.Context) error {
	if err := d.next.Begin(ctx); err != nil {
		return &blockdev.LowerDeviceError{Op: "begin", Err: err}
	}
	return nil
}

// End flushes dirty hash blocks and the header, then delegates to the
// lower device's End. Flush failure is surfaced before End is attempted.
func (d *Device) End(ctx context.Context) error {
	if err := d.flushMerkle(ctx); err != nil {
		return err
	}
	if err := d.next.End(ctx); err != nil {
		return &blockdev.LowerDeviceError{Op: "end", Err: err}
	}
	return nil
}

// AddRef increments the reference count. Safe for concurrent use.
func (d *Device) AddRef() {
	d.refCount.Add(1)
}

// Release decrements the reference count. When it reaches zero, Release
// flushes any pending changes and releases the lower device. Safe for
// concurrent use.
func (d *Device) Release() error {
	if d.refCount.Add(-1) != 0 {
		return nil
	}

	if err := d.flushMerkle(context.Background()); err != nil {
		return err
	}
	if err := d.next.Release(); err != nil {
		return &blockdev.LowerDeviceError{Op: "release", Err: err}
	}
	d.tree = nil
	return nil
}

func (d *Device) flushMerkle(ctx context.Context) error {
	if !d.tree.AnyDirty() {
		return nil
	}

	start := time.Now()

	if err := d.putRaw(ctx, d.header.NBlks, d.header.Encode()); err != nil {
		return err
	}

	firstHashBlkno := d.header.NBlks + 1
	for _, i := range d.tree.DirtyIndices() {
		hb := d.tree.HashBlock(i)

		ciphertext, tag, err := cryptoutil.Encrypt(d.key, i, format.EncodeHashes(hb.Hashes))
		if err != nil {
			return err
		}

		var tagArr [cryptoutil.TagSize]byte
		copy(tagArr[:], tag)

		if err := d.putRaw(ctx, firstHashBlkno+i, format.EncodeHashBlock(tagArr, ciphertext)); err != nil {
			return err
		}

		d.tree.ClearDirty(i)
	}

	metrics.FlushDuration.UpdateSince(start)
	dcontext.GetLogger(ctx).Debug("sealed: flushed merkle state")
	return nil
}

func (d *Device) getRaw(ctx context.Context, blkno uint64) (*blockdev.Block, error) {
	var blk blockdev.Block
	if err := d.next.Get(ctx, blkno, &blk); err != nil {
		return nil, &blockdev.LowerDeviceError{Op: "get", Err: err}
	}
	return &blk, nil
}

func (d *Device) putRaw(ctx context.Context, blkno uint64, blk *blockdev.Block) error {
	if err := d.next.Put(ctx, blkno, blk); err != nil {
		return &blockdev.LowerDeviceError{Op: "put", Err: err}
	}
	return nil
}

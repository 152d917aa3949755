package headerfs

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/btgoldspv/headerchain/wire"
	"golang.org/x/sys/unix"
)

// Branch is a logically contiguous span of headers backed by one on-disk
// file, addressed by height through Offset. The root branch has
// Checkpoint 0 and a nil ParentID; every other branch's ParentID names
// the checkpoint of the branch it forked from.
//
// All file I/O and size mutation for one Branch is serialized through mu,
// matching the single mutex-per-branch model the teacher uses for its own
// mutable chain state (chainLock sync.RWMutex). An OS-level advisory
// flock on the underlying file additionally guards against a second
// process opening the same datadir concurrently.
type Branch struct {
	mu sync.RWMutex

	params     *chaincfg.Params
	path       string
	checkpoint int64
	parentID   *int64
	size       int64

	file *os.File
}

// OpenBranch opens (creating if necessary) the file backing a branch at
// path, acquires its advisory lock, and determines its current size from
// the file's length on disk.
func OpenBranch(params *chaincfg.Params, path string, checkpoint int64, parentID *int64) (*Branch, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, storeErrorf(ErrBranchNotConnected, "opening branch file %s: %v", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, storeErrorf(ErrBranchNotConnected, "locking branch file %s: %v (already open by another process?)", path, err)
	}

	b := &Branch{
		params:     params,
		path:       path,
		checkpoint: checkpoint,
		parentID:   parentID,
		file:       f,
	}
	if err := b.updateSize(); err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// Close releases the branch's advisory lock and closes its file.
func (b *Branch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return nil
	}
	unix.Flock(int(b.file.Fd()), unix.LOCK_UN)
	err := b.file.Close()
	b.file = nil
	return err
}

// Checkpoint returns the absolute height of this branch's first stored
// header.
func (b *Branch) Checkpoint() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.checkpoint
}

// ParentID returns the checkpoint of this branch's parent, or nil for the
// root branch.
func (b *Branch) ParentID() *int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.parentID
}

// Size returns the number of headers currently stored in this branch.
func (b *Branch) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Height returns the absolute height of the last header this branch
// stores.
func (b *Branch) Height() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.checkpoint + b.size - 1
}

// Path returns the branch's on-disk file path.
func (b *Branch) Path() string {
	return b.path
}

func (b *Branch) updateSize() error {
	info, err := b.file.Stat()
	if err != nil {
		return storeErrorf(ErrBranchNotConnected, "stat %s: %v", b.path, err)
	}
	b.size = CalculateSize(b.params, b.checkpoint, info.Size())
	return nil
}

// ReadHeader reads and deserializes the header stored at the given
// absolute height. Returns (nil, nil) for a height this branch does not
// cover, matching the reference implementation's None-returning
// get_header for out-of-range or all-zero (never-written) slots.
func (b *Branch) ReadHeader(height int64) (*wire.Header, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if height < b.checkpoint || height > b.checkpoint+b.size-1 {
		return nil, nil
	}

	offset := Offset(b.params, b.checkpoint, height)
	headerSize := b.params.HeaderSizeAt(height)
	buf := make([]byte, headerSize)
	n, err := b.file.ReadAt(buf, offset)
	if err != nil {
		return nil, storeErrorf(ErrHeaderTooShort, "reading header at height %d from %s: %v", height, b.path, err)
	}
	if n < headerSize {
		return nil, storeErrorf(ErrHeaderTooShort, "expected %d bytes at height %d, got %d", headerSize, height, n)
	}
	if allZero(buf) {
		return nil, nil
	}

	h, err := wire.Deserialize(bytes.NewReader(buf), b.params.UsesLegacyFormat(height))
	if err != nil {
		return nil, fmt.Errorf("deserializing header at height %d: %w", height, err)
	}
	if !h.Legacy {
		h.Height = uint32(height)
	}
	return h, nil
}

// Hash returns the hash of the header stored at height, or the zero hash
// if this branch has no header there.
func (b *Branch) Hash(height int64) (chainhash.Hash, error) {
	h, err := b.ReadHeader(height)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return h.Hash(), nil
}

// Write stores data at the given byte offset, truncating the file's tail
// first when truncate is set and offset doesn't already land at the
// current end of file — exactly the reference implementation's write()
// truncate-on-reorg behavior. The write is flushed and fsynced before
// this call returns, and the branch's cached size is refreshed
// afterward.
func (b *Branch) Write(data []byte, offset int64, truncate bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	currentOffset := Offset(b.params, b.checkpoint, b.checkpoint+b.size)
	if truncate && offset != currentOffset {
		if err := b.file.Truncate(offset); err != nil {
			return storeErrorf(ErrBranchNotConnected, "truncating %s at %d: %v", b.path, offset, err)
		}
	}
	if _, err := b.file.WriteAt(data, offset); err != nil {
		return storeErrorf(ErrBranchNotConnected, "writing %s at %d: %v", b.path, offset, err)
	}
	if err := b.file.Sync(); err != nil {
		return storeErrorf(ErrBranchNotConnected, "fsyncing %s: %v", b.path, err)
	}
	return b.updateSize()
}

// readAll reads the branch's entire file into memory, used by
// swap-with-parent to exchange two branches' contents wholesale.
func (b *Branch) readAll() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, err := b.file.Stat()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size())
	if _, err := b.file.ReadAt(buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// readFrom reads the branch's file starting at the given byte offset
// through to the end, used by swap-with-parent to pull the suffix of a
// parent's file that belongs to the child after the swap.
func (b *Branch) readFrom(offset int64) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	info, err := b.file.Stat()
	if err != nil {
		return nil, err
	}
	if offset >= info.Size() {
		return nil, nil
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := b.file.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

// overwrite replaces the branch file's contents wholesale, used by
// swap-with-parent. Unlike Write, this always truncates to exactly
// len(data).
func (b *Branch) overwrite(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.file.Truncate(0); err != nil {
		return err
	}
	if _, err := b.file.WriteAt(data, 0); err != nil {
		return err
	}
	if err := b.file.Sync(); err != nil {
		return err
	}
	return b.updateSize()
}

// setIdentity overwrites the branch's (checkpoint, parentID, size) triple
// directly. Nothing in the package calls it: swap-with-parent exchanges
// identities through swapBranchIdentities, and every other mutation goes
// through Write and updateSize.
func (b *Branch) setIdentity(checkpoint int64, parentID *int64, size int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoint = checkpoint
	b.parentID = parentID
	b.size = size
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

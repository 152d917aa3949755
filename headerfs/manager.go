// Package headerfs implements the on-disk branch storage and fork
// management for the header store: a flat append-mostly file per branch,
// addressed purely by byte offset (no index, since height is always
// derivable from position), plus the bookkeeping needed to track
// competing branches and promote whichever has outgrown its parent.
package headerfs

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/btgoldspv/headerchain/blockchain"
	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/btgoldspv/headerchain/wire"
)

// checkpointInterval is the height spacing between entries in
// chaincfg.Params.Checkpoints, the standard Bitcoin-family 2016-block
// difficulty adjustment window.
const checkpointInterval = 2016

// rootHeaderFile is the root branch's filename, directly under the data
// directory rather than the forks/ subdirectory every other branch uses.
const rootHeaderFile = "blockchain_headers"

const forksDir = "forks"

// BranchManager owns the full set of live branches for one network and
// implements the public Chunk API surface (ConnectChunk, CanConnect,
// CheckHeader, GetCheckpoints) that the rest of the client talks to.
//
// Mutation of the branches map itself (Fork, SwapWithParent, Bootstrap)
// holds mu for writing; CanConnect/CheckHeader, which only iterate, take
// a read lock, matching the manager-level mutex the spec calls for
// alongside each Branch's own per-file lock.
type BranchManager struct {
	mu sync.RWMutex

	params  *chaincfg.Params
	dataDir string

	branches map[int64]*Branch

	cache    *MetadataCache
	notifier *Notifier
}

// NewBranchManager creates (or opens) the root branch under dataDir and
// returns an empty-of-forks manager ready for Bootstrap to populate, or
// for direct use in tests. cache and notifier may both be nil.
func NewBranchManager(params *chaincfg.Params, dataDir string, cache *MetadataCache, notifier *Notifier) (*BranchManager, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, forksDir), 0755); err != nil {
		return nil, fmt.Errorf("headerfs: creating forks directory: %w", err)
	}

	m := &BranchManager{
		params:   params,
		dataDir:  dataDir,
		branches: make(map[int64]*Branch),
		cache:    cache,
		notifier: notifier,
	}

	root, err := OpenBranch(params, m.branchPath(0, nil), 0, nil)
	if err != nil {
		return nil, err
	}
	m.branches[0] = root
	return m, nil
}

// branchPath computes the on-disk path for a branch with the given
// identity, matching the reference layout: the root branch lives at
// "<dataDir>/blockchain_headers"; every other branch lives at
// "<dataDir>/forks/fork_<parentCheckpoint>_<checkpoint>".
func (m *BranchManager) branchPath(checkpoint int64, parentID *int64) string {
	if parentID == nil {
		return filepath.Join(m.dataDir, rootHeaderFile)
	}
	return filepath.Join(m.dataDir, forksDir, fmt.Sprintf("fork_%d_%d", *parentID, checkpoint))
}

// Close releases every tracked branch's file handle and advisory lock.
func (m *BranchManager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var firstErr error
	for _, b := range m.branches {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Root returns the checkpoint-0 branch, which always exists.
func (m *BranchManager) Root() *Branch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.branches[0]
}

// Branches returns a snapshot slice of every live branch. Safe to
// iterate without further locking; the manager itself may keep mutating
// underneath.
func (m *BranchManager) Branches() []*Branch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Branch, 0, len(m.branches))
	for _, b := range m.branches {
		out = append(out, b)
	}
	return out
}

func (m *BranchManager) parentOf(b *Branch) *Branch {
	pid := b.ParentID()
	if pid == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.branches[*pid]
}

// primaryBranch returns the live branch with the greatest absolute
// height, the tip of the chain currently carrying the most work (since
// swapWithParent always keeps the longer branch closest to the root,
// following parent links from this branch reaches the primary chain).
func (m *BranchManager) primaryBranch() *Branch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Branch
	for _, b := range m.branches {
		if best == nil || b.Height() > best.Height() {
			best = b
		}
	}
	return best
}

// readHeaderFrom walks from b up through its ancestors until it finds the
// branch whose span covers height, mirroring read_header's
// delegate-to-parent-when-below-checkpoint behavior.
func (m *BranchManager) readHeaderFrom(b *Branch, height int64) (*wire.Header, error) {
	for b != nil && height < b.Checkpoint() {
		b = m.parentOf(b)
	}
	if b == nil || height > b.Height() {
		return nil, nil
	}
	return b.ReadHeader(height)
}

// ReadHeader returns the header at height on the primary chain, or nil
// if no branch covers it yet.
func (m *BranchManager) ReadHeader(height int64) (*wire.Header, error) {
	return m.readHeaderFrom(m.primaryBranch(), height)
}

// hashAt mirrors get_hash for a specific branch chain: height -1 is the
// zero hash (the predecessor of genesis), height 0 is the network's
// genesis hash, a height landing on a known checkpoint uses the pinned
// hash, and anything else is read and hashed.
func (m *BranchManager) hashAt(b *Branch, height int64) (chainhash.Hash, error) {
	if height < 0 {
		return chainhash.Hash{}, nil
	}
	if height == 0 {
		return *m.params.GenesisHash, nil
	}
	if idx := height / checkpointInterval; (height+1)%checkpointInterval == 0 && int(idx) < len(m.params.Checkpoints) {
		return m.params.Checkpoints[idx].Hash, nil
	}
	h, err := m.readHeaderFrom(b, height)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return h.Hash(), nil
}

// GetHash returns the hash at height on the primary chain.
func (m *BranchManager) GetHash(height int64) (chainhash.Hash, error) {
	return m.hashAt(m.primaryBranch(), height)
}

// HeaderAt implements blockchain.HeaderLookup against the primary chain,
// so GetTarget/VerifyHeader can consult on-disk history directly.
func (m *BranchManager) HeaderAt(height int64) (*blockchain.HeaderInfo, error) {
	return m.branchHeaderAt(m.primaryBranch(), height)
}

func (m *BranchManager) branchHeaderAt(b *Branch, height int64) (*blockchain.HeaderInfo, error) {
	h, err := m.readHeaderFrom(b, height)
	if err != nil || h == nil {
		return nil, err
	}
	return blockchain.HeaderInfoFromWire(height, h), nil
}

// branchLookup is a blockchain.HeaderLookup bound to one branch's
// ancestor chain, used when verifying a candidate header or chunk
// against a branch that may not be the current primary.
type branchLookup struct {
	m *BranchManager
	b *Branch
}

func (l branchLookup) HeaderAt(height int64) (*blockchain.HeaderInfo, error) {
	return l.m.branchHeaderAt(l.b, height)
}

// overlayLookup consults an in-memory overlay of not-yet-persisted
// headers before falling back to a base HeaderLookup, mirroring the
// reference implementation's "headers" dict parameter threaded through
// every targeting function so a chunk's own interior headers are visible
// to its own retargeting.
type overlayLookup struct {
	base    blockchain.HeaderLookup
	overlay map[int64]*blockchain.HeaderInfo
}

func (o overlayLookup) HeaderAt(height int64) (*blockchain.HeaderInfo, error) {
	if hi, ok := o.overlay[height]; ok {
		return hi, nil
	}
	return o.base.HeaderAt(height)
}

// CanConnect reports whether header can extend some live branch at the
// given height, returning the first branch that accepts it. When
// checkHeight is true the header must land exactly at that branch's
// current tip; when false only hash-chain and proof-of-work validity are
// checked.
func (m *BranchManager) CanConnect(header *wire.Header, height int64, checkHeight bool) (*Branch, error) {
	for _, b := range m.Branches() {
		if checkHeight && b.Height() != height-1 {
			continue
		}
		if height == 0 {
			if header.Hash() == *m.params.GenesisHash {
				return b, nil
			}
			continue
		}

		prevHash, err := m.hashAt(b, height-1)
		if err != nil {
			continue
		}
		if header.PrevBlock != prevHash {
			continue
		}

		overlay := map[int64]*blockchain.HeaderInfo{
			height: blockchain.HeaderInfoFromWire(height, header),
		}
		lookup := overlayLookup{base: branchLookup{m, b}, overlay: overlay}
		if err := blockchain.VerifyHeader(m.params, height, header, prevHash, lookup, m.params.Checkpoints); err != nil {
			continue
		}
		return b, nil
	}
	return nil, nil
}

// CheckHeader finds the branch whose stored hash at header's height
// matches header's own hash, used to confirm a server's report of a
// header the store already has.
func (m *BranchManager) CheckHeader(header *wire.Header, height int64) (*Branch, error) {
	want := header.Hash()
	for _, b := range m.Branches() {
		local, err := m.hashAt(b, height)
		if err != nil {
			continue
		}
		if local == want {
			return b, nil
		}
	}
	return nil, nil
}

// Fork creates a new branch rooted at header's height, descending from
// parent, and stores header as its first entry.
func (m *BranchManager) Fork(parent *Branch, height int64, header *wire.Header) (*Branch, error) {
	parentCheckpoint := parent.Checkpoint()
	path := m.branchPath(height, &parentCheckpoint)

	b, err := OpenBranch(m.params, path, height, &parentCheckpoint)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.branches[height] = b
	m.mu.Unlock()

	if err := m.SaveHeader(b, height, header); err != nil {
		return nil, err
	}
	return b, nil
}

// SaveHeader appends a single header to b at height, which must equal
// b.Checkpoint()+b.Size() (the header must land exactly at the branch's
// current tip), then promotes b over its parent if it has outgrown it.
func (m *BranchManager) SaveHeader(b *Branch, height int64, header *wire.Header) error {
	delta := height - b.Checkpoint()
	if delta != b.Size() {
		return storeErrorf(ErrSizeMismatch, "save header at height %d: branch %d has size %d", height, b.Checkpoint(), b.Size())
	}

	data, err := header.Bytes()
	if err != nil {
		return err
	}
	offset := Offset(m.params, b.Checkpoint(), height)
	if err := b.Write(data, offset, false); err != nil {
		return err
	}
	return m.SwapWithParent(b)
}

// saveChunk writes a verified chunk's raw bytes into b starting at
// height, trimming any leading bytes that fall before b's checkpoint and
// truncating the file's tail when the chunk overwrites beyond the last
// height this manager has a pinned checkpoint for (signalling the old
// tail was never finalized and may legitimately differ).
func (m *BranchManager) saveChunk(b *Branch, height int64, chunk []byte) error {
	if delta := height - b.Checkpoint(); delta < 0 {
		skip := Offset(m.params, height, b.Checkpoint())
		if skip > int64(len(chunk)) {
			skip = int64(len(chunk))
		}
		chunk = chunk[skip:]
		height = b.Checkpoint()
	}

	offset := Offset(m.params, b.Checkpoint(), height)
	truncate := height/checkpointInterval > int64(len(m.params.Checkpoints))
	if err := b.Write(chunk, offset, truncate); err != nil {
		return err
	}
	return m.SwapWithParent(b)
}

// decodeChunk splits a raw byte run starting at startHeight into
// individual headers, using each height's own wire size since a chunk
// may straddle the legacy/post-fork boundary.
func decodeChunk(p *chaincfg.Params, startHeight int64, data []byte) ([]*wire.Header, error) {
	var headers []*wire.Header
	offset := 0
	height := startHeight
	for offset < len(data) {
		size := p.HeaderSizeAt(height)
		if offset+size > len(data) {
			return nil, fmt.Errorf("headerfs: truncated header at height %d: need %d bytes, have %d", height, size, len(data)-offset)
		}
		h, err := wire.Deserialize(bytes.NewReader(data[offset:offset+size]), p.UsesLegacyFormat(height))
		if err != nil {
			return nil, fmt.Errorf("headerfs: decoding header at height %d: %w", height, err)
		}
		if !h.Legacy {
			h.Height = uint32(height)
		}
		headers = append(headers, h)
		offset += size
		height++
	}
	return headers, nil
}

// ConnectChunk verifies a chunk of raw header bytes against b's history
// and, on success, persists it. It never partially writes: verification
// runs entirely against the in-memory decoded headers (with an overlay
// so interior headers can retarget against each other) before any bytes
// touch disk.
func (m *BranchManager) ConnectChunk(b *Branch, idx int64, data []byte) bool {
	startHeight := idx * int64(m.params.ChunkSize)

	headers, err := decodeChunk(m.params, startHeight, data)
	if err != nil {
		log.Warnf("connect chunk %d: %v", idx, err)
		return false
	}

	overlay := make(map[int64]*blockchain.HeaderInfo, len(headers))
	for i, h := range headers {
		overlay[startHeight+int64(i)] = blockchain.HeaderInfoFromWire(startHeight+int64(i), h)
	}
	lookup := overlayLookup{base: branchLookup{m, b}, overlay: overlay}

	if err := blockchain.VerifyChunk(m.params, startHeight, headers, lookup, m.params.Checkpoints); err != nil {
		log.Warnf("verify chunk %d failed: %v", idx, err)
		return false
	}

	if err := m.saveChunk(b, startHeight, data); err != nil {
		log.Warnf("save chunk %d failed: %v", idx, err)
		return false
	}
	log.Debugf("validated and saved chunk %d", idx)
	return true
}

// SwapWithParent promotes b over its parent when b's work past the fork
// point exceeds what the parent itself retained past that same point.
// The two branches exchange their backing files (already holding the
// correct split bytes after the writes below) and identities in one
// locked step; the branches map is then re-keyed so lookups by
// checkpoint keep resolving to the branch with the matching content.
func (m *BranchManager) SwapWithParent(b *Branch) error {
	pid := b.ParentID()
	if pid == nil {
		return nil
	}

	m.mu.RLock()
	parent := m.branches[*pid]
	m.mu.RUnlock()
	if parent == nil {
		return storeErrorf(ErrUnknownCheckpoint, "swap: parent checkpoint %d not tracked", *pid)
	}

	parentBranchSize := parent.Height() - b.Checkpoint() + 1
	if parentBranchSize >= b.Size() {
		return nil
	}

	log.Debugf("swapping branch %d with parent %d", b.Checkpoint(), parent.Checkpoint())

	childData, err := b.readAll()
	if err != nil {
		return err
	}
	offset := Offset(m.params, parent.Checkpoint(), b.Checkpoint())
	parentSuffix, err := parent.readFrom(offset)
	if err != nil {
		return err
	}

	if err := b.overwrite(parentSuffix); err != nil {
		return err
	}
	if err := parent.Write(childData, offset, true); err != nil {
		return err
	}

	oldBCheckpoint := b.Checkpoint()
	oldParentCheckpoint := parent.Checkpoint()

	swapBranchIdentities(b, parent)
	if err := b.updateSize(); err != nil {
		return err
	}
	if err := parent.updateSize(); err != nil {
		return err
	}

	m.mu.Lock()
	m.branches[oldParentCheckpoint] = b
	m.branches[oldBCheckpoint] = parent
	m.mu.Unlock()

	if m.cache != nil {
		m.cache.Put(b.Checkpoint(), b.ParentID(), b.Size())
		m.cache.Put(parent.Checkpoint(), parent.ParentID(), parent.Size())
	}
	if m.notifier != nil {
		m.notifier.BroadcastTipChanged(TipUpdate{Checkpoint: b.Checkpoint(), Height: b.Height()})
	}
	return nil
}

// swapBranchIdentities exchanges the backing file, path, checkpoint, and
// parent pointer between two Branch structs, locking child before parent
// to match the fixed lock ordering the rest of the package uses.
func swapBranchIdentities(child, parent *Branch) {
	child.mu.Lock()
	parent.mu.Lock()
	child.file, parent.file = parent.file, child.file
	child.path, parent.path = parent.path, child.path
	child.checkpoint, parent.checkpoint = parent.checkpoint, child.checkpoint
	child.parentID, parent.parentID = parent.parentID, child.parentID
	parent.mu.Unlock()
	child.mu.Unlock()
}

// GetCheckpoints returns one (height, hash) pair for every fully verified
// difficulty-adjustment window below the network's fork height, used to
// seed a future client's chaincfg.Params.Checkpoints.
func (m *BranchManager) GetCheckpoints() []chaincfg.Checkpoint {
	root := m.Root()
	windows := m.params.ForkHeight / checkpointInterval

	out := make([]chaincfg.Checkpoint, 0, windows)
	for i := int64(0); i < windows; i++ {
		h := (i+1)*checkpointInterval - 1
		hdr, err := m.readHeaderFrom(root, h)
		if err != nil || hdr == nil {
			break
		}
		out = append(out, chaincfg.Checkpoint{Height: h, Hash: hdr.Hash()})
	}
	return out
}

// sortedForkFilenames lists the forks directory's fork_<parent>_<checkpoint>
// entries sorted ascending by parent checkpoint, matching the bootstrap
// order the reference implementation relies on (a child must be
// connectable to an already-instantiated parent).
func sortedForkFilenames(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, forksDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return forkParentCheckpoint(names[i]) < forkParentCheckpoint(names[j])
	})
	return names, nil
}

func forkParentCheckpoint(filename string) int64 {
	var parent, checkpoint int64
	fmt.Sscanf(filename, "fork_%d_%d", &parent, &checkpoint)
	return parent
}

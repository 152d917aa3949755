package headerfs

import (
	"fmt"

	"github.com/btgoldspv/headerchain/chaincfg"
)

// Bootstrap opens the root branch and every fork file under dataDir,
// reconstructing the full set of live branches a prior run left behind.
// Fork filenames are trusted for identity (parent checkpoint and own
// checkpoint), but each branch's actual connection to its declared
// parent is verified by hash before it's added to the live set; a branch
// that fails that check is logged and left out rather than causing
// Bootstrap itself to fail, since a single corrupt fork shouldn't take
// down startup.
func Bootstrap(dataDir string, deps Dependencies) (*BranchManager, error) {
	m, err := NewBranchManager(deps.Params, dataDir, deps.Cache, deps.Notifier)
	if err != nil {
		return nil, err
	}

	names, err := sortedForkFilenames(dataDir)
	if err != nil {
		return nil, fmt.Errorf("headerfs: listing forks: %w", err)
	}

	for _, name := range names {
		var parentCheckpoint, checkpoint int64
		if _, err := fmt.Sscanf(name, "fork_%d_%d", &parentCheckpoint, &checkpoint); err != nil {
			log.Warnf("bootstrap: skipping unrecognized fork filename %q", name)
			continue
		}

		m.mu.RLock()
		parent := m.branches[parentCheckpoint]
		m.mu.RUnlock()
		if parent == nil {
			log.Warnf("bootstrap: fork %q declares unknown parent checkpoint %d, skipping", name, parentCheckpoint)
			continue
		}

		path := m.branchPath(checkpoint, &parentCheckpoint)
		b, err := OpenBranch(deps.Params, path, checkpoint, &parentCheckpoint)
		if err != nil {
			log.Warnf("bootstrap: opening %q: %v", name, err)
			continue
		}

		if checkpoint > 0 {
			first, err := b.ReadHeader(checkpoint)
			if err != nil || first == nil {
				log.Warnf("bootstrap: fork %q has no header at its own checkpoint, skipping", name)
				b.Close()
				continue
			}
			parentHash, err := m.hashAt(parent, checkpoint-1)
			if err != nil || first.PrevBlock != parentHash {
				log.Warnf("bootstrap: fork %q does not connect to declared parent %d, skipping", name, parentCheckpoint)
				b.Close()
				continue
			}
		}

		m.mu.Lock()
		m.branches[checkpoint] = b
		m.mu.Unlock()

		if deps.Cache != nil {
			deps.Cache.Put(checkpoint, &parentCheckpoint, b.Size())
		}
	}

	return m, nil
}

// Dependencies bundles the optional collaborators Bootstrap and
// NewBranchManager can be wired up with; Cache and Notifier may both be
// left nil for a minimal, in-process-only setup such as a test.
type Dependencies struct {
	Params   *chaincfg.Params
	Cache    *MetadataCache
	Notifier *Notifier
}

package headerfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/stretchr/testify/require"
)

func TestBootstrapReconnectsRootAndFork(t *testing.T) {
	dir := t.TempDir()
	p := chaincfg.RegNetParams()

	m1, err := NewBranchManager(p, dir, nil, nil)
	require.NoError(t, err)
	root := m1.Root()

	hashAt := make(map[int64]chainhash.Hash)
	prev := chainhash.Hash{}
	for i := 0; i < 3; i++ {
		h := legacyHeader(prev, uint32(i))
		require.NoError(t, m1.SaveHeader(root, int64(i), h))
		hashAt[int64(i)] = h.Hash()
		prev = h.Hash()
	}

	forkHeader := legacyHeader(hashAt[1], 50)
	_, err = m1.Fork(root, 2, forkHeader)
	require.NoError(t, err)
	require.NoError(t, m1.Close())

	m2, err := Bootstrap(dir, Dependencies{Params: p})
	require.NoError(t, err)
	defer m2.Close()

	require.EqualValues(t, 2, m2.Root().Height())

	m2.mu.RLock()
	fork := m2.branches[2]
	m2.mu.RUnlock()
	require.NotNil(t, fork, "expected the fork branch at checkpoint 2 to be reconnected")
	require.EqualValues(t, 2, fork.Height())
}

func TestBootstrapSkipsForkWithUnknownParent(t *testing.T) {
	dir := t.TempDir()
	p := chaincfg.RegNetParams()

	m1, err := NewBranchManager(p, dir, nil, nil)
	require.NoError(t, err)
	require.NoError(t, m1.SaveHeader(m1.Root(), 0, legacyHeader(chainhash.Hash{}, 1)))
	require.NoError(t, m1.Close())

	orphan, err := legacyHeader(chainhash.Hash{}, 2).Bytes()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, forksDir, "fork_7_9"), orphan, 0644))

	m2, err := Bootstrap(dir, Dependencies{Params: p})
	require.NoError(t, err)
	defer m2.Close()

	require.EqualValues(t, 0, m2.Root().Height())

	m2.mu.RLock()
	skipped := m2.branches[9]
	m2.mu.RUnlock()
	require.Nil(t, skipped, "expected the fork declaring untracked parent 7 to be skipped")
}

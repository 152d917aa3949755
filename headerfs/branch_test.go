package headerfs

import (
	"path/filepath"
	"testing"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/btgoldspv/headerchain/wire"
	"github.com/stretchr/testify/require"
)

func legacyHeader(prev chainhash.Hash, nonce uint32) *wire.Header {
	return &wire.Header{
		Legacy:     true,
		Version:    1,
		PrevBlock:  prev,
		MerkleRoot: chainhash.Hash{},
		Timestamp:  1600000000,
		Bits:       0x1d00ffff,
		Nonce:      [32]byte{byte(nonce)},
	}
}

func TestOpenBranchCreatesFile(t *testing.T) {
	dir := t.TempDir()
	p := chaincfg.RegNetParams()

	b, err := OpenBranch(p, filepath.Join(dir, "blockchain_headers"), 0, nil)
	require.NoError(t, err)
	defer b.Close()

	require.Zero(t, b.Size())
	require.Nil(t, b.ParentID())
}

func TestBranchWriteAndReadHeaderRoundTrips(t *testing.T) {
	dir := t.TempDir()
	p := chaincfg.RegNetParams()

	b, err := OpenBranch(p, filepath.Join(dir, "blockchain_headers"), 0, nil)
	require.NoError(t, err)
	defer b.Close()

	h := legacyHeader(chainhash.Hash{}, 7)
	data, err := h.Bytes()
	require.NoError(t, err)
	require.NoError(t, b.Write(data, Offset(p, 0, 0), false))

	require.EqualValues(t, 1, b.Size())
	require.EqualValues(t, 0, b.Height())

	got, err := b.ReadHeader(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, h.Timestamp, got.Timestamp)
	require.Equal(t, h.Bits, got.Bits)
	require.Equal(t, h.Nonce, got.Nonce)
}

func TestBranchReadHeaderOutOfRange(t *testing.T) {
	dir := t.TempDir()
	p := chaincfg.RegNetParams()

	b, err := OpenBranch(p, filepath.Join(dir, "blockchain_headers"), 0, nil)
	require.NoError(t, err)
	defer b.Close()

	h, err := b.ReadHeader(5)
	require.NoError(t, err)
	require.Nil(t, h)
}

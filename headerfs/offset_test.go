package headerfs

import (
	"testing"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/stretchr/testify/require"
)

func TestOffsetLegacyOnly(t *testing.T) {
	p := chaincfg.RegNetParams()
	require.Equal(t, int64(5*p.HeaderSizeLegacy), Offset(p, 0, 5))
}

func TestOffsetPostForkOnly(t *testing.T) {
	p := chaincfg.TestNetParams() // ForkHeight 1: every tested height is post-fork
	require.Equal(t, int64(0), Offset(p, 1, 1))
	require.Equal(t, int64(4*p.HeaderSize), Offset(p, 1, 5))
}

func TestOffsetAcrossFork(t *testing.T) {
	p := chaincfg.RegNetParams() // ForkHeight 2000
	checkpoint, h := int64(1998), int64(2002)
	want := int64(2*p.HeaderSizeLegacy + 2*p.HeaderSize)
	require.Equal(t, want, Offset(p, checkpoint, h))
}

func TestCalculateSizeInvertsOffset(t *testing.T) {
	p := chaincfg.RegNetParams()
	cases := []struct{ checkpoint, height int64 }{
		{0, 0}, {0, 10}, {1998, 1998}, {1998, 2005}, {2000, 2010},
	}
	for _, c := range cases {
		bytes := Offset(p, c.checkpoint, c.height+1)
		require.Equal(t, c.height-c.checkpoint+1, CalculateSize(p, c.checkpoint, bytes))
	}
}

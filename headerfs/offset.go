package headerfs

import "github.com/btgoldspv/headerchain/chaincfg"

// Offset returns the byte offset within a branch's file, where that
// branch's first stored header is at height checkpoint, of the header at
// height h. Every height below the network's fork height occupies
// HeaderSizeLegacy bytes; every height at or above it occupies HeaderSize
// bytes, so the offset is the legacy-regime run length plus the
// post-fork-regime run length.
func Offset(p *chaincfg.Params, checkpoint, h int64) int64 {
	prb := min64(h, p.ForkHeight) - min64(checkpoint, p.ForkHeight)
	pob := max64(0, h-max64(checkpoint, p.ForkHeight))
	return prb*int64(p.HeaderSizeLegacy) + pob*int64(p.HeaderSize)
}

// CalculateSize is the inverse of Offset: given a branch's checkpoint and
// the number of bytes currently on disk for it, returns the number of
// whole headers that accounts for.
func CalculateSize(p *chaincfg.Params, checkpoint, sizeInBytes int64) int64 {
	remaining := sizeInBytes
	var n int64

	if checkpoint < p.ForkHeight {
		preForkHeaders := p.ForkHeight - checkpoint
		preForkBytes := preForkHeaders * int64(p.HeaderSizeLegacy)
		if remaining <= preForkBytes {
			return remaining / int64(p.HeaderSizeLegacy)
		}
		n += preForkHeaders
		remaining -= preForkBytes
	}

	n += remaining / int64(p.HeaderSize)
	return n
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

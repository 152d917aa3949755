package blockchain

import (
	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/btgoldspv/headerchain/equihash"
	"github.com/btgoldspv/headerchain/standalone"
	"github.com/btgoldspv/headerchain/wire"
)

// VerifyHeader checks that header is a legitimate successor to prevHash at
// its own claimed height: its PrevBlock must match prevHash, its Bits must
// equal the target this package computes for its height, its hash must
// satisfy that target, and — for post-fork headers — its Equihash
// solution must validate against its own preimage.
func VerifyHeader(p *chaincfg.Params, height int64, header *wire.Header, prevHash chainhash.Hash, lookup HeaderLookup, checkpoints []chaincfg.Checkpoint) error {
	if header.PrevBlock != prevHash {
		return ruleErrorf(ErrPrevHashMismatch, "prev hash mismatch at height %d: have %s, want %s",
			height, header.PrevBlock, prevHash)
	}

	target, err := GetTarget(p, height, lookup, checkpoints)
	if err != nil {
		return err
	}
	wantBits := standalone.BigToCompact(target)
	if header.Bits != wantBits {
		return ruleErrorf(ErrBitsMismatch, "bits mismatch at height %d: have %08x, want %08x", height, header.Bits, wantBits)
	}

	hash := header.Hash()
	hashNum := standalone.HashToBig(&hash)
	if hashNum.Cmp(target) > 0 {
		return ruleErrorf(ErrInsufficientWork, "insufficient proof of work at height %d: hash %s exceeds target %s",
			height, hashNum.Text(16), target.Text(16))
	}

	if !p.UsesLegacyFormat(height) {
		if err := verifyEquihashSolution(p, header); err != nil {
			return err
		}
	}
	return nil
}

func verifyEquihashSolution(p *chaincfg.Params, header *wire.Header) error {
	preimage, err := header.PreimageForSolution()
	if err != nil {
		return err
	}
	indices, err := equihash.DecodeSolutionIndices(p.EquihashN, p.EquihashK, header.Solution)
	if err != nil {
		return ruleErrorf(ErrInvalidEquihashSolution, "decoding solution at height %d: %v", header.Height, err)
	}
	ok, err := equihash.ValidateSolution(p.EquihashN, p.EquihashK, preimage, indices)
	if err != nil {
		return ruleErrorf(ErrInvalidEquihashSolution, "validating solution at height %d: %v", header.Height, err)
	}
	if !ok {
		return ruleErrorf(ErrInvalidEquihashSolution, "invalid equihash solution at height %d", header.Height)
	}
	return nil
}

// VerifyChunk verifies a contiguous run of headers starting at
// startHeight, checking each one against the one preceding it. lookup
// must already resolve every height in [startHeight-1, startHeight+len)
// so retargeting can walk back through the chunk's own pending headers as
// well as confirmed history — exactly the "headers" overlay parameter the
// reference implementation always threads through its target functions.
//
// The genesis header (startHeight == 0) is checked against the network's
// genesis hash instead of a predecessor, since it has none.
func VerifyChunk(p *chaincfg.Params, startHeight int64, headers []*wire.Header, lookup HeaderLookup, checkpoints []chaincfg.Checkpoint) error {
	var prevHash chainhash.Hash
	if startHeight == 0 {
		if len(headers) == 0 {
			return nil
		}
		genesisHash := headers[0].Hash()
		if genesisHash != *p.GenesisHash {
			return ruleErrorf(ErrPrevHashMismatch, "genesis hash mismatch: have %s, want %s", genesisHash, p.GenesisHash)
		}
	} else {
		prev, err := lookup.HeaderAt(startHeight - 1)
		if err != nil {
			return err
		}
		if prev == nil {
			return ruleErrorf(ErrMissingAncestor, "no header at height %d", startHeight-1)
		}
		prevHash = prev.Hash
	}

	for i, h := range headers {
		height := startHeight + int64(i)
		if height == 0 {
			prevHash = h.Hash()
			continue
		}
		if err := VerifyHeader(p, height, h, prevHash, lookup, checkpoints); err != nil {
			return err
		}
		prevHash = h.Hash()
	}
	return nil
}

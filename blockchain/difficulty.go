// Package blockchain implements proof-of-work target selection and header
// verification for Bitcoin Gold's three successive retargeting regimes:
// the original Bitcoin legacy algorithm before the Equihash fork,
// Digishield v3 immediately after it, and Zawy's LWMA once a network's
// LWMA activation height is reached.
//
// The arithmetic in this file is ported from the reference Electrum-BTG
// client's Blockchain.get_target and friends rather than from the
// teacher's own difficulty.go, which implements an unrelated Decred EMA
// algorithm; only the surrounding shape (per-height dispatch against
// chaincfg.Params, clamped-ratio big.Int math, an ancestor-walking lookup
// interface, special testnet-minimum-difficulty handling) is carried over
// from the teacher and from flokicoin's difficulty.go.
package blockchain

import (
	"math/big"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/btgoldspv/headerchain/standalone"
	"github.com/btgoldspv/headerchain/wire"
)

// HeaderInfo is the minimal view of a stored header the targeting
// algorithms need: its height, timestamp, compact difficulty bits, and its
// own hash (so VerifyChunk can chain prev-hash checks without a second
// lookup path). BranchManager in package headerfs satisfies HeaderLookup
// by wrapping its own stored wire.Header values.
type HeaderInfo struct {
	Height    int64
	Timestamp uint32
	Bits      uint32
	Hash      chainhash.Hash
}

// HeaderLookup resolves a header by height for use during targeting. It
// mirrors the reference client's optional per-call "headers" overlay
// (pending, not-yet-connected headers in the current chunk) composed with
// a fallback to on-disk history; implementations should always consult
// the overlay first. A HeaderLookup returns (nil, nil) for height -1 and
// for any height it has no record of, matching the reference
// implementation's get_header returning None rather than raising.
type HeaderLookup interface {
	HeaderAt(height int64) (*HeaderInfo, error)
}

func difficultyAdjustmentInterval(p *chaincfg.Params) int64 {
	return p.PowTargetTimespanLegacy / p.PowTargetSpacing
}

func minActualTimespan(p *chaincfg.Params) int64 {
	return averagingWindowTimespan(p) * int64(100-p.DigiMaxAdjustUp) / 100
}

func maxActualTimespan(p *chaincfg.Params) int64 {
	return averagingWindowTimespan(p) * int64(100+p.DigiMaxAdjustDown) / 100
}

func averagingWindowTimespan(p *chaincfg.Params) int64 {
	return int64(p.DigiAveragingWindow) * p.PowTargetSpacing
}

// GetTarget computes the proof-of-work target a header at height must
// satisfy. checkpoints are consulted for the difficulty-adjustment-interval
// boundaries a caller has pinned; pass nil if none apply.
func GetTarget(p *chaincfg.Params, height int64, lookup HeaderLookup, checkpoints []chaincfg.Checkpoint) (*big.Int, error) {
	interval := difficultyAdjustmentInterval(p)

	if height%interval == 0 {
		if t := checkpointTarget(checkpoints, height, interval); t != nil {
			return t, nil
		}
	}

	switch {
	case height == 0:
		return p.PowLimitLegacy, nil
	case height < p.ForkHeight:
		return GetLegacyTarget(p, height, lookup)
	case height < p.ForkHeight+p.PremineSize:
		return p.PowLimit, nil
	case height < p.ForkHeight+p.PremineSize+int64(p.DigiAveragingWindow):
		return p.PowLimitStart, nil
	case !p.UsesLWMA(height):
		return GetDigishieldTarget(p, height, lookup)
	default:
		return GetLWMATarget(p, height, lookup)
	}
}

// checkpointTarget returns the pinned target for the checkpoint
// immediately preceding height, or nil if no such checkpoint was supplied
// or that checkpoint pins no target.
func checkpointTarget(checkpoints []chaincfg.Checkpoint, height, interval int64) *big.Int {
	idx := height/interval - 1
	if idx < 0 || idx >= int64(len(checkpoints)) {
		return nil
	}
	bits := bitsOfCheckpoint(checkpoints[idx])
	if bits == 0 {
		return nil
	}
	return standalone.CompactToBig(bits)
}

// bitsOfCheckpoint reports the compact target a checkpoint pins, with 0
// meaning none. The Checkpoint type only pins a hash, not a target, so
// this always reports 0 and GetTarget falls through to the computed
// target; chaincfg.Params.Checkpoints is empty on every network.
func bitsOfCheckpoint(chaincfg.Checkpoint) uint32 {
	return 0
}

// GetLegacyTarget implements the original Bitcoin retargeting algorithm
// used by every header before a network's fork height, including
// testnet's special minimum-difficulty rule.
func GetLegacyTarget(p *chaincfg.Params, height int64, lookup HeaderLookup) (*big.Int, error) {
	interval := difficultyAdjustmentInterval(p)

	lastHeight := height - 1
	last, err := lookup.HeaderAt(lastHeight)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ruleErrorf(ErrMissingAncestor, "no header at height %d", lastHeight)
	}

	switch {
	case p.Name == "regtest":
		return standalone.CompactToBig(last.Bits), nil

	case height%interval != 0:
		if p.Name == "testnet" {
			return legacyTestnetSpecialMinDifficulty(p, height, last, lookup)
		}
		return standalone.CompactToBig(last.Bits), nil

	default:
		first, err := lookup.HeaderAt(height - interval)
		if err != nil {
			return nil, err
		}
		if first == nil {
			return nil, ruleErrorf(ErrMissingAncestor, "no header at height %d", height-interval)
		}

		target := standalone.CompactToBig(last.Bits)
		actualTimespan := int64(last.Timestamp) - int64(first.Timestamp)
		targetTimespan := p.PowTargetTimespanLegacy

		if actualTimespan < targetTimespan/4 {
			actualTimespan = targetTimespan / 4
		}
		if actualTimespan > targetTimespan*4 {
			actualTimespan = targetTimespan * 4
		}

		newTarget := new(big.Int).Mul(target, big.NewInt(actualTimespan))
		newTarget.Div(newTarget, big.NewInt(targetTimespan))
		if newTarget.Cmp(p.PowLimitLegacy) > 0 {
			newTarget = p.PowLimitLegacy
		}
		return newTarget, nil
	}
}

// legacyTestnetSpecialMinDifficulty implements testnet's allowance for a
// minimum-difficulty block when more than twice the target spacing has
// elapsed since the previous block, walking backward past any run of
// minimum-difficulty blocks to find the last "real" one otherwise.
func legacyTestnetSpecialMinDifficulty(p *chaincfg.Params, height int64, last *HeaderInfo, lookup HeaderLookup) (*big.Int, error) {
	interval := difficultyAdjustmentInterval(p)

	cur, err := lookup.HeaderAt(height)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, ruleErrorf(ErrMissingAncestor, "no header at height %d", height)
	}

	if int64(cur.Timestamp) > int64(last.Timestamp)+p.PowTargetSpacing*2 {
		return p.PowLimitLegacy, nil
	}

	prevHeight := last.Height - 1
	prev, err := lookup.HeaderAt(prevHeight)
	if err != nil {
		return nil, err
	}

	powLimitBits := standalone.BigToCompact(p.PowLimit)
	for prev != nil && last.Height%interval != 0 && last.Bits == powLimitBits {
		last = prev
		prevHeight--
		prev, err = lookup.HeaderAt(prevHeight)
		if err != nil {
			return nil, err
		}
	}
	return standalone.CompactToBig(last.Bits), nil
}

// GetDigishieldTarget implements the Digishield v3 retargeting algorithm
// used immediately after the Equihash fork, averaging a trailing window of
// targets and scaling by a median-time-past-derived timespan.
func GetDigishieldTarget(p *chaincfg.Params, height int64, lookup HeaderLookup) (*big.Int, error) {
	height--
	last, err := lookup.HeaderAt(height)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return p.PowLimit, nil
	}
	if p.Name == "regtest" {
		return standalone.CompactToBig(last.Bits), nil
	}

	total := new(big.Int)
	first := last
	for i := 0; i < p.DigiAveragingWindow && first != nil; i++ {
		total.Add(total, standalone.CompactToBig(first.Bits))
		prevHeight := height - int64(i) - 1
		first, err = lookup.HeaderAt(prevHeight)
		if err != nil {
			return nil, err
		}
	}
	if first == nil {
		return nil, ruleErrorf(ErrMissingAncestor, "digishield averaging window ran out of history before height %d", height)
	}

	avg := new(big.Int).Div(total, big.NewInt(int64(p.DigiAveragingWindow)))

	lastMTP, err := MedianTimePast(lookup, last.Height)
	if err != nil {
		return nil, err
	}
	firstMTP, err := MedianTimePast(lookup, first.Height)
	if err != nil {
		return nil, err
	}
	actualTimespan := lastMTP - firstMTP

	if min := minActualTimespan(p); actualTimespan < min {
		actualTimespan = min
	}
	if max := maxActualTimespan(p); actualTimespan > max {
		actualTimespan = max
	}

	avg.Div(avg, big.NewInt(averagingWindowTimespan(p)))
	avg.Mul(avg, big.NewInt(actualTimespan))

	if avg.Cmp(p.PowLimit) > 0 {
		avg = p.PowLimit
	}
	return avg, nil
}

// GetLWMATarget implements Zawy's linearly-weighted moving-average
// retargeting algorithm, active once a network crosses its LWMA height.
func GetLWMATarget(p *chaincfg.Params, height int64, lookup HeaderLookup) (*big.Int, error) {
	cur, err := lookup.HeaderAt(height)
	if err != nil {
		return nil, err
	}
	lastHeight := height - 1
	last, err := lookup.HeaderAt(lastHeight)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ruleErrorf(ErrMissingAncestor, "no header at height %d", lastHeight)
	}

	if p.Name == "regtest" {
		return standalone.CompactToBig(last.Bits), nil
	}
	if p.Name == "testnet" && cur != nil && int64(cur.Timestamp) > int64(last.Timestamp)+p.PowTargetSpacing*2 {
		return p.PowLimit, nil
	}

	window := int64(p.LWMAAveragingWindow)
	if height-window <= 0 {
		return nil, ruleErrorf(ErrInvalidHeight, "lwma requires height > averaging window, got height %d window %d", height, window)
	}

	total := new(big.Int)
	var t int64
	var j int64

	for i := height - window; i < height; i++ {
		ci, err := lookup.HeaderAt(i)
		if err != nil {
			return nil, err
		}
		if ci == nil {
			return nil, ruleErrorf(ErrMissingAncestor, "no header at height %d", i)
		}
		prev, err := lookup.HeaderAt(i - 1)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, ruleErrorf(ErrMissingAncestor, "no header at height %d", i-1)
		}

		solvetime := int64(ci.Timestamp) - int64(prev.Timestamp)
		j++
		t += solvetime * j

		weight := new(big.Int).Mul(big.NewInt(p.LWMAAdjustWeight), big.NewInt(window))
		weight.Mul(weight, big.NewInt(window))
		contribution := new(big.Int).Div(standalone.CompactToBig(ci.Bits), weight)
		total.Add(total, contribution)
	}

	minT := window * p.LWMAAdjustWeight / 3
	if t < minT {
		t = minT
	}

	newTarget := new(big.Int).Mul(big.NewInt(t), total)
	if newTarget.Cmp(p.PowLimit) > 0 {
		newTarget = p.PowLimit
	}
	return newTarget, nil
}

// MedianTimePast returns the median timestamp of up to the 11 headers at
// and before startHeight, the same window used to compute a block's
// median-time-past for Digishield's timespan calculation.
func MedianTimePast(lookup HeaderLookup, startHeight int64) (int64, error) {
	const window = 11

	times := make([]int64, 0, window)
	height := startHeight
	for i := 0; i < window; i++ {
		h, err := lookup.HeaderAt(height)
		if err != nil {
			return 0, err
		}
		if h == nil {
			break
		}
		times = append(times, int64(h.Timestamp))
		height--
	}
	if len(times) == 0 {
		return 0, ruleErrorf(ErrMissingAncestor, "no header at height %d", startHeight)
	}

	sortInt64s(times)
	return times[len(times)/2], nil
}

func sortInt64s(s []int64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// HeaderInfoFromWire adapts a wire.Header at a known height into the
// narrower HeaderInfo targeting operates on.
func HeaderInfoFromWire(height int64, h *wire.Header) *HeaderInfo {
	if h == nil {
		return nil
	}
	return &HeaderInfo{Height: height, Timestamp: h.Timestamp, Bits: h.Bits, Hash: h.Hash()}
}

// Package chaincfg defines the chain parameters for each Bitcoin Gold
// network the header store understands: mainnet, testnet, and regtest.
//
// It follows the one-struct-per-network, one-constructor-function shape
// used throughout the btcsuite/Decred family of chaincfg packages, scaled
// down to what a header-only client needs: fork heights, the two wire
// header sizes either side of the Equihash fork, the Equihash tuning
// parameters, proof-of-work limits, retarget constants, and the genesis
// hash.
package chaincfg

import (
	"math/big"

	"github.com/btgoldspv/headerchain/chainhash"
)

// bigOne is 1 represented as a big.Int, used when deriving PoW limits from
// a bit-length the way the upstream chaincfg packages do.
var bigOne = big.NewInt(1)

// fromBits builds a big.Int proof-of-work limit by left-shifting 1 by the
// given bit count and subtracting one, i.e. 2^bits - 1.
func fromBits(bits uint) *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(bigOne, bits), bigOne)
}

// hexLimit parses a hex-encoded proof-of-work limit literally, for the
// handful of network limits that aren't a clean power of two minus one.
func hexLimit(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("chaincfg: invalid hex constant " + s)
	}
	return n
}

// Params bundles everything a header verifier needs to know about one BTG
// network. Exactly one of MainNetParams, TestNetParams, or RegNetParams
// should be used per running instance, the same convention chaincfg.Params
// follows in btcd/dcrd.
type Params struct {
	// Name is the network's informal name, e.g. "mainnet".
	Name string

	// Net is a magic number identifying the network on the wire; carried
	// for parity with the teacher's Params but not consulted by the
	// header store itself, which is never handed raw P2P traffic.
	Net uint32

	// GenesisHash is the hash of the first header in the chain.
	GenesisHash *chainhash.Hash

	// PowLimit is the highest (easiest) proof-of-work target the chain
	// will accept post-fork.
	PowLimit *big.Int

	// PowLimitStart is the proof-of-work target imposed for the
	// DigiAveragingWindow blocks that follow the post-fork premine range,
	// before the first Digishield/LWMA retarget has enough history.
	PowLimitStart *big.Int

	// PowLimitLegacy is the proof-of-work target used by every header
	// before the fork, under the original Bitcoin SHA256d algorithm.
	PowLimitLegacy *big.Int

	// ForkHeight is the height of the first post-fork header (the
	// original project calls this BTG_HEIGHT). Headers below this height
	// use the 80-byte legacy wire format and SHA256d retargeting;
	// headers at or above it use the Equihash wire format.
	ForkHeight int64

	// LWMAHeight is the height at which the chain switches from
	// Digishield v3 to Zawy's LWMA retargeting. A negative value means
	// LWMA is active from the fork height onward; a value larger than
	// any realistic height means LWMA never activates on this network.
	LWMAHeight int64

	// PremineSize is the number of post-fork headers that were minted
	// in a single premine block range starting at ForkHeight. Targeting
	// assigns every premine header PowLimit, and the PowLimitStart range
	// begins right after the premine range ends.
	PremineSize int64

	// HeaderSize is the serialized size, in bytes, of a post-fork
	// header on this network (1487 on mainnet/testnet, 177 on regtest,
	// reflecting regtest's much smaller minimal Equihash solution).
	HeaderSize int

	// HeaderSizeLegacy is the serialized size of a pre-fork header,
	// identical to original Bitcoin's 80 bytes on every BTG network.
	HeaderSizeLegacy int

	// EquihashN and EquihashK are the Equihash(N,K) tuning parameters
	// used to validate post-fork proof-of-work solutions.
	EquihashN int
	EquihashK int

	// PowTargetSpacing is the intended time, in seconds, between blocks.
	PowTargetSpacing int64

	// PowTargetTimespanLegacy is the Bitcoin-legacy retarget interval
	// in seconds (14 days), used to compute the 2016-block retarget
	// window before the fork.
	PowTargetTimespanLegacy int64

	// DigiAveragingWindow, DigiMaxAdjustDown, and DigiMaxAdjustUp
	// parameterize the Digishield v3 retargeting algorithm used
	// immediately after the fork.
	DigiAveragingWindow int
	DigiMaxAdjustDown   int
	DigiMaxAdjustUp     int

	// LWMAAveragingWindow and LWMAAdjustWeight parameterize the Zawy
	// LWMA retargeting algorithm that supersedes Digishield at
	// LWMAHeight.
	LWMAAveragingWindow int
	LWMAAdjustWeight    int64

	// ChunkSize is the number of headers a verified "chunk" groups
	// together for batch hash-chain verification and file layout.
	ChunkSize int

	// Checkpoints are known-good (height, hash) pairs, one per 2016-block
	// window ending at Height. The header store answers hash lookups at
	// those heights from the pinned hash instead of reading the header;
	// headers are still verified in full.
	Checkpoints []Checkpoint
}

// Checkpoint pins a known-good header hash at a given height.
type Checkpoint struct {
	Height int64
	Hash   chainhash.Hash
}

func mustHash(s string) *chainhash.Hash {
	h, err := chainhash.NewHashFromStr(s)
	if err != nil {
		panic("chaincfg: invalid genesis hash " + s + ": " + err.Error())
	}
	return h
}

// MainNetParams returns the chain parameters for BTG mainnet.
func MainNetParams() *Params {
	return &Params{
		Name:                    "mainnet",
		Net:                     0xd9b4bef9,
		GenesisHash:             mustHash("000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f"),
		PowLimit:                hexLimit("0007ffffffff0000000000000000000000000000000000000000000000000000"),
		PowLimitStart:           hexLimit("0000000fffff0000000000000000000000000000000000000000000000000000"),
		PowLimitLegacy:          hexLimit("00000000ffff0000000000000000000000000000000000000000000000000000"),
		ForkHeight:              491407,
		LWMAHeight:              -1,
		PremineSize:             8000,
		HeaderSize:              1487,
		HeaderSizeLegacy:        80,
		EquihashN:               200,
		EquihashK:               9,
		PowTargetSpacing:        600,
		PowTargetTimespanLegacy: 14 * 24 * 60 * 60,
		DigiAveragingWindow:     30,
		DigiMaxAdjustDown:       32,
		DigiMaxAdjustUp:         16,
		LWMAAveragingWindow:     45,
		LWMAAdjustWeight:        13632,
		ChunkSize:               252,
	}
}

// TestNetParams returns the chain parameters for BTG testnet.
func TestNetParams() *Params {
	return &Params{
		Name:                    "testnet",
		Net:                     0x0709110b,
		GenesisHash:             mustHash("00000000e0781ebe24b91eedc293adfea2f557b53ec379e78959de3853e6f9f6"),
		PowLimit:                hexLimit("0007ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
		PowLimitStart:           hexLimit("0007ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
		PowLimitLegacy:          hexLimit("00000000ffffffffffffffffffffffffffffffffffffffffffffffffffffffff"),
		ForkHeight:              1,
		LWMAHeight:              -1,
		PremineSize:             50,
		HeaderSize:              1487,
		HeaderSizeLegacy:        80,
		EquihashN:               200,
		EquihashK:               9,
		PowTargetSpacing:        600,
		PowTargetTimespanLegacy: 14 * 24 * 60 * 60,
		DigiAveragingWindow:     30,
		DigiMaxAdjustDown:       32,
		DigiMaxAdjustUp:         16,
		LWMAAveragingWindow:     45,
		LWMAAdjustWeight:        13632,
		ChunkSize:               252,
	}
}

// RegNetParams returns the chain parameters for the regression-test
// network, which uses a much cheaper Equihash(48,5) and a correspondingly
// smaller 177-byte post-fork header.
func RegNetParams() *Params {
	return &Params{
		Name:                    "regtest",
		Net:                     0xdab5bffa,
		GenesisHash:             mustHash("0f9188f13cb7b2c71f2a335e3a4fc328bf5beb436012afca590b1a11466e2206"),
		PowLimit:                fromBits(255),
		PowLimitStart:           fromBits(255),
		PowLimitLegacy:          fromBits(255),
		ForkHeight:              2000,
		LWMAHeight:              -1,
		PremineSize:             10,
		HeaderSize:              177,
		HeaderSizeLegacy:        80,
		EquihashN:               48,
		EquihashK:               5,
		PowTargetSpacing:        600,
		PowTargetTimespanLegacy: 14 * 24 * 60 * 60,
		DigiAveragingWindow:     30,
		DigiMaxAdjustDown:       32,
		DigiMaxAdjustUp:         16,
		LWMAAveragingWindow:     45,
		LWMAAdjustWeight:        13632,
		ChunkSize:               252,
	}
}

// UsesLegacyFormat reports whether the header at the given height is
// serialized in the 80-byte pre-fork format.
func (p *Params) UsesLegacyFormat(height int64) bool {
	return height < p.ForkHeight
}

// UsesLWMA reports whether the header at the given height retargets with
// Zawy's LWMA algorithm rather than Digishield v3. A negative LWMAHeight
// means LWMA has been active since the fork.
func (p *Params) UsesLWMA(height int64) bool {
	if p.LWMAHeight < 0 {
		return height >= p.ForkHeight
	}
	return height >= p.LWMAHeight
}

// HeaderSizeAt returns the serialized header size, in bytes, for a header
// at the given height on this network.
func (p *Params) HeaderSizeAt(height int64) int {
	if p.UsesLegacyFormat(height) {
		return p.HeaderSizeLegacy
	}
	return p.HeaderSize
}

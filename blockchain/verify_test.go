package blockchain

import (
	"testing"

	"github.com/btgoldspv/headerchain/chaincfg"
	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/btgoldspv/headerchain/standalone"
	"github.com/btgoldspv/headerchain/wire"
)

func TestVerifyHeaderPrevHashMismatch(t *testing.T) {
	p := chaincfg.MainNetParams()
	lookup := mapLookup{0: {Height: 0, Bits: standalone.BigToCompact(p.PowLimitLegacy)}}

	h := &wire.Header{Legacy: true, Bits: standalone.BigToCompact(p.PowLimitLegacy)}
	var wrongPrev chainhash.Hash
	wrongPrev[0] = 0xff

	err := VerifyHeader(p, 1, h, wrongPrev, lookup, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	ruleErr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected a RuleError, got %T", err)
	}
	if ruleErr.ErrorCode != ErrPrevHashMismatch {
		t.Fatalf("ErrorCode = %v, want ErrPrevHashMismatch", ruleErr.ErrorCode)
	}
}

func TestVerifyHeaderBitsMismatch(t *testing.T) {
	p := chaincfg.MainNetParams()
	lookup := mapLookup{0: {Height: 0, Bits: standalone.BigToCompact(p.PowLimitLegacy)}}

	h := &wire.Header{Legacy: true, Bits: 0x1b0404cb}

	err := VerifyHeader(p, 1, h, chainhash.Hash{}, lookup, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	ruleErr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected a RuleError, got %T", err)
	}
	if ruleErr.ErrorCode != ErrBitsMismatch {
		t.Fatalf("ErrorCode = %v, want ErrBitsMismatch", ruleErr.ErrorCode)
	}
}

func TestVerifyChunkGenesisHashMismatch(t *testing.T) {
	p := chaincfg.MainNetParams()
	lookup := mapLookup{}

	h := &wire.Header{Legacy: true, Version: 1}
	err := VerifyChunk(p, 0, []*wire.Header{h}, lookup, nil)
	if err == nil {
		t.Fatal("expected a genesis hash mismatch error")
	}
	ruleErr, ok := err.(RuleError)
	if !ok {
		t.Fatalf("expected a RuleError, got %T", err)
	}
	if ruleErr.ErrorCode != ErrPrevHashMismatch {
		t.Fatalf("ErrorCode = %v, want ErrPrevHashMismatch", ruleErr.ErrorCode)
	}
}

func TestVerifyChunkEmpty(t *testing.T) {
	p := chaincfg.MainNetParams()
	lookup := mapLookup{}
	if err := VerifyChunk(p, 0, nil, lookup, nil); err != nil {
		t.Fatalf("unexpected error for an empty chunk: %v", err)
	}
}

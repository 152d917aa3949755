package wire

import (
	"bytes"
	"testing"

	"github.com/btgoldspv/headerchain/chainhash"
	"github.com/davecgh/go-spew/spew"
)

func sampleLegacyHeader() *Header {
	h := &Header{Legacy: true, Version: 1, Timestamp: 1231006505, Bits: 0x1d00ffff}
	h.Nonce[0] = 0x9e
	h.Nonce[1] = 0x04
	return h
}

func samplePostForkHeader() *Header {
	h := &Header{
		Version:   536870912,
		Height:    500000,
		Timestamp: 1540000000,
		Bits:      0x1a1a1a1a,
		Solution:  bytes.Repeat([]byte{0xab}, 1344),
	}
	for i := range h.Nonce {
		h.Nonce[i] = byte(i)
	}
	return h
}

func TestLegacyHeaderRoundTrip(t *testing.T) {
	want := sampleLegacyHeader()
	b, err := want.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(b) != LegacyHeaderSize {
		t.Fatalf("legacy header serialized to %d bytes, want %d", len(b), LegacyHeaderSize)
	}

	got, err := Deserialize(bytes.NewReader(b), true)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Version != want.Version || got.Timestamp != want.Timestamp || got.Bits != want.Bits {
		t.Fatalf("round trip mismatch: got %s, want %s", spew.Sdump(got), spew.Sdump(want))
	}
	if got.Nonce[0] != want.Nonce[0] || got.Nonce[1] != want.Nonce[1] {
		t.Fatalf("nonce mismatch: got %v, want %v", got.Nonce[:4], want.Nonce[:4])
	}
}

func TestPostForkHeaderRoundTrip(t *testing.T) {
	want := samplePostForkHeader()
	b, err := want.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	got, err := Deserialize(bytes.NewReader(b), false)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Height != want.Height || got.Bits != want.Bits || got.Version != want.Version {
		t.Fatalf("round trip mismatch: got %s, want %s", spew.Sdump(got), spew.Sdump(want))
	}
	if !bytes.Equal(got.Solution, want.Solution) {
		t.Fatalf("solution mismatch")
	}
	if got.Nonce != want.Nonce {
		t.Fatalf("nonce mismatch")
	}
}

func TestNilHeaderHashesToZero(t *testing.T) {
	var h *Header
	if h.Hash() != (chainhash.Hash{}) {
		t.Fatal("nil header must hash to the all-zero hash")
	}
}

func TestPreimageForSolutionExcludesSolutionBytes(t *testing.T) {
	h := samplePostForkHeader()
	pre, err := h.PreimageForSolution()
	if err != nil {
		t.Fatalf("PreimageForSolution: %v", err)
	}
	full, err := h.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if len(pre) >= len(full) {
		t.Fatalf("preimage (%d bytes) should be shorter than the full header (%d bytes)", len(pre), len(full))
	}
	if !bytes.Equal(full[:len(pre)], pre) {
		t.Fatal("preimage should be a strict prefix of the full serialized header")
	}
}

func TestPreimageForSolutionRejectsLegacy(t *testing.T) {
	h := sampleLegacyHeader()
	if _, err := h.PreimageForSolution(); err == nil {
		t.Fatal("expected an error requesting a solution preimage from a legacy header")
	}
}

func TestSerializedSizeMatchesBytes(t *testing.T) {
	for _, h := range []*Header{sampleLegacyHeader(), samplePostForkHeader()} {
		b, err := h.Bytes()
		if err != nil {
			t.Fatalf("Bytes: %v", err)
		}
		if got, want := h.SerializedSize(), len(b); got != want {
			t.Fatalf("SerializedSize() = %d, want %d", got, want)
		}
	}
}

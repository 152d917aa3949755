// Package wire implements the two on-the-wire header formats a Bitcoin
// Gold header store has to understand: the 80-byte legacy Bitcoin header
// used before the Equihash fork, and the larger post-fork header that adds
// an embedded block height, a reserved field, a 32-byte nonce, and a
// variable-length Equihash solution.
//
// Like the teacher's own wire package, (de)serialization here is written
// out by hand field-by-field rather than derived through reflection or a
// generic codec, since the two formats diverge in both field set and byte
// order in ways a single reflective encoder would only obscure.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btgoldspv/headerchain/chainhash"
)

const (
	// LegacyHeaderSize is the serialized size, in bytes, of every header
	// before the Equihash fork activates.
	LegacyHeaderSize = 80

	// minPostForkHeaderSize is the smallest a post-fork header can be:
	// every fixed field plus a one-byte varint solution length and an
	// empty solution. Real solutions are always present and much
	// larger. Deserialize does not check input length against it.
	minPostForkHeaderSize = 4 + chainhash.HashSize*2 + 4 + 28 + 4 + 4 + 32 + 1
)

// Header is a single block header in either wire format. Legacy reports
// which format populated it: when true, Height, Reserved, and Solution are
// unset and Nonce only uses its first four bytes.
type Header struct {
	Legacy bool

	Version    uint32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash

	// Height and Reserved are only present in post-fork headers.
	Height   uint32
	Reserved [28]byte

	Timestamp uint32
	Bits      uint32

	// Nonce is 4 bytes wide for legacy headers and 32 bytes wide
	// post-fork; the unused tail is always zero for a legacy header.
	Nonce [32]byte

	// Solution is the raw, wire-packed Equihash solution. Empty for
	// legacy headers.
	Solution []byte
}

// Serialize writes the header to w in its native wire format.
func (h *Header) Serialize(w io.Writer) error {
	if err := writeUint32(w, h.Version); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if !h.Legacy {
		if err := writeUint32(w, h.Height); err != nil {
			return err
		}
		if _, err := w.Write(h.Reserved[:]); err != nil {
			return err
		}
	}
	if err := writeUint32(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeUint32(w, h.Bits); err != nil {
		return err
	}
	if h.Legacy {
		if _, err := w.Write(h.Nonce[:4]); err != nil {
			return err
		}
		return nil
	}
	if _, err := w.Write(h.Nonce[:]); err != nil {
		return err
	}
	if err := writeVarInt(w, uint64(len(h.Solution))); err != nil {
		return err
	}
	_, err := w.Write(h.Solution)
	return err
}

// Deserialize reads a single header from r. legacy selects which format to
// expect; callers determine this from the height the header is being read
// for (chaincfg.Params.UsesLegacyFormat), since nothing in a legacy
// header's own bytes distinguishes it from a post-fork one.
func Deserialize(r io.Reader, legacy bool) (*Header, error) {
	h := &Header{Legacy: legacy}

	var err error
	if h.Version, err = readUint32(r); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, h.PrevBlock[:]); err != nil {
		return nil, err
	}
	if _, err = io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return nil, err
	}
	if !legacy {
		if h.Height, err = readUint32(r); err != nil {
			return nil, err
		}
		if _, err = io.ReadFull(r, h.Reserved[:]); err != nil {
			return nil, err
		}
	}
	if h.Timestamp, err = readUint32(r); err != nil {
		return nil, err
	}
	if h.Bits, err = readUint32(r); err != nil {
		return nil, err
	}
	if legacy {
		if _, err = io.ReadFull(r, h.Nonce[:4]); err != nil {
			return nil, err
		}
		return h, nil
	}
	if _, err = io.ReadFull(r, h.Nonce[:]); err != nil {
		return nil, err
	}
	solnLen, err := readVarInt(r)
	if err != nil {
		return nil, err
	}
	h.Solution = make([]byte, solnLen)
	if _, err = io.ReadFull(r, h.Solution); err != nil {
		return nil, err
	}
	return h, nil
}

// SerializedSize returns the number of bytes Serialize will write.
func (h *Header) SerializedSize() int {
	if h.Legacy {
		return LegacyHeaderSize
	}
	return 4 + chainhash.HashSize*2 + 4 + 28 + 4 + 4 + 32 + varIntSize(uint64(len(h.Solution))) + len(h.Solution)
}

// Bytes serializes the header to a freshly allocated byte slice.
func (h *Header) Bytes() ([]byte, error) {
	buf := make(bytesBuffer, 0, h.SerializedSize())
	if err := h.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Hash computes the double-SHA256 identifier of the header, matching the
// reference client's hash_header: a nil header (height -1, no parent)
// hashes to all-zero rather than panicking, since branch code asks for the
// hash of the header "before" a chain's first entry.
func (h *Header) Hash() chainhash.Hash {
	if h == nil {
		return chainhash.Hash{}
	}
	b, err := h.Bytes()
	if err != nil {
		return chainhash.Hash{}
	}
	return chainhash.HashH(b)
}

// PreimageForSolution returns the header's serialized bytes without the
// trailing solution field, the exact preimage the Equihash digest is
// built over.
func (h *Header) PreimageForSolution() ([]byte, error) {
	if h.Legacy {
		return nil, fmt.Errorf("wire: legacy headers carry no Equihash solution")
	}
	cp := *h
	cp.Solution = nil
	buf := make(bytesBuffer, 0, cp.SerializedSize()-1)
	if err := cp.serializeWithoutSolutionVarint(&buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// serializeWithoutSolutionVarint writes every post-fork field up to and
// including the nonce, omitting the solution length prefix and body.
func (h *Header) serializeWithoutSolutionVarint(w io.Writer) error {
	if err := writeUint32(w, h.Version); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := writeUint32(w, h.Height); err != nil {
		return err
	}
	if _, err := w.Write(h.Reserved[:]); err != nil {
		return err
	}
	if err := writeUint32(w, h.Timestamp); err != nil {
		return err
	}
	if err := writeUint32(w, h.Bits); err != nil {
		return err
	}
	_, err := w.Write(h.Nonce[:])
	return err
}

type bytesBuffer []byte

func (b *bytesBuffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// writeVarInt and readVarInt implement the standard Bitcoin-family
// CompactSize varint encoding used for the post-fork solution's length
// prefix.
func writeVarInt(w io.Writer, v uint64) error {
	switch {
	case v < 0xfd:
		_, err := w.Write([]byte{byte(v)})
		return err
	case v <= 0xffff:
		var b [3]byte
		b[0] = 0xfd
		binary.LittleEndian.PutUint16(b[1:], uint16(v))
		_, err := w.Write(b[:])
		return err
	case v <= 0xffffffff:
		var b [5]byte
		b[0] = 0xfe
		binary.LittleEndian.PutUint32(b[1:], uint32(v))
		_, err := w.Write(b[:])
		return err
	default:
		var b [9]byte
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], v)
		_, err := w.Write(b[:])
		return err
	}
}

func readVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	switch prefix[0] {
	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b[:])), nil
	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b[:])), nil
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b[:]), nil
	default:
		return uint64(prefix[0]), nil
	}
}

func varIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// Package equihash implements the Equihash proof-of-work solution check
// used by post-fork headers.
//
// The header store specification treats the Equihash *solver* as an
// external pure function it never needs to call — only the *verifier*
// ever needs to check a solution a peer already produced. This package
// therefore only implements ValidateSolution (adapted from the teacher's
// equihash.go) and the bitstream decode that turns a header's compact,
// packed solution bytes into the index list ValidateSolution expects; it
// carries none of the solver machinery (generateHashKeys / reduceHashKeys
// / findSolutions) that produced a solution in the first place.
package equihash

import (
	"encoding/binary"
	"errors"
	"hash"
	"math/big"
	"reflect"

	"github.com/minio/blake2b-simd"
)

const (
	wordSize      = 32
	wordMask      = (1 << wordSize) - 1
	byteMask      = 0xFF
	defaultPerson = "ZcashPoW"
)

var (
	errBadArg           = errors.New("equihash: invalid argument")
	errWriteLen         = errors.New("equihash: short hash write")
	errKLarge           = errors.New("equihash: k must be less than n")
	errCollisionLen     = errors.New("equihash: collision length too large")
	errSmallBitLen      = errors.New("equihash: bitLen < 8")
	errSmallWordSize    = errors.New("equihash: wordSize < 7+bitLen")
	errBadOutLen        = errors.New("equihash: outLen != 8*outWidth*len(in)/bitLen")
	errDuplicateIndices = errors.New("equihash: duplicate solution indices")
	errPairWiseOrdering = errors.New("equihash: bad pair-wise ordering")
	errBadWord          = errors.New("equihash: bad word")
	errNullHash         = errors.New("equihash: nil hash")
	errEmptyIndices     = errors.New("equihash: empty indices")
	errEmptyHeader      = errors.New("equihash: empty header")
)

// Params bundles the two Equihash tuning parameters carried per network in
// chaincfg.Params (N=200,K=9 on mainnet/testnet; N=48,K=5 on regtest).
type Params struct {
	N int
	K int
}

func collisionLength(n, k int) int {
	return n / (k + 1)
}

func indicesPerHashOutput(n int) int {
	return 512 / n
}

func hashLength(n, k int) int {
	return (k + 1) * ((collisionLength(n, k) + 7) / 8)
}

func solutionLength(k int) int {
	return 1 << uint(k)
}

func person(n, k int) []byte {
	return append([]byte(defaultPerson), append(writeU32(uint32(n)), writeU32(uint32(k))...)...)
}

func newHash(n, k int) (hash.Hash, error) {
	return blake2b.New(&blake2b.Config{
		Person: person(n, k),
		Size:   uint8((512 / n) * n / 8),
	})
}

func writeU32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func writeBytesToHash(h hash.Hash, b []byte) error {
	n, err := h.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return errWriteLen
	}
	return nil
}

func writeU32ToHash(h hash.Hash, v uint32) error {
	return writeBytesToHash(h, writeU32(v))
}

// copyHash deep-copies a hash.Hash so the running digest can be forked
// without disturbing the original (used once per solution word).
func copyHash(src hash.Hash) hash.Hash {
	if src == nil {
		return nil
	}
	typ := reflect.TypeOf(src)
	val := reflect.ValueOf(src)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
		val = val.Elem()
	}
	elem := reflect.New(typ).Elem()
	elem.Set(val)
	return elem.Addr().Interface().(hash.Hash)
}

// expandArray unpacks a bitstream where each element occupies bitLen bits
// into a byte-aligned array, padded with bytePad leading zero bytes per
// element. Used both to derive per-index hash digests (collisionLen bits)
// and, via DecodeSolutionIndices, to unpack the wire solution encoding
// (CollisionBitLength+1 bits per index).
func expandArray(in []byte, outLen, bitLen, bytePad int) ([]byte, error) {
	if bitLen < 8 {
		return nil, errSmallBitLen
	}
	if wordSize < 7+bitLen {
		return nil, errSmallWordSize
	}
	outWidth := (bitLen+7)/8 + bytePad
	if outLen != 8*outWidth*len(in)/bitLen {
		return nil, errBadOutLen
	}

	out := make([]byte, outLen)
	bitLenMask := (1 << uint(bitLen)) - 1
	accBits, accValue, j := 0, 0, 0
	for _, val := range in {
		accValue = (accValue<<8)&wordMask | int(val&0xFF)
		accBits += 8

		if accBits >= bitLen {
			accBits -= bitLen
			for x := bytePad; x < outWidth; x++ {
				a := accValue >> uint(accBits+8*(outWidth-x-1))
				b := (bitLenMask >> uint(8*(outWidth-x-1))) & byteMask
				out[j+x] = byte(a & b)
			}
			j += outWidth
		}
	}
	return out, nil
}

// DecodeSolutionIndices unpacks a header's raw, reversed solution bytes
// (spec §4.D: "solution_after_varint") into the index list ValidateSolution
// expects. The wire format packs each of the 2^K indices into
// CollisionBitLength+1 bits; this expands that bitstream back out to
// 4-byte-aligned words.
func DecodeSolutionIndices(n, k int, solution []byte) ([]int, error) {
	if err := validateEquihashParams(n, k); err != nil {
		return nil, err
	}
	indexBits := collisionLength(n, k) + 1
	count := solutionLength(k)
	const indexBytes = 4
	bytePad := indexBytes - (indexBits+7)/8

	expanded, err := expandArray(solution, count*indexBytes, indexBits, bytePad)
	if err != nil {
		return nil, err
	}

	indices := make([]int, count)
	for i := 0; i < count; i++ {
		indices[i] = int(binary.BigEndian.Uint32(expanded[i*indexBytes : (i+1)*indexBytes]))
	}
	return indices, nil
}

func validateEquihashParams(n, k int) error {
	if n < 2 {
		return errors.New("equihash: n < 2")
	}
	if k < 3 {
		return errors.New("equihash: k < 3")
	}
	if n%8 != 0 {
		return errors.New("equihash: n%8 != 0")
	}
	if n%(k+1) != 0 {
		return errors.New("equihash: n%(k+1) != 0")
	}
	if k >= n {
		return errKLarge
	}
	if collisionLength(n, k)+1 >= 32 {
		return errCollisionLen
	}
	return nil
}

func isBigIntZero(v *big.Int) bool {
	return v.Sign() == 0
}

func hasDuplicateIndices(indices []int) bool {
	if len(indices) <= 1 {
		return false
	}
	set := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if set[idx] {
			return true
		}
		set[idx] = true
	}
	return false
}

func validateSolutionIndices(k int, indices []int) error {
	if len(indices) != solutionLength(k) {
		return errBadArg
	}
	if hasDuplicateIndices(indices) {
		return errDuplicateIndices
	}
	return nil
}

func validateSolutionOrdering(k int, indices []int) error {
	soln := solutionLength(k)
	for s := 0; s < k; s++ {
		d := 1 << uint(s)
		for i := 0; i < soln; i += 2 * d {
			if indices[i] >= indices[i+d] {
				return errPairWiseOrdering
			}
		}
	}
	return nil
}

// generateWord re-derives the n-bit digest word for solution index idx by
// hashing the index's block into the shared header digest, exactly as the
// solver would have when it produced this solution. The word is returned
// as the raw n/8-byte slice so validateWords can XOR and compare words
// without any intermediate reinterpretation.
func generateWord(n int, h hash.Hash, idx int) ([]byte, error) {
	if h == nil {
		return nil, errNullHash
	}
	bytesPerWord := n / 8
	wordsPerHash := indicesPerHashOutput(n)

	hidx := idx / wordsPerHash
	hrem := idx % wordsPerHash

	ctx1 := copyHash(h)
	if err := writeBytesToHash(ctx1, writeU32(uint32(hidx))); err != nil {
		return nil, err
	}
	digest := ctx1.Sum(nil)

	word := make([]byte, bytesPerWord)
	copy(word, digest[hrem*bytesPerWord:hrem*bytesPerWord+bytesPerWord])
	return word, nil
}

func generateWords(n, k int, indices []int, h hash.Hash) ([][]byte, error) {
	if h == nil {
		return nil, errNullHash
	}
	if len(indices) == 0 {
		return nil, errEmptyIndices
	}
	words := make([][]byte, solutionLength(k))
	for i := range words {
		w, err := generateWord(n, h, indices[i])
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

func wordXor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// validateWords repeatedly XORs sibling words and, at each of the k
// rounds, requires the growing run of leading collision bits to be zero —
// the same progressive-truncation check the solver satisfied when it
// picked this particular tree of indices. The final round additionally
// requires the whole word to vanish.
func validateWords(n, k int, words [][]byte) (bool, error) {
	soln := solutionLength(k)
	bitsPerStage := n / (k + 1)
	for s := 0; s < k; s++ {
		d := 1 << uint(s)
		for i := 0; i < soln; i += 2 * d {
			words[i] = wordXor(words[i], words[i+d])
			remaining := n - (s+1)*bitsPerStage
			if new(big.Int).SetBytes(words[i]).BitLen() > remaining {
				return false, nil
			}
		}
	}
	return isBigIntZero(new(big.Int).SetBytes(words[0])), nil
}

func validateIndices(n, k int, indices []int, digest hash.Hash) (bool, error) {
	if err := validateSolutionOrdering(k, indices); err != nil {
		return false, nil
	}
	words, err := generateWords(n, k, indices, digest)
	if err != nil {
		return false, err
	}
	return validateWords(n, k, words)
}

func newValidateHash(n, k int, header []byte) (hash.Hash, error) {
	h, err := newHash(n, k)
	if err != nil {
		return nil, err
	}
	if err := writeBytesToHash(h, header); err != nil {
		return nil, err
	}
	return h, nil
}

func validateSolutionParams(n, k int, header []byte, indices []int) error {
	if err := validateEquihashParams(n, k); err != nil {
		return err
	}
	if len(header) == 0 {
		return errEmptyHeader
	}
	if len(indices) == 0 {
		return errEmptyIndices
	}
	return validateSolutionIndices(k, indices)
}

// ValidateSolution reports whether solutionIndices is a valid Equihash(n,k)
// solution for header. header is the header's serialized preimage without
// the nonce's trailing varint-length solution field (spec §4.D:
// "header_bytes_without_solution_length_prefix").
func ValidateSolution(n, k int, header []byte, solutionIndices []int) (bool, error) {
	if err := validateSolutionParams(n, k, header, solutionIndices); err != nil {
		return false, err
	}
	digest, err := newValidateHash(n, k, header)
	if err != nil {
		return false, err
	}
	return validateIndices(n, k, solutionIndices, digest)
}

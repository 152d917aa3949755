package equihash

import (
	"encoding/binary"
	"testing"
)

// header reproduces the fixed test preimage used by every known-answer
// Equihash(96,5) vector: an arbitrary byte string followed by a 4-byte
// little-endian nonce zero-padded out to a 32-byte nonce field.
func header(i []byte, nonce uint32) []byte {
	h := make([]byte, 0, len(i)+32)
	h = append(h, i...)
	nb := make([]byte, 4)
	binary.LittleEndian.PutUint32(nb, nonce)
	h = append(h, nb...)
	h = append(h, make([]byte, 28)...)
	return h
}

var birthdayProblemText = []byte("Equihash is an asymmetric PoW based on the Generalised Birthday problem.")

func TestValidateSolution_KnownGood(t *testing.T) {
	h := header(birthdayProblemText, 1)
	soln := []int{2261, 15185, 36112, 104243, 23779, 118390, 118332, 130041, 32642, 69878, 76925, 80080, 45858, 116805, 92842, 111026, 15972, 115059, 85191, 90330, 68190, 122819, 81830, 91132, 23460, 49807, 52426, 80391, 69567, 114474, 104973, 122568}

	ok, err := ValidateSolution(96, 5, h, soln)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected solution to validate")
	}
}

func TestValidateSolution_SingleIndexChanged(t *testing.T) {
	h := header(birthdayProblemText, 1)
	soln := []int{2262, 15185, 36112, 104243, 23779, 118390, 118332, 130041, 32642, 69878, 76925, 80080, 45858, 116805, 92842, 111026, 15972, 115059, 85191, 90330, 68190, 122819, 81830, 91132, 23460, 49807, 52426, 80391, 69567, 114474, 104973, 122568}

	ok, err := ValidateSolution(96, 5, h, soln)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected mutated solution to fail validation")
	}
}

func TestValidateSolution_OrderingViolation(t *testing.T) {
	h := header(birthdayProblemText, 1)
	// First pair reversed; ordering requires indices[0] < indices[1].
	soln := []int{15185, 2261, 36112, 104243, 23779, 118390, 118332, 130041, 32642, 69878, 76925, 80080, 45858, 116805, 92842, 111026, 15972, 115059, 85191, 90330, 68190, 122819, 81830, 91132, 23460, 49807, 52426, 80391, 69567, 114474, 104973, 122568}

	ok, err := ValidateSolution(96, 5, h, soln)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected reordered solution to fail validation")
	}
}

func TestValidateSolution_DuplicateIndices(t *testing.T) {
	h := header(birthdayProblemText, 1)
	soln := []int{2261, 2261, 15185, 15185, 36112, 36112, 104243, 104243, 23779, 23779, 118390, 118390, 118332, 118332, 130041, 130041, 32642, 32642, 69878, 69878, 76925, 76925, 80080, 80080, 45858, 45858, 116805, 116805, 92842, 92842, 111026, 111026}

	_, err := ValidateSolution(96, 5, h, soln)
	if err == nil {
		t.Fatal("expected an error for duplicate indices")
	}
}

func TestValidateSolution_WrongSolutionLength(t *testing.T) {
	h := header(birthdayProblemText, 1)
	_, err := ValidateSolution(96, 5, h, []int{1, 2, 3})
	if err == nil {
		t.Fatal("expected an error for a short solution")
	}
}

func TestValidateSolution_EmptyHeader(t *testing.T) {
	_, err := ValidateSolution(96, 5, nil, []int{1, 2, 3, 4})
	if err == nil {
		t.Fatal("expected an error for an empty header")
	}
}

func TestValidateEquihashParamsRejectsBadShapes(t *testing.T) {
	cases := []struct {
		n, k int
	}{
		{0, 5},
		{96, 2},
		{97, 5},
		{90, 5},
		{200, 200},
	}
	for _, c := range cases {
		if err := validateEquihashParams(c.n, c.k); err == nil {
			t.Errorf("validateEquihashParams(%d, %d) = nil, want error", c.n, c.k)
		}
	}
}

func TestDecodeSolutionIndicesZeroFilled(t *testing.T) {
	// N=200,K=9 is the mainnet/testnet parameterization; decoding a
	// zero-filled solution of 2^K indices at 21 bits each (21 =
	// CollisionBitLength+1 for these parameters) must produce exactly
	// 2^K=512 indices, all zero.
	n, k := 200, 9
	indexBits := collisionLength(n, k) + 1
	count := solutionLength(k)
	packedLen := (count*indexBits + 7) / 8

	solution := make([]byte, packedLen)
	indices, err := DecodeSolutionIndices(n, k, solution)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indices) != count {
		t.Fatalf("got %d indices, want %d", len(indices), count)
	}
	for _, idx := range indices {
		if idx != 0 {
			t.Fatalf("zero-filled solution decoded to non-zero index %d", idx)
		}
	}
	_ = indexBits
}

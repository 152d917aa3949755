package blockchain

import "fmt"

// ErrorCode identifies a kind of error returned by the blockchain package,
// following the same typed-error idiom the teacher uses throughout its own
// blockchain package rather than returning bare fmt.Errorf values.
type ErrorCode int

const (
	// ErrPrevHashMismatch indicates a header's PrevBlock field does not
	// match the hash of the header it is being connected after.
	ErrPrevHashMismatch ErrorCode = iota

	// ErrBitsMismatch indicates a header's Bits field does not match the
	// target this package computed for its height.
	ErrBitsMismatch

	// ErrInsufficientWork indicates a header's hash does not satisfy its
	// own claimed target.
	ErrInsufficientWork

	// ErrInvalidEquihashSolution indicates a post-fork header's
	// Equihash solution failed validation.
	ErrInvalidEquihashSolution

	// ErrMissingAncestor indicates a targeting algorithm needed a header
	// at some earlier height that the supplied HeaderLookup could not
	// provide.
	ErrMissingAncestor

	// ErrInvalidHeight indicates an operation was asked to act on a
	// height it cannot handle, such as an LWMA target requested for a
	// height inside the averaging window.
	ErrInvalidHeight
)

var errorCodeStrings = map[ErrorCode]string{
	ErrPrevHashMismatch:        "ErrPrevHashMismatch",
	ErrBitsMismatch:            "ErrBitsMismatch",
	ErrInsufficientWork:        "ErrInsufficientWork",
	ErrInvalidEquihashSolution: "ErrInvalidEquihashSolution",
	ErrMissingAncestor:         "ErrMissingAncestor",
	ErrInvalidHeight:           "ErrInvalidHeight",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// RuleError identifies a header that violates a consensus rule this
// package checks. It carries an ErrorCode so callers can branch on the
// kind of failure without parsing the message text.
type RuleError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface.
func (e RuleError) Error() string {
	return e.Description
}

func ruleErrorf(code ErrorCode, format string, args ...interface{}) RuleError {
	return RuleError{ErrorCode: code, Description: fmt.Sprintf(format, args...)}
}

package headerfs

import "fmt"

// ErrorCode identifies a kind of error the headerfs package can return,
// following the same typed-error idiom package blockchain uses rather
// than bare fmt.Errorf values, but kept as its own set since these errors
// are about storage and branch topology, not header validity.
type ErrorCode int

const (
	// ErrBranchNotConnected indicates a header or chunk could not be
	// matched to any live branch's tip or interior. OpenBranch and the
	// Branch file operations also report open, lock, stat, truncate,
	// write and fsync failures under this code; there is no separate
	// I/O error code.
	ErrBranchNotConnected ErrorCode = iota

	// ErrSizeMismatch indicates a write did not land at the height the
	// branch's current size implies it should.
	ErrSizeMismatch

	// ErrHeaderTooShort indicates a read returned fewer bytes than a
	// full header at that height requires, almost always a sign of a
	// truncated or corrupt branch file.
	ErrHeaderTooShort

	// ErrUnknownCheckpoint indicates an operation referenced a branch
	// checkpoint that is not currently tracked by the manager.
	ErrUnknownCheckpoint

	// ErrInvalidHeight indicates a height outside the range a branch,
	// or the chain as a whole, can address.
	ErrInvalidHeight
)

var errorCodeStrings = map[ErrorCode]string{
	ErrBranchNotConnected: "ErrBranchNotConnected",
	ErrSizeMismatch:       "ErrSizeMismatch",
	ErrHeaderTooShort:     "ErrHeaderTooShort",
	ErrUnknownCheckpoint:  "ErrUnknownCheckpoint",
	ErrInvalidHeight:      "ErrInvalidHeight",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s, ok := errorCodeStrings[e]; ok {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError identifies a storage/topology failure distinct from a
// consensus-rule failure (those are blockchain.RuleError).
type StoreError struct {
	ErrorCode   ErrorCode
	Description string
}

// Error satisfies the error interface.
func (e StoreError) Error() string {
	return e.Description
}

func storeErrorf(code ErrorCode, format string, args ...interface{}) StoreError {
	return StoreError{ErrorCode: code, Description: fmt.Sprintf(format, args...)}
}

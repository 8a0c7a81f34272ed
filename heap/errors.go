package heap

import "fmt"

// Kind identifies a class of heap-level failure. Each kind carries a fixed,
// user-visible message, mirroring the static strings a caller presents
// verbatim.
type Kind int

const (
	// WrongVersion means the file was created by an incompatible major
	// version of this format.
	WrongVersion Kind = iota
	// FreeBlock means a read targeted a block whose free-bit is set.
	FreeBlock
	// FreeList means the in-file free chain is damaged (cycle, bad
	// size, or a link that runs past end of file).
	FreeList
	// InconsistentAvailList means the cached free-list shadow disagrees
	// with the in-file chain.
	InconsistentAvailList
	// InvalidAddress means an address was NIL or out of range.
	InvalidAddress
	// AssignFreeBlock means a write targeted a free block.
	AssignFreeBlock
	// FileSize means a grow operation would exceed MaxFileSize.
	FileSize
	// ReleaseFreeBlock means a release targeted an already-free block.
	ReleaseFreeBlock
	// ReleaseInvalidBlock means a release targeted an invalid address.
	ReleaseInvalidBlock
	// MergeInvalidBlock means a merge was attempted against a block
	// that was not itself free.
	MergeInvalidBlock
)

var messages = map[Kind]string{
	WrongVersion:           "file was created by an incompatible version of this program",
	FreeBlock:              "internal database error: attempted to read a free block",
	FreeList:                "this database has a damaged free list",
	InconsistentAvailList:  "this database has an inconsistent list of free blocks",
	InvalidAddress:         "attempted to read from an invalid dbaddress",
	AssignFreeBlock:        "internal database error: attempted to assign to a free block",
	FileSize:               "internal database error: attempted to grow the file beyond the maximum database size",
	ReleaseFreeBlock:       "internal database error: attempted to release a free block",
	ReleaseInvalidBlock:    "internal database error: attempted to release an invalid block",
	MergeInvalidBlock:      "internal database error: attempted to merge with an invalid block",
}

// Error is a heap-level failure tagged with its Kind.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string {
	msg, ok := messages[e.Kind]
	if !ok {
		return fmt.Sprintf("heap error (kind %d)", e.Kind)
	}
	return msg
}

// Is reports whether target is a *Error with the same Kind, so callers can
// use errors.Is(err, heap.NewError(heap.FreeBlock)) or compare kinds
// directly via errors.As.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// NewError constructs a heap Error of the given Kind.
func NewError(kind Kind) error {
	return &Error{Kind: kind}
}

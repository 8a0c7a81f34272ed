package odb

import "fmt"

// Kind identifies a class of object-store-level failure, as distinct from
// the lower heap-level failures in package heap.
type Kind int

const (
	// BadDatabaseVersion means the ODB view's version field was not one
	// this package understands (2 or 3).
	BadDatabaseVersion Kind = iota
)

var messages = map[Kind]string{
	BadDatabaseVersion: "the version number of this database file is not recognized by this version of Brave Flea",
}

// Error is an object-store-level failure tagged with its Kind.
type Error struct {
	Kind Kind
}

func (e *Error) Error() string {
	msg, ok := messages[e.Kind]
	if !ok {
		return fmt.Sprintf("odb error (kind %d)", e.Kind)
	}
	return msg
}

// Is reports whether target is an *Error with the same Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

// NewError constructs an odb Error of the given Kind.
func NewError(kind Kind) error {
	return &Error{Kind: kind}
}

// errShortPayload reports a structural decode failure: a packed region
// was shorter than its own framing promised.
func errShortPayload(what string) error {
	return fmt.Errorf("%s: truncated", what)
}

// errNoSuchSymbol reports a lookup against a name no TableNode holds.
func errNoSuchSymbol(name string) error {
	return fmt.Errorf("no symbol named %q", name)
}

// errWrongKind reports that a symbol's value does not hold the kind a
// caller tried to resolve it as.
func errWrongKind(name, want string) error {
	return fmt.Errorf("symbol %q does not hold a %s", name, want)
}

// errNoSuchWindow reports a WindowInfo index outside 0..6.
func errNoSuchWindow(i int) error {
	return fmt.Errorf("window index %d out of range", i)
}

package odb

// TableNode is a symbol's resident state within a Table: its name (the
// hash key), its typed value, and its flag bits.
type TableNode struct {
	Name  string
	Value ValueRecord

	// ValueVersion is the packed record's value_version byte (already
	// shifted for pre-version-2 files), kept for write-back fidelity.
	// It has no read-side meaning.
	ValueVersion byte

	Locked              bool
	Protected           bool
	DontSave            bool
	UnresolvedAddress   bool
	DisposeWhenUnlocked bool
	LockCount           int

	// These hold the lazy cell for pointer-valued kinds: whenever a
	// symbol's value type denotes a nested table, string, or blob, a
	// Variable is created here in the on-disk state at unpack time. At
	// most one is non-nil, matching Value.Kind. External values have no
	// decode function defined here (the format they hold is
	// host-managed) and so are read, un-wrapped, via
	// Table.ResolveExternal instead.
	table  *Variable[*Table]
	str    *Variable[string]
	binary *Variable[[]byte]
}

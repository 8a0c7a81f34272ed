package odb

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/tedhoward/braveflea/heap"
	"github.com/tedhoward/braveflea/internal/macroman"
	"github.com/tedhoward/braveflea/internal/utils"
)

// recordHeaderSize is the size, in bytes, of a packed table's 16-byte
// header: version, sort_order, time_created, time_last_saved, flags.
const recordHeaderSize = 16

// symbolRecordSize is the size, in bytes, of one packed symbol record:
// index_key, value_type, value_version, data[4].
const symbolRecordSize = 10

// flagsForcedZeroVersion is the packed-table header version at which
// flags are forced to zero on read.
const flagsForcedZeroVersion = 2

// Table metadata flag bits. No reference fixture was available to
// recover their true on-disk bit positions, so they are assigned here,
// low bit first in field-declaration order, as a table-driven, documented
// convention — the same approach taken for valueTypeCodes.
const (
	flagLocked = 1 << iota
	flagWindowOpen
	flagNoPurge
	flagLocal
	flagChained
	flagDisposeWhenUnchained
	flagWithValueCount
	flagVerbsRequireWindow
	flagMayAffectDisplay
	flagSubsDirty
)

// tableRef is a non-owning back-pointer: rather than a retained pointer
// to the owning TableNode (which would entangle ownership in a tree of
// otherwise-owned Tables), a child Table records which key of which
// parent Table it was reached through. ResolveTable sets it.
type tableRef struct {
	parent *Table
	key    string
}

// Table is a symbol table: a mapping from name to TableNode, a sorted key
// list kept current by sortNodes, and its own metadata fields. A Table is
// a node in an object graph: its TableNodes may hold further Tables as
// lazily-resolved values.
type Table struct {
	nodes      map[string]*TableNode
	sortedKeys []string
	needSort   bool

	SortOrder     uint16
	TimeCreated   time.Time
	TimeLastSaved time.Time

	Dirty                bool
	Locked               bool
	WindowOpen           bool
	NoPurge              bool
	Local                bool
	Chained              bool
	DisposeWhenUnchained bool
	WithValueCount       bool
	VerbsRequireWindow   bool
	MayAffectDisplay     bool
	SubsDirty            bool
	TempStackCount       int

	myNode tableRef // non-owning; see tableRef doc.
}

// New returns an empty table, timestamped now.
func New() *Table {
	now := time.Now().UTC()
	return &Table{
		nodes:         make(map[string]*TableNode),
		TimeCreated:   now,
		TimeLastSaved: now,
	}
}

// LoadSystemTable loads the root table of a database: NIL yields a fresh
// empty table; otherwise the block at addr is read and unpacked
// immediately (the table itself is always loaded eagerly once its
// address is known — only its *nested* sub-tables and blobs stay lazy,
// each behind their own Variable).
func LoadSystemTable(h *heap.Heap, addr heap.Address) (*Table, error) {
	if addr == heap.NIL {
		return New(), nil
	}
	payload, err := h.ReadBlock(addr)
	if err != nil {
		return nil, utils.WrapError("reading table block", err)
	}
	t := New()
	if err := t.unpack(payload); err != nil {
		return nil, err
	}
	t.sortNodes()
	return t, nil
}

// unpack decodes a packed table block's payload: split into records and
// name pool via the leading 4-byte length, decode the optional 16-byte
// header, then walk 10-byte symbol records inserting a TableNode per
// non-empty name.
func (t *Table) unpack(payload []byte) error {
	if len(payload) < 4 {
		return utils.WrapError("unpacking table", errShortPayload("table length prefix"))
	}
	recordsLen := binary.BigEndian.Uint32(payload[0:4])
	recordsStart := 4
	recordsEnd := recordsStart + int(recordsLen)
	if recordsEnd > len(payload) {
		return utils.WrapError("unpacking table", errShortPayload("records region"))
	}
	records := payload[recordsStart:recordsEnd]
	namePool := payload[recordsEnd:]

	version, symbolRecords, err := t.unpackHeader(records)
	if err != nil {
		return utils.WrapError("unpacking table", err)
	}

	for off := 0; off+symbolRecordSize <= len(symbolRecords); off += symbolRecordSize {
		rec := symbolRecords[off : off+symbolRecordSize]
		if err := t.unpackSymbolRecord(rec, namePool, version); err != nil {
			return utils.WrapError("unpacking symbol record", err)
		}
	}

	return nil
}

// unpackHeader decodes the optional 16-byte packed-table header in place
// onto t and returns the remaining symbol-records region. If the leading
// version word is 0, the file predates the header: those 16 bytes are in
// fact the start of the first symbol record and are folded back into the
// returned region, with creation/save times defaulted to "now". If
// version == 2, flags are forced to zero.
func (t *Table) unpackHeader(records []byte) (version uint16, symbolRecords []byte, err error) {
	if len(records) < 2 {
		now := time.Now().UTC()
		t.TimeCreated = now
		t.TimeLastSaved = now
		return 0, records, nil
	}

	version = binary.BigEndian.Uint16(records[0:2])
	if version == 0 {
		now := time.Now().UTC()
		t.TimeCreated = now
		t.TimeLastSaved = now
		return 0, records, nil
	}

	if len(records) < recordHeaderSize {
		return 0, nil, errShortPayload("table header")
	}
	t.SortOrder = binary.BigEndian.Uint16(records[2:4])
	t.TimeCreated = classicMacTime(binary.BigEndian.Uint32(records[4:8]))
	t.TimeLastSaved = classicMacTime(binary.BigEndian.Uint32(records[8:12]))
	flags := binary.BigEndian.Uint32(records[12:16])
	if version == flagsForcedZeroVersion {
		flags = 0
	}
	t.applyFlags(flags)

	return version, records[recordHeaderSize:], nil
}

// unpackSymbolRecord decodes one 10-byte symbol record and, if its name
// is non-empty, inserts a TableNode for it.
func (t *Table) unpackSymbolRecord(rec []byte, namePool []byte, version uint16) error {
	indexKey := binary.BigEndian.Uint32(rec[0:4])
	valueTypeByte := rec[4]
	valueVersion := rec[5]
	if version < 2 {
		valueVersion >>= 4
	}
	var data [4]byte
	copy(data[:], rec[6:10])

	if int(indexKey) >= len(namePool) {
		return errShortPayload("name pool offset")
	}
	name := macroman.DecodeLengthPrefixed(namePool[indexKey:])
	if name == "" {
		return nil
	}

	kind, ok := decodeValueType(valueTypeByte)
	if !ok {
		kind = KindUninitialized
	}

	node := &TableNode{
		Name:         name,
		Value:        decodeValueRecord(kind, data),
		ValueVersion: valueVersion,
	}

	switch kind {
	case KindTable:
		node.table = NewOnDisk(node.Value.Address, unpackTableValue)
		node.UnresolvedAddress = node.Value.Address != heap.NIL
	case KindString:
		node.str = NewOnDisk(node.Value.Address, decodeLengthPrefixedBlock)
		node.UnresolvedAddress = node.Value.Address != heap.NIL
	case KindBytes:
		node.binary = NewOnDisk(node.Value.Address, decodeRawBlock)
		node.UnresolvedAddress = node.Value.Address != heap.NIL
	}

	t.nodes[name] = node
	t.needSort = true
	return nil
}

// unpackTableValue adapts Table.unpack to the Decoder[*Table] shape
// Variable[*Table] requires.
func unpackTableValue(data []byte) (*Table, error) {
	t := New()
	if err := t.unpack(data); err != nil {
		return nil, err
	}
	t.sortNodes()
	return t, nil
}

// decodeLengthPrefixedBlock adapts macroman.DecodeLengthPrefixed to the
// Decoder[string] shape a string value's Variable requires.
func decodeLengthPrefixedBlock(data []byte) (string, error) {
	return macroman.DecodeLengthPrefixed(data), nil
}

// decodeRawBlock adapts a binary blob's payload to the Decoder[[]byte]
// shape a bytes value's Variable requires: the entire block payload is
// the value, verbatim.
func decodeRawBlock(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// applyFlags decomposes a packed table's flags word into Table's
// individual booleans. Dirty and needSort are runtime-only (they
// describe state since load, not on-disk state) and are left alone;
// TempStackCount has no on-disk representation (it is a
// scripting-runtime concept outside this package) and is left at its
// zero value.
func (t *Table) applyFlags(flags uint32) {
	t.Locked = flags&flagLocked != 0
	t.WindowOpen = flags&flagWindowOpen != 0
	t.NoPurge = flags&flagNoPurge != 0
	t.Local = flags&flagLocal != 0
	t.Chained = flags&flagChained != 0
	t.DisposeWhenUnchained = flags&flagDisposeWhenUnchained != 0
	t.WithValueCount = flags&flagWithValueCount != 0
	t.VerbsRequireWindow = flags&flagVerbsRequireWindow != 0
	t.MayAffectDisplay = flags&flagMayAffectDisplay != 0
	t.SubsDirty = flags&flagSubsDirty != 0
}

// sortNodes rebuilds sortedKeys from the current node set using
// lexicographic comparison on decoded Unicode names.
func (t *Table) sortNodes() {
	keys := make([]string, 0, len(t.nodes))
	for k := range t.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	t.sortedKeys = keys
	t.needSort = false
}

// Get returns the node for name, or false if no symbol by that name
// exists.
func (t *Table) Get(name string) (*TableNode, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// SortedKeys returns the table's symbol names in sorted order, resorting
// first if a mutation since the last sort left them stale.
func (t *Table) SortedKeys() []string {
	if t.needSort {
		t.sortNodes()
	}
	out := make([]string, len(t.sortedKeys))
	copy(out, t.sortedKeys)
	return out
}

// Len returns the number of symbols directly held by this table.
func (t *Table) Len() int {
	return len(t.nodes)
}

// ResolveTable resolves the sub-table held by the symbol name, reading
// and unpacking its block on first access. It fails if name does not
// exist or does not hold a KindTable value.
func (t *Table) ResolveTable(h *heap.Heap, name string) (*Table, error) {
	node, ok := t.Get(name)
	if !ok {
		return nil, utils.WrapError("resolving sub-table", errNoSuchSymbol(name))
	}
	if node.Value.Kind != KindTable || node.table == nil {
		return nil, utils.WrapError("resolving sub-table", errWrongKind(name, "table"))
	}
	child, err := node.table.Resolve(h)
	if err != nil {
		return nil, err
	}
	child.myNode = tableRef{parent: t, key: name}
	node.UnresolvedAddress = false
	return child, nil
}

// ResolveString resolves the legacy-encoded string held by the symbol
// name, reading its block on first access. It fails if name does not
// exist or does not hold a KindString value.
func (t *Table) ResolveString(h *heap.Heap, name string) (string, error) {
	node, ok := t.Get(name)
	if !ok {
		return "", utils.WrapError("resolving string", errNoSuchSymbol(name))
	}
	if node.Value.Kind != KindString || node.str == nil {
		return "", utils.WrapError("resolving string", errWrongKind(name, "string"))
	}
	s, err := node.str.Resolve(h)
	if err != nil {
		return "", err
	}
	node.UnresolvedAddress = false
	return s, nil
}

// ResolveBytes resolves the binary blob held by the symbol name, reading
// its block on first access. It fails if name does not exist or does not
// hold a KindBytes value.
func (t *Table) ResolveBytes(h *heap.Heap, name string) ([]byte, error) {
	node, ok := t.Get(name)
	if !ok {
		return nil, utils.WrapError("resolving bytes", errNoSuchSymbol(name))
	}
	if node.Value.Kind != KindBytes || node.binary == nil {
		return nil, utils.WrapError("resolving bytes", errWrongKind(name, "bytes value"))
	}
	b, err := node.binary.Resolve(h)
	if err != nil {
		return nil, err
	}
	node.UnresolvedAddress = false
	return b, nil
}

// ResolveExternal reads the raw payload of an External-kind symbol's
// block, verbatim. External values are host-managed opaque blocks: this
// package does not interpret their contents, so no Variable decoder is
// defined for them and the block is read directly rather than cached
// behind a lazy cell.
func (t *Table) ResolveExternal(h *heap.Heap, name string) ([]byte, error) {
	node, ok := t.Get(name)
	if !ok {
		return nil, utils.WrapError("resolving external value", errNoSuchSymbol(name))
	}
	if node.Value.Kind != KindExternal {
		return nil, utils.WrapError("resolving external value", errWrongKind(name, "external value"))
	}
	return h.ReadBlock(node.Value.Address)
}

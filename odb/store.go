package odb

import (
	"encoding/binary"
	"os"

	"github.com/tedhoward/braveflea/heap"
	"github.com/tedhoward/braveflea/internal/macroman"
	"github.com/tedhoward/braveflea/internal/utils"
)

// windowInfoCount is the number of WindowInfo records carried in the ODB
// view block.
const windowInfoCount = 6

// odb view flag bits.
const (
	odbFlagDisabled      = 0x8000
	odbFlagPopupDisabled = 0x4000
	odbFlagBigWindow     = 0x2000
)

// supportedODBVersions are the only odb_version values this package
// understands.
var supportedODBVersions = map[uint16]bool{2: true, 3: true}

// Store is the top-level façade over an opened Frontier ODB file: the
// block heap, the root symbol table, and the window/script metadata read
// from the ODB view block.
type Store struct {
	heap *heap.Heap

	odbVersion        uint16
	rootTableAddress  heap.Address
	windows           [windowInfoCount]WindowInfo
	scriptString      string
	primaryAgentIndex uint16

	flagDisabled  bool
	popupDisabled bool
	bigWindow     bool

	root *Table
}

// Open opens the file at path and loads its object store: the block
// heap, the ODB view, and the root table.
func Open(path string) (*Store, error) {
	//nolint:gosec // G304: caller-provided path is the whole point of this API.
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError("opening database file", err)
	}
	store, err := Load(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return store, nil
}

// Load opens the heap, reads the view-0 ODB block, extracts the root
// table address and window/script metadata, and eagerly loads the root
// table.
func Load(file *os.File) (*Store, error) {
	h, err := heap.Open(file, false)
	if err != nil {
		return nil, err
	}

	rootBlockAddr, err := h.View(0)
	if err != nil {
		return nil, err
	}

	payload, err := h.ReadBlock(rootBlockAddr)
	if err != nil {
		return nil, utils.WrapError("reading odb view block", err)
	}
	if len(payload) < 2 {
		return nil, utils.WrapError("reading odb view block", errShortPayload("odb version"))
	}

	odbVersion := binary.BigEndian.Uint16(payload[0:2])
	if !supportedODBVersions[odbVersion] {
		return nil, NewError(BadDatabaseVersion)
	}

	s := &Store{heap: h, odbVersion: odbVersion}

	if len(payload) < 386 {
		return nil, utils.WrapError("reading odb view block", errShortPayload("odb view"))
	}

	s.rootTableAddress = heap.Address(binary.BigEndian.Uint32(payload[2:6]))

	for i := 0; i < windowInfoCount; i++ {
		off := 6 + i*WindowInfoSize
		s.windows[i] = decodeWindowInfo(payload[off : off+WindowInfoSize])
	}

	scriptStringAddress := heap.Address(binary.BigEndian.Uint32(payload[378:382]))
	flags := binary.BigEndian.Uint16(payload[382:384])
	s.primaryAgentIndex = binary.BigEndian.Uint16(payload[384:386])

	if scriptStringAddress != heap.NIL {
		scriptPayload, err := h.ReadBlock(scriptStringAddress)
		if err != nil {
			return nil, utils.WrapError("reading script string block", err)
		}
		s.scriptString = macroman.DecodeFixed(scriptPayload)
	}

	s.flagDisabled = flags&odbFlagDisabled != 0
	s.popupDisabled = flags&odbFlagPopupDisabled != 0
	s.bigWindow = flags&odbFlagBigWindow != 0

	root, err := LoadSystemTable(h, s.rootTableAddress)
	if err != nil {
		return nil, utils.WrapError("loading root table", err)
	}
	s.root = root

	return s, nil
}

// RootTable returns the store's root symbol table.
func (s *Store) RootTable() *Table {
	return s.root
}

// ScriptString returns the decoded contents of the database's script
// string block, or the empty string if none was set.
func (s *Store) ScriptString() string {
	return s.scriptString
}

// WindowInfo returns the i'th window metadata record, i in 0..6.
func (s *Store) WindowInfo(i int) (WindowInfo, error) {
	if i < 0 || i >= windowInfoCount {
		return WindowInfo{}, errNoSuchWindow(i)
	}
	return s.windows[i], nil
}

// FlagDisabled reports the ODB view's flag-disabled bit.
func (s *Store) FlagDisabled() bool { return s.flagDisabled }

// PopupDisabled reports the ODB view's popup-disabled bit.
func (s *Store) PopupDisabled() bool { return s.popupDisabled }

// BigWindow reports the ODB view's big-window bit.
func (s *Store) BigWindow() bool { return s.bigWindow }

// PrimaryAgentIndex returns the ODB view's primary_agent_index field.
func (s *Store) PrimaryAgentIndex() uint16 { return s.primaryAgentIndex }

// Heap returns the underlying block heap, for callers that need to
// resolve lazy sub-tables reached through the root table (e.g.
// Table.ResolveTable).
func (s *Store) Heap() *heap.Heap {
	return s.heap
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.heap.Close()
}

// Package heap implements the block-heap ("DB") layer of a legacy Frontier
// object database file: a byte-addressed container over a random-access
// file exposing typed blocks at 32-bit addresses, with an in-memory shadow
// of the on-disk free list and version-compatibility enforcement.
package heap

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/tedhoward/braveflea/internal/utils"
)

// version is the current database-record version; Open normalizes
// older-but-compatible files up to it in memory.
const version byte = 6

// firstVersionWithCachedShadow is the earliest version_number that carries
// a usable avail_list_block pointer.
const firstVersionWithCachedShadow byte = 6

// viewCount is the number of root-view addresses carried in the database
// record.
const viewCount = 3

// recordSize is the fixed size of the database record at the start of the
// file; it is not a block and has no header.
const recordSize = 88

const dirtyMask uint16 = 0x0001
const majorVersionMask byte = 0xf0

type shadowEntry struct {
	Address Address
	Size    uint32
}

// Heap is an open block heap: the database record plus the file handle it
// governs. It is the single owner of the file's read cursor.
type Heap struct {
	file *os.File

	systemID         byte
	versionNumber    byte
	availListHead    Address
	dirty            bool
	views            [viewCount]Address
	longVersionMajor uint16
	longVersionMinor uint16
	availListBlock   Address

	shadow   []shadowEntry
	readOnly bool
}

// Open reads the 88-byte database record from file, validates version
// compatibility, and establishes the free-list shadow.
func Open(file *os.File, readOnly bool) (*Heap, error) {
	h := &Heap{file: file, readOnly: readOnly}

	buf := utils.GetBuffer(recordSize)
	defer utils.ReleaseBuffer(buf)

	if err := h.read(0, buf); err != nil {
		return nil, utils.WrapError("reading database record", err)
	}

	h.systemID = buf[0]
	h.versionNumber = buf[1]
	h.availListHead = Address(binary.BigEndian.Uint32(buf[2:6]))
	// bytes 6-7 (legacy oldfnumdatabase) ignored.

	flags := binary.BigEndian.Uint16(buf[8:10])
	h.dirty = flags&dirtyMask != 0

	for i := 0; i < viewCount; i++ {
		off := 10 + i*4
		h.views[i] = Address(binary.BigEndian.Uint32(buf[off : off+4]))
	}
	// bytes 22-33 (legacy handle/fnum/header-length fields) ignored.

	h.longVersionMajor = binary.BigEndian.Uint16(buf[34:36])
	h.longVersionMinor = binary.BigEndian.Uint16(buf[36:38])
	h.availListBlock = Address(binary.BigEndian.Uint32(buf[38:42]))
	// bytes 42-87 (legacy shadow handle, read-only flag, growth space) ignored.

	if h.versionNumber != version {
		if h.versionNumber&majorVersionMask != version&majorVersionMask {
			return nil, NewError(WrongVersion)
		}
		if h.versionNumber < firstVersionWithCachedShadow {
			h.availListBlock = NIL
		}
		h.versionNumber = version
		h.dirty = true
	}

	if err := h.reloadFreeListShadow(); err != nil {
		return nil, err
	}

	return h, nil
}

// View returns the i'th root-view address. View 0 is always the ODB view.
func (h *Heap) View(i int) (Address, error) {
	if i < 0 || i >= viewCount {
		return NIL, NewError(InvalidAddress)
	}
	return h.views[i], nil
}

// GetEOF returns the current file length without disturbing the logical
// read cursor observed by subsequent calls.
func (h *Heap) GetEOF() (Address, error) {
	pos, err := h.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return NIL, utils.WrapError("saving cursor", err)
	}
	end, err := h.file.Seek(0, io.SeekEnd)
	if err != nil {
		return NIL, utils.WrapError("seeking to eof", err)
	}
	if _, err := h.file.Seek(pos, io.SeekStart); err != nil {
		return NIL, utils.WrapError("restoring cursor", err)
	}
	return Address(end), nil
}

// ReadBlock reads a block's header and returns its payload bytes.
func (h *Heap) ReadBlock(addr Address) ([]byte, error) {
	hdr, err := h.readHeader(addr)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, hdr.PayloadLen())
	if err := h.read(uint32(addr)+HeaderSize, payload); err != nil {
		return nil, utils.WrapError("reading block payload", err)
	}
	return payload, nil
}

// ReadBlockInto reads exactly byteCount payload bytes of the block at addr
// into buf. The caller must ensure byteCount does not exceed the block's
// payload length.
func (h *Heap) ReadBlockInto(addr Address, byteCount uint32, buf []byte) error {
	if _, err := h.readHeader(addr); err != nil {
		return err
	}
	if err := h.read(uint32(addr)+HeaderSize, buf[:byteCount]); err != nil {
		return utils.WrapError("reading block payload", err)
	}
	return nil
}

// readHeader validates addr and returns the decoded header of the block
// there.
func (h *Heap) readHeader(addr Address) (Header, error) {
	if addr == NIL {
		return Header{}, NewError(InvalidAddress)
	}
	buf := utils.GetBuffer(HeaderSize)
	defer utils.ReleaseBuffer(buf)
	if err := h.read(uint32(addr), buf); err != nil {
		return Header{}, utils.WrapError("reading block header", err)
	}
	hdr := ParseHeader(buf)
	if hdr.Free {
		return Header{}, NewError(FreeBlock)
	}
	return hdr, nil
}

// read seeks to address and reads exactly len(buf) bytes into it. Unlike
// the legacy source (which read max(len(buf), byteCount) bytes and could
// silently under-fill its caller's buffer), this always fills buf exactly
// or fails.
func (h *Heap) read(address uint32, buf []byte) error {
	if _, err := h.file.Seek(int64(address), io.SeekStart); err != nil {
		return err
	}
	_, err := io.ReadFull(h.file, buf)
	return err
}

// reloadFreeListShadow rebuilds the in-memory free-list shadow from the
// on-disk cache when there is one, and otherwise by walking the in-file
// chain. A cache that fails its consistency checks is an error; the chain
// is not walked in that case.
func (h *Heap) reloadFreeListShadow() error {
	consistent, cached, err := h.readCachedShadow()
	if err != nil {
		h.shadow = nil
		return err
	}
	if consistent {
		h.shadow = cached
		return nil
	}

	var shadow []shadowEntry
	cursor := h.availListHead
	eof, err := h.GetEOF()
	if err != nil {
		h.shadow = nil
		return err
	}

	seen := make(map[Address]bool)
	for cursor != NIL {
		if seen[cursor] {
			h.shadow = nil
			return NewError(FreeList)
		}
		seen[cursor] = true
		node, err := h.readAvailableNode(cursor)
		if err != nil {
			h.shadow = nil
			return err
		}
		if !node.Header.Free || uint32(cursor)+node.Header.Size > uint32(eof) {
			h.shadow = nil
			return NewError(FreeList)
		}
		shadow = append(shadow, shadowEntry{Address: cursor, Size: node.Header.Size})
		cursor = node.Next
	}

	h.shadow = shadow
	return nil
}

// readAvailableNode reads the header and forward link of the free block at
// addr, without the free-bit check that ReadBlock applies (a free block is
// exactly what this reads).
func (h *Heap) readAvailableNode(addr Address) (AvailableNode, error) {
	buf := utils.GetBuffer(HeaderSize + 4)
	defer utils.ReleaseBuffer(buf)
	if err := h.read(uint32(addr), buf); err != nil {
		return AvailableNode{}, utils.WrapError("reading free block", err)
	}
	hdr := ParseHeader(buf[:HeaderSize])
	next := Address(binary.BigEndian.Uint32(buf[HeaderSize : HeaderSize+4]))
	return AvailableNode{Header: hdr, Next: next}, nil
}

// readCachedShadow reads the serialized shadow at availListBlock, if any.
// It reports whether the cache is present and internally consistent; an
// absent cache is not an error.
func (h *Heap) readCachedShadow() (consistent bool, shadow []shadowEntry, err error) {
	if h.availListBlock == NIL {
		return false, nil, nil
	}

	raw, err := h.ReadBlock(h.availListBlock)
	if err != nil {
		return false, nil, err
	}

	var entries []shadowEntry
	for off := 0; off+8 <= len(raw); off += 8 {
		addr := Address(binary.BigEndian.Uint32(raw[off : off+4]))
		if addr == NIL {
			continue
		}
		size := binary.BigEndian.Uint32(raw[off+4 : off+8])
		entries = append(entries, shadowEntry{Address: addr, Size: size})
	}

	if len(entries) == 0 {
		return false, nil, NewError(InconsistentAvailList)
	}
	if entries[0].Address != h.availListHead {
		return false, nil, NewError(InconsistentAvailList)
	}

	head, err := h.readAvailableNode(entries[0].Address)
	if err != nil {
		return false, nil, NewError(InconsistentAvailList)
	}
	if !head.Header.Free {
		return false, nil, NewError(InconsistentAvailList)
	}
	eof, err := h.GetEOF()
	if err != nil {
		return false, nil, err
	}
	if uint32(entries[0].Address)+head.Header.Size > uint32(eof) {
		return false, nil, NewError(InconsistentAvailList)
	}

	return true, entries, nil
}

// FreeListShadow returns a copy of the in-memory free-list shadow as
// {address, size} pairs, in chain order.
func (h *Heap) FreeListShadow() [][2]uint32 {
	out := make([][2]uint32, len(h.shadow))
	for i, e := range h.shadow {
		out[i] = [2]uint32{uint32(e.Address), e.Size}
	}
	return out
}

// Close releases the underlying file handle.
func (h *Heap) Close() error {
	return h.file.Close()
}

// IsDirty reports whether the in-memory database record has unsaved
// changes (e.g. a version upgrade performed during Open).
func (h *Heap) IsDirty() bool {
	return h.dirty
}

package odb

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

const headerSize = 8
const freeBit = 0x80000000

// buildRecord builds the 88-byte fixed database record heap.Open expects.
func buildRecord(systemID, versionNumber byte, availListHead uint32, dirty bool, views [3]uint32, longMajor, longMinor, availListBlock uint32) []byte {
	buf := make([]byte, 88)
	buf[0] = systemID
	buf[1] = versionNumber
	binary.BigEndian.PutUint32(buf[2:6], availListHead)
	var flags uint16
	if dirty {
		flags |= 0x0001
	}
	binary.BigEndian.PutUint16(buf[8:10], flags)
	for i, v := range views {
		off := 10 + i*4
		binary.BigEndian.PutUint32(buf[off:off+4], v)
	}
	binary.BigEndian.PutUint16(buf[34:36], uint16(longMajor))
	binary.BigEndian.PutUint16(buf[36:38], uint16(longMinor))
	binary.BigEndian.PutUint32(buf[38:42], availListBlock)
	return buf
}

// buildBlock returns an encoded live or free block: an 8-byte header
// followed by payload.
func buildBlock(free bool, variance uint32, payload []byte) []byte {
	size := uint32(headerSize) + uint32(len(payload)) + variance
	sizeAndFree := size
	if free {
		sizeAndFree |= freeBit
	}
	buf := make([]byte, 0, headerSize+len(payload))
	head := make([]byte, headerSize)
	binary.BigEndian.PutUint32(head[0:4], sizeAndFree)
	binary.BigEndian.PutUint32(head[4:8], variance)
	buf = append(buf, head...)
	buf = append(buf, payload...)
	return buf
}

func writeTempFile(t *testing.T, data []byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "braveflea-*.odb")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// symbolRecord builds one 10-byte packed symbol record.
func symbolRecord(indexKey uint32, valueType, valueVersion byte, data [4]byte) []byte {
	rec := make([]byte, 10)
	binary.BigEndian.PutUint32(rec[0:4], indexKey)
	rec[4] = valueType
	rec[5] = valueVersion
	copy(rec[6:10], data[:])
	return rec
}

// namePoolEntry returns a length-prefixed legacy-encoded name, ASCII only
// (identity-mapped under MacRoman in the low half of the codepage).
func namePoolEntry(name string) []byte {
	out := make([]byte, 0, len(name)+1)
	out = append(out, byte(len(name)))
	out = append(out, []byte(name)...)
	return out
}

// buildPackedTableBlock assembles a packed table payload: 4-byte records
// length, the 16-byte header (always written; unpack reads it as a header
// for any nonzero version) plus symbol records, then the name pool.
func buildPackedTableBlock(version, sortOrder uint16, timeCreated, timeLastSaved, flags uint32, symbols [][]byte, namePool []byte) []byte {
	header := make([]byte, 16)
	binary.BigEndian.PutUint16(header[0:2], version)
	binary.BigEndian.PutUint16(header[2:4], sortOrder)
	binary.BigEndian.PutUint32(header[4:8], timeCreated)
	binary.BigEndian.PutUint32(header[8:12], timeLastSaved)
	binary.BigEndian.PutUint32(header[12:16], flags)

	records := append([]byte{}, header...)
	for _, s := range symbols {
		records = append(records, s...)
	}

	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(records)))
	out = append(out, records...)
	out = append(out, namePool...)
	return out
}

package odb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tedhoward/braveflea/heap"
)

func TestNew_EmptyTableTimestamped(t *testing.T) {
	table := New()
	assert.Equal(t, 0, table.Len())
	assert.False(t, table.TimeCreated.IsZero())
	assert.Equal(t, table.TimeCreated, table.TimeLastSaved)
}

func TestLoadSystemTable_NilAddressReturnsEmptyTable(t *testing.T) {
	record := buildRecord(1, 6, 0, false, [3]uint32{0, 0, 0}, 0, 0, 0)
	f := writeTempFile(t, record)
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, heap.NIL)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func intData(v int32) [4]byte {
	var d [4]byte
	binary.BigEndian.PutUint32(d[:], uint32(v))
	return d
}

func TestUnpack_SingleIntSymbol(t *testing.T) {
	pool := namePoolEntry("count")
	sym := symbolRecord(0, 2 /* KindInt code */, 0, intData(42))
	payload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{sym}, pool)

	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	node, ok := table.Get("count")
	require.True(t, ok)
	assert.Equal(t, KindInt, node.Value.Kind)
	assert.Equal(t, int32(42), node.Value.Int)
}

func TestUnpack_EmptyNameSkipsSlot(t *testing.T) {
	pool := append(namePoolEntry(""), namePoolEntry("real")...)
	emptySym := symbolRecord(0, 2, 0, intData(1))
	realSym := symbolRecord(uint32(len(namePoolEntry(""))), 2, 0, intData(2))
	payload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{emptySym, realSym}, pool)

	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)
	assert.Equal(t, 1, table.Len())
	_, ok := table.Get("real")
	assert.True(t, ok)
}

func TestUnpack_VersionZeroHeaderlessTable(t *testing.T) {
	// version == 0: no 16-byte header was ever written; the whole
	// records region is symbol records from byte 0.
	pool := namePoolEntry("x")
	sym := symbolRecord(0, 2, 0, intData(7))
	records := sym
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(len(records)))
	payload = append(payload, records...)
	payload = append(payload, pool...)

	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)
	node, ok := table.Get("x")
	require.True(t, ok)
	assert.Equal(t, int32(7), node.Value.Int)
}

func TestUnpack_Version2ForcesFlagsZero(t *testing.T) {
	payload := buildPackedTableBlock(2, 3, 0, 0, 0xFFFFFFFF, nil, nil)
	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)
	assert.False(t, table.Locked)
	assert.False(t, table.NoPurge)
	assert.Equal(t, uint16(3), table.SortOrder)
}

func TestUnpack_SortedKeysAreLexicographic(t *testing.T) {
	pool := append(namePoolEntry("zeta"), namePoolEntry("alpha")...)
	zetaOff := uint32(0)
	alphaOff := uint32(len(namePoolEntry("zeta")))
	symZeta := symbolRecord(zetaOff, 2, 0, intData(1))
	symAlpha := symbolRecord(alphaOff, 2, 0, intData(2))
	payload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{symZeta, symAlpha}, pool)

	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, table.SortedKeys())
}

func TestUnpack_MacRomanNameDecoded(t *testing.T) {
	// name bytes: length 3, 0xE9 ('E'-grave per this codepage), 'a', 'n'.
	pool := []byte{0x03, 0xE9, 0x61, 0x6E}
	sym := symbolRecord(0, 2, 0, intData(1))
	payload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{sym}, pool)

	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)
	_, ok := table.Get(string(rune(0x00C8)) + "an")
	assert.True(t, ok)
}

func TestResolveTable_LazyLoadsSubTable(t *testing.T) {
	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	rootAddr := uint32(len(record))

	// Blocks only embed addresses inside fixed-width fields, so their
	// byte length never depends on the numeric address value: build the
	// string and child blocks first (with a 0 placeholder address),
	// measure them, assign real addresses, then rebuild with the real
	// values plugged in.
	stringBlock := buildBlock(false, 0, namePoolEntry("hi"))

	addrData := func(a uint32) [4]byte {
		var d [4]byte
		binary.BigEndian.PutUint32(d[:], a)
		return d
	}

	buildChildBlock := func(stringAddr uint32) []byte {
		childSym := symbolRecord(0, 7 /* KindString */, 0, addrData(stringAddr))
		childPayload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{childSym}, namePoolEntry("note"))
		return buildBlock(false, 0, childPayload)
	}
	buildRootBlock := func(childAddr uint32) []byte {
		rootSym := symbolRecord(0, 8 /* KindTable */, 0, addrData(childAddr))
		rootPayload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{rootSym}, namePoolEntry("child"))
		return buildBlock(false, 0, rootPayload)
	}

	rootBlockLen := len(buildRootBlock(0))
	childAddr := rootAddr + uint32(rootBlockLen)
	childBlockLen := len(buildChildBlock(0))
	stringAddr := childAddr + uint32(childBlockLen)

	rootBlock := buildRootBlock(childAddr)
	childBlock := buildChildBlock(stringAddr)
	require.Equal(t, rootBlockLen, len(rootBlock))
	require.Equal(t, childBlockLen, len(childBlock))

	data := append(append([]byte{}, record...), rootBlock...)
	data = append(data, childBlock...)
	data = append(data, stringBlock...)
	f := writeTempFile(t, data)
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	root, err := LoadSystemTable(h, heap.Address(rootAddr))
	require.NoError(t, err)

	node, ok := root.Get("child")
	require.True(t, ok)
	assert.Equal(t, KindTable, node.Value.Kind)
	assert.True(t, node.UnresolvedAddress)

	child, err := root.ResolveTable(h, "child")
	require.NoError(t, err)
	assert.False(t, node.UnresolvedAddress)

	got, err := child.ResolveString(h, "note")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestResolveTable_WrongKindFails(t *testing.T) {
	pool := namePoolEntry("count")
	sym := symbolRecord(0, 2, 0, intData(1))
	payload := buildPackedTableBlock(2, 0, 0, 0, 0, [][]byte{sym}, pool)
	record := buildRecord(1, 6, 0, false, [3]uint32{88, 0, 0}, 0, 0, 0)
	block := buildBlock(false, 0, payload)
	f := writeTempFile(t, append(record, block...))
	h, err := heap.Open(f, false)
	require.NoError(t, err)

	table, err := LoadSystemTable(h, 88)
	require.NoError(t, err)

	_, err = table.ResolveTable(h, "count")
	assert.Error(t, err)
}

func TestGet_MissingSymbol(t *testing.T) {
	table := New()
	_, ok := table.Get("nope")
	assert.False(t, ok)
}

package odb

import (
	"encoding/binary"
	"math"

	"github.com/tedhoward/braveflea/heap"
)

// ValueKind identifies which shape a ValueRecord holds.
type ValueKind uint8

const (
	// KindUninitialized is the zero value of ValueKind: a TableNode whose
	// value was never set. It is never itself a wire code (see
	// valueTypeCodes below); it only ever arises in memory.
	KindUninitialized ValueKind = iota
	// KindNone is an explicit "no value" record.
	KindNone
	// KindChar holds a single legacy-codepage byte.
	KindChar
	// KindInt holds a signed 32-bit integer.
	KindInt
	// KindBytes holds opaque binary data read from another block.
	KindBytes
	// KindBool holds a boolean.
	KindBool
	// KindDate holds a classic-Mac-epoch timestamp.
	KindDate
	// KindFloat holds an IEEE-754 32-bit float.
	KindFloat
	// KindString holds legacy-codepage text read from another block.
	KindString
	// KindTable holds the address of a nested packed table block.
	KindTable
	// KindExternal holds the address of a host-managed opaque block.
	KindExternal
)

// valueTypeCodes maps the on-disk value_type byte to a ValueKind. No
// reference fixture was available to recover the true legacy byte
// values, so this table assigns them in ascending declaration order,
// starting at 0. Recovering the true values against a real .odb file
// would only require editing this one table.
var valueTypeCodes = [...]ValueKind{
	0: KindNone,
	1: KindChar,
	2: KindInt,
	3: KindBytes,
	4: KindBool,
	5: KindDate,
	6: KindFloat,
	7: KindString,
	8: KindTable,
	9: KindExternal,
}

// decodeValueType maps a raw value_type byte to a ValueKind, or false if
// the byte names no known kind.
func decodeValueType(code byte) (ValueKind, bool) {
	if int(code) >= len(valueTypeCodes) {
		return KindUninitialized, false
	}
	return valueTypeCodes[code], true
}

// ValueRecord is the typed value held by a TableNode. Exactly one of its
// fields is meaningful, selected by Kind; pointer-valued kinds (Bytes,
// String, Table, External) additionally carry the on-disk Address they
// were (or would be) read from, since a nested table or blob is resolved
// lazily through a Variable rather than eagerly decoded here.
type ValueRecord struct {
	Kind ValueKind

	Char    byte
	Int     int32
	Bool    bool
	Date    uint32 // seconds since the classic Mac epoch; see classicMacTime.
	Float   float32
	Bytes   []byte
	Str     string
	Address heap.Address // for Bytes, String, Table, External
}

// decodeValueRecord interprets a symbol record's value_type and 4-byte
// data field. Pointer-valued kinds only record the address here;
// resolving the pointed-to block is the caller's job (via Variable or an
// explicit ReadBlock) — a lazy cell is never populated eagerly.
func decodeValueRecord(kind ValueKind, data [4]byte) ValueRecord {
	v := ValueRecord{Kind: kind}
	switch kind {
	case KindUninitialized, KindNone, KindExternal:
		if kind == KindExternal {
			v.Address = heap.Address(binary.BigEndian.Uint32(data[:]))
		}
	case KindChar:
		v.Char = data[3]
	case KindInt:
		v.Int = int32(binary.BigEndian.Uint32(data[:]))
	case KindBool:
		v.Bool = data[3] != 0
	case KindDate:
		v.Date = binary.BigEndian.Uint32(data[:])
	case KindFloat:
		v.Float = math.Float32frombits(binary.BigEndian.Uint32(data[:]))
	case KindString, KindBytes, KindTable:
		v.Address = heap.Address(binary.BigEndian.Uint32(data[:]))
	}
	return v
}

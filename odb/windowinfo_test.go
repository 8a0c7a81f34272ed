package odb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildWindowInfoRecord(top, left, bottom, right uint16, fontName string, fontSize, fontStyle uint16, hidden, unused bool) []byte {
	buf := make([]byte, WindowInfoSize)
	binary.BigEndian.PutUint16(buf[0:2], top)
	binary.BigEndian.PutUint16(buf[2:4], left)
	binary.BigEndian.PutUint16(buf[4:6], bottom)
	binary.BigEndian.PutUint16(buf[6:8], right)
	copy(buf[8:41], namePoolEntry(fontName))
	binary.BigEndian.PutUint16(buf[43:45], fontSize)
	binary.BigEndian.PutUint16(buf[45:47], fontStyle)
	if hidden {
		buf[51] = 1
	}
	if unused {
		buf[52] = 1
	}
	return buf
}

func TestDecodeWindowInfo(t *testing.T) {
	rec := buildWindowInfoRecord(10, 20, 300, 400, "Geneva", 12, 1, true, false)
	w := decodeWindowInfo(rec)

	assert.Equal(t, uint16(10), w.Top)
	assert.Equal(t, uint16(20), w.Left)
	assert.Equal(t, uint16(300), w.Bottom)
	assert.Equal(t, uint16(400), w.Right)
	assert.Equal(t, "Geneva", w.FontName)
	assert.Equal(t, uint16(12), w.FontSize)
	assert.Equal(t, uint16(1), w.FontStyle)
	assert.True(t, w.Hidden)
	assert.False(t, w.Unused)
}

func TestDecodeWindowInfo_AllZero(t *testing.T) {
	rec := make([]byte, WindowInfoSize)
	w := decodeWindowInfo(rec)
	assert.Equal(t, "", w.FontName)
	assert.False(t, w.Hidden)
	assert.False(t, w.Unused)
}

package odb

import (
	"encoding/binary"

	"github.com/tedhoward/braveflea/internal/macroman"
)

// WindowInfoSize is the on-disk size, in bytes, of one WindowInfo record.
const WindowInfoSize = 62

// WindowInfo is the decoded form of one of the six 62-byte window
// metadata records carried in the ODB view block.
type WindowInfo struct {
	Top, Left, Bottom, Right uint16
	FontName                 string
	FontSize                 uint16
	FontStyle                uint16
	Hidden                   bool
	Unused                   bool
}

// decodeWindowInfo decodes one 62-byte window metadata record: a pixel
// rectangle, a 33-byte length-prefixed font name, two reserved bytes,
// font size, font style bits, four reserved bytes, a hidden flag byte,
// an unused flag byte, and trailing reserved bytes.
func decodeWindowInfo(buf []byte) WindowInfo {
	w := WindowInfo{
		Top:    binary.BigEndian.Uint16(buf[0:2]),
		Left:   binary.BigEndian.Uint16(buf[2:4]),
		Bottom: binary.BigEndian.Uint16(buf[4:6]),
		Right:  binary.BigEndian.Uint16(buf[6:8]),
	}
	w.FontName = macroman.DecodeLengthPrefixed(buf[8:41])
	// buf[41:43] reserved.
	w.FontSize = binary.BigEndian.Uint16(buf[43:45])
	w.FontStyle = binary.BigEndian.Uint16(buf[45:47])
	// buf[47:51] reserved.
	w.Hidden = buf[51] != 0
	w.Unused = buf[52] != 0
	// buf[53:62] trailing reserved.
	return w
}

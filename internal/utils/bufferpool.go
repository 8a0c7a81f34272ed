// Package utils provides buffer pooling and error-wrapping helpers shared
// by the heap and odb packages.
package utils

import "sync"

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 4096)
	},
}

// GetBuffer returns a byte slice of exactly size bytes from the pool.
func GetBuffer(size int) []byte {
	buf := bufferPool.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size)
	}
	return buf[:size]
}

// ReleaseBuffer returns a buffer to the pool for reuse.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // slice descriptor copy is fine for sync.Pool
	bufferPool.Put(buf[:0])
}

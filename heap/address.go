package heap

// Address names a byte offset within the heap's backing file. NIL (0)
// never names a dereferenceable block.
type Address uint32

// NIL is the null address: it names nothing.
const NIL Address = 0

// MaxFileSize is the file-size cap that the FileSize error kind refers
// to: the largest offset a signed 32-bit integer can hold. Heap has no
// grow operation, so nothing in this package checks it.
const MaxFileSize = 1<<31 - 1

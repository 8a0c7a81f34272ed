package odb

import "github.com/tedhoward/braveflea/heap"

// Decoder turns a block's raw payload into a resident T. Go has no trait
// object with an associated constructor, so Variable is parameterized by
// this function instead of a shared LoadFromBytes method.
type Decoder[T any] func(data []byte) (T, error)

// Variable is a bi-state lazy cell: either OnDisk(address), not yet read,
// or InMemory{value, oldAddress}, resident with the address it was
// resolved from remembered for write-back. The transition is one-way:
// OnDisk -> InMemory only, on an explicit Resolve call. A Variable never
// retains a *heap.Heap between calls; Resolve takes one per invocation
// rather than holding the heap open across a symbol's lifetime.
type Variable[T any] struct {
	resolved bool
	addr     heap.Address // meaningful only while !resolved
	oldAddr  heap.Address // where value came from, or heap.NIL if built in memory
	value    T
	decode   Decoder[T]
}

// NewOnDisk constructs a Variable in the OnDisk state: nothing has been
// read yet, and decode will be invoked on first Resolve.
func NewOnDisk[T any](addr heap.Address, decode Decoder[T]) *Variable[T] {
	return &Variable[T]{addr: addr, decode: decode}
}

// NewInMemory constructs a Variable already holding a resident value,
// remembering oldAddr as the block it would be written back to (heap.NIL
// if the value was never read from disk).
func NewInMemory[T any](value T, oldAddr heap.Address, decode Decoder[T]) *Variable[T] {
	return &Variable[T]{resolved: true, value: value, oldAddr: oldAddr, decode: decode}
}

// Resolve reads and decodes the block this Variable points at, if it
// hasn't already. It is idempotent: calling it again once resident is a
// no-op that returns the same value.
func (v *Variable[T]) Resolve(h *heap.Heap) (T, error) {
	if v.resolved {
		return v.value, nil
	}
	payload, err := h.ReadBlock(v.addr)
	if err != nil {
		var zero T
		return zero, err
	}
	value, err := v.decode(payload)
	if err != nil {
		var zero T
		return zero, err
	}
	v.value = value
	v.oldAddr = v.addr
	v.resolved = true
	return v.value, nil
}

// Resolved reports whether this Variable currently holds a resident value.
func (v *Variable[T]) Resolved() bool {
	return v.resolved
}

// Value returns the resident value and true, or the zero value and false
// if this Variable is still OnDisk.
func (v *Variable[T]) Value() (T, bool) {
	if !v.resolved {
		var zero T
		return zero, false
	}
	return v.value, true
}

// Address returns the address this Variable refers to: the unread address
// if OnDisk, or the address it was last resolved from (heap.NIL if it was
// constructed purely in memory) once resident.
func (v *Variable[T]) Address() heap.Address {
	if !v.resolved {
		return v.addr
	}
	return v.oldAddr
}

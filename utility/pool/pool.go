// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pool is a fixed capacity object pool with generational handles.
// All storage is allocated up front, Allocate and Free never allocate and
// run in constant time. A handle to a freed slot stays invalid even after
// the slot was handed out again.
package pool

import (
	"errors"
	"fmt"
)

// package errors
var (
	ErrExhausted   = errors.New("pool exhausted")
	ErrStaleHandle = errors.New("stale or foreign pool handle")
)

// Handle encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. The zero Handle is never valid.
type Handle uint64

func newHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

// Index is the slot the handle points to
func (h Handle) Index() uint32 { return uint32(h) }

// Generation is the slot generation the handle was issued for
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// IsZero reports an unset handle
func (h Handle) IsZero() bool { return h == 0 }

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d", h.Index(), h.Generation())
}

// New creates a pool of the given capacity, capacity must be positive
func New[T any](capacity int) *Pool[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("pool: invalid capacity %d", capacity))
	}
	p := &Pool[T]{
		items:       make([]T, capacity),
		generations: make([]uint32, capacity),
		used:        make([]bool, capacity),
		freeList:    make([]uint32, capacity),
	}
	// lowest indices are handed out first
	for idx := range p.freeList {
		p.freeList[idx] = uint32(capacity - 1 - idx)
		p.generations[idx] = 1
	}
	return p
}

// Pool is a fixed capacity store of T values. It is not safe
// for concurrent use.
type Pool[T any] struct {
	items       []T
	generations []uint32
	used        []bool
	freeList    []uint32
}

// Allocate reserves a slot, sets it to value and returns its handle.
// When every slot is in use it returns ErrExhausted.
func (p *Pool[T]) Allocate(value T) (Handle, error) {
	if len(p.freeList) == 0 {
		return 0, ErrExhausted
	}
	idx := p.freeList[len(p.freeList)-1]
	p.freeList = p.freeList[:len(p.freeList)-1]
	p.items[idx] = value
	p.used[idx] = true
	return newHandle(idx, p.generations[idx]), nil
}

// Free returns the slot of h to the pool. The stored value is zeroed
// so the pool does not keep references alive.
func (p *Pool[T]) Free(h Handle) error {
	if !p.Alive(h) {
		return ErrStaleHandle
	}
	idx := h.Index()
	var zero T
	p.items[idx] = zero
	p.used[idx] = false
	p.generations[idx]++
	if p.generations[idx] == 0 {
		p.generations[idx] = 1
	}
	p.freeList = append(p.freeList, idx)
	return nil
}

// Alive reports whether h refers to a live slot
func (p *Pool[T]) Alive(h Handle) bool {
	idx := h.Index()
	if int(idx) >= len(p.items) {
		return false
	}
	return p.used[idx] && p.generations[idx] == h.Generation()
}

// Get returns a pointer to the value behind h, the pointer
// must not be kept past Free
func (p *Pool[T]) Get(h Handle) (*T, bool) {
	if !p.Alive(h) {
		return nil, false
	}
	return &p.items[h.Index()], true
}

// Len is the number of live slots
func (p *Pool[T]) Len() int {
	return len(p.items) - len(p.freeList)
}

// Cap is the fixed capacity
func (p *Pool[T]) Cap() int {
	return len(p.items)
}

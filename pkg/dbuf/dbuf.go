// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

// Package dbuf provides a latest-value exchange between goroutines.
//
// A DoubleBuffer holds two slots. A publisher fills the back slot while
// readers copy the front one, then the slots swap. Publishers never wait for
// a slow reader to finish with the slot being written, and readers never
// observe a partially written value.
package dbuf

import "sync"

// DoubleBuffer is a single-value, overwrite-on-publish store. The zero value
// is ready to use. T should be a value type: Publish and Load copy it, so any
// pointers inside are shared.
type DoubleBuffer[T any] struct {
	writeMu sync.Mutex // serializes publishers

	mu        sync.RWMutex // guards front and the front slot
	slots     [2]T
	front     int
	published uint64
}

// New returns an empty buffer.
func New[T any]() *DoubleBuffer[T] {
	return &DoubleBuffer[T]{}
}

// Publish installs v as the latest value.
func (b *DoubleBuffer[T]) Publish(v T) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	// Only publishers move front and writeMu is held, so reading it
	// without mu is safe here. Readers only touch the front slot.
	back := 1 - b.front
	b.slots[back] = v

	b.mu.Lock()
	b.front = back
	b.published++
	b.mu.Unlock()
}

// Load returns the latest value and whether anything was published.
func (b *DoubleBuffer[T]) Load() (T, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.published == 0 {
		var zero T
		return zero, false
	}
	return b.slots[b.front], true
}

// ReadLatest returns the latest value, or def if nothing was published.
func (b *DoubleBuffer[T]) ReadLatest(def T) T {
	if v, ok := b.Load(); ok {
		return v
	}
	return def
}

// Published returns the number of values published so far.
func (b *DoubleBuffer[T]) Published() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published
}

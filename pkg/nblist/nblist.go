// Package nblist stores per-atom neighbor lists on a flat backing array and
// builds the near and far lists of the heavy atoms.
package nblist

import (
	"errors"
	"fmt"
)

// ErrCapacity is returned when a list would have to grow past its limit.
var ErrCapacity = errors.New("neighbor list capacity exceeded")

// Growth is the minimum growth factor of the backing array.
const Growth = 1.2

// List is a set of variable-length neighbor rows, one per atom, stored on a
// single backing array. Each entry carries one extra value (the squared
// distance when the list comes from Builder). Rows are filled one at a time:
// Begin opens a row, Append adds to it. The storage only grows.
type List struct {
	off []int
	n   []int

	flat  []int
	extra []float64
	size  int
	limit int
}

// New returns a list with natoms empty rows and room for size entries. limit
// caps the number of entries; 0 means no cap.
func New(natoms, size, limit int) *List {
	if size < 0 {
		size = 0
	}
	return &List{
		off:   make([]int, natoms),
		n:     make([]int, natoms),
		flat:  make([]int, size),
		extra: make([]float64, size),
		limit: limit,
	}
}

// Reset empties every row and keeps the storage.
func (l *List) Reset() {
	l.size = 0
	for i := range l.n {
		l.n[i] = 0
		l.off[i] = 0
	}
}

// Reserve makes room for need more entries. The backing array grows to
// max(Growth*cap, size+need). Rows already filled keep their offsets.
func (l *List) Reserve(need int) error {
	want := l.size + need
	if want <= len(l.flat) {
		return nil
	}

	grown := int(Growth * float64(len(l.flat)))
	if grown < want {
		grown = want
	}
	if l.limit > 0 && grown > l.limit {
		if want > l.limit {
			return fmt.Errorf("%w (%d entries needed, limit %d)", ErrCapacity, want, l.limit)
		}
		grown = l.limit
	}

	flat := make([]int, grown)
	extra := make([]float64, grown)
	copy(flat, l.flat[:l.size])
	copy(extra, l.extra[:l.size])
	l.flat, l.extra = flat, extra
	return nil
}

// Begin opens the row of atom i at the end of the storage.
func (l *List) Begin(i int) {
	l.off[i] = l.size
	l.n[i] = 0
}

// Append adds j to the row of atom i, which must be the row opened last. The
// caller must have reserved the room.
func (l *List) Append(i, j int, extra float64) {
	l.flat[l.size] = j
	l.extra[l.size] = extra
	l.size++
	l.n[i]++
}

// Row returns the neighbors of atom i. The slice aliases the storage.
func (l *List) Row(i int) []int {
	return l.flat[l.off[i] : l.off[i]+l.n[i]]
}

// Extra returns the extra values of the row of atom i.
func (l *List) Extra(i int) []float64 {
	return l.extra[l.off[i] : l.off[i]+l.n[i]]
}

// Len returns the total number of entries.
func (l *List) Len() int { return l.size }

// Cap returns the size of the backing array.
func (l *List) Cap() int { return len(l.flat) }

// Atoms returns the number of rows.
func (l *List) Atoms() int { return len(l.n) }

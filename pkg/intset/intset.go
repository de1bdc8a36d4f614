/*
Copyright 2024 The kvcore Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package intset implements the sorted, de-duplicated integer array of
// spec §4.3: a header recording the element width (2, 4, or 8 bytes) and
// count, followed by elements in ascending order at that width. Insertion
// that exceeds the current width promotes the whole array in place;
// width never narrows.
package intset

import (
	"encoding/binary"
	"math/rand/v2"
	"sort"
)

// Width is an element width in bytes.
type Width uint8

const (
	Width16 Width = 2
	Width32 Width = 4
	Width64 Width = 8
)

// Set is a sorted integer array at a single, monotonically-growing width.
type Set struct {
	width Width
	elems []int64 // logical view; width governs only the encoded form
}

// New creates an empty set at the narrowest width.
func New() *Set {
	return &Set{width: Width16}
}

// widthFor returns the narrowest width that admits v.
func widthFor(v int64) Width {
	switch {
	case v >= -(1<<15) && v < (1<<15):
		return Width16
	case v >= -(1<<31) && v < (1<<31):
		return Width32
	default:
		return Width64
	}
}

// Len returns the element count.
func (s *Set) Len() int { return len(s.elems) }

// Width returns the current element width.
func (s *Set) Width() Width { return s.width }

func (s *Set) search(v int64) (int, bool) {
	idx := sort.Search(len(s.elems), func(i int) bool { return s.elems[i] >= v })
	if idx < len(s.elems) && s.elems[idx] == v {
		return idx, true
	}
	return idx, false
}

// Find reports whether v is present.
func (s *Set) Find(v int64) bool {
	_, ok := s.search(v)
	return ok
}

// Insert adds v if absent, promoting the width first if v requires it.
// It reports whether v was newly added.
func (s *Set) Insert(v int64) bool {
	need := widthFor(v)
	if need > s.width {
		s.width = need // re-encode is implicit: elems are already int64
	}
	idx, found := s.search(v)
	if found {
		return false
	}
	s.elems = append(s.elems, 0)
	copy(s.elems[idx+1:], s.elems[idx:])
	s.elems[idx] = v
	return true
}

// Remove deletes v if present, collapsing the gap (memmove semantics).
// It reports whether v was present.
func (s *Set) Remove(v int64) bool {
	idx, found := s.search(v)
	if !found {
		return false
	}
	copy(s.elems[idx:], s.elems[idx+1:])
	s.elems = s.elems[:len(s.elems)-1]
	return true
}

// At returns the element at ordered index i.
func (s *Set) At(i int) int64 { return s.elems[i] }

// Random returns an arbitrary element, for sampling operations; it
// requires a non-empty set.
func (s *Set) Random() int64 {
	return s.elems[rand.IntN(len(s.elems))]
}

// All returns the elements in ascending order. The caller must not
// mutate the returned slice.
func (s *Set) All() []int64 { return s.elems }

// Clone returns an independent copy sharing no backing array with s.
func (s *Set) Clone() *Set {
	elems := make([]int64, len(s.elems))
	copy(elems, s.elems)
	return &Set{width: s.width, elems: elems}
}

// Encode serializes the set to its compact on-disk form: a 4-byte
// little-endian width tag, a 4-byte little-endian count, then each
// element at that width, little-endian — matching the RDB "compact form"
// blob for set encodings.
func (s *Set) Encode() []byte {
	buf := make([]byte, 8+len(s.elems)*int(s.width))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.width))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(s.elems)))
	off := 8
	for _, v := range s.elems {
		switch s.width {
		case Width16:
			binary.LittleEndian.PutUint16(buf[off:], uint16(int16(v)))
		case Width32:
			binary.LittleEndian.PutUint32(buf[off:], uint32(int32(v)))
		case Width64:
			binary.LittleEndian.PutUint64(buf[off:], uint64(v))
		}
		off += int(s.width)
	}
	return buf
}

// Decode reconstructs a Set from the Encode form.
func Decode(buf []byte) *Set {
	width := Width(binary.LittleEndian.Uint32(buf[0:4]))
	count := int(binary.LittleEndian.Uint32(buf[4:8]))
	s := &Set{width: width, elems: make([]int64, count)}
	off := 8
	for i := 0; i < count; i++ {
		switch width {
		case Width16:
			s.elems[i] = int64(int16(binary.LittleEndian.Uint16(buf[off:])))
		case Width32:
			s.elems[i] = int64(int32(binary.LittleEndian.Uint32(buf[off:])))
		case Width64:
			s.elems[i] = int64(binary.LittleEndian.Uint64(buf[off:]))
		}
		off += int(width)
	}
	return s
}

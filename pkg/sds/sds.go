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

// Package sds implements the dynamic byte string described in spec §4.1: a
// binary-safe, growable buffer with an over-allocation growth policy.
// Mutating operations return the (possibly reallocated) buffer; callers
// must replace their handle with the returned value, the same discipline
// Go's own append() imposes.
package sds

import (
	"bytes"
	"fmt"
)

// growthThreshold is the point at which growth switches from doubling to
// a fixed increment, per spec §3.
const growthThreshold = 1 << 20 // 1 MiB

// S is a dynamic byte string. The zero value is an empty string.
type S struct {
	buf []byte // len(buf) is the logical length; cap(buf) is the capacity
}

// New creates an S by copying b.
func New(b []byte) *S {
	s := &S{}
	s.buf = append(s.buf, b...)
	return s
}

// NewLen creates an S of the given length, content undefined (matching the
// source's sdsnewlen contract of "at least this much room").
func NewLen(n int) *S {
	return &S{buf: make([]byte, n)}
}

// Dup returns an independent copy of s.
func (s *S) Dup() *S {
	return New(s.Bytes())
}

// Bytes returns the logical content. Callers must not retain it across a
// mutation of s.
func (s *S) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Len returns the logical length.
func (s *S) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// Avail returns the free trailing capacity.
func (s *S) Avail() int { return cap(s.buf) - len(s.buf) }

// grow ensures at least addlen bytes of free capacity beyond the current
// length, applying the double-then-fixed-increment policy.
func grow(buf []byte, addlen int) []byte {
	need := len(buf) + addlen
	if cap(buf) >= need {
		return buf
	}
	newCap := cap(buf)
	if newCap == 0 {
		newCap = need
	}
	for newCap < need {
		if newCap < growthThreshold {
			newCap *= 2
			if newCap == 0 {
				newCap = need
			}
		} else {
			newCap += growthThreshold
		}
	}
	grown := make([]byte, len(buf), newCap)
	copy(grown, buf)
	return grown
}

// Append appends b to s, growing as needed, and returns the (possibly
// reallocated) string.
func (s *S) Append(b []byte) *S {
	if s == nil {
		s = &S{}
	}
	s.buf = grow(s.buf, len(b))
	s.buf = append(s.buf, b...)
	return s
}

// AppendString is a convenience wrapper over Append.
func (s *S) AppendString(str string) *S { return s.Append([]byte(str)) }

// CopyOver replaces the content of s with b, reusing the backing array
// when it has enough capacity.
func (s *S) CopyOver(b []byte) *S {
	if s == nil {
		s = &S{}
	}
	s.buf = grow(s.buf[:0], len(b))
	s.buf = append(s.buf[:0], b...)
	return s
}

// Truncate shortens s to n bytes. It is a no-op if n >= s.Len().
func (s *S) Truncate(n int) *S {
	if s == nil || n >= len(s.buf) {
		return s
	}
	if n < 0 {
		n = 0
	}
	s.buf = s.buf[:n]
	return s
}

// Reclaim releases free trailing capacity, matching sds's explicit
// resize-to-fit operation; it is the only way capacity shrinks.
func (s *S) Reclaim() *S {
	if s == nil || s.Avail() == 0 {
		return s
	}
	trimmed := make([]byte, len(s.buf))
	copy(trimmed, s.buf)
	s.buf = trimmed
	return s
}

// Trim removes any leading or trailing bytes found in cutset.
func (s *S) Trim(cutset string) *S {
	if s == nil {
		return s
	}
	s.buf = bytes.Trim(s.buf, cutset)
	return s
}

// Range returns the substring over the inclusive index range [start, end],
// with negative indices counted from the end of the string (-1 is the last
// byte). Out-of-order or fully out-of-bounds ranges yield an empty result,
// matching spec §8's boundary behaviors (range(s,-1,-1) is the last byte;
// range(s,2,1) is empty; range(s,100,100) on a 4-byte string is empty).
func (s *S) Range(start, end int) []byte {
	n := s.Len()
	if n == 0 {
		return nil
	}
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n || end < 0 {
		return nil
	}
	out := make([]byte, end-start+1)
	copy(out, s.buf[start:end+1])
	return out
}

// Fold lower-cases ASCII letters in place (case-fold for comparison
// purposes; content is treated as opaque bytes otherwise).
func (s *S) Fold() *S {
	if s == nil {
		return s
	}
	for i, b := range s.buf {
		if b >= 'A' && b <= 'Z' {
			s.buf[i] = b + ('a' - 'A')
		}
	}
	return s
}

// Compare does a byte-lexicographic comparison, treating content as
// opaque bytes; on a common prefix the shorter string loses.
func Compare(a, b *S) int {
	return bytes.Compare(a.Bytes(), b.Bytes())
}

// Split splits s by sep, which may be any multi-byte separator. An empty
// sep is an error, matching the source's contract.
func (s *S) Split(sep []byte) ([][]byte, error) {
	if len(sep) == 0 {
		return nil, fmt.Errorf("sds: empty separator")
	}
	return bytes.Split(s.Bytes(), sep), nil
}

// Join concatenates parts with sep between them.
func Join(parts [][]byte, sep []byte) *S {
	return New(bytes.Join(parts, sep))
}

// Sprintf formats using printf-style directives, matching sdscatprintf.
func Sprintf(format string, args ...any) *S {
	return New([]byte(fmt.Sprintf(format, args...)))
}

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

// Package listtype implements the list type operations of spec §4.7: a
// packed entry list that promotes to a doubly-linked list once the entry
// count exceeds 512 or any element exceeds 64 bytes (spec §3's list
// encoding row). The linked encoding is stdlib container/list, the same
// doubly-linked list perkeep's pkg/lru builds its cache eviction order
// on, each element holding a []byte rather than an lru cache entry.
package listtype

import (
	"container/list"

	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/ziplist"
)

// New creates an empty list value in the packed encoding.
func New() *object.Value {
	return object.NewRaw(object.KindList, object.EncPackedList, ziplist.New())
}

func packed(v *object.Value) *ziplist.List { return v.Payload().(*ziplist.List) }
func linked(v *object.Value) *list.List    { return v.Payload().(*list.List) }

func typeCheck(v *object.Value) error {
	if v.Kind() != object.KindList {
		return kverr.New(kverr.TypeMismatch, "value is not a list")
	}
	return nil
}

func maybePromote(v *object.Value, elemLen int, limits object.Limits) {
	if v.Encoding() != object.EncPackedList {
		return
	}
	zl := packed(v)
	if zl.Len() > limits.ListMaxPackedEntries || elemLen > limits.ListMaxPackedValue {
		promote(v)
	}
}

func promote(v *object.Value) {
	zl := packed(v)
	ll := list.New()
	c, ok := zl.Head()
	for ok {
		ll.PushBack(zl.Get(c).AsBytes())
		c, ok = zl.Next(c)
	}
	v.SetPayload(object.EncLinkedList, ll)
}

// PushHead prepends elem, applying promotion for this call's own length.
func PushHead(v *object.Value, elem string, limits object.Limits) error {
	if err := typeCheck(v); err != nil {
		return err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		packed(v).PushHead(ziplist.EntryFromValue([]byte(elem)))
		maybePromote(v, len(elem), limits)
	case object.EncLinkedList:
		linked(v).PushFront([]byte(elem))
	default:
		return kverr.New(kverr.Format, "unknown list encoding")
	}
	return nil
}

// PushTail appends elem, applying promotion for this call's own length.
func PushTail(v *object.Value, elem string, limits object.Limits) error {
	if err := typeCheck(v); err != nil {
		return err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		packed(v).PushTail(ziplist.EntryFromValue([]byte(elem)))
		maybePromote(v, len(elem), limits)
	case object.EncLinkedList:
		linked(v).PushBack([]byte(elem))
	default:
		return kverr.New(kverr.Format, "unknown list encoding")
	}
	return nil
}

// PopHead removes and returns the first element, or ok=false if empty.
func PopHead(v *object.Value) (string, bool, error) {
	if err := typeCheck(v); err != nil {
		return "", false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, ok := zl.Head()
		if !ok {
			return "", false, nil
		}
		val := string(zl.Get(c).AsBytes())
		zl.DeleteAt(c)
		return val, true, nil
	case object.EncLinkedList:
		ll := linked(v)
		e := ll.Front()
		if e == nil {
			return "", false, nil
		}
		ll.Remove(e)
		return string(e.Value.([]byte)), true, nil
	default:
		return "", false, kverr.New(kverr.Format, "unknown list encoding")
	}
}

// PopTail removes and returns the last element, or ok=false if empty.
func PopTail(v *object.Value) (string, bool, error) {
	if err := typeCheck(v); err != nil {
		return "", false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, ok := zl.Tail()
		if !ok {
			return "", false, nil
		}
		val := string(zl.Get(c).AsBytes())
		zl.DeleteAt(c)
		return val, true, nil
	case object.EncLinkedList:
		ll := linked(v)
		e := ll.Back()
		if e == nil {
			return "", false, nil
		}
		ll.Remove(e)
		return string(e.Value.([]byte)), true, nil
	default:
		return "", false, kverr.New(kverr.Format, "unknown list encoding")
	}
}

// Len returns the number of elements.
func Len(v *object.Value) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		return packed(v).Len(), nil
	case object.EncLinkedList:
		return linked(v).Len(), nil
	default:
		return 0, kverr.New(kverr.Format, "unknown list encoding")
	}
}

// normIndex resolves a possibly-negative index against n, or reports
// false if out of range.
func normIndex(idx, n int) (int, bool) {
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

// Index returns the element at idx (negative counts from the end), or
// ok=false if out of range.
func Index(v *object.Value, idx int) (string, bool, error) {
	if err := typeCheck(v); err != nil {
		return "", false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		i, ok := normIndex(idx, zl.Len())
		if !ok {
			return "", false, nil
		}
		c, ok := zl.Head()
		for ; i > 0 && ok; i-- {
			c, ok = zl.Next(c)
		}
		if !ok {
			return "", false, nil
		}
		return string(zl.Get(c).AsBytes()), true, nil
	case object.EncLinkedList:
		ll := linked(v)
		i, ok := normIndex(idx, ll.Len())
		if !ok {
			return "", false, nil
		}
		e := ll.Front()
		for ; i > 0; i-- {
			e = e.Next()
		}
		return string(e.Value.([]byte)), true, nil
	default:
		return "", false, kverr.New(kverr.Format, "unknown list encoding")
	}
}

// Range returns elements over the inclusive, negative-indices-from-end
// range [start, end], clamped to the list bounds.
func Range(v *object.Value, start, end int) ([]string, error) {
	n, err := Len(v)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
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
		return nil, nil
	}
	out := make([]string, 0, end-start+1)
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, ok := zl.Head()
		for i := 0; ok && i <= end; i++ {
			if i >= start {
				out = append(out, string(zl.Get(c).AsBytes()))
			}
			c, ok = zl.Next(c)
		}
	case object.EncLinkedList:
		e := linked(v).Front()
		for i := 0; e != nil && i <= end; i++ {
			if i >= start {
				out = append(out, string(e.Value.([]byte)))
			}
			e = e.Next()
		}
	default:
		return nil, kverr.New(kverr.Format, "unknown list encoding")
	}
	return out, nil
}

// InsertBefore inserts elem immediately before the first occurrence of
// pivot, reporting the new length, or -1 if pivot was not found.
func InsertBefore(v *object.Value, pivot, elem string, limits object.Limits) (int, error) {
	return insert(v, pivot, elem, true, limits)
}

// InsertAfter inserts elem immediately after the first occurrence of
// pivot, reporting the new length, or -1 if pivot was not found.
func InsertAfter(v *object.Value, pivot, elem string, limits object.Limits) (int, error) {
	return insert(v, pivot, elem, false, limits)
}

func insert(v *object.Value, pivot, elem string, before bool, limits object.Limits) (int, error) {
	if err := typeCheck(v); err != nil {
		return -1, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(pivot), 1)
		if !found {
			return -1, nil
		}
		if before {
			zl.InsertBefore(c, ziplist.EntryFromValue([]byte(elem)))
		} else {
			next, ok := zl.Next(c)
			if ok {
				zl.InsertBefore(next, ziplist.EntryFromValue([]byte(elem)))
			} else {
				zl.PushTail(ziplist.EntryFromValue([]byte(elem)))
			}
		}
		maybePromote(v, len(elem), limits)
		return zl.Len(), nil
	case object.EncLinkedList:
		ll := linked(v)
		for e := ll.Front(); e != nil; e = e.Next() {
			if string(e.Value.([]byte)) == pivot {
				if before {
					ll.InsertBefore([]byte(elem), e)
				} else {
					ll.InsertAfter([]byte(elem), e)
				}
				return ll.Len(), nil
			}
		}
		return -1, nil
	default:
		return -1, kverr.New(kverr.Format, "unknown list encoding")
	}
}

// Rem removes up to count occurrences of elem (all, if count is 0),
// scanning head-to-tail if count >= 0 or tail-to-head if count < 0, and
// returns the number removed.
func Rem(v *object.Value, elem string, count int) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	all, err := Range(v, 0, -1)
	if err != nil {
		return 0, err
	}
	max := count
	if max < 0 {
		max = -max
	}
	removed := 0
	keep := make([]bool, len(all))
	for i := range keep {
		keep[i] = true
	}
	mark := func(idx int) { keep[idx] = false; removed++ }
	if count >= 0 {
		for i, s := range all {
			if (max == 0 || removed < max) && s == elem {
				mark(i)
			}
		}
	} else {
		for i := len(all) - 1; i >= 0; i-- {
			if (removed < max) && all[i] == elem {
				mark(i)
			}
		}
	}
	if removed == 0 {
		return 0, nil
	}
	out := make([]string, 0, len(all)-removed)
	for i, s := range all {
		if keep[i] {
			out = append(out, s)
		}
	}
	rebuildFrom(v, out)
	return removed, nil
}

// rebuildFrom replaces v's contents with elems, preserving its current
// encoding (list promotion is monotonic per spec §9; Rem never
// re-derives a narrower encoding).
func rebuildFrom(v *object.Value, elems []string) {
	switch v.Encoding() {
	case object.EncPackedList:
		zl := ziplist.New()
		for _, s := range elems {
			zl.PushTail(ziplist.EntryFromValue([]byte(s)))
		}
		v.SetPayload(object.EncPackedList, zl)
	case object.EncLinkedList:
		ll := list.New()
		for _, s := range elems {
			ll.PushBack([]byte(s))
		}
		v.SetPayload(object.EncLinkedList, ll)
	}
}

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

package dict

// Iterator walks a Table's key/value pairs.
type Iterator[K comparable, V any] struct {
	d       *Table[K, V]
	tab     int
	bucket  int
	cur     *entry[K, V]
	started bool
}

// SafeIterator returns an iterator that first finishes any in-progress
// rehash, so it is guaranteed to visit every key exactly once (spec
// §4.4's "safe iterator locks rehash"). It is more expensive than
// UnsafeIterator when a rehash is active.
func (d *Table[K, V]) SafeIterator() *Iterator[K, V] {
	for d.rehashing() {
		d.rehashStep(len(d.tabs[0].buckets))
	}
	return &Iterator[K, V]{d: d}
}

// UnsafeIterator returns an iterator that walks the tables as they are,
// without forcing a rehash to completion; it may miss elements that move
// between tables during the walk and must not be used concurrently with
// mutation, but is cheaper (spec §4.4's "unsafe iterator").
func (d *Table[K, V]) UnsafeIterator() *Iterator[K, V] {
	return &Iterator[K, V]{d: d}
}

// Next advances the iterator, returning false once exhausted.
func (it *Iterator[K, V]) Next() bool {
	if it.cur != nil {
		it.cur = it.cur.next
		if it.cur != nil {
			return true
		}
	}
	for {
		if it.tab > 1 {
			return false
		}
		t := &it.d.tabs[it.tab]
		if it.bucket >= len(t.buckets) {
			it.tab++
			it.bucket = 0
			continue
		}
		e := t.buckets[it.bucket]
		it.bucket++
		if e != nil {
			it.cur = e
			return true
		}
	}
}

// Key returns the current key; valid only after Next returns true.
func (it *Iterator[K, V]) Key() K { return it.cur.key }

// Value returns the current value; valid only after Next returns true.
func (it *Iterator[K, V]) Value() V { return it.cur.val }

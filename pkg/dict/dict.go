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

// Package dict implements the incremental hash table of spec §4.4: two
// side-by-side power-of-two bucket arrays, open chaining, and a rehash
// cursor that migrates a bounded number of source buckets per structural
// operation so a single resize never stalls the caller. Lookups consult
// both tables while a rehash is in progress.
//
// The chained-bucket shape follows the hashmap example files in the
// retrieval pack; the migrate-a-few-buckets-per-call technique mirrors
// Go's own runtime map (growth with an "oldbuckets" array and a
// evacuation cursor), adapted here to a generic, caller-suppliable
// key/value table rather than the runtime's specialized one.
package dict

import (
	"math/rand/v2"
	"time"
)

const (
	growRatio   = 1.0
	growRatioCOW = 5.0
	shrinkRatio = 0.1
	minSize     = 4
)

type entry[K comparable, V any] struct {
	key  K
	val  V
	next *entry[K, V]
}

type table[K comparable, V any] struct {
	buckets []*entry[K, V]
	used    int

	// shared[i], when non-nil, marks that bucket i's chain may still be
	// referenced by a Freeze snapshot and must be cloned before its next
	// mutation (copy-on-write at bucket granularity, per spec §4.11's
	// "reduce the number of buckets that must be copied-on-write").
	shared []bool
}

// touchBucket clones bucket i's chain into fresh nodes the first time
// it is mutated after a Freeze, so a live delete/rehash never mutates
// an entry node a snapshot's goroutine might still be reading.
func (t *table[K, V]) touchBucket(i int) {
	if t.shared == nil || !t.shared[i] {
		return
	}
	var head, tail *entry[K, V]
	for e := t.buckets[i]; e != nil; e = e.next {
		c := &entry[K, V]{key: e.key, val: e.val}
		if head == nil {
			head = c
		} else {
			tail.next = c
		}
		tail = c
	}
	t.buckets[i] = head
	t.shared[i] = false
}

func newTable[K comparable, V any](size int) table[K, V] {
	if size < minSize {
		size = minSize
	}
	size = nextPow2(size)
	return table[K, V]{buckets: make([]*entry[K, V], size)}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Table is the incremental hash table. Keys and values are generic but
// otherwise opaque to the container, exactly as spec §4.4 requires of the
// source's void*-keyed dict: the only thing Table needs from its caller
// is a hash function and an equality test.
type Table[K comparable, V any] struct {
	tabs      [2]table[K, V]
	rehashIdx int // -1 when not rehashing, else next source bucket to migrate
	hash      func(K) uint64
	equal     func(a, b K) bool

	// inSnapshot raises the grow threshold from 1 to 5, per spec §4.4 and
	// §4.11 step 4, to reduce copy-on-write page dirtying while a
	// background save holds a frozen view of this table's buckets.
	inSnapshot bool
}

// New creates an empty table using hash and equal for key operations.
func New[K comparable, V any](hash func(K) uint64, equal func(a, b K) bool) *Table[K, V] {
	d := &Table[K, V]{rehashIdx: -1, hash: hash, equal: equal}
	d.tabs[0] = newTable[K, V](minSize)
	return d
}

func (d *Table[K, V]) rehashing() bool { return d.rehashIdx != -1 }

// Len returns the total number of keys across both tables.
func (d *Table[K, V]) Len() int { return d.tabs[0].used + d.tabs[1].used }

func (d *Table[K, V]) bucketIndex(t *table[K, V], h uint64) int {
	return int(h) & (len(t.buckets) - 1)
}

// rehashStep migrates up to n source buckets from tabs[0] to tabs[1].
func (d *Table[K, V]) rehashStep(n int) {
	if !d.rehashing() {
		return
	}
	src := &d.tabs[0]
	dst := &d.tabs[1]
	for n > 0 && d.rehashIdx < len(src.buckets) {
		n--
		src.touchBucket(d.rehashIdx)
		e := src.buckets[d.rehashIdx]
		for e != nil {
			next := e.next
			h := d.hash(e.key)
			idx := d.bucketIndex(dst, h)
			e.next = dst.buckets[idx]
			dst.buckets[idx] = e
			dst.used++
			src.used--
			e = next
		}
		src.buckets[d.rehashIdx] = nil
		d.rehashIdx++
	}
	if d.rehashIdx >= len(src.buckets) {
		d.tabs[0] = d.tabs[1]
		d.tabs[1] = table[K, V]{}
		d.rehashIdx = -1
	}
}

// Tick performs a bounded rehash burst, stopping once deadline has
// elapsed, for use from an idle scheduler tick rather than inline with
// every operation (spec §4.4's "background idle tick" alternative).
func (d *Table[K, V]) Tick(budget time.Duration) {
	if !d.rehashing() {
		return
	}
	deadline := time.Now().Add(budget)
	for d.rehashing() && time.Now().Before(deadline) {
		d.rehashStep(64)
	}
}

func (d *Table[K, V]) maybeResize() {
	if d.rehashing() {
		return
	}
	n := d.tabs[0].used
	size := len(d.tabs[0].buckets)
	ratio := float64(n) / float64(size)
	threshold := growRatio
	if d.inSnapshot {
		threshold = growRatioCOW
	}
	if ratio > threshold {
		d.beginResize(n * 2)
		return
	}
	if ratio < shrinkRatio && size > minSize {
		d.beginResize(n)
	}
}

// beginResize allocates tabs[1] sized to at least sizeHint (rounded up to
// a power of two) and starts the rehash cursor. Allocation failure (here:
// none, Go panics on OOM) would per spec leave the table unchanged and
// operate degraded on tabs[0]; Go provides no recoverable allocation
// failure path so that fallback has no code to write.
func (d *Table[K, V]) beginResize(sizeHint int) {
	if sizeHint < minSize {
		sizeHint = minSize
	}
	d.tabs[1] = newTable[K, V](sizeHint)
	d.rehashIdx = 0
}

// Resize forces a rehash to a table sized to at least cover sizeHint
// elements at the configured load factor.
func (d *Table[K, V]) Resize(sizeHint int) {
	if d.rehashing() {
		d.rehashStep(len(d.tabs[0].buckets))
	}
	d.beginResize(sizeHint)
}

// SetInSnapshot toggles the reduced-rehash-aggressiveness mode used while
// a background save holds a frozen view of this table.
func (d *Table[K, V]) SetInSnapshot(v bool) { d.inSnapshot = v }

// Freeze returns a point-in-time snapshot of d that a background
// serializer can walk while d keeps accepting writes, the Go-native
// replacement for fork()'s copy-on-write pages (spec §4.11, redesigned
// per the "platforms without fork" alternative). The snapshot's bucket
// arrays are cloned eagerly (cheap: one pointer per bucket); the entry
// chains within them stay shared with d until d's next mutation touches
// that specific bucket, at which point touchBucket clones just that
// chain. d itself is put into the reduced-resize-aggressiveness mode
// for the snapshot's lifetime; call SetInSnapshot(false) once the
// caller is done with the snapshot.
func (d *Table[K, V]) Freeze() *Table[K, V] {
	snap := *d
	for i := range d.tabs {
		src := &d.tabs[i]
		if len(src.buckets) == 0 {
			continue
		}
		snap.tabs[i].buckets = src.buckets
		snap.tabs[i].shared = nil

		cloned := make([]*entry[K, V], len(src.buckets))
		copy(cloned, src.buckets)
		shared := make([]bool, len(src.buckets))
		for j := range shared {
			shared[j] = true
		}
		src.buckets = cloned
		src.shared = shared
	}
	d.inSnapshot = true
	return &snap
}

func (d *Table[K, V]) findIn(t *table[K, V], key K, h uint64) *entry[K, V] {
	if len(t.buckets) == 0 {
		return nil
	}
	idx := d.bucketIndex(t, h)
	for e := t.buckets[idx]; e != nil; e = e.next {
		if d.equal(e.key, key) {
			return e
		}
	}
	return nil
}

// Find returns the value for key, or ok=false.
func (d *Table[K, V]) Find(key K) (V, bool) {
	h := d.hash(key)
	if e := d.findIn(&d.tabs[0], key, h); e != nil {
		return e.val, true
	}
	if d.rehashing() {
		if e := d.findIn(&d.tabs[1], key, h); e != nil {
			return e.val, true
		}
	}
	var zero V
	return zero, false
}

// activeTable returns the table new entries should land in: tabs[1] while
// rehashing (so the cursor doesn't have to chase fresh writes), else
// tabs[0].
func (d *Table[K, V]) activeTable() *table[K, V] {
	if d.rehashing() {
		return &d.tabs[1]
	}
	return &d.tabs[0]
}

// Set inserts or replaces the value for key.
func (d *Table[K, V]) Set(key K, val V) {
	d.rehashStep(1)
	h := d.hash(key)
	// touchBucket before the in-place e.val write below: an existing
	// entry node may still be shared with a Freeze snapshot.
	d.tabs[0].touchBucket(d.bucketIndex(&d.tabs[0], h))
	if e := d.findIn(&d.tabs[0], key, h); e != nil {
		e.val = val
		return
	}
	if d.rehashing() {
		d.tabs[1].touchBucket(d.bucketIndex(&d.tabs[1], h))
		if e := d.findIn(&d.tabs[1], key, h); e != nil {
			e.val = val
			return
		}
	}
	d.insert(key, val, h)
	d.maybeResize()
}

// AddIfAbsent inserts val for key only if key is not already present,
// reporting whether the insert happened.
func (d *Table[K, V]) AddIfAbsent(key K, val V) bool {
	d.rehashStep(1)
	if _, ok := d.Find(key); ok {
		return false
	}
	d.insert(key, val, d.hash(key))
	d.maybeResize()
	return true
}

func (d *Table[K, V]) insert(key K, val V, h uint64) {
	t := d.activeTable()
	idx := d.bucketIndex(t, h)
	t.buckets[idx] = &entry[K, V]{key: key, val: val, next: t.buckets[idx]}
	t.used++
}

// Delete removes key, reporting whether it was present.
func (d *Table[K, V]) Delete(key K) bool {
	d.rehashStep(1)
	h := d.hash(key)
	if d.deleteFrom(&d.tabs[0], key, h) {
		d.maybeResize()
		return true
	}
	if d.rehashing() && d.deleteFrom(&d.tabs[1], key, h) {
		d.maybeResize()
		return true
	}
	return false
}

func (d *Table[K, V]) deleteFrom(t *table[K, V], key K, h uint64) bool {
	if len(t.buckets) == 0 {
		return false
	}
	idx := d.bucketIndex(t, h)
	t.touchBucket(idx)
	var prev *entry[K, V]
	for e := t.buckets[idx]; e != nil; e = e.next {
		if d.equal(e.key, key) {
			if prev == nil {
				t.buckets[idx] = e.next
			} else {
				prev.next = e.next
			}
			t.used--
			return true
		}
		prev = e
	}
	return false
}

// RandomEntry samples a key/value pair approximately uniformly: pick a
// non-empty bucket at random (re-sampling empty ones), then a uniformly
// random position along its chain.
func (d *Table[K, V]) RandomEntry() (K, V, bool) {
	if d.Len() == 0 {
		var zk K
		var zv V
		return zk, zv, false
	}
	for {
		useSecond := d.rehashing() && rand.IntN(2) == 0
		t := &d.tabs[0]
		if useSecond {
			t = &d.tabs[1]
		}
		if len(t.buckets) == 0 {
			continue
		}
		idx := rand.IntN(len(t.buckets))
		e := t.buckets[idx]
		if e == nil {
			continue
		}
		n := 0
		for p := e; p != nil; p = p.next {
			n++
		}
		pick := rand.IntN(n)
		for i := 0; i < pick; i++ {
			e = e.next
		}
		return e.key, e.val, true
	}
}

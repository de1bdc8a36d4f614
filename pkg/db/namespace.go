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

// Package db implements the database namespace of spec §4.8: a numbered
// set of logical databases, each a keyspace mapping string keys to typed
// Values plus a parallel expiration table, with lazy expiration on
// lookup and a Freeze operation that hands a background saver a
// point-in-time view without blocking foreground writes.
//
// Grounded on the teacher's pkg/sorted.KeyValue: a small, explicit
// lookup/mutate surface documented as "not safe for concurrent use
// without external synchronization" rather than internally locked,
// leaving serialization to the caller (spec §4.1's single-threaded
// cooperative command-execution model).
package db

import (
	"kvcore.dev/pkg/dict"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
)

// slot is the keyspace table's value type: the stored Value plus the
// Freeze generation it was last written under. LookupWrite compares this
// against the Namespace's current generation to decide whether the
// Value's identity might still be referenced by an outstanding Snapshot
// and must be cloned before the caller mutates it in place (spec
// §4.11's copy-on-write, extended past dict.Table's own bucket-level COW
// down to the Value objects a table's entries point to).
type slot struct {
	val *object.Value
	gen int64
}

// database is one numbered logical database: a keyspace and a parallel
// expiration table keyed the same way, holding absolute millisecond
// deadlines.
type database struct {
	keys *dict.Table[string, *slot]
	ttls *dict.Table[string, int64]
}

func newDatabase() *database {
	return &database{
		keys: dict.NewStringTable[*slot](),
		ttls: dict.NewStringTable[int64](),
	}
}

// Namespace is the full set of numbered databases a server exposes. The
// zero value is not usable; construct with New. Namespace is not safe
// for concurrent use without external synchronization — callers
// serialize command execution, with the sole exception of a Freeze
// snapshot being read by a concurrently-running background saver.
type Namespace struct {
	dbs     []*database
	gen     int64
	dirty   uint64
	nowMS   func() int64
}

// New creates a Namespace with n numbered databases (spec §6's db-count
// option).
func New(n int, nowMS func() int64) *Namespace {
	dbs := make([]*database, n)
	for i := range dbs {
		dbs[i] = newDatabase()
	}
	return &Namespace{dbs: dbs, nowMS: nowMS}
}

// DBCount returns the number of numbered databases.
func (ns *Namespace) DBCount() int { return len(ns.dbs) }

// Dirty returns the count of write operations applied since construction,
// less whatever ReduceDirty or ResetDirty has taken off since. bgsave
// records it at Freeze time and reduces it by that amount once the save
// succeeds (spec §4.11).
func (ns *Namespace) Dirty() uint64 { return ns.dirty }

// ResetDirty zeroes the dirty counter.
func (ns *Namespace) ResetDirty() { ns.dirty = 0 }

// ReduceDirty subtracts n from the dirty counter, floored at zero. A
// background save records the counter at Freeze time and reduces by
// that amount on completion rather than resetting outright, so writes
// that landed after the snapshot was taken (and so are not reflected in
// the file just written) still count toward triggering the next save.
func (ns *Namespace) ReduceDirty(n uint64) {
	if n > ns.dirty {
		ns.dirty = 0
		return
	}
	ns.dirty -= n
}

func (ns *Namespace) db(index int) (*database, error) {
	if index < 0 || index >= len(ns.dbs) {
		return nil, kverr.New(kverr.OutOfRange, "database index %d out of range [0,%d)", index, len(ns.dbs))
	}
	return ns.dbs[index], nil
}

// expireIfDue removes key from both tables if it has a deadline in d
// that has passed (spec §4.8's lazy expiration: a key
// past its deadline is treated as absent the instant it is looked up,
// not on a background sweep).
func (ns *Namespace) expireIfDue(d *database, key string) {
	deadline, ok := d.ttls.Find(key)
	if !ok {
		return
	}
	if ns.nowMS() < deadline {
		return
	}
	d.keys.Delete(key)
	d.ttls.Delete(key)
}

// LookupRead returns key's Value for read-only access, or ok=false if
// absent or expired. The returned Value must not be mutated in place —
// callers that intend to mutate must go through LookupWrite instead, so
// an outstanding Freeze snapshot never observes a torn write.
func (ns *Namespace) LookupRead(dbIndex int, key string) (*object.Value, bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return nil, false, err
	}
	ns.expireIfDue(d, key)
	s, ok := d.keys.Find(key)
	if !ok {
		return nil, false, nil
	}
	return s.val, true, nil
}

// LookupWrite returns key's Value, cloning it first if it was last
// touched before the current Freeze generation (meaning its identity may
// still be referenced by a Snapshot a background saver is walking). The
// returned Value is always safe for the caller to mutate in place.
func (ns *Namespace) LookupWrite(dbIndex int, key string) (*object.Value, bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return nil, false, err
	}
	ns.expireIfDue(d, key)
	s, ok := d.keys.Find(key)
	if !ok {
		return nil, false, nil
	}
	if s.gen < ns.gen {
		s = &slot{val: s.val.Clone(), gen: ns.gen}
		d.keys.Set(key, s)
	}
	ns.dirty++
	return s.val, true, nil
}

// Set stores val at key, replacing any existing value and clearing any
// expiration.
func (ns *Namespace) Set(dbIndex int, key string, val *object.Value) error {
	d, err := ns.db(dbIndex)
	if err != nil {
		return err
	}
	d.keys.Set(key, &slot{val: val, gen: ns.gen})
	d.ttls.Delete(key)
	ns.dirty++
	return nil
}

// Add stores val at key only if key is absent (or expired), reporting
// whether it did so.
func (ns *Namespace) Add(dbIndex int, key string, val *object.Value) (bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return false, err
	}
	ns.expireIfDue(d, key)
	if !d.keys.AddIfAbsent(key, &slot{val: val, gen: ns.gen}) {
		return false, nil
	}
	ns.dirty++
	return true, nil
}

// Delete removes key, reporting whether it was present.
func (ns *Namespace) Delete(dbIndex int, key string) (bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return false, err
	}
	ns.expireIfDue(d, key)
	found := d.keys.Delete(key)
	d.ttls.Delete(key)
	if found {
		ns.dirty++
	}
	return found, nil
}

// Rename moves the value at src to dst, overwriting dst if present, and
// carries over src's expiration. It reports kverr.NotFound if src is
// absent.
func (ns *Namespace) Rename(dbIndex int, src, dst string) error {
	d, err := ns.db(dbIndex)
	if err != nil {
		return err
	}
	ns.expireIfDue(d, src)
	s, ok := d.keys.Find(src)
	if !ok {
		return kverr.New(kverr.NotFound, "no such key %q", src)
	}
	d.keys.Set(dst, s)
	if deadline, ok := d.ttls.Find(src); ok {
		d.ttls.Set(dst, deadline)
	} else {
		d.ttls.Delete(dst)
	}
	d.keys.Delete(src)
	d.ttls.Delete(src)
	ns.dirty++
	return nil
}

// ExpireSet installs an absolute millisecond deadline on key, reporting
// kverr.NotFound if key is absent.
func (ns *Namespace) ExpireSet(dbIndex int, key string, deadlineMS int64) error {
	d, err := ns.db(dbIndex)
	if err != nil {
		return err
	}
	ns.expireIfDue(d, key)
	if _, ok := d.keys.Find(key); !ok {
		return kverr.New(kverr.NotFound, "no such key %q", key)
	}
	d.ttls.Set(key, deadlineMS)
	ns.dirty++
	return nil
}

// ExpireGet returns key's absolute millisecond deadline, or ok=false if
// key has none (including because it does not exist).
func (ns *Namespace) ExpireGet(dbIndex int, key string) (int64, bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return 0, false, err
	}
	ns.expireIfDue(d, key)
	deadline, ok := d.ttls.Find(key)
	return deadline, ok, nil
}

// Persist clears key's expiration, reporting whether it had one.
func (ns *Namespace) Persist(dbIndex int, key string) (bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return false, err
	}
	ns.expireIfDue(d, key)
	if !d.ttls.Delete(key) {
		return false, nil
	}
	ns.dirty++
	return true, nil
}

// RandomKey returns an arbitrary live key, or ok=false if the database is
// empty. A sampled key whose expiration has already passed is lazily
// removed and another is drawn (spec §4.8); after ten such draws in a row
// it gives up and reports ok=false even if live keys remain.
func (ns *Namespace) RandomKey(dbIndex int) (string, bool, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return "", false, err
	}
	for attempts := 0; attempts < 10; attempts++ {
		key, _, ok := d.keys.RandomEntry()
		if !ok {
			return "", false, nil
		}
		ns.expireIfDue(d, key)
		if _, ok := d.keys.Find(key); ok {
			return key, true, nil
		}
	}
	return "", false, nil
}

// Len returns the number of keys stored in dbIndex. Keys whose deadline
// has passed but that no lookup has lazily removed yet are still counted.
func (ns *Namespace) Len(dbIndex int) (int, error) {
	d, err := ns.db(dbIndex)
	if err != nil {
		return 0, err
	}
	return d.keys.Len(), nil
}

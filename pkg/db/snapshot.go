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

package db

import (
	"kvcore.dev/pkg/dict"
	"kvcore.dev/pkg/object"
)

// Snapshot is a point-in-time, read-only view of every database in a
// Namespace, safe for a background goroutine to walk while the
// Namespace that produced it keeps accepting writes. It is the
// Go-native replacement for fork()'s copy-on-write address space (spec
// §4.11's "platforms without fork" alternative): rather than duplicating
// the process, Freeze duplicates just the bucket/entry structure of
// each database's keyspace (dict.Table.Freeze) and arranges for any
// live Value mutated after the freeze to be transparently cloned first
// (LookupWrite's generation check), so a Snapshot's Values never change
// out from under the walk.
type Snapshot struct {
	dbs []snapshotDB
}

type snapshotDB struct {
	keys *dict.Table[string, *slot]
	ttls *dict.Table[string, int64]
}

// DBCount returns the number of databases captured in the snapshot.
func (s *Snapshot) DBCount() int { return len(s.dbs) }

// Entry is one key's frozen state, as observed at Freeze time.
type Entry struct {
	Key       string
	Value     *object.Value
	ExpireMS  int64
	HasExpire bool
}

// ForEach walks every key in database dbIndex as it stood at Freeze
// time, calling fn for each. It does not itself re-check expiration —
// spec §4.8 treats a snapshot as a faithful point-in-time copy, and it
// is the RDB writer's job to decide whether to persist already-expired
// keys (spec §4.10 keeps them, annotated with their deadline, so a
// restore can expire them again on load rather than silently dropping
// history a replica might still need).
func (s *Snapshot) ForEach(dbIndex int, fn func(Entry)) {
	d := s.dbs[dbIndex]
	it := d.keys.UnsafeIterator()
	for it.Next() {
		key := it.Key()
		val := it.Value().val
		deadline, hasExpire := d.ttls.Find(key)
		fn(Entry{Key: key, Value: val, ExpireMS: deadline, HasExpire: hasExpire})
	}
}

// Freeze captures a Snapshot of every database and bumps the Namespace's
// generation counter, so any subsequent LookupWrite clones a Value
// before mutating it rather than corrupting the view the Snapshot's
// consumer may still be reading. Call Release once the snapshot is no
// longer needed; it returns every table to the normal grow ratio at
// once, without counting how many snapshots are still outstanding.
func (ns *Namespace) Freeze() *Snapshot {
	ns.gen++
	snap := &Snapshot{dbs: make([]snapshotDB, len(ns.dbs))}
	for i, d := range ns.dbs {
		d.keys.SetInSnapshot(true)
		snap.dbs[i] = snapshotDB{
			keys: d.keys.Freeze(),
			ttls: d.ttls.Freeze(),
		}
	}
	return snap
}

// Release tells the Namespace an outstanding Snapshot is no longer being
// read, allowing dict.Table's rehash/resize throttling to relax back to
// its normal ratio (spec §4.11).
func (ns *Namespace) Release() {
	for _, d := range ns.dbs {
		d.keys.SetInSnapshot(false)
		d.ttls.SetInSnapshot(false)
	}
}

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

package object

import (
	"container/list"

	"kvcore.dev/pkg/dict"
	"kvcore.dev/pkg/intset"
	"kvcore.dev/pkg/sds"
	"kvcore.dev/pkg/skiplist"
	"kvcore.dev/pkg/ziplist"
)

// ZSetIndex is the skip-list-backed sorted set encoding's payload: the
// skip list gives ordered/rank access, the table gives O(1) ZSCORE.
// Exported from pkg/object (rather than kept private to pkg/types/zsettype)
// so Value.Clone below can duplicate it without an import cycle.
type ZSetIndex struct {
	SkipList *skiplist.List
	Scores   *dict.Table[string, float64]
}

// Clone returns an independent copy of v, sharing no mutable backing
// storage with it. Used by pkg/db to give a writer its own copy of a
// value that a background snapshot may still be serializing (spec
// §4.11's copy-on-write, extended down to the value level since
// dict.Table's own Freeze only protects a table's bucket/entry
// structure, not the Values its entries point to).
func (v *Value) Clone() *Value {
	nv := &Value{kind: v.kind, encoding: v.encoding, refcount: 1}
	switch p := v.payload.(type) {
	case nil:
		nv.payload = nil
	case int64:
		nv.payload = p
	case *sds.S:
		nv.payload = p.Dup()
	case *ziplist.List:
		nv.payload = p.Clone()
	case *intset.Set:
		nv.payload = p.Clone()
	case *list.List:
		nv.payload = cloneLinkedList(p)
	case *dict.Table[string, string]:
		nv.payload = copyTable(p)
	case *dict.Table[string, struct{}]:
		nv.payload = copyTable(p)
	case *dict.Table[string, float64]:
		nv.payload = copyTable(p)
	case *ZSetIndex:
		nv.payload = &ZSetIndex{SkipList: p.SkipList.Clone(), Scores: copyTable(p.Scores)}
	default:
		// Unknown payload type: fall back to sharing it. Every concrete
		// payload type used by pkg/types is listed above; reaching this
		// branch means a new encoding was added without a matching case.
		nv.payload = v.payload
	}
	return nv
}

// copyTable builds a fresh table holding t's entries, so writes to the
// copy never touch an entry node that t still reaches.
func copyTable[V any](t *dict.Table[string, V]) *dict.Table[string, V] {
	out := dict.NewStringTable[V]()
	it := t.UnsafeIterator()
	for it.Next() {
		out.Set(it.Key(), it.Value())
	}
	return out
}

func cloneLinkedList(l *list.List) *list.List {
	out := list.New()
	for e := l.Front(); e != nil; e = e.Next() {
		b := e.Value.([]byte)
		cp := make([]byte, len(b))
		copy(cp, b)
		out.PushBack(cp)
	}
	return out
}

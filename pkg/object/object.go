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

// Package object implements the typed value object of spec §4.6: a tagged
// union over string/list/set/zset/hash, each carrying one of a per-type
// set of encodings (spec §3's table) plus a reference count. Dispatch is
// a structural switch over Kind/Encoding, not virtual method dispatch —
// spec §9's "tagged unions instead of inheritance" design note.
//
// Grounded on the value-type discipline of the teacher's pkg/blob.Ref
// (small, comparable, explicitly-tagged value types) adapted here to a
// mutable, reference-counted container since unlike a blob ref, a kvcore
// Value's backing storage is mutated in place by the type-operation layer.
package object

import (
	"strconv"
	"sync/atomic"

	"kvcore.dev/pkg/config"
)

// Kind is the top-level type tag.
type Kind uint8

const (
	KindString Kind = iota
	KindList
	KindSet
	KindZSet
	KindHash
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindZSet:
		return "zset"
	case KindHash:
		return "hash"
	default:
		return "unknown"
	}
}

// Encoding is the concrete storage layout, meaningful only in combination
// with Kind (spec §3's per-type encoding table).
type Encoding uint8

const (
	EncSmallInt Encoding = iota
	EncInlineShort
	EncRaw
	EncPackedList
	EncLinkedList
	EncIntSet
	EncHashTable
	EncSkipList
)

func (e Encoding) String() string {
	switch e {
	case EncSmallInt:
		return "int"
	case EncInlineShort:
		return "embstr"
	case EncRaw:
		return "raw"
	case EncPackedList:
		return "ziplist"
	case EncLinkedList:
		return "linkedlist"
	case EncIntSet:
		return "intset"
	case EncHashTable:
		return "hashtable"
	case EncSkipList:
		return "skiplist"
	default:
		return "unknown"
	}
}

// Limits is the set of encoding-promotion thresholds, taken from
// pkg/config so the same values configured for a server flow straight
// into the type-operation layer.
type Limits = config.Limits

// DefaultLimits mirrors config.DefaultLimits for callers that construct
// objects without a full Config.
func DefaultLimits() Limits { return config.DefaultLimits() }

// inlineShortMax is the largest string stored co-located with its header
// (spec §3: "≤ 39 bytes"), independent of the configurable collection
// thresholds.
const inlineShortMax = 39

// Value is a typed value object: kind, encoding, refcount, and a payload
// whose concrete type depends on Kind/Encoding (documented per accessor
// in pkg/types).
type Value struct {
	kind     Kind
	encoding Encoding
	refcount int32
	payload  any
}

// Kind returns the value's type tag.
func (v *Value) Kind() Kind { return v.kind }

// Encoding returns the value's current encoding.
func (v *Value) Encoding() Encoding { return v.encoding }

// Payload returns the encoding-specific backing storage; pkg/types
// subpackages type-assert it to the concrete representation (e.g.
// *ziplist.List, *dict.Table[string,string]).
func (v *Value) Payload() any { return v.payload }

// SetPayload replaces the backing storage, used when a type-operation
// promotes an encoding in place.
func (v *Value) SetPayload(encoding Encoding, payload any) {
	v.encoding = encoding
	v.payload = payload
}

// NewRaw constructs a Value of the given kind with an explicit initial
// encoding and payload; used by the per-type constructors in pkg/types.
func NewRaw(kind Kind, encoding Encoding, payload any) *Value {
	return &Value{kind: kind, encoding: encoding, payload: payload, refcount: 1}
}

// Retain increments the reference count; call when a lookup hands out a
// handle that outlives the current command (spec §3's "reads that escape
// the container... increment the count").
func (v *Value) Retain() { atomic.AddInt32(&v.refcount, 1) }

// Release decrements the reference count, returning true once it reaches
// zero (the caller should then drop all references; Go's GC reclaims the
// payload itself once nothing points to it, so "destroy" has no separate
// free step beyond this signal). An interned small integer stops at
// sharedIntegerFloor and never reports zero.
func (v *Value) Release() bool {
	if n, ok := v.payload.(int64); ok && n >= 0 && n < sharedIntegerCount && sharedIntegers[n] == v {
		for {
			cur := atomic.LoadInt32(&v.refcount)
			if cur <= sharedIntegerFloor || atomic.CompareAndSwapInt32(&v.refcount, cur, cur-1) {
				return false
			}
		}
	}
	return atomic.AddInt32(&v.refcount, -1) <= 0
}

// RefCount returns the current reference count.
func (v *Value) RefCount() int32 { return atomic.LoadInt32(&v.refcount) }

// parseExactInt64 reports whether s round-trips through a signed 64-bit
// integer exactly, per spec §4.6's string-value small-int subcase.
func parseExactInt64(s string) (int64, bool) {
	if len(s) == 0 || len(s) > 20 {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}

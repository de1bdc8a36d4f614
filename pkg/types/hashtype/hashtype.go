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

// Package hashtype implements the hash type operations of spec §4.7: a
// packed entry list of alternating field/value pairs that promotes to a
// hash table once the entry count or any field/value length crosses the
// configured threshold. Promotion is computed once per mutating call from
// that call's own arguments and never revisited (spec §9's monotonicity
// resolution), matching the "downward conversion is not defined" rule of
// spec §4.6.
package hashtype

import (
	"fmt"
	"strconv"

	"kvcore.dev/pkg/dict"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/ziplist"
)

// New creates an empty hash value in the packed encoding.
func New() *object.Value {
	return object.NewRaw(object.KindHash, object.EncPackedList, ziplist.New())
}

func packed(v *object.Value) *ziplist.List { return v.Payload().(*ziplist.List) }
func table(v *object.Value) *dict.Table[string, string] {
	return v.Payload().(*dict.Table[string, string])
}

func typeCheck(v *object.Value) error {
	if v.Kind() != object.KindHash {
		return kverr.New(kverr.TypeMismatch, "value is not a hash")
	}
	return nil
}

// maybePromote converts a packed hash to a hash table once the entry
// count or the just-inserted field/value length crosses its threshold.
func maybePromote(v *object.Value, fieldLen, valueLen int, limits object.Limits) {
	if v.Encoding() != object.EncPackedList {
		return
	}
	zl := packed(v)
	if zl.Len()/2 > limits.HashMaxPackedEntries ||
		fieldLen > limits.HashMaxPackedValue || valueLen > limits.HashMaxPackedValue {
		promote(v)
	}
}

func promote(v *object.Value) {
	zl := packed(v)
	t := dict.NewStringTable[string]()
	c, ok := zl.Head()
	for ok {
		field := string(zl.Get(c).AsBytes())
		c, ok = zl.Next(c)
		if !ok {
			break
		}
		value := string(zl.Get(c).AsBytes())
		t.Set(field, value)
		c, ok = zl.Next(c)
	}
	v.SetPayload(object.EncHashTable, t)
}

// Set inserts or replaces field=value, applying promotion per the call's
// own lengths. It reports whether field was newly added.
func Set(v *object.Value, field, value string, limits object.Limits) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(field), 2)
		isNew := !found
		if found {
			valCursor, _ := zl.Next(c)
			zl.ReplaceAt(valCursor, ziplist.EntryFromValue([]byte(value)))
		} else {
			zl.PushTail(ziplist.EntryFromValue([]byte(field)))
			zl.PushTail(ziplist.EntryFromValue([]byte(value)))
		}
		maybePromote(v, len(field), len(value), limits)
		return isNew, nil
	case object.EncHashTable:
		t := table(v)
		isNew := t.AddIfAbsent(field, value)
		if !isNew {
			t.Set(field, value)
		}
		return isNew, nil
	default:
		return false, kverr.New(kverr.Format, "unknown hash encoding")
	}
}

// Get returns the value for field, or ok=false.
func Get(v *object.Value, field string) (string, bool, error) {
	if err := typeCheck(v); err != nil {
		return "", false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(field), 2)
		if !found {
			return "", false, nil
		}
		valCursor, _ := zl.Next(c)
		return string(zl.Get(valCursor).AsBytes()), true, nil
	case object.EncHashTable:
		s, ok := table(v).Find(field)
		return s, ok, nil
	default:
		return "", false, kverr.New(kverr.Format, "unknown hash encoding")
	}
}

// Del removes field, reporting whether it was present.
func Del(v *object.Value, field string) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(field), 2)
		if !found {
			return false, nil
		}
		valCursor, _ := zl.Next(c)
		zl.DeleteCursors(c, valCursor)
		return true, nil
	case object.EncHashTable:
		return table(v).Delete(field), nil
	default:
		return false, kverr.New(kverr.Format, "unknown hash encoding")
	}
}

// Len returns the number of fields.
func Len(v *object.Value) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		return packed(v).Len() / 2, nil
	case object.EncHashTable:
		return table(v).Len(), nil
	default:
		return 0, kverr.New(kverr.Format, "unknown hash encoding")
	}
}

// Field is a decoded field/value pair.
type Field struct {
	Name, Value string
}

// All returns every field/value pair, in encoding-defined order (packed
// hashes preserve insertion order; hash-table hashes do not guarantee
// any particular order).
func All(v *object.Value) ([]Field, error) {
	if err := typeCheck(v); err != nil {
		return nil, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		var out []Field
		c, ok := zl.Head()
		for ok {
			field := string(zl.Get(c).AsBytes())
			c, ok = zl.Next(c)
			if !ok {
				break
			}
			value := string(zl.Get(c).AsBytes())
			out = append(out, Field{field, value})
			c, ok = zl.Next(c)
		}
		return out, nil
	case object.EncHashTable:
		t := table(v)
		out := make([]Field, 0, t.Len())
		it := t.SafeIterator()
		for it.Next() {
			out = append(out, Field{it.Key(), it.Value()})
		}
		return out, nil
	default:
		return nil, kverr.New(kverr.Format, "unknown hash encoding")
	}
}

// IncrByFloat parses the current value of field (defaulting to 0 if
// absent), adds delta, stores and returns the formatted result. Per spec
// §4.7, a downstream replication/AOF log must record this as an
// unconditional SET rather than an INCRBYFLOAT, to avoid floating point
// divergence across replicas; kvcore surfaces that by always returning
// the formatted literal that should be logged, rather than the delta.
func IncrByFloat(v *object.Value, field string, delta float64, limits object.Limits) (string, error) {
	cur := 0.0
	s, ok, err := Get(v, field)
	if err != nil {
		return "", err
	}
	if ok {
		cur, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return "", kverr.New(kverr.OutOfRange, "hash value is not a float: %w", err)
		}
	}
	result := cur + delta
	formatted := fmt.Sprintf("%.17g", result)
	if _, err := Set(v, field, formatted, limits); err != nil {
		return "", err
	}
	return formatted, nil
}

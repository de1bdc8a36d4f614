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
	"strconv"

	"kvcore.dev/pkg/sds"
)

// sharedIntegerCount mirrors the source's small-integer object pool,
// used to avoid allocating a fresh Value for hot, repeatedly-returned
// replies like "0" or "1".
const sharedIntegerCount = 10000

// sharedIntegerFloor is the reference count an interned small integer
// never decrements below: it is a shared, immutable singleton, not owned
// by any one key (spec §3: "interned strings never decrement below a
// floor count").
const sharedIntegerFloor = 1

var sharedIntegers [sharedIntegerCount]*Value

func init() {
	for i := range sharedIntegers {
		sharedIntegers[i] = &Value{
			kind:     KindString,
			encoding: EncSmallInt,
			payload:  int64(i),
			refcount: sharedIntegerFloor,
		}
	}
}

// NewString builds a string Value choosing the narrowest admissible
// encoding for s, per spec §4.6: a round-trip-exact 64-bit integer is
// stored as a small-int (interned when it falls in the shared pool's
// range); otherwise a string of at most 39 bytes is stored inline;
// anything longer is stored raw.
func NewString(s string) *Value {
	if n, ok := parseExactInt64(s); ok {
		if n >= 0 && n < sharedIntegerCount {
			v := sharedIntegers[n]
			v.Retain()
			return v
		}
		return NewRaw(KindString, EncSmallInt, n)
	}
	if len(s) <= inlineShortMax {
		return NewRaw(KindString, EncInlineShort, sds.New([]byte(s)))
	}
	return NewRaw(KindString, EncRaw, sds.New([]byte(s)))
}

// StringBytes returns the byte content of a string Value regardless of
// its current encoding.
func (v *Value) StringBytes() []byte {
	switch v.encoding {
	case EncSmallInt:
		return []byte(strconv.FormatInt(v.payload.(int64), 10))
	case EncInlineShort, EncRaw:
		return v.payload.(*sds.S).Bytes()
	default:
		return nil
	}
}

// MutateString forces a string Value to the raw encoding and replaces its
// content, per spec §4.6 ("mutation forces raw-bytes").
func (v *Value) MutateString(content []byte) {
	v.kind = KindString
	v.encoding = EncRaw
	v.payload = sds.New(content)
}

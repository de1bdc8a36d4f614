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

// Package strtype implements the string type operations of spec §4.7: the
// encoding choice itself lives in pkg/object (small-int, inline-short,
// raw); this package layers the read/write commands on top, forcing a
// value to raw-bytes whenever a mutation needs in-place byte surgery
// (spec §4.6's "mutation forces raw-bytes").
package strtype

import (
	"strconv"

	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/sds"
)

func typeCheck(v *object.Value) error {
	if v.Kind() != object.KindString {
		return kverr.New(kverr.TypeMismatch, "value is not a string")
	}
	return nil
}

// New materializes a string value under the narrowest admissible
// encoding for s.
func New(s string) *object.Value { return object.NewString(s) }

// Get returns the string content.
func Get(v *object.Value) (string, error) {
	if err := typeCheck(v); err != nil {
		return "", err
	}
	return string(v.StringBytes()), nil
}

// Set replaces the content of v in place with s, re-deriving the
// narrowest admissible encoding rather than forcing raw-bytes, since a
// whole-value overwrite is not the "mutation" spec §4.6 means by
// forcing raw.
func Set(v *object.Value, s string) error {
	if err := typeCheck(v); err != nil {
		return err
	}
	*v = *object.NewString(s)
	return nil
}

// Strlen returns the byte length of v's content.
func Strlen(v *object.Value) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	return len(v.StringBytes()), nil
}

// Append concatenates tail onto v's content, forcing raw-bytes, and
// returns the new total length.
func Append(v *object.Value, tail string) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	s := sds.New(v.StringBytes()).Append([]byte(tail))
	v.MutateString(s.Bytes())
	return s.Len(), nil
}

// GetRange returns the inclusive, negative-indices-from-end substring
// of v's content, per spec §4.1's Range semantics.
func GetRange(v *object.Value, start, end int) (string, error) {
	if err := typeCheck(v); err != nil {
		return "", err
	}
	return string(sds.New(v.StringBytes()).Range(start, end)), nil
}

// SetRange overwrites v's content starting at offset with value,
// zero-padding any gap, forcing raw-bytes. It returns the new total
// length.
func SetRange(v *object.Value, offset int, value string) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, kverr.New(kverr.OutOfRange, "offset is negative")
	}
	cur := v.StringBytes()
	need := offset + len(value)
	out := make([]byte, max(len(cur), need))
	copy(out, cur)
	copy(out[offset:], value)
	v.MutateString(out)
	return len(out), nil
}

// IncrByFloat parses v's current content (default 0 if v is new/absent
// content is not handled here; callers materialize via New("0") first)
// as a float64, adds delta, stores and returns the
// formatted result.
func IncrByFloat(v *object.Value, delta float64) (string, error) {
	if err := typeCheck(v); err != nil {
		return "", err
	}
	cur, err := strconv.ParseFloat(string(v.StringBytes()), 64)
	if err != nil {
		return "", kverr.New(kverr.OutOfRange, "value is not a float: %w", err)
	}
	result := cur + delta
	formatted := strconv.FormatFloat(result, 'g', 17, 64)
	if err := Set(v, formatted); err != nil {
		return "", err
	}
	return formatted, nil
}

// IncrBy parses v's current content as a 64-bit integer, adds delta,
// stores and returns the result. It fails with OutOfRange on a
// non-integer current value or on signed overflow.
func IncrBy(v *object.Value, delta int64) (int64, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	cur, err := strconv.ParseInt(string(v.StringBytes()), 10, 64)
	if err != nil {
		return 0, kverr.New(kverr.OutOfRange, "value is not an integer: %w", err)
	}
	result := cur + delta
	if (delta > 0 && result < cur) || (delta < 0 && result > cur) {
		return 0, kverr.New(kverr.OutOfRange, "increment would overflow")
	}
	if err := Set(v, strconv.FormatInt(result, 10)); err != nil {
		return 0, err
	}
	return result, nil
}

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

// Package settype implements the set type operations of spec §4.7: a
// packed sorted integer array for sets of nothing but integers, promoting
// to a hash table (keyed on the member string, value unused) once a
// non-integer member is added or the intset grows past its entry limit.
// The set-algebra algorithms (intersection, union, difference) follow
// spec §4.7's cost-driven dispatch.
package settype

import (
	"math/rand/v2"
	"sort"
	"strconv"

	"kvcore.dev/pkg/dict"
	"kvcore.dev/pkg/intset"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
)

// New creates an empty set value in the intset encoding.
func New() *object.Value {
	return object.NewRaw(object.KindSet, object.EncIntSet, intset.New())
}

func ints(v *object.Value) *intset.Set { return v.Payload().(*intset.Set) }
func table(v *object.Value) *dict.Table[string, struct{}] {
	return v.Payload().(*dict.Table[string, struct{}])
}

func typeCheck(v *object.Value) error {
	if v.Kind() != object.KindSet {
		return kverr.New(kverr.TypeMismatch, "value is not a set")
	}
	return nil
}

func parseInt(member string) (int64, bool) {
	n, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != member {
		return 0, false
	}
	return n, true
}

func promote(v *object.Value) {
	is := ints(v)
	t := dict.NewStringTable[struct{}]()
	for _, n := range is.All() {
		t.Set(strconv.FormatInt(n, 10), struct{}{})
	}
	v.SetPayload(object.EncHashTable, t)
}

func maybePromote(v *object.Value, limits object.Limits) {
	if v.Encoding() != object.EncIntSet {
		return
	}
	if ints(v).Len() > limits.SetMaxIntsetEntries {
		promote(v)
	}
}

// Add inserts member, reporting whether it was newly added.
func Add(v *object.Value, member string, limits object.Limits) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncIntSet:
		n, isInt := parseInt(member)
		if !isInt {
			promote(v)
			return table(v).AddIfAbsent(member, struct{}{}), nil
		}
		added := ints(v).Insert(n)
		maybePromote(v, limits)
		return added, nil
	case object.EncHashTable:
		return table(v).AddIfAbsent(member, struct{}{}), nil
	default:
		return false, kverr.New(kverr.Format, "unknown set encoding")
	}
}

// Rem removes member, reporting whether it was present.
func Rem(v *object.Value, member string) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncIntSet:
		n, isInt := parseInt(member)
		if !isInt {
			return false, nil
		}
		return ints(v).Remove(n), nil
	case object.EncHashTable:
		return table(v).Delete(member), nil
	default:
		return false, kverr.New(kverr.Format, "unknown set encoding")
	}
}

// IsMember reports whether member is present.
func IsMember(v *object.Value, member string) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncIntSet:
		n, isInt := parseInt(member)
		if !isInt {
			return false, nil
		}
		return ints(v).Find(n), nil
	case object.EncHashTable:
		_, ok := table(v).Find(member)
		return ok, nil
	default:
		return false, kverr.New(kverr.Format, "unknown set encoding")
	}
}

// Card returns the member count.
func Card(v *object.Value) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	switch v.Encoding() {
	case object.EncIntSet:
		return ints(v).Len(), nil
	case object.EncHashTable:
		return table(v).Len(), nil
	default:
		return 0, kverr.New(kverr.Format, "unknown set encoding")
	}
}

// Members returns every member, in encoding-defined order (intset
// members are numerically ascending; hash-table members have no
// guaranteed order).
func Members(v *object.Value) ([]string, error) {
	if err := typeCheck(v); err != nil {
		return nil, err
	}
	switch v.Encoding() {
	case object.EncIntSet:
		is := ints(v)
		out := make([]string, is.Len())
		for i, n := range is.All() {
			out[i] = strconv.FormatInt(n, 10)
		}
		return out, nil
	case object.EncHashTable:
		t := table(v)
		out := make([]string, 0, t.Len())
		it := t.SafeIterator()
		for it.Next() {
			out = append(out, it.Key())
		}
		return out, nil
	default:
		return nil, kverr.New(kverr.Format, "unknown set encoding")
	}
}

// RandMember samples count members per spec §4.7's sampling rules: n<0
// draws |n| samples with replacement; n>=|S| returns every member;
// n*3>|S| removes random elements from a full copy down to n; otherwise
// it draws random elements into a working set until n distinct members
// are collected.
func RandMember(v *object.Value, n int) ([]string, error) {
	all, err := Members(v)
	if err != nil {
		return nil, err
	}
	size := len(all)
	if size == 0 {
		return nil, nil
	}
	if n < 0 {
		out := make([]string, -n)
		for i := range out {
			out[i] = all[rand.IntN(size)]
		}
		return out, nil
	}
	if n >= size {
		out := make([]string, size)
		copy(out, all)
		return out, nil
	}
	if n*3 > size {
		working := make([]string, size)
		copy(working, all)
		for len(working) > n {
			i := rand.IntN(len(working))
			working[i] = working[len(working)-1]
			working = working[:len(working)-1]
		}
		return working, nil
	}
	seen := make(map[int]bool, n)
	out := make([]string, 0, n)
	for len(out) < n {
		i := rand.IntN(size)
		if seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, all[i])
	}
	return out, nil
}

// setView is a uniform read-only handle used by the set-algebra helpers
// below so they can operate on mixed intset/hash-table encodings without
// repeating the per-encoding switch at every call site.
type setView struct {
	v    *object.Value
	card int
}

func view(v *object.Value) (setView, error) {
	card, err := Card(v)
	if err != nil {
		return setView{}, err
	}
	return setView{v: v, card: card}, nil
}

// Intersect computes the intersection of sets, per spec §4.7: sort
// ascending by cardinality, iterate the smallest testing membership in
// every other set.
func Intersect(sets []*object.Value) (*object.Value, error) {
	if len(sets) == 0 {
		return New(), nil
	}
	views := make([]setView, len(sets))
	for i, s := range sets {
		sv, err := view(s)
		if err != nil {
			return nil, err
		}
		views[i] = sv
	}
	sort.Slice(views, func(i, j int) bool { return views[i].card < views[j].card })
	smallest, err := Members(views[0].v)
	if err != nil {
		return nil, err
	}
	out := New()
	limits := object.DefaultLimits()
	for _, m := range smallest {
		all := true
		for _, other := range views[1:] {
			ok, err := IsMember(other.v, m)
			if err != nil {
				return nil, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			if _, err := Add(out, m, limits); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Union builds the union of sets, deduplicated.
func Union(sets []*object.Value) (*object.Value, error) {
	out := New()
	limits := object.DefaultLimits()
	for _, s := range sets {
		members, err := Members(s)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if _, err := Add(out, m, limits); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Difference computes a minus the union of subtract, choosing between
// spec §4.7's two algorithms by the same cost estimate: |A|*k/2 (skip
// membership testing against every subtrahend) versus sum of subtrahend
// cardinalities (build-then-remove).
func Difference(a *object.Value, subtract []*object.Value) (*object.Value, error) {
	aMembers, err := Members(a)
	if err != nil {
		return nil, err
	}
	k := len(subtract)
	if k == 0 {
		out := New()
		limits := object.DefaultLimits()
		for _, m := range aMembers {
			if _, err := Add(out, m, limits); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	costSkip := float64(len(aMembers)) * float64(k) / 2
	costRemove := 0.0
	for _, s := range subtract {
		card, err := Card(s)
		if err != nil {
			return nil, err
		}
		costRemove += float64(card)
	}
	limits := object.DefaultLimits()
	out := New()
	if costSkip <= costRemove {
		for _, m := range aMembers {
			skip := false
			for _, s := range subtract {
				ok, err := IsMember(s, m)
				if err != nil {
					return nil, err
				}
				if ok {
					skip = true
					break
				}
			}
			if !skip {
				if _, err := Add(out, m, limits); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	}
	for _, m := range aMembers {
		if _, err := Add(out, m, limits); err != nil {
			return nil, err
		}
	}
	for _, s := range subtract {
		members, err := Members(s)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if _, err := Rem(out, m); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

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

package settype

import (
	"sort"
	"testing"

	"kvcore.dev/pkg/object"
)

func addAll(t *testing.T, v *object.Value, limits object.Limits, members ...string) {
	t.Helper()
	for _, m := range members {
		if _, err := Add(v, m, limits); err != nil {
			t.Fatal(err)
		}
	}
}

func TestAddStaysIntset(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	addAll(t, v, limits, "1", "2", "3")
	if v.Encoding() != object.EncIntSet {
		t.Fatalf("encoding = %v, want intset", v.Encoding())
	}
	ok, err := IsMember(v, "2")
	if err != nil || !ok {
		t.Fatalf("IsMember(2) = %v, %v", ok, err)
	}
	card, err := Card(v)
	if err != nil || card != 3 {
		t.Fatalf("Card = %d, %v, want 3", card, err)
	}
}

func TestAddNonIntegerPromotes(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	addAll(t, v, limits, "1", "2", "hello")
	if v.Encoding() != object.EncHashTable {
		t.Fatalf("encoding = %v, want hashtable", v.Encoding())
	}
	for _, m := range []string{"1", "2", "hello"} {
		ok, err := IsMember(v, m)
		if err != nil || !ok {
			t.Fatalf("IsMember(%q) = %v, %v", m, ok, err)
		}
	}
}

func TestAddPromotesOnEntryCount(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	limits.SetMaxIntsetEntries = 2
	addAll(t, v, limits, "1", "2", "3")
	if v.Encoding() != object.EncHashTable {
		t.Fatalf("encoding = %v, want hashtable after overflow", v.Encoding())
	}
	card, err := Card(v)
	if err != nil || card != 3 {
		t.Fatalf("Card = %d, %v, want 3", card, err)
	}
}

func TestRem(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	addAll(t, v, limits, "1", "2", "3")
	ok, err := Rem(v, "2")
	if err != nil || !ok {
		t.Fatalf("Rem(2) = %v, %v", ok, err)
	}
	ok, err = IsMember(v, "2")
	if err != nil || ok {
		t.Fatalf("IsMember(2) after Rem = %v, %v, want false", ok, err)
	}
	ok, err = Rem(v, "missing")
	if err != nil || ok {
		t.Fatalf("Rem(missing) = %v, %v, want false", ok, err)
	}
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestIntersect(t *testing.T) {
	limits := object.DefaultLimits()
	a, b, c := New(), New(), New()
	addAll(t, a, limits, "1", "2", "3", "4")
	addAll(t, b, limits, "2", "3", "4", "5")
	addAll(t, c, limits, "3", "4", "5", "6")
	out, err := Intersect([]*object.Value{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	members, err := Members(out)
	if err != nil {
		t.Fatal(err)
	}
	got := sortedStrings(members)
	want := []string{"3", "4"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Intersect = %v, want %v", got, want)
	}
}

func TestUnion(t *testing.T) {
	limits := object.DefaultLimits()
	a, b := New(), New()
	addAll(t, a, limits, "1", "2")
	addAll(t, b, limits, "2", "3")
	out, err := Union([]*object.Value{a, b})
	if err != nil {
		t.Fatal(err)
	}
	card, err := Card(out)
	if err != nil || card != 3 {
		t.Fatalf("Card after Union = %d, %v, want 3", card, err)
	}
}

func TestDifference(t *testing.T) {
	limits := object.DefaultLimits()
	a, b, c := New(), New(), New()
	addAll(t, a, limits, "1", "2", "3", "4")
	addAll(t, b, limits, "2")
	addAll(t, c, limits, "3")
	out, err := Difference(a, []*object.Value{b, c})
	if err != nil {
		t.Fatal(err)
	}
	members, err := Members(out)
	if err != nil {
		t.Fatal(err)
	}
	got := sortedStrings(members)
	want := []string{"1", "4"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("Difference = %v, want %v", got, want)
	}
}

func TestDifferenceNoSubtrahends(t *testing.T) {
	limits := object.DefaultLimits()
	a := New()
	addAll(t, a, limits, "1", "2")
	out, err := Difference(a, nil)
	if err != nil {
		t.Fatal(err)
	}
	card, err := Card(out)
	if err != nil || card != 2 {
		t.Fatalf("Card = %d, %v, want 2", card, err)
	}
}

func TestRandMemberAllCases(t *testing.T) {
	limits := object.DefaultLimits()
	v := New()
	addAll(t, v, limits, "1", "2", "3", "4", "5")

	// n < 0: with replacement, may repeat, always returns |n|.
	out, err := RandMember(v, -10)
	if err != nil || len(out) != 10 {
		t.Fatalf("RandMember(-10) len = %d, %v, want 10", len(out), err)
	}

	// n >= |S|: returns every member.
	out, err = RandMember(v, 100)
	if err != nil || len(out) != 5 {
		t.Fatalf("RandMember(100) len = %d, %v, want 5", len(out), err)
	}

	// n*3 > |S|: distinct subset via remove-down-to-n.
	out, err = RandMember(v, 2)
	if err != nil || len(out) != 2 {
		t.Fatalf("RandMember(2) len = %d, %v, want 2", len(out), err)
	}
	if out[0] == out[1] {
		t.Fatalf("RandMember(2) returned duplicate member %q", out[0])
	}
}

func TestTypeMismatch(t *testing.T) {
	v := object.NewString("hello")
	if _, err := Card(v); err == nil {
		t.Fatalf("expected type-mismatch error")
	}
}

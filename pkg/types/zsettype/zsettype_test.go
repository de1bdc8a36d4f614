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

package zsettype

import (
	"strings"
	"testing"

	"kvcore.dev/pkg/object"
)

func TestAddScoreStaysPacked(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	isNew, err := Add(v, "alice", 10, limits)
	if err != nil || !isNew {
		t.Fatalf("Add = %v, %v", isNew, err)
	}
	if v.Encoding() != object.EncPackedList {
		t.Fatalf("encoding = %v, want packed", v.Encoding())
	}
	score, ok, err := Score(v, "alice")
	if err != nil || !ok || score != 10 {
		t.Fatalf("Score = %v, %v, %v", score, ok, err)
	}
}

func TestAddUpdatesExisting(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	if _, err := Add(v, "alice", 10, limits); err != nil {
		t.Fatal(err)
	}
	isNew, err := Add(v, "alice", 20, limits)
	if err != nil || isNew {
		t.Fatalf("Add = %v, %v, want isNew=false", isNew, err)
	}
	score, ok, err := Score(v, "alice")
	if err != nil || !ok || score != 20 {
		t.Fatalf("Score after update = %v, %v, %v, want 20", score, ok, err)
	}
	n, err := Card(v)
	if err != nil || n != 1 {
		t.Fatalf("Card = %d, %v, want 1", n, err)
	}
}

func TestPromotionOnEntryCount(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	limits.ZsetMaxPackedEntries = 2
	for i, name := range []string{"a", "b", "c"} {
		if _, err := Add(v, name, float64(i), limits); err != nil {
			t.Fatal(err)
		}
	}
	if v.Encoding() != object.EncSkipList {
		t.Fatalf("encoding = %v, want skiplist", v.Encoding())
	}
	n, err := Card(v)
	if err != nil || n != 3 {
		t.Fatalf("Card = %d, %v, want 3", n, err)
	}
	score, ok, err := Score(v, "b")
	if err != nil || !ok || score != 1 {
		t.Fatalf("Score(b) after promotion = %v, %v, %v, want 1", score, ok, err)
	}
}

func TestPromotionOnLongMember(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	if _, err := Add(v, "short", 1, limits); err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", limits.ZsetMaxPackedValue+1)
	if _, err := Add(v, long, 2, limits); err != nil {
		t.Fatal(err)
	}
	if v.Encoding() != object.EncSkipList {
		t.Fatalf("encoding = %v, want skiplist", v.Encoding())
	}
}

func TestRemPacked(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for i, name := range []string{"a", "b", "c"} {
		if _, err := Add(v, name, float64(i), limits); err != nil {
			t.Fatal(err)
		}
	}
	ok, err := Rem(v, "b")
	if err != nil || !ok {
		t.Fatalf("Rem(b) = %v, %v", ok, err)
	}
	if _, ok, _ := Score(v, "b"); ok {
		t.Fatalf("b still present after Rem")
	}
	// a and c must survive, guarding the same cursor-invalidation class
	// of bug as the hash type's Del.
	score, ok, err := Score(v, "a")
	if err != nil || !ok || score != 0 {
		t.Fatalf("Score(a) after Rem(b) = %v, %v, %v, want 0", score, ok, err)
	}
	score, ok, err = Score(v, "c")
	if err != nil || !ok || score != 2 {
		t.Fatalf("Score(c) after Rem(b) = %v, %v, %v, want 2", score, ok, err)
	}
}

func TestRankAndRangeByRankPacked(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	if _, err := Add(v, "c", 30, limits); err != nil {
		t.Fatal(err)
	}
	if _, err := Add(v, "a", 10, limits); err != nil {
		t.Fatal(err)
	}
	if _, err := Add(v, "b", 20, limits); err != nil {
		t.Fatal(err)
	}
	rank, ok, err := Rank(v, "b")
	if err != nil || !ok || rank != 1 {
		t.Fatalf("Rank(b) = %d, %v, %v, want 1", rank, ok, err)
	}
	members, err := RangeByRank(v, 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 3 || members[0].Element != "a" || members[2].Element != "c" {
		t.Fatalf("RangeByRank(0,-1) = %v", members)
	}
}

func TestRangeByScoreSkipList(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	limits.ZsetMaxPackedEntries = 0
	for i, name := range []string{"a", "b", "c", "d"} {
		if _, err := Add(v, name, float64(i*10), limits); err != nil {
			t.Fatal(err)
		}
	}
	if v.Encoding() != object.EncSkipList {
		t.Fatalf("expected skiplist encoding")
	}
	members, err := RangeByScore(v, 10, 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 2 || members[0].Element != "b" || members[1].Element != "c" {
		t.Fatalf("RangeByScore(10,20) = %v", members)
	}
}

func TestIncrBy(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	score, err := IncrBy(v, "alice", 5, limits)
	if err != nil || score != 5 {
		t.Fatalf("IncrBy = %v, %v, want 5", score, err)
	}
	score, err = IncrBy(v, "alice", 5, limits)
	if err != nil || score != 10 {
		t.Fatalf("IncrBy second = %v, %v, want 10", score, err)
	}
}

func TestTypeMismatch(t *testing.T) {
	v := object.NewString("hello")
	if _, _, err := Score(v, "m"); err == nil {
		t.Fatalf("expected type-mismatch error")
	}
}

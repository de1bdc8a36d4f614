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

package listtype

import (
	"fmt"
	"strings"
	"testing"

	"kvcore.dev/pkg/object"
)

func TestPushPopPacked(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	if err := PushTail(v, "b", limits); err != nil {
		t.Fatal(err)
	}
	if err := PushHead(v, "a", limits); err != nil {
		t.Fatal(err)
	}
	if err := PushTail(v, "c", limits); err != nil {
		t.Fatal(err)
	}
	n, err := Len(v)
	if err != nil || n != 3 {
		t.Fatalf("Len = %d, %v, want 3", n, err)
	}
	val, ok, err := PopHead(v)
	if err != nil || !ok || val != "a" {
		t.Fatalf("PopHead = %q, %v, %v, want a", val, ok, err)
	}
	val, ok, err = PopTail(v)
	if err != nil || !ok || val != "c" {
		t.Fatalf("PopTail = %q, %v, %v, want c", val, ok, err)
	}
}

func TestPromotionOnEntryCount(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	limits.ListMaxPackedEntries = 2
	for i := 0; i < 3; i++ {
		if err := PushTail(v, fmt.Sprintf("e%d", i), limits); err != nil {
			t.Fatal(err)
		}
	}
	if v.Encoding() != object.EncLinkedList {
		t.Fatalf("encoding = %v, want linked list", v.Encoding())
	}
	n, err := Len(v)
	if err != nil || n != 3 {
		t.Fatalf("Len = %d, %v, want 3", n, err)
	}
	val, ok, err := Index(v, 0)
	if err != nil || !ok || val != "e0" {
		t.Fatalf("Index(0) = %q, %v, %v, want e0", val, ok, err)
	}
}

func TestPromotionOnLongElement(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	if err := PushTail(v, "short", limits); err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", limits.ListMaxPackedValue+1)
	if err := PushTail(v, long, limits); err != nil {
		t.Fatal(err)
	}
	if v.Encoding() != object.EncLinkedList {
		t.Fatalf("encoding = %v, want linked list", v.Encoding())
	}
	val, ok, err := Index(v, 1)
	if err != nil || !ok || val != long {
		t.Fatalf("Index(1) after promotion mismatch: %v %v %v", val == long, ok, err)
	}
}

func TestIndexNegative(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for _, s := range []string{"a", "b", "c"} {
		if err := PushTail(v, s, limits); err != nil {
			t.Fatal(err)
		}
	}
	val, ok, err := Index(v, -1)
	if err != nil || !ok || val != "c" {
		t.Fatalf("Index(-1) = %q, %v, %v, want c", val, ok, err)
	}
	_, ok, err = Index(v, 10)
	if err != nil || ok {
		t.Fatalf("Index(10) should be out of range")
	}
}

func TestRange(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for _, s := range []string{"a", "b", "c", "d"} {
		if err := PushTail(v, s, limits); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Range(v, 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("Range(1,2) = %v", got)
	}
	got, err = Range(v, 0, -1)
	if err != nil || len(got) != 4 {
		t.Fatalf("Range(0,-1) = %v, %v", got, err)
	}
}

func TestInsertBeforeAfter(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for _, s := range []string{"a", "c"} {
		if err := PushTail(v, s, limits); err != nil {
			t.Fatal(err)
		}
	}
	n, err := InsertBefore(v, "c", "b", limits)
	if err != nil || n != 3 {
		t.Fatalf("InsertBefore = %d, %v, want 3", n, err)
	}
	got, err := Range(v, 0, -1)
	if err != nil || strings.Join(got, "") != "abc" {
		t.Fatalf("after InsertBefore: %v, %v", got, err)
	}
	n, err = InsertAfter(v, "c", "d", limits)
	if err != nil || n != 4 {
		t.Fatalf("InsertAfter = %d, %v, want 4", n, err)
	}
	got, err = Range(v, 0, -1)
	if err != nil || strings.Join(got, "") != "abcd" {
		t.Fatalf("after InsertAfter: %v, %v", got, err)
	}
	n, err = InsertBefore(v, "missing", "x", limits)
	if err != nil || n != -1 {
		t.Fatalf("InsertBefore missing pivot = %d, %v, want -1", n, err)
	}
}

func TestRemPacked(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for _, s := range []string{"a", "b", "a", "c", "a"} {
		if err := PushTail(v, s, limits); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := Rem(v, "a", 2)
	if err != nil || removed != 2 {
		t.Fatalf("Rem = %d, %v, want 2", removed, err)
	}
	got, err := Range(v, 0, -1)
	if err != nil || strings.Join(got, "") != "bca" {
		t.Fatalf("after Rem(2): %v, %v", got, err)
	}
}

func TestRemAll(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for _, s := range []string{"a", "b", "a"} {
		if err := PushTail(v, s, limits); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := Rem(v, "a", 0)
	if err != nil || removed != 2 {
		t.Fatalf("Rem(0) = %d, %v, want 2", removed, err)
	}
	got, err := Range(v, 0, -1)
	if err != nil || strings.Join(got, "") != "b" {
		t.Fatalf("after Rem(0): %v, %v", err, got)
	}
}

func TestRemNegativeCount(t *testing.T) {
	v := New()
	limits := object.DefaultLimits()
	for _, s := range []string{"a", "b", "a", "c", "a"} {
		if err := PushTail(v, s, limits); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := Rem(v, "a", -2)
	if err != nil || removed != 2 {
		t.Fatalf("Rem(-2) = %d, %v, want 2", removed, err)
	}
	// scanning tail-to-head, the two a's nearest the tail are removed,
	// leaving the first one intact.
	got, err := Range(v, 0, -1)
	if err != nil || strings.Join(got, "") != "abc" {
		t.Fatalf("after Rem(-2): %v, %v", got, err)
	}
}

func TestTypeMismatch(t *testing.T) {
	v := object.NewString("hello")
	if _, _, err := PopHead(v); err == nil {
		t.Fatalf("expected type-mismatch error")
	}
}

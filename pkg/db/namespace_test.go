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
	"testing"

	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/types/strtype"
)

func newTestNamespace(now int64) *Namespace {
	return New(4, func() int64 { return now })
}

func TestSetGetDelete(t *testing.T) {
	ns := newTestNamespace(1000)
	if err := ns.Set(0, "k", object.NewString("v")); err != nil {
		t.Fatal(err)
	}
	val, ok, err := ns.LookupRead(0, "k")
	if err != nil || !ok {
		t.Fatalf("LookupRead = %v, %v, %v", val, ok, err)
	}
	s, _ := strtype.Get(val)
	if s != "v" {
		t.Fatalf("value = %q, want v", s)
	}
	found, err := ns.Delete(0, "k")
	if err != nil || !found {
		t.Fatalf("Delete = %v, %v", found, err)
	}
	if _, ok, _ := ns.LookupRead(0, "k"); ok {
		t.Fatalf("k should be gone")
	}
}

func TestAddIfAbsent(t *testing.T) {
	ns := newTestNamespace(1000)
	added, err := ns.Add(0, "k", object.NewString("first"))
	if err != nil || !added {
		t.Fatalf("first Add = %v, %v", added, err)
	}
	added, err = ns.Add(0, "k", object.NewString("second"))
	if err != nil || added {
		t.Fatalf("second Add = %v, %v, want false", added, err)
	}
	val, _, _ := ns.LookupRead(0, "k")
	s, _ := strtype.Get(val)
	if s != "first" {
		t.Fatalf("value = %q, want first (unchanged)", s)
	}
}

func TestExpireLazyRemoval(t *testing.T) {
	now := int64(1000)
	ns := newTestNamespace(now)
	ns.Set(0, "k", object.NewString("v"))
	if err := ns.ExpireSet(0, "k", now+100); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ns.LookupRead(0, "k"); !ok {
		t.Fatalf("k should still be alive before its deadline")
	}
	now += 200
	ns2 := newTestNamespace(now)
	ns2.Set(0, "k", object.NewString("v"))
	ns2.ExpireSet(0, "k", now-100)
	if _, ok, _ := ns2.LookupRead(0, "k"); ok {
		t.Fatalf("k should be expired")
	}
	if n, _ := ns2.Len(0); n != 0 {
		t.Fatalf("expired key should have been lazily removed, Len = %d", n)
	}
}

func TestPersist(t *testing.T) {
	now := int64(1000)
	ns := newTestNamespace(now)
	ns.Set(0, "k", object.NewString("v"))
	ns.ExpireSet(0, "k", now+100)
	ok, err := ns.Persist(0, "k")
	if err != nil || !ok {
		t.Fatalf("Persist = %v, %v", ok, err)
	}
	if _, has, _ := ns.ExpireGet(0, "k"); has {
		t.Fatalf("expiration should be cleared")
	}
}

func TestRename(t *testing.T) {
	ns := newTestNamespace(1000)
	ns.Set(0, "src", object.NewString("v"))
	ns.ExpireSet(0, "src", 1500)
	if err := ns.Rename(0, "src", "dst"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := ns.LookupRead(0, "src"); ok {
		t.Fatalf("src should be gone after rename")
	}
	val, ok, _ := ns.LookupRead(0, "dst")
	if !ok {
		t.Fatalf("dst missing after rename")
	}
	s, _ := strtype.Get(val)
	if s != "v" {
		t.Fatalf("dst value = %q, want v", s)
	}
	if deadline, has, _ := ns.ExpireGet(0, "dst"); !has || deadline != 1500 {
		t.Fatalf("dst expiration = %d, %v, want 1500, true", deadline, has)
	}
}

func TestRenameMissingSource(t *testing.T) {
	ns := newTestNamespace(1000)
	if err := ns.Rename(0, "missing", "dst"); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestDBIndexOutOfRange(t *testing.T) {
	ns := newTestNamespace(1000)
	if err := ns.Set(99, "k", object.NewString("v")); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestFreezeIsolatesValueMutationFromSnapshot(t *testing.T) {
	ns := newTestNamespace(1000)
	ns.Set(0, "k", object.NewString("hello"))

	snap := ns.Freeze()

	val, _, err := ns.LookupWrite(0, "k")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := strtype.Append(val, " world"); err != nil {
		t.Fatal(err)
	}

	var frozen string
	snap.ForEach(0, func(e Entry) {
		if e.Key == "k" {
			frozen, _ = strtype.Get(e.Value)
		}
	})
	if frozen != "hello" {
		t.Fatalf("snapshot value = %q, want %q (must not observe the later mutation)", frozen, "hello")
	}

	live, _, _ := ns.LookupRead(0, "k")
	s, _ := strtype.Get(live)
	if s != "hello world" {
		t.Fatalf("live value = %q, want %q", s, "hello world")
	}
	ns.Release()
}

func TestRandomKey(t *testing.T) {
	ns := newTestNamespace(1000)
	if _, ok, _ := ns.RandomKey(0); ok {
		t.Fatalf("empty db should report ok=false")
	}
	ns.Set(0, "only", object.NewString("v"))
	key, ok, err := ns.RandomKey(0)
	if err != nil || !ok || key != "only" {
		t.Fatalf("RandomKey = %q, %v, %v", key, ok, err)
	}
}

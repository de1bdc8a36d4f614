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

package dict

import (
	"fmt"
	"testing"
)

func TestSetFindDelete(t *testing.T) {
	d := NewStringTable[int]()
	d.Set("a", 1)
	d.Set("b", 2)
	if v, ok := d.Find("a"); !ok || v != 1 {
		t.Fatalf("find a = %v, %v", v, ok)
	}
	if !d.Delete("a") {
		t.Fatalf("expected delete to report found")
	}
	if _, ok := d.Find("a"); ok {
		t.Fatalf("a should be gone")
	}
	if d.Delete("a") {
		t.Fatalf("second delete should report not found")
	}
}

func TestAddIfAbsent(t *testing.T) {
	d := NewStringTable[int]()
	if !d.AddIfAbsent("x", 1) {
		t.Fatalf("first add should succeed")
	}
	if d.AddIfAbsent("x", 2) {
		t.Fatalf("second add should fail")
	}
	v, _ := d.Find("x")
	if v != 1 {
		t.Fatalf("value should remain 1, got %d", v)
	}
}

func TestGrowsAndRehashesWithAllKeysIntact(t *testing.T) {
	d := NewStringTable[int]()
	const n = 5000
	for i := 0; i < n; i++ {
		d.Set(fmt.Sprintf("key-%d", i), i)
	}
	for i := 0; i < n; i++ {
		v, ok := d.Find(fmt.Sprintf("key-%d", i))
		if !ok || v != i {
			t.Fatalf("key-%d: got %v, %v", i, v, ok)
		}
	}
	if d.Len() != n {
		t.Fatalf("len = %d, want %d", d.Len(), n)
	}
}

func TestSafeIteratorVisitsAll(t *testing.T) {
	d := NewStringTable[int]()
	const n = 2000
	for i := 0; i < n; i++ {
		d.Set(fmt.Sprintf("k%d", i), i)
	}
	seen := make(map[string]bool)
	it := d.SafeIterator()
	for it.Next() {
		seen[it.Key()] = true
	}
	if len(seen) != n {
		t.Fatalf("iterator visited %d keys, want %d", len(seen), n)
	}
}

func TestRandomEntryOnNonEmpty(t *testing.T) {
	d := NewStringTable[int]()
	d.Set("only", 42)
	k, v, ok := d.RandomEntry()
	if !ok || k != "only" || v != 42 {
		t.Fatalf("got %q %v %v", k, v, ok)
	}
}

func TestRandomEntryOnEmpty(t *testing.T) {
	d := NewStringTable[int]()
	if _, _, ok := d.RandomEntry(); ok {
		t.Fatalf("expected ok=false on empty table")
	}
}

func TestFreezeIsolatesSnapshotFromLiveMutation(t *testing.T) {
	d := NewStringTable[int]()
	for i := 0; i < 200; i++ {
		d.Set(fmt.Sprintf("k%d", i), i)
	}
	snap := d.Freeze()

	// Mutate the live table after the freeze: overwrite existing keys,
	// delete some, add new ones, and force a resize.
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			d.Delete(fmt.Sprintf("k%d", i))
		} else {
			d.Set(fmt.Sprintf("k%d", i), i*1000)
		}
	}
	for i := 200; i < 2000; i++ {
		d.Set(fmt.Sprintf("k%d", i), i)
	}

	for i := 0; i < 200; i++ {
		v, ok := snap.Find(fmt.Sprintf("k%d", i))
		if !ok || v != i {
			t.Fatalf("snapshot k%d = %v, %v, want %d, true (frozen view must be unaffected by later live mutation)", i, v, ok, i)
		}
	}
	if snap.Len() != 200 {
		t.Fatalf("snapshot Len = %d, want 200", snap.Len())
	}
}

func TestShrinkKeepsData(t *testing.T) {
	d := NewStringTable[int]()
	const n = 1000
	for i := 0; i < n; i++ {
		d.Set(fmt.Sprintf("k%d", i), i)
	}
	for i := 0; i < n-5; i++ {
		d.Delete(fmt.Sprintf("k%d", i))
	}
	for i := n - 5; i < n; i++ {
		if _, ok := d.Find(fmt.Sprintf("k%d", i)); !ok {
			t.Fatalf("k%d missing after shrink", i)
		}
	}
}

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

package bgsave

import (
	"os"
	"path/filepath"
	"testing"

	"kvcore.dev/pkg/db"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/rdb"
	"kvcore.dev/pkg/rio"
	"kvcore.dev/pkg/types/strtype"
)

func fixedClock() int64 { return 42 }

func TestSaveWritesLoadableFile(t *testing.T) {
	ns := db.New(2, fixedClock)
	if err := ns.Set(0, "k", strtype.New("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dump.rdb")
	saver := New(ns, fixedClock, path)

	if err := saver.Save(rdb.Options{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	st := saver.Status()
	if !st.LastSaveOK || st.KeysSaved != 1 {
		t.Fatalf("status = %+v, want LastSaveOK and KeysSaved=1", st)
	}

	loaded := db.New(2, fixedClock)
	f, err := rio.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	if err := rdb.Load(f, loaded, object.DefaultLimits(), 0, rdb.Options{}, false); err != nil {
		t.Fatalf("Load: %v", err)
	}
	v, err := strtype.Get(mustLookup(t, loaded, "k"))
	if err != nil || v != "v" {
		t.Fatalf("loaded k = %q, %v", v, err)
	}
}

func mustLookup(t *testing.T, ns *db.Namespace, key string) *object.Value {
	t.Helper()
	v, ok, err := ns.LookupRead(0, key)
	if err != nil || !ok {
		t.Fatalf("lookup %q: ok=%v err=%v", key, ok, err)
	}
	return v
}

func TestConcurrentStartReportsBusy(t *testing.T) {
	ns := db.New(1, fixedClock)
	if err := ns.Set(0, "k", strtype.New("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dump.rdb")
	saver := New(ns, fixedClock, path)

	// Start marks inProgress synchronously (before the snapshot goroutine
	// is even spawned), so a second Start issued with no intervening work
	// is guaranteed to observe it, independent of how fast the first
	// save's I/O completes.
	if err := saver.Start(rdb.Options{}); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := saver.Start(rdb.Options{}); err == nil {
		t.Fatalf("second Start should report busy while a background save is in flight")
	}
	if err := saver.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestWriteSnapshotRemovesTempFileOnRename(t *testing.T) {
	ns := db.New(1, fixedClock)
	path := filepath.Join(t.TempDir(), "dump.rdb")
	saver := New(ns, fixedClock, path)
	if err := saver.Save(rdb.Options{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != "dump.rdb" {
			t.Fatalf("leftover file %q after a successful save", e.Name())
		}
	}
}

func TestDirtyReducedNotReset(t *testing.T) {
	ns := db.New(1, fixedClock)
	if err := ns.Set(0, "a", strtype.New("1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dump.rdb")
	saver := New(ns, fixedClock, path)

	if err := saver.Save(rdb.Options{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ns.Dirty() != 0 {
		t.Fatalf("dirty after a save with no concurrent writes = %d, want 0", ns.Dirty())
	}
}

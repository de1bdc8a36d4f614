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

// Package bgsave implements the background-save protocol of spec §4.11:
// reject a second concurrent save, snapshot the namespace, write it to a
// temp file, and atomically publish it over the target on success.
//
// The original protocol forks a child process and lets the OS's
// copy-on-write page mapping isolate the snapshot from the live
// process; spec §9's own "platforms without fork" note is the one
// adopted here (SPEC_FULL.md §5): db.Namespace.Freeze replaces fork,
// and golang.org/x/sync/errgroup replaces wait(2) for learning when the
// snapshot goroutine finishes and what it returned, the same role the
// teacher's tailscale/cloud-storage dependency chain uses errgroup for
// (coordinating a spawned worker and its caller without hand-rolled
// channels).
package bgsave

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"kvcore.dev/pkg/db"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/rdb"
	"kvcore.dev/pkg/rio"
)

// Status reports the outcome of the most recently finished save.
type Status struct {
	InProgress     bool
	LastSaveUnixMS int64
	LastSaveOK     bool
	LastError      string
	KeysSaved      int
}

// Saver runs background and foreground saves against one Namespace,
// serializing the two against each other (spec §4.11 step 6: "it must
// not run concurrently with a background save").
type Saver struct {
	ns     *db.Namespace
	nowMS  func() int64
	path   string

	mu         sync.Mutex
	inProgress bool
	status     Status

	eg *errgroup.Group
}

// New creates a Saver that writes snapshots of ns to path.
func New(ns *db.Namespace, nowMS func() int64, path string) *Saver {
	return &Saver{ns: ns, nowMS: nowMS, path: path}
}

// Status returns a copy of the most recent save's outcome.
func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.InProgress = s.inProgress
	return st
}

// Start begins a background save: freeze the namespace, hand the
// snapshot to a goroutine that writes it under a temp name and
// publishes it by atomic rename, and return immediately. It reports
// kverr.Busy if a save is already running (spec §4.11 step 1).
func (s *Saver) Start(opt rdb.Options) error {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return kverr.New(kverr.Busy, "a background save is already in progress")
	}
	s.inProgress = true
	dirtyAtFreeze := s.ns.Dirty()
	snap := s.ns.Freeze()
	eg := &errgroup.Group{}
	s.eg = eg
	s.mu.Unlock()

	eg.Go(func() error {
		defer s.ns.Release()
		keysSaved, err := writeSnapshot(s.path, snap, opt)
		s.finish(dirtyAtFreeze, keysSaved, err)
		return err
	})
	return nil
}

// Wait blocks until the most recently started background save
// finishes, returning its error (nil on success). It is a no-op
// returning nil if no save has ever been started.
func (s *Saver) Wait() error {
	s.mu.Lock()
	eg := s.eg
	s.mu.Unlock()
	if eg == nil {
		return nil
	}
	return eg.Wait()
}

func (s *Saver) finish(dirtyAtFreeze uint64, keysSaved int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inProgress = false
	s.status.LastSaveUnixMS = s.nowMS()
	s.status.KeysSaved = keysSaved
	if err != nil {
		s.status.LastSaveOK = false
		s.status.LastError = err.Error()
		return
	}
	s.status.LastSaveOK = true
	s.status.LastError = ""
	s.ns.ReduceDirty(dirtyAtFreeze)
}

// Save performs a direct foreground save with the same writer used by a
// background save (spec §4.11 step 6), blocking the caller until the
// file is published. It fails with kverr.Busy if a background save is
// currently running.
func (s *Saver) Save(opt rdb.Options) error {
	s.mu.Lock()
	if s.inProgress {
		s.mu.Unlock()
		return kverr.New(kverr.Busy, "a background save is already in progress")
	}
	s.inProgress = true
	dirtyAtFreeze := s.ns.Dirty()
	snap := s.ns.Freeze()
	s.mu.Unlock()

	defer s.ns.Release()
	keysSaved, err := writeSnapshot(s.path, snap, opt)
	s.finish(dirtyAtFreeze, keysSaved, err)
	return err
}

// writeSnapshot writes snap to a temp file beside path and atomically
// renames it over path on success, unlinking the temp file on failure
// (spec §4.11 step 5's "on failure unlink the temp file").
func writeSnapshot(path string, snap *db.Snapshot, opt rdb.Options) (int, error) {
	tmpPath := fmt.Sprintf("%s.temp-%d", path, os.Getpid())
	f, err := rio.CreateFile(tmpPath, 0)
	if err != nil {
		return 0, err
	}
	keysSaved := 0
	opt.Progress = func(n int) { keysSaved = n }
	writeErr := rdb.Write(f, snap, opt)
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpPath)
		if writeErr != nil {
			return keysSaved, writeErr
		}
		return keysSaved, closeErr
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return keysSaved, err
	}
	return keysSaved, nil
}

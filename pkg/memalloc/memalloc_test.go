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

package memalloc

import (
	"runtime"
	"testing"
)

func TestAllocRoundsUpToWordSize(t *testing.T) {
	a := New(0, nil)
	if got := a.Alloc(1); got != 8 {
		t.Fatalf("Alloc(1) = %d, want 8", got)
	}
	if got := a.Alloc(8); got != 8 {
		t.Fatalf("Alloc(8) = %d, want 8", got)
	}
	if got := a.Alloc(9); got != 16 {
		t.Fatalf("Alloc(9) = %d, want 16", got)
	}
	if a.Used() != 32 {
		t.Fatalf("Used() = %d, want 32", a.Used())
	}
}

func TestFreeNeverGoesNegative(t *testing.T) {
	a := New(0, nil)
	rounded := a.Alloc(8)
	a.Free(rounded)
	a.Free(rounded)
	if a.Used() != 0 {
		t.Fatalf("Used() = %d, want 0 after over-freeing", a.Used())
	}
}

func TestAllocInvokesOnOOMWhenOverLimit(t *testing.T) {
	a := New(16, nil)
	var gotRequested, gotUsed, gotLimit int64
	called := false
	a.OnOOM = func(requested, used, limit int64) {
		called = true
		gotRequested, gotUsed, gotLimit = requested, used, limit
	}
	a.Alloc(8)
	a.Alloc(16)
	if !called {
		t.Fatalf("OnOOM was not invoked when the limit would be exceeded")
	}
	if gotRequested != 16 || gotUsed != 8 || gotLimit != 16 {
		t.Fatalf("OnOOM args = (%d,%d,%d), want (16,8,16)", gotRequested, gotUsed, gotLimit)
	}
}

func TestAllocWithinLimitDoesNotInvokeOnOOM(t *testing.T) {
	a := New(1024, nil)
	a.OnOOM = func(requested, used, limit int64) {
		t.Fatalf("OnOOM should not fire within the limit")
	}
	a.Alloc(64)
}

func TestSampleRSS(t *testing.T) {
	a := New(0, nil)
	rss, err := a.SampleRSS()
	if runtime.GOOS != "linux" {
		if err == nil {
			t.Fatalf("SampleRSS should fail on %s", runtime.GOOS)
		}
		return
	}
	if err != nil {
		t.Fatalf("SampleRSS: %v", err)
	}
	if rss <= 0 {
		t.Fatalf("SampleRSS() = %d, want > 0", rss)
	}
}

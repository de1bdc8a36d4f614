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

// Package memalloc implements the memory accounting of spec §4.13: an
// atomic byte counter that every allocation rounds up to machine-word
// alignment before adding, an OOM hook invoked when a caller-supplied
// limit would be exceeded, and an RSS sampler reading the OS's view of
// the process's resident set for comparison against the counter's own
// bookkeeping.
package memalloc

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"

	"kvcore.dev/pkg/kverr"
)

const wordSize = 8

// roundUp rounds n up to the next multiple of the machine word size,
// spec §4.13's "rounds the caller-requested size up to machine word
// alignment" rule.
func roundUp(n int) int64 {
	if n <= 0 {
		return 0
	}
	return int64((n + wordSize - 1) / wordSize * wordSize)
}

// Accountant tracks live allocated bytes with an atomic counter, exposes
// them as Prometheus gauges, and calls an OOM handler when a proposed
// allocation would exceed a configured limit.
type Accountant struct {
	used  atomic.Int64
	limit int64

	// OnOOM is invoked (in the caller's goroutine) when Alloc would push
	// Used() past limit. The default prints and exits, matching spec
	// §4.13's "by default prints and aborts"; tests install their own to
	// observe the event instead of terminating.
	OnOOM func(requested int64, used int64, limit int64)
}

// New creates an Accountant with no limit (limit <= 0 disables the OOM
// check) and registers its gauges with reg. reg may be nil to skip
// registration (e.g. in tests that construct more than one Accountant,
// which would otherwise collide on the default registry).
func New(limit int64, reg prometheus.Registerer) *Accountant {
	a := &Accountant{limit: limit}
	a.OnOOM = func(requested, used, limit int64) {
		fmt.Fprintf(os.Stderr, "kvcore: out of memory: requested %s, used %s, limit %s\n",
			humanize.Bytes(uint64(requested)), humanize.Bytes(uint64(used)), humanize.Bytes(uint64(limit)))
		os.Exit(1)
	}
	if reg != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "kvcore_memory_used_bytes",
				Help: "Bytes currently accounted for by the memalloc byte counter.",
			}, func() float64 { return float64(a.Used()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: "kvcore_memory_rss_bytes",
				Help: "Resident set size of the process, sampled from the OS.",
			}, func() float64 {
				rss, err := a.SampleRSS()
				if err != nil {
					return 0
				}
				return float64(rss)
			}),
		)
	}
	return a
}

// Alloc records a new allocation of n requested bytes (rounded up to
// word alignment) and returns the rounded size to store as a prefix
// ahead of the caller's block, per spec §4.13: "where the allocator
// cannot report block size, a size prefix is stored ahead of the
// returned pointer." It invokes OnOOM first if this would exceed the
// configured limit.
func (a *Accountant) Alloc(n int) int64 {
	rounded := roundUp(n)
	if a.limit > 0 && a.used.Load()+rounded > a.limit {
		a.OnOOM(rounded, a.used.Load(), a.limit)
	}
	a.used.Add(rounded)
	return rounded
}

// Free records that a block previously sized by Alloc (the exact
// rounded size it returned) has been released.
func (a *Accountant) Free(rounded int64) {
	if a.used.Add(-rounded) < 0 {
		a.used.Store(0)
	}
}

// Used returns the current accounted byte count, never negative.
func (a *Accountant) Used() int64 {
	if u := a.used.Load(); u > 0 {
		return u
	}
	return 0
}

// SampleRSS reads the process's resident set size from the OS. Only
// Linux's /proc/self/status is supported; other platforms report
// kverr.IO, matching spec §4.13's "an optional sampling routine" (it is
// not required to succeed everywhere).
func (a *Accountant) SampleRSS() (int64, error) {
	if runtime.GOOS != "linux" {
		return 0, kverr.New(kverr.IO, "RSS sampling is not supported on %s", runtime.GOOS)
	}
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return 0, kverr.New(kverr.IO, "reading /proc/self/status: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, kverr.New(kverr.Format, "malformed VmRSS line %q", line)
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, kverr.New(kverr.Format, "parsing VmRSS value: %w", err)
		}
		return kb * 1024, nil
	}
	return 0, kverr.New(kverr.IO, "VmRSS not found in /proc/self/status")
}

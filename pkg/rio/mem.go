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

package rio

import (
	"fmt"

	"kvcore.dev/pkg/sds"
)

// MemIO is the memory-backed IO implementation of spec §4.9: reads and
// writes against a dynamic byte string (pkg/sds) rather than a file,
// used for in-process round-tripping (tests, and DEBUG-style dump/
// restore of a single value) without touching disk.
type MemIO struct {
	buf *sds.S
	pos int
	cks checksum
}

// NewMemIO creates an empty MemIO, ready for writing.
func NewMemIO() *MemIO { return &MemIO{buf: sds.New(nil)} }

// NewMemIOFromBytes wraps an already-populated buffer for reading.
func NewMemIOFromBytes(b []byte) *MemIO { return &MemIO{buf: sds.New(b)} }

// Bytes returns the buffer's current content.
func (m *MemIO) Bytes() []byte { return m.buf.Bytes() }

func (m *MemIO) Read(buf []byte) (bool, error) {
	avail := m.buf.Len() - m.pos
	if len(buf) == 0 {
		return true, nil
	}
	if avail <= 0 {
		return false, nil
	}
	if avail < len(buf) {
		return false, fmt.Errorf("rio: short read: need %d bytes, have %d", len(buf), avail)
	}
	copy(buf, m.buf.Bytes()[m.pos:m.pos+len(buf)])
	m.pos += len(buf)
	return true, nil
}

func (m *MemIO) Write(buf []byte) (bool, error) {
	m.buf.Append(buf)
	m.pos += len(buf)
	return true, nil
}

func (m *MemIO) Tell() int64 { return int64(m.pos) }

func (m *MemIO) UpdateChecksum(buf []byte) { m.cks.update(buf) }

func (m *MemIO) Checksum() uint64 { return m.cks.sum() }

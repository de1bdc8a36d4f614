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

package ziplist

import "bytes"

// Cursor identifies an entry by its byte offset into the packed buffer.
type Cursor int

// Head returns a cursor to the first entry, or ok=false if empty.
func (l *List) Head() (Cursor, bool) {
	if l.buf[l.firstOffset()] == terminator {
		return 0, false
	}
	return Cursor(l.firstOffset()), true
}

// Tail returns a cursor to the last entry, or ok=false if empty.
func (l *List) Tail() (Cursor, bool) {
	off := int(l.tailOffset())
	if l.buf[off] == terminator {
		return 0, false
	}
	return Cursor(off), true
}

// Next advances a cursor; ok is false once the terminator is reached.
func (l *List) Next(c Cursor) (Cursor, bool) {
	h := l.entryAt(int(c))
	next := int(c) + h.totalSize
	if l.buf[next] == terminator {
		return 0, false
	}
	return Cursor(next), true
}

// Prev steps a cursor backward using the prevlen field; ok is false at
// the head.
func (l *List) Prev(c Cursor) (Cursor, bool) {
	if int(c) == l.firstOffset() {
		return 0, false
	}
	h := l.entryAt(int(c))
	return Cursor(int(c) - int(h.prevLen)), true
}

// Get decodes the entry at c.
func (l *List) Get(c Cursor) Entry {
	h := l.entryAt(int(c))
	return h.decode(l.buf)
}

// bumpCount adds delta to the count field, saturating at CountSaturated
// per spec §4.2/§9 ("saturating count in packed lists") and flooring at
// zero.
func (l *List) bumpCount(delta int) {
	c := l.rawCount()
	if c == CountSaturated {
		return
	}
	nc := int(c) + delta
	if nc >= CountSaturated {
		l.setRawCount(CountSaturated)
	} else if nc < 0 {
		l.setRawCount(0)
	} else {
		l.setRawCount(uint16(nc))
	}
}

// entryOffsets returns the byte offsets of every entry, in order.
func (l *List) entryOffsets() []int {
	var offs []int
	off := l.firstOffset()
	for l.buf[off] != terminator {
		offs = append(offs, off)
		off += l.entryAt(off).totalSize
	}
	return offs
}

// rebuild reassembles the whole buffer from the full, already-edited
// entry list, with correct prevlen fields throughout. This is the
// cascade-update mechanism: recomputing prevlen widths forward from the
// mutation point until they stop changing is exactly what a full rebuild
// of the suffix achieves, just without tracking where the cascade
// happened to stop.
func (l *List) rebuild(entries []Entry) {
	contents := make([][]byte, len(entries))
	for i, e := range entries {
		contents[i] = encodeEntryContent(e)
	}
	total := headerSize
	// An entry's prevlen width depends only on the total size of the entry
	// before it, so one forward pass sizes every entry exactly, however far
	// a widening from 1 to 5 bytes cascades down the list.
	sizes := make([]int, len(entries))
	plSizes := make([]int, len(entries))
	for i, c := range contents {
		plSizes[i] = 1
		if i > 0 {
			plSizes[i] = prevLenSize(uint32(sizes[i-1]))
		}
		sizes[i] = plSizes[i] + len(c)
	}
	for _, sz := range sizes {
		total += sz
	}
	total++ // terminator

	buf := make([]byte, total)
	off := headerSize
	tailOff := headerSize
	for i, c := range contents {
		var prevLen uint32
		if i > 0 {
			prevLen = uint32(sizes[i-1])
		}
		n := putPrevLen(buf[off:], prevLen)
		copy(buf[off+n:], c)
		tailOff = off
		off += n + len(c)
	}
	buf[off] = terminator
	if len(entries) == 0 {
		tailOff = headerSize
	}

	l.buf = buf
	l.setTotalBytes(uint32(len(buf)))
	l.setTailOffset(uint32(tailOff))
	if len(entries) >= CountSaturated {
		l.setRawCount(CountSaturated)
	} else {
		l.setRawCount(uint16(len(entries)))
	}
}

func (l *List) allEntries() []Entry {
	offs := l.entryOffsets()
	out := make([]Entry, len(offs))
	for i, o := range offs {
		out[i] = l.Get(Cursor(o))
	}
	return out
}

// PushHead inserts e as the new first entry.
func (l *List) PushHead(e Entry) {
	entries := append([]Entry{e}, l.allEntries()...)
	l.rebuild(entries)
}

// PushTail inserts e as the new last entry.
func (l *List) PushTail(e Entry) {
	entries := append(l.allEntries(), e)
	l.rebuild(entries)
}

// InsertBefore inserts e immediately before the entry at cursor c.
func (l *List) InsertBefore(c Cursor, e Entry) {
	offs := l.entryOffsets()
	idx := indexOf(offs, int(c))
	entries := l.allEntries()
	out := make([]Entry, 0, len(entries)+1)
	out = append(out, entries[:idx]...)
	out = append(out, e)
	out = append(out, entries[idx:]...)
	l.rebuild(out)
}

// ReplaceAt overwrites the entry at cursor c with e.
func (l *List) ReplaceAt(c Cursor, e Entry) {
	offs := l.entryOffsets()
	idx := indexOf(offs, int(c))
	if idx < 0 {
		return
	}
	entries := l.allEntries()
	entries[idx] = e
	l.rebuild(entries)
}

// DeleteAt removes the entry at cursor c.
func (l *List) DeleteAt(c Cursor) {
	offs := l.entryOffsets()
	idx := indexOf(offs, int(c))
	if idx < 0 {
		return
	}
	entries := l.allEntries()
	out := append(entries[:idx:idx], entries[idx+1:]...)
	l.rebuild(out)
}

// DeleteCursors removes every entry identified by cs in one rebuild, so
// that deleting a field/value pair (two cursors into the same, not-yet-
// rebuilt buffer) doesn't invalidate the second cursor before it is
// resolved, the way two sequential DeleteAt calls would.
func (l *List) DeleteCursors(cs ...Cursor) {
	offs := l.entryOffsets()
	remove := make(map[int]bool, len(cs))
	for _, c := range cs {
		remove[indexOf(offs, int(c))] = true
	}
	entries := l.allEntries()
	out := entries[:0:0]
	for i, e := range entries {
		if !remove[i] {
			out = append(out, e)
		}
	}
	l.rebuild(out)
}

// DeleteRange removes count entries starting at the 0-based index start.
func (l *List) DeleteRange(start, count int) {
	entries := l.allEntries()
	if start < 0 {
		start = 0
	}
	if start >= len(entries) || count <= 0 {
		return
	}
	end := start + count
	if end > len(entries) {
		end = len(entries)
	}
	out := append(entries[:start:start], entries[end:]...)
	l.rebuild(out)
}

func indexOf(offs []int, target int) int {
	for i, o := range offs {
		if o == target {
			return i
		}
	}
	return -1
}

// Find scans for an entry byte-equal to value, examining every skip-th
// entry (skip=1 examines every entry; skip=2 examines every other entry,
// for associative field/value scans over a flattened packed hash/zset).
// It returns the cursor of the matching entry, or ok=false.
func (l *List) Find(value []byte, skip int) (Cursor, bool) {
	if skip <= 0 {
		skip = 1
	}
	offs := l.entryOffsets()
	for i := 0; i < len(offs); i += skip {
		if bytes.Equal(l.Get(Cursor(offs[i])).AsBytes(), value) {
			return Cursor(offs[i]), true
		}
	}
	return 0, false
}

// Len returns the entry count, scanning the list when the header's count
// field has saturated (spec §9's saturating-count note: the sentinel must
// never be returned as the actual length).
func (l *List) Len() int {
	c := l.rawCount()
	if c != CountSaturated {
		return int(c)
	}
	return len(l.entryOffsets())
}

// BlobLen returns the total size in bytes of the packed buffer.
func (l *List) BlobLen() int { return int(l.totalBytes()) }

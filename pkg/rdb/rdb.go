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

// Package rdb implements the snapshot codec of spec §4.10: a single
// binary stream holding every database's keys, laid out as a magic
// string, a version, a sequence of per-key records, an end-of-stream
// opcode, and a trailing CRC64 over everything before it.
//
// Grounded on the teacher's pkg/schema blob-format readers/writers: a
// handful of small, composable encode/decode functions over an
// io.Reader/Writer-like seam (here pkg/rio.IO) rather than one
// monolithic (de)serializer, so the natural/compact per-type element
// codecs below can be tested independently of the whole-namespace
// Write/Load entry points.
package rdb

import (
	"encoding/binary"
	"fmt"

	"kvcore.dev/pkg/db"
	"kvcore.dev/pkg/intset"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/rio"
	"kvcore.dev/pkg/types/hashtype"
	"kvcore.dev/pkg/types/listtype"
	"kvcore.dev/pkg/types/settype"
	"kvcore.dev/pkg/types/zsettype"
	"kvcore.dev/pkg/ziplist"
)

// magic and CurrentVersion identify the stream; Load accepts any version
// from 1 through CurrentVersion (spec §4.12: "a version field, permitting
// older file versions to be read").
const (
	magic          = "KVDB"
	CurrentVersion = 1
)

// Opcodes terminate the record stream, select the database subsequent
// records belong to, or mark a key-value record's optional expiration
// prefix (spec §4.10), interleaved with the real type opcodes below.
const (
	opEOF       = 0xFF
	opSelectDB  = 0xFE
	opExpireSec = 0xFD
	opExpireMS  = 0xFC
)

// Type opcodes, one per (Kind, Encoding) pair a Value can hold. The
// packed encodings are written in their compact, opaque on-disk form
// (the ziplist/intset's own byte layout); the table/skiplist/linked-list
// encodings are written in a natural form (an explicit element count
// followed by each element), since their in-memory layout has no
// meaningful serialized form of its own.
const (
	typeStringRaw    = 0
	typeListPacked   = 1
	typeListLinked   = 2
	typeSetIntset    = 3
	typeSetHashtable = 4
	typeZSetPacked   = 5
	typeZSetSkiplist = 6
	typeHashPacked   = 7
	typeHashTable    = 8
)

// Options configures a single Write or Load call.
type Options struct {
	// UseLZF enables LZF string compression while writing (spec §6's
	// rdb-compression). Load never needs this: the special string
	// encoding says for itself whether a given string is compressed.
	UseLZF bool
	// UseChecksum writes (or verifies, on Load) the trailing CRC64 (spec
	// §6's rdb-checksum / §4.12's "skip verification if disabled").
	UseChecksum bool
	// Progress, if non-nil, is invoked after each key is written or
	// loaded with the cumulative key count across all databases.
	Progress func(keysDone int)
}

func writeHeader(w rio.IO) error {
	buf := make([]byte, 0, len(magic)+4)
	buf = append(buf, magic...)
	buf = append(buf, fmt.Sprintf("%04d", CurrentVersion)...)
	return writeAll(w, buf)
}

// readHeader validates the magic and returns the stream's version.
func readHeader(r rio.IO) (version int, err error) {
	buf := make([]byte, len(magic)+4)
	if err := readAll(r, buf); err != nil {
		return 0, err
	}
	if string(buf[:len(magic)]) != magic {
		return 0, kverr.New(kverr.Format, "not a kvcore snapshot (bad magic)")
	}
	var v int
	if _, err := fmt.Sscanf(string(buf[len(magic):]), "%04d", &v); err != nil {
		return 0, kverr.New(kverr.Format, "bad version field: %w", err)
	}
	if v < 1 || v > CurrentVersion {
		return 0, kverr.New(kverr.Format, "unsupported snapshot version %d", v)
	}
	return v, nil
}

// Write serializes every database in snap to w, in the spec §4.10
// on-disk layout.
func Write(w rio.IO, snap *db.Snapshot, opt Options) error {
	if err := writeHeader(w); err != nil {
		return err
	}
	keysDone := 0
	for dbIndex := 0; dbIndex < snap.DBCount(); dbIndex++ {
		wroteSelect := false
		var walkErr error
		snap.ForEach(dbIndex, func(e db.Entry) {
			if walkErr != nil {
				return
			}
			if !wroteSelect {
				if err := writeAll(w, []byte{opSelectDB}); err != nil {
					walkErr = err
					return
				}
				if err := writeLength(w, dbIndex); err != nil {
					walkErr = err
					return
				}
				wroteSelect = true
			}
			if err := writeEntry(w, e, opt.UseLZF); err != nil {
				walkErr = err
				return
			}
			keysDone++
			if opt.Progress != nil {
				opt.Progress(keysDone)
			}
		})
		if walkErr != nil {
			return walkErr
		}
	}
	if err := writeAll(w, []byte{opEOF}); err != nil {
		return err
	}
	if opt.UseChecksum {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], w.Checksum())
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(w rio.IO, e db.Entry, useLZF bool) error {
	if e.HasExpire {
		if err := writeAll(w, []byte{opExpireMS}); err != nil {
			return err
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(e.ExpireMS))
		if err := writeAll(w, buf[:]); err != nil {
			return err
		}
	}
	typ, err := valueType(e.Value)
	if err != nil {
		return err
	}
	if err := writeAll(w, []byte{byte(typ)}); err != nil {
		return err
	}
	if err := writeString(w, []byte(e.Key), useLZF); err != nil {
		return err
	}
	return writeValueBody(w, typ, e.Value, useLZF)
}

// valueType returns the type opcode for v's current (Kind, Encoding).
func valueType(v *object.Value) (int, error) {
	switch v.Kind() {
	case object.KindString:
		return typeStringRaw, nil
	case object.KindList:
		if v.Encoding() == object.EncPackedList {
			return typeListPacked, nil
		}
		return typeListLinked, nil
	case object.KindSet:
		if v.Encoding() == object.EncIntSet {
			return typeSetIntset, nil
		}
		return typeSetHashtable, nil
	case object.KindZSet:
		if v.Encoding() == object.EncPackedList {
			return typeZSetPacked, nil
		}
		return typeZSetSkiplist, nil
	case object.KindHash:
		if v.Encoding() == object.EncPackedList {
			return typeHashPacked, nil
		}
		return typeHashTable, nil
	default:
		return 0, kverr.New(kverr.Format, "unknown value kind %v", v.Kind())
	}
}

func writeValueBody(w rio.IO, typ int, v *object.Value, useLZF bool) error {
	switch typ {
	case typeStringRaw:
		return writeString(w, v.StringBytes(), useLZF)
	case typeListPacked:
		return writeBlob(w, v.Payload().(*ziplist.List).Bytes(), useLZF)
	case typeListLinked:
		elems, err := listtype.Range(v, 0, -1)
		if err != nil {
			return err
		}
		if err := writeLength(w, len(elems)); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeString(w, []byte(e), useLZF); err != nil {
				return err
			}
		}
		return nil
	case typeSetIntset:
		return writeBlob(w, v.Payload().(*intset.Set).Encode(), useLZF)
	case typeSetHashtable:
		members, err := settype.Members(v)
		if err != nil {
			return err
		}
		if err := writeLength(w, len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(w, []byte(m), useLZF); err != nil {
				return err
			}
		}
		return nil
	case typeZSetPacked:
		return writeBlob(w, v.Payload().(*ziplist.List).Bytes(), useLZF)
	case typeZSetSkiplist:
		card, err := zsettype.Card(v)
		if err != nil {
			return err
		}
		members, err := zsettype.RangeByRank(v, 0, card-1)
		if err != nil {
			return err
		}
		if err := writeLength(w, len(members)); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeString(w, []byte(m.Element), useLZF); err != nil {
				return err
			}
			if err := writeFloat(w, m.Score); err != nil {
				return err
			}
		}
		return nil
	case typeHashPacked:
		return writeBlob(w, v.Payload().(*ziplist.List).Bytes(), useLZF)
	case typeHashTable:
		fields, err := hashtype.All(v)
		if err != nil {
			return err
		}
		if err := writeLength(w, len(fields)); err != nil {
			return err
		}
		for _, f := range fields {
			if err := writeString(w, []byte(f.Name), useLZF); err != nil {
				return err
			}
			if err := writeString(w, []byte(f.Value), useLZF); err != nil {
				return err
			}
		}
		return nil
	default:
		return kverr.New(kverr.Format, "unknown type opcode %d", typ)
	}
}

// writeBlob writes a packed encoding's own byte representation as an
// opaque blob, per spec §4.10's compact form: "written via the
// string-writer", the same length/LZF mechanics as any other string.
func writeBlob(w rio.IO, b []byte, useLZF bool) error {
	return writeString(w, b, useLZF)
}

func readBlob(r rio.IO) ([]byte, error) {
	return readString(r)
}

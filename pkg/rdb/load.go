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

package rdb

import (
	"encoding/binary"
	"strconv"

	"kvcore.dev/pkg/db"
	"kvcore.dev/pkg/intset"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/rio"
	"kvcore.dev/pkg/types/hashtype"
	"kvcore.dev/pkg/types/listtype"
	"kvcore.dev/pkg/types/settype"
	"kvcore.dev/pkg/types/strtype"
	"kvcore.dev/pkg/types/zsettype"
	"kvcore.dev/pkg/ziplist"
)

// Load reads a stream written by Write into ns, replacing whatever it
// currently holds key by key. limits governs encoding promotion exactly
// as a live command would (spec §4.12's "mid-stream promotion": a
// collection read element by element may cross a packed-encoding
// threshold partway through and switch representation right there,
// rather than only ever matching whatever encoding the writer happened
// to save it under).
//
// A key whose expiration has already passed is dropped rather than
// installed, unless asReplica is set (spec §4.12: a replica keeps
// already-expired keys so it can still honor DEL propagation for them
// from its master).
func Load(r rio.IO, ns *db.Namespace, limits object.Limits, nowMS int64, opt Options, asReplica bool) error {
	if _, err := readHeader(r); err != nil {
		return err
	}

	dbIndex := 0
	keysDone := 0
	var pendingExpire int64
	hasPendingExpire := false

	for {
		var op [1]byte
		if err := readAll(r, op[:]); err != nil {
			return err
		}
		switch op[0] {
		case opEOF:
			if opt.UseChecksum {
				want := r.Checksum()
				var buf [8]byte
				ok, err := r.Read(buf[:])
				if err != nil {
					return err
				}
				if ok {
					got := binary.LittleEndian.Uint64(buf[:])
					if got != 0 && got != want {
						return kverr.New(kverr.Format, "snapshot checksum mismatch")
					}
				}
			}
			return nil
		case opSelectDB:
			n, _, err := readLength(r)
			if err != nil {
				return err
			}
			dbIndex = n
		case opExpireSec:
			var buf [4]byte
			if err := readAll(r, buf[:]); err != nil {
				return err
			}
			pendingExpire = int64(binary.LittleEndian.Uint32(buf[:])) * 1000
			hasPendingExpire = true
		case opExpireMS:
			var buf [8]byte
			if err := readAll(r, buf[:]); err != nil {
				return err
			}
			pendingExpire = int64(binary.LittleEndian.Uint64(buf[:]))
			hasPendingExpire = true
		default:
			key, val, err := readEntry(r, int(op[0]), limits)
			if err != nil {
				return err
			}
			expired := hasPendingExpire && pendingExpire <= nowMS
			if expired && !asReplica {
				hasPendingExpire = false
				continue
			}
			if err := ns.Set(dbIndex, key, val); err != nil {
				return err
			}
			if hasPendingExpire {
				if err := ns.ExpireSet(dbIndex, key, pendingExpire); err != nil {
					return err
				}
				hasPendingExpire = false
			}
			keysDone++
			if opt.Progress != nil {
				opt.Progress(keysDone)
			}
		}
	}
}

func readEntry(r rio.IO, typ int, limits object.Limits) (key string, val *object.Value, err error) {
	keyBytes, err := readString(r)
	if err != nil {
		return "", nil, err
	}
	val, err = readValueBody(r, typ, limits)
	if err != nil {
		return "", nil, err
	}
	return string(keyBytes), val, nil
}

func readValueBody(r rio.IO, typ int, limits object.Limits) (*object.Value, error) {
	switch typ {
	case typeStringRaw:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		return strtype.New(string(s)), nil
	case typeListPacked:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		zl := ziplist.FromBytes(blob)
		v := listtype.New()
		c, ok := zl.Head()
		for ok {
			if err := listtype.PushTail(v, string(zl.Get(c).AsBytes()), limits); err != nil {
				return nil, err
			}
			c, ok = zl.Next(c)
		}
		return v, nil
	case typeListLinked:
		n, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		v := listtype.New()
		for i := 0; i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			if err := listtype.PushTail(v, string(s), limits); err != nil {
				return nil, err
			}
		}
		return v, nil
	case typeSetIntset:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		is := intset.Decode(blob)
		v := settype.New()
		for _, n := range is.All() {
			if _, err := settype.Add(v, strconv.FormatInt(n, 10), limits); err != nil {
				return nil, err
			}
		}
		return v, nil
	case typeSetHashtable:
		n, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		v := settype.New()
		for i := 0; i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			if _, err := settype.Add(v, string(s), limits); err != nil {
				return nil, err
			}
		}
		return v, nil
	case typeZSetPacked:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		zl := ziplist.FromBytes(blob)
		v := zsettype.New()
		c, ok := zl.Head()
		for ok {
			member := string(zl.Get(c).AsBytes())
			c, ok = zl.Next(c)
			if !ok {
				return nil, kverr.New(kverr.Format, "truncated zset packed record")
			}
			score, perr := strconv.ParseFloat(string(zl.Get(c).AsBytes()), 64)
			if perr != nil {
				return nil, kverr.New(kverr.Format, "corrupt packed zset score: %w", perr)
			}
			if _, err := zsettype.Add(v, member, score, limits); err != nil {
				return nil, err
			}
			c, ok = zl.Next(c)
		}
		return v, nil
	case typeZSetSkiplist:
		n, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		v := zsettype.New()
		for i := 0; i < n; i++ {
			member, err := readString(r)
			if err != nil {
				return nil, err
			}
			score, err := readFloat(r)
			if err != nil {
				return nil, err
			}
			if _, err := zsettype.Add(v, string(member), score, limits); err != nil {
				return nil, err
			}
		}
		return v, nil
	case typeHashPacked:
		blob, err := readBlob(r)
		if err != nil {
			return nil, err
		}
		zl := ziplist.FromBytes(blob)
		v := hashtype.New()
		c, ok := zl.Head()
		for ok {
			field := string(zl.Get(c).AsBytes())
			c, ok = zl.Next(c)
			if !ok {
				return nil, kverr.New(kverr.Format, "truncated hash packed record")
			}
			value := string(zl.Get(c).AsBytes())
			if _, err := hashtype.Set(v, field, value, limits); err != nil {
				return nil, err
			}
			c, ok = zl.Next(c)
		}
		return v, nil
	case typeHashTable:
		n, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		v := hashtype.New()
		for i := 0; i < n; i++ {
			field, err := readString(r)
			if err != nil {
				return nil, err
			}
			value, err := readString(r)
			if err != nil {
				return nil, err
			}
			if _, err := hashtype.Set(v, string(field), string(value), limits); err != nil {
				return nil, err
			}
		}
		return v, nil
	default:
		return nil, kverr.New(kverr.Format, "unknown type opcode %d", typ)
	}
}

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
	"math"
	"strconv"

	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/rdb/lzf"
	"kvcore.dev/pkg/rio"
)

// Length-encoding selector, the top two bits of the first byte (spec
// §4.10): 00 packs a 6-bit length into the remaining bits, 01 a 14-bit
// length across two bytes, 10 a 32-bit length in four following bytes,
// 11 tags a special encoding (int8/16/32 or LZF) rather than a length at
// all.
const (
	len6Bit  = 0x00
	len14Bit = 0x40
	len32Bit = 0x80
	lenSpecial = 0xC0

	specialInt8  = 0
	specialInt16 = 1
	specialInt32 = 2
	specialLZF   = 3
)

func writeLength(w rio.IO, n int) error {
	switch {
	case n < 1<<6:
		return writeAll(w, []byte{byte(n)})
	case n < 1<<14:
		return writeAll(w, []byte{len14Bit | byte(n>>8), byte(n)})
	default:
		buf := make([]byte, 5)
		buf[0] = len32Bit
		binary.BigEndian.PutUint32(buf[1:], uint32(n))
		return writeAll(w, buf)
	}
}

// readLength reads a length previously written by writeLength. isSpecial
// reports that the 6 low bits are a special-encoding tag (specialInt8
// etc.), not a length, leaving n holding that tag.
func readLength(r rio.IO) (n int, isSpecial bool, err error) {
	var b [1]byte
	if err := readAll(r, b[:]); err != nil {
		return 0, false, err
	}
	switch b[0] & 0xC0 {
	case len6Bit:
		return int(b[0] & 0x3F), false, nil
	case len14Bit:
		var b2 [1]byte
		if err := readAll(r, b2[:]); err != nil {
			return 0, false, err
		}
		return int(b[0]&0x3F)<<8 | int(b2[0]), false, nil
	case len32Bit:
		var buf [4]byte
		if err := readAll(r, buf[:]); err != nil {
			return 0, false, err
		}
		return int(binary.BigEndian.Uint32(buf[:])), false, nil
	default: // lenSpecial
		return int(b[0] & 0x3F), true, nil
	}
}

func writeAll(w rio.IO, b []byte) error {
	w.UpdateChecksum(b)
	ok, err := w.Write(b)
	if err != nil {
		return err
	}
	if !ok {
		return kverr.New(kverr.IO, "short write")
	}
	return nil
}

func readAll(r rio.IO, b []byte) error {
	ok, err := r.Read(b)
	if err != nil {
		return kverr.New(kverr.IO, "read failed: %w", err)
	}
	if !ok {
		return kverr.New(kverr.Format, "unexpected end of stream")
	}
	r.UpdateChecksum(b)
	return nil
}

// writeString encodes s per spec §4.10's string-writer rules: try an
// exact-round-trip int8/16/32 encoding first (shortest possible), then
// LZF if enabled and worth it, else a raw length-prefixed copy.
func writeString(w rio.IO, s []byte, useLZF bool) error {
	if len(s) <= 11 {
		if n, ok := parseExactInt64(s); ok {
			if v := int8(n); int64(v) == n {
				return writeAll(w, []byte{lenSpecial | specialInt8, byte(v)})
			}
			if v := int16(n); int64(v) == n {
				buf := []byte{lenSpecial | specialInt16, 0, 0}
				binary.LittleEndian.PutUint16(buf[1:], uint16(v))
				return writeAll(w, buf)
			}
			if v := int32(n); int64(v) == n {
				buf := []byte{lenSpecial | specialInt32, 0, 0, 0, 0}
				binary.LittleEndian.PutUint32(buf[1:], uint32(v))
				return writeAll(w, buf)
			}
		}
	}
	if useLZF && len(s) > 20 {
		if compressed, ok := lzf.Compress(s); ok {
			if err := writeAll(w, []byte{lenSpecial | specialLZF}); err != nil {
				return err
			}
			if err := writeLength(w, len(compressed)); err != nil {
				return err
			}
			if err := writeLength(w, len(s)); err != nil {
				return err
			}
			return writeAll(w, compressed)
		}
	}
	if err := writeLength(w, len(s)); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}
	return writeAll(w, s)
}

// readString decodes a string written by writeString.
func readString(r rio.IO) ([]byte, error) {
	n, special, err := readLength(r)
	if err != nil {
		return nil, err
	}
	if !special {
		if n == 0 {
			return nil, nil
		}
		buf := make([]byte, n)
		if err := readAll(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	switch n {
	case specialInt8:
		var b [1]byte
		if err := readAll(r, b[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int8(b[0])), 10)), nil
	case specialInt16:
		var b [2]byte
		if err := readAll(r, b[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int16(binary.LittleEndian.Uint16(b[:]))), 10)), nil
	case specialInt32:
		var b [4]byte
		if err := readAll(r, b[:]); err != nil {
			return nil, err
		}
		return []byte(strconv.FormatInt(int64(int32(binary.LittleEndian.Uint32(b[:]))), 10)), nil
	case specialLZF:
		clen, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		ulen, _, err := readLength(r)
		if err != nil {
			return nil, err
		}
		compressed := make([]byte, clen)
		if err := readAll(r, compressed); err != nil {
			return nil, err
		}
		return lzf.Decompress(compressed, ulen), nil
	default:
		return nil, kverr.New(kverr.Format, "unknown special string encoding %d", n)
	}
}

func parseExactInt64(s []byte) (int64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return 0, false
	}
	if strconv.FormatInt(n, 10) != string(s) {
		return 0, false
	}
	return n, true
}

// Reserved float lengths signaling non-finite values, per spec §4.10.
const (
	floatNaN  = 253
	floatPInf = 254
	floatNInf = 255
)

// writeFloat encodes f as an ASCII string preceded by a one-byte length,
// with the three reserved lengths flagging NaN/+Inf/-Inf so the exact
// textual precision of ordinary values survives a round trip.
func writeFloat(w rio.IO, f float64) error {
	switch {
	case math.IsNaN(f):
		return writeAll(w, []byte{floatNaN})
	case math.IsInf(f, 1):
		return writeAll(w, []byte{floatPInf})
	case math.IsInf(f, -1):
		return writeAll(w, []byte{floatNInf})
	}
	s := strconv.FormatFloat(f, 'g', 17, 64)
	buf := append([]byte{byte(len(s))}, s...)
	return writeAll(w, buf)
}

func readFloat(r rio.IO) (float64, error) {
	var b [1]byte
	if err := readAll(r, b[:]); err != nil {
		return 0, err
	}
	switch b[0] {
	case floatNaN:
		return math.NaN(), nil
	case floatPInf:
		return math.Inf(1), nil
	case floatNInf:
		return math.Inf(-1), nil
	}
	buf := make([]byte, b[0])
	if err := readAll(r, buf); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(string(buf), 64)
}

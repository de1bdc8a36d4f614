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

// Package zsettype implements the sorted set type operations of spec
// §4.7: a packed entry list of alternating member/score pairs, promoting
// to a skip list (ordering) paired with a hash table (member → score,
// for O(1) ZSCORE) once the entry count or any member's length crosses
// the configured threshold.
package zsettype

import (
	"strconv"

	"kvcore.dev/pkg/dict"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/skiplist"
	"kvcore.dev/pkg/ziplist"
)

// New creates an empty sorted set value in the packed encoding.
func New() *object.Value {
	return object.NewRaw(object.KindZSet, object.EncPackedList, ziplist.New())
}

func packed(v *object.Value) *ziplist.List { return v.Payload().(*ziplist.List) }
func idx(v *object.Value) *object.ZSetIndex { return v.Payload().(*object.ZSetIndex) }

func typeCheck(v *object.Value) error {
	if v.Kind() != object.KindZSet {
		return kverr.New(kverr.TypeMismatch, "value is not a sorted set")
	}
	return nil
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'g', 17, 64)
}

func maybePromote(v *object.Value, memberLen int, limits object.Limits) {
	if v.Encoding() != object.EncPackedList {
		return
	}
	zl := packed(v)
	if zl.Len()/2 > limits.ZsetMaxPackedEntries || memberLen > limits.ZsetMaxPackedValue {
		promote(v)
	}
}

func promote(v *object.Value) {
	zl := packed(v)
	sl := skiplist.New()
	t := dict.NewStringTable[float64]()
	c, ok := zl.Head()
	for ok {
		member := string(zl.Get(c).AsBytes())
		c, ok = zl.Next(c)
		if !ok {
			break
		}
		score, _ := strconv.ParseFloat(string(zl.Get(c).AsBytes()), 64)
		sl.Insert(score, member)
		t.Set(member, score)
		c, ok = zl.Next(c)
	}
	v.SetPayload(object.EncSkipList, &object.ZSetIndex{SkipList: sl, Scores: t})
}

// Add inserts or updates member's score, applying promotion on this
// call's own member length. It reports whether member was newly added.
func Add(v *object.Value, member string, score float64, limits object.Limits) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(member), 2)
		isNew := !found
		if found {
			valCursor, _ := zl.Next(c)
			zl.ReplaceAt(valCursor, ziplist.EntryFromValue([]byte(formatScore(score))))
		} else {
			zl.PushTail(ziplist.EntryFromValue([]byte(member)))
			zl.PushTail(ziplist.EntryFromValue([]byte(formatScore(score))))
		}
		maybePromote(v, len(member), limits)
		return isNew, nil
	case object.EncSkipList:
		ix := idx(v)
		if old, ok := ix.Scores.Find(member); ok {
			ix.SkipList.Delete(old, member)
			ix.SkipList.Insert(score, member)
			ix.Scores.Set(member, score)
			return false, nil
		}
		ix.SkipList.Insert(score, member)
		ix.Scores.Set(member, score)
		return true, nil
	default:
		return false, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

// Score returns member's score, or ok=false.
func Score(v *object.Value, member string) (float64, bool, error) {
	if err := typeCheck(v); err != nil {
		return 0, false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(member), 2)
		if !found {
			return 0, false, nil
		}
		valCursor, _ := zl.Next(c)
		score, err := strconv.ParseFloat(string(zl.Get(valCursor).AsBytes()), 64)
		if err != nil {
			return 0, false, kverr.New(kverr.Format, "corrupt score for member %q: %w", member, err)
		}
		return score, true, nil
	case object.EncSkipList:
		score, ok := idx(v).Scores.Find(member)
		return score, ok, nil
	default:
		return 0, false, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

// Rem removes member, reporting whether it was present.
func Rem(v *object.Value, member string) (bool, error) {
	if err := typeCheck(v); err != nil {
		return false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		zl := packed(v)
		c, found := zl.Find([]byte(member), 2)
		if !found {
			return false, nil
		}
		valCursor, _ := zl.Next(c)
		zl.DeleteCursors(c, valCursor)
		return true, nil
	case object.EncSkipList:
		ix := idx(v)
		score, ok := ix.Scores.Find(member)
		if !ok {
			return false, nil
		}
		ix.SkipList.Delete(score, member)
		ix.Scores.Delete(member)
		return true, nil
	default:
		return false, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

// Card returns the member count.
func Card(v *object.Value) (int, error) {
	if err := typeCheck(v); err != nil {
		return 0, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		return packed(v).Len() / 2, nil
	case object.EncSkipList:
		return idx(v).SkipList.Len(), nil
	default:
		return 0, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

// Rank returns member's 0-based rank in ascending score order, or
// ok=false if absent.
func Rank(v *object.Value, member string) (int, bool, error) {
	if err := typeCheck(v); err != nil {
		return 0, false, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		all, err := byScoreAscending(v)
		if err != nil {
			return 0, false, err
		}
		for i, m := range all {
			if m.Element == member {
				return i, true, nil
			}
		}
		return 0, false, nil
	case object.EncSkipList:
		ix := idx(v)
		score, ok := ix.Scores.Find(member)
		if !ok {
			return 0, false, nil
		}
		rank, ok := ix.SkipList.Rank(score, member)
		if !ok {
			return 0, false, nil
		}
		return rank - 1, true, nil
	default:
		return 0, false, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

func byScoreAscending(v *object.Value) ([]skiplist.Member, error) {
	zl := packed(v)
	var out []skiplist.Member
	c, ok := zl.Head()
	for ok {
		member := string(zl.Get(c).AsBytes())
		c, ok = zl.Next(c)
		if !ok {
			break
		}
		score, err := strconv.ParseFloat(string(zl.Get(c).AsBytes()), 64)
		if err != nil {
			return nil, kverr.New(kverr.Format, "corrupt score for member %q: %w", member, err)
		}
		out = append(out, skiplist.Member{Score: score, Element: member})
		c, ok = zl.Next(c)
	}
	sortMembers(out)
	return out, nil
}

func sortMembers(m []skiplist.Member) {
	for i := 1; i < len(m); i++ {
		for j := i; j > 0 && less(m[j], m[j-1]); j-- {
			m[j], m[j-1] = m[j-1], m[j]
		}
	}
}

func less(a, b skiplist.Member) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Element < b.Element
}

// RangeByRank returns members with 0-based rank in [start, end]
// (negative indices count from the end), in ascending score order.
func RangeByRank(v *object.Value, start, end int) ([]skiplist.Member, error) {
	n, err := Card(v)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	if start < 0 {
		start = 0
	}
	if end >= n {
		end = n - 1
	}
	if start > end || start >= n || end < 0 {
		return nil, nil
	}
	switch v.Encoding() {
	case object.EncPackedList:
		all, err := byScoreAscending(v)
		if err != nil {
			return nil, err
		}
		return all[start : end+1], nil
	case object.EncSkipList:
		return idx(v).SkipList.RangeByRank(start+1, end+1), nil
	default:
		return nil, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

// RangeByScore returns members with score in the inclusive range
// [min, max], in ascending (score, element) order.
func RangeByScore(v *object.Value, min, max float64) ([]skiplist.Member, error) {
	if err := typeCheck(v); err != nil {
		return nil, err
	}
	switch v.Encoding() {
	case object.EncPackedList:
		all, err := byScoreAscending(v)
		if err != nil {
			return nil, err
		}
		var out []skiplist.Member
		for _, m := range all {
			if m.Score >= min && m.Score <= max {
				out = append(out, m)
			}
		}
		return out, nil
	case object.EncSkipList:
		return idx(v).SkipList.RangeByScore(skiplist.Range{Min: min, Max: max}), nil
	default:
		return nil, kverr.New(kverr.Format, "unknown sorted-set encoding")
	}
}

// IncrBy adds delta to member's score (default 0 if absent), stores and
// returns the new score.
func IncrBy(v *object.Value, member string, delta float64, limits object.Limits) (float64, error) {
	cur, _, err := Score(v, member)
	if err != nil {
		return 0, err
	}
	result := cur + delta
	if _, err := Add(v, member, result, limits); err != nil {
		return 0, err
	}
	return result, nil
}

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

package skiplist

// Range is an inclusive score range [Min, Max].
type Range struct {
	Min, Max float64
}

func (r Range) contains(score float64) bool {
	return score >= r.Min && score <= r.Max
}

// Member is a decoded (score, element) pair returned by range scans.
type Member struct {
	Score   float64
	Element string
}

// firstInRange returns the first node whose score falls in r, or nil.
func (l *List) firstInRange(r Range) *node {
	if l.tail == nil || l.tail.score < r.Min {
		return nil
	}
	x := l.head
	for i := l.level - 1; i >= 0; i-- {
		for x.forward[i] != nil && x.forward[i].score < r.Min {
			x = x.forward[i]
		}
	}
	x = x.forward[0]
	if x == nil || !r.contains(x.score) {
		return nil
	}
	return x
}

// RangeByScore returns every member with score in the inclusive range r,
// in ascending (score, element) order.
func (l *List) RangeByScore(r Range) []Member {
	var out []Member
	for x := l.firstInRange(r); x != nil && r.contains(x.score); x = x.forward[0] {
		out = append(out, Member{Score: x.score, Element: x.element})
	}
	return out
}

// RangeByRank returns the members with 1-based rank in [start, end]
// inclusive.
func (l *List) RangeByRank(start, end int) []Member {
	if start < 1 {
		start = 1
	}
	if end > l.length {
		end = l.length
	}
	if start > end {
		return nil
	}
	var out []Member
	x := l.head
	traversed := 0
	for i := l.level - 1; i >= 0; i-- {
		for x.forward[i] != nil && traversed+x.span[i] < start {
			traversed += x.span[i]
			x = x.forward[i]
		}
	}
	x = x.forward[0]
	traversed++
	for x != nil && traversed <= end {
		out = append(out, Member{Score: x.score, Element: x.element})
		x = x.forward[0]
		traversed++
	}
	return out
}

// DeleteRangeByScore removes every member with score in r, returning the
// removed elements.
func (l *List) DeleteRangeByScore(r Range) []Member {
	var removed []Member
	for {
		x := l.firstInRange(r)
		if x == nil {
			break
		}
		removed = append(removed, Member{Score: x.score, Element: x.element})
		l.Delete(x.score, x.element)
	}
	return removed
}

// DeleteRangeByRank removes members with 1-based rank in [start, end],
// returning the removed elements.
func (l *List) DeleteRangeByRank(start, end int) []Member {
	members := l.RangeByRank(start, end)
	for _, m := range members {
		l.Delete(m.Score, m.Element)
	}
	return members
}

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

package sds

import "testing"

func TestAppendGrows(t *testing.T) {
	s := New([]byte("hello"))
	s = s.Append([]byte(" world"))
	if string(s.Bytes()) != "hello world" {
		t.Fatalf("got %q", s.Bytes())
	}
}

func TestRangeBoundaries(t *testing.T) {
	s := New([]byte("abcd"))
	if got := s.Range(-1, -1); string(got) != "d" {
		t.Fatalf("range(-1,-1) = %q, want d", got)
	}
	if got := s.Range(2, 1); len(got) != 0 {
		t.Fatalf("range(2,1) = %q, want empty", got)
	}
	if got := s.Range(100, 100); len(got) != 0 {
		t.Fatalf("range(100,100) = %q, want empty", got)
	}
}

func TestTruncateAndReclaim(t *testing.T) {
	s := New([]byte("abcdef"))
	s.Truncate(3)
	if string(s.Bytes()) != "abc" {
		t.Fatalf("got %q", s.Bytes())
	}
	if s.Avail() == 0 {
		t.Fatalf("expected leftover capacity after truncate")
	}
	s.Reclaim()
	if s.Avail() != 0 {
		t.Fatalf("expected no capacity after reclaim, got %d", s.Avail())
	}
}

func TestCompare(t *testing.T) {
	if Compare(New([]byte("ab")), New([]byte("abc"))) >= 0 {
		t.Fatalf("shorter common-prefix string should lose")
	}
}

func TestTrim(t *testing.T) {
	s := New([]byte("  xx  "))
	s.Trim(" ")
	if string(s.Bytes()) != "xx" {
		t.Fatalf("got %q", s.Bytes())
	}
}

func TestSplitArgs(t *testing.T) {
	toks, err := SplitArgs(`set foo "bar baz" 'single\'quote'`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"set", "foo", "bar baz", "single'quote"}
	if len(toks) != len(want) {
		t.Fatalf("got %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Fatalf("token %d: got %q want %q", i, toks[i], want[i])
		}
	}
}

func TestSplitArgsHexEscape(t *testing.T) {
	toks, err := SplitArgs(`"\x41\x42"`)
	if err != nil {
		t.Fatal(err)
	}
	if toks[0] != "AB" {
		t.Fatalf("got %q", toks[0])
	}
}

func TestSplitArgsUnterminated(t *testing.T) {
	if _, err := SplitArgs(`"unterminated`); err == nil {
		t.Fatalf("expected error")
	}
}

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

package strtype

import (
	"testing"

	"kvcore.dev/pkg/object"
)

func TestGetSet(t *testing.T) {
	v := New("hello")
	got, err := Get(v)
	if err != nil || got != "hello" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := Set(v, "world"); err != nil {
		t.Fatal(err)
	}
	got, err = Get(v)
	if err != nil || got != "world" {
		t.Fatalf("Get after Set = %q, %v", got, err)
	}
}

func TestStrlen(t *testing.T) {
	v := New("hello")
	n, err := Strlen(v)
	if err != nil || n != 5 {
		t.Fatalf("Strlen = %d, %v, want 5", n, err)
	}
}

func TestAppendForcesRaw(t *testing.T) {
	v := New("5")
	n, err := Append(v, "5")
	if err != nil || n != 2 {
		t.Fatalf("Append = %d, %v, want 2", n, err)
	}
	if v.Encoding() != object.EncRaw {
		t.Fatalf("encoding = %v, want raw", v.Encoding())
	}
	got, _ := Get(v)
	if got != "55" {
		t.Fatalf("got %q, want 55", got)
	}
}

func TestGetRange(t *testing.T) {
	v := New("hello world")
	tests := []struct {
		start, end int
		want       string
	}{
		{0, 4, "hello"},
		{-5, -1, "world"},
		{2, 1, ""},
		{100, 100, ""},
	}
	for _, tc := range tests {
		got, err := GetRange(v, tc.start, tc.end)
		if err != nil || got != tc.want {
			t.Fatalf("GetRange(%d,%d) = %q, %v, want %q", tc.start, tc.end, got, err, tc.want)
		}
	}
}

func TestSetRangePadsGap(t *testing.T) {
	v := New("hello")
	n, err := SetRange(v, 10, "world")
	if err != nil {
		t.Fatal(err)
	}
	if n != 15 {
		t.Fatalf("SetRange length = %d, want 15", n)
	}
	got, _ := Get(v)
	want := "hello\x00\x00\x00\x00\x00world"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestSetRangeOverwrite(t *testing.T) {
	v := New("hello world")
	if _, err := SetRange(v, 6, "there"); err != nil {
		t.Fatal(err)
	}
	got, _ := Get(v)
	if got != "hello there" {
		t.Fatalf("got %q", got)
	}
}

func TestIncrBy(t *testing.T) {
	v := New("10")
	n, err := IncrBy(v, 5)
	if err != nil || n != 15 {
		t.Fatalf("IncrBy = %d, %v, want 15", n, err)
	}
	got, _ := Get(v)
	if got != "15" {
		t.Fatalf("got %q", got)
	}
}

func TestIncrByNonInteger(t *testing.T) {
	v := New("notanumber")
	if _, err := IncrBy(v, 1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestIncrByFloat(t *testing.T) {
	v := New("10.5")
	got, err := IncrByFloat(v, 0.1)
	if err != nil || got != "10.6" {
		t.Fatalf("IncrByFloat = %q, %v, want 10.6", got, err)
	}
}

func TestTypeMismatch(t *testing.T) {
	v := object.NewRaw(object.KindList, object.EncPackedList, nil)
	if _, err := Get(v); err == nil {
		t.Fatalf("expected type-mismatch error")
	}
}

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

package dict

import "github.com/cespare/xxhash/v2"

// StringHash is the default string hasher passed to New when building a
// Table[string, V]; it is the hot path for every keyspace and field/value
// lookup in pkg/db and pkg/types, so it uses xxhash rather than a
// hand-rolled hash.
func StringHash(s string) uint64 { return xxhash.Sum64String(s) }

// StringEqual is the default string equality test.
func StringEqual(a, b string) bool { return a == b }

// NewStringTable creates a Table[string, V] using the default xxhash
// hasher, the common case throughout this module.
func NewStringTable[V any]() *Table[string, V] {
	return New[string, V](StringHash, StringEqual)
}

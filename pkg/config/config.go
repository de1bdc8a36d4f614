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

// Package config defines a typed accessor over the flat option map that
// configures a kvcore server (the table in spec §6). It follows the
// Obj-over-map-with-noted-keys shape used elsewhere in the corpus for JSON
// configuration objects.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Obj is a configuration map. Keys not recognized by any of the accessors
// below are reported by Validate.
type Obj map[string]any

// ReadFile parses a flat JSON object into an Obj.
func ReadFile(path string) (Obj, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return Obj(m), nil
}

// OptionalInt returns the int at key, or def if absent.
func (jc Obj) OptionalInt(key string, def int) int {
	v, ok := jc[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// OptionalBool returns the bool at key, or def if absent.
func (jc Obj) OptionalBool(key string, def bool) bool {
	v, ok := jc[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// OptionalString returns the string at key, or def if absent.
func (jc Obj) OptionalString(key, def string) string {
	v, ok := jc[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// RequiredString returns the string at key, or a zero value and false if
// the key is missing or not a string.
func (jc Obj) RequiredString(key string) (string, bool) {
	v, ok := jc[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Validate reports the first key in jc that is not in allowed.
func (jc Obj) Validate(allowed ...string) error {
	set := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		set[k] = true
	}
	for k := range jc {
		if !set[k] {
			return fmt.Errorf("config: unknown key %q", k)
		}
	}
	return nil
}

// Keys recognized by Limits, matching spec §6's option table.
const (
	KeyHashMaxPackedEntries = "hash-max-packed-entries"
	KeyHashMaxPackedValue   = "hash-max-packed-value"
	KeyListMaxPackedEntries = "list-max-packed-entries"
	KeyListMaxPackedValue   = "list-max-packed-value"
	KeySetMaxIntsetEntries  = "set-max-intset-entries"
	KeyZsetMaxPackedEntries = "zset-max-packed-entries"
	KeyZsetMaxPackedValue   = "zset-max-packed-value"
	KeyRDBCompression       = "rdb-compression"
	KeyRDBChecksum          = "rdb-checksum"
	KeyRDBFilename          = "rdb-filename"
	KeyDBCount              = "db-count"
)

// Limits is the set of encoding-promotion thresholds, extracted from an
// Obj with spec §6's documented defaults.
type Limits struct {
	HashMaxPackedEntries int
	HashMaxPackedValue   int
	ListMaxPackedEntries int
	ListMaxPackedValue   int
	SetMaxIntsetEntries  int
	ZsetMaxPackedEntries int
	ZsetMaxPackedValue   int
	RDBCompression       bool
	RDBChecksum          bool
	RDBFilename          string
	DBCount              int
}

// DefaultLimits returns the defaults from spec §6 with no Obj consulted.
func DefaultLimits() Limits {
	return Limits{
		HashMaxPackedEntries: 512,
		HashMaxPackedValue:   64,
		ListMaxPackedEntries: 512,
		ListMaxPackedValue:   64,
		SetMaxIntsetEntries:  512,
		ZsetMaxPackedEntries: 128,
		ZsetMaxPackedValue:   64,
		RDBCompression:       true,
		RDBChecksum:          true,
		RDBFilename:          "dump.rdb",
		DBCount:              16,
	}
}

// Limits extracts a Limits from jc, defaulting unset keys.
func (jc Obj) Limits() Limits {
	d := DefaultLimits()
	if jc == nil {
		return d
	}
	return Limits{
		HashMaxPackedEntries: jc.OptionalInt(KeyHashMaxPackedEntries, d.HashMaxPackedEntries),
		HashMaxPackedValue:   jc.OptionalInt(KeyHashMaxPackedValue, d.HashMaxPackedValue),
		ListMaxPackedEntries: jc.OptionalInt(KeyListMaxPackedEntries, d.ListMaxPackedEntries),
		ListMaxPackedValue:   jc.OptionalInt(KeyListMaxPackedValue, d.ListMaxPackedValue),
		SetMaxIntsetEntries:  jc.OptionalInt(KeySetMaxIntsetEntries, d.SetMaxIntsetEntries),
		ZsetMaxPackedEntries: jc.OptionalInt(KeyZsetMaxPackedEntries, d.ZsetMaxPackedEntries),
		ZsetMaxPackedValue:   jc.OptionalInt(KeyZsetMaxPackedValue, d.ZsetMaxPackedValue),
		RDBCompression:       jc.OptionalBool(KeyRDBCompression, d.RDBCompression),
		RDBChecksum:          jc.OptionalBool(KeyRDBChecksum, d.RDBChecksum),
		RDBFilename:          jc.OptionalString(KeyRDBFilename, d.RDBFilename),
		DBCount:              jc.OptionalInt(KeyDBCount, d.DBCount),
	}
}

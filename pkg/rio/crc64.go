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

package rio

import "hash/crc64"

// jonesPoly is the reflected form of the CRC-64/Jones polynomial, the
// variant the RDB trailer format uses (spec §4.10: "CRC64 is computed
// over all bytes including the magic and version"). Neither of
// hash/crc64's predefined tables (ISO, ECMA) matches it, so the table is
// built explicitly via MakeTable.
const jonesPoly = 0x95ac9329ac4bc9b5 // bit-reversed 0xad93d23594c935a9

var jonesTable = crc64.MakeTable(jonesPoly)

// checksum accumulates a running CRC64/Jones total across successive
// UpdateChecksum calls.
type checksum struct {
	crc uint64
}

func (c *checksum) update(buf []byte) {
	c.crc = crc64.Update(c.crc, jonesTable, buf)
}

func (c *checksum) sum() uint64 { return c.crc }

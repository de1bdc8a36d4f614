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

// Command kvcore-rdb is an offline inspector for the snapshot files
// written by SAVE/BGSAVE: it loads a file into a throwaway Namespace and
// reports each key's database index, kind, encoding, and expiration,
// without needing a running server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"kvcore.dev/pkg/config"
	"kvcore.dev/pkg/db"
	"kvcore.dev/pkg/rdb"
	"kvcore.dev/pkg/rio"
)

var (
	flagChecksum = flag.Bool("checksum", true, "verify the trailing CRC64 checksum, if present")
	flagCount    = flag.Bool("count", false, "print only the total key count, not a per-key listing")
)

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: kvcore-rdb [flags] <rdb-file>\n")
		os.Exit(2)
	}
	path := flag.Arg(0)

	f, err := rio.OpenFile(path)
	if err != nil {
		log.Fatalf("kvcore-rdb: opening %s: %v", path, err)
	}
	defer f.Close()

	limits := config.DefaultLimits()
	ns := db.New(limits.DBCount, func() int64 { return time.Now().UnixMilli() })

	opt := rdb.Options{UseChecksum: *flagChecksum}
	if err := rdb.Load(f, ns, limits, time.Now().UnixMilli(), opt, true); err != nil {
		log.Fatalf("kvcore-rdb: loading %s: %v", path, err)
	}

	snap := ns.Freeze()
	defer ns.Release()

	total := 0
	for i := 0; i < snap.DBCount(); i++ {
		n := 0
		snap.ForEach(i, func(e db.Entry) { n++ })
		if n == 0 {
			continue
		}
		total += n
		if *flagCount {
			continue
		}
		fmt.Printf("db%d: %d keys\n", i, n)
		snap.ForEach(i, func(e db.Entry) {
			if e.HasExpire {
				fmt.Printf("  %q %s/%s expires %s\n", e.Key, e.Value.Kind(), e.Value.Encoding(), time.UnixMilli(e.ExpireMS).Format(time.RFC3339))
			} else {
				fmt.Printf("  %q %s/%s\n", e.Key, e.Value.Kind(), e.Value.Encoding())
			}
		})
	}
	if *flagCount {
		fmt.Println(total)
	}
}

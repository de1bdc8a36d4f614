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

// Command kvcore-cli is an interactive REPL over one in-process
// db.Namespace, demonstrating the storage core end to end without a
// network protocol in front of it: SET/GET/DEL/EXPIRE, the hash/set/
// zset/list type commands, SAVE/BGSAVE, and SELECT to switch databases.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"kvcore.dev/pkg/bgsave"
	"kvcore.dev/pkg/config"
	"kvcore.dev/pkg/db"
	"kvcore.dev/pkg/kverr"
	"kvcore.dev/pkg/object"
	"kvcore.dev/pkg/rdb"
	"kvcore.dev/pkg/rio"
	"kvcore.dev/pkg/types/hashtype"
	"kvcore.dev/pkg/types/listtype"
	"kvcore.dev/pkg/types/settype"
	"kvcore.dev/pkg/types/strtype"
	"kvcore.dev/pkg/types/zsettype"
)

var (
	flagConfig = flag.String("config", "", "path to a JSON config file (spec §6's option table); unset uses all defaults")
	flagRDB    = flag.String("rdb", "dump.rdb", "path of the RDB file SAVE/BGSAVE write to and -load reads from")
	flagLoad   = flag.Bool("load", false, "load -rdb before starting the REPL")
)

func nowMS() int64 { return time.Now().UnixMilli() }

func main() {
	flag.Parse()

	var jc config.Obj
	if *flagConfig != "" {
		var err error
		jc, err = config.ReadFile(*flagConfig)
		if err != nil {
			log.Fatalf("kvcore-cli: %v", err)
		}
	}
	limits := jc.Limits()

	ns := db.New(limits.DBCount, nowMS)
	saver := bgsave.New(ns, nowMS, *flagRDB)

	if *flagLoad {
		if err := loadRDB(ns, limits, *flagRDB); err != nil {
			log.Fatalf("kvcore-cli: loading %s: %v", *flagRDB, err)
		}
	}

	repl(ns, saver, limits)
}

func loadRDB(ns *db.Namespace, limits object.Limits, path string) error {
	f, err := rio.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return rdb.Load(f, ns, limits, nowMS(), rdb.Options{UseChecksum: limits.RDBChecksum}, false)
}

func repl(ns *db.Namespace, saver *bgsave.Saver, limits object.Limits) {
	dbIndex := 0
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("kvcore-cli> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			args := strings.Fields(line)
			if out, newDB, quit := dispatch(ns, saver, limits, dbIndex, args); quit {
				return
			} else {
				dbIndex = newDB
				fmt.Println(out)
			}
		}
		fmt.Printf("kvcore-cli> ")
	}
}

func dispatch(ns *db.Namespace, saver *bgsave.Saver, limits object.Limits, dbIndex int, args []string) (out string, newDB int, quit bool) {
	if len(args) == 0 {
		return "", dbIndex, false
	}
	cmd := strings.ToUpper(args[0])
	args = args[1:]
	switch cmd {
	case "QUIT", "EXIT":
		return "bye", dbIndex, true
	case "SELECT":
		n, err := strconv.Atoi(arg(args, 0))
		if err != nil || n < 0 || n >= ns.DBCount() {
			return "ERR invalid db index", dbIndex, false
		}
		return "OK", n, false
	case "SET":
		if err := ns.Set(dbIndex, arg(args, 0), strtype.New(arg(args, 1))); err != nil {
			return errStr(err), dbIndex, false
		}
		return "OK", dbIndex, false
	case "GET":
		v, ok, err := ns.LookupRead(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !ok {
			return "(nil)", dbIndex, false
		}
		s, err := strtype.Get(v)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		return s, dbIndex, false
	case "DEL":
		found, err := ns.Delete(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		return strconv.FormatBool(found), dbIndex, false
	case "EXPIRE":
		seconds, err := strconv.ParseInt(arg(args, 1), 10, 64)
		if err != nil {
			return "ERR invalid seconds", dbIndex, false
		}
		if err := ns.ExpireSet(dbIndex, arg(args, 0), nowMS()+seconds*1000); err != nil {
			return errStr(err), dbIndex, false
		}
		return "OK", dbIndex, false
	case "HSET":
		v, err := lookupOrCreate(ns, dbIndex, arg(args, 0), hashtype.New)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if _, err := hashtype.Set(v, arg(args, 1), arg(args, 2), limits); err != nil {
			return errStr(err), dbIndex, false
		}
		return "OK", dbIndex, false
	case "HGET":
		v, ok, err := ns.LookupRead(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !ok {
			return "(nil)", dbIndex, false
		}
		s, found, err := hashtype.Get(v, arg(args, 1))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !found {
			return "(nil)", dbIndex, false
		}
		return s, dbIndex, false
	case "HGETALL":
		v, ok, err := ns.LookupRead(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !ok {
			return "(empty)", dbIndex, false
		}
		fields, err := hashtype.All(v)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		var b strings.Builder
		for _, f := range fields {
			fmt.Fprintf(&b, "%s=%s ", f.Name, f.Value)
		}
		return b.String(), dbIndex, false
	case "SADD":
		v, err := lookupOrCreate(ns, dbIndex, arg(args, 0), settype.New)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		added := 0
		for _, m := range args[1:] {
			ok, err := settype.Add(v, m, limits)
			if err != nil {
				return errStr(err), dbIndex, false
			}
			if ok {
				added++
			}
		}
		return strconv.Itoa(added), dbIndex, false
	case "SMEMBERS":
		v, ok, err := ns.LookupRead(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !ok {
			return "(empty)", dbIndex, false
		}
		members, err := settype.Members(v)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		return strings.Join(members, " "), dbIndex, false
	case "ZADD":
		v, err := lookupOrCreate(ns, dbIndex, arg(args, 0), zsettype.New)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		score, err := strconv.ParseFloat(arg(args, 1), 64)
		if err != nil {
			return "ERR invalid score", dbIndex, false
		}
		if _, err := zsettype.Add(v, arg(args, 2), score, limits); err != nil {
			return errStr(err), dbIndex, false
		}
		return "OK", dbIndex, false
	case "ZRANGEBYSCORE":
		v, ok, err := ns.LookupRead(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !ok {
			return "(empty)", dbIndex, false
		}
		min, err1 := strconv.ParseFloat(arg(args, 1), 64)
		max, err2 := strconv.ParseFloat(arg(args, 2), 64)
		if err1 != nil || err2 != nil {
			return "ERR invalid score range", dbIndex, false
		}
		members, err := zsettype.RangeByScore(v, min, max)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		var b strings.Builder
		for _, m := range members {
			fmt.Fprintf(&b, "%s:%g ", m.Element, m.Score)
		}
		return b.String(), dbIndex, false
	case "LPUSH":
		v, err := lookupOrCreate(ns, dbIndex, arg(args, 0), listtype.New)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		for _, e := range args[1:] {
			if err := listtype.PushHead(v, e, limits); err != nil {
				return errStr(err), dbIndex, false
			}
		}
		return "OK", dbIndex, false
	case "LRANGE":
		v, ok, err := ns.LookupRead(dbIndex, arg(args, 0))
		if err != nil {
			return errStr(err), dbIndex, false
		}
		if !ok {
			return "(empty)", dbIndex, false
		}
		start, err1 := strconv.Atoi(arg(args, 1))
		end, err2 := strconv.Atoi(arg(args, 2))
		if err1 != nil || err2 != nil {
			return "ERR invalid range", dbIndex, false
		}
		elems, err := listtype.Range(v, start, end)
		if err != nil {
			return errStr(err), dbIndex, false
		}
		return strings.Join(elems, " "), dbIndex, false
	case "SAVE":
		if err := saver.Save(rdb.Options{UseLZF: limits.RDBCompression, UseChecksum: limits.RDBChecksum}); err != nil {
			return errStr(err), dbIndex, false
		}
		return "OK", dbIndex, false
	case "BGSAVE":
		if err := saver.Start(rdb.Options{UseLZF: limits.RDBCompression, UseChecksum: limits.RDBChecksum}); err != nil {
			return errStr(err), dbIndex, false
		}
		return "Background saving started", dbIndex, false
	default:
		return fmt.Sprintf("ERR unknown command %q", cmd), dbIndex, false
	}
}

func lookupOrCreate(ns *db.Namespace, dbIndex int, key string, empty func() *object.Value) (*object.Value, error) {
	v, ok, err := ns.LookupWrite(dbIndex, key)
	if err != nil {
		return nil, err
	}
	if ok {
		return v, nil
	}
	nv := empty()
	if err := ns.Set(dbIndex, key, nv); err != nil {
		return nil, err
	}
	return nv, nil
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func errStr(err error) string {
	if ke, ok := err.(*kverr.Error); ok {
		return "ERR " + ke.Error()
	}
	return "ERR " + err.Error()
}

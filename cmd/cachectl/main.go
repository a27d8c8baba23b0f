// Copyright (C) 2024 rhcache authors.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command cachectl is a small demo/debug CLI that drives an RHC directly
// from a QoS fixture file and a sequence of key=value store lines read
// from stdin, printing back what read() would return. It exists to give
// the cache a runnable end-to-end path outside of unit tests, not as a
// protocol endpoint.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/condition"
	"github.com/rhcache/rhcache/qosconfig"
	"github.com/rhcache/rhcache/rhc"
	"github.com/rhcache/rhcache/tkmap"
)

func main() {
	qosPath := flag.String("qos", "", "path to a YAML QoS fixture (qosconfig.Document)")
	flag.Parse()

	cfg := rhc.Config{
		HistoryDepth: 1,
		MaxInstances: rhc.Unlimited,
		MaxSamples:   rhc.Unlimited,
		MaxSamplesPerInstance: rhc.Unlimited,
		Sertype:      kvSertype{},
	}
	if *qosPath != "" {
		doc, err := qosconfig.LoadFile(*qosPath)
		if err != nil {
			log.Fatalf("cachectl: %v", err)
		}
		if doc.Reader != nil {
			cfg = doc.Reader.ToConfig()
			cfg.Sertype = kvSertype{}
		}
	}

	logger := log.New(os.Stderr, "cachectl: ", 0)
	tk := tkmap.New(0x5ca1ab1e, 0xc0ffee00)
	status := func(entity any, data rhcache.StatusCbData) {
		logger.Printf("status %s handle=%v extra=%d reason=%v", data.RawStatusID, data.Handle, data.Extra, data.Reason)
	}
	cache := rhc.New(cfg, tk, "cachectl-reader", status, nil, logger)
	writer := rhcache.WriterInfo{IID: rhcache.IID(1), GUID: uuidGUID()}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			logger.Printf("skipping malformed line %q (want key=value)", line)
			continue
		}
		sd := newKV(k, v, time.Now())
		in := tk.Find(sd, true)
		delivered, outcome := cache.Store(writer, sd, in)
		in.Unref()
		sd.Unref()
		fmt.Printf("store %s=%s -> delivered=%v outcome=%v\n", k, v, delivered, outcome)
	}

	out := cache.Read(rhc.Selector{
		SampleStates:   condition.AnySampleState,
		ViewStates:     condition.AnyViewState,
		InstanceStates: condition.AnyInstanceState,
	}, 0)
	for _, s := range out {
		if s.Info.ValidData {
			fmt.Printf("read: %s\n", string(s.Data.KeyBytes()))
			s.Data.Unref()
		}
	}
}

func uuidGUID() [16]byte {
	id := uuid.New()
	var g [16]byte
	copy(g[:], id[:])
	return g
}

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

package rhc

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/tkmap"
)

// testSD is a minimal "key=value" rhcache.SerData fixture, shared by every
// test in this package.
type testSD struct {
	key   string
	value string
	ts    time.Time
	status rhcache.StatusInfo
	kind   rhcache.Kind
	refc  int32 // atomic
}

func newTestSD(key, value string, ts time.Time) *testSD {
	return &testSD{key: key, value: value, ts: ts, kind: rhcache.KindData, refc: 1}
}

func (s *testSD) Ref() rhcache.SerData           { atomic.AddInt32(&s.refc, 1); return s }
func (s *testSD) Unref()                         { atomic.AddInt32(&s.refc, -1) }
func (s *testSD) Size() int64                    { return int64(len(s.key) + len(s.value)) }
func (s *testSD) Timestamp() time.Time           { return s.ts }
func (s *testSD) Kind() rhcache.Kind             { return s.kind }
func (s *testSD) StatusInfo() rhcache.StatusInfo { return s.status }
func (s *testSD) KeyBytes() []byte               { return []byte(s.key) }
func (s *testSD) ToSample(buf []byte) error {
	copy(buf, s.key+"="+s.value)
	return nil
}
func (s *testSD) UntypedToSample(buf []byte) error {
	copy(buf, s.key)
	return nil
}

func (s *testSD) refCount() int32 { return atomic.LoadInt32(&s.refc) }

// testSertype hands out fixed-size buffers; value filters in these tests
// read the buffer back as a trimmed string.
type testSertype struct{}

func (testSertype) Alloc() []byte { return make([]byte, 64) }
func (testSertype) Free([]byte)   {}

func bufString(buf []byte) string {
	return strings.TrimRight(string(buf), "\x00")
}

// testScheduler records the last Schedule call and never fires on its own;
// tests that exercise lifespan/deadline firing call Fire() directly, kept
// deterministic rather than racing against a real timer.
type testScheduler struct {
	at       time.Time
	cb       func(now time.Time) time.Time
	canceled bool
}

func (ts *testScheduler) Schedule(at time.Time, cb func(now time.Time) time.Time) func() {
	ts.at, ts.cb, ts.canceled = at, cb, false
	return func() { ts.canceled = true }
}

func (ts *testScheduler) Fire(now time.Time) {
	if ts.cb != nil && !ts.canceled {
		ts.cb(now)
	}
}

func newTestRHC(cfg Config) (*RHC, *tkmap.Map, *testScheduler) {
	tk := tkmap.New(1, 2)
	sched := &testScheduler{}
	if cfg.Sertype == nil {
		cfg.Sertype = testSertype{}
	}
	// resource limits left at zero in a test Config mean "no limit"
	if cfg.MaxInstances == 0 {
		cfg.MaxInstances = Unlimited
	}
	if cfg.MaxSamples == 0 {
		cfg.MaxSamples = Unlimited
	}
	if cfg.MaxSamplesPerInstance == 0 {
		cfg.MaxSamplesPerInstance = Unlimited
	}
	r := New(cfg, tk, "test-entity", nil, sched, nil)
	return r, tk, sched
}

func doStore(r *RHC, tk *tkmap.Map, w rhcache.WriterInfo, key, value string, ts time.Time) (bool, Outcome) {
	sd := newTestSD(key, value, ts)
	in := tk.Find(sd, true)
	delivered, outcome := r.Store(w, sd, in)
	in.Unref()
	sd.Unref()
	return delivered, outcome
}

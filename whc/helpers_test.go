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

package whc

import (
	"sync/atomic"
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/tkmap"
)

// testSD is a minimal "key=value" rhcache.SerData fixture shared by this
// package's tests.
type testSD struct {
	key    string
	value  string
	ts     time.Time
	kind   rhcache.Kind
	status rhcache.StatusInfo
	refc   int32 // atomic
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

// testScheduler records the last Schedule call and only fires when told to,
// mirroring the rhc package's fixture of the same name.
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

func newTestWHC(cfg Config) (*WHC, *tkmap.Map, *testScheduler) {
	tk := tkmap.New(1, 2)
	sched := &testScheduler{}
	w := New(cfg, tk, "test-entity", nil, sched, nil)
	return w, tk, sched
}

// doInsert allocates a tkmap instance for key, inserts sd under it, and
// returns the resulting tkmap.Instance (caller must Unref when done).
func doInsert(w *WHC, tk *tkmap.Map, maxDropSeq, seq rhcache.SeqNum, expire time.Time, key, value string, ts time.Time) (*tkmap.Instance, error) {
	sd := newTestSD(key, value, ts)
	in := tk.Find(sd, true)
	err := w.Insert(maxDropSeq, seq, expire, sd, in)
	sd.Unref()
	return in, err
}

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
	"testing"
	"time"

	"github.com/rhcache/rhcache"
)

func TestOfferedDeadlineMissedFiresAfterSilence(t *testing.T) {
	var raised []rhcache.StatusCbData
	w, tk, sched := newTestWHC(Config{Deadline: time.Second})
	w.status = func(entity any, data rhcache.StatusCbData) { raised = append(raised, data) }

	base := time.Now()
	in, err := doInsert(w, tk, rhcache.NilSeqNum, 1, time.Time{}, "k1", "v1", base)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	defer in.Unref()

	if sched.cb == nil {
		t.Fatalf("inserting a data sample under a finite Deadline QoS should arm the deadline timer")
	}
	sched.Fire(base.Add(3 * time.Second))

	if len(raised) == 0 {
		t.Fatalf("expected an OfferedDeadlineMissed status callback")
	}
	last := raised[len(raised)-1]
	if last.RawStatusID != rhcache.OfferedDeadlineMissed {
		t.Fatalf("RawStatusID = %v, want OfferedDeadlineMissed", last.RawStatusID)
	}
	if last.Extra == 0 {
		t.Fatalf("Extra = 0, want > 0 missed periods")
	}
}

func TestOfferedDeadlineResetByFreshSample(t *testing.T) {
	var raised []rhcache.StatusCbData
	w, tk, sched := newTestWHC(Config{Deadline: time.Second})
	w.status = func(entity any, data rhcache.StatusCbData) { raised = append(raised, data) }

	base := time.Now()
	in1, err := doInsert(w, tk, rhcache.NilSeqNum, 1, time.Time{}, "k1", "v1", base)
	if err != nil {
		t.Fatalf("Insert 1: %v", err)
	}
	defer in1.Unref()
	in2, err := doInsert(w, tk, rhcache.NilSeqNum, 2, time.Time{}, "k1", "v2", base.Add(200*time.Millisecond))
	if err != nil {
		t.Fatalf("Insert 2: %v", err)
	}
	defer in2.Unref()

	// fires the stale entry armed by the first insert; the second insert
	// has since re-armed the instance's deadline further out.
	sched.Fire(base.Add(time.Second))

	if len(raised) != 0 {
		t.Fatalf("raised = %+v, want none (a fresh sample must reset the deadline)", raised)
	}
}

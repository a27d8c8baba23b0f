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
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/heap"
)

// instDeadline is the per-instance deadline bookkeeping on the writer
// side: it fires OFFERED_DEADLINE_MISSED rather than
// REQUESTED_DEADLINE_MISSED, the writer-side counterpart of rhc's deadline
// monitor.
type instDeadline struct {
	next   time.Time
	missed uint32
}

type deadlineEntry struct {
	due  time.Time
	inst rhcache.IID
}

func deadlineLess(a, b deadlineEntry) bool { return a.due.Before(b.due) }

type deadlineHeap struct {
	entries []deadlineEntry
}

func (h *deadlineHeap) push(e deadlineEntry) { heap.PushSlice(&h.entries, e, deadlineLess) }
func (h *deadlineHeap) peek() (deadlineEntry, bool) {
	if len(h.entries) == 0 {
		return deadlineEntry{}, false
	}
	return h.entries[0], true
}
func (h *deadlineHeap) pop() deadlineEntry { return heap.PopSlice(&h.entries, deadlineLess) }

// armDeadline (re-)schedules iid's next OFFERED_DEADLINE_MISSED check.
func (w *WHC) armDeadline(iid rhcache.IID, from time.Time) {
	if w.cfg.Deadline <= 0 {
		return
	}
	if w.deadlines == nil {
		w.deadlines = make(map[rhcache.IID]*instDeadline)
	}
	d := w.deadlines[iid]
	if d == nil {
		d = &instDeadline{}
		w.deadlines[iid] = d
	}
	d.next = from.Add(w.cfg.Deadline)
	w.deadline.push(deadlineEntry{due: d.next, inst: iid})
	w.rearmDeadlineTimer()
}

func (w *WHC) rearmDeadlineTimer() {
	if w.deadlineCancel != nil {
		w.deadlineCancel()
		w.deadlineCancel = nil
	}
	e, ok := w.deadline.peek()
	if !ok {
		return
	}
	w.deadlineCancel = w.sched.Schedule(e.due, w.onDeadlineFire)
}

func (w *WHC) onDeadlineFire(now time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		e, ok := w.deadline.peek()
		if !ok {
			return time.Time{}
		}
		if e.due.After(now) {
			return e.due
		}
		w.deadline.pop()
		d := w.deadlines[e.inst]
		if d == nil || !d.next.Equal(e.due) {
			continue
		}
		missed := uint32(now.Sub(d.next)/w.cfg.Deadline) + 1
		d.missed += missed
		d.next = d.next.Add(time.Duration(missed) * w.cfg.Deadline)
		w.raise(rhcache.OfferedDeadlineMissed, e.inst, missed)
		w.deadline.push(deadlineEntry{due: d.next, inst: e.inst})
	}
}

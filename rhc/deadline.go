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
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/heap"
)

// deadlineEntry is one pending deadline check. due is the
// deadline time this entry was scheduled for; it is compared against the
// instance's current nextDeadline at pop time to detect staleness (the
// instance may have received a fresh sample, or been re-armed by a prior
// firing, since this entry was pushed) instead of requiring an in-place
// heap Fix.
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

// armDeadline schedules (or re-schedules) in's next deadline check at
// from + cfg.Deadline and re-arms the deadline timer for the earliest
// pending entry. Must be called with r.mu held.
func (r *RHC) armDeadline(in *instance, from time.Time) {
	if r.cfg.Deadline <= 0 {
		return
	}
	in.hasDeadline = true
	in.nextDeadline = from.Add(r.cfg.Deadline)
	r.deadline.push(deadlineEntry{due: in.nextDeadline, inst: in.iid})
	r.rearmDeadlineTimer()
}

func (r *RHC) rearmDeadlineTimer() {
	if r.deadlineCancel != nil {
		r.deadlineCancel()
		r.deadlineCancel = nil
	}
	e, ok := r.deadline.peek()
	if !ok {
		return
	}
	r.deadlineCancel = r.sched.Schedule(e.due, r.onDeadlineFire)
}

// onDeadlineFire fires REQUESTED_DEADLINE_MISSED for every instance whose
// deadline has genuinely elapsed, then re-arms at the next multiple of
// the deadline period so a long-silent instance doesn't fire once per
// missed period retroactively.
func (r *RHC) onDeadlineFire(now time.Time) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		e, ok := r.deadline.peek()
		if !ok {
			return time.Time{}
		}
		if e.due.After(now) {
			return e.due
		}
		r.deadline.pop()
		in := r.instances[e.inst]
		if in == nil || !in.hasDeadline || !in.nextDeadline.Equal(e.due) {
			continue // dropped, or superseded by a later arm/fresh sample
		}
		missed := uint32(now.Sub(in.nextDeadline)/r.cfg.Deadline) + 1
		in.deadlinesMissed += missed
		in.nextDeadline = in.nextDeadline.Add(time.Duration(missed) * r.cfg.Deadline)
		r.raise(rhcache.RequestedDeadlineMissed, in.iid, missed, rhcache.RejectedNone)
		r.deadline.push(deadlineEntry{due: in.nextDeadline, inst: in.iid})
	}
}

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

// lifespanEntry is one pending expiry in the lifespan min-heap.
type lifespanEntry struct {
	expire time.Time
	inst   rhcache.IID
	s      *sample
}

func lifespanLess(a, b lifespanEntry) bool { return a.expire.Before(b.expire) }

// lifespanHeap holds every sample with a finite lifespan across the whole
// RHC, ordered by expiry time: a min-heap keyed by expire-time holds all
// samples with finite lifespan. Entries for samples removed by some other
// path (take, overwrite) are left in place and skipped at pop time via
// sample.removed, since the underlying heap package (generic
// heap.PushSlice/PopSlice) has no by-pointer delete — only
// push/pop/fix-by-index.
type lifespanHeap struct {
	entries []lifespanEntry
}

func (h *lifespanHeap) push(e lifespanEntry) {
	heap.PushSlice(&h.entries, e, lifespanLess)
}

func (h *lifespanHeap) peek() (lifespanEntry, bool) {
	if len(h.entries) == 0 {
		return lifespanEntry{}, false
	}
	return h.entries[0], true
}

func (h *lifespanHeap) pop() lifespanEntry {
	return heap.PopSlice(&h.entries, lifespanLess)
}

// registerLifespan arms a newly-inserted sample's expiry, if it has one,
// and (re-)schedules the single lifespan timer if this is now the
// earliest pending expiry.
func (r *RHC) registerLifespan(in *instance, s *sample) {
	if !s.hasExpiry {
		return
	}
	r.lifespan.push(lifespanEntry{expire: s.expire, inst: in.iid, s: s})
	r.rearmLifespan()
}

// rearmLifespan (re-)schedules the external event for the current
// earliest pending expiry, cancelling any previous timer. Must be called
// with r.mu held; the scheduler callback re-enters under the lock.
func (r *RHC) rearmLifespan() {
	if r.lifespanCancel != nil {
		r.lifespanCancel()
		r.lifespanCancel = nil
	}
	e, ok := r.lifespan.peek()
	if !ok {
		return
	}
	r.lifespanCancel = r.sched.Schedule(e.expire, r.onLifespanFire)
}

// onLifespanFire is the scheduler callback: it drops every sample whose
// expiry has passed, exactly like a take of that one sample, then
// re-arms for the next pending expiry.
func (r *RHC) onLifespanFire(now time.Time) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		e, ok := r.lifespan.peek()
		if !ok {
			return time.Time{}
		}
		if e.expire.After(now) {
			return e.expire
		}
		r.lifespan.pop()
		if e.s.removed {
			continue // already taken/overwritten/expired by another path
		}
		in := r.instances[e.inst]
		if in == nil {
			continue
		}
		r.expireSampleLocked(in, e.s)
	}
}

// expireSampleLocked removes s from in as a lifespan expiry (:
// "drops all expired samples under the lock (updating all counters and
// trigger state as for a take)").
func (r *RHC) expireSampleLocked(in *instance, s *sample) {
	before := snapshot(in)
	idx := -1
	for i, cand := range in.samples {
		if cand == s {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	r.removeSampleAt(in, idx)
	r.commit(in, before, true)
}

// removeSampleAt deletes in.samples[idx], updating valid/read sample
// counters and query-condition trigger counts, mirroring the accounting a
// take() does for a single sample. It does not touch ring
// membership or instance classification — callers call commit() for that.
func (r *RHC) removeSampleAt(in *instance, idx int) {
	s := in.samples[idx]
	s.removed = true
	if s.isRead {
		in.nvread--
		r.c.nVRead--
	}
	in.nvsamples--
	r.c.nVSamples--
	if s.qmask != 0 {
		r.conditions.AdjustSample(s.qmask, -1)
	}
	in.samples = append(in.samples[:idx], in.samples[idx+1:]...)
	s.release()
}

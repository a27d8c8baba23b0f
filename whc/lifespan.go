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

	"github.com/rhcache/rhcache/heap"
)

// lifespanEntry is one pending expiry in the writer-side lifespan min-heap:
// lifespan drops expired samples out-of-band via the same heap mechanism
// as the reader-side cache.
type lifespanEntry struct {
	expire time.Time
	s      *wsample
}

func lifespanLess(a, b lifespanEntry) bool { return a.expire.Before(b.expire) }

type lifespanHeap struct {
	entries []lifespanEntry
}

func (h *lifespanHeap) push(e lifespanEntry) { heap.PushSlice(&h.entries, e, lifespanLess) }
func (h *lifespanHeap) peek() (lifespanEntry, bool) {
	if len(h.entries) == 0 {
		return lifespanEntry{}, false
	}
	return h.entries[0], true
}
func (h *lifespanHeap) pop() lifespanEntry { return heap.PopSlice(&h.entries, lifespanLess) }

func (w *WHC) registerLifespan(s *wsample) {
	if !s.hasExpiry {
		return
	}
	w.lifespan.push(lifespanEntry{expire: s.expire, s: s})
	w.rearmLifespan()
}

func (w *WHC) rearmLifespan() {
	if w.lifespanCancel != nil {
		w.lifespanCancel()
		w.lifespanCancel = nil
	}
	e, ok := w.lifespan.peek()
	if !ok {
		return
	}
	w.lifespanCancel = w.sched.Schedule(e.expire, w.onLifespanFire)
}

func (w *WHC) onLifespanFire(now time.Time) time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		e, ok := w.lifespan.peek()
		if !ok {
			return time.Time{}
		}
		if e.expire.After(now) {
			return e.expire
		}
		w.lifespan.pop()
		if e.s.removed || e.s.borrowed {
			continue // already pruned, or borrowed mid-retransmit: skipped and not re-queued
		}
		w.dropSample(e.s)
	}
}

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

import "github.com/rhcache/rhcache"

// DeferredFreeList is the set of samples pruned by RemoveAckedMessages,
// whose serdata must be released outside the WHC lock, since a serdata
// destructor may take other locks (e.g. TKMap's).
// FreeDeferredFreeList must be called exactly once per returned list.
type DeferredFreeList struct {
	samples []*wsample
}

// Len reports how many samples are pending release.
func (l *DeferredFreeList) Len() int { return len(l.samples) }

// RemoveAckedMessages prunes every sample with seq <= N
// that is not currently protected by its instance's transient-local
// retention window, returning a deferred free list and the resulting
// occupancy.
func (w *WHC) RemoveAckedMessages(n rhcache.SeqNum) (count int, state State, deferred *DeferredFreeList) {
	w.mu.Lock()
	defer w.mu.Unlock()

	deferred = &DeferredFreeList{}

	if !w.cfg.IsTransientLocal && w.cfg.Deadline <= 0 && !w.cfg.needsIndex() {
		// Fast path: KEEP_ALL history, non-transient-local, no
		// deadline, hence no index — bulk-drop everything up to min(N, max_seq).
		limit := n
		if m := w.maxSeq(); m != rhcache.NilSeqNum && m < limit {
			limit = m
		}
		for _, s := range w.order {
			if s.removed || s.seq > limit {
				continue
			}
			w.pruneOne(s, deferred)
			count++
		}
		return count, w.stateLocked(), deferred
	}

	keepAllTransientLocal := w.cfg.IsTransientLocal && w.cfg.TransientLocalDepth == 0

	visited := make(map[rhcache.IID]*idxnode)
	for _, s := range w.order {
		if s.removed || s.seq > n {
			continue
		}
		if keepAllTransientLocal {
			// KEEP_ALL transient-local retention never drops samples by
			// ack; an ack only clears the unacked bit/byte accounting.
			w.clearUnacked(s)
			continue
		}
		node := w.idx[s.tk.IID()]
		if node != nil {
			visited[s.tk.IID()] = node
			if node.protected(s, w.cfg.IsTransientLocal, w.cfg.TransientLocalDepth) {
				continue
			}
		}
		w.pruneOne(s, deferred)
		count++
	}

	// Second pass: when the index is physically deeper than the
	// transient-local retention window, drop samples that only history
	// depth (not the transient-local window) was still protecting,
	// bounded by a per-node watermark so redelivered ACKs are a no-op.
	if w.cfg.needsIndex() && w.cfg.IsTransientLocal && w.cfg.IdxDepth() > w.cfg.TransientLocalDepth {
		for iid, node := range visited {
			if node.pruneSeq >= n {
				continue
			}
			for back := int(w.cfg.TransientLocalDepth); back < len(node.hist); back++ {
				idx := ((node.headidx-back)%len(node.hist) + len(node.hist)) % len(node.hist)
				s := node.hist[idx]
				if s == nil || s.removed || s.seq > n {
					continue
				}
				w.pruneOne(s, deferred)
				count++
			}
			node.pruneSeq = n
			_ = iid
		}
	}

	return count, w.stateLocked(), deferred
}

// pruneOne removes s from the seq order/index, queuing its serdata on the
// deferred free list instead of releasing it inline.
func (w *WHC) pruneOne(s *wsample, deferred *DeferredFreeList) {
	if s.removed {
		return
	}
	s.removed = true
	w.removed++
	w.clearUnacked(s)
	if node := w.idx[s.tk.IID()]; node != nil {
		node.remove(s)
	}
	deferred.samples = append(deferred.samples, s)
}

// clearUnacked clears s's unacked accounting without removing it from the
// cache, used when an ack reaches a sample that KEEP_ALL transient-local
// retention still must keep.
func (w *WHC) clearUnacked(s *wsample) {
	if s.unacked {
		w.unackedBytes -= s.sd.Size()
		s.unacked = false
	}
}

func (w *WHC) stateLocked() State {
	return State{
		MinSeq:       w.minSeq(),
		MaxSeq:       w.maxSeq(),
		UnackedBytes: w.unackedBytes,
		NumSamples:   len(w.order) - w.removed,
	}
}

// FreeDeferredFreeList releases every sample queued by RemoveAckedMessages,
// outside the WHC lock. Must be called exactly once per list.
func (w *WHC) FreeDeferredFreeList(l *DeferredFreeList) {
	for _, s := range l.samples {
		s.release()
	}
	l.samples = nil
	w.mu.Lock()
	w.compact()
	w.mu.Unlock()
}

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

// idxnode is a WHC instance-index node: the per-instance circular history
// array backing both fast-path KEEP_LAST eviction and transient-local
// retention.
type idxnode struct {
	iid     rhcache.IID
	hist    []*wsample // circular, sized cfg.IdxDepth()
	headidx int        // index of the most-recently-written slot
	filled  int         // number of valid (non-nil) slots, <= len(hist)

	// pruneSeq is the highest N remove_acked_messages has already pruned
	// this node's second pass against, making that pass idempotent under
	// ACK redelivery.
	pruneSeq rhcache.SeqNum
}

func newIdxnode(iid rhcache.IID, depth uint32) *idxnode {
	return &idxnode{iid: iid, hist: make([]*wsample, depth), headidx: -1}
}

// push records s as the newest sample of this instance, returning the
// sample it overwrote (nil if the array wasn't yet full).
func (n *idxnode) push(s *wsample) (overwritten *wsample) {
	n.headidx = (n.headidx + 1) % len(n.hist)
	overwritten = n.hist[n.headidx]
	n.hist[n.headidx] = s
	if overwritten == nil {
		n.filled++
	}
	return overwritten
}

// remove clears s from this node's history, wherever it currently sits,
// so a later push doesn't report it as overwritten twice.
func (n *idxnode) remove(s *wsample) {
	for i, cand := range n.hist {
		if cand == s {
			n.hist[i] = nil
			n.filled--
			return
		}
	}
}

// position reports how many slots back from the head s sits (0 = most
// recent), or -1 if s is not present.
func (n *idxnode) position(s *wsample) int {
	if n.headidx < 0 {
		return -1
	}
	depth := len(n.hist)
	for back := 0; back < depth; back++ {
		idx := ((n.headidx-back)%depth + depth) % depth
		if n.hist[idx] == s {
			return back
		}
	}
	return -1
}

// protected reports whether s is among the tldepth newest entries of this
// node (transient-local protection window). tldepth == 0 with
// transient-local means KEEP_ALL within the window: everything protected.
func (n *idxnode) protected(s *wsample, transientLocal bool, tldepth uint32) bool {
	if !transientLocal {
		return false
	}
	if tldepth == 0 {
		return true
	}
	pos := n.position(s)
	return pos >= 0 && pos < int(tldepth)
}

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
	"golang.org/x/exp/slices"

	"github.com/rhcache/rhcache"
)

// Handle is an opaque borrowed-sample reference returned by BorrowSample /
// BorrowSampleKey, paired with ReturnSample.
type Handle struct {
	s *wsample
}

// Seq reports the borrowed sample's sequence number.
func (h Handle) Seq() rhcache.SeqNum { return h.s.seq }

// Data returns the borrowed sample's serialized datum. The caller does not
// own a separate reference: it is only valid until ReturnSample.
func (h Handle) Data() rhcache.SerData { return h.s.sd }

// BorrowSample flips seq's borrowed bit and returns a handle, or the zero
// Handle and false if seq is absent or already borrowed: until returned,
// no other thread may re-borrow it.
func (w *WHC) BorrowSample(seq rhcache.SeqNum) (Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, found := w.findSeq(seq)
	if !found || w.order[idx].borrowed {
		return Handle{}, false
	}
	s := w.order[idx]
	s.borrowed = true
	return Handle{s: s}, true
}

// BorrowSampleKey borrows the most recent live sample matching a key-only
// serdata, used by the retransmission path when it only has the key.
func (w *WHC) BorrowSampleKey(keySD rhcache.SerData) (Handle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := keySD.KeyBytes()
	for i := len(w.order) - 1; i >= 0; i-- {
		s := w.order[i]
		if s.removed || s.borrowed {
			continue
		}
		if string(s.sd.KeyBytes()) == string(key) {
			s.borrowed = true
			return Handle{s: s}, true
		}
	}
	return Handle{}, false
}

// ReturnSample releases a handle obtained from BorrowSample(Key). If the
// sample was removed from the cache while borrowed, this is the point its
// serdata finally gets unreferenced: returning a sample that has since
// been removed silently unrefs the serdata.
func (w *WHC) ReturnSample(h Handle, updateRetransmitInfo bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := h.s
	s.borrowed = false
	if s.removed {
		s.sd.Unref()
		return
	}
	if updateRetransmitInfo {
		// Retransmission observed this sample go out again; no further
		// bookkeeping is defined by this module beyond the borrow bit
		// itself, which is already cleared above.
		_ = updateRetransmitInfo
	}
}

func (w *WHC) findSeq(seq rhcache.SeqNum) (int, bool) {
	idx, found := slices.BinarySearchFunc(w.order, seq, func(s *wsample, seq rhcache.SeqNum) int {
		switch {
		case s.seq < seq:
			return -1
		case s.seq > seq:
			return 1
		default:
			return 0
		}
	})
	if !found || w.order[idx].removed {
		return 0, false
	}
	return idx, true
}

// Iterator walks live samples in ascending seq order.
type Iterator struct {
	w   *WHC
	pos int
}

// SampleIterInit returns an Iterator starting before the first live sample.
func (w *WHC) SampleIterInit() *Iterator {
	return &Iterator{w: w, pos: 0}
}

// SampleIterBorrowNext borrows the next live sample in seq order, or
// returns false when exhausted. Each returned handle must eventually be
// released via ReturnSample.
func (it *Iterator) SampleIterBorrowNext() (Handle, bool) {
	it.w.mu.Lock()
	defer it.w.mu.Unlock()
	for it.pos < len(it.w.order) {
		s := it.w.order[it.pos]
		it.pos++
		if s.removed || s.borrowed {
			continue
		}
		s.borrowed = true
		return Handle{s: s}, true
	}
	return Handle{}, false
}

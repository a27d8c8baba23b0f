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
	"github.com/rhcache/rhcache/tkmap"
)

func TestBorrowSampleThenReturn(t *testing.T) {
	w, tk, _ := newTestWHC(Config{})
	in, err := doInsert(w, tk, rhcache.NilSeqNum, 1, time.Time{}, "k1", "v1", time.Now())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	defer in.Unref()

	h, ok := w.BorrowSample(1)
	if !ok {
		t.Fatalf("BorrowSample(1) ok = false, want true")
	}
	if h.Seq() != 1 {
		t.Fatalf("Seq() = %v, want 1", h.Seq())
	}

	if _, ok := w.BorrowSample(1); ok {
		t.Fatalf("a second concurrent BorrowSample(1) must fail while still borrowed")
	}

	w.ReturnSample(h, false)
	if _, ok := w.BorrowSample(1); !ok {
		t.Fatalf("BorrowSample(1) after Return should succeed")
	}
}

func TestBorrowSampleAbsentSeqFails(t *testing.T) {
	w, _, _ := newTestWHC(Config{})
	if _, ok := w.BorrowSample(42); ok {
		t.Fatalf("BorrowSample of an absent seq should fail")
	}
}

func TestBorrowSampleKeyFindsMostRecentMatch(t *testing.T) {
	w, tk, _ := newTestWHC(Config{})
	base := time.Now()
	in1, err := doInsert(w, tk, rhcache.NilSeqNum, 1, time.Time{}, "k1", "v1", base)
	if err != nil {
		t.Fatalf("Insert 1: %v", err)
	}
	defer in1.Unref()
	in2, err := doInsert(w, tk, rhcache.NilSeqNum, 2, time.Time{}, "k1", "v2", base.Add(time.Millisecond))
	if err != nil {
		t.Fatalf("Insert 2: %v", err)
	}
	defer in2.Unref()

	keyOnly := newTestSD("k1", "", base)
	h, ok := w.BorrowSampleKey(keyOnly)
	keyOnly.Unref()
	if !ok {
		t.Fatalf("BorrowSampleKey: ok = false, want true")
	}
	if h.Seq() != 2 {
		t.Fatalf("Seq() = %v, want 2 (the most recent live match)", h.Seq())
	}
	w.ReturnSample(h, false)
}

func TestReturnSampleAfterRemovalUnrefsDeferred(t *testing.T) {
	w, tk, _ := newTestWHC(Config{})
	in, err := doInsert(w, tk, rhcache.NilSeqNum, 1, time.Time{}, "k1", "v1", time.Now())
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	defer in.Unref()

	h, ok := w.BorrowSample(1)
	if !ok {
		t.Fatalf("BorrowSample: ok = false")
	}

	_, _, deferred := w.RemoveAckedMessages(1)
	if deferred.Len() != 1 {
		t.Fatalf("deferred.Len() = %d, want 1 (removal must not drop a borrowed sample's ref yet)", deferred.Len())
	}
	w.FreeDeferredFreeList(deferred) // s.borrowed is still true; release() must defer

	sd := h.Data().(*testSD)
	before := sd.refCount()
	w.ReturnSample(h, false)
	if sd.refCount() != before-1 {
		t.Fatalf("refcount after ReturnSample of a removed sample = %d, want %d", sd.refCount(), before-1)
	}
}

func TestSampleIteratorSkipsBorrowedSample(t *testing.T) {
	w, tk, _ := newTestWHC(Config{})
	base := time.Now()
	var ins []*tkmap.Instance
	for i := rhcache.SeqNum(1); i <= 3; i++ {
		in, err := doInsert(w, tk, rhcache.NilSeqNum, i, time.Time{}, "k1", "v", base)
		if err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
		ins = append(ins, in)
	}
	defer func() {
		for _, in := range ins {
			in.Unref()
		}
	}()

	h2, ok := w.BorrowSample(2)
	if !ok {
		t.Fatalf("BorrowSample(2): ok = false")
	}

	it := w.SampleIterInit()
	var seqs []rhcache.SeqNum
	for {
		h, ok := it.SampleIterBorrowNext()
		if !ok {
			break
		}
		seqs = append(seqs, h.Seq())
		w.ReturnSample(h, false)
	}
	w.ReturnSample(h2, false)

	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 3 {
		t.Fatalf("iterator visited %v, want [1 3] (seq 2 was borrowed, must be skipped)", seqs)
	}
}

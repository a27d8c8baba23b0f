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

import "testing"

func TestIdxnodePushFillsBeforeOverwriting(t *testing.T) {
	n := newIdxnode(1, 2)
	s1, s2, s3 := &wsample{seq: 1}, &wsample{seq: 2}, &wsample{seq: 3}

	if overwritten := n.push(s1); overwritten != nil {
		t.Fatalf("first push overwritten = %v, want nil", overwritten)
	}
	if overwritten := n.push(s2); overwritten != nil {
		t.Fatalf("second push overwritten = %v, want nil (array not yet full)", overwritten)
	}
	if overwritten := n.push(s3); overwritten != s1 {
		t.Fatalf("third push overwritten = %v, want s1 (oldest slot)", overwritten)
	}
}

func TestIdxnodePositionTracksRecency(t *testing.T) {
	n := newIdxnode(1, 3)
	s1, s2, s3 := &wsample{seq: 1}, &wsample{seq: 2}, &wsample{seq: 3}
	n.push(s1)
	n.push(s2)
	n.push(s3)

	if pos := n.position(s3); pos != 0 {
		t.Fatalf("position(newest) = %d, want 0", pos)
	}
	if pos := n.position(s1); pos != 2 {
		t.Fatalf("position(oldest) = %d, want 2", pos)
	}
	if pos := n.position(&wsample{seq: 99}); pos != -1 {
		t.Fatalf("position(absent) = %d, want -1", pos)
	}
}

func TestIdxnodeRemoveClearsSlotWithoutDoubleCounting(t *testing.T) {
	n := newIdxnode(1, 2)
	s1, s2 := &wsample{seq: 1}, &wsample{seq: 2}
	n.push(s1)
	n.push(s2)
	n.remove(s1)
	if n.filled != 1 {
		t.Fatalf("filled = %d, want 1 after removing one of two entries", n.filled)
	}

	// a subsequent push into the now-empty slot must not report an
	// overwrite, since remove already cleared it.
	s3 := &wsample{seq: 3}
	if overwritten := n.push(s3); overwritten != nil {
		t.Fatalf("push into a removed slot reported overwritten = %v, want nil", overwritten)
	}
}

func TestIdxnodeProtectedWindow(t *testing.T) {
	n := newIdxnode(1, 3)
	s1, s2, s3 := &wsample{seq: 1}, &wsample{seq: 2}, &wsample{seq: 3}
	n.push(s1)
	n.push(s2)
	n.push(s3)

	if !n.protected(s3, true, 2) {
		t.Fatalf("newest sample must be protected within a depth-2 transient-local window")
	}
	if n.protected(s1, true, 2) {
		t.Fatalf("oldest of 3 must NOT be protected within a depth-2 window")
	}
	if n.protected(s1, false, 2) {
		t.Fatalf("protected() must be false outright when the writer isn't transient-local")
	}
	if !n.protected(s1, true, 0) {
		t.Fatalf("TransientLocalDepth == 0 means KEEP_ALL within the window: everything protected")
	}
}

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
	"testing"
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/condition"
)

var timeZero = time.Time{}

type fakeEntityIndex struct {
	recs []EntityRecord
}

func (f *fakeEntityIndex) Enumerate() []EntityRecord { return append([]EntityRecord(nil), f.recs...) }
func (f *fakeEntityIndex) MarkRead(handle rhcache.IID) {
	for i := range f.recs {
		if f.recs[i].Handle == handle {
			f.recs[i].IsNew = false
		}
	}
}

func TestBuiltinReadSynthesizesFromEntityIndex(t *testing.T) {
	idx := &fakeEntityIndex{recs: []EntityRecord{
		{Handle: 1, Data: newTestSD("p1", "", timeZero), Alive: true, IsNew: true},
		{Handle: 2, Data: newTestSD("p2", "", timeZero), Alive: true, IsNew: false},
	}}
	b := NewBuiltin(idx)
	out := b.Read(anySel, 0)
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestBuiltinReadMarksNewRecordAsObserved(t *testing.T) {
	idx := &fakeEntityIndex{recs: []EntityRecord{
		{Handle: 1, Data: newTestSD("p1", "", timeZero), Alive: true, IsNew: true},
	}}
	b := NewBuiltin(idx)
	b.Read(anySel, 0)
	if idx.recs[0].IsNew {
		t.Fatalf("record still marked IsNew after being read once")
	}
}

func TestBuiltinStoreAndSetQosAreNoOps(t *testing.T) {
	idx := &fakeEntityIndex{}
	b := NewBuiltin(idx)
	delivered, outcome := b.Store(rhcache.WriterInfo{}, nil, nil)
	if !delivered || outcome != Stored {
		t.Fatalf("Builtin.Store = (%v, %v), want (true, Stored)", delivered, outcome)
	}
	b.SetQos(Config{}) // must not panic
	b.UnregisterWriter(1)
	b.RelinquishOwnership(1)
}

func TestBuiltinAddReadConditionUnsupported(t *testing.T) {
	idx := &fakeEntityIndex{}
	b := NewBuiltin(idx)
	if err := b.AddReadCondition(&condition.Condition{}); err != rhcache.ErrUnsupported {
		t.Fatalf("AddReadCondition err = %v, want ErrUnsupported", err)
	}
}

func TestBuiltinDisposedRecordReportsNotAliveDisposed(t *testing.T) {
	idx := &fakeEntityIndex{recs: []EntityRecord{
		{Handle: 1, Data: nil, Alive: false, IsNew: false},
	}}
	b := NewBuiltin(idx)
	out := b.Read(anySel, 0)
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Info.InstanceState != condition.NotAliveDisposed {
		t.Fatalf("InstanceState = %v, want NotAliveDisposed", out[0].Info.InstanceState)
	}
	if out[0].Info.ValidData {
		t.Fatalf("ValidData = true for a disposed record, want false")
	}
}

func TestBuiltinReadCdrScopesToHandle(t *testing.T) {
	idx := &fakeEntityIndex{recs: []EntityRecord{
		{Handle: 1, Data: newTestSD("p1", "", timeZero), Alive: true},
		{Handle: 2, Data: newTestSD("p2", "", timeZero), Alive: true},
	}}
	b := NewBuiltin(idx)
	out := b.ReadCdr(2, anySel, 0)
	if len(out) != 1 || out[0].Info.InstanceHandle != 2 {
		t.Fatalf("ReadCdr(2) = %+v, want exactly handle 2", out)
	}
}

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

package condition

import "testing"

func TestRegistryAddAllocatesLowestFreeBit(t *testing.T) {
	var r Registry
	c1 := &Condition{Filter: func([]byte) bool { return true }}
	c2 := &Condition{Filter: func([]byte) bool { return true }}
	if err := r.Add(c1); err != nil {
		t.Fatalf("Add c1: %v", err)
	}
	if err := r.Add(c2); err != nil {
		t.Fatalf("Add c2: %v", err)
	}
	if c1.Bit != 1 {
		t.Fatalf("c1.Bit = %d, want 1", c1.Bit)
	}
	if c2.Bit != 2 {
		t.Fatalf("c2.Bit = %d, want 2", c2.Bit)
	}
	r.Remove(c1)
	c3 := &Condition{Filter: func([]byte) bool { return true }}
	if err := r.Add(c3); err != nil {
		t.Fatalf("Add c3: %v", err)
	}
	if c3.Bit != 1 {
		t.Fatalf("c3.Bit = %d, want reused bit 1", c3.Bit)
	}
}

func TestRegistryAddPlainReadConditionAllocatesNoBit(t *testing.T) {
	var r Registry
	c := &Condition{SampleStates: AnySampleState, ViewStates: AnyViewState, InstanceStates: AnyInstanceState}
	if err := r.Add(c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if c.Bit != 0 {
		t.Fatalf("plain read condition got Bit = %d, want 0", c.Bit)
	}
}

func TestRegistryAddCapacityExhausted(t *testing.T) {
	var r Registry
	for i := 0; i < MaxConditions; i++ {
		c := &Condition{Filter: func([]byte) bool { return true }}
		if err := r.Add(c); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}
	over := &Condition{Filter: func([]byte) bool { return true }}
	if err := r.Add(over); err != ErrCapacity {
		t.Fatalf("Add past capacity: err = %v, want ErrCapacity", err)
	}
}

func TestConditionSeedThenAdjust(t *testing.T) {
	c := &Condition{ViewStates: AnyViewState, InstanceStates: AnyInstanceState}
	c.Seed(3)
	if got := c.Trigger(); got != 3 {
		t.Fatalf("Trigger() = %d, want 3", got)
	}
	if becamePositive := c.adjust(-3); becamePositive {
		t.Fatalf("adjust(-3) from 3 reported becamePositive")
	}
	if got := c.Trigger(); got != 0 {
		t.Fatalf("Trigger() after drain = %d, want 0", got)
	}
	if becamePositive := c.adjust(1); !becamePositive {
		t.Fatalf("adjust(1) from 0 should report becamePositive")
	}
}

func TestRegistryAdjustInstanceOnlyMatchesReadConditions(t *testing.T) {
	var r Registry
	read := &Condition{ViewStates: New, InstanceStates: Alive}
	query := &Condition{Filter: func([]byte) bool { return true }}
	r.Add(read)
	r.Add(query)

	r.AdjustInstance(New, Alive, 1)
	if got := read.Trigger(); got != 1 {
		t.Fatalf("read.Trigger() = %d, want 1", got)
	}
	if got := query.Trigger(); got != 0 {
		t.Fatalf("query.Trigger() = %d, want 0 (query conditions track samples, not instances)", got)
	}

	r.AdjustInstance(Old, Alive, 1)
	if got := read.Trigger(); got != 1 {
		t.Fatalf("read condition scoped to New matched an Old-view adjust: Trigger() = %d", got)
	}
}

func TestRegistryAdjustSampleOnlyMatchesOwningBit(t *testing.T) {
	var r Registry
	c1 := &Condition{Filter: func([]byte) bool { return true }}
	c2 := &Condition{Filter: func([]byte) bool { return true }}
	r.Add(c1)
	r.Add(c2)

	r.AdjustSample(c1.Bit, 1)
	if got := c1.Trigger(); got != 1 {
		t.Fatalf("c1.Trigger() = %d, want 1", got)
	}
	if got := c2.Trigger(); got != 0 {
		t.Fatalf("c2.Trigger() = %d, want 0 (mask didn't include its bit)", got)
	}
}

func TestRegistryEvalMask(t *testing.T) {
	var r Registry
	even := &Condition{Filter: func(b []byte) bool { return len(b)%2 == 0 }}
	nonEmpty := &Condition{Filter: func(b []byte) bool { return len(b) > 0 }}
	r.Add(even)
	r.Add(nonEmpty)

	m := r.EvalMask([]byte("ab"))
	if m&even.Bit == 0 {
		t.Fatalf("mask %v missing even.Bit %v for len-2 sample", m, even.Bit)
	}
	if m&nonEmpty.Bit == 0 {
		t.Fatalf("mask %v missing nonEmpty.Bit %v for len-2 sample", m, nonEmpty.Bit)
	}

	m = r.EvalMask([]byte("abc"))
	if m&even.Bit != 0 {
		t.Fatalf("mask %v set even.Bit %v for len-3 sample", m, even.Bit)
	}
}

func TestConditionMatchesInstanceAndSampleState(t *testing.T) {
	c := &Condition{SampleStates: NotRead, ViewStates: New, InstanceStates: Alive | NotAliveDisposed}
	if !c.MatchesInstance(New, Alive) {
		t.Fatalf("expected match on (New, Alive)")
	}
	if c.MatchesInstance(Old, Alive) {
		t.Fatalf("unexpected match on (Old, Alive)")
	}
	if !c.MatchesSampleState(NotRead) {
		t.Fatalf("expected NotRead to match")
	}
	if c.MatchesSampleState(Read) {
		t.Fatalf("unexpected Read match")
	}
}

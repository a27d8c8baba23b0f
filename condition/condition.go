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

// Package condition implements DDS read/query conditions: the
// (sample_state, view_state, instance_state) mask triple an RHC read/take
// can be scoped to, plus the per-sample query-mask bitset machinery
// backing query conditions.
//
// The per-sample/per-invalid-slot bitmask is a single uint64 (Mask),
// similar in spirit to a bitset type like expr/blob.Bitmap but capped at
// 64 conditions so a fixed machine word is enough and no byte-slice
// allocation is needed per sample.
package condition

import (
	"errors"
	"sync"
	"sync/atomic"
)

// SampleStateMask selects samples by whether they have been read.
type SampleStateMask uint32

const (
	Read SampleStateMask = 1 << iota
	NotRead
)

// AnySampleState matches every sample state.
const AnySampleState = Read | NotRead

// ViewStateMask selects instances by whether this is the first sample
// observed for them since their last NOT_ALIVE->ALIVE transition.
type ViewStateMask uint32

const (
	New ViewStateMask = 1 << iota
	Old
)

// AnyViewState matches every view state.
const AnyViewState = New | Old

// InstanceStateMask selects instances by liveliness/disposal state.
type InstanceStateMask uint32

const (
	Alive InstanceStateMask = 1 << iota
	NotAliveDisposed
	NotAliveNoWriters
)

// AnyInstanceState matches every instance state.
const AnyInstanceState = Alive | NotAliveDisposed | NotAliveNoWriters

// NotAliveMask matches either not-alive state.
const NotAliveMask = NotAliveDisposed | NotAliveNoWriters

// Mask is the per-sample / per-invalid-slot query-condition membership
// bitmask: bit N records whether the query condition holding bit N
// currently matches that sample.
type Mask uint64

// MaxConditions is the hard cap on simultaneously registered query
// conditions: the bit-width of Mask.
const MaxConditions = 64

// Filter evaluates a query condition's predicate against a deserialized
// sample buffer.
type Filter func(sample []byte) bool

// Condition is either a plain read condition (Filter == nil, Bit == 0) or
// a query condition (Filter != nil, Bit holding its allocated mask bit).
type Condition struct {
	SampleStates   SampleStateMask
	ViewStates     ViewStateMask
	InstanceStates InstanceStateMask
	Filter         Filter

	// Bit is the allocated query-mask bit; zero for a plain read
	// condition (which has no per-sample filter to track).
	Bit Mask

	// trigger is the condition's waitset trigger count: for a read
	// condition, the number of matching non-empty instances; for a
	// query condition, the number of matching samples across all
	// instances. Mutated only while the owning cache's lock is
	// held, but may be read lock-free.
	trigger int64
}

// IsQuery reports whether c is a query condition (has a filter and an
// allocated mask bit) as opposed to a plain read condition.
func (c *Condition) IsQuery() bool { return c.Filter != nil }

// Trigger returns the condition's current trigger count. Safe to call
// without the owning cache's lock.
func (c *Condition) Trigger() int64 { return atomic.LoadInt64(&c.trigger) }

// Seed sets the trigger count directly. Used once, right after Add, when
// attaching a condition to a cache that already holds matching state: the
// incremental AdjustSample/AdjustInstance deltas only cover state changes
// from this point forward.
func (c *Condition) Seed(n int64) { atomic.StoreInt64(&c.trigger, n) }

// MatchesInstance reports whether the instance's (view, instance) state is
// within this condition's mask.
func (c *Condition) MatchesInstance(view ViewStateMask, inst InstanceStateMask) bool {
	return c.ViewStates&view != 0 && c.InstanceStates&inst != 0
}

// MatchesSampleState reports whether ss is within this condition's sample
// state mask.
func (c *Condition) MatchesSampleState(ss SampleStateMask) bool {
	return c.SampleStates&ss != 0
}

// adjust changes the trigger count by delta and reports whether this call
// caused a 0->positive transition, which signals the attached waitset.
func (c *Condition) adjust(delta int64) (becamePositive bool) {
	before := atomic.LoadInt64(&c.trigger)
	after := atomic.AddInt64(&c.trigger, delta)
	return before <= 0 && after > 0
}

// ErrCapacity is returned by Registry.Add when all MaxConditions query-mask
// bits are already allocated.
var ErrCapacity = errors.New("condition: query-condition capacity exhausted")

// Registry tracks the conditions attached to one RHC and the free pool of
// query-mask bits. The free pool is the complement of the union of
// currently allocated bits; Add always hands out the lowest-numbered free
// bit, making allocation deterministic.
type Registry struct {
	mu    sync.Mutex
	used  Mask
	conds []*Condition
}

// Add registers c, allocating a query-mask bit if c is a query condition.
func (r *Registry) Add(c *Condition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.IsQuery() {
		free := ^r.used
		if free == 0 {
			return ErrCapacity
		}
		bit := free & (-free) // lowest set (= lowest free) bit
		r.used |= bit
		c.Bit = Mask(bit)
	}
	r.conds = append(r.conds, c)
	return nil
}

// Remove detaches c, returning its query-mask bit (if any) to the free
// pool.
func (r *Registry) Remove(c *Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.Bit != 0 {
		r.used &^= c.Bit
		c.Bit = 0
	}
	for i, cc := range r.conds {
		if cc == c {
			r.conds = append(r.conds[:i], r.conds[i+1:]...)
			break
		}
	}
}

// All returns a snapshot slice of the currently registered conditions.
func (r *Registry) All() []*Condition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Condition, len(r.conds))
	copy(out, r.conds)
	return out
}

// AdjustSample changes by delta the trigger count of every registered
// query condition whose bit is set in qmask, for a single sample carrying
// that query mask (delta -1 when the sample is being removed, +1 when it
// is being added), without rescanning the cache. Read conditions are not
// touched: their per-instance accounting goes through AdjustInstance.
func (r *Registry) AdjustSample(qmask Mask, delta int64) {
	r.mu.Lock()
	conds := r.conds
	r.mu.Unlock()
	for _, c := range conds {
		if c.IsQuery() && qmask&c.Bit != 0 {
			c.adjust(delta)
		}
	}
}

// AdjustInstance updates every registered read condition's trigger count
// by delta, for an instance whose (view,instance) state is view/inst and
// whose match-or-not transitioned. Query conditions are unaffected: their
// trigger tracks samples, not instances.
func (r *Registry) AdjustInstance(view ViewStateMask, inst InstanceStateMask, delta int64) {
	r.mu.Lock()
	conds := r.conds
	r.mu.Unlock()
	for _, c := range conds {
		if !c.IsQuery() && c.MatchesInstance(view, inst) {
			c.adjust(delta)
		}
	}
}

// EvalMask computes the query-condition membership bitmask for a sample
// buffer against every currently registered query condition — used once
// at insertion, and recomputed for all existing samples of an instance
// when a new query condition is attached.
func (r *Registry) EvalMask(sample []byte) Mask {
	r.mu.Lock()
	conds := r.conds
	r.mu.Unlock()
	var m Mask
	for _, c := range conds {
		if c.IsQuery() && c.Filter(sample) {
			m |= c.Bit
		}
	}
	return m
}

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

// Package rhc implements the default Reader History Cache: a per-reader
// store of received samples organized by keyed instance, supporting DDS
// read/take with state masks and content/query conditions.
//
// Its locking and reference-counted-payload shape follows a familiar
// cache pattern: one mutex guards all bookkeeping, while the payload
// itself (rhcache.SerData) carries its own atomic refcount so Ref/Unref
// never need the cache lock — the same split a refcounted backing store
// makes between its own storage and the cache's sync.Mutex.
package rhc

import (
	"sync"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/condition"
	"github.com/rhcache/rhcache/tkmap"
	"github.com/rhcache/rhcache/wrset"
)

// Logger is satisfied by *log.Logger or any minimal printf-style logging
// interface; an RHC never requires one.
type Logger interface {
	Printf(f string, args ...interface{})
}

// counters mirror the invariant-checked totals of I1. They are updated
// incrementally at every documented mutation point; Recount recomputes
// them from scratch for the cross-check harness.
type counters struct {
	nInstances        int
	nNonEmpty         int
	nNotAliveDisposed int
	nNotAliveNoWriters int
	nNew              int
	nVSamples         int
	nVRead            int
	nInvSamples       int
	nInvRead          int
}

// RHC is the default Reader History Cache.
type RHC struct {
	mu sync.Mutex

	cfg    Config
	tk     *tkmap.Map
	entity any
	status rhcache.StatusCallback
	sched  rhcache.Scheduler
	logger Logger

	instances map[rhcache.IID]*instance
	ring      []rhcache.IID // non-empty instances, oldest-seen-first
	wr        wrset.Set     // live-writer set, empty in the common 1-writer case

	c counters

	conditions *condition.Registry

	lifespan       lifespanHeap
	lifespanCancel func()

	deadline       deadlineHeap
	deadlineCancel func()

	sampleLostCount int64
}

// New creates an RHC. entity is an opaque self-reference passed back
// through StatusCallback; tk is the shared TKMap instances of this cache's
// keys are registered against. sched may be nil, in which case
// rhcache.TimerScheduler{} is used.
func New(cfg Config, tk *tkmap.Map, entity any, status rhcache.StatusCallback, sched rhcache.Scheduler, logger Logger) *RHC {
	cfg.HistoryDepth = normalizeDepth(cfg.HistoryDepth)
	if sched == nil {
		sched = rhcache.TimerScheduler{}
	}
	r := &RHC{
		cfg:        cfg,
		tk:         tk,
		entity:     entity,
		status:     status,
		sched:      sched,
		logger:     logger,
		instances:  make(map[rhcache.IID]*instance),
		conditions: &condition.Registry{},
	}
	return r
}

func (r *RHC) errorf(f string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(f, args...)
	}
}

func (r *RHC) raise(id rhcache.StatusID, handle rhcache.IID, extra uint32, reason rhcache.RejectedReason) {
	if r.status == nil {
		return
	}
	r.status(r.entity, rhcache.StatusCbData{RawStatusID: id, Handle: handle, Extra: extra, Add: true, Reason: reason})
}

// Close releases the scheduler callbacks held by this RHC's lifespan and
// deadline heaps. It does not touch the shared TKMap.
func (r *RHC) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifespanCancel != nil {
		r.lifespanCancel()
	}
	if r.deadlineCancel != nil {
		r.deadlineCancel()
	}
}

// --- ring (non-empty instance iteration order) ---

func (r *RHC) ringAdd(in *instance) {
	in.ringPos = len(r.ring)
	r.ring = append(r.ring, in.iid)
}

func (r *RHC) ringRemove(in *instance) {
	pos := in.ringPos
	if pos < 0 || pos >= len(r.ring) {
		return
	}
	r.ring = append(r.ring[:pos], r.ring[pos+1:]...)
	for i := pos; i < len(r.ring); i++ {
		r.instances[r.ring[i]].ringPos = i
	}
	in.ringPos = -1
}

// --- instance classification bookkeeping ---

type instSnap struct {
	empty    bool
	disposed bool
	noWrite  bool
	isNew    bool
}

func snapshot(in *instance) instSnap {
	return instSnap{
		empty:    in.empty(),
		disposed: in.isDisposed,
		noWrite:  in.wrCount == 0,
		isNew:    in.isNew,
	}
}

// commit reconciles RHC-level bookkeeping (ring membership, classification
// counters, read/query condition triggers) between a before/after pair of
// instance snapshots, updating counts incrementally rather than
// rescanning the whole cache.
//
// dropIfEmpty additionally removes the instance from the map (and TKMap
// unref) when it ends up empty with no registered writers.
func (r *RHC) commit(in *instance, before instSnap, dropIfEmpty bool) {
	after := snapshot(in)

	beforeView, afterView := condition.Old, condition.Old
	if before.isNew {
		beforeView = condition.New
	}
	if after.isNew {
		afterView = condition.New
	}
	beforeState := classify(before)
	afterState := classify(after)

	if !before.empty && (beforeView != afterView || beforeState != afterState) {
		r.conditions.AdjustInstance(beforeView, beforeState, -1)
	}

	switch {
	case before.empty && !after.empty:
		r.ringAdd(in)
		r.c.nNonEmpty++
	case !before.empty && after.empty:
		r.ringRemove(in)
		r.c.nNonEmpty--
	}

	if before.disposed != after.disposed {
		if after.disposed {
			r.c.nNotAliveDisposed++
		} else {
			r.c.nNotAliveDisposed--
		}
	}
	if before.noWrite != after.noWrite {
		if after.noWrite {
			r.c.nNotAliveNoWriters++
		} else {
			r.c.nNotAliveNoWriters--
		}
	}
	if before.isNew != after.isNew {
		if after.isNew {
			r.c.nNew++
		} else {
			r.c.nNew--
		}
	}

	if !after.empty && (beforeView != afterView || beforeState != afterState || (before.empty && !after.empty)) {
		r.conditions.AdjustInstance(afterView, afterState, +1)
	}

	if dropIfEmpty && after.empty && in.wrCount == 0 {
		r.dropInstance(in)
	}
}

func classify(s instSnap) condition.InstanceStateMask {
	switch {
	case s.disposed:
		return condition.NotAliveDisposed
	case s.noWrite:
		return condition.NotAliveNoWriters
	default:
		return condition.Alive
	}
}

func (r *RHC) dropInstance(in *instance) {
	delete(r.instances, in.iid)
	r.c.nInstances--
	if in.isDisposed {
		r.c.nNotAliveDisposed--
	}
	if in.wrCount == 0 {
		r.c.nNotAliveNoWriters--
	}
	if in.isNew {
		r.c.nNew--
	}
	in.tk.Unref()
}

// Recount recomputes every I1 counter from scratch by walking all
// instances and samples, for use by tests / the periodic cross-check
// harness. It does not mutate any live state.
func (r *RHC) Recount() (live counters) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.instances {
		live.nInstances++
		if !in.empty() {
			live.nNonEmpty++
		}
		if in.isDisposed {
			live.nNotAliveDisposed++
		}
		if in.wrCount == 0 {
			live.nNotAliveNoWriters++
		}
		if in.isNew && !in.empty() {
			live.nNew++
		}
		live.nVSamples += in.nvsamples
		live.nVRead += in.nvread
		if in.invExists {
			live.nInvSamples++
			if in.invIsRead {
				live.nInvRead++
			}
		}
	}
	return live
}

// Counters exposes the incrementally-maintained totals for comparison
// against Recount() in tests.
func (r *RHC) Counters() (nInstances, nNonEmpty, nDisposed, nNoWriters, nNew, nVSamples, nVRead, nInvSamples, nInvRead int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.c
	return c.nInstances, c.nNonEmpty, c.nNotAliveDisposed, c.nNotAliveNoWriters, c.nNew, c.nVSamples, c.nVRead, c.nInvSamples, c.nInvRead
}

// SampleLostCount reports the number of times SAMPLE_LOST has fired.
func (r *RHC) SampleLostCount() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sampleLostCount
}

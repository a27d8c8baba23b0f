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
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/condition"
	"github.com/rhcache/rhcache/tkmap"
	"github.com/rhcache/rhcache/wrset"
)

// instance is one RHC instance: the per-key bookkeeping shared by
// every sample of that key.
type instance struct {
	iid rhcache.IID
	tk  *tkmap.Instance

	// samples holds valid samples oldest-to-newest; "latest" is
	// samples[len(samples)-1].
	samples   []*sample
	nvsamples int
	nvread    int

	invExists bool
	invIsRead bool
	invQMask  condition.Mask

	isNew       bool
	isDisposed  bool
	autoDispose bool

	wrCount   int
	wrIID     rhcache.IID
	wrGUID    [16]byte
	wrIIDLive bool
	strength  int32

	disposedGen  uint32
	noWritersGen uint32

	tstamp time.Time

	// deadline bookkeeping
	nextDeadline    time.Time
	deadlinesMissed uint32
	hasDeadline     bool

	// ring is this instance's slot in the RHC's non-empty-instance
	// iteration order; -1 when not present (empty instance).
	ringPos int
}

func newInstance(iid rhcache.IID, tk *tkmap.Instance) *instance {
	return &instance{
		iid:     iid,
		tk:      tk,
		samples: make([]*sample, 0, 1), // common KEEP_LAST(1) case needs no growth
		ringPos: -1,
	}
}

// empty reports whether the instance holds no valid samples and no
// pending invalid-sample slot.
func (in *instance) empty() bool {
	return in.nvsamples == 0 && !in.invExists
}

func (in *instance) viewState() condition.ViewStateMask {
	if in.isNew {
		return condition.New
	}
	return condition.Old
}

func (in *instance) instanceState() condition.InstanceStateMask {
	switch {
	case in.isDisposed:
		return condition.NotAliveDisposed
	case in.wrCount == 0:
		return condition.NotAliveNoWriters
	default:
		return condition.Alive
	}
}

// latest returns the newest valid sample, or nil.
func (in *instance) latest() *sample {
	if len(in.samples) == 0 {
		return nil
	}
	return in.samples[len(in.samples)-1]
}

// hasUnreadLatest reports whether the newest valid sample (if any) is
// still NOT_READ; used to decide whether a dispose/unregister needs to
// install the invalid slot.
func (in *instance) hasUnreadLatest() bool {
	s := in.latest()
	return s != nil && !s.isRead
}

// registerWriter applies registration bookkeeping for writer w
// newly observed on instance in. Returns true iff w was not already a
// registered writer of in (a "true new writer", which propagates
// autoDispose and bumps wrCount).
func (in *instance) registerWriter(w rhcache.IID, guid [16]byte, autoDispose bool, wr *wrset.Set) bool {
	// fast path: w is already the cached sole writer.
	if in.wrIIDLive && in.wrIID == w {
		return false
	}
	if in.wrCount == 0 {
		if in.wrIID != rhcache.NilIID {
			in.noWritersGen++ // a writer rejoining bumps the generation lazily
		}
		in.wrIID = w
		in.wrGUID = guid
		in.wrIIDLive = true
		in.wrCount = 1
		in.autoDispose = autoDispose
		return true
	}
	if in.wrCount == 1 && !in.wrIIDLive && wr.Contains(in.iid, w) {
		// post-unregister transient: w is the sole remaining writer and
		// sits in the live-writer set; move it back into the cache.
		wr.Delete(in.iid, w)
		in.wrIID = w
		in.wrGUID = guid
		in.wrIIDLive = true
		return false
	}
	// general case: add to the live-writer set if new.
	if wr.Contains(in.iid, w) {
		return false
	}
	wr.Add(in.iid, w)
	in.wrCount++
	in.autoDispose = in.autoDispose || autoDispose
	return true
}

// unregisterResult reports the outcome of unregisterWriter.
type unregisterResult struct {
	wasRegistered   bool
	becameNoWriters bool
}

// unregisterWriter applies unregister bookkeeping.
func (in *instance) unregisterWriter(w rhcache.IID, wr *wrset.Set) unregisterResult {
	switch {
	case in.wrIIDLive && in.wrIID == w:
		in.wrIIDLive = false
		in.wrCount--
		if in.wrCount == 0 {
			return unregisterResult{wasRegistered: true, becameNoWriters: true}
		}
		// others remain in the live-writer set; nothing to promote
		// automatically ("otherwise just drop the pair").
		return unregisterResult{wasRegistered: true}
	case wr.Contains(in.iid, w):
		wr.Delete(in.iid, w)
		in.wrCount--
		if in.wrCount == 1 && wr.CountInstance(in.iid) == 0 && in.wrIIDLive {
			// only the cached writer remains; nothing further to do.
		}
		if in.wrCount == 0 {
			return unregisterResult{wasRegistered: true, becameNoWriters: true}
		}
		return unregisterResult{wasRegistered: true}
	default:
		return unregisterResult{}
	}
}

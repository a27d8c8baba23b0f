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
	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/condition"
	"github.com/rhcache/rhcache/tkmap"
)

// Store resolves/creates the instance, applies the
// acceptance predicate, register the writer, update view/disposed state,
// append the sample (enforcing history_depth / max_samples /
// max_samples_per_instance), and apply the unregister step if the
// statusinfo bit is set.
//
// tk must already be referenced on the caller's behalf (e.g. freshly
// returned by tkmap.Map.Find(sd, true)); Store takes its own long-lived
// reference when it decides to create a new instance, and the caller
// remains responsible for releasing its own reference afterward.
func (r *RHC) Store(w rhcache.WriterInfo, sd rhcache.SerData, tk *tkmap.Instance) (delivered bool, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, existed := r.instances[tk.IID()]
	isNewInstance := !existed
	if !existed {
		if r.cfg.MaxInstances >= 0 && len(r.instances) >= r.cfg.MaxInstances {
			r.raise(rhcache.SampleRejected, tk.IID(), 0, rhcache.RejectedByInstancesLimit)
			return !r.cfg.Reliable, Rejected
		}
		if r.cfg.KeyFilter != nil && r.cfg.Sertype != nil {
			buf := r.cfg.Sertype.Alloc()
			err := sd.UntypedToSample(buf)
			ok := err == nil && r.cfg.KeyFilter(buf)
			r.cfg.Sertype.Free(buf)
			if !ok {
				return true, Filtered
			}
		}
		tk.Ref()
		in = newInstance(tk.IID(), tk)
		r.instances[tk.IID()] = in
		r.c.nInstances++
		r.c.nNotAliveNoWriters++ // no writer is registered yet
	}

	if sd.Kind() == rhcache.KindKey {
		return r.storeKeyOnly(in, w, sd)
	}
	return r.storeData(in, isNewInstance, w, sd)
}

func (r *RHC) storeData(in *instance, isNewInstance bool, w rhcache.WriterInfo, sd rhcache.SerData) (bool, Outcome) {
	before := snapshot(in)

	if !r.accepts(in, w, sd) {
		r.registerWriterForStore(in, w)
		if before.disposed || before.noWrite {
			in.isNew = true
		}
		r.commit(in, before, true)
		r.sampleLostCount++
		r.raise(rhcache.SampleLost, in.iid, 0, rhcache.RejectedNone)
		return true, Filtered
	}

	r.registerWriterForStore(in, w)
	if before.disposed || before.noWrite {
		in.isNew = true
	}
	if sd.StatusInfo()&rhcache.StatusDispose != 0 {
		// write_dispose: a dispose bit on an already-disposed instance
		// just bumps the generation; on a fresh instance it only sets
		// isDisposed, with no bump (the bump is reserved for the write
		// that later resolves a disposal).
		if in.isDisposed {
			in.disposedGen++
		} else {
			in.isDisposed = true
		}
	} else if in.isDisposed {
		in.isDisposed = false
		in.disposedGen++
	}
	in.tstamp = sd.Timestamp()
	if in.wrIIDLive && in.wrIID == w.IID {
		in.strength = w.OwnershipStrength
	}
	if r.cfg.Deadline > 0 {
		r.armDeadline(in, sd.Timestamp())
	}

	s := newSample(sd, w.IID, sd.Timestamp(), in.disposedGen, in.noWritersGen)
	s.qmask = r.evalQMask(sd)
	if w.LifespanExpire > 0 {
		s.hasExpiry = true
		s.expire = sd.Timestamp().Add(w.LifespanExpire)
	}

	in.samples = append(in.samples, s)
	in.nvsamples++
	r.c.nVSamples++
	if s.qmask != 0 {
		r.conditions.AdjustSample(s.qmask, +1)
	}
	r.dropInvalid(in)
	r.registerLifespan(in, s)

	if r.cfg.HistoryDepth != KeepAllDepth && uint32(len(in.samples)) > r.cfg.HistoryDepth {
		r.removeSampleAt(in, 0)
	}

	overLimit := (r.cfg.MaxSamplesPerInstance >= 0 && in.nvsamples > r.cfg.MaxSamplesPerInstance) ||
		(r.cfg.MaxSamples >= 0 && r.c.nVSamples > r.cfg.MaxSamples)
	if overLimit {
		reason := rhcache.RejectedBySamplesPerInstanceLimit
		if r.cfg.MaxSamples >= 0 && r.c.nVSamples > r.cfg.MaxSamples {
			reason = rhcache.RejectedBySamplesLimit
		}
		// undo the just-appended sample (it is always the newest one
		// still present, since history_depth trimming above only ever
		// removes the oldest).
		r.removeSampleAt(in, len(in.samples)-1)
		r.commit(in, before, true)
		r.raise(rhcache.SampleRejected, in.iid, 0, reason)
		return !r.cfg.Reliable, Rejected
	}

	if sd.StatusInfo()&rhcache.StatusUnregister != 0 {
		r.applyUnregister(in, w.IID)
	}

	r.commit(in, before, true)
	return true, Stored
}

func (r *RHC) storeKeyOnly(in *instance, w rhcache.WriterInfo, sd rhcache.SerData) (bool, Outcome) {
	before := snapshot(in)
	status := sd.StatusInfo()

	r.registerWriterForStore(in, w)
	if before.disposed || before.noWrite {
		in.isNew = true
	}

	if status&rhcache.StatusDispose != 0 {
		r.applyDispose(in)
	}
	if status&rhcache.StatusUnregister != 0 {
		r.applyUnregister(in, w.IID)
	}

	r.commit(in, before, true)
	return true, Stored
}

// registerWriterForStore registers w on in, adjusting w's autodispose
// flag into the instance.
func (r *RHC) registerWriterForStore(in *instance, w rhcache.WriterInfo) bool {
	return in.registerWriter(w.IID, w.GUID, w.AutoDispose, &r.wr)
}

// applyDispose toggles the disposed flag and installs the invalid slot if
// the latest sample was already read (or none exist).
func (r *RHC) applyDispose(in *instance) {
	if in.isDisposed {
		return
	}
	in.isDisposed = true
	if !in.hasUnreadLatest() {
		r.installInvalid(in)
	}
}

// applyUnregister applies unregister bookkeeping, possibly
// followed by an autodispose.
func (r *RHC) applyUnregister(in *instance, w rhcache.IID) {
	res := in.unregisterWriter(w, &r.wr)
	if !res.wasRegistered {
		return
	}
	if res.becameNoWriters {
		if !in.isDisposed {
			r.installInvalid(in)
		}
		if in.autoDispose && !in.isDisposed {
			in.isDisposed = true
			r.installInvalid(in)
		}
	}
}

// installInvalid installs the one-bit invalid slot: an arriving
// real sample always clears it (dropInvalid), so a dispose/unregister is
// observable exactly once.
func (r *RHC) installInvalid(in *instance) {
	if in.invExists {
		if in.invIsRead {
			r.c.nInvRead--
		}
		if in.invQMask != 0 {
			r.conditions.AdjustSample(in.invQMask, -1)
		}
	} else {
		r.c.nInvSamples++
	}
	in.invExists = true
	in.invIsRead = false
	in.invQMask = r.evalInvalidQMask(in)
	if in.invQMask != 0 {
		r.conditions.AdjustSample(in.invQMask, +1)
	}
}

func (r *RHC) dropInvalid(in *instance) {
	if !in.invExists {
		return
	}
	if in.invIsRead {
		r.c.nInvRead--
	}
	r.c.nInvSamples--
	if in.invQMask != 0 {
		r.conditions.AdjustSample(in.invQMask, -1)
	}
	in.invExists = false
	in.invIsRead = false
	in.invQMask = 0
}

// accepts implements acceptance predicate: source-ordering-ok AND
// time-filter-ok AND ownership-ok AND content-filter-ok.
func (r *RHC) accepts(in *instance, w rhcache.WriterInfo, sd rhcache.SerData) bool {
	ts := sd.Timestamp()
	if r.cfg.BySourceOrdering && !in.tstamp.IsZero() {
		if ts.Before(in.tstamp) {
			return false
		}
		if ts.Equal(in.tstamp) && !rhcache.GUIDLess(w.GUID, in.wrGUID) {
			return false
		}
	}
	if r.cfg.MinimumSeparation > 0 && !in.tstamp.IsZero() && ts.Sub(in.tstamp) < r.cfg.MinimumSeparation {
		return false
	}
	if r.cfg.ExclusiveOwnership && in.wrIIDLive {
		if in.strength > w.OwnershipStrength {
			return false
		}
		if in.strength == w.OwnershipStrength && in.wrIID != w.IID && !rhcache.GUIDLess(w.GUID, in.wrGUID) {
			return false
		}
	}
	if r.cfg.ContentFilter != nil && r.cfg.Sertype != nil {
		buf := r.cfg.Sertype.Alloc()
		defer r.cfg.Sertype.Free(buf)
		if err := sd.ToSample(buf); err == nil && !r.cfg.ContentFilter(buf) {
			return false
		}
	}
	return true
}

func (r *RHC) evalQMask(sd rhcache.SerData) (mask condition.Mask) {
	if r.cfg.Sertype == nil {
		return 0
	}
	buf := r.cfg.Sertype.Alloc()
	defer r.cfg.Sertype.Free(buf)
	if err := sd.ToSample(buf); err != nil {
		return 0
	}
	return r.conditions.EvalMask(buf)
}

func (r *RHC) evalInvalidQMask(in *instance) condition.Mask {
	if r.cfg.Sertype == nil {
		return 0
	}
	buf := r.cfg.Sertype.Alloc()
	defer r.cfg.Sertype.Free(buf)
	if err := in.tk.KeySample().UntypedToSample(buf); err != nil {
		return 0
	}
	return r.conditions.EvalMask(buf)
}

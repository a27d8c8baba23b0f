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
)

// Selector scopes a Read/Take call to instances/samples matching these
// state masks and, for a query condition, its attached filter.
type Selector struct {
	SampleStates   condition.SampleStateMask
	ViewStates     condition.ViewStateMask
	InstanceStates condition.InstanceStateMask

	// Cond, if non-nil, additionally scopes to a single attached
	// condition's criteria (its own state masks, ANDed with the ones
	// above, plus its query filter if it is a query condition).
	Cond *condition.Condition
}

func (sel Selector) matchesInstance(view condition.ViewStateMask, inst condition.InstanceStateMask) bool {
	if sel.ViewStates&view == 0 || sel.InstanceStates&inst == 0 {
		return false
	}
	if sel.Cond != nil && !sel.Cond.MatchesInstance(view, inst) {
		return false
	}
	return true
}

func (sel Selector) matchesSample(ss condition.SampleStateMask, qmask condition.Mask) bool {
	if sel.SampleStates&ss == 0 {
		return false
	}
	if sel.Cond != nil {
		if !sel.Cond.MatchesSampleState(ss) {
			return false
		}
		if sel.Cond.IsQuery() && qmask&sel.Cond.Bit == 0 {
			return false
		}
	}
	return true
}

// Read returns every matching sample (valid and invalid) without removing
// anything, marking returned valid samples READ and their instances OLD.
// maxSamples <= 0 means unlimited.
func (r *RHC) Read(sel Selector, maxSamples int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traverse(sel, maxSamples, false)
}

// Take behaves like Read but additionally removes every returned sample
// (and clears a returned invalid slot) from the cache.
func (r *RHC) Take(sel Selector, maxSamples int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traverse(sel, maxSamples, true)
}

// ReadCdr scopes a Read to a single instance, for keyed/"next_instance"
// access patterns; handle must be a key this RHC currently holds.
func (r *RHC) ReadCdr(handle rhcache.IID, sel Selector, maxSamples int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traverseOne(handle, sel, maxSamples, false)
}

// TakeCdr is ReadCdr's take counterpart.
func (r *RHC) TakeCdr(handle rhcache.IID, sel Selector, maxSamples int) []Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.traverseOne(handle, sel, maxSamples, true)
}

// traverse walks the ring of non-empty instances oldest-seen-first,
// exactly the order a DDS read/take presents results in.
func (r *RHC) traverse(sel Selector, maxSamples int, take bool) []Sample {
	var out []Sample
	for _, iid := range append([]rhcache.IID(nil), r.ring...) {
		in := r.instances[iid]
		if in == nil {
			continue
		}
		out = r.collectInstance(in, sel, maxSamples, take, out)
		if maxSamples > 0 && len(out) >= maxSamples {
			break
		}
	}
	return out
}

func (r *RHC) traverseOne(handle rhcache.IID, sel Selector, maxSamples int, take bool) []Sample {
	in := r.instances[handle]
	if in == nil {
		return nil
	}
	return r.collectInstance(in, sel, maxSamples, take, nil)
}

// collectInstance appends in's matching samples to out
// per-instance rank computation: sample_rank counts newer matching samples
// of the SAME read; generation_rank and absolute_generation_rank compare
// against the instance's generation counters at call time vs. at the most
// recent sample.
func (r *RHC) collectInstance(in *instance, sel Selector, maxSamples int, take bool, out []Sample) []Sample {
	view := in.viewState()
	inst := in.instanceState()
	if !sel.matchesInstance(view, inst) {
		return out
	}

	before := snapshot(in)
	start := len(out)

	mostRecentGen := in.disposedGen + in.noWritersGen
	if len(in.samples) > 0 {
		mostRecentGen = in.samples[len(in.samples)-1].disposedGen + in.samples[len(in.samples)-1].noWritersGen
	}

	var toRemove []int
	for i, s := range in.samples {
		ss := s.sampleStateMask()
		if !sel.matchesSample(ss, s.qmask) {
			continue
		}
		if maxSamples > 0 && len(out) >= maxSamples {
			break
		}
		sampleGen := s.disposedGen + s.noWritersGen
		out = append(out, Sample{
			Info: SampleInfo{
				SampleState:              ss,
				ViewState:                view,
				InstanceState:            inst,
				ValidData:                true,
				SourceTimestamp:          s.ts,
				InstanceHandle:           in.iid,
				PublicationHandle:        s.writer,
				DisposedGenerationCount:  s.disposedGen,
				NoWritersGenerationCount: s.noWritersGen,
				GenerationRank:           int(mostRecentGen - sampleGen),
				AbsoluteGenerationRank:   int((in.disposedGen + in.noWritersGen) - sampleGen),
			},
			// Ref so the caller owns an independent reference: removeSampleAt
			// (take) or a later overwrite/expiry (read) both Unref the
			// cache's own copy regardless of what this call returns.
			Data: s.sd.Ref(),
		})
		if !take {
			if !s.isRead {
				s.isRead = true
				in.nvread++
				r.c.nVRead++
			}
		} else {
			toRemove = append(toRemove, i)
		}
	}

	if sel.matchesInstance(view, inst) && in.invExists {
		invSS := condition.NotRead
		if in.invIsRead {
			invSS = condition.Read
		}
		if sel.matchesSample(invSS, in.invQMask) && (maxSamples <= 0 || len(out) < maxSamples) {
			out = append(out, Sample{
				Info: SampleInfo{
					SampleState:              invSS,
					ViewState:                view,
					InstanceState:            inst,
					ValidData:                false,
					InstanceHandle:           in.iid,
					DisposedGenerationCount:  in.disposedGen,
					NoWritersGenerationCount: in.noWritersGen,
				},
			})
			if !take {
				if !in.invIsRead {
					in.invIsRead = true
					r.c.nInvRead++
				}
			} else {
				r.dropInvalid(in)
			}
		}
	}

	// sample_rank counts newer matching samples from this same call
	//; out is oldest-to-newest, so the last entry ranks 0.
	for idx := start; idx < len(out); idx++ {
		out[idx].Info.SampleRank = (len(out) - 1) - idx
	}

	if take {
		for j := len(toRemove) - 1; j >= 0; j-- {
			r.removeSampleAt(in, toRemove[j])
		}
		in.isNew = false
		r.commit(in, before, true)
	} else if in.isNew && len(out) > start {
		in.isNew = false
		r.commit(in, before, false)
	}

	return out
}

// AddReadCondition registers c (a plain read condition or a query
// condition) against this RHC. A query condition's filter is evaluated
// against every currently-stored sample (valid and invalid) so its
// per-sample qmask bit is correct from this point forward; either kind's
// trigger count is seeded from the cache's current matching state, since
// the incremental Adjust* calls only cover state changes after this call.
func (r *RHC) AddReadCondition(c *condition.Condition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conditions.Add(c); err != nil {
		r.errorf("rhc: AddReadCondition: %v", err)
		return err
	}

	var n int64
	if !c.IsQuery() {
		for _, in := range r.instances {
			if !in.empty() && c.MatchesInstance(in.viewState(), in.instanceState()) {
				n++
			}
		}
		c.Seed(n)
		return nil
	}

	for _, in := range r.instances {
		for _, s := range in.samples {
			if r.evalOneCondition(c, s.sd) {
				s.qmask |= c.Bit
				n++
			}
		}
		if in.invExists && r.evalOneConditionKey(c, in) {
			in.invQMask |= c.Bit
			n++
		}
	}
	c.Seed(n)
	return nil
}

// RemoveReadCondition detaches c.
func (r *RHC) RemoveReadCondition(c *condition.Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions.Remove(c)
}

func (r *RHC) evalOneCondition(c *condition.Condition, sd rhcache.SerData) bool {
	if r.cfg.Sertype == nil {
		return false
	}
	buf := r.cfg.Sertype.Alloc()
	defer r.cfg.Sertype.Free(buf)
	if err := sd.ToSample(buf); err != nil {
		return false
	}
	return c.Filter(buf)
}

func (r *RHC) evalOneConditionKey(c *condition.Condition, in *instance) bool {
	if r.cfg.Sertype == nil {
		return false
	}
	buf := r.cfg.Sertype.Alloc()
	defer r.cfg.Sertype.Free(buf)
	if err := in.tk.KeySample().UntypedToSample(buf); err != nil {
		return false
	}
	return c.Filter(buf)
}

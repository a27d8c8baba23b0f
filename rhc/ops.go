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

import "github.com/rhcache/rhcache"

// UnregisterWriter applies the protocol-level writer-liveliness-lost event
// (distinct from a key-only Store carrying StatusUnregister — this is the
// out-of-band path used when a writer drops out of the domain without
// sending an explicit unregister sample, e.g. on participant loss) to
// every instance currently registered to writer w.
func (r *RHC) UnregisterWriter(w rhcache.IID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.instances {
		before := snapshot(in)
		r.applyUnregister(in, w)
		r.commit(in, before, true)
	}
}

// RelinquishOwnership clears writer w's cached EXCLUSIVE-ownership state on
// every instance it currently owns, without unregistering it, so the next
// accepted sample from any writer re-establishes ownership from scratch
// (used when a writer's strength changes so drastically that stale
// cached-owner comparisons would otherwise block acceptance).
func (r *RHC) RelinquishOwnership(w rhcache.IID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.instances {
		if in.wrIIDLive && in.wrIID == w {
			in.strength = 0
		}
	}
}

// SetQos updates this RHC's resource-limit and behavioral QoS in place.
// HistoryDepth, MaxInstances, MaxSamples, and MaxSamplesPerInstance
// tightening is NOT retroactively enforced against samples already
// stored; only newly-stored samples observe the new limits. Deadline
// changes re-arm every instance's pending deadline check from that
// instance's last update timestamp.
func (r *RHC) SetQos(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.HistoryDepth = normalizeDepth(cfg.HistoryDepth)
	oldDeadline := r.cfg.Deadline
	r.cfg = cfg
	if cfg.Deadline != oldDeadline {
		for _, in := range r.instances {
			if cfg.Deadline <= 0 {
				in.hasDeadline = false
				continue
			}
			r.armDeadline(in, in.tstamp)
		}
	}
}

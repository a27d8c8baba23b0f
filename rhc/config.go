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

import "time"

// KeepAllDepth is the sentinel HistoryDepth value meaning KEEP_ALL (stored
// internally as ^uint32(0)).
const KeepAllDepth = ^uint32(0)

// Unlimited is the sentinel for resource-limit QoS fields (MaxInstances,
// MaxSamples, MaxSamplesPerInstance) meaning "no limit".
const Unlimited = -1

// Config captures the QoS-derived configuration of one RHC.
type Config struct {
	// HistoryDepth is 0 for KEEP_ALL (normalized to KeepAllDepth
	// internally by New), otherwise the KEEP_LAST depth.
	HistoryDepth uint32
	// MaxInstances, MaxSamples, MaxSamplesPerInstance are resource limits;
	// Unlimited (-1) means no limit.
	MaxInstances          int
	MaxSamples            int
	MaxSamplesPerInstance int
	// MinimumSeparation is the time-based-filter minimum separation
	// between accepted samples of the same instance; zero disables the
	// filter.
	MinimumSeparation time.Duration
	// BySourceOrdering enables BY_SOURCE_TIMESTAMP ordering;
	// false means arrival order (BY_RECEPTION_TIMESTAMP).
	BySourceOrdering bool
	// ExclusiveOwnership enables EXCLUSIVE ownership QoS.
	ExclusiveOwnership bool
	// Reliable mirrors the RELIABILITY QoS; governs whether a REJECTED
	// store reports delivered=false.
	Reliable bool
	// Deadline is this reader's DEADLINE QoS period; zero means no
	// deadline monitoring.
	Deadline time.Duration

	// ContentFilter, if non-nil, is evaluated against a deserialized
	// sample buffer at most once per sample and governs
	// acceptance (never registration). KeyFilter, if non-nil, is
	// evaluated against a key-only buffer and governs whether a brand
	// new instance is even created (step 2).
	ContentFilter func(sample []byte) bool
	KeyFilter     func(key []byte) bool

	// Sertype allocates/frees the buffers ContentFilter/KeyFilter and
	// query-condition filters are evaluated against.
	Sertype SertypeAllocator
}

// SertypeAllocator is the subset of rhcache.Sertype the RHC needs.
type SertypeAllocator interface {
	Alloc() []byte
	Free(buf []byte)
}

func normalizeDepth(d uint32) uint32 {
	if d == 0 {
		return KeepAllDepth
	}
	return d
}

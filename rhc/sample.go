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
)

// sample is one stored RHC sample. Samples form an oldest-to-newest
// sequence inside their instance; the instance itself owns the ordering
// (a plain slice, see instance.go), so sample carries no prev/next links
// of its own — unlike the source's intrusive circular list, Go's slice
// already gives us cheap oldest/newest access without manual pointer
// surgery.
type sample struct {
	sd     rhcache.SerData
	ts     time.Time
	writer rhcache.IID
	isRead bool

	disposedGen  uint32
	noWritersGen uint32

	qmask condition.Mask

	hasExpiry bool
	expire    time.Time
	// removed is flipped to true the instant this sample leaves its
	// instance (read-take, overwrite, or lifespan expiry). A stale
	// lifespan-heap entry checks this flag instead of being eagerly
	// removed from the heap, since the heap package has no by-pointer
	// delete; see lifespan.go.
	removed bool
}

func newSample(sd rhcache.SerData, writer rhcache.IID, ts time.Time, gen uint32, noWrGen uint32) *sample {
	return &sample{
		sd:           sd.Ref(),
		ts:           ts,
		writer:       writer,
		disposedGen:  gen,
		noWritersGen: noWrGen,
	}
}

func (s *sample) release() {
	s.sd.Unref()
}

func (s *sample) sampleStateMask() condition.SampleStateMask {
	if s.isRead {
		return condition.Read
	}
	return condition.NotRead
}

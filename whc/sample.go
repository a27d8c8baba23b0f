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

package whc

import (
	"time"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/tkmap"
)

// wsample is one stored WHC sample, addressable by sequence number.
type wsample struct {
	seq rhcache.SeqNum
	sd  rhcache.SerData
	tk  *tkmap.Instance
	ts  time.Time

	hasExpiry bool
	expire    time.Time

	unacked  bool
	borrowed bool
	// removed is set the instant the sample leaves the seq order (acked
	// pruning, overwrite, lifespan expiry); a borrowed-but-removed sample
	// defers its Unref until ReturnSample.
	removed bool
}

func newWsample(seq rhcache.SeqNum, sd rhcache.SerData, tk *tkmap.Instance, expire time.Time, hasExpiry bool) *wsample {
	return &wsample{
		seq:       seq,
		sd:        sd.Ref(),
		tk:        tk,
		ts:        sd.Timestamp(),
		hasExpiry: hasExpiry,
		expire:    expire,
		unacked:   true,
	}
}

func (s *wsample) release() {
	if s.borrowed {
		// defer: ReturnSample will Unref once the borrower is done.
		return
	}
	s.sd.Unref()
}

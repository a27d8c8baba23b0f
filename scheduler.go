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

package rhcache

import "time"

// Scheduler lets a cache arrange for a callback to run at a monotonic-time
// point ("Event scheduler"). The callback re-enters the cache under its
// own lock and returns the next time it should be called again (or the
// zero Time to not be re-armed); re-arming therefore always happens while
// still holding the lock.
type Scheduler interface {
	// Schedule arranges for cb to run at (or soon after) at. Calling the
	// returned cancel function guarantees cb will not run afterward,
	// unless it has already started.
	Schedule(at time.Time, cb func(now time.Time) time.Time) (cancel func())
}

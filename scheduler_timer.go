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

// TimerScheduler is a Scheduler backed by time.AfterFunc. It is the
// default used by rhc.New/whc.New when the caller doesn't supply one of its
// own (e.g. a simulated-clock scheduler for deterministic tests).
type TimerScheduler struct{}

// Schedule implements Scheduler.
func (TimerScheduler) Schedule(at time.Time, cb func(now time.Time) time.Time) func() {
	var timer *time.Timer
	var fire func(time.Time)
	fire = func(now time.Time) {
		next := cb(now)
		if next.IsZero() {
			return
		}
		d := time.Until(next)
		if d < 0 {
			d = 0
		}
		timer = time.AfterFunc(d, func() { fire(time.Now()) })
	}
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	timer = time.AfterFunc(d, func() { fire(time.Now()) })
	return func() {
		if timer != nil {
			timer.Stop()
		}
	}
}

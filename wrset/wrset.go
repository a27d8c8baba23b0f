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

// Package wrset implements a lightweight (instance-IID, writer-IID)
// registration set. It is kept empty in the common single-writer-per-instance
// case by the RHC instance itself (which caches the sole writer directly);
// this set holds entries for an instance only once it has two or more live
// writers, or while one writer remains after the cached writer unregistered.
package wrset

import "github.com/rhcache/rhcache"

type key struct {
	inst, wr rhcache.IID
}

// Set is a hash set of (instance, writer) pairs. The zero value is a
// valid, empty set that allocates its backing map lazily on first use,
// favoring a lazily-initialized map over pre-sizing for a case that is
// usually empty.
type Set struct {
	m map[key]struct{}
}

// Contains reports whether (inst, wr) is a member.
func (s *Set) Contains(inst, wr rhcache.IID) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m[key{inst, wr}]
	return ok
}

// Add inserts (inst, wr), reporting whether it was newly added (false if
// already present).
func (s *Set) Add(inst, wr rhcache.IID) bool {
	if s.m == nil {
		s.m = make(map[key]struct{})
	}
	k := key{inst, wr}
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = struct{}{}
	return true
}

// Delete removes (inst, wr), reporting whether it had been present.
func (s *Set) Delete(inst, wr rhcache.IID) bool {
	if s.m == nil {
		return false
	}
	k := key{inst, wr}
	if _, ok := s.m[k]; !ok {
		return false
	}
	delete(s.m, k)
	return true
}

// CountInstance reports the number of writers currently registered for
// inst via this set (i.e. excluding any writer cached directly by the
// owning RHC instance).
func (s *Set) CountInstance(inst rhcache.IID) int {
	if s.m == nil {
		return 0
	}
	n := 0
	for k := range s.m {
		if k.inst == inst {
			n++
		}
	}
	return n
}

// DeleteInstance removes every entry for inst, e.g. when the instance is
// dropped.
func (s *Set) DeleteInstance(inst rhcache.IID) {
	if s.m == nil {
		return
	}
	for k := range s.m {
		if k.inst == inst {
			delete(s.m, k)
		}
	}
}

// Len reports the total number of (instance, writer) pairs held.
func (s *Set) Len() int { return len(s.m) }

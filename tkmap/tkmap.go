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

// Package tkmap implements the Topic-Key Map: a process-wide table
// mapping a serialized key's fingerprint to a reference-counted instance
// handle shared by every RHC/WHC holding samples of that key.
//
// Lookup by fingerprint uses github.com/dchest/siphash the way a
// content-addressed cache keys entries by an ETag string: here the
// "ETag" is a 64-bit SipHash of the key bytes rather than a
// caller-supplied string, because TKMap has to derive its own fingerprint
// from arbitrary key encodings instead of trusting a pre-computed tag.
package tkmap

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/dchest/siphash"
	"golang.org/x/exp/maps"

	"github.com/rhcache/rhcache"
)

// Instance is a TKMap entry: an IID, a key-only serialized datum used to
// synthesize invalid samples, and a reference count.
type Instance struct {
	iid    rhcache.IID
	fp     uint64
	keySD  rhcache.SerData
	refc   int32 // atomic
	parent *Map
}

// IID returns the instance identifier.
func (in *Instance) IID() rhcache.IID { return in.iid }

// KeySample returns the key-only serialized datum backing this instance,
// used to synthesize invalid samples that carry only the key.
func (in *Instance) KeySample() rhcache.SerData { return in.keySD }

// Ref increments the reference count.
func (in *Instance) Ref() {
	atomic.AddInt32(&in.refc, 1)
}

// Unref decrements the reference count, purging the instance from its
// owning Map when it reaches zero.
func (in *Instance) Unref() {
	if atomic.AddInt32(&in.refc, -1) == 0 {
		in.parent.purge(in)
	}
}

// refCount reports the current reference count; purge uses it to detect a
// concurrent Ref. It is unexported and not part of the public API surface.
func (in *Instance) refCount() int32 { return atomic.LoadInt32(&in.refc) }

// Map is a process-wide fingerprint -> Instance table. A single Map is
// normally shared by every RHC/WHC in a domain participant.
type Map struct {
	mu      sync.RWMutex
	byFP    map[uint64][]*Instance
	byIID   map[rhcache.IID]*Instance
	nextIID uint64 // atomic

	k0, k1 uint64 // SipHash key, fixed per Map instance
}

// New creates an empty TKMap. k0/k1 seed the SipHash fingerprint function;
// pass any fixed values (e.g. derived from a domain ID) so fingerprints
// are stable for the Map's lifetime but cannot be used by a remote peer
// to predict hash bucket placement.
func New(k0, k1 uint64) *Map {
	return &Map{
		byFP:  make(map[uint64][]*Instance),
		byIID: make(map[rhcache.IID]*Instance),
		k0:    k0,
		k1:    k1,
	}
}

func (m *Map) fingerprint(key []byte) uint64 {
	return siphash.Hash(m.k0, m.k1, key)
}

func (m *Map) findLocked(fp uint64, key []byte) *Instance {
	for _, in := range m.byFP[fp] {
		if bytes.Equal(in.keySD.KeyBytes(), key) {
			return in
		}
	}
	return nil
}

// Find matches sd by key fingerprint. If a matching instance
// exists, its reference count is bumped and it is returned. If none
// exists and create is true, a new instance is allocated (taking an
// initial reference) and inserted into both indices; if create is false,
// Find returns nil without creating anything or taking a reference.
func (m *Map) Find(sd rhcache.SerData, create bool) *Instance {
	key := sd.KeyBytes()
	fp := m.fingerprint(key)

	m.mu.RLock()
	if in := m.findLocked(fp, key); in != nil {
		in.Ref()
		m.mu.RUnlock()
		return in
	}
	m.mu.RUnlock()

	if !create {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// re-check: another goroutine may have created it between the
	// read-unlock above and this write-lock.
	if in := m.findLocked(fp, key); in != nil {
		in.Ref()
		return in
	}
	iid := rhcache.IID(atomic.AddUint64(&m.nextIID, 1))
	in := &Instance{
		iid:    iid,
		fp:     fp,
		keySD:  sd.Ref(),
		refc:   1,
		parent: m,
	}
	m.byFP[fp] = append(m.byFP[fp], in)
	m.byIID[iid] = in
	return in
}

// FindByID looks up an instance by IID without affecting its reference
// count.
func (m *Map) FindByID(iid rhcache.IID) *Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byIID[iid]
}

// Lookup returns sd's instance IID if present, without creating an entry
// or taking a reference; NilIID if absent.
func (m *Map) Lookup(sd rhcache.SerData) rhcache.IID {
	key := sd.KeyBytes()
	fp := m.fingerprint(key)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if in := m.findLocked(fp, key); in != nil {
		return in.iid
	}
	return rhcache.NilIID
}

func (m *Map) purge(in *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.refCount() != 0 {
		// raced with a concurrent Ref(); no longer ours to purge.
		return
	}
	bucket := m.byFP[in.fp]
	for i, cand := range bucket {
		if cand == in {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(m.byFP, in.fp)
	} else {
		m.byFP[in.fp] = bucket
	}
	delete(m.byIID, in.iid)
	in.keySD.Unref()
}

// Len reports the number of live instances; intended for tests and the
// periodic cross-check harness, not the hot path.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byIID)
}

// Snapshot returns a point-in-time copy of every live instance, so a
// caller can walk them without holding the Map lock for the whole walk.
func (m *Map) Snapshot() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Values(m.byIID)
}

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

// Kind classifies a SerData payload.
type Kind int

const (
	// KindData is a normal, data-bearing sample.
	KindData Kind = iota
	// KindKey is a key-only sample: dispose and/or unregister, no payload.
	KindKey
	// KindEmpty carries neither data nor a key (used internally to
	// synthesize invalid samples).
	KindEmpty
)

// StatusInfo is the dispose/unregister bitmask carried by a SerData, as
// delivered on the wire alongside a sample.
type StatusInfo uint32

const (
	// StatusDispose marks the sample as disposing its instance.
	StatusDispose StatusInfo = 1 << iota
	// StatusUnregister marks the sample as unregistering its writer from
	// the instance.
	StatusUnregister
)

// SerData is an immutable, reference-counted serialized datum, as produced
// by the (out of scope) wire/serialization layer. Ref/Unref use atomic
// reference counts and never require the owning cache's lock.
type SerData interface {
	// Ref increments the reference count and returns the receiver, so
	// callers can write `kept := sd.Ref()`.
	Ref() SerData
	// Unref decrements the reference count, freeing the backing storage
	// when it reaches zero.
	Unref()
	// Size reports the encoded size in bytes.
	Size() int64
	// Timestamp is the source timestamp carried by the sample.
	Timestamp() time.Time
	// Kind reports whether this is a data, key-only, or empty sample.
	Kind() Kind
	// StatusInfo reports the dispose/unregister bitmask.
	StatusInfo() StatusInfo
	// KeyBytes returns the serialized key bytes only, used by TKMap to
	// compute a fingerprint and by instances to synthesize invalid
	// samples carrying only the key.
	KeyBytes() []byte
	// ToSample deserializes the full sample (key + data) into buf, which
	// must have been allocated by the matching Sertype.
	ToSample(buf []byte) error
	// UntypedToSample deserializes only the key fields into buf (used for
	// key-only/invalid-sample materialization).
	UntypedToSample(buf []byte) error
}

// Sertype allocates and frees the deserialized sample buffers that the
// query-condition evaluation path and SerData.ToSample operate on.
type Sertype interface {
	// Alloc returns a zeroed buffer suitable for ToSample/UntypedToSample.
	Alloc() []byte
	// Free releases a buffer returned by Alloc.
	Free(buf []byte)
}

// WriterInfo describes the writer on whose behalf store/unregister_writer
// is being called, captured once at writer-creation time plus the
// per-sample ownership strength and autodispose flag that travel with each
// call.
type WriterInfo struct {
	// IID identifies the writer entity.
	IID IID
	// GUID is the writer's globally unique identifier, used for the
	// lexicographic tie-break in by-source-ordering and
	// exclusive-ownership comparisons. uuid.UUID is a 16-byte,
	// directly byte-comparable value, the same shape as a DDS GUID_t.
	GUID [16]byte
	// OwnershipStrength is this writer's current EXCLUSIVE-ownership
	// strength.
	OwnershipStrength int32
	// AutoDispose mirrors the writer's autodispose-unregistered-instances
	// QoS: unregister also disposes when true.
	AutoDispose bool
	// LifespanExpire is this writer's configured lifespan duration, used
	// as the default expiry for samples whose protocol layer doesn't pass
	// an explicit expiry. Zero means no lifespan.
	LifespanExpire time.Duration

	// HistoryDepth is the writer's HISTORY QoS depth; 0 means KEEP_ALL.
	HistoryDepth uint32
	// TransientLocalDepth is the writer's transient-local retention depth
	// (only meaningful when IsTransientLocal is true); 0 means KEEP_ALL
	// within the transient-local window.
	TransientLocalDepth uint32
	// IsTransientLocal mirrors the writer's DURABILITY QoS.
	IsTransientLocal bool
	// HasDeadline mirrors whether the writer's DEADLINE QoS is finite.
	HasDeadline bool
	// Deadline is the writer's DEADLINE QoS period, meaningful only when
	// HasDeadline is true.
	Deadline time.Duration
}

// IdxDepth is max(HistoryDepth, TransientLocalDepth) — the physical size of
// a WHC instance-index node's circular history array.
func (w WriterInfo) IdxDepth() uint32 {
	if w.HistoryDepth == 0 || (w.IsTransientLocal && w.TransientLocalDepth == 0) {
		return 0 // KEEP_ALL dominates: unbounded
	}
	if w.HistoryDepth > w.TransientLocalDepth {
		return w.HistoryDepth
	}
	return w.TransientLocalDepth
}

// GUIDLess reports whether a sorts before b lexicographically, the
// tie-break used by by-source-ordering and exclusive-ownership comparisons.
func GUIDLess(a, b [16]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

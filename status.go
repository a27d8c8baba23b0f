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

// StatusID names the status-callback events a cache can raise.
type StatusID int

const (
	// SampleLost fires when a valid sample could not be added because the
	// instance's acceptance predicate refused it (ordering/time-filter),
	// as opposed to a resource limit.
	SampleLost StatusID = iota
	// SampleRejected fires when a resource limit refused the sample; see
	// RejectedReason for the subcode.
	SampleRejected
	// RequestedDeadlineMissed fires from the reader side when an
	// instance's DEADLINE period elapses with no fresh sample.
	RequestedDeadlineMissed
	// OfferedDeadlineMissed fires from the writer side under the same
	// condition.
	OfferedDeadlineMissed
)

func (s StatusID) String() string {
	switch s {
	case SampleLost:
		return "SAMPLE_LOST"
	case SampleRejected:
		return "SAMPLE_REJECTED"
	case RequestedDeadlineMissed:
		return "REQUESTED_DEADLINE_MISSED"
	case OfferedDeadlineMissed:
		return "OFFERED_DEADLINE_MISSED"
	default:
		return "UNKNOWN_STATUS"
	}
}

// RejectedReason is the SAMPLE_REJECTED subcode.
type RejectedReason int

const (
	// RejectedNone is used for status kinds other than SampleRejected.
	RejectedNone RejectedReason = iota
	RejectedByInstancesLimit
	RejectedBySamplesLimit
	RejectedBySamplesPerInstanceLimit
)

// StatusCbData is the payload passed to a StatusCallback.
type StatusCbData struct {
	RawStatusID StatusID
	// Extra counts missed deadline periods since the last update, for
	// *_DEADLINE_MISSED; it is unused otherwise.
	Extra uint32
	// Handle is the affected instance handle.
	Handle IID
	// Add is true when this call represents a new occurrence rather than
	// a re-delivery (mirrors the original's xevent re-arm semantics).
	Add bool
	// Reason is the SAMPLE_REJECTED subcode; zero value for other kinds.
	Reason RejectedReason
}

// StatusCallback is how a cache reports status conditions to its entity
// layer. entity is opaque to the cache — it is whatever the owning RHC/WHC
// was constructed with as its self-reference.
type StatusCallback func(entity any, data StatusCbData)

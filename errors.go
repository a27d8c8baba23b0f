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

import "errors"

// Return-code sentinels, one per error kind. These are caller-contract
// errors: they never mutate cache state and are always returned to the
// caller rather than retried internally (retry is the protocol layer's
// responsibility, never the cache's).
var (
	// ErrBadParameter marks an invalid argument: an unknown handle, an
	// inconsistent state-mask combination, a borrow without a matching
	// return, a WHC insert whose sequence number does not strictly exceed
	// the highest one already present, or similar.
	ErrBadParameter = errors.New("rhcache: bad parameter")

	// ErrPreconditionNotMet marks an operation that is individually valid
	// but not permitted given the cache's current state.
	ErrPreconditionNotMet = errors.New("rhcache: precondition not met")

	// ErrUnsupported marks a request for functionality this build does not
	// implement (e.g. a query condition filter kind the Sertype doesn't
	// support).
	ErrUnsupported = errors.New("rhcache: unsupported")

	// ErrOutOfResources marks resource exhaustion that the caller must
	// treat as a failed operation distinct from a QoS-driven rejection
	// reported via the status callback (e.g. failure to grow an internal
	// table).
	ErrOutOfResources = errors.New("rhcache: out of resources")
)

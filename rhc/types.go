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

// Outcome is the three-way result of a single Store call.
type Outcome int

const (
	// Stored means the sample was accepted and appended.
	Stored Outcome = iota
	// Filtered means a content filter or key filter rejected the sample;
	// this is not a resource condition and is never reported via
	// SAMPLE_REJECTED.
	Filtered
	// Rejected means a resource limit (instances/samples/samples-per-
	// instance) refused the sample.
	Rejected
)

// SampleInfo is the per-sample metadata returned alongside each sample by
// Read/Take.
type SampleInfo struct {
	SampleState   condition.SampleStateMask
	ViewState     condition.ViewStateMask
	InstanceState condition.InstanceStateMask
	ValidData     bool

	SourceTimestamp    time.Time
	InstanceHandle     rhcache.IID
	PublicationHandle  rhcache.IID

	DisposedGenerationCount  uint32
	NoWritersGenerationCount uint32

	SampleRank             int
	GenerationRank         int
	AbsoluteGenerationRank int
}

// Sample is one (SampleInfo, payload) pair returned by Read/Take. Data is
// nil when !Info.ValidData (an invalid/state-change-only sample); otherwise
// the caller owns the returned reference and must call Data.Unref() when
// done with it.
type Sample struct {
	Info SampleInfo
	Data rhcache.SerData
}

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

// Package rhcache implements the reader/writer history caches (RHC/WHC)
// that sit between a DDS wire-protocol layer and its application API:
// per-endpoint sample storage organized by keyed instance, with DDS
// read/take semantics, QoS-bounded history, lifespan expiry, deadline
// monitoring and, on the writer side, retransmission and acknowledgement
// driven pruning.
//
// The entity lifecycle, discovery, wire protocol and dynamic type system
// that normally surround these caches are out of scope.
package rhcache

import "fmt"

// IID is a 64-bit instance identifier, issued by a TKMap the first time a
// key is seen and reused by every RHC/WHC that later stores samples of
// that key. It also serves as writer/reader entity identifier in contexts
// that need one ("Writer IID").
type IID uint64

// NilIID is the reserved not-an-instance value.
const NilIID IID = 0

// SeqNum is a writer-local, strictly increasing sequence number starting
// at 1.
type SeqNum uint64

// NilSeqNum marks "no sequence number" / "before the first sample".
const NilSeqNum SeqNum = 0

func (id IID) String() string { return fmt.Sprintf("iid:%d", uint64(id)) }
func (s SeqNum) String() string { return fmt.Sprintf("seq:%d", uint64(s)) }

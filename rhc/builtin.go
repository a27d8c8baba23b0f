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
	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/condition"
	"github.com/rhcache/rhcache/tkmap"
)

// Operations is the public surface shared by RHC and Builtin, mirroring
// a dds_rhc_ops-style dispatch table as a Go interface instead of an
// if-builtin branch inside the default cache. *RHC satisfies this by its
// own method set.
type Operations interface {
	Store(w rhcache.WriterInfo, sd rhcache.SerData, tk *tkmap.Instance) (bool, Outcome)
	UnregisterWriter(w rhcache.IID)
	RelinquishOwnership(w rhcache.IID)
	SetQos(cfg Config)
	Read(sel Selector, maxSamples int) []Sample
	Take(sel Selector, maxSamples int) []Sample
	ReadCdr(handle rhcache.IID, sel Selector, maxSamples int) []Sample
	TakeCdr(handle rhcache.IID, sel Selector, maxSamples int) []Sample
	AddReadCondition(c *condition.Condition) error
	RemoveReadCondition(c *condition.Condition)
	Close()
}

var (
	_ Operations = (*RHC)(nil)
	_ Operations = (*Builtin)(nil)
)

// EntityRecord is one row the entity index hands back to a Builtin cache
// on enumeration: a discovery-topic instance (participant, reader, writer,
// or topic) plus its proxy counterparts.
type EntityRecord struct {
	Handle   rhcache.IID
	Data     rhcache.SerData
	Alive    bool // false once the entity has been disposed/dropped
	IsNew    bool // true until the first read/take observes this record
}

// EntityIndex is supplied by the entity layer ("Builtin-topic
// interface"): the global table of participants/readers/writers/topics a
// Builtin RHC enumerates on every read/take instead of storing anything of
// its own.
type EntityIndex interface {
	Enumerate() []EntityRecord
	// MarkRead clears IsNew for handle after a read/take call observes it.
	MarkRead(handle rhcache.IID)
}

// Builtin is the builtin-topic RHC variant: same external
// interface as RHC, but store/unregister_writer/set_qos are no-ops and
// read/take synthesize their result by enumerating the entity index on
// demand instead of holding any sample history of their own.
type Builtin struct {
	index EntityIndex
}

// NewBuiltin wraps index as a read-only virtual cache.
func NewBuiltin(index EntityIndex) *Builtin {
	return &Builtin{index: index}
}

// Store is a no-op: a Builtin cache never stores anything of its own.
func (b *Builtin) Store(rhcache.WriterInfo, rhcache.SerData, *tkmap.Instance) (bool, Outcome) {
	return true, Stored
}

// UnregisterWriter is a no-op.
func (b *Builtin) UnregisterWriter(rhcache.IID) {}

// RelinquishOwnership is a no-op: Builtin never tracks writer ownership.
func (b *Builtin) RelinquishOwnership(rhcache.IID) {}

// SetQos is a no-op: a Builtin cache has no resource-limit QoS of its own.
func (b *Builtin) SetQos(Config) {}

// Close is a no-op: Builtin owns no scheduler callbacks.
func (b *Builtin) Close() {}

// AddReadCondition/RemoveReadCondition are unsupported: query-condition
// filters require a Sertype-deserialized buffer, and the entity index's
// records are not evaluated against one here — builtin topics are read by
// state mask only in this module.
func (b *Builtin) AddReadCondition(*condition.Condition) error { return rhcache.ErrUnsupported }
func (b *Builtin) RemoveReadCondition(*condition.Condition)    {}

// Read enumerates the entity index and returns every record matching sel.
func (b *Builtin) Read(sel Selector, maxSamples int) []Sample {
	return b.synthesize(sel, maxSamples, false)
}

// Take behaves exactly like Read: both clear IsNew on every returned
// record via the entity index, and there is nothing to remove, since a
// Builtin cache holds no samples of its own.
func (b *Builtin) Take(sel Selector, maxSamples int) []Sample {
	return b.synthesize(sel, maxSamples, true)
}

// ReadCdr/TakeCdr scope to a single handle.
func (b *Builtin) ReadCdr(handle rhcache.IID, sel Selector, maxSamples int) []Sample {
	return b.synthesizeOne(handle, sel, maxSamples, false)
}

func (b *Builtin) TakeCdr(handle rhcache.IID, sel Selector, maxSamples int) []Sample {
	return b.synthesizeOne(handle, sel, maxSamples, true)
}

func (b *Builtin) synthesize(sel Selector, maxSamples int, take bool) []Sample {
	var out []Sample
	for _, rec := range b.index.Enumerate() {
		out = b.appendRecord(out, rec, sel, take)
		if maxSamples > 0 && len(out) >= maxSamples {
			break
		}
	}
	return out
}

func (b *Builtin) synthesizeOne(handle rhcache.IID, sel Selector, maxSamples int, take bool) []Sample {
	for _, rec := range b.index.Enumerate() {
		if rec.Handle != handle {
			continue
		}
		return b.appendRecord(nil, rec, sel, take)
	}
	return nil
}

func (b *Builtin) appendRecord(out []Sample, rec EntityRecord, sel Selector, take bool) []Sample {
	view := condition.Old
	if rec.IsNew {
		view = condition.New
	}
	inst := condition.Alive
	if !rec.Alive {
		inst = condition.NotAliveDisposed
	}
	if !sel.matchesInstance(view, inst) {
		return out
	}
	ss := condition.NotRead
	if !rec.IsNew {
		ss = condition.Read
	}
	if !sel.matchesSample(ss, 0) {
		return out
	}
	out = append(out, Sample{
		Info: SampleInfo{
			SampleState:    ss,
			ViewState:      view,
			InstanceState:  inst,
			ValidData:      rec.Alive,
			InstanceHandle: rec.Handle,
		},
		Data: rec.Data,
	})
	if rec.IsNew {
		b.index.MarkRead(rec.Handle)
	}
	_ = take // take and read observe the same synthesized view; nothing to remove
	return out
}

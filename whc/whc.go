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

package whc

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"

	"github.com/rhcache/rhcache"
	"github.com/rhcache/rhcache/tkmap"
)

// Logger is satisfied by *log.Logger; an WHC never requires one.
type Logger interface {
	Printf(f string, args ...interface{})
}

// State is the snapshot returned by GetState ("get_state").
type State struct {
	MinSeq       rhcache.SeqNum
	MaxSeq       rhcache.SeqNum
	UnackedBytes int64
	NumSamples   int
}

// WHC is the default Writer History Cache.
type WHC struct {
	mu sync.Mutex

	cfg    Config
	tk     *tkmap.Map
	entity any
	status rhcache.StatusCallback
	sched  rhcache.Scheduler
	logger Logger

	// order holds every live (non-removed) sample in strictly ascending
	// seq order; insert only ever appends (seq must exceed the current
	// max), so the slice never needs re-sorting, only compaction as
	// entries toward the front are marked removed.
	order   []*wsample
	removed int // count of removed-but-not-yet-compacted entries in order

	idx map[rhcache.IID]*idxnode // only populated when cfg.needsIndex()

	unackedBytes int64

	lifespan       lifespanHeap
	lifespanCancel func()

	deadline       deadlineHeap
	deadlineCancel func()
	deadlines      map[rhcache.IID]*instDeadline
}

// New creates a WHC. entity is an opaque self-reference passed back
// through StatusCallback; tk is the shared TKMap. sched may be nil, in
// which case rhcache.TimerScheduler{} is used.
func New(cfg Config, tk *tkmap.Map, entity any, status rhcache.StatusCallback, sched rhcache.Scheduler, logger Logger) *WHC {
	if sched == nil {
		sched = rhcache.TimerScheduler{}
	}
	w := &WHC{
		cfg:    cfg,
		tk:     tk,
		entity: entity,
		status: status,
		sched:  sched,
		logger: logger,
	}
	if cfg.needsIndex() {
		w.idx = make(map[rhcache.IID]*idxnode)
	}
	return w
}

func (w *WHC) errorf(f string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Printf(f, args...)
	}
}

func (w *WHC) raise(id rhcache.StatusID, handle rhcache.IID, extra uint32) {
	if w.status == nil {
		return
	}
	w.status(w.entity, rhcache.StatusCbData{RawStatusID: id, Handle: handle, Extra: extra, Add: true})
}

// Close releases the scheduler callbacks held by this WHC's lifespan and
// deadline heaps.
func (w *WHC) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lifespanCancel != nil {
		w.lifespanCancel()
	}
	if w.deadlineCancel != nil {
		w.deadlineCancel()
	}
}

func (w *WHC) maxSeq() rhcache.SeqNum {
	if len(w.order) == 0 {
		return rhcache.NilSeqNum
	}
	return w.order[len(w.order)-1].seq
}

func (w *WHC) minSeq() rhcache.SeqNum {
	for _, s := range w.order {
		if !s.removed {
			return s.seq
		}
	}
	return rhcache.NilSeqNum
}

// compact drops a leading run of removed entries once they are a
// significant fraction of the slice, keeping order's memory bounded
// without paying an O(n) splice on every single removal.
func (w *WHC) compact() {
	if w.removed == 0 || w.removed < len(w.order)/2 {
		return
	}
	live := w.order[:0]
	for _, s := range w.order {
		if !s.removed {
			live = append(live, s)
		}
	}
	w.order = live
	w.removed = 0
}

// Insert enforces monotonic insertion: seq must strictly exceed any seq currently in
// the cache. expire is the zero Time when the sample has no lifespan.
func (w *WHC) Insert(maxDropSeq rhcache.SeqNum, seq rhcache.SeqNum, expire time.Time, sd rhcache.SerData, tk *tkmap.Instance) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if seq <= w.maxSeq() {
		w.errorf("whc: Insert seq %v did not exceed current max %v", seq, w.maxSeq())
		return rhcache.ErrBadParameter
	}

	hasExpiry := !expire.IsZero()
	s := newWsample(seq, sd, tk, expire, hasExpiry)
	w.order = append(w.order, s)
	w.unackedBytes += sd.Size()
	w.registerLifespan(s)
	if sd.Kind() == rhcache.KindData {
		w.armDeadline(tk.IID(), sd.Timestamp())
	}

	if sd.Kind() == rhcache.KindKey && sd.StatusInfo()&rhcache.StatusUnregister != 0 {
		if node := w.idx[tk.IID()]; node != nil {
			for _, h := range node.hist {
				if h != nil {
					w.maybeDropOverwritten(h, maxDropSeq)
				}
			}
			delete(w.idx, tk.IID())
		}
		if seq <= maxDropSeq {
			w.dropSample(s)
		}
		return nil
	}

	if !w.cfg.needsIndex() {
		return nil
	}

	node := w.idx[tk.IID()]
	if node == nil {
		node = newIdxnode(tk.IID(), w.cfg.IdxDepth())
		w.idx[tk.IID()] = node
	}
	overwritten := node.push(s)
	if overwritten != nil {
		w.maybeDropOverwritten(overwritten, maxDropSeq)
	}
	return nil
}

// maybeDropOverwritten applies drop condition for a sample pushed
// out of its instance-index node's circular history: dropped immediately
// if the writer is not transient-local, or its own seq is already acked (<=
// maxDropSeq), and the writer isn't a KEEP_ALL transient-local one (which
// never drops by position).
func (w *WHC) maybeDropOverwritten(s *wsample, maxDropSeq rhcache.SeqNum) {
	if w.cfg.IsTransientLocal && w.cfg.TransientLocalDepth == 0 {
		return
	}
	if !w.cfg.IsTransientLocal || s.seq <= maxDropSeq {
		if !s.removed {
			w.dropSample(s)
		}
	}
}

// dropSample removes s from the seq order and instance index, releasing
// its reference unless it is currently borrowed.
func (w *WHC) dropSample(s *wsample) {
	if s.removed {
		return
	}
	s.removed = true
	w.removed++
	if s.unacked {
		w.unackedBytes -= s.sd.Size()
		s.unacked = false
	}
	if node := w.idx[s.tk.IID()]; node != nil {
		node.remove(s)
	}
	s.release()
	w.compact()
}

// GetState reports the current occupancy ("get_state").
func (w *WHC) GetState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		MinSeq:       w.minSeq(),
		MaxSeq:       w.maxSeq(),
		UnackedBytes: w.unackedBytes,
		NumSamples:   len(w.order) - w.removed,
	}
}

// NextSeq returns the smallest seq strictly greater than seq currently
// present, or rhcache.NilSeqNum (acting as +infinity here) if none.
func (w *WHC) NextSeq(seq rhcache.SeqNum) rhcache.SeqNum {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx, _ := slices.BinarySearchFunc(w.order, seq, func(s *wsample, seq rhcache.SeqNum) int {
		switch {
		case s.seq < seq:
			return -1
		case s.seq > seq:
			return 1
		default:
			return 0
		}
	})
	for idx < len(w.order) && w.order[idx].seq <= seq {
		idx++
	}
	for ; idx < len(w.order); idx++ {
		if !w.order[idx].removed {
			return w.order[idx].seq
		}
	}
	return rhcache.NilSeqNum
}

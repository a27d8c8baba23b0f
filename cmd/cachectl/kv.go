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

package main

import (
	"sync/atomic"
	"time"

	"github.com/rhcache/rhcache"
)

// kv is the demo SerData: a plain "key=value" pair, refcounted so it can
// exercise the same Ref/Unref contract a real wire codec would.
type kv struct {
	key   string
	value string
	ts    time.Time
	refc  int32 // atomic
}

func newKV(key, value string, ts time.Time) *kv {
	return &kv{key: key, value: value, ts: ts, refc: 1}
}

func (k *kv) Ref() rhcache.SerData {
	atomic.AddInt32(&k.refc, 1)
	return k
}

func (k *kv) Unref() {
	atomic.AddInt32(&k.refc, -1)
}

func (k *kv) Size() int64                   { return int64(len(k.key) + len(k.value)) }
func (k *kv) Timestamp() time.Time          { return k.ts }
func (k *kv) Kind() rhcache.Kind            { return rhcache.KindData }
func (k *kv) StatusInfo() rhcache.StatusInfo { return 0 }
func (k *kv) KeyBytes() []byte              { return []byte(k.key) }

func (k *kv) ToSample(buf []byte) error {
	copy(buf, k.key+"="+k.value)
	return nil
}

func (k *kv) UntypedToSample(buf []byte) error {
	copy(buf, k.key)
	return nil
}

// kvSertype allocates fixed-size buffers big enough for any demo sample;
// a real Sertype would size per the registered type's encoded length.
type kvSertype struct{}

func (kvSertype) Alloc() []byte { return make([]byte, 256) }
func (kvSertype) Free([]byte)   {}

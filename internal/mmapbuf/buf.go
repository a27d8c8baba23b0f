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

// Package mmapbuf backs large serdata payloads with a memory-mapped temp
// file instead of a Go-heap allocation, split across file_linux.go/
// file_other.go the same way an OS-specific mmap/unmap/resize backend
// would be, except here the file is a throwaway temp file used as an
// overflow buffer (removed again by Close) rather than a content-addressed
// cache.
package mmapbuf

import "os"

// InlineThreshold is the payload size above which a serdata implementation
// should prefer a mmap-backed Buf over a plain Go byte slice.
const InlineThreshold = 64 * 1024

// Buf is a large-payload overflow buffer.
type Buf struct {
	f   *os.File
	buf []byte
}

// New allocates a zeroed Buf of size bytes, backed by a temp file mapped
// read-write.
func New(size int64) (*Buf, error) {
	f, err := os.CreateTemp("", "rhcache-overflow-*")
	if err != nil {
		return nil, err
	}
	if err := resize(f, size); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	b, err := mmap(f, size, false)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &Buf{f: f, buf: b}, nil
}

// Bytes returns the buffer's backing slice.
func (b *Buf) Bytes() []byte { return b.buf }

// Close unmaps and removes the backing temp file.
func (b *Buf) Close() error {
	name := b.f.Name()
	err := unmap(b.f, b.buf)
	b.f.Close()
	os.Remove(name)
	return err
}

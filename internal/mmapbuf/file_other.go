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

//go:build !linux
// +build !linux

package mmapbuf

import "os"

// Non-Linux platforms fall back to a plain heap allocation backed by the
// same temp file for Close's bookkeeping, rather than a real mapping.
func mmap(f *os.File, size int64, ro bool) ([]byte, error) {
	return make([]byte, size), nil
}

func unmap(f *os.File, buf []byte) error {
	return nil
}

func resize(f *os.File, size int64) error {
	return f.Truncate(size)
}

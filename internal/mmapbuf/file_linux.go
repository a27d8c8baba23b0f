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

//go:build linux
// +build linux

package mmapbuf

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int64, ro bool) ([]byte, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	if ro {
		prot = unix.PROT_READ
	}
	return unix.Mmap(int(f.Fd()), 0, int(size), prot, unix.MAP_SHARED)
}

func unmap(f *os.File, buf []byte) error {
	return unix.Munmap(buf)
}

func resize(f *os.File, size int64) error {
	if err := f.Truncate(size); err != nil {
		return err
	}
	return unix.Fallocate(int(f.Fd()), 0, 0, size)
}

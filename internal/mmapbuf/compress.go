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

package mmapbuf

import "github.com/klauspost/compress/s2"

// CompressKey compresses key-only serdata bytes for long-lived
// disposed/unregistered TKMap instances using the same s2 codec an
// on-disk block store would use for its cold data.
func CompressKey(key []byte) []byte {
	return s2.Encode(nil, key)
}

// DecompressKey reverses CompressKey.
func DecompressKey(compressed []byte) ([]byte, error) {
	return s2.Decode(nil, compressed)
}

// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package arena

import (
	"unsafe"

	"github.com/grailbio/bedtk/interval"
)

var recordSize = unsafe.Sizeof(interval.Record{})

func recordAddr(rec *interval.Record) uintptr {
	return uintptr(unsafe.Pointer(rec))
}

func slabBase(s *slab) uintptr {
	return recordAddr(&s.records[0])
}

// recordOffset returns the index of rec within the slabCapacity-element
// array base is the first element of, or -1 if rec's address doesn't fall
// within that array's span. A slot's *interval.Record never moves between
// Allocate and Release, so its offset within its slab is a fixed,
// O(1)-computable identity.
func recordOffset(rec, base *interval.Record) int {
	recAddr := recordAddr(rec)
	baseAddr := recordAddr(base)
	if recAddr < baseAddr {
		return -1
	}
	delta := recAddr - baseAddr
	if delta%recordSize != 0 {
		return -1
	}
	idx := int(delta / recordSize)
	if idx >= slabCapacity {
		return -1
	}
	return idx
}

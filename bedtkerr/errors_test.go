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
package bedtkerr

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestErrorMessages(t *testing.T) {
	expect.EQ(t,
		(&ParseError{File: "in.bed", Line: 12, Reason: "end must be greater than start"}).Error(),
		"in.bed:12: parse error: end must be greater than start")
	expect.EQ(t,
		(&SortOrderError{File: "in.bed", Line: 2, Reason: "nested interval"}).Error(),
		"in.bed:2: sort order violation: nested interval")
	expect.EQ(t,
		(&UsageError{Reason: "refpath required"}).Error(),
		"usage error: refpath required")
	expect.EQ(t,
		(&IoError{Path: "in.bed", Reason: "no such file"}).Error(),
		"io error: in.bed: no such file")
	expect.EQ(t,
		(&IoError{Reason: "stdin used twice"}).Error(),
		"io error: stdin used twice")
	expect.EQ(t,
		(&ArgumentError{Reason: "quantile must be in (0, 1]"}).Error(),
		"argument error: quantile must be in (0, 1]")
	expect.EQ(t,
		(&ResourceError{Reason: "slab allocation failed"}).Error(),
		"resource error: slab allocation failed")
}

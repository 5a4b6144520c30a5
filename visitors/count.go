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
package visitors

import (
	"bufio"
	"strconv"

	"github.com/grailbio/bedtk/interval"
)

// Count emits the number of map-items Within each reference.
type Count struct {
	rowWriter
	n   int
	ref *interval.Record
}

// NewCount returns a Count visitor writing rows to out.
func NewCount(out *bufio.Writer) *Count { return &Count{rowWriter: rowWriter{Out: out}} }

func (c *Count) OnStart(ref *interval.Record) { c.ref = ref }
func (c *Count) OnAdd(*interval.Record)       { c.n++ }
func (c *Count) OnDelete(*interval.Record)    { c.n-- }
func (c *Count) OnDone() {
	c.emit(c.ref, strconv.Itoa(c.n))
}
func (c *Count) OnPurge() {}
func (c *Count) OnEnd()   {}

// Indicator emits 1 if any map-item is Within a reference, 0 otherwise.
type Indicator struct {
	rowWriter
	n   int
	ref *interval.Record
}

// NewIndicator returns an Indicator visitor writing rows to out.
func NewIndicator(out *bufio.Writer) *Indicator { return &Indicator{rowWriter: rowWriter{Out: out}} }

func (c *Indicator) OnStart(ref *interval.Record) { c.ref = ref }
func (c *Indicator) OnAdd(*interval.Record)       { c.n++ }
func (c *Indicator) OnDelete(*interval.Record)    { c.n-- }
func (c *Indicator) OnDone() {
	v := "0"
	if c.n > 0 {
		v = "1"
	}
	c.emit(c.ref, v)
}
func (c *Indicator) OnPurge() {}
func (c *Indicator) OnEnd()   {}

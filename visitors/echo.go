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

// OverlapEcho emits, for each reference, the list of overlap lengths of
// every map-item Within it, in sort order. Overlaps are computed against
// the reference current at OnDone time: an item that stays Within across
// consecutive references shares a different length with each.
type OverlapEcho struct {
	rowWriter
	set recSet
	ref *interval.Record
}

// NewOverlapEcho returns an OverlapEcho visitor writing rows to out.
func NewOverlapEcho(out *bufio.Writer) *OverlapEcho {
	return &OverlapEcho{rowWriter: rowWriter{Out: out}}
}

func (o *OverlapEcho) OnStart(ref *interval.Record) { o.ref = ref }
func (o *OverlapEcho) OnAdd(m *interval.Record)     { o.set.add(m) }
func (o *OverlapEcho) OnDelete(m *interval.Record)  { o.set.remove(m) }

func (o *OverlapEcho) OnDone() {
	if len(o.set.recs) == 0 {
		o.emit(o.ref, "NAN")
		return
	}
	parts := make([]string, len(o.set.recs))
	for i, m := range o.set.recs {
		parts[i] = strconv.FormatUint(interval.Overlap(m, o.ref), 10)
	}
	o.emit(o.ref, parts...)
}
func (o *OverlapEcho) OnPurge() { o.set.clear() }
func (o *OverlapEcho) OnEnd()   {}

// Intersection emits one row per map-item Within each reference, holding
// the shared interval of the two, the way `bedops --intersect` narrows
// rows pairwise. Rows are emitted at OnDone so each reference reports
// intersections against itself, not against the reference that first
// pulled the item into the window.
type Intersection struct {
	rowWriter
	set recSet
	ref *interval.Record
}

// NewIntersection returns an Intersection visitor writing rows to out.
func NewIntersection(out *bufio.Writer) *Intersection {
	return &Intersection{rowWriter: rowWriter{Out: out}}
}

func (x *Intersection) OnStart(ref *interval.Record) { x.ref = ref }
func (x *Intersection) OnAdd(m *interval.Record)     { x.set.add(m) }
func (x *Intersection) OnDelete(m *interval.Record)  { x.set.remove(m) }

func (x *Intersection) OnDone() {
	for _, m := range x.set.recs {
		shared := interval.Intersection(m, x.ref)
		if shared.Length() == 0 {
			continue
		}
		x.emit(&shared)
	}
}
func (x *Intersection) OnPurge() { x.set.clear() }
func (x *Intersection) OnEnd()   {}

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

	"github.com/biogo/store/llrb"
	"github.com/grailbio/bedtk/interval"
)

// extremeLeaf is the llrb.Comparable the Min/Max visitors key their
// ordered multiset by: (score, seq). The allocation sequence number
// breaks score ties deterministically, standing in for pointer
// identity, which a slot-recycling arena cannot promise across a
// record's lifetime boundaries.
type extremeLeaf struct {
	score float64
	seq   uint64
}

func (l *extremeLeaf) Compare(c llrb.Comparable) int {
	o := c.(*extremeLeaf)
	if l.score < o.score {
		return -1
	}
	if l.score > o.score {
		return 1
	}
	if l.seq < o.seq {
		return -1
	}
	if l.seq > o.seq {
		return 1
	}
	return 0
}

// Extreme emits either the minimum or maximum map-item score Within each
// reference, or NaN if none are Within. Ties on score are broken
// deterministically by allocation order via extremeLeaf.
type Extreme struct {
	rowWriter
	tree llrb.Tree
	max  bool
	ref  *interval.Record
}

// NewMin returns an Extreme visitor emitting the minimum score Within
// each reference.
func NewMin(out *bufio.Writer) *Extreme { return &Extreme{rowWriter: rowWriter{Out: out}} }

// NewMax returns an Extreme visitor emitting the maximum score Within
// each reference.
func NewMax(out *bufio.Writer) *Extreme { return &Extreme{rowWriter: rowWriter{Out: out}, max: true} }

func (e *Extreme) OnStart(ref *interval.Record) { e.ref = ref }

func (e *Extreme) OnAdd(m *interval.Record) {
	e.tree.Insert(&extremeLeaf{score: m.Score, seq: m.Seq()})
}

func (e *Extreme) OnDelete(m *interval.Record) {
	e.tree.Delete(&extremeLeaf{score: m.Score, seq: m.Seq()})
}

func (e *Extreme) OnDone() {
	v := NaN
	if e.tree.Len() > 0 {
		var leaf *extremeLeaf
		if e.max {
			leaf = e.tree.Max().(*extremeLeaf)
		} else {
			leaf = e.tree.Min().(*extremeLeaf)
		}
		v = leaf.score
	}
	e.emit(e.ref, FormatValue(v))
}

func (e *Extreme) OnPurge() {}
func (e *Extreme) OnEnd()   {}

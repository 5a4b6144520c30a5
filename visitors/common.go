// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package visitors implements the concrete statistical and set-algebra
// sweep.Visitor reducers, one family per file.
package visitors

import (
	"bufio"
	"math"
	"strconv"

	"github.com/grailbio/bedtk/interval"
)

// NaN is the distinguished sentinel the numeric visitors here emit for
// an empty input set; Count and Indicator emit 0 instead, and
// Intersection emits no rows. It formats as the literal string "NAN",
// never as Go's default "NaN".
var NaN = math.NaN()

// FormatValue renders a float64 the way every visitor's output row does:
// NaN as the fixed string "NAN", everything else via strconv's shortest
// round-tripping representation.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return "NAN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// rowWriter is embedded by every visitor that emits one "<reference
// row>\t<value...>" line per reference; it centralizes the write and
// error bookkeeping so individual visitors only need to compute a value.
type rowWriter struct {
	Out *bufio.Writer
	err error
}

// emit writes ref's BED columns (without a trailing newline) followed by
// a tab and each of fields, then a newline. The first error encountered
// across the visitor's lifetime is latched and returned by Err.
func (w *rowWriter) emit(ref *interval.Record, fields ...string) {
	if w.err != nil || w.Out == nil {
		return
	}
	if err := ref.Format(w.Out, false); err != nil {
		w.err = err
		return
	}
	for _, f := range fields {
		if err := w.Out.WriteByte('\t'); err != nil {
			w.err = err
			return
		}
		if _, err := w.Out.WriteString(f); err != nil {
			w.err = err
			return
		}
	}
	if err := w.Out.WriteByte('\n'); err != nil {
		w.err = err
	}
}

// Err returns the first write error the visitor encountered, if any.
func (w *rowWriter) Err() error { return w.err }

// recSet is the window-membership list the set-algebra visitors keep:
// those whose per-reference output depends on the reference itself
// (overlap lengths, intersections, coverage weights) cannot fold
// OnAdd/OnDelete into a running scalar, because an item that stays Within
// across consecutive references contributes differently to each. recSet
// holds the current members in sort order; removal is keyed by the
// record's allocation sequence number, the stable identity spec'd for
// arena slots.
type recSet struct {
	recs []*interval.Record
}

func (s *recSet) add(m *interval.Record) {
	i := len(s.recs)
	for i > 0 && m.Less(s.recs[i-1]) {
		i--
	}
	s.recs = append(s.recs, nil)
	copy(s.recs[i+1:], s.recs[i:])
	s.recs[i] = m
}

func (s *recSet) remove(m *interval.Record) {
	for i, r := range s.recs {
		if r.Seq() == m.Seq() {
			s.recs = append(s.recs[:i], s.recs[i+1:]...)
			return
		}
	}
}

func (s *recSet) clear() { s.recs = s.recs[:0] }

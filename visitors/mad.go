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
	"sort"

	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
)

// MedianAbsoluteDeviation computes the median of map-item scores Within
// each reference via a floatMultiset, then on OnDone materializes the
// window into a temporary slice of |x - median| and takes its median in
// turn, emitting mult * MAD (mult defaults to 1). NaN when fewer than
// two items are Within.
type MedianAbsoluteDeviation struct {
	rowWriter
	set  floatMultiset
	mult float64
	ref  *interval.Record
}

// NewMedianAbsoluteDeviation returns a MedianAbsoluteDeviation visitor
// writing rows to out, scaling its output by mult (must be positive;
// pass 1 for the plain MAD).
func NewMedianAbsoluteDeviation(mult float64, out *bufio.Writer) (*MedianAbsoluteDeviation, error) {
	if mult <= 0 {
		return nil, &bedtkerr.ArgumentError{Reason: "mad multiplier must be positive"}
	}
	return &MedianAbsoluteDeviation{rowWriter: rowWriter{Out: out}, mult: mult}, nil
}

func (m *MedianAbsoluteDeviation) OnStart(ref *interval.Record)  { m.ref = ref }
func (m *MedianAbsoluteDeviation) OnAdd(rec *interval.Record)    { m.set.insert(rec.Score) }
func (m *MedianAbsoluteDeviation) OnDelete(rec *interval.Record) { m.set.remove(rec.Score) }
func (m *MedianAbsoluteDeviation) OnDone() {
	v := NaN
	// Dispersion is undefined for fewer than two values.
	if n := m.set.len(); n > 1 {
		median := m.set.rankAverage(0.5)
		devs := make([]float64, n)
		for i, x := range m.set.vals {
			d := x - median
			if d < 0 {
				d = -d
			}
			devs[i] = d
		}
		sort.Float64s(devs)
		mid := n / 2
		var medAbs float64
		if n%2 == 0 {
			medAbs = (devs[mid-1] + devs[mid]) / 2
		} else {
			medAbs = devs[mid]
		}
		v = m.mult * medAbs
	}
	m.emit(m.ref, FormatValue(v))
}
func (m *MedianAbsoluteDeviation) OnPurge() {}
func (m *MedianAbsoluteDeviation) OnEnd()   {}

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
	"math"

	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
)

// TrimmedMean emits the mean of map-item scores Within each reference,
// after discarding the lowest qLo and highest qHi fraction. The symmetric
// case (qLo == qHi) uses max(lo, n-hi) on both ends to guarantee
// symmetric trimming even when ceil() rounding would otherwise trim
// unevenly; the degenerate case qLo+qHi == 1 collapses to a single
// order-statistic value.
type TrimmedMean struct {
	rowWriter
	set      floatMultiset
	qLo, qHi float64
	ref      *interval.Record
}

// NewTrimmedMean returns a TrimmedMean visitor writing rows to out. qLo
// and qHi must be in [0, 1) and sum to at most 1.
func NewTrimmedMean(qLo, qHi float64, out *bufio.Writer) (*TrimmedMean, error) {
	if qLo < 0 || qLo >= 1 || qHi < 0 || qHi >= 1 {
		return nil, &bedtkerr.ArgumentError{Reason: "trim fractions must be in [0, 1)"}
	}
	if qLo+qHi > 1 {
		return nil, &bedtkerr.ArgumentError{Reason: "trim fractions must sum to at most 1"}
	}
	return &TrimmedMean{rowWriter: rowWriter{Out: out}, qLo: qLo, qHi: qHi}, nil
}

func (t *TrimmedMean) OnStart(ref *interval.Record) { t.ref = ref }
func (t *TrimmedMean) OnAdd(m *interval.Record)     { t.set.insert(m.Score) }
func (t *TrimmedMean) OnDelete(m *interval.Record)  { t.set.remove(m.Score) }

func (t *TrimmedMean) OnDone() {
	v := NaN
	n := t.set.len()
	if n > 0 {
		lo := int(math.Ceil(t.qLo * float64(n)))
		hi := n - int(math.Ceil(t.qHi*float64(n)))
		if t.qLo == t.qHi {
			trim := lo
			if n-hi > trim {
				trim = n - hi
			}
			lo, hi = trim, n-trim
		}
		if lo < 0 {
			lo = 0
		}
		if hi > n {
			hi = n
		}
		if lo >= hi {
			k := lo
			if k >= n {
				k = n - 1
			}
			if k < 0 {
				k = 0
			}
			v = t.set.vals[k]
		} else {
			var sum float64
			for _, x := range t.set.vals[lo:hi] {
				sum += x
			}
			v = sum / float64(hi-lo)
		}
	}
	t.emit(t.ref, FormatValue(v))
}
func (t *TrimmedMean) OnPurge() {}
func (t *TrimmedMean) OnEnd()   {}

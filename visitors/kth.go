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
	"sort"

	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
)

// floatMultiset is a sorted multiset of scores supporting O(log n)
// insertion position lookup via sort.Search, and O(n) splice for
// insert/remove. The rank-statistic visitors need positional access an
// unaugmented search tree doesn't give, so they walk a sorted slice
// instead of the llrb.Tree the extremum visitors use.
type floatMultiset struct {
	vals []float64
}

func (s *floatMultiset) insert(v float64) {
	i := sort.Search(len(s.vals), func(i int) bool { return s.vals[i] >= v })
	s.vals = append(s.vals, 0)
	copy(s.vals[i+1:], s.vals[i:])
	s.vals[i] = v
}

func (s *floatMultiset) remove(v float64) {
	i := sort.Search(len(s.vals), func(i int) bool { return s.vals[i] >= v })
	if i >= len(s.vals) {
		return
	}
	s.vals = append(s.vals[:i], s.vals[i+1:]...)
}

func (s *floatMultiset) len() int { return len(s.vals) }

// rank returns the 1-indexed q-th element: ceil(q * n), clamped to
// [1, n].
func (s *floatMultiset) rank(q float64) float64 {
	n := len(s.vals)
	k := int(math.Ceil(q * float64(n)))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return s.vals[k-1]
}

// rankAverage returns the mean of q's two bracketing elements when q*n is
// an integer strictly between 0 and n, and the single q-th element
// otherwise. q=0.5 is the median specialization.
func (s *floatMultiset) rankAverage(q float64) float64 {
	n := len(s.vals)
	qn := q * float64(n)
	k := int(math.Round(qn))
	if math.Abs(qn-float64(k)) < 1e-9 && k >= 1 && k < n {
		return (s.vals[k-1] + s.vals[k]) / 2
	}
	return s.rank(q)
}

// RollingKth emits the q-th order statistic (1-indexed rank
// ceil(q*n)) of map-item scores Within each reference, or NaN if none
// are Within.
type RollingKth struct {
	rowWriter
	set floatMultiset
	q   float64
	ref *interval.Record
}

// NewRollingKth returns a RollingKth visitor for quantile q (in (0, 1]),
// writing rows to out.
func NewRollingKth(q float64, out *bufio.Writer) (*RollingKth, error) {
	if err := checkQuantile(q); err != nil {
		return nil, err
	}
	return &RollingKth{rowWriter: rowWriter{Out: out}, q: q}, nil
}

func checkQuantile(q float64) error {
	if q <= 0 || q > 1 {
		return &bedtkerr.ArgumentError{Reason: "quantile must be in (0, 1]"}
	}
	return nil
}

func (k *RollingKth) OnStart(ref *interval.Record) { k.ref = ref }
func (k *RollingKth) OnAdd(m *interval.Record)     { k.set.insert(m.Score) }
func (k *RollingKth) OnDelete(m *interval.Record)  { k.set.remove(m.Score) }
func (k *RollingKth) OnDone() {
	v := NaN
	if k.set.len() > 0 {
		v = k.set.rank(k.q)
	}
	k.emit(k.ref, FormatValue(v))
}
func (k *RollingKth) OnPurge() {}
func (k *RollingKth) OnEnd()   {}

// RollingKthAverage emits the q-th order statistic of map-item scores
// Within each reference, averaging the two bracketing elements when q*n
// is an integer. q=0.5 is the median.
type RollingKthAverage struct {
	rowWriter
	set floatMultiset
	q   float64
	ref *interval.Record
}

// NewRollingKthAverage returns a RollingKthAverage visitor for quantile
// q (in (0, 1]), writing rows to out.
func NewRollingKthAverage(q float64, out *bufio.Writer) (*RollingKthAverage, error) {
	if err := checkQuantile(q); err != nil {
		return nil, err
	}
	return &RollingKthAverage{rowWriter: rowWriter{Out: out}, q: q}, nil
}

// NewMedian returns the q=0.5 specialization of RollingKthAverage.
func NewMedian(out *bufio.Writer) *RollingKthAverage {
	v, _ := NewRollingKthAverage(0.5, out)
	return v
}

func (k *RollingKthAverage) OnStart(ref *interval.Record) { k.ref = ref }
func (k *RollingKthAverage) OnAdd(m *interval.Record)     { k.set.insert(m.Score) }
func (k *RollingKthAverage) OnDelete(m *interval.Record)  { k.set.remove(m.Score) }
func (k *RollingKthAverage) OnDone() {
	v := NaN
	if k.set.len() > 0 {
		v = k.set.rankAverage(k.q)
	}
	k.emit(k.ref, FormatValue(v))
}
func (k *RollingKthAverage) OnPurge() {}
func (k *RollingKthAverage) OnEnd()   {}

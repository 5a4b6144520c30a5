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

	"github.com/grailbio/bedtk/interval"
)

// sumAccum maintains the three running moments (count, sum, sum of
// squares) that Sum, Mean, Variance, StdDev, and CoeffVariation are
// each a cheap function of.
type sumAccum struct {
	count int
	sum   float64
	sumSq float64
}

func (a *sumAccum) add(score float64) {
	a.count++
	a.sum += score
	a.sumSq += score * score
}

func (a *sumAccum) remove(score float64) {
	a.count--
	a.sum -= score
	a.sumSq -= score * score
}

func (a *sumAccum) mean() float64 { return a.sum / float64(a.count) }

// variance is the sample variance: (n*Σx² - (Σx)²) / (n*(n-1)).
// Defined only for count >= 2.
func (a *sumAccum) variance() float64 {
	n := float64(a.count)
	return (n*a.sumSq - a.sum*a.sum) / (n * (n - 1))
}

// Sum emits the sum of map-item scores Within each reference, or NaN if
// none are Within.
type Sum struct {
	rowWriter
	acc sumAccum
	ref *interval.Record
}

// NewSum returns a Sum visitor writing rows to out.
func NewSum(out *bufio.Writer) *Sum { return &Sum{rowWriter: rowWriter{Out: out}} }

func (s *Sum) OnStart(ref *interval.Record) { s.ref = ref }
func (s *Sum) OnAdd(m *interval.Record)     { s.acc.add(m.Score) }
func (s *Sum) OnDelete(m *interval.Record)  { s.acc.remove(m.Score) }
func (s *Sum) OnDone() {
	v := NaN
	if s.acc.count >= 1 {
		v = s.acc.sum
	}
	s.emit(s.ref, FormatValue(v))
}
func (s *Sum) OnPurge() {}
func (s *Sum) OnEnd()   {}

// Mean emits the mean of map-item scores Within each reference, or NaN
// if none are Within.
type Mean struct {
	rowWriter
	acc sumAccum
	ref *interval.Record
}

// NewMean returns a Mean visitor writing rows to out.
func NewMean(out *bufio.Writer) *Mean { return &Mean{rowWriter: rowWriter{Out: out}} }

func (s *Mean) OnStart(ref *interval.Record) { s.ref = ref }
func (s *Mean) OnAdd(m *interval.Record)     { s.acc.add(m.Score) }
func (s *Mean) OnDelete(m *interval.Record)  { s.acc.remove(m.Score) }
func (s *Mean) OnDone() {
	v := NaN
	if s.acc.count >= 1 {
		v = s.acc.mean()
	}
	s.emit(s.ref, FormatValue(v))
}
func (s *Mean) OnPurge() {}
func (s *Mean) OnEnd()   {}

// Variance emits the sample variance of map-item scores Within
// each reference, defined when at least two items are Within; otherwise
// NaN.
type Variance struct {
	rowWriter
	acc sumAccum
	ref *interval.Record
}

// NewVariance returns a Variance visitor writing rows to out.
func NewVariance(out *bufio.Writer) *Variance { return &Variance{rowWriter: rowWriter{Out: out}} }

func (s *Variance) OnStart(ref *interval.Record) { s.ref = ref }
func (s *Variance) OnAdd(m *interval.Record)     { s.acc.add(m.Score) }
func (s *Variance) OnDelete(m *interval.Record)  { s.acc.remove(m.Score) }
func (s *Variance) OnDone() {
	v := NaN
	if s.acc.count >= 2 {
		v = s.acc.variance()
	}
	s.emit(s.ref, FormatValue(v))
}
func (s *Variance) OnPurge() {}
func (s *Variance) OnEnd()   {}

// StdDev emits the standard deviation of map-item scores Within each
// reference, defined when at least two items are Within; otherwise NaN.
type StdDev struct {
	rowWriter
	acc sumAccum
	ref *interval.Record
}

// NewStdDev returns a StdDev visitor writing rows to out.
func NewStdDev(out *bufio.Writer) *StdDev { return &StdDev{rowWriter: rowWriter{Out: out}} }

func (s *StdDev) OnStart(ref *interval.Record) { s.ref = ref }
func (s *StdDev) OnAdd(m *interval.Record)     { s.acc.add(m.Score) }
func (s *StdDev) OnDelete(m *interval.Record)  { s.acc.remove(m.Score) }
func (s *StdDev) OnDone() {
	v := NaN
	if s.acc.count >= 2 {
		v = math.Sqrt(s.acc.variance())
	}
	s.emit(s.ref, FormatValue(v))
}
func (s *StdDev) OnPurge() {}
func (s *StdDev) OnEnd()   {}

// CoeffVariation emits the coefficient of variation (stddev / mean) of
// map-item scores Within each reference, defined when at least two items
// are Within and the mean is nonzero; otherwise NaN.
type CoeffVariation struct {
	rowWriter
	acc sumAccum
	ref *interval.Record
}

// NewCoeffVariation returns a CoeffVariation visitor writing rows to out.
func NewCoeffVariation(out *bufio.Writer) *CoeffVariation {
	return &CoeffVariation{rowWriter: rowWriter{Out: out}}
}

func (s *CoeffVariation) OnStart(ref *interval.Record) { s.ref = ref }
func (s *CoeffVariation) OnAdd(m *interval.Record)     { s.acc.add(m.Score) }
func (s *CoeffVariation) OnDelete(m *interval.Record)  { s.acc.remove(m.Score) }
func (s *CoeffVariation) OnDone() {
	v := NaN
	if s.acc.count >= 2 && s.acc.mean() != 0 {
		v = math.Sqrt(s.acc.variance()) / s.acc.mean()
	}
	s.emit(s.ref, FormatValue(v))
}
func (s *CoeffVariation) OnPurge() {}
func (s *CoeffVariation) OnEnd()   {}

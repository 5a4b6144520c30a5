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

	"github.com/grailbio/bedtk/interval"
)

// The two weighted reducers keep window membership rather than running
// sums: their weights are overlap lengths against the current reference,
// which change as the reference advances even for items that stay in the
// window.

// WeightedMean emits Σ(overlap(map, ref) * map.Score) / ref.Length()
// across map-items Within each reference: a base-pair-weighted mean. NaN
// if none are Within.
type WeightedMean struct {
	rowWriter
	set recSet
	ref *interval.Record
}

// NewWeightedMean returns a WeightedMean visitor writing rows to out.
func NewWeightedMean(out *bufio.Writer) *WeightedMean {
	return &WeightedMean{rowWriter: rowWriter{Out: out}}
}

func (w *WeightedMean) OnStart(ref *interval.Record) { w.ref = ref }
func (w *WeightedMean) OnAdd(m *interval.Record)     { w.set.add(m) }
func (w *WeightedMean) OnDelete(m *interval.Record)  { w.set.remove(m) }

func (w *WeightedMean) OnDone() {
	v := NaN
	if len(w.set.recs) > 0 && w.ref.Length() > 0 {
		var num float64
		for _, m := range w.set.recs {
			num += float64(interval.Overlap(m, w.ref)) * m.Score
		}
		v = num / float64(w.ref.Length())
	}
	w.emit(w.ref, FormatValue(v))
}
func (w *WeightedMean) OnPurge() { w.set.clear() }
func (w *WeightedMean) OnEnd()   {}

// WeightedAverage emits
// Σ(overlap(ref,map)/ref.Length() * map.Score) / Σ(overlap(ref,map)/ref.Length())
// across map-items Within each reference: a coverage-fraction-weighted
// average. NaN if none are Within.
type WeightedAverage struct {
	rowWriter
	set recSet
	ref *interval.Record
}

// NewWeightedAverage returns a WeightedAverage visitor writing rows to
// out.
func NewWeightedAverage(out *bufio.Writer) *WeightedAverage {
	return &WeightedAverage{rowWriter: rowWriter{Out: out}}
}

func (w *WeightedAverage) OnStart(ref *interval.Record) { w.ref = ref }
func (w *WeightedAverage) OnAdd(m *interval.Record)     { w.set.add(m) }
func (w *WeightedAverage) OnDelete(m *interval.Record)  { w.set.remove(m) }

func (w *WeightedAverage) OnDone() {
	v := NaN
	if len(w.set.recs) > 0 && w.ref.Length() > 0 {
		var num, denom float64
		for _, m := range w.set.recs {
			frac := float64(interval.Overlap(w.ref, m)) / float64(w.ref.Length())
			num += frac * m.Score
			denom += frac
		}
		if denom > 0 {
			v = num / denom
		}
	}
	w.emit(w.ref, FormatValue(v))
}
func (w *WeightedAverage) OnPurge() { w.set.clear() }
func (w *WeightedAverage) OnEnd()   {}

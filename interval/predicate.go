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
package interval

import "github.com/grailbio/bedtk/bedtkerr"

// Classification is the three-valued result of a Predicate comparison.
type Classification int

const (
	// Before means the candidate sorts strictly before the reference
	// window and does not satisfy the predicate against it.
	Before Classification = iota
	// Within means the candidate satisfies the predicate against the
	// reference.
	Within
	// After means the candidate sorts strictly after the reference window
	// and does not satisfy the predicate against it; it may still satisfy
	// it against a later reference.
	After
)

// Predicate classifies a map-item against a reference. Classify must be
// pure and total; for a non-Within pair the Before/After side follows the
// sort order of the two records.
//
// Classify alone is not enough for the sweep driver to manage its active
// window: a record can fail the predicate against the current reference
// yet satisfy it against a later one (most visibly with the percent
// predicates, where the same overlap is a larger fraction of a
// later, shorter reference). Span carries the positional contract the
// driver needs: the half-open coordinate range on ref's chromosome a
// record must reach for the predicate to possibly classify it Within ref.
// Since references arrive in sort order, a record that has fallen
// entirely before Span(ref) can never be Within ref or any later
// reference, and one that starts at or past its end cannot be Within ref
// (but may be Within a later one).
type Predicate interface {
	// Classify returns m's classification against ref.
	Classify(m, ref *Record) Classification
	// Span returns the half-open [start, end) range of positions a
	// record must overlap for Classify(m, ref) to possibly be Within.
	Span(ref *Record) (start, end uint64)
	// Symmetric reports whether Classify(b, a) mirrors Classify(a, b)
	// (Before/After swapped, Within fixed). The single-stream sweep
	// requires a symmetric predicate, since the same stream plays both
	// roles.
	Symmetric() bool
}

func chromOrder(a, b *Record) Classification {
	if a.Chrom < b.Chrom {
		return Before
	}
	return After
}

// sortSide breaks a same-chromosome non-Within pair to Before or After
// by the sort order of m against ref.
func sortSide(m, ref *Record) Classification {
	if m.Less(ref) {
		return Before
	}
	return After
}

// Overlapping is Within iff the shared length between the two records is
// at least K, on the same chromosome. K may exceed a map-item's own
// length, in which case that item can never be Within; the sweep driver
// still carries such items through window bookkeeping without firing
// visitor callbacks for them.
type Overlapping struct {
	K uint64
}

// NewOverlapping constructs an Overlapping predicate. k == 0 means "any
// single position of overlap counts" and is always valid.
func NewOverlapping(k uint64) (Overlapping, error) {
	return Overlapping{K: k}, nil
}

func (p Overlapping) Classify(m, ref *Record) Classification {
	if m.Chrom != ref.Chrom {
		return chromOrder(m, ref)
	}
	ov := Overlap(m, ref)
	within := ov > 0
	if p.K > 0 {
		within = ov >= p.K
	}
	if within {
		return Within
	}
	return sortSide(m, ref)
}

func (p Overlapping) Span(ref *Record) (uint64, uint64) { return ref.Start, ref.End }

func (p Overlapping) Symmetric() bool { return true }

// Ranged is Within iff the two intervals' endpoints are within D positions
// of each other, treating the reference as padded by D on each side.
// Underflow near position 0 is clamped to 0.
type Ranged struct {
	D uint64
}

// NewRanged constructs a Ranged predicate.
func NewRanged(d uint64) (Ranged, error) {
	return Ranged{D: d}, nil
}

func (p Ranged) Classify(m, ref *Record) Classification {
	if m.Chrom != ref.Chrom {
		return chromOrder(m, ref)
	}
	lo, hi := p.Span(ref)
	if m.End > lo && m.Start < hi {
		return Within
	}
	return sortSide(m, ref)
}

func (p Ranged) Span(ref *Record) (uint64, uint64) {
	lo := uint64(0)
	if ref.Start > p.D {
		lo = ref.Start - p.D
	}
	return lo, ref.End + p.D
}

func (p Ranged) Symmetric() bool { return true }

// PercentDenom selects the denominator PercentOverlap divides the shared
// length by.
type PercentDenom int

const (
	// PercentReference divides by the reference's length.
	PercentReference PercentDenom = iota
	// PercentMapping divides by the map-item's length.
	PercentMapping
	// PercentEither is satisfied if either Reference or Mapping would be.
	PercentEither
	// PercentBoth requires both Reference and Mapping to be satisfied.
	PercentBoth
)

// PercentOverlap is Within iff the shared length divided by the named
// denominator is at least P. A zero-length denominator never matches.
type PercentOverlap struct {
	Denom PercentDenom
	P     float64
}

// NewPercentOverlap constructs a PercentOverlap predicate; p must be in
// (0, 1].
func NewPercentOverlap(denom PercentDenom, p float64) (PercentOverlap, error) {
	if p <= 0 || p > 1 {
		return PercentOverlap{}, &bedtkerr.ArgumentError{Reason: "percent-overlap fraction must be in (0, 1]"}
	}
	return PercentOverlap{Denom: denom, P: p}, nil
}

func (pr PercentOverlap) satisfies(ov float64, m, ref *Record) bool {
	refFrac := ref.Length() > 0 && ov/float64(ref.Length()) >= pr.P
	mapFrac := m.Length() > 0 && ov/float64(m.Length()) >= pr.P
	switch pr.Denom {
	case PercentReference:
		return refFrac
	case PercentMapping:
		return mapFrac
	case PercentEither:
		return refFrac || mapFrac
	case PercentBoth:
		return refFrac && mapFrac
	default:
		return false
	}
}

func (pr PercentOverlap) Classify(m, ref *Record) Classification {
	if m.Chrom != ref.Chrom {
		return chromOrder(m, ref)
	}
	ov := float64(Overlap(m, ref))
	if ov > 0 && pr.satisfies(ov, m, ref) {
		return Within
	}
	return sortSide(m, ref)
}

func (pr PercentOverlap) Span(ref *Record) (uint64, uint64) { return ref.Start, ref.End }

// Symmetric reports true for the Either and Both denominators, whose
// conditions are unchanged under argument exchange; Reference and Mapping
// swap roles when the arguments swap, so they are not symmetric.
func (pr PercentOverlap) Symmetric() bool {
	return pr.Denom == PercentEither || pr.Denom == PercentBoth
}

// Exact is Within iff chrom, start, and end all match.
type Exact struct{}

// NewExact constructs an Exact predicate.
func NewExact() Exact { return Exact{} }

func (Exact) Classify(m, ref *Record) Classification {
	if m.Chrom != ref.Chrom {
		return chromOrder(m, ref)
	}
	if m.Start == ref.Start && m.End == ref.End {
		return Within
	}
	return sortSide(m, ref)
}

func (Exact) Span(ref *Record) (uint64, uint64) { return ref.Start, ref.End }

func (Exact) Symmetric() bool { return true }

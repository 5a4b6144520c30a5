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
	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/interval"
	"github.com/grailbio/bedtk/sweep"
)

// Nearest-flanking ("closest features") doesn't fit the shared
// sweep.Visitor contract the rest of this package uses: it needs the
// closest map-item strictly before the reference simultaneously with the
// closest one strictly after it, which are exactly the items the generic
// driver has already evicted or holds only as its lookahead. So it runs
// its own small scan over the same sweep.Iterator contract, keeping two
// side-windows of its own.

// NearestOptions configures RunNearest.
type NearestOptions struct {
	// NoOverlaps excludes overlapping map-items from consideration
	// entirely: only the nearest non-overlapping left/right neighbors are
	// reported, even when a map-item overlaps the reference.
	NoOverlaps bool
}

// NearestResult is RunNearest's per-reference output. When the reference
// overlaps at least one map-item and NoOverlaps is false, that item
// (ties among overlapping items broken to the leftmost by sort order) is
// reported on both sides with distance 0. Otherwise Left and Right name
// the nearest non-overlapping neighbor on each side (nil when the
// reference has none on that side of its chromosome), with positive
// edge-to-edge distances; Closest names whichever of the two is nearer,
// ties broken left. The named records are only valid until emit returns.
type NearestResult struct {
	Ref                 *interval.Record
	Left, Right         *interval.Record
	LeftDist, RightDist int64
	Closest             *interval.Record
	ClosestDist         int64
}

// RunNearest scans ref and mp to completion (both sorted), calling emit
// once per reference record. Records are allocated from refArena and
// mapArena by the iterators and released here once no later reference
// can need them.
func RunNearest(ref, mp sweep.Iterator, opts NearestOptions, refArena, mapArena *arena.Arena, emit func(NearestResult) error) error {
	// lastBefore is the best left candidate seen so far: among the
	// map-items entirely before the current reference, the one whose End
	// is greatest (ties keep the earlier item, so equal distances break
	// left). win holds the map-items that overlap the current reference
	// or are still ahead of it on the same chromosome.
	var lastBefore *interval.Record
	var win []*interval.Record
	var peeked *interval.Record
	hasPeeked := false

	pull := func() (*interval.Record, bool, error) {
		if hasPeeked {
			r := peeked
			peeked = nil
			hasPeeked = false
			return r, true, nil
		}
		if mp.Scan() {
			return mp.Record(), true, nil
		}
		return nil, false, mp.Err()
	}
	stash := func(r *interval.Record) {
		peeked = r
		hasPeeked = true
	}
	noteLeft := func(m *interval.Record) {
		if lastBefore == nil {
			lastBefore = m
			return
		}
		if m.End > lastBefore.End {
			mapArena.Release(lastBefore)
			lastBefore = m
			return
		}
		mapArena.Release(m)
	}

	for ref.Scan() {
		r := ref.Record()

		if lastBefore != nil && lastBefore.Chrom != r.Chrom {
			mapArena.Release(lastBefore)
			lastBefore = nil
		}

		// Retire window items the reference has moved past: off-chromosome
		// items are released outright, same-chromosome ones become left
		// candidates.
		kept := win[:0]
		for _, m := range win {
			switch {
			case m.Chrom != r.Chrom:
				mapArena.Release(m)
			case m.End <= r.Start:
				noteLeft(m)
			default:
				kept = append(kept, m)
			}
		}
		win = kept

		// Advance the map stream up to the first item at or past r's end.
		for {
			m, ok, err := pull()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if m.Chrom < r.Chrom {
				mapArena.Release(m)
				continue
			}
			if m.Chrom > r.Chrom || m.Start >= r.End {
				stash(m)
				break
			}
			if m.End <= r.Start {
				noteLeft(m)
				continue
			}
			win = append(win, m)
		}

		var overlapping *interval.Record
		for _, m := range win {
			if interval.Overlap(m, r) > 0 {
				overlapping = m
				break
			}
		}

		res := NearestResult{Ref: r}
		if overlapping != nil && !opts.NoOverlaps {
			res.Left, res.Right, res.Closest = overlapping, overlapping, overlapping
		} else {
			if lastBefore != nil {
				res.Left = lastBefore
				res.LeftDist = interval.SepDistance(lastBefore, r)
			}
			right, rightDist := nearestRight(win, peeked, hasPeeked, r)
			res.Right, res.RightDist = right, rightDist
			res.Closest, res.ClosestDist = pickClosest(res.Left, res.LeftDist, res.Right, res.RightDist)
		}
		if err := emit(res); err != nil {
			return err
		}
		refArena.Release(r)
	}
	if err := ref.Err(); err != nil {
		return err
	}

	for _, m := range win {
		mapArena.Release(m)
	}
	if lastBefore != nil {
		mapArena.Release(lastBefore)
	}
	if hasPeeked {
		mapArena.Release(peeked)
	}
	for mp.Scan() {
		mapArena.Release(mp.Record())
	}
	return mp.Err()
}

// nearestRight returns the closest non-overlapping map-item starting at
// or past r's end: the first such item in the (sorted) window if the
// reference is nested under longer neighbors, else the stream lookahead.
func nearestRight(win []*interval.Record, peeked *interval.Record, hasPeeked bool, r *interval.Record) (*interval.Record, int64) {
	for _, m := range win {
		if m.Start >= r.End {
			return m, interval.SepDistance(r, m)
		}
	}
	if hasPeeked && peeked.Chrom == r.Chrom {
		return peeked, interval.SepDistance(r, peeked)
	}
	return nil, 0
}

// pickClosest breaks ties to the left.
func pickClosest(left *interval.Record, leftDist int64, right *interval.Record, rightDist int64) (*interval.Record, int64) {
	switch {
	case left == nil && right == nil:
		return nil, 0
	case left == nil:
		return right, rightDist
	case right == nil:
		return left, leftDist
	case rightDist < leftDist:
		return right, rightDist
	default:
		return left, leftDist
	}
}

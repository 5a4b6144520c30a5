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
package sweep

import (
	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/interval"
)

// windowItem is one entry in the active window. added tracks whether the
// visitor currently counts the record as a member: an item can sit in the
// window without being Within the current reference (a below-threshold
// overlap, or a record that is only in the window to take its own turn as
// a reference in the single-stream sweep), and whether it is Within can
// change from one reference to the next. The driver keeps added in sync
// via reconcile, firing OnAdd/OnDelete on every transition.
type windowItem struct {
	rec   *interval.Record
	added bool
}

// window is the deque the sweep driver maintains over the map stream,
// plus the single cached "one ahead" candidate the driver peeked at but
// could not yet place.
type window struct {
	items     []windowItem
	peeked    *interval.Record
	hasPeeked bool
}

// pull returns the next candidate record, preferring the cached lookahead
// over a fresh pull from it. ok is false at end of input; err is non-nil
// only on a genuine iterator error.
func (w *window) pull(it Iterator) (rec *interval.Record, ok bool, err error) {
	if w.hasPeeked {
		rec = w.peeked
		w.peeked = nil
		w.hasPeeked = false
		return rec, true, nil
	}
	if it.Scan() {
		return it.Record(), true, nil
	}
	return nil, false, it.Err()
}

// stash caches rec as the next pull's result.
func (w *window) stash(rec *interval.Record) {
	w.peeked = rec
	w.hasPeeked = true
}

// entirelyBefore reports whether rec has fallen entirely before the span
// [lo, _) of ref: no later reference can classify it Within, so it is
// safe to evict or drop.
func entirelyBefore(rec, ref *interval.Record, lo uint64) bool {
	if rec.Chrom != ref.Chrom {
		return rec.Chrom < ref.Chrom
	}
	return rec.End <= lo
}

// evict removes the leading run of items, at indices below limit, that
// are entirely before ref's span, firing OnDelete for each member item in
// ascending sort order and returning its slot to a. It returns the number
// of items removed. The scan stops at the first retained item: a long
// earlier interval can shield shorter, already-dead ones behind it, and
// those stay in the window (as non-members) until the shield itself
// falls.
func (w *window) evict(pred interval.Predicate, ref *interval.Record, limit int, v Visitor, a *arena.Arena) int {
	lo, _ := pred.Span(ref)
	n := 0
	for n < limit && entirelyBefore(w.items[n].rec, ref, lo) {
		n++
	}
	for i := 0; i < n; i++ {
		if w.items[i].added {
			v.OnDelete(w.items[i].rec)
		}
		a.Release(w.items[i].rec)
	}
	if n > 0 {
		w.items = append(w.items[:0], w.items[n:]...)
	}
	return n
}

// reconcile re-evaluates every window item's predicate membership against
// ref and brings the visitor's view in line: a delete pass (ascending)
// followed by an add pass, so the visitor sees all of a reference's
// OnDelete calls before any of its OnAdd calls. selfIdx, when >= 0, names
// the item that is ref itself (single-stream sweep); the reference is
// never presented to the visitor as its own map-item.
func (w *window) reconcile(pred interval.Predicate, ref *interval.Record, selfIdx int, v Visitor) {
	for i := range w.items {
		item := &w.items[i]
		if !item.added {
			continue
		}
		if i == selfIdx || pred.Classify(item.rec, ref) != interval.Within {
			v.OnDelete(item.rec)
			item.added = false
		}
	}
	for i := range w.items {
		item := &w.items[i]
		if item.added || i == selfIdx {
			continue
		}
		if pred.Classify(item.rec, ref) == interval.Within {
			v.OnAdd(item.rec)
			item.added = true
		}
	}
}

// extend pulls candidates until one starts at or past ref's span end (or
// on a later chromosome), which is stashed as the new lookahead. Each
// candidate reaching the span is appended to the window, with OnAdd fired
// iff it classifies Within ref; candidates entirely before the span are
// dropped immediately (map-items lying before the first reference's span,
// or in a gap between two references' spans).
func (w *window) extend(it Iterator, pred interval.Predicate, ref *interval.Record, v Visitor, a *arena.Arena) error {
	lo, hi := pred.Span(ref)
	for {
		rec, ok, err := w.pull(it)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if rec.Chrom != ref.Chrom {
			if rec.Chrom < ref.Chrom {
				a.Release(rec)
				continue
			}
			w.stash(rec)
			return nil
		}
		if rec.End <= lo {
			a.Release(rec)
			continue
		}
		if rec.Start >= hi {
			w.stash(rec)
			return nil
		}
		item := windowItem{rec: rec}
		if pred.Classify(rec, ref) == interval.Within {
			item.added = true
			v.OnAdd(rec)
		}
		w.items = append(w.items, item)
	}
}

// teardown empties the window, firing OnDelete for each still-member item
// in ascending order when withDeletes is set, and releasing every slot.
// The cached lookahead is left in place: it belongs to the next group (or
// to drain).
func (w *window) teardown(v Visitor, a *arena.Arena, withDeletes bool) {
	for i := range w.items {
		if withDeletes && w.items[i].added {
			v.OnDelete(w.items[i].rec)
		}
		a.Release(w.items[i].rec)
	}
	w.items = w.items[:0]
}

// drain releases every record still held by the window, including the
// cached lookahead, without firing callbacks. Used at sweep end: items
// still Within the final reference never hit a Before transition, yet the
// arena must balance by OnEnd.
func (w *window) drain(a *arena.Arena) {
	w.teardown(nil, a, false)
	if w.hasPeeked {
		a.Release(w.peeked)
		w.peeked = nil
		w.hasPeeked = false
	}
}

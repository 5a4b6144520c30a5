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
	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
)

// SweepSingle drives a single sorted stream against itself: each record
// in it plays the reference role exactly once (in stream order) while
// also being available as a map-item in the windows of neighboring
// references. The reference itself is never presented to the visitor as
// one of its own map-items. pred must be symmetric, since the same
// stream fills both roles. a is the arena the stream's iterator
// allocates records from; the driver releases each record exactly once.
func SweepSingle(it Iterator, pred interval.Predicate, v Visitor, a *arena.Arena) error {
	if !pred.Symmetric() {
		return &bedtkerr.ArgumentError{Reason: "SweepSingle requires a symmetric range predicate"}
	}
	w := &window{}
	cursor := 0
	first := true

	for {
		if cursor >= len(w.items) {
			// The window is out of references: tear it down (the
			// leftovers were Within the group's last reference and get
			// their deletes now, on behalf of no particular reference)
			// and start a fresh group from the next record.
			w.teardown(v, a, true)
			cursor = 0
			rec, ok, err := w.pull(it)
			if err != nil {
				return err
			}
			if !ok {
				v.OnEnd()
				return nil
			}
			if !first {
				v.OnPurge()
			}
			first = false
			w.items = append(w.items, windowItem{rec: rec})
			v.OnStart(rec)
			if err := w.extend(it, pred, rec, v, a); err != nil {
				return err
			}
			v.OnDone()
			cursor = 1
			continue
		}

		ref := w.items[cursor].rec
		v.OnStart(ref)
		cursor -= w.evict(pred, ref, cursor, v, a)
		w.reconcile(pred, ref, cursor, v)
		if err := w.extend(it, pred, ref, v, a); err != nil {
			return err
		}
		v.OnDone()
		cursor++
	}
}

// SweepPair drives a reference stream against a separate map stream: for
// each reference record, the visitor-visible window holds exactly the
// map-items classified Within it. refArena and mapArena back the two
// streams' records; a reference is released immediately after its
// OnDone, a map-item when it is evicted (or at teardown). If drainMap is
// set, once the reference stream is exhausted the map stream is fully
// consumed and released without further visitor callbacks, so a caller
// tallying unclaimed map rows by other means sees the true total read.
func SweepPair(ref, mp Iterator, pred interval.Predicate, v Visitor, refArena, mapArena *arena.Arena, drainMap bool) error {
	w := &window{}

	for ref.Scan() {
		r := ref.Record()

		// When every remaining window item has fallen entirely before
		// r's span, the active window empties with input remaining:
		// finish the old group's deletes and signal the gap with
		// OnPurge, both before r's OnStart.
		if len(w.items) > 0 {
			lo, _ := pred.Span(r)
			dead := true
			for i := range w.items {
				if !entirelyBefore(w.items[i].rec, r, lo) {
					dead = false
					break
				}
			}
			if dead {
				w.teardown(v, mapArena, true)
				v.OnPurge()
			}
		}

		v.OnStart(r)
		w.evict(pred, r, len(w.items), v, mapArena)
		w.reconcile(pred, r, -1, v)
		if err := w.extend(mp, pred, r, v, mapArena); err != nil {
			return err
		}
		v.OnDone()
		refArena.Release(r)
	}
	if err := ref.Err(); err != nil {
		return err
	}
	w.drain(mapArena)
	v.OnEnd()

	if drainMap {
		for mp.Scan() {
			mapArena.Release(mp.Record())
		}
		if err := mp.Err(); err != nil {
			return err
		}
	}
	return nil
}

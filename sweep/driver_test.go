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
package sweep_test

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
	"github.com/grailbio/bedtk/source"
	"github.com/grailbio/bedtk/sweep"
	"github.com/grailbio/bedtk/visitors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func newIterator(in string, a *arena.Arena) *source.Iterator {
	return source.NewIterator(strings.NewReader(in), a, "test.bed", "", source.Config{Limits: interval.DefaultLimits})
}

// eventLog records the visitor callback stream as printable events, so
// tests can assert the exact protocol the driver delivered.
type eventLog struct {
	events []string
}

func (l *eventLog) OnStart(ref *interval.Record) {
	l.events = append(l.events, "start "+ref.String())
}
func (l *eventLog) OnAdd(m *interval.Record) {
	l.events = append(l.events, "add "+m.String())
}
func (l *eventLog) OnDelete(m *interval.Record) {
	l.events = append(l.events, "del "+m.String())
}
func (l *eventLog) OnDone()  { l.events = append(l.events, "done") }
func (l *eventLog) OnPurge() { l.events = append(l.events, "purge") }
func (l *eventLog) OnEnd()   { l.events = append(l.events, "end") }

// protocolChecker enforces the callback-ordering contract: OnStart
// precedes a reference's adds and deletes, a reference's deletes all
// precede its adds, deletes arrive in ascending sort order, OnDone fires
// exactly once per OnStart, and OnEnd is final. It also tracks window
// membership so tests can compare it against a brute-force oracle.
type protocolChecker struct {
	t       *testing.T
	inRef   bool
	sawAdd  bool
	starts  int
	dones   int
	ended   bool
	lastDel *interval.Record
	members map[uint64]*interval.Record
	onDone  func(ref *interval.Record, members map[uint64]*interval.Record)
	ref     *interval.Record
}

func newProtocolChecker(t *testing.T, onDone func(*interval.Record, map[uint64]*interval.Record)) *protocolChecker {
	return &protocolChecker{t: t, members: map[uint64]*interval.Record{}, onDone: onDone}
}

func (c *protocolChecker) OnStart(ref *interval.Record) {
	require.False(c.t, c.ended, "OnStart after OnEnd")
	require.Equal(c.t, c.starts, c.dones, "OnStart before the previous OnDone")
	c.starts++
	c.inRef = true
	c.sawAdd = false
	c.lastDel = nil
	c.ref = ref
}

func (c *protocolChecker) OnAdd(m *interval.Record) {
	require.False(c.t, c.ended)
	require.True(c.t, c.inRef, "OnAdd outside a reference")
	c.sawAdd = true
	_, dup := c.members[m.Seq()]
	require.Falsef(c.t, dup, "OnAdd for an item already in the window: %s", m)
	c.members[m.Seq()] = copyRecord(m)
}

func (c *protocolChecker) OnDelete(m *interval.Record) {
	require.False(c.t, c.ended)
	if c.inRef {
		require.Falsef(c.t, c.sawAdd, "OnDelete after OnAdd within reference %s", c.ref)
	}
	if c.lastDel != nil {
		require.Truef(c.t, c.lastDel.Less(m) || c.lastDel.Equal(m), "OnDelete out of ascending order: %s then %s", c.lastDel, m)
	}
	c.lastDel = copyRecord(m)
	_, ok := c.members[m.Seq()]
	require.Truef(c.t, ok, "OnDelete for an item not in the window: %s", m)
	delete(c.members, m.Seq())
}

func (c *protocolChecker) OnDone() {
	require.False(c.t, c.ended)
	require.True(c.t, c.inRef)
	c.dones++
	if c.onDone != nil {
		c.onDone(c.ref, c.members)
	}
	c.inRef = false
	c.lastDel = nil
}

func (c *protocolChecker) OnPurge() {
	require.False(c.t, c.ended)
	require.False(c.t, c.inRef, "OnPurge inside a reference")
	require.Emptyf(c.t, c.members, "window not empty at OnPurge")
}

func (c *protocolChecker) OnEnd() {
	require.False(c.t, c.ended, "OnEnd twice")
	require.Equal(c.t, c.starts, c.dones)
	c.ended = true
}

func copyRecord(m *interval.Record) *interval.Record {
	cp := *m
	return &cp
}

func parseRows(t *testing.T, in string) []*interval.Record {
	t.Helper()
	var recs []*interval.Record
	for i, line := range strings.Split(strings.TrimSpace(in), "\n") {
		rec := &interval.Record{}
		require.NoError(t, interval.ParseInto(rec, "oracle", i+1, []byte(line), interval.DefaultLimits))
		recs = append(recs, rec)
	}
	return recs
}

func TestSingleStreamOverlapCount(t *testing.T) {
	in := "chr1\t10\t20\nchr1\t15\t25\nchr1\t30\t40\n"
	a := arena.New()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	count := visitors.NewCount(out)
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)

	it := newIterator(in, a)
	require.NoError(t, sweep.SweepSingle(it, pred, count, a))
	require.NoError(t, it.Err())
	require.NoError(t, count.Err())
	require.NoError(t, out.Flush())

	require.Equal(t,
		"chr1\t10\t20\t1\nchr1\t15\t25\t1\nchr1\t30\t40\t0\n",
		buf.String())
	expect.EQ(t, a.Live(), int64(0))
}

func TestSingleStreamEventOrder(t *testing.T) {
	in := "chr1\t10\t20\nchr1\t15\t25\nchr1\t30\t40\n"
	a := arena.New()
	log := &eventLog{}
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	require.NoError(t, sweep.SweepSingle(newIterator(in, a), pred, log, a))

	require.Equal(t, []string{
		"start chr1\t10\t20",
		"add chr1\t15\t25",
		"done",
		"start chr1\t15\t25",
		"del chr1\t15\t25",
		"add chr1\t10\t20",
		"done",
		"del chr1\t10\t20",
		"purge",
		"start chr1\t30\t40",
		"done",
		"end",
	}, log.events)
	expect.EQ(t, a.Live(), int64(0))
}

func TestPairSweepMean(t *testing.T) {
	refIn := "chr1\t0\t100\n"
	mapIn := "chr1\t10\t20\ta\t2.0\nchr1\t50\t60\tb\t4.0\nchr2\t0\t10\tc\t100.0\n"
	refArena, mapArena := arena.New(), arena.New()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	mean := visitors.NewMean(out)
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)

	require.NoError(t, sweep.SweepPair(newIterator(refIn, refArena), newIterator(mapIn, mapArena), pred, mean, refArena, mapArena, false))
	require.NoError(t, out.Flush())
	require.Equal(t, "chr1\t0\t100\t3\n", buf.String())
	expect.EQ(t, refArena.Live(), int64(0))
	expect.EQ(t, mapArena.Live(), int64(0))
}

func TestPairSweepPercentReferenceCount(t *testing.T) {
	refIn := "chr1\t0\t100\n"
	mapIn := "chr1\t0\t40\tm1\nchr1\t0\t49\tm2\nchr1\t0\t60\tm3\n"
	refArena, mapArena := arena.New(), arena.New()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	count := visitors.NewCount(out)
	pred, err := interval.NewPercentOverlap(interval.PercentReference, 0.5)
	require.NoError(t, err)

	require.NoError(t, sweep.SweepPair(newIterator(refIn, refArena), newIterator(mapIn, mapArena), pred, count, refArena, mapArena, false))
	require.NoError(t, out.Flush())
	require.Equal(t, "chr1\t0\t100\t1\n", buf.String())
	expect.EQ(t, refArena.Live(), int64(0))
	expect.EQ(t, mapArena.Live(), int64(0))
}

// A map-item can fail a percent predicate against one reference and
// satisfy it against a later one; the window must carry it across, not
// drop it at first sight.
func TestPairSweepItemBecomesWithinLater(t *testing.T) {
	refIn := "chr1\t55\t100\nchr1\t60\t160\n"
	mapIn := "chr1\t50\t150\tm\n"
	refArena, mapArena := arena.New(), arena.New()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	count := visitors.NewCount(out)
	pred, err := interval.NewPercentOverlap(interval.PercentMapping, 0.6)
	require.NoError(t, err)

	require.NoError(t, sweep.SweepPair(newIterator(refIn, refArena), newIterator(mapIn, mapArena), pred, count, refArena, mapArena, false))
	require.NoError(t, out.Flush())
	require.Equal(t, "chr1\t55\t100\t0\nchr1\t60\t160\t1\n", buf.String())
	expect.EQ(t, mapArena.Live(), int64(0))
}

// References shorter than the required overlap get an empty window and a
// plain OnStart/OnDone, while the stream keeps advancing for their
// longer neighbors.
func TestSingleStreamShortReferences(t *testing.T) {
	in := "chr1\t0\t100\nchr1\t40\t42\nchr1\t50\t150\n"
	a := arena.New()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	count := visitors.NewCount(out)
	pred, err := interval.NewOverlapping(5)
	require.NoError(t, err)

	it := newIterator(in, a)
	require.NoError(t, sweep.SweepSingle(it, pred, count, a))
	require.NoError(t, out.Flush())
	// (0,100) and (50,150) share 50 positions; (40,42) is too short to
	// ever satisfy the 5-position threshold in either direction.
	require.Equal(t,
		"chr1\t0\t100\t1\nchr1\t40\t42\t0\nchr1\t50\t150\t1\n",
		buf.String())
	expect.EQ(t, a.Live(), int64(0))
}

// Membership oracle: at every OnDone, the accumulated
// add/delete stream must equal the brute-force set of map-items
// classified Within the reference.
func TestPairSweepMembershipOracle(t *testing.T) {
	refIn := "chr1\t0\t30\nchr1\t20\t60\nchr1\t50\t90\nchr1\t200\t210\nchr2\t5\t25\n"
	mapIn := "chr1\t0\t10\nchr1\t5\t25\nchr1\t18\t22\nchr1\t25\t55\nchr1\t58\t120\nchr1\t205\t207\nchr2\t0\t30\nchr2\t40\t50\n"
	mapRecs := parseRows(t, mapIn)

	preds := []interval.Predicate{
		interval.Overlapping{K: 0},
		interval.Overlapping{K: 4},
		interval.Ranged{D: 10},
		interval.PercentOverlap{Denom: interval.PercentReference, P: 0.4},
		interval.PercentOverlap{Denom: interval.PercentMapping, P: 0.4},
		interval.Exact{},
	}
	for pi, pred := range preds {
		pred := pred
		t.Run(fmt.Sprintf("pred%d", pi), func(t *testing.T) {
			checker := newProtocolChecker(t, func(ref *interval.Record, members map[uint64]*interval.Record) {
				var want, got int
				for _, m := range mapRecs {
					if pred.Classify(m, ref) == interval.Within {
						want++
					}
				}
				for _, m := range members {
					require.Equalf(t, interval.Within, pred.Classify(m, ref),
						"window member %s is not Within ref %s", m, ref)
					got++
				}
				require.Equalf(t, want, got, "membership size at OnDone(%s)", ref)
			})
			refArena, mapArena := arena.New(), arena.New()
			require.NoError(t, sweep.SweepPair(newIterator(refIn, refArena), newIterator(mapIn, mapArena), pred, checker, refArena, mapArena, true))
			require.True(t, checker.ended)
			expect.EQ(t, checker.starts, 5)
			expect.EQ(t, refArena.Live(), int64(0))
			expect.EQ(t, mapArena.Live(), int64(0))
		})
	}
}

// Same oracle for the single-stream sweep: membership at OnDone(r) is
// every *other* record Within r.
func TestSingleSweepMembershipOracle(t *testing.T) {
	in := "chr1\t0\t30\nchr1\t5\t10\nchr1\t20\t60\nchr1\t50\t90\nchr1\t200\t210\nchr2\t5\t25\nchr2\t40\t50\n"
	recs := parseRows(t, in)

	preds := []interval.Predicate{
		interval.Overlapping{K: 0},
		interval.Overlapping{K: 6},
		interval.Ranged{D: 15},
		interval.PercentOverlap{Denom: interval.PercentBoth, P: 0.3},
		interval.Exact{},
	}
	for pi, pred := range preds {
		pred := pred
		t.Run(fmt.Sprintf("pred%d", pi), func(t *testing.T) {
			checker := newProtocolChecker(t, func(ref *interval.Record, members map[uint64]*interval.Record) {
				var want, got int
				for _, m := range recs {
					if m.Equal(ref) {
						continue
					}
					if pred.Classify(m, ref) == interval.Within {
						want++
					}
				}
				for range members {
					got++
				}
				require.Equalf(t, want, got, "membership size at OnDone(%s)", ref)
			})
			a := arena.New()
			require.NoError(t, sweep.SweepSingle(newIterator(in, a), pred, checker, a))
			require.True(t, checker.ended)
			expect.EQ(t, checker.starts, 7)
			expect.EQ(t, a.Live(), int64(0))
		})
	}
}

func TestPairSweepPurgeBetweenGroups(t *testing.T) {
	refIn := "chr1\t0\t10\nchr1\t100\t110\n"
	mapIn := "chr1\t5\t8\nchr1\t105\t108\n"
	refArena, mapArena := arena.New(), arena.New()
	log := &eventLog{}
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	require.NoError(t, sweep.SweepPair(newIterator(refIn, refArena), newIterator(mapIn, mapArena), pred, log, refArena, mapArena, false))
	require.Equal(t, []string{
		"start chr1\t0\t10",
		"add chr1\t5\t8",
		"done",
		"del chr1\t5\t8",
		"purge",
		"start chr1\t100\t110",
		"add chr1\t105\t108",
		"done",
		"end",
	}, log.events)
}

func TestSingleStreamRequiresSymmetricPredicate(t *testing.T) {
	a := arena.New()
	pred, err := interval.NewPercentOverlap(interval.PercentReference, 0.5)
	require.NoError(t, err)
	err = sweep.SweepSingle(newIterator("chr1\t0\t10\n", a), pred, &eventLog{}, a)
	require.Error(t, err)
	_, ok := err.(*bedtkerr.ArgumentError)
	require.Truef(t, ok, "want ArgumentError, got %T", err)
}

func TestEmptyInput(t *testing.T) {
	a := arena.New()
	log := &eventLog{}
	pred, err := interval.NewOverlapping(0)
	require.NoError(t, err)
	require.NoError(t, sweep.SweepSingle(newIterator("", a), pred, log, a))
	require.Equal(t, []string{"end"}, log.events)

	refArena, mapArena := arena.New(), arena.New()
	log2 := &eventLog{}
	require.NoError(t, sweep.SweepPair(newIterator("", refArena), newIterator("chr1\t0\t5\n", mapArena), pred, log2, refArena, mapArena, true))
	require.Equal(t, []string{"end"}, log2.events)
	expect.EQ(t, mapArena.Live(), int64(0))
}

func TestSweepWithNoVisitors(t *testing.T) {
	a := arena.New()
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	require.NoError(t, sweep.SweepSingle(newIterator("chr1\t0\t10\nchr1\t5\t20\n", a), pred, sweep.NewMultiVisitor(), a))
	expect.EQ(t, a.Live(), int64(0))
}

func TestMultiVisitorDispatchOrder(t *testing.T) {
	a := arena.New()
	l1, l2 := &eventLog{}, &eventLog{}
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	mv := sweep.NewMultiVisitor(l1, l2)
	require.NoError(t, sweep.SweepSingle(newIterator("chr1\t0\t10\nchr1\t5\t20\n", a), pred, mv, a))
	require.Equal(t, l1.events, l2.events)
	require.True(t, len(l1.events) > 0)
}

func TestSortOrderErrorPropagates(t *testing.T) {
	a := arena.New()
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	it := newIterator("chr1\t10\t20\nchr1\t5\t15\n", a)
	err = sweep.SweepSingle(it, pred, &eventLog{}, a)
	require.Error(t, err)
	_, ok := err.(*bedtkerr.SortOrderError)
	require.Truef(t, ok, "want SortOrderError, got %T", err)
}

// Scenario: N disjoint map intervals against one spanning reference.
// Every slot allocated must be released by the time the sweep ends.
func TestArenaBalanceLargeSweep(t *testing.T) {
	const n = 100000
	var mapIn strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&mapIn, "chr1\t%d\t%d\n", i*10, i*10+5)
	}
	refIn := fmt.Sprintf("chr1\t0\t%d\n", n*10)

	refArena, mapArena := arena.New(), arena.New()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	count := visitors.NewCount(out)
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	require.NoError(t, sweep.SweepPair(newIterator(refIn, refArena), newIterator(mapIn.String(), mapArena), pred, count, refArena, mapArena, false))
	require.NoError(t, out.Flush())
	require.Equal(t, fmt.Sprintf("chr1\t0\t%d\t%d\n", n*10, n), buf.String())
	expect.EQ(t, refArena.Live(), int64(0))
	expect.EQ(t, mapArena.Live(), int64(0))
}

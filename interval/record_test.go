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

import (
	"bufio"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) *Record {
	t.Helper()
	rec := &Record{}
	require.NoError(t, ParseInto(rec, "test.bed", 1, []byte(line), DefaultLimits))
	return rec
}

func TestParseFormatRoundTrip(t *testing.T) {
	lines := []string{
		"chr1\t10\t20",
		"chr1\t0\t1",
		"chr10\t100\t200\tid1",
		"chr2\t5\t15\tpeak\t2.0",
		"chr2\t5\t15\tpeak\t-3.5e2\t+",
		"chr2\t5\t15\tpeak\t4\t-\textra\tcolumns kept verbatim",
	}
	for _, line := range lines {
		rec := mustParse(t, line)
		var sb strings.Builder
		w := bufio.NewWriter(&sb)
		require.NoError(t, rec.Format(w, false))
		require.NoError(t, w.Flush())
		expect.EQ(t, sb.String(), line)
		expect.EQ(t, rec.String(), line)
	}
}

func TestParseFields(t *testing.T) {
	rec := mustParse(t, "chr2\t5\t15\tpeak\t2.5\t-\ttail text")
	expect.EQ(t, rec.Chrom, "chr2")
	expect.EQ(t, rec.Start, uint64(5))
	expect.EQ(t, rec.End, uint64(15))
	expect.EQ(t, rec.ID, "peak")
	expect.EQ(t, rec.Score, 2.5)
	expect.EQ(t, rec.HasScore, true)
	expect.EQ(t, rec.Strand, byte('-'))
	expect.EQ(t, rec.Tail, "tail text")
	expect.EQ(t, rec.Length(), uint64(10))
}

func TestParseSpaceLeniency(t *testing.T) {
	// A single space is accepted as a tab-equivalent in the first three
	// columns only.
	rec := mustParse(t, "chr1 10 20")
	expect.EQ(t, rec.Chrom, "chr1")
	expect.EQ(t, rec.Start, uint64(10))
	expect.EQ(t, rec.End, uint64(20))
}

func TestParseErrors(t *testing.T) {
	bad := []struct {
		line, reason string
	}{
		{"", "missing chromosome"},
		{"chr1", "missing start"},
		{"chr1\t10", "missing end"},
		{"chr1\tx10\t20", "non-digit start"},
		{"chr1\t10\t2x0", "non-digit end"},
		{"chr1\t-5\t20", "negative start"},
		{"chr1\t20\t10", "end before start"},
		{"chr1\t10\t10", "empty interval"},
		{"chr1\t10\t20\tid\tnotanumber", "non-numeric score"},
		{"chr1\t10\t20\tid\t1.2.3", "two decimal points"},
		{"chr1\t10\t20\tid\t1e5e5", "two exponents"},
		{"chr1\t10\t20\tid\t1-2", "interior sign"},
		{"chr1\t10\t20\tid\tinf", "inf spelling"},
		{"chr1\t10\t20\tid\t1.0\t*", "bad strand"},
		{"chr1\t10\t20\tid with space\t1.0", "id with space"},
	}
	for _, tc := range bad {
		rec := &Record{}
		err := ParseInto(rec, "bad.bed", 7, []byte(tc.line), DefaultLimits)
		require.Errorf(t, err, "expected a parse error: %s (%q)", tc.reason, tc.line)
		require.Containsf(t, err.Error(), "bad.bed:7", "error must carry file and line: %v", err)
	}
}

func TestParseLimits(t *testing.T) {
	cfg := Limits{MaxChromLen: 4, MaxIDLen: 3, MaxTailLen: 5, MaxCoord: 1000}
	rec := &Record{}
	expect.NoError(t, ParseInto(rec, "f", 1, []byte("chr1\t10\t20\tab\t1.0"), cfg))
	require.Error(t, ParseInto(rec, "f", 1, []byte("chr1xx\t10\t20"), cfg))
	require.Error(t, ParseInto(rec, "f", 1, []byte("chr1\t10\t2000"), cfg))
	require.Error(t, ParseInto(rec, "f", 1, []byte("chr1\t10\t20\tabcd\t1.0"), cfg))
	require.Error(t, ParseInto(rec, "f", 1, []byte("chr1\t10\t20\tab\t1.0\t+\tlong tail here"), cfg))
}

func TestLess(t *testing.T) {
	ordered := []*Record{
		{Chrom: "chr1", Start: 5, End: 10},
		{Chrom: "chr1", Start: 10, End: 20},
		{Chrom: "chr1", Start: 10, End: 25},
		{Chrom: "chr1", Start: 10, End: 25, Tail: "x"},
		{Chrom: "chr10", Start: 0, End: 1},
		{Chrom: "chr2", Start: 0, End: 1},
	}
	for i := 0; i < len(ordered); i++ {
		for j := 0; j < len(ordered); j++ {
			require.Equalf(t, i < j, ordered[i].Less(ordered[j]), "i=%d j=%d", i, j)
		}
	}
}

func TestOverlapHalfOpen(t *testing.T) {
	a := &Record{Chrom: "chr1", Start: 10, End: 20}
	b := &Record{Chrom: "chr1", Start: 20, End: 30}
	expect.EQ(t, Overlap(a, b), uint64(0))
	c := &Record{Chrom: "chr1", Start: 19, End: 30}
	expect.EQ(t, Overlap(a, c), uint64(1))
	d := &Record{Chrom: "chr2", Start: 10, End: 20}
	expect.EQ(t, Overlap(a, d), uint64(0))
	expect.EQ(t, Overlap(a, a), uint64(10))
}

func TestIntersectionIdempotent(t *testing.T) {
	a := &Record{Chrom: "chr1", Start: 10, End: 20}
	b := &Record{Chrom: "chr1", Start: 15, End: 30}
	once := Intersection(a, b)
	expect.EQ(t, once.Start, uint64(15))
	expect.EQ(t, once.End, uint64(20))
	twice := Intersection(&once, &once)
	expect.EQ(t, twice, once)

	disjoint := Intersection(a, &Record{Chrom: "chr1", Start: 40, End: 50})
	expect.EQ(t, disjoint.Length(), uint64(0))
}

func TestUnion(t *testing.T) {
	a := &Record{Chrom: "chr1", Start: 10, End: 20}
	b := &Record{Chrom: "chr1", Start: 15, End: 30}
	u := Union(a, b)
	expect.EQ(t, u.Start, uint64(10))
	expect.EQ(t, u.End, uint64(30))
}

func TestSepDistance(t *testing.T) {
	a := &Record{Chrom: "chr1", Start: 60, End: 90}
	r := &Record{Chrom: "chr1", Start: 100, End: 200}
	expect.EQ(t, SepDistance(a, r), int64(11))
	expect.EQ(t, SepDistance(r, a), int64(-11))

	adj := &Record{Chrom: "chr1", Start: 90, End: 100}
	expect.EQ(t, SepDistance(a, adj), int64(1))

	ov := &Record{Chrom: "chr1", Start: 80, End: 110}
	expect.EQ(t, SepDistance(a, ov), int64(0))

	other := &Record{Chrom: "chr2", Start: 0, End: 1}
	expect.EQ(t, SepDistance(a, other), SepInfinity)
}

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
	"strconv"
	"strings"

	"github.com/grailbio/bedtk/bedtkerr"
)

// Record is a single half-open genomic interval, [Start, End) on Chrom,
// plus the optional id/score/strand/tail tail the BED row grammar allows.
// seq is a monotonically increasing allocation sequence number assigned
// by the arena; it stands in for pointer identity when breaking value
// ties in the ordered containers several visitors maintain.
type Record struct {
	Chrom    string
	Start    uint64
	End      uint64
	ID       string
	Score    float64
	HasScore bool
	// ScoreText preserves the measurement column's original spelling, so
	// a parsed row formats back byte-identically ("2.0" stays "2.0").
	ScoreText string
	Strand    byte // '+', '-', or 0 if absent
	Tail      string

	seq uint64
}

// Seq returns the record's allocation sequence number.
func (r *Record) Seq() uint64 { return r.seq }

// SetSeq is called by package arena exactly once, at allocation time.
func (r *Record) SetSeq(seq uint64) { r.seq = seq }

// Reset clears a record to its zero value, save for seq, so a released
// slot can be reused by the arena without leaking the previous tenant's
// strings into a new allocation accidentally being mistaken for live data.
func (r *Record) Reset() {
	seq := r.seq
	*r = Record{}
	r.seq = seq
}

// Limits bounds the field lengths and coordinate range ParseInto accepts.
// It is constructed once by a collaborator (a cmd/* main, typically) and
// threaded through every source.Iterator it creates.
type Limits struct {
	MaxChromLen int
	MaxIDLen    int
	MaxTailLen  int
	MaxCoord    uint64
}

// DefaultLimits matches the bounds the original toolkit's C4 validating
// iterator enforces: generous enough for real genome assemblies, tight
// enough to catch a shifted-column parse as a fatal error instead of
// silently truncating it.
var DefaultLimits = Limits{
	MaxChromLen: 255,
	MaxIDLen:    255,
	MaxTailLen:  4096,
	MaxCoord:    1 << 48,
}

// Less implements the canonical row order: chrom as a byte string, then
// Start, then End, then Tail, ascending.
func (r *Record) Less(other *Record) bool {
	if r.Chrom != other.Chrom {
		return r.Chrom < other.Chrom
	}
	if r.Start != other.Start {
		return r.Start < other.Start
	}
	if r.End != other.End {
		return r.End < other.End
	}
	return r.Tail < other.Tail
}

// Equal reports whether r and other compare equal under the row order.
func (r *Record) Equal(other *Record) bool {
	return r.Chrom == other.Chrom && r.Start == other.Start && r.End == other.End && r.Tail == other.Tail
}

// Length returns End - Start.
func (r *Record) Length() uint64 { return r.End - r.Start }

// Overlap returns the number of positions a and b share, 0 if they are
// disjoint or on different chromosomes.
func Overlap(a, b *Record) uint64 {
	if a.Chrom != b.Chrom {
		return 0
	}
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Intersection returns the shared interval of a and b, or an empty
// interval (Start == End) on the higher of the two starts when they do not
// overlap.
func Intersection(a, b *Record) Record {
	if a.Chrom != b.Chrom {
		return Record{}
	}
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	if hi < lo {
		hi = lo
	}
	return Record{Chrom: a.Chrom, Start: lo, End: hi}
}

// Union returns the smallest interval spanning both a and b. Callers on
// different chromosomes get an empty result; the core never calls Union
// across chromosomes because the sweep never windows across them.
func Union(a, b *Record) Record {
	if a.Chrom != b.Chrom {
		return Record{}
	}
	lo := a.Start
	if b.Start < lo {
		lo = b.Start
	}
	hi := a.End
	if b.End > hi {
		hi = b.End
	}
	return Record{Chrom: a.Chrom, Start: lo, End: hi}
}

// SepInfinity is the sentinel SepDistance returns for cross-chromosome
// pairs.
const SepInfinity = int64(1) << 62

// SepDistance returns the signed edge-to-edge distance from a to b: 0
// when they overlap, otherwise the count of positions separating the
// last covered position of one from the first covered position of the
// other (so adjacent half-open intervals are 1 apart), positive when b
// is after a and negative when b is before a. Cross-chromosome pairs
// return SepInfinity.
func SepDistance(a, b *Record) int64 {
	if a.Chrom != b.Chrom {
		return SepInfinity
	}
	if Overlap(a, b) > 0 {
		return 0
	}
	if b.Start >= a.End {
		return int64(b.Start-a.End) + 1
	}
	return -(int64(a.Start-b.End) + 1)
}

// fieldScanner splits a BED row into up to 6 leading fields plus a
// verbatim tail. Fields 1-3 (chrom/start/end) accept a single space as a
// tab-equivalent delimiter for reader leniency; fields 4-6 require a
// tab, since the id/score/strand columns only appear in well-formed BED
// with the rest of the row already tab-separated. The scanner also
// reports where the tail begins so it can be preserved byte for byte.
type fieldScanner struct {
	line []byte
	pos  int
}

func (s *fieldScanner) next(allowSpace bool) (tok []byte, ok bool) {
	n := len(s.line)
	start := s.pos
	for start < n {
		c := s.line[start]
		if c == '\t' || (allowSpace && c == ' ') {
			start++
			continue
		}
		break
	}
	if start >= n {
		s.pos = start
		return nil, false
	}
	end := start
	for end < n && s.line[end] != '\t' && !(allowSpace && s.line[end] == ' ') {
		end++
	}
	s.pos = end
	return s.line[start:end], true
}

// ParseInto fills rec from a single tab-delimited BED row, enforcing
// the per-row grammar. file and lineNum are used only for error
// reporting. rec's previous contents are discarded.
func ParseInto(rec *Record, file string, lineNum int, line []byte, cfg Limits) error {
	rec.Reset()
	sc := &fieldScanner{line: line}

	chromTok, ok := sc.next(true)
	if !ok || len(chromTok) == 0 {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "missing chromosome field"}
	}
	if len(chromTok) > cfg.MaxChromLen {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "chromosome field exceeds length bound"}
	}
	rec.Chrom = string(chromTok)

	startTok, ok := sc.next(true)
	if !ok {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "missing start field"}
	}
	start, err := parseCoord(startTok, cfg.MaxCoord)
	if err != nil {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "start field: " + err.Error()}
	}
	rec.Start = start

	endTok, ok := sc.next(true)
	if !ok {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "missing end field"}
	}
	end, err := parseCoord(endTok, cfg.MaxCoord)
	if err != nil {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "end field: " + err.Error()}
	}
	rec.End = end
	if rec.End <= rec.Start {
		return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "end must be greater than start"}
	}

	if idTok, ok := sc.next(false); ok {
		if len(idTok) > cfg.MaxIDLen {
			return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "id field exceeds length bound"}
		}
		for _, c := range idTok {
			if c == ' ' {
				return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "id field must not contain spaces"}
			}
		}
		rec.ID = string(idTok)

		if scoreTok, ok := sc.next(false); ok {
			v, err := parseMeasurement(scoreTok)
			if err != nil {
				return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "score field: " + err.Error()}
			}
			rec.Score = v
			rec.HasScore = true
			rec.ScoreText = string(scoreTok)

			if strandTok, ok := sc.next(false); ok {
				if len(strandTok) != 1 || (strandTok[0] != '+' && strandTok[0] != '-') {
					return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "strand field must be + or -"}
				}
				rec.Strand = strandTok[0]
			}
		}
	}

	if sc.pos < len(line) {
		tailStart := sc.pos
		for tailStart < len(line) && line[tailStart] == '\t' {
			tailStart++
			break
		}
		tail := line[tailStart:]
		if len(tail) > cfg.MaxTailLen {
			return &bedtkerr.ParseError{File: file, Line: lineNum, Reason: "tail exceeds length bound"}
		}
		rec.Tail = string(tail)
	}
	return nil
}

func parseCoord(tok []byte, maxCoord uint64) (uint64, error) {
	if len(tok) == 0 {
		return 0, errReason("empty")
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return 0, errReason("must be purely decimal digits")
		}
	}
	v, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, errReason("out of range")
	}
	if v > maxCoord {
		return 0, errReason("exceeds configured coordinate bound")
	}
	return v, nil
}

// parseMeasurement validates and parses a floating-point literal with at
// most one decimal point, at most one exponent marker, and signs only in
// the leading position or immediately after an exponent marker.
func parseMeasurement(tok []byte) (float64, error) {
	s := string(tok)
	if s == "" {
		return 0, errReason("empty")
	}
	dots, exps := 0, 0
	for i, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c == '.':
			dots++
		case c == 'e' || c == 'E':
			exps++
		case c == '+' || c == '-':
			if i != 0 && s[i-1] != 'e' && s[i-1] != 'E' {
				return 0, errReason("sign in unexpected position")
			}
		default:
			// Also shuts out the "inf"/"nan" spellings strconv.ParseFloat
			// would otherwise accept.
			return 0, errReason("invalid character in numeric literal")
		}
	}
	if dots > 1 || exps > 1 {
		return 0, errReason("malformed numeric literal")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errReason("not a valid floating-point literal")
	}
	return v, nil
}

type parseReason string

func (r parseReason) Error() string { return string(r) }

func errReason(s string) error { return parseReason(s) }

// Format writes rec as a tab-delimited BED row, terminated by LF iff
// withNewline is set. Columns beyond what rec populates are omitted;
// Tail, when present, is written back out byte for byte.
func (r *Record) Format(w *bufio.Writer, withNewline bool) error {
	if _, err := w.WriteString(r.Chrom); err != nil {
		return err
	}
	if err := w.WriteByte('\t'); err != nil {
		return err
	}
	if _, err := w.WriteString(strconv.FormatUint(r.Start, 10)); err != nil {
		return err
	}
	if err := w.WriteByte('\t'); err != nil {
		return err
	}
	if _, err := w.WriteString(strconv.FormatUint(r.End, 10)); err != nil {
		return err
	}
	if r.ID != "" || r.HasScore || r.Strand != 0 {
		if err := w.WriteByte('\t'); err != nil {
			return err
		}
		if _, err := w.WriteString(r.ID); err != nil {
			return err
		}
	}
	if r.HasScore || r.Strand != 0 {
		if err := w.WriteByte('\t'); err != nil {
			return err
		}
		if _, err := w.WriteString(r.scoreString()); err != nil {
			return err
		}
	}
	if r.Strand != 0 {
		if err := w.WriteByte('\t'); err != nil {
			return err
		}
		if err := w.WriteByte(r.Strand); err != nil {
			return err
		}
	}
	if r.Tail != "" {
		if err := w.WriteByte('\t'); err != nil {
			return err
		}
		if _, err := w.WriteString(r.Tail); err != nil {
			return err
		}
	}
	if withNewline {
		return w.WriteByte('\n')
	}
	return nil
}

func (r *Record) scoreString() string {
	if r.ScoreText != "" {
		return r.ScoreText
	}
	return strconv.FormatFloat(r.Score, 'g', -1, 64)
}

// String returns the record's tab-delimited row, without a trailing
// newline.
func (r *Record) String() string {
	var b strings.Builder
	b.WriteString(r.Chrom)
	b.WriteByte('\t')
	b.WriteString(strconv.FormatUint(r.Start, 10))
	b.WriteByte('\t')
	b.WriteString(strconv.FormatUint(r.End, 10))
	if r.ID != "" || r.HasScore || r.Strand != 0 {
		b.WriteByte('\t')
		b.WriteString(r.ID)
	}
	if r.HasScore || r.Strand != 0 {
		b.WriteByte('\t')
		b.WriteString(r.scoreString())
	}
	if r.Strand != 0 {
		b.WriteByte('\t')
		b.WriteByte(r.Strand)
	}
	if r.Tail != "" {
		b.WriteByte('\t')
		b.WriteString(r.Tail)
	}
	return b.String()
}

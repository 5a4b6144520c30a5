// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package source implements the validating source iterator: it reads
// sorted interval text, plain or archived, enforces the sort-order and
// field-format invariants, and yields arena-backed interval.Record
// pointers in sort order.
package source

import (
	"bufio"
	"io"

	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
)

// lineSource is the minimal contract Iterator needs of its underlying
// byte source: *bufio.Scanner satisfies it directly (used for plain
// text), and archive.Reader satisfies it too (used for compressed
// archives), letting one Iterator implementation serve both input
// kinds.
type lineSource interface {
	Scan() bool
	Bytes() []byte
	Err() error
}

// Config bundles the validation knobs a source.Iterator applies.
type Config struct {
	Limits interval.Limits
	// RejectNested additionally rejects, as a fatal SortOrderError, a
	// record nested inside a still-open interval on the same chromosome
	// (prev.Start < cur.Start && cur.End < maxEndSoFar).
	RejectNested bool
}

// Iterator is a forward cursor over a sorted interval stream, satisfying
// sweep.Iterator structurally (Scan/Record/Err). ChromFilter, if
// non-empty, restricts output to a single chromosome: the iterator skips
// leading rows on other chromosomes and stops once Chrom changes away
// from the filter.
type Iterator struct {
	src    lineSource
	arena  *arena.Arena
	file   string
	cfg    Config
	filter string

	lineNum    int
	headerDone bool
	started    bool
	filterDone bool
	// prev is a value copy of the last emitted record: the record itself
	// belongs to the caller, who may release its slot back to the arena
	// (and see it recycled) before the next Scan.
	prev     interval.Record
	havePrev bool
	maxEnd   uint64

	cur *interval.Record
	err error
}

// NewIterator returns an Iterator reading rows from r, allocating records
// from a. file names the source for error messages. filter, if non-empty,
// restricts output to that single chromosome.
func NewIterator(r io.Reader, a *arena.Arena, file, filter string, cfg Config) *Iterator {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Iterator{
		src:    sc,
		arena:  a,
		file:   file,
		cfg:    cfg,
		filter: filter,
	}
}

// NewArchiveIterator returns an Iterator reading rows from an already
// chromosome-positioned archive.Reader (see package archive).
func NewArchiveIterator(ar lineSource, a *arena.Arena, file, filter string, cfg Config) *Iterator {
	return &Iterator{
		src:    ar,
		arena:  a,
		file:   file,
		cfg:    cfg,
		filter: filter,
	}
}

// isComment reports whether line is a UCSC-style header line
// (track/browser/#/@), permitted only before the first data row.
func isComment(line []byte) bool {
	if len(line) == 0 {
		return false
	}
	switch line[0] {
	case '#', '@':
		return true
	}
	return hasPrefix(line, "track") || hasPrefix(line, "browser")
}

func hasPrefix(line []byte, prefix string) bool {
	if len(line) < len(prefix) {
		return false
	}
	return string(line[:len(prefix)]) == prefix
}

// Scan advances the iterator to the next validated record, returning
// false at EOF or on a fatal error (use Err to tell them apart).
func (it *Iterator) Scan() bool {
	if it.err != nil || it.filterDone {
		return false
	}
	for it.src.Scan() {
		it.lineNum++
		line := it.src.Bytes()
		if len(line) == 0 {
			continue
		}
		if !it.headerDone {
			if isComment(line) {
				continue
			}
			it.headerDone = true
		}

		rec := it.arena.Allocate()
		if err := interval.ParseInto(rec, it.file, it.lineNum, line, it.cfg.Limits); err != nil {
			it.arena.Release(rec)
			it.err = err
			return false
		}

		if it.filter != "" {
			if rec.Chrom != it.filter {
				if it.started {
					// We've already emitted rows for the filtered
					// chromosome; a change away from it ends the scan.
					it.arena.Release(rec)
					it.filterDone = true
					return false
				}
				it.arena.Release(rec)
				continue
			}
		}

		if err := it.checkOrder(rec); err != nil {
			it.arena.Release(rec)
			it.err = err
			return false
		}

		it.started = true
		it.prev = *rec
		it.havePrev = true
		it.cur = rec
		return true
	}
	if err := it.src.Err(); err != nil {
		it.err = &bedtkerr.IoError{Path: it.file, Reason: err.Error()}
	}
	return false
}

func (it *Iterator) checkOrder(rec *interval.Record) error {
	if !it.havePrev {
		it.maxEnd = rec.End
		return nil
	}
	if rec.Chrom == it.prev.Chrom {
		if !it.prev.Less(rec) {
			return &bedtkerr.SortOrderError{File: it.file, Line: it.lineNum, Reason: "row is not strictly greater than its predecessor"}
		}
		if it.cfg.RejectNested && it.prev.Start < rec.Start && rec.End < it.maxEnd {
			return &bedtkerr.SortOrderError{File: it.file, Line: it.lineNum, Reason: "nested interval"}
		}
		if rec.End > it.maxEnd {
			it.maxEnd = rec.End
		}
	} else {
		if rec.Chrom < it.prev.Chrom {
			return &bedtkerr.SortOrderError{File: it.file, Line: it.lineNum, Reason: "chromosome out of order"}
		}
		it.maxEnd = rec.End
	}
	return nil
}

// Record returns the record most recently made current by Scan.
func (it *Iterator) Record() *interval.Record { return it.cur }

// Err returns the first fatal error encountered, if any.
func (it *Iterator) Err() error { return it.err }

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
package source

import (
	"bufio"
	"io"

	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/bedtkerr"
)

// NewSeekableIterator builds an Iterator restricted to chrom, positioning
// rs at the first record of that chromosome via binary search over byte
// offsets before scanning begins. Non-seekable sources should use
// NewIterator directly, which falls back to a linear skip of leading
// non-matching rows.
func NewSeekableIterator(rs io.ReadSeeker, size int64, a *arena.Arena, file, chrom string, cfg Config) (*Iterator, error) {
	off, err := seekChromosome(rs, size, chrom)
	if err != nil {
		return nil, err
	}
	if _, err := rs.Seek(off, io.SeekStart); err != nil {
		return nil, &bedtkerr.IoError{Path: file, Reason: err.Error()}
	}
	return NewIterator(rs, a, file, chrom, cfg), nil
}

// seekChromosome binary-searches [0, size) for the smallest byte offset
// at or after which every row's chromosome is >= chrom, then rewinds to
// the start of the line containing that offset.
func seekChromosome(rs io.ReadSeeker, size int64, chrom string) (int64, error) {
	lo, hi := int64(0), size
	for lo < hi {
		mid := lo + (hi-lo)/2
		c, err := lineChromAt(rs, mid, size)
		if err != nil {
			return 0, err
		}
		if c == "" || c >= chrom {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return rewindToLineStart(rs, lo)
}

// lineChromAt returns the chromosome field of the line containing byte
// offset pos (a newline byte belongs to the line it ends), or "" when
// that line starts at or past size.
func lineChromAt(rs io.ReadSeeker, pos, size int64) (string, error) {
	start, err := rewindToLineStart(rs, pos)
	if err != nil {
		return "", err
	}
	if start >= size {
		return "", nil
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return "", &bedtkerr.IoError{Reason: err.Error()}
	}
	r := bufio.NewReader(rs)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return firstField([]byte(line)), nil
}

// rewindToLineStart returns the offset of the first byte after the
// newline preceding pos, or 0 if pos is already at or before the first
// line.
func rewindToLineStart(rs io.ReadSeeker, pos int64) (int64, error) {
	if pos <= 0 {
		return 0, nil
	}
	const chunk = 4096
	cur := pos
	buf := make([]byte, chunk)
	for cur > 0 {
		readLen := int64(chunk)
		if readLen > cur {
			readLen = cur
		}
		start := cur - readLen
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return 0, &bedtkerr.IoError{Reason: err.Error()}
		}
		n, err := io.ReadFull(rs, buf[:readLen])
		if err != nil && err != io.ErrUnexpectedEOF {
			return 0, &bedtkerr.IoError{Reason: err.Error()}
		}
		for i := n - 1; i >= 0; i-- {
			if buf[i] == '\n' {
				return start + int64(i) + 1, nil
			}
		}
		cur = start
	}
	return 0, nil
}

// firstField pulls the chromosome field out of a raw line during binary
// search, before full validation is meaningful.
func firstField(line []byte) string {
	n := len(line)
	i := 0
	for i < n && line[i] <= ' ' {
		i++
	}
	start := i
	for i < n && line[i] > ' ' {
		i++
	}
	return string(line[start:i])
}

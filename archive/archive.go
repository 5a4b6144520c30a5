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

// Package archive implements the compressed, chromosome-indexed
// container a source.Iterator may open instead of plain text. GzipReader
// is the concrete container: it satisfies the sorted-rows,
// line-at-a-time, seek-to-chromosome contract over a gzip stream.
package archive

import (
	"bufio"
	"io"

	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/klauspost/compress/gzip"
)

// Reader is the contract the core requires of any archive
// implementation: line-at-a-time decoding plus seek-to-chromosome.
type Reader interface {
	// Scan advances to the next line, returning false at EOF or error.
	Scan() bool
	// Bytes returns the current line, without its trailing newline.
	Bytes() []byte
	// SeekChromosome positions the reader so the next Scan yields the
	// first row of name. GzipReader always returns nil here; when name
	// isn't present, its Scan yields no rows.
	SeekChromosome(name string) error
	// Err returns the first read error encountered, if any.
	Err() error
	// Close releases the underlying resource.
	Close() error
}

// GzipReader implements Reader over a gzip-compressed byte stream.
// Chromosome seeking is implemented by a single linear pass, since gzip
// streams aren't byte-addressable the way a plain file is.
type GzipReader struct {
	rc     io.ReadCloser
	gz     *gzip.Reader
	sc     *bufio.Scanner
	filter string
	done   bool
}

// NewGzipReader opens a gzip archive from r. r is closed by Close.
func NewGzipReader(r io.ReadCloser) (*GzipReader, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, &bedtkerr.IoError{Reason: "not a gzip stream: " + err.Error()}
	}
	return &GzipReader{
		rc: r,
		gz: gz,
		sc: bufio.NewScanner(gz),
	}, nil
}

// SeekChromosome arranges for Scan to skip rows until it reaches one on
// name (a linear scan, since a gzip stream has no random access).
func (g *GzipReader) SeekChromosome(name string) error {
	g.filter = name
	return nil
}

func (g *GzipReader) firstField(line []byte) string {
	i := 0
	for i < len(line) && line[i] > ' ' {
		i++
	}
	return string(line[:i])
}

// Scan advances to the next line matching the chromosome filter (if any
// was set via SeekChromosome), returning false at EOF, once the filtered
// chromosome has been passed, or on a read error.
func (g *GzipReader) Scan() bool {
	if g.done {
		return false
	}
	for g.sc.Scan() {
		line := g.sc.Bytes()
		if g.filter == "" {
			return true
		}
		chrom := g.firstField(line)
		if chrom == g.filter {
			return true
		}
		if chrom > g.filter {
			g.done = true
			return false
		}
	}
	return false
}

// Bytes returns the line most recently made current by Scan.
func (g *GzipReader) Bytes() []byte { return g.sc.Bytes() }

// Err returns the first read error encountered, if any.
func (g *GzipReader) Err() error { return g.sc.Err() }

// Close closes both the gzip reader and the underlying stream.
func (g *GzipReader) Close() error {
	gerr := g.gz.Close()
	if err := g.rc.Close(); err != nil {
		return err
	}
	return gerr
}

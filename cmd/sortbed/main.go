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

/*
sortbed takes interval rows in any order and produces a stream in the
sort order the sweep core's source iterator requires. Batches up to
-max-mem are sorted in memory; larger inputs spill sorted,
gzip-compressed batches to temp files and merge them through an
llrb.Tree of shard cursors. With -check-sort it validates order only,
emitting nothing and exiting nonzero on the first violation.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bedtk/interval"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

var (
	maxMem    = flag.String("max-mem", "256M", "Approximate in-memory batch size before spilling to a temp file; suffixes K, M, G accepted")
	checkSort = flag.Bool("check-sort", false, "Verify the input is already sorted instead of sorting it; exit nonzero on the first violation")
	tempDir   = flag.String("temp-dir", "", "Directory for spilled batch files (default os.TempDir())")
	output    = flag.String("out", "", "Output path (default stdout)")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [input]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	in := os.Stdin
	inName := "<stdin>"
	if flag.NArg() > 1 {
		log.Fatalf("at most one input path expected, got %v", flag.Args())
	}
	if flag.NArg() == 1 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer f.Close()
		in = f
		inName = flag.Arg(0)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)

	var err error
	if *checkSort {
		err = checkSorted(in, inName)
	} else {
		budget, perr := parseMemSize(*maxMem)
		if perr != nil {
			log.Fatalf("%v", perr)
		}
		err = externalSort(in, inName, bw, budget, *tempDir)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := bw.Flush(); err != nil {
		log.Fatalf("%v", err)
	}
}

func parseMemSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty -max-mem")
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid -max-mem %q", *maxMem)
	}
	return n * mult, nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return sc
}

// checkSorted reads rows from in and fails on the first pair not
// satisfying interval.Record.Less. It emits nothing.
func checkSorted(in io.Reader, name string) error {
	sc := newLineScanner(in)
	var prev interval.Record
	havePrev := false
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec interval.Record
		if err := interval.ParseInto(&rec, name, lineNum, line, interval.DefaultLimits); err != nil {
			return err
		}
		if havePrev && !prev.Less(&rec) {
			return fmt.Errorf("%s:%d: not sorted: row does not sort strictly after its predecessor", name, lineNum)
		}
		prev = rec
		havePrev = true
	}
	return sc.Err()
}

// sortableRow pairs a parsed record (for ordering) with its original text
// (preserved byte-for-byte on output, including any tail columns the
// parser didn't need to interpret).
type sortableRow struct {
	rec  interval.Record
	line string
}

func sortBatch(batch []sortableRow) {
	sort.Slice(batch, func(i, j int) bool { return batch[i].rec.Less(&batch[j].rec) })
}

func externalSort(in io.Reader, inName string, out *bufio.Writer, memBudget int64, tempDir string) error {
	sc := newLineScanner(in)

	var batch []sortableRow
	var batchBytes int64
	var shardPaths []string
	defer func() {
		for _, p := range shardPaths {
			os.Remove(p)
		}
	}()
	lineNum := 0

	flushBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		sortBatch(batch)
		path, err := writeShard(batch, tempDir)
		if err != nil {
			return err
		}
		shardPaths = append(shardPaths, path)
		batch = nil
		batchBytes = 0
		return nil
	}

	for sc.Scan() {
		lineNum++
		line := sc.Text()
		if line == "" {
			continue
		}
		var rec interval.Record
		if err := interval.ParseInto(&rec, inName, lineNum, []byte(line), interval.DefaultLimits); err != nil {
			return err
		}
		batch = append(batch, sortableRow{rec: rec, line: line})
		batchBytes += int64(len(line)) + 1
		if memBudget > 0 && batchBytes >= memBudget {
			if err := flushBatch(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	if len(shardPaths) == 0 {
		// Entire input fit in one in-memory batch: sort and emit
		// directly, no temp files needed.
		sortBatch(batch)
		for _, row := range batch {
			if err := writeLine(out, row.line); err != nil {
				return err
			}
		}
		return nil
	}
	if err := flushBatch(); err != nil {
		return err
	}
	return mergeShards(shardPaths, out)
}

func writeLine(out *bufio.Writer, line string) error {
	if _, err := out.WriteString(line); err != nil {
		return err
	}
	return out.WriteByte('\n')
}

// writeShard spills one sorted batch to a gzip-compressed temp file.
func writeShard(batch []sortableRow, tempDir string) (path string, err error) {
	f, err := ioutil.TempFile(tempDir, "sortbed-*.shard.gz")
	if err != nil {
		return "", errors.Wrap(err, "creating spill shard")
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()
	defer f.Close()
	gz := gzip.NewWriter(f)
	bw := bufio.NewWriter(gz)
	for _, row := range batch {
		if err := writeLine(bw, row.line); err != nil {
			return "", errors.Wrapf(err, "writing spill shard %s", f.Name())
		}
	}
	if err := bw.Flush(); err != nil {
		return "", errors.Wrapf(err, "writing spill shard %s", f.Name())
	}
	if err := gz.Close(); err != nil {
		return "", errors.Wrapf(err, "closing spill shard %s", f.Name())
	}
	return f.Name(), nil
}

// shardLeaf is one spilled, already-sorted shard's read cursor, ordered
// by its current record; mergeShards keeps one llrb.Tree of these and
// repeatedly pulls the minimum. The tree tends to keep a hot shard at
// its minimum across many rows, which beats a heap when shards hold
// long sorted runs.
type shardLeaf struct {
	seq  int
	path string
	f    *os.File
	gz   *gzip.Reader
	sc   *bufio.Scanner
	rec  interval.Record
	line string
}

func newShardLeaf(seq int, path string) (*shardLeaf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening spill shard %s", path)
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "opening spill shard %s", path)
	}
	leaf := &shardLeaf{seq: seq, path: path, f: f, gz: gz, sc: newLineScanner(gz)}
	if err := leaf.advance(); err != nil {
		return nil, err
	}
	if leaf.line == "" {
		leaf.close()
		return nil, nil
	}
	return leaf, nil
}

// advance reads the leaf's next line; leaf.line is left empty once the
// shard is exhausted.
func (l *shardLeaf) advance() error {
	if !l.sc.Scan() {
		l.line = ""
		if err := l.sc.Err(); err != nil {
			return errors.Wrapf(err, "reading spill shard %s", l.path)
		}
		return nil
	}
	l.line = l.sc.Text()
	l.rec = interval.Record{}
	if err := interval.ParseInto(&l.rec, l.path, 0, []byte(l.line), interval.DefaultLimits); err != nil {
		return err
	}
	return nil
}

func (l *shardLeaf) close() {
	l.gz.Close()
	l.f.Close()
}

func (l *shardLeaf) Compare(other llrb.Comparable) int {
	o := other.(*shardLeaf)
	if l.rec.Less(&o.rec) {
		return -1
	}
	if o.rec.Less(&l.rec) {
		return 1
	}
	return l.seq - o.seq
}

func mergeShards(paths []string, out *bufio.Writer) error {
	leafs := llrb.Tree{}
	var opened []*shardLeaf
	defer func() {
		for _, l := range opened {
			l.close()
		}
	}()
	for i, p := range paths {
		leaf, err := newShardLeaf(i, p)
		if err != nil {
			return err
		}
		if leaf != nil {
			leafs.Insert(leaf)
			opened = append(opened, leaf)
		}
	}

	for leafs.Len() > 0 {
		var top *shardLeaf
		leafs.Do(func(item llrb.Comparable) bool {
			top = item.(*shardLeaf)
			return true
		})
		if err := writeLine(out, top.line); err != nil {
			return err
		}
		leafs.DeleteMin()
		if err := top.advance(); err != nil {
			return err
		}
		if top.line != "" {
			leafs.Insert(top)
		}
	}
	return nil
}

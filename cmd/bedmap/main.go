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
bedmap picks a range predicate and a statistical or set-algebra visitor
by flag and drives them against one or two sorted interval files via the
sweep core. With -parallelism > 1 and regular (seekable) input files, it
fans the sweep out one goroutine per chromosome, each with fully
disjoint state, and reassembles the per-chromosome output in input order
once every worker completes.
*/
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/bedtkerr"
	"github.com/grailbio/bedtk/interval"
	"github.com/grailbio/bedtk/source"
	"github.com/grailbio/bedtk/sweep"
	"github.com/grailbio/bedtk/visitors"
)

var (
	op           = flag.String("op", "count", "Visitor to apply: sum, mean, var, stddev, cv, count, indicator, min, max, median, kth, kth-avg, mad, trimmed-mean, echo, intersect, wmean, wavg")
	quantile     = flag.Float64("quantile", 0.5, "Quantile in (0,1] for -op=kth or -op=kth-avg")
	mult         = flag.Float64("mult", 1, "Scale factor for -op=mad")
	trimLo       = flag.Float64("trim-lo", 0.1, "Lower trim fraction for -op=trimmed-mean")
	trimHi       = flag.Float64("trim-hi", 0.1, "Upper trim fraction for -op=trimmed-mean")
	overlapped   = flag.Int64("overlapped", -1, "Overlapping(K) predicate: minimum shared length; K=0 means any overlap")
	ranged       = flag.Int64("ranged", -1, "Ranged(D) predicate: pad each reference by D positions")
	percent      = flag.Float64("percent", -1, "PercentOverlap(denom, P) predicate: fraction in (0,1]")
	percentDenom = flag.String("percent-denom", "reference", "Denominator for -percent: reference, mapping, either, both")
	exact        = flag.Bool("exact", false, "Exact predicate: chrom/start/end must match exactly")
	parallelism  = flag.Int("parallelism", 1, "Number of chromosomes to process concurrently; 0 = runtime.NumCPU(); >1 requires seekable (regular file) inputs")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] refpath [mappath]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "If mappath is omitted, refpath plays both reference and map roles (requires a symmetric predicate).\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	if flag.NArg() != 1 && flag.NArg() != 2 {
		log.Fatalf("expected refpath [mappath], got %v", flag.Args())
	}

	pred, err := buildPredicate()
	if err != nil {
		log.Fatalf("%v", err)
	}

	refPath := flag.Arg(0)
	mapPath := refPath
	single := true
	if flag.NArg() == 2 {
		mapPath = flag.Arg(1)
		single = false
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	nWorkers := *parallelism
	if nWorkers == 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > 1 {
		if err := runParallel(refPath, mapPath, single, pred, nWorkers, out); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx := vcontext.Background()
	refReader, refClose, err := openInput(ctx, refPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer refClose()

	if single {
		if err := runSingle(refReader, refPath, pred, out); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	mapReader, mapClose, err := openInput(ctx, mapPath)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer mapClose()
	if err := runPair(refReader, refPath, mapReader, mapPath, pred, out); err != nil {
		log.Fatalf("%v", err)
	}
}

func openInput(ctx context.Context, path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return f.Reader(ctx), func() { f.Close(ctx) }, nil // nolint: errcheck
}

func buildPredicate() (interval.Predicate, error) {
	n := 0
	if *overlapped >= 0 {
		n++
	}
	if *ranged >= 0 {
		n++
	}
	if *percent >= 0 {
		n++
	}
	if *exact {
		n++
	}
	if n > 1 {
		return nil, &bedtkerr.UsageError{Reason: "at most one of -overlapped, -ranged, -percent, -exact may be given"}
	}
	switch {
	case *ranged >= 0:
		return interval.NewRanged(uint64(*ranged))
	case *percent >= 0:
		denom, err := parseDenom(*percentDenom)
		if err != nil {
			return nil, err
		}
		return interval.NewPercentOverlap(denom, *percent)
	case *exact:
		return interval.NewExact(), nil
	default:
		k := uint64(0)
		if *overlapped > 0 {
			k = uint64(*overlapped)
		}
		return interval.NewOverlapping(k)
	}
}

func parseDenom(s string) (interval.PercentDenom, error) {
	switch strings.ToLower(s) {
	case "reference", "ref":
		return interval.PercentReference, nil
	case "mapping", "map":
		return interval.PercentMapping, nil
	case "either":
		return interval.PercentEither, nil
	case "both":
		return interval.PercentBoth, nil
	default:
		return 0, &bedtkerr.UsageError{Reason: fmt.Sprintf("unknown -percent-denom %q", s)}
	}
}

func buildVisitor(out *bufio.Writer) (sweep.Visitor, error) {
	switch *op {
	case "sum":
		return visitors.NewSum(out), nil
	case "mean":
		return visitors.NewMean(out), nil
	case "var":
		return visitors.NewVariance(out), nil
	case "stddev":
		return visitors.NewStdDev(out), nil
	case "cv":
		return visitors.NewCoeffVariation(out), nil
	case "count":
		return visitors.NewCount(out), nil
	case "indicator":
		return visitors.NewIndicator(out), nil
	case "min":
		return visitors.NewMin(out), nil
	case "max":
		return visitors.NewMax(out), nil
	case "median":
		return visitors.NewMedian(out), nil
	case "kth":
		return visitors.NewRollingKth(*quantile, out)
	case "kth-avg":
		return visitors.NewRollingKthAverage(*quantile, out)
	case "mad":
		return visitors.NewMedianAbsoluteDeviation(*mult, out)
	case "trimmed-mean":
		return visitors.NewTrimmedMean(*trimLo, *trimHi, out)
	case "echo":
		return visitors.NewOverlapEcho(out), nil
	case "intersect":
		return visitors.NewIntersection(out), nil
	case "wmean":
		return visitors.NewWeightedMean(out), nil
	case "wavg":
		return visitors.NewWeightedAverage(out), nil
	default:
		return nil, &bedtkerr.UsageError{Reason: fmt.Sprintf("unknown -op %q", *op)}
	}
}

func runSingle(r io.Reader, path string, pred interval.Predicate, out *bufio.Writer) error {
	a := arena.New()
	v, err := buildVisitor(out)
	if err != nil {
		return err
	}
	it := source.NewIterator(r, a, path, "", source.Config{Limits: interval.DefaultLimits})
	if err := sweep.SweepSingle(it, pred, v, a); err != nil {
		return err
	}
	if it.Err() != nil {
		return it.Err()
	}
	if e, ok := v.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

func runPair(refR io.Reader, refPath string, mapR io.Reader, mapPath string, pred interval.Predicate, out *bufio.Writer) error {
	refArena, mapArena := arena.New(), arena.New()
	v, err := buildVisitor(out)
	if err != nil {
		return err
	}
	refIt := source.NewIterator(refR, refArena, refPath, "", source.Config{Limits: interval.DefaultLimits})
	mapIt := source.NewIterator(mapR, mapArena, mapPath, "", source.Config{Limits: interval.DefaultLimits})
	if err := sweep.SweepPair(refIt, mapIt, pred, v, refArena, mapArena, false); err != nil {
		return err
	}
	if refIt.Err() != nil {
		return refIt.Err()
	}
	if mapIt.Err() != nil {
		return mapIt.Err()
	}
	if e, ok := v.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

// runParallel fans the sweep out one goroutine per chromosome, each with
// its own arena, visitor, and seekable iterators restricted to that
// chromosome via source.NewSeekableIterator. Results are buffered
// per-chromosome and concatenated in discovery order once every worker
// completes, so output order matches what a single-threaded sweep would
// produce.
func runParallel(refPath, mapPath string, single bool, pred interval.Predicate, nWorkers int, out *bufio.Writer) error {
	if refPath == "-" || mapPath == "-" {
		return &bedtkerr.UsageError{Reason: "-parallelism > 1 requires regular file inputs, not stdin"}
	}
	chroms, err := discoverChroms(refPath)
	if err != nil {
		return err
	}

	type job struct {
		idx   int
		chrom string
	}

	jobCh := make(chan job, len(chroms))
	results := make([]*bytes.Buffer, len(chroms))
	var mu sync.Mutex
	var errOnce errors.Once
	var wg sync.WaitGroup

	for w := 0; w < nWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				buf := &bytes.Buffer{}
				bw := bufio.NewWriter(buf)
				if err := runChromosome(refPath, mapPath, single, j.chrom, pred, bw); err != nil {
					errOnce.Set(err)
					continue
				}
				if err := bw.Flush(); err != nil {
					errOnce.Set(err)
					continue
				}
				mu.Lock()
				results[j.idx] = buf
				mu.Unlock()
			}
		}()
	}
	for i, c := range chroms {
		jobCh <- job{idx: i, chrom: c}
	}
	close(jobCh)
	wg.Wait()

	if err := errOnce.Err(); err != nil {
		return err
	}
	for _, buf := range results {
		if buf == nil {
			continue
		}
		if _, err := out.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func runChromosome(refPath, mapPath string, single bool, chrom string, pred interval.Predicate, out *bufio.Writer) error {
	refF, err := os.Open(refPath)
	if err != nil {
		return err
	}
	defer refF.Close()
	refSize, err := fileSize(refF)
	if err != nil {
		return err
	}
	refArena := arena.New()
	v, err := buildVisitor(out)
	if err != nil {
		return err
	}
	refIt, err := source.NewSeekableIterator(refF, refSize, refArena, refPath, chrom, source.Config{Limits: interval.DefaultLimits})
	if err != nil {
		return err
	}

	if single {
		if err := sweep.SweepSingle(refIt, pred, v, refArena); err != nil {
			return err
		}
	} else {
		mapF, err := os.Open(mapPath)
		if err != nil {
			return err
		}
		defer mapF.Close()
		mapSize, err := fileSize(mapF)
		if err != nil {
			return err
		}
		mapArena := arena.New()
		mapIt, err := source.NewSeekableIterator(mapF, mapSize, mapArena, mapPath, chrom, source.Config{Limits: interval.DefaultLimits})
		if err != nil {
			return err
		}
		if err := sweep.SweepPair(refIt, mapIt, pred, v, refArena, mapArena, false); err != nil {
			return err
		}
		if mapIt.Err() != nil {
			return mapIt.Err()
		}
	}
	if refIt.Err() != nil {
		return refIt.Err()
	}
	if e, ok := v.(interface{ Err() error }); ok {
		return e.Err()
	}
	return nil
}

func fileSize(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// discoverChroms does one linear pass over path's first column to
// collect its distinct chromosomes in file order, the work list
// runParallel's workers each seek independently against.
func discoverChroms(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var chroms []string
	var last string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, '\t')
		if i < 0 {
			i = strings.IndexByte(line, ' ')
		}
		var chrom string
		if i < 0 {
			chrom = line
		} else {
			chrom = line[:i]
		}
		if chrom != last {
			chroms = append(chroms, chrom)
			last = chrom
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return chroms, nil
}

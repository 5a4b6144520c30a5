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
closestfeats reports, for every reference row, the nearest map row on
each side (or, with -closest, only the nearer of the two, ties broken
left). Output is one line per reference: the reference row, the left and
right neighbor rows, and (with -dist) the signed edge-to-edge distances,
joined by the -delim string. A side with no neighbor prints NA. A map
row overlapping the reference is reported on both sides with distance 0
unless -no-overlaps is given.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/bedtk/arena"
	"github.com/grailbio/bedtk/interval"
	"github.com/grailbio/bedtk/source"
	"github.com/grailbio/bedtk/visitors"
)

var (
	chrom      = flag.String("chrom", "", "Restrict both inputs to a single chromosome")
	closest    = flag.Bool("closest", false, "Report only the single nearest neighbor per reference, ties broken left")
	delim      = flag.String("delim", "|", "Delimiter between the reference, neighbor, and distance fields")
	dist       = flag.Bool("dist", false, "Append the signed edge-to-edge distance after each neighbor (0 when overlapping)")
	errCheck   = flag.Bool("ec", false, "Stricter input checking: additionally reject nested intervals")
	header     = flag.Bool("header", false, "Accept UCSC header lines (track/browser/#/@) before the data rows")
	noOverlaps = flag.Bool("no-overlaps", false, "Never report an overlapping map row; always find the nearest non-overlapping neighbors")
	noRef      = flag.Bool("no-ref", false, "Suppress the reference row itself from each output line")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] refpath mappath\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()
	if flag.NArg() != 2 {
		log.Fatalf("refpath and mappath required")
	}
	// The validating iterator tolerates pre-data headers unconditionally;
	// -header is accepted for compatibility with scripts that always pass
	// it.
	_ = *header

	ctx := vcontext.Background()
	refArena, mapArena := arena.New(), arena.New()
	refFile, err := file.Open(ctx, flag.Arg(0))
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer refFile.Close(ctx) // nolint: errcheck
	mapFile, err := file.Open(ctx, flag.Arg(1))
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer mapFile.Close(ctx) // nolint: errcheck

	cfg := source.Config{Limits: interval.DefaultLimits, RejectNested: *errCheck}
	refIt := source.NewIterator(refFile.Reader(ctx), refArena, flag.Arg(0), *chrom, cfg)
	mapIt := source.NewIterator(mapFile.Reader(ctx), mapArena, flag.Arg(1), *chrom, cfg)

	out := bufio.NewWriter(os.Stdout)
	opts := visitors.NearestOptions{NoOverlaps: *noOverlaps}
	emitErr := visitors.RunNearest(refIt, mapIt, opts, refArena, mapArena, func(res visitors.NearestResult) error {
		return emitResult(out, res)
	})
	if emitErr != nil {
		log.Fatalf("%v", emitErr)
	}
	if refIt.Err() != nil {
		log.Fatalf("%v", refIt.Err())
	}
	if mapIt.Err() != nil {
		log.Fatalf("%v", mapIt.Err())
	}
	if err := out.Flush(); err != nil {
		log.Fatalf("%v", err)
	}
}

func emitResult(out *bufio.Writer, res visitors.NearestResult) error {
	var fields []string
	if !*noRef {
		fields = append(fields, res.Ref.String())
	}
	if *closest {
		fields = appendNeighbor(fields, res.Closest, res.ClosestDist)
	} else {
		fields = appendNeighbor(fields, res.Left, res.LeftDist)
		fields = appendNeighbor(fields, res.Right, res.RightDist)
	}
	if _, err := out.WriteString(strings.Join(fields, *delim)); err != nil {
		return err
	}
	return out.WriteByte('\n')
}

func appendNeighbor(fields []string, m *interval.Record, d int64) []string {
	if m == nil {
		fields = append(fields, "NA")
		if *dist {
			fields = append(fields, "NA")
		}
		return fields
	}
	fields = append(fields, m.String())
	if *dist {
		fields = append(fields, formatDist(d))
	}
	return fields
}

// formatDist renders a distance with an explicit sign, so adjacency and
// overlap read unambiguously: "0" for overlap, "+11"/"-11" otherwise.
func formatDist(d int64) string {
	if d == 0 {
		return "0"
	}
	if d > 0 {
		return "+" + strconv.FormatInt(d, 10)
	}
	return strconv.FormatInt(d, 10)
}

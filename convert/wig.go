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

// Package convert turns fixed/variable-step wiggle signal tracks into
// BED interval rows, rebasing coordinates from the wiggle format's
// 1-based closed convention to the 0-based half-open convention the
// sweep core consumes.
package convert

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// stepState tracks the directive currently in effect while scanning a
// wiggle stream.
type stepState struct {
	fixed bool
	chrom string
	span  uint64
	// fixedStep only:
	start uint64
	step  uint64
	pos   uint64 // 1-based position of the next fixedStep value
}

// ConvertWig reads a wiggle-format signal track from r and writes one BED
// row per data value to w, converting each value's 1-based closed
// position (or [start, start+span) for a spanned row) to 0-based
// half-open coordinates.
func ConvertWig(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	bw := bufio.NewWriter(w)

	var st *stepState
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "track") || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "variableStep"):
			next, err := parseVariableStep(line)
			if err != nil {
				return errors.E(err, fmt.Sprintf("line %d", lineNum))
			}
			st = next
		case strings.HasPrefix(line, "fixedStep"):
			next, err := parseFixedStep(line)
			if err != nil {
				return errors.E(err, fmt.Sprintf("line %d", lineNum))
			}
			st = next
		default:
			if st == nil {
				return errors.E(fmt.Sprintf("line %d: data row before any step directive", lineNum))
			}
			if err := emitRow(bw, st, line); err != nil {
				return errors.E(err, fmt.Sprintf("line %d", lineNum))
			}
		}
	}
	if err := sc.Err(); err != nil {
		return errors.E(err, "reading wiggle stream")
	}
	return bw.Flush()
}

func directiveFields(line string) map[string]string {
	fields := strings.Fields(line)
	out := make(map[string]string, len(fields))
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func parseVariableStep(line string) (*stepState, error) {
	kv := directiveFields(line)
	chrom := kv["chrom"]
	if chrom == "" {
		return nil, fmt.Errorf("variableStep missing chrom=")
	}
	span := uint64(1)
	if s, ok := kv["span"]; ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("variableStep: invalid span=%q", s)
		}
		span = v
	}
	return &stepState{chrom: chrom, span: span}, nil
}

func parseFixedStep(line string) (*stepState, error) {
	kv := directiveFields(line)
	chrom := kv["chrom"]
	if chrom == "" {
		return nil, fmt.Errorf("fixedStep missing chrom=")
	}
	start, err := strconv.ParseUint(kv["start"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("fixedStep: invalid start=%q", kv["start"])
	}
	step := uint64(1)
	if s, ok := kv["step"]; ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fixedStep: invalid step=%q", s)
		}
		step = v
	}
	span := uint64(1)
	if s, ok := kv["span"]; ok {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("fixedStep: invalid span=%q", s)
		}
		span = v
	}
	return &stepState{fixed: true, chrom: chrom, span: span, start: start, step: step, pos: start}, nil
}

// emitRow writes one 0-based half-open BED row for a single data line,
// advancing st's fixedStep cursor if applicable.
func emitRow(bw *bufio.Writer, st *stepState, line string) error {
	var pos1 uint64 // 1-based closed position
	var value string
	if st.fixed {
		pos1 = st.pos
		value = line
		st.pos += st.step
	} else {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("variableStep row must have 2 fields, got %d", len(fields))
		}
		p, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid position %q", fields[0])
		}
		pos1 = p
		value = fields[1]
	}
	if pos1 == 0 {
		return fmt.Errorf("position must be >= 1 (wiggle is 1-based)")
	}
	start0 := pos1 - 1
	end0 := start0 + st.span
	if _, err := fmt.Fprintf(bw, "%s\t%d\t%d\t.\t%s\n", st.chrom, start0, end0, value); err != nil {
		return err
	}
	return nil
}

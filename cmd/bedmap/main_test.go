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
package main

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/bedtk/interval"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/require"
)

func TestParseDenom(t *testing.T) {
	for in, want := range map[string]interval.PercentDenom{
		"reference": interval.PercentReference,
		"ref":       interval.PercentReference,
		"mapping":   interval.PercentMapping,
		"map":       interval.PercentMapping,
		"either":    interval.PercentEither,
		"Both":      interval.PercentBoth,
	} {
		got, err := parseDenom(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := parseDenom("neither")
	require.Error(t, err)
}

func TestRunSingleCount(t *testing.T) {
	in := "chr1\t10\t20\nchr1\t15\t25\nchr1\t30\t40\n"
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	require.NoError(t, runSingle(strings.NewReader(in), "in.bed", pred, out))
	require.NoError(t, out.Flush())
	require.Equal(t, "chr1\t10\t20\t1\nchr1\t15\t25\t1\nchr1\t30\t40\t0\n", buf.String())
}

func TestRunPairMean(t *testing.T) {
	refIn := "chr1\t0\t100\n"
	mapIn := "chr1\t10\t20\ta\t2.0\nchr1\t50\t60\tb\t4.0\nchr2\t0\t10\tc\t100.0\n"
	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)
	old := *op
	*op = "mean"
	defer func() { *op = old }()
	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	require.NoError(t, runPair(strings.NewReader(refIn), "ref.bed", strings.NewReader(mapIn), "map.bed", pred, out))
	require.NoError(t, out.Flush())
	require.Equal(t, "chr1\t0\t100\t3\n", buf.String())
}

func TestDiscoverChroms(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "bedmap")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "in.bed")
	require.NoError(t, ioutil.WriteFile(path, []byte("chr1\t1\t2\nchr1\t5\t9\nchr2\t0\t4\nchr3\t1\t2\n"), 0600))
	chroms, err := discoverChroms(path)
	require.NoError(t, err)
	require.Equal(t, []string{"chr1", "chr2", "chr3"}, chroms)
}

func TestRunParallelMatchesSerial(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "bedmap")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	refPath := filepath.Join(tmpdir, "ref.bed")
	mapPath := filepath.Join(tmpdir, "map.bed")
	refRows := "chr1\t0\t50\nchr1\t40\t90\nchr2\t10\t30\nchr3\t0\t5\n"
	mapRows := "chr1\t5\t45\ta\t1.0\nchr1\t44\t60\tb\t3.0\nchr2\t15\t20\tc\t5.0\nchr2\t25\t40\td\t7.0\n"
	require.NoError(t, ioutil.WriteFile(refPath, []byte(refRows), 0600))
	require.NoError(t, ioutil.WriteFile(mapPath, []byte(mapRows), 0600))

	pred, err := interval.NewOverlapping(1)
	require.NoError(t, err)

	var serial bytes.Buffer
	sw := bufio.NewWriter(&serial)
	require.NoError(t, runPair(strings.NewReader(refRows), refPath, strings.NewReader(mapRows), mapPath, pred, sw))
	require.NoError(t, sw.Flush())

	var parallel bytes.Buffer
	pw := bufio.NewWriter(&parallel)
	require.NoError(t, runParallel(refPath, mapPath, false, pred, 3, pw))
	require.NoError(t, pw.Flush())

	require.Equal(t, serial.String(), parallel.String())
}

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
package archive

import (
	"bytes"
	"io/ioutil"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func gzipped(t *testing.T, content string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func TestGzipReaderScan(t *testing.T) {
	r, err := NewGzipReader(ioutil.NopCloser(gzipped(t, "chr1\t1\t2\nchr1\t5\t9\n")))
	require.NoError(t, err)
	var lines []string
	for r.Scan() {
		lines = append(lines, string(r.Bytes()))
	}
	require.NoError(t, r.Err())
	require.Equal(t, []string{"chr1\t1\t2", "chr1\t5\t9"}, lines)
	require.NoError(t, r.Close())
}

func TestGzipReaderSeekChromosome(t *testing.T) {
	content := "chr1\t1\t2\nchr2\t1\t2\nchr2\t3\t4\nchr3\t1\t2\n"
	r, err := NewGzipReader(ioutil.NopCloser(gzipped(t, content)))
	require.NoError(t, err)
	require.NoError(t, r.SeekChromosome("chr2"))
	var lines []string
	for r.Scan() {
		lines = append(lines, string(r.Bytes()))
	}
	require.NoError(t, r.Err())
	// The scan starts at chr2's first row and stops once the chromosome
	// changes past it.
	require.Equal(t, []string{"chr2\t1\t2", "chr2\t3\t4"}, lines)
	require.NoError(t, r.Close())
}

func TestGzipReaderRejectsPlainText(t *testing.T) {
	_, err := NewGzipReader(ioutil.NopCloser(bytes.NewBufferString("chr1\t1\t2\n")))
	require.Error(t, err)
}

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
package convert

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func convertString(t *testing.T, in string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, ConvertWig(strings.NewReader(in), &out))
	return out.String()
}

func TestConvertVariableStep(t *testing.T) {
	in := "track type=wiggle_0\n" +
		"variableStep chrom=chr1\n" +
		"1\t0.5\n" +
		"10\t1.5\n"
	// 1-based closed position N becomes the 0-based half-open row
	// [N-1, N).
	require.Equal(t,
		"chr1\t0\t1\t.\t0.5\nchr1\t9\t10\t.\t1.5\n",
		convertString(t, in))
}

func TestConvertVariableStepSpan(t *testing.T) {
	in := "variableStep chrom=chr2 span=5\n100\t2.0\n"
	require.Equal(t, "chr2\t99\t104\t.\t2.0\n", convertString(t, in))
}

func TestConvertFixedStep(t *testing.T) {
	in := "fixedStep chrom=chr1 start=10 step=10 span=2\n" +
		"1.0\n2.0\n3.0\n"
	require.Equal(t,
		"chr1\t9\t11\t.\t1.0\nchr1\t19\t21\t.\t2.0\nchr1\t29\t31\t.\t3.0\n",
		convertString(t, in))
}

func TestConvertFixedStepDefaults(t *testing.T) {
	in := "fixedStep chrom=chr1 start=5\n7\n8\n"
	require.Equal(t, "chr1\t4\t5\t.\t7\nchr1\t5\t6\t.\t8\n", convertString(t, in))
}

func TestConvertErrors(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, ConvertWig(strings.NewReader("5\t1.0\n"), &out), "data row before any directive")
	require.Error(t, ConvertWig(strings.NewReader("variableStep span=2\n1\t2\n"), &out), "missing chrom")
	require.Error(t, ConvertWig(strings.NewReader("fixedStep chrom=chr1\n1.0\n"), &out), "missing start")
	require.Error(t, ConvertWig(strings.NewReader("variableStep chrom=chr1\n0\t1.0\n"), &out), "wiggle positions are 1-based")
	require.Error(t, ConvertWig(strings.NewReader("variableStep chrom=chr1\n5\n"), &out), "variableStep rows need position and value")
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/born-ml/sparseconv/internal/serialization"
	"github.com/born-ml/sparseconv/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecord = `{
  "type": "SparseConvolution",
  "name": "conv1",
  "sparse_convolution_param": {
    "input_feature_map_count": 4,
    "output_feature_map_count": 4,
    "feature_map_connection_count": 8,
    "dimension_param": [{"kernel_size": 3}, {"kernel_size": 3}]
  }
}`

func writeRecord(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "layer.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, version)
}

func TestRun_Usage(t *testing.T) {
	code, out, _ := runCLI(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Commands:")

	code, _, errOut := runCLI(t, "train")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "train"`)
}

func TestRun_Describe(t *testing.T) {
	record := writeRecord(t, t.TempDir(), testRecord)

	code, out, errOut := runCLI(t, "describe", "-record", record, "-input", "28x28")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "conv1 (SparseConvolution)")
	assert.Contains(t, out, "3x3, fm 4x4")
	assert.Contains(t, out, "output      4 fm, 26x26")
	assert.Contains(t, out, "flops       forward")
}

func TestRun_DescribeErrors(t *testing.T) {
	dir := t.TempDir()

	code, _, errOut := runCLI(t, "describe")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "-record is required")

	bad := writeRecord(t, dir, `{"type":"Pooling"}`)
	code, _, errOut = runCLI(t, "describe", "-record", bad)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown layer type")

	code, _, _ = runCLI(t, "describe", "-record", writeRecord(t, dir, testRecord), "-input", "28xabc")
	assert.Equal(t, 1, code)
}

func TestRun_InitInspectExport(t *testing.T) {
	dir := t.TempDir()
	record := writeRecord(t, dir, testRecord)
	born := filepath.Join(dir, "layer.born")

	code, out, errOut := runCLI(t, "init", "-record", record, "-seed", "7", "-out", born)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "wrote "+born)
	assert.Contains(t, errOut, "connectivity generated")
	assert.Contains(t, errOut, "output_degree=2..2")

	reader, err := serialization.NewBornReader(born)
	require.NoError(t, err)
	assert.Equal(t, "7", reader.Metadata()[serialization.MetadataSeed])
	assert.Equal(t, "SparseConvolution", reader.Header().LayerType)
	require.NoError(t, reader.Close())

	code, out, errOut = runCLI(t, "inspect", "-in", born, "-per-fm")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "conv1 (SparseConvolution)")
	assert.Contains(t, out, "connections 8 (output degree 2..2, input degree 2..2)")
	assert.Contains(t, out, "seed        7")
	assert.Contains(t, out, "weight")
	assert.Contains(t, out, "bias")
	assert.Contains(t, out, "fm 7")

	safetensors := filepath.Join(dir, "layer.safetensors")
	code, out, errOut = runCLI(t, "export", "-in", born, "-out", safetensors)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "exported conv1")
	info, err := os.Stat(safetensors)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRun_InitDeterministic(t *testing.T) {
	dir := t.TempDir()
	record := writeRecord(t, dir, testRecord)

	var files [2][]byte
	for i := range files {
		path := filepath.Join(dir, "layer.born")
		code, _, errOut := runCLI(t, "init", "-record", record, "-seed", "42", "-out", path)
		require.Equal(t, 0, code, errOut)

		_, tensors, err := readTensors(path)
		require.NoError(t, err)
		files[i] = tensors
	}
	assert.Equal(t, files[0], files[1])
}

func TestRun_InitRecordsDrawnSeed(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{"minus one", "-1"},
		{"other negative", "-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			record := writeRecord(t, dir, testRecord)
			drawn := filepath.Join(dir, "drawn.born")

			code, _, errOut := runCLI(t, "init", "-record", record, "-seed", tt.seed, "-out", drawn)
			require.Equal(t, 0, code, errOut)
			assert.Contains(t, errOut, "drew random seed")

			reader, err := serialization.NewBornReader(drawn)
			require.NoError(t, err)
			recorded := reader.Metadata()[serialization.MetadataSeed]
			require.NoError(t, reader.Close())

			seed, err := strconv.ParseInt(recorded, 10, 64)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, seed, int64(0))

			replay := filepath.Join(dir, "replay.born")
			code, _, errOut = runCLI(t, "init", "-record", record, "-seed", recorded, "-out", replay)
			require.Equal(t, 0, code, errOut)
			assert.NotContains(t, errOut, "drew random seed")

			_, want, err := readTensors(drawn)
			require.NoError(t, err)
			_, got, err := readTensors(replay)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

// readTensors returns the checksum and the raw weight bytes of a layer file.
func readTensors(path string) (string, []byte, error) {
	reader, err := serialization.NewBornReader(path)
	if err != nil {
		return "", nil, err
	}
	defer reader.Close()

	weight, err := reader.ReadTensorData("weight")
	if err != nil {
		return "", nil, err
	}
	return reader.Checksum().String(), weight, nil
}

func TestRun_InspectRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	born := filepath.Join(dir, "layer.born")
	code, _, errOut := runCLI(t, "init", "-record", writeRecord(t, dir, testRecord), "-out", born)
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(born)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(born, data, 0o600))

	code, _, errOut = runCLI(t, "inspect", "-in", born)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "checksum mismatch")
}

func TestSummarize(t *testing.T) {
	got := summarize([]stats.FeatureMapStats{
		{Average: 1, StdDev: 0, Min: 1, Max: 1},
		{Average: 3, StdDev: 0, Min: 3, Max: 3},
	})
	assert.InDelta(t, 2, got.Average, 1e-6)
	assert.InDelta(t, 1, got.StdDev, 1e-6)
	assert.Equal(t, float32(1), got.Min)
	assert.Equal(t, float32(3), got.Max)

	assert.Equal(t, stats.FeatureMapStats{}, summarize(nil))
}

func TestMinMax(t *testing.T) {
	lo, hi := minMax([]int{3, 1, 4, 1, 5})
	assert.Equal(t, 1, lo)
	assert.Equal(t, 5, hi)

	lo, hi = minMax(nil)
	assert.Zero(t, lo)
	assert.Zero(t, hi)
}

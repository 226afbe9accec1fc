package result_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/wptnightly/internal/browser"
	"github.com/signalnine/wptnightly/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteName(t *testing.T) {
	tests := []struct {
		link result.TestLink
		want string
	}{
		{"https://wpt.live/webnn/conformance_tests/element_wise_binary.https.any.js", "elementWiseBinary"},
		{"https://wpt.live/webnn/conformance_tests/abs.https.any.js", "abs"},
		{"https://wpt.live/webnn/conformance_tests/batch_normalization.https.any.js", "batchNormalization"},
		{"https://wpt.live/webnn/conformance_tests/conv2d.https.any.js", "conv2d"},
		{"https://wpt.live/webnn/conformance_tests/reduce_log_sum_exp.https.any.js", "reduceLogSumExp"},
		{"https://wpt.live/webnn/conformance_tests/gru_cell.any.js", "gruCell"},
		{"https://wpt.live/webnn/conformance_tests/double__underscore.https.any.js", "doubleUnderscore"},
	}
	seen := map[string]result.TestLink{}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.link.Suite()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, tt.link.Suite(), "derivation must be deterministic")
		})
		prev, dup := seen[tt.want]
		assert.False(t, dup, "%s and %s collide", prev, tt.link)
		seen[tt.want] = tt.link
	}
}

func TestLinkURL(t *testing.T) {
	link := result.TestLink("https://wpt.live/webnn/conformance_tests/abs.https.any.js")
	assert.Equal(t, "https://wpt.live/webnn/conformance_tests/abs.https.any.html?gpu", link.URL("gpu"))
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, result.StatusPass.Terminal())
	assert.True(t, result.StatusFail.Terminal())
	assert.True(t, result.Status("Precondition Failed").Terminal())
	assert.False(t, result.StatusTimeout.Terminal())
	assert.False(t, result.StatusNotRun.Terminal())
}

func TestWriteAndReadArtifact(t *testing.T) {
	sink := result.NewSink(t.TempDir(), "133.0.6900.0")
	rows := []result.Row{
		{Suite: "abs", Case: "abs float32 1D tensor", Status: result.StatusPass},
		{Suite: "abs", Case: "abs float16 0D scalar", Status: result.StatusFail, Message: `assert_true: "a, b" <b>expected</b>` + "\nline two"},
		{Suite: "gru", Case: "gru float32", Status: result.StatusTimeout},
		{Suite: "gru", Case: "gru float16", Status: result.StatusNotRun},
	}

	artifact, err := sink.Write("CPU", rows)
	require.NoError(t, err)
	assert.Equal(t, "CPU", artifact.Target)
	assert.Equal(t, filepath.Join(sink.Dir, "conformance_tests_result-CPU.csv"), artifact.Path)

	raw, err := os.ReadFile(artifact.Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Test Suite,Test Case,Status,Message\n")

	data, err := result.ReadArtifact(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, 4, data.Total)
	assert.Equal(t, 1, data.Passed)
	require.Len(t, data.Keys, 4)
	for i, r := range rows {
		assert.Equal(t, r.Key(), data.Keys[i])
		got := data.Rows[r.Key()]
		assert.Equal(t, r.Status, got.Status)
		assert.Equal(t, r.Message, got.Message)
	}
}

func TestWriteAndReadArtifactScrapedLineEndings(t *testing.T) {
	rows, err := browser.ParseRows("abs", [][]string{
		{"Fail", "abs float32", "line one\r\nline two"},
		{"Fail", "abs float16", "bare\rreturn"},
	}, false)
	require.NoError(t, err)

	artifact, err := result.NewSink(t.TempDir(), "133.0.6900.0").Write("CPU", rows)
	require.NoError(t, err)
	data, err := result.ReadArtifact(artifact.Path)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, r.Message, data.Rows[r.Key()].Message)
	}
	assert.Equal(t, "line one\nline two", data.Rows[result.Key{Suite: "abs", Case: "abs float32"}].Message)
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "abs||abs float32", result.Key{Suite: "abs", Case: "abs float32"}.String())
}

func TestWriteEmptyArtifact(t *testing.T) {
	sink := result.NewSink(t.TempDir(), "v1")
	artifact, err := sink.Write("NPU", nil)
	require.NoError(t, err)

	data, err := result.ReadArtifact(artifact.Path)
	require.NoError(t, err)
	assert.Zero(t, data.Total)
	assert.Empty(t, data.Rows)
}

func TestReadArtifactMissing(t *testing.T) {
	_, err := result.ReadArtifact(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestPriorPath(t *testing.T) {
	current := filepath.Join("result", "134.0.1", "conformance_tests_result-GPU.csv")
	want := filepath.Join("result", "133.0.9", "conformance_tests_result-GPU.csv")
	assert.Equal(t, want, result.PriorPath(current, "134.0.1", "133.0.9"))
}

func TestTargetFromPath(t *testing.T) {
	assert.Equal(t, "OV GPU", result.TargetFromPath(filepath.Join("result", "1", "conformance_tests_result-OV GPU.csv")))
}

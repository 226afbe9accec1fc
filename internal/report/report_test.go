package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/hwinfo"
	"github.com/signalnine/wptnightly/internal/report"
	"github.com/signalnine/wptnightly/internal/result"
)

func data(rows ...result.Row) *result.ArtifactData {
	d := &result.ArtifactData{Rows: map[result.Key]result.Entry{}}
	for _, r := range rows {
		d.Rows[r.Key()] = result.Entry{Status: r.Status, Message: r.Message}
		d.Keys = append(d.Keys, r.Key())
		d.Total++
		if r.Status == result.StatusPass {
			d.Passed++
		}
	}
	return d
}

func TestDiff(t *testing.T) {
	old := data(
		result.Row{Suite: "relu", Case: "relu float32", Status: result.StatusPass},
		result.Row{Suite: "abs", Case: "abs float16", Status: result.StatusFail, Message: "old"},
		result.Row{Suite: "abs", Case: "abs float32", Status: result.StatusPass},
		result.Row{Suite: "gone", Case: "gone", Status: result.StatusPass},
	)
	cur := data(
		result.Row{Suite: "relu", Case: "relu float32", Status: result.StatusFail, Message: "assert_array_approx_equals"},
		result.Row{Suite: "abs", Case: "abs float16", Status: result.StatusPass},
		result.Row{Suite: "abs", Case: "abs float32", Status: result.StatusPass},
		result.Row{Suite: "new", Case: "new", Status: result.StatusFail},
	)

	newPasses, regressions := report.Diff(old, cur, "OV CPU")
	assert.Equal(t, []report.Change{{Backend: "OV CPU", Suite: "abs", Case: "abs float16"}}, newPasses)
	assert.Equal(t, []report.Change{{Backend: "OV CPU", Suite: "relu", Case: "relu float32", Message: "assert_array_approx_equals"}}, regressions)
}

func TestDiffUnchanged(t *testing.T) {
	rows := []result.Row{
		{Suite: "abs", Case: "abs float32", Status: result.StatusPass},
		{Suite: "abs", Case: "abs float16", Status: result.StatusFail, Message: "mismatch"},
		{Suite: "gru", Case: "gru float32", Status: result.StatusTimeout},
		{Suite: "gru", Case: "gru float16", Status: result.StatusNotRun},
	}
	np, reg := report.Diff(data(rows...), data(rows...), "CPU")
	assert.Empty(t, np)
	assert.Empty(t, reg)
}

func TestDiffIgnoresTimeoutTransitions(t *testing.T) {
	old := data(result.Row{Suite: "a", Case: "x", Status: result.StatusPass})
	cur := data(result.Row{Suite: "a", Case: "x", Status: result.StatusTimeout})
	np, reg := report.Diff(old, cur, "CPU")
	assert.Empty(t, np)
	assert.Empty(t, reg)
}

func TestPassRateString(t *testing.T) {
	assert.Equal(t, "97.50% (390 / 400)", report.PassRate{Total: 400, Passed: 390}.String())
	assert.Equal(t, "0.00% (0 / 0)", report.PassRate{}.String())
}

func TestGroupNotRun(t *testing.T) {
	gru := result.TestLink("https://wpt.live/webnn/conformance_tests/gru.https.any.js")
	lstm := result.TestLink("https://wpt.live/webnn/conformance_tests/lstm_cell.https.any.js")
	targets := []config.Target{
		{Name: "OV CPU", Device: config.DeviceCPU},
		{Name: "OV GPU", Device: config.DeviceGPU},
		{Name: "ORT CPU", Device: config.DeviceCPU},
	}
	got := report.GroupNotRun(map[string][]result.TestLink{
		"OV GPU":  {gru},
		"OV CPU":  {gru, lstm},
		"ORT CPU": {gru},
	}, targets)

	assert.Equal(t, []report.NotRunSuite{
		{Suite: "gru", URLs: []string{
			"https://wpt.live/webnn/conformance_tests/gru.https.any.html?cpu",
			"https://wpt.live/webnn/conformance_tests/gru.https.any.html?gpu",
		}},
		{Suite: "lstmCell", URLs: []string{
			"https://wpt.live/webnn/conformance_tests/lstm_cell.https.any.html?cpu",
		}},
	}, got)
	assert.Nil(t, report.GroupNotRun(nil, targets))
}

func writeArtifacts(t *testing.T, base, version string, rows map[string][]result.Row) []result.Artifact {
	t.Helper()
	sink := result.NewSink(base, version)
	var out []result.Artifact
	for _, target := range []string{"CPU", "GPU"} {
		r, ok := rows[target]
		if !ok {
			continue
		}
		a, err := sink.Write(target, r)
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func TestBuild(t *testing.T) {
	base := t.TempDir()
	writeArtifacts(t, base, "133.0.6891.0", map[string][]result.Row{
		"CPU": {
			{Suite: "abs", Case: "abs float32", Status: result.StatusPass},
			{Suite: "relu", Case: "relu int8", Status: result.StatusFail, Message: "bad"},
		},
	})
	current := writeArtifacts(t, base, "133.0.6892.0", map[string][]result.Row{
		"CPU": {
			{Suite: "abs", Case: "abs float32", Status: result.StatusFail, Message: "<b>mismatch</b>"},
			{Suite: "relu", Case: "relu int8", Status: result.StatusPass},
		},
		"GPU": {
			{Suite: "abs", Case: "abs float32", Status: result.StatusPass},
		},
	})

	s, err := report.Build(report.Input{
		CurrentVersion: "133.0.6892.0",
		LastVersion:    "133.0.6891.0",
		Artifacts:      current,
		Environment:    hwinfo.Environment{Hostname: "lab-01", Platform: "windows"},
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, s.Compared())
	assert.Equal(t, []report.PassRate{
		{Backend: "CPU", Total: 2, Passed: 1},
		{Backend: "GPU", Total: 1, Passed: 1},
	}, s.PassRates)
	assert.Equal(t, []report.Change{{Backend: "CPU", Suite: "relu", Case: "relu int8"}}, s.NewPasses)
	assert.Equal(t, []report.Change{{Backend: "CPU", Suite: "abs", Case: "abs float32", Message: "<b>mismatch</b>"}}, s.Regressions)
}

func TestBuildWithoutPriorVersion(t *testing.T) {
	base := t.TempDir()
	current := writeArtifacts(t, base, "v2", map[string][]result.Row{
		"CPU": {{Suite: "abs", Case: "abs", Status: result.StatusPass}},
	})

	// No last version at all.
	s, err := report.Build(report.Input{CurrentVersion: "v2", Artifacts: current}, zerolog.Nop())
	require.NoError(t, err)
	assert.False(t, s.Compared())
	assert.Len(t, s.PassRates, 1)

	// A last version whose artifacts are missing is skipped.
	s, err = report.Build(report.Input{CurrentVersion: "v2", LastVersion: "v1", Artifacts: current}, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, s.NewPasses)
	assert.Empty(t, s.Regressions)
}

func TestBuildUnreadableCurrentArtifact(t *testing.T) {
	_, err := report.Build(report.Input{
		CurrentVersion: "v2",
		Artifacts:      []result.Artifact{{Target: "CPU", Path: t.TempDir() + "/missing.csv"}},
	}, zerolog.Nop())
	assert.Error(t, err)
}

func sampleSummary() *report.Summary {
	return &report.Summary{
		CurrentVersion: "133.0.6892.0",
		LastVersion:    "133.0.6891.0",
		TestURL:        config.DefaultTestURL,
		Environment:    hwinfo.Environment{Hostname: "lab-01", Platform: "windows", GPU: hwinfo.Device{Name: "Intel Arc"}},
		PassRates:      []report.PassRate{{Backend: "CPU", Total: 4, Passed: 3}},
		Regressions:    []report.Change{{Backend: "CPU", Suite: "abs", Case: "abs float32", Message: "line one\nline two"}},
		NotRun:         []report.NotRunSuite{{Suite: "gru", URLs: []string{"https://wpt.live/webnn/conformance_tests/gru.https.any.html?cpu"}}},
	}
}

func TestGenerateFormats(t *testing.T) {
	s := sampleSummary()

	var buf bytes.Buffer
	require.NoError(t, report.Generate(s, report.FormatTable, &buf))
	assert.Contains(t, buf.String(), "75.00% (3 / 4)")
	assert.Contains(t, buf.String(), "Regression Test Case")

	buf.Reset()
	require.NoError(t, report.Generate(s, report.FormatMarkdown, &buf))
	md := buf.String()
	assert.Contains(t, md, "**Pass Rate**")
	assert.Contains(t, md, "| CPU | 75.00% (3 / 4) |")
	assert.Contains(t, md, "line one<br>line two")
	assert.NotContains(t, md, "New Pass Test Case")

	buf.Reset()
	require.NoError(t, report.Generate(s, report.FormatJSON, &buf))
	var decoded report.Summary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, s.PassRates, decoded.PassRates)

	buf.Reset()
	require.NoError(t, report.Generate(s, report.FormatHTML, &buf))
	out := buf.String()
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>gru</td>")
	assert.Contains(t, out, "line one<br>line two")
}

func TestMarkdownNotices(t *testing.T) {
	same := &report.Summary{CurrentVersion: "v1", LastVersion: "v1", SameVersion: true}
	assert.Equal(t, report.SkipNotice+"\n", report.Markdown(same))

	quiet := &report.Summary{CurrentVersion: "v2", LastVersion: "v1", PassRates: []report.PassRate{{Backend: "CPU", Total: 1, Passed: 1}}}
	assert.True(t, strings.HasSuffix(report.Markdown(quiet), "None new Pass & Regression Test Case of this test.\n"))

	first := &report.Summary{CurrentVersion: "v2"}
	assert.NotContains(t, report.Markdown(first), "None new Pass")
}

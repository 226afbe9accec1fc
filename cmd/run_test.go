package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/result"
)

var targets = []config.Target{
	{Name: "OV CPU", Device: config.DeviceCPU, LaunchArgs: []string{"--enable-features=WebMachineLearningNeuralNetwork"}},
	{Name: "OV GPU", Device: config.DeviceGPU},
	{Name: "OV NPU", Device: config.DeviceNPU},
}

func names(ts []config.Target) []string {
	var out []string
	for _, t := range ts {
		out = append(out, t.Name)
	}
	return out
}

func TestFilterTargets(t *testing.T) {
	tests := []struct {
		name    string
		filter  []string
		want    []string
		wantErr bool
	}{
		{"empty filter returns all", nil, []string{"OV CPU", "OV GPU", "OV NPU"}, false},
		{"exact match", []string{"OV GPU"}, []string{"OV GPU"}, false},
		{"case insensitive", []string{"ov npu"}, []string{"OV NPU"}, false},
		{"keeps declared order", []string{"OV NPU", "OV CPU"}, []string{"OV CPU", "OV NPU"}, false},
		{"no match", []string{"DML GPU"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterTargets(targets, tt.filter)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "OV CPU, OV GPU, OV NPU")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestTestCommand(t *testing.T) {
	cfg := &config.Config{
		TargetBrowser: config.BrowserChromeCanary,
		BrowserPath:   map[string]string{config.BrowserChromeCanary: filepath.Join("opt", "chrome-canary", "chrome")},
	}
	got := testCommand(cfg, targets[:2])
	assert.Equal(t, "OV CPU: chrome --enable-features=WebMachineLearningNeuralNetwork\nOV GPU: chrome", got)

	cfg.Container = config.Container{Enabled: true, Image: "chromedp/headless-shell:latest"}
	assert.True(t, strings.HasPrefix(testCommand(cfg, targets[1:2]), "OV GPU: chromedp/headless-shell:latest"))
}

func TestCollectArtifacts(t *testing.T) {
	base := t.TempDir()
	sink := result.NewSink(base, "133.0.6892.0")
	for _, name := range []string{"Extra", "OV NPU", "OV CPU"} {
		_, err := sink.Write(name, nil)
		require.NoError(t, err)
	}

	got, err := collectArtifacts(sink.Dir, targets)
	require.NoError(t, err)
	var order []string
	for _, a := range got {
		order = append(order, a.Target)
	}
	assert.Equal(t, []string{"OV CPU", "OV NPU", "Extra"}, order)

	empty, err := collectArtifacts(filepath.Join(base, "missing"), targets)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRecordVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "LastTestedVersion")
	require.NoError(t, result.WriteLastVersion(path, "133.0.6891.0"))

	wrote, err := recordVersion(path, "133.0.6892.0", nil)
	require.NoError(t, err)
	assert.False(t, wrote)
	last, err := result.ReadLastVersion(path)
	require.NoError(t, err)
	assert.Equal(t, "133.0.6891.0", last, "marker kept when nothing was saved")

	wrote, err = recordVersion(path, "133.0.6892.0", []result.Artifact{{Target: "OV CPU", Path: "x.csv"}})
	require.NoError(t, err)
	assert.True(t, wrote)
	last, err = result.ReadLastVersion(path)
	require.NoError(t, err)
	assert.Equal(t, "133.0.6892.0", last)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, zerolog.InfoLevel, newLogger(&buf, false).GetLevel())
	log := newLogger(&buf, true)
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
	log.Debug().Str("target", "OV CPU").Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "OV CPU")
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"run", "list", "report"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	assert.Equal(t, "config.json", root.PersistentFlags().Lookup("config").DefValue)
}

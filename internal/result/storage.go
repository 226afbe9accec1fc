package result

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const artifactPrefix = "conformance_tests_result-"

var header = []string{"Test Suite", "Test Case", "Status", "Message"}

// Sink writes per-target CSV artifacts under <baseDir>/<version>.
type Sink struct {
	Dir string
}

func NewSink(baseDir, version string) *Sink {
	return &Sink{Dir: filepath.Join(baseDir, version)}
}

// ArtifactPath is where the artifact for target lives inside dir.
func ArtifactPath(dir, target string) string {
	return filepath.Join(dir, artifactPrefix+target+".csv")
}

// TargetFromPath recovers the target name from an artifact file name.
func TargetFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".csv")
	return strings.TrimPrefix(name, artifactPrefix)
}

func (s *Sink) Write(target string, rows []Row) (Artifact, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("creating result dir: %w", err)
	}
	path := ArtifactPath(s.Dir, target)
	f, err := os.Create(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("creating artifact: %w", err)
	}
	if err := writeRows(f, rows); err != nil {
		f.Close()
		return Artifact{}, fmt.Errorf("writing artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return Artifact{}, fmt.Errorf("closing artifact %s: %w", path, err)
	}
	return Artifact{Target: target, Path: path}, nil
}

func writeRows(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Suite, r.Case, string(r.Status), r.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Entry is the diffable part of a persisted row.
type Entry struct {
	Status  Status
	Message string
}

// ArtifactData is a parsed artifact keyed by suite and case.
type ArtifactData struct {
	Rows   map[Key]Entry
	Keys   []Key
	Total  int
	Passed int
}

func ReadArtifact(path string) (*ArtifactData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = len(header)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing artifact %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parsing artifact %s: missing header", path)
	}

	data := &ArtifactData{Rows: make(map[Key]Entry, len(records)-1)}
	for _, rec := range records[1:] {
		key := Key{Suite: rec[0], Case: rec[1]}
		if _, seen := data.Rows[key]; !seen {
			data.Keys = append(data.Keys, key)
		}
		data.Rows[key] = Entry{Status: Status(rec[2]), Message: rec[3]}
		data.Total++
		if Status(rec[2]) == StatusPass {
			data.Passed++
		}
	}
	return data, nil
}

// PriorPath maps an artifact of the current version onto the same artifact
// of the last tested version.
func PriorPath(path, current, last string) string {
	dir := filepath.Dir(path)
	if filepath.Base(dir) == current {
		dir = filepath.Join(filepath.Dir(dir), last)
	}
	return filepath.Join(dir, filepath.Base(path))
}

// Package report diffs conformance artifacts between browser versions and
// renders the nightly summary.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/hwinfo"
	"github.com/signalnine/wptnightly/internal/result"
)

type PassRate struct {
	Backend string `json:"backend"`
	Total   int    `json:"total"`
	Passed  int    `json:"passed"`
}

func (p PassRate) Rate() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Passed) / float64(p.Total)
}

// String formats the rate as "97.50% (390 / 400)".
func (p PassRate) String() string {
	return fmt.Sprintf("%.2f%% (%d / %d)", p.Rate()*100, p.Passed, p.Total)
}

// Change is a test case whose status flipped between two versions.
type Change struct {
	Backend string `json:"backend"`
	Suite   string `json:"suite"`
	Case    string `json:"case"`
	Message string `json:"message,omitempty"`
}

// NotRunSuite lists the per-device pages of a test module that never
// produced results.
type NotRunSuite struct {
	Suite string   `json:"suite"`
	URLs  []string `json:"urls"`
}

type Summary struct {
	CurrentVersion string             `json:"current_version"`
	LastVersion    string             `json:"last_version,omitempty"`
	SameVersion    bool               `json:"same_version"`
	TestURL        string             `json:"test_url,omitempty"`
	TestCommand    string             `json:"test_command,omitempty"`
	Environment    hwinfo.Environment `json:"environment"`
	PassRates      []PassRate         `json:"pass_rates"`
	NewPasses      []Change           `json:"new_passes"`
	Regressions    []Change           `json:"regressions"`
	NotRun         []NotRunSuite      `json:"not_run"`
}

// Compared reports whether the summary carries a diff against a prior version.
func (s *Summary) Compared() bool {
	return s.LastVersion != "" && !s.SameVersion
}

type Input struct {
	CurrentVersion string
	LastVersion    string
	Artifacts      []result.Artifact
	// Unresolved maps a target name to the links that never produced rows.
	Unresolved  map[string][]result.TestLink
	Targets     []config.Target
	TestURL     string
	TestCommand string
	Environment hwinfo.Environment
}

// Diff compares two artifacts of one backend. Pass to Fail is a regression
// carrying the new message; Fail to Pass is a new pass. Keys are visited in
// sorted order.
func Diff(old, cur *result.ArtifactData, backend string) (newPasses, regressions []Change) {
	seen := map[result.Key]struct{}{}
	var keys []result.Key
	for _, data := range []*result.ArtifactData{old, cur} {
		if data == nil {
			continue
		}
		for k := range data.Rows {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Suite != keys[j].Suite {
			return keys[i].Suite < keys[j].Suite
		}
		return keys[i].Case < keys[j].Case
	})

	for _, k := range keys {
		before, after := entry(old, k), entry(cur, k)
		switch {
		case before.Status == result.StatusPass && after.Status == result.StatusFail:
			regressions = append(regressions, Change{Backend: backend, Suite: k.Suite, Case: k.Case, Message: after.Message})
		case before.Status == result.StatusFail && after.Status == result.StatusPass:
			newPasses = append(newPasses, Change{Backend: backend, Suite: k.Suite, Case: k.Case})
		}
	}
	return newPasses, regressions
}

func entry(data *result.ArtifactData, k result.Key) result.Entry {
	if data == nil {
		return result.Entry{}
	}
	return data.Rows[k]
}

// Build reads the current artifacts and, when a different last version is
// known, diffs them against the prior run. A prior artifact that is missing
// is logged and skipped; a current artifact that cannot be read is an error.
func Build(in Input, log zerolog.Logger) (*Summary, error) {
	log = log.With().Str("component", "report").Logger()
	s := &Summary{
		CurrentVersion: in.CurrentVersion,
		LastVersion:    in.LastVersion,
		SameVersion:    in.LastVersion != "" && in.LastVersion == in.CurrentVersion,
		TestURL:        in.TestURL,
		TestCommand:    in.TestCommand,
		Environment:    in.Environment,
		NotRun:         GroupNotRun(in.Unresolved, in.Targets),
	}

	paths := make([]string, len(in.Artifacts))
	for i, a := range in.Artifacts {
		paths[i] = a.Path
	}
	current := readArtifacts(artifactReaders, paths)

	var prior []loaded
	if s.Compared() {
		priorPaths := make([]string, len(paths))
		for i, p := range paths {
			priorPaths[i] = result.PriorPath(p, in.CurrentVersion, in.LastVersion)
		}
		prior = readArtifacts(artifactReaders, priorPaths)
	}

	var errs *multierror.Error
	for i, a := range in.Artifacts {
		if current[i].err != nil {
			errs = multierror.Append(errs, current[i].err)
			continue
		}
		cur := current[i].data
		s.PassRates = append(s.PassRates, PassRate{Backend: a.Target, Total: cur.Total, Passed: cur.Passed})

		if prior == nil {
			continue
		}
		if err := prior[i].err; err != nil {
			level := zerolog.WarnLevel
			if errors.Is(err, fs.ErrNotExist) {
				level = zerolog.InfoLevel
			}
			log.WithLevel(level).Err(err).Str("target", a.Target).Str("last_version", in.LastVersion).Msg("Skipping diff, no prior result")
			continue
		}
		np, reg := Diff(prior[i].data, cur, a.Target)
		for _, c := range reg {
			log.Debug().Str("target", a.Target).Str("test", result.Key{Suite: c.Suite, Case: c.Case}.String()).Msg("Regression")
		}
		s.NewPasses = append(s.NewPasses, np...)
		s.Regressions = append(s.Regressions, reg...)
	}
	return s, errs.ErrorOrNil()
}

// GroupNotRun groups unresolved links by test module, listing each device
// page once. Targets are visited in declared order, then any remaining
// target names in sorted order.
func GroupNotRun(unresolved map[string][]result.TestLink, targets []config.Target) []NotRunSuite {
	if len(unresolved) == 0 {
		return nil
	}
	devices := map[string]config.DeviceType{}
	var order []string
	for _, t := range targets {
		devices[t.Name] = t.Device
		if _, ok := unresolved[t.Name]; ok {
			order = append(order, t.Name)
		}
	}
	var extra []string
	for name := range unresolved {
		if _, ok := devices[name]; !ok {
			extra = append(extra, name)
			if d, err := config.DeviceFor(name); err == nil {
				devices[name] = d
			}
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	var (
		out   []NotRunSuite
		index = map[result.TestLink]int{}
		seen  = map[string]struct{}{}
	)
	for _, name := range order {
		device, ok := devices[name]
		if !ok {
			continue
		}
		for _, link := range unresolved[name] {
			i, ok := index[link]
			if !ok {
				i = len(out)
				index[link] = i
				out = append(out, NotRunSuite{Suite: link.Suite()})
			}
			url := link.URL(string(device))
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			out[i].URLs = append(out[i].URLs, url)
		}
	}
	return out
}

package runner

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/result"
)

type ResultSink interface {
	Write(target string, rows []result.Row) (result.Artifact, error)
}

// Outcome is everything the reporting stage needs from a run.
type Outcome struct {
	Artifacts  []result.Artifact
	Results    []*result.BackendResultSet
	Unresolved map[string][]result.TestLink
}

// Coordinator runs the full link set once per target, in declared order.
type Coordinator struct {
	orch *Orchestrator
	sink ResultSink
	log  zerolog.Logger
}

func NewCoordinator(orch *Orchestrator, sink ResultSink, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		orch: orch,
		sink: sink,
		log:  log.With().Str("component", "coordinator").Logger(),
	}
}

// Run never stops early for a single target: an artifact that cannot be
// written is reported in the returned error while later targets still run.
func (c *Coordinator) Run(ctx context.Context, links []result.TestLink, targets []config.Target) (*Outcome, error) {
	out := &Outcome{Unresolved: map[string][]result.TestLink{}}
	var errs *multierror.Error
	for _, target := range targets {
		c.log.Info().Str("target", target.Name).Int("links", len(links)).Msg("Test by target")

		set := c.orch.RunWithRetries(ctx, links, target)
		out.Results = append(out.Results, set)
		if len(set.Unresolved) > 0 {
			out.Unresolved[target.Name] = set.Unresolved
		}

		artifact, err := c.sink.Write(target.Name, set.Rows)
		if err != nil {
			c.log.Error().Err(err).Str("target", target.Name).Msg("Saving results")
			errs = multierror.Append(errs, fmt.Errorf("target %s: %w", target.Name, err))
			continue
		}
		out.Artifacts = append(out.Artifacts, artifact)
		c.log.Info().Str("target", target.Name).Str("path", artifact.Path).Int("rows", len(set.Rows)).Msg("Saved results")
	}
	return out, errs.ErrorOrNil()
}

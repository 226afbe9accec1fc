package runner

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/signalnine/wptnightly/internal/browser"
	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/result"
)

// MaxPasses is the initial pass plus three retries. The last pass is relaxed.
const MaxPasses = 4

// SessionProvider runs one test link against one target in an isolated
// browser session. A non-nil error means the link must be retried.
type SessionProvider interface {
	RunTest(ctx context.Context, link result.TestLink, target config.Target, relaxed bool) ([]result.Row, error)
}

// Orchestrator drives the bounded retry loop for a single target. Links run
// strictly one after another.
type Orchestrator struct {
	provider SessionProvider
	log      zerolog.Logger
}

func NewOrchestrator(provider SessionProvider, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		log:      log.With().Str("component", "runner").Logger(),
	}
}

// RunBatch runs every link once. Rows of successful links and the links that
// failed are both returned in input order.
func (o *Orchestrator) RunBatch(ctx context.Context, links []result.TestLink, target config.Target, relaxed bool) ([]result.Row, []result.TestLink) {
	var (
		rows     []result.Row
		timedOut []result.TestLink
	)
	for _, link := range links {
		if ctx.Err() != nil {
			timedOut = append(timedOut, link)
			continue
		}
		got, err := o.provider.RunTest(ctx, link, target, relaxed)
		if err != nil {
			o.log.Debug().
				Str("link", string(link)).
				Str("target", target.Name).
				Bool("timeout", browser.IsTimeout(err)).
				Msg("Queued for retry")
			timedOut = append(timedOut, link)
			continue
		}
		rows = append(rows, got...)
	}
	return rows, timedOut
}

// RunWithRetries runs links on target, re-running the links that failed on
// each pass. Whatever still fails after MaxPasses is left unresolved.
func (o *Orchestrator) RunWithRetries(ctx context.Context, links []result.TestLink, target config.Target) *result.BackendResultSet {
	set := &result.BackendResultSet{Target: target.Name}
	pending := links
	for pass := 0; pass < MaxPasses && len(pending) > 0; pass++ {
		relaxed := pass == MaxPasses-1
		if pass > 0 {
			o.log.Info().
				Str("target", target.Name).
				Int("pass", pass).
				Int("links", len(pending)).
				Bool("relaxed", relaxed).
				Msg("Rerunning timeout tests")
		}
		rows, timedOut := o.RunBatch(ctx, pending, target, relaxed)
		set.Rows = append(set.Rows, rows...)
		pending = timedOut
	}
	if len(pending) > 0 {
		set.Unresolved = pending
		o.log.Warn().
			Str("target", target.Name).
			Strs("links", linkStrings(pending)).
			Msg("Please check these timeout tests")
	}
	return set
}

func linkStrings(links []result.TestLink) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = string(l)
	}
	return out
}

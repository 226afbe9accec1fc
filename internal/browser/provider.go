package browser

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/result"
)

// DefaultTestTimeout bounds one test execution, launch through scrape.
const DefaultTestTimeout = 5 * time.Minute

// Provider runs one test link in one freshly launched browser. At most one
// session is alive at any time.
type Provider struct {
	launcher Launcher
	timeout  time.Duration
	log      zerolog.Logger
	current  Session
}

func NewProvider(launcher Launcher, timeout time.Duration, log zerolog.Logger) *Provider {
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}
	return &Provider{
		launcher: launcher,
		timeout:  timeout,
		log:      log.With().Str("component", "browser").Logger(),
	}
}

// RunTest navigates to the link's page for target and returns its rows. Any
// failure is a *TestError and yields no rows.
func (p *Provider) RunTest(ctx context.Context, link result.TestLink, target config.Target, relaxed bool) ([]result.Row, error) {
	p.release()

	testURL := link.URL(string(target.Device))
	p.log.Info().Str("url", testURL).Str("target", target.Name).Bool("relaxed", relaxed).Msg("Test link")

	testCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	s, err := p.launcher.Launch(testCtx, target)
	if err != nil {
		return nil, p.fail(testURL, err)
	}
	p.current = s
	defer p.release()

	cells, err := s.ResultCells(testURL)
	if err != nil {
		return nil, p.fail(testURL, err)
	}
	rows, err := ParseRows(link.Suite(), cells, relaxed)
	if err != nil {
		return nil, p.fail(testURL, err)
	}
	p.log.Debug().Str("url", testURL).Int("rows", len(rows)).Msg("Scraped results")
	return rows, nil
}

func (p *Provider) fail(url string, err error) error {
	te := classify(url, err)
	if IsTimeout(te) {
		p.log.Warn().Str("url", url).Err(err).Msg("Timeout to run test")
	} else {
		p.log.Warn().Str("url", url).Err(err).Msg("Failed to run test")
	}
	return te
}

// release closes the active session, if any.
func (p *Provider) release() {
	if p.current == nil {
		return
	}
	if err := p.current.Close(); err != nil {
		p.log.Debug().Err(err).Msg("Closing browser session")
	}
	p.current = nil
}

// Close tears down a session left behind by an interrupted run.
func (p *Provider) Close() {
	p.release()
}

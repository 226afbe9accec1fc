package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/signalnine/wptnightly/internal/browser"
	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/discovery"
	"github.com/signalnine/wptnightly/internal/docker"
	"github.com/signalnine/wptnightly/internal/hwinfo"
	"github.com/signalnine/wptnightly/internal/mail"
	"github.com/signalnine/wptnightly/internal/report"
	"github.com/signalnine/wptnightly/internal/result"
	"github.com/signalnine/wptnightly/internal/runner"
)

var (
	flagTargets       []string
	flagSkipUnchanged bool
	flagNoMail        bool
	flagCleanup       bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the conformance suite against every configured target",
		RunE:  runNightly,
	}
	cmd.Flags().StringSliceVar(&flagTargets, "target", nil, "run only these targets (repeatable)")
	cmd.Flags().BoolVar(&flagSkipUnchanged, "skip-unchanged", false, "skip the run when the browser version was already tested")
	cmd.Flags().BoolVar(&flagNoMail, "no-mail", false, "do not send the report mail")
	cmd.Flags().BoolVar(&flagCleanup, "cleanup", false, "prune leftover browser containers after the run")
	return cmd
}

func runNightly(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger.Debug().Msgf("Config:\n%s", cfg.Summarize())

	targets, err := filterTargets(cfg.Targets(), flagTargets)
	if err != nil {
		return err
	}

	lock, err := result.AcquireRunLock(cfg.VersionFile + ".run.lock")
	if err != nil {
		return err
	}
	defer lock.Release()

	if cfg.Container.Enabled {
		if flagCleanup {
			defer func() {
				if err := docker.Prune(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("Cleaning up containers")
				}
			}()
		}
	} else {
		defer killBrowser(cfg.ProcessNames())
	}

	version, err := browser.ProbeVersion(ctx, cfg)
	if err != nil {
		return fmt.Errorf("probing %s version: %w", cfg.TargetBrowser, err)
	}
	last, err := result.ReadLastVersion(cfg.VersionFile)
	if err != nil {
		return err
	}
	logger.Info().Str("browser", cfg.TargetBrowser).Str("version", version).Str("last_version", last).Msg("Browser version")

	dispatcher := mail.NewDispatcher(cfg.Mail, logger)
	if flagSkipUnchanged && last == version {
		summary := &report.Summary{CurrentVersion: version, LastVersion: last, SameVersion: true}
		if err := report.WriteTable(summary, cmd.OutOrStdout()); err != nil {
			return err
		}
		if !flagNoMail {
			dispatcher.Send(ctx, summary, nil)
		}
		return nil
	}

	links, err := discovery.NewFetcher(cfg.TestURL, logger).Links(ctx)
	if err != nil {
		return fmt.Errorf("discovering tests: %w", err)
	}
	logger.Info().Int("links", len(links)).Msg("Discovered test modules")

	provider := browser.NewProvider(newLauncher(cfg), cfg.TestTimeout(), logger)
	defer provider.Close()

	coord := runner.NewCoordinator(
		runner.NewOrchestrator(provider, logger),
		result.NewSink(cfg.ResultDir, version),
		logger,
	)
	outcome, runErr := coord.Run(ctx, links, targets)

	var errs *multierror.Error
	if runErr != nil {
		errs = multierror.Append(errs, runErr)
	}
	if _, err := recordVersion(cfg.VersionFile, version, outcome.Artifacts); err != nil {
		logger.Error().Err(err).Msg("Saving tested version")
		errs = multierror.Append(errs, err)
	}

	// Rerunning an already tested version overwrote its artifacts, so there
	// is nothing left to diff against.
	prior := last
	if prior == version {
		prior = ""
	}
	summary, err := report.Build(report.Input{
		CurrentVersion: version,
		LastVersion:    prior,
		Artifacts:      outcome.Artifacts,
		Unresolved:     outcome.Unresolved,
		Targets:        targets,
		TestURL:        cfg.TestURL,
		TestCommand:    testCommand(cfg, targets),
		Environment:    hwinfo.Collect(ctx, logger),
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Building report")
		errs = multierror.Append(errs, err)
	}
	if err := report.WriteTable(summary, cmd.OutOrStdout()); err != nil {
		return err
	}
	if !flagNoMail {
		dispatcher.Send(ctx, summary, outcome.Artifacts)
	}
	return errs.ErrorOrNil()
}

// recordVersion marks version as tested once at least one artifact was
// saved. A run that saved nothing keeps the old marker so the next run still
// diffs against the last real results.
func recordVersion(path, version string, artifacts []result.Artifact) (bool, error) {
	if len(artifacts) == 0 {
		logger.Warn().Str("version", version).Msg("No artifacts saved, keeping last tested version")
		return false, nil
	}
	if err := result.WriteLastVersion(path, version); err != nil {
		return false, err
	}
	return true, nil
}

func newLauncher(cfg *config.Config) browser.Launcher {
	if cfg.Container.Enabled {
		return browser.NewContainerLauncher(cfg.Container, logger)
	}
	return &browser.LocalLauncher{
		ExecPath:    cfg.ExecutablePath(),
		Headless:    cfg.Headless,
		SettleDelay: cfg.LaunchDelay(),
		Log:         logger,
	}
}

func killBrowser(names []string) {
	n, err := browser.KillBrowser(context.Background(), names)
	if err != nil {
		logger.Warn().Err(err).Strs("names", names).Msg("Killing browser processes")
		return
	}
	logger.Debug().Int("killed", n).Msg("Killed browser processes")
}

// filterTargets keeps the named targets in declared order. No names means all.
func filterTargets(targets []config.Target, names []string) ([]config.Target, error) {
	if len(names) == 0 {
		return targets, nil
	}
	var filtered []config.Target
	for _, t := range targets {
		for _, n := range names {
			if strings.EqualFold(t.Name, strings.TrimSpace(n)) {
				filtered = append(filtered, t)
				break
			}
		}
	}
	if len(filtered) == 0 {
		known := make([]string, len(targets))
		for i, t := range targets {
			known[i] = t.Name
		}
		return nil, fmt.Errorf("no target matches %q (configured: %s)", names, strings.Join(known, ", "))
	}
	return filtered, nil
}

// testCommand shows how each target's browser was started, one line per target.
func testCommand(cfg *config.Config, targets []config.Target) string {
	exe := filepath.Base(cfg.ExecutablePath())
	if cfg.Container.Enabled {
		exe = cfg.Container.Image
	}
	lines := make([]string, 0, len(targets))
	for _, t := range targets {
		line := t.Name + ": " + exe
		if len(t.LaunchArgs) > 0 {
			line += " " + strings.Join(t.LaunchArgs, " ")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

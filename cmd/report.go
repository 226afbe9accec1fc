package cmd

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/signalnine/wptnightly/internal/config"
	"github.com/signalnine/wptnightly/internal/hwinfo"
	"github.com/signalnine/wptnightly/internal/mail"
	"github.com/signalnine/wptnightly/internal/report"
	"github.com/signalnine/wptnightly/internal/result"
)

var (
	flagVersion string
	flagLast    string
	flagFormat  string
	flagSend    bool
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Rebuild a summary from stored artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			artifacts, err := collectArtifacts(filepath.Join(cfg.ResultDir, flagVersion), cfg.Targets())
			if err != nil {
				return err
			}
			if len(artifacts) == 0 {
				return fmt.Errorf("no artifacts for version %s under %s", flagVersion, cfg.ResultDir)
			}

			ctx := cmd.Context()
			summary, err := report.Build(report.Input{
				CurrentVersion: flagVersion,
				LastVersion:    flagLast,
				Artifacts:      artifacts,
				Targets:        cfg.Targets(),
				TestURL:        cfg.TestURL,
				TestCommand:    testCommand(cfg, cfg.Targets()),
				Environment:    hwinfo.Collect(ctx, logger),
			}, logger)
			if err != nil {
				return err
			}
			if err := report.Generate(summary, flagFormat, cmd.OutOrStdout()); err != nil {
				return err
			}
			if flagSend && !mail.NewDispatcher(cfg.Mail, logger).Send(ctx, summary, artifacts) {
				return fmt.Errorf("report mail was not sent")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagVersion, "version", "", "browser version whose artifacts to report")
	cmd.Flags().StringVar(&flagLast, "last", "", "prior version to diff against")
	cmd.Flags().StringVar(&flagFormat, "format", report.FormatTable, "output format (table, markdown, json, html)")
	cmd.Flags().BoolVar(&flagSend, "send", false, "mail the report")
	cmd.MarkFlagRequired("version")
	return cmd
}

// collectArtifacts finds the artifacts in dir, ordered like targets with
// unknown target names last.
func collectArtifacts(dir string, targets []config.Target) ([]result.Artifact, error) {
	paths, err := filepath.Glob(result.ArtifactPath(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	rank := map[string]int{}
	for i, t := range targets {
		rank[t.Name] = i
	}
	artifacts := make([]result.Artifact, 0, len(paths))
	for _, p := range paths {
		artifacts = append(artifacts, result.Artifact{Target: result.TargetFromPath(p), Path: p})
	}
	sort.SliceStable(artifacts, func(i, j int) bool {
		ri, iok := rank[artifacts[i].Target]
		rj, jok := rank[artifacts[j].Target]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return artifacts[i].Target < artifacts[j].Target
	})
	return artifacts, nil
}

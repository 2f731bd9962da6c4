// SPDX-License-Identifier: Apache-2.0

package remediate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jdyer-nuvodia/lockdown/internal/core/config"
	"github.com/jdyer-nuvodia/lockdown/internal/core/format"
	"github.com/jdyer-nuvodia/lockdown/internal/core/models"
	"github.com/jdyer-nuvodia/lockdown/internal/gateway"
	"github.com/jdyer-nuvodia/lockdown/internal/remediation"
)

// ConnectGateway is supplied by a backend integration build. The open-source
// tree ships without one; live runs fail a precondition check until a
// connector is wired in, while --dry-run works everywhere.
var ConnectGateway func(ctx context.Context) (gateway.Gateway, error)

// NewRemediateCmd creates the remediate command.
func NewRemediateCmd() *cobra.Command {
	var (
		configFile     string
		pipelineFile   string
		outputDir      string
		enableMFA      bool
		nonInteractive bool
		dryRun         bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   "remediate [user-principal-name]",
		Short: "Run the lockdown pipeline against a compromised account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := models.TargetIdentity(args[0])

			cfg, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.OutputDir = config.ExpandPathWithTilde(outputDir)
			}

			logger, err := newLogger(verbose)
			if err != nil {
				return fmt.Errorf("error creating logger: %w", err)
			}
			defer logger.Sync()

			ctx := cmd.Context()
			gw, err := connect(ctx, dryRun)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.OutputDir, 0o700); err != nil {
				return fmt.Errorf("error creating output directory: %w", err)
			}

			deps := remediation.Deps{
				Gateway: gw,
				Secrets: fileSecretSink{dir: cfg.OutputDir},
				Audit:   fileAuditSink{dir: cfg.OutputDir},
				Confirm: confirmFunc(enableMFA, nonInteractive, cmd.InOrStdin(), cmd.OutOrStdout()),
				Logger:  logger,
			}
			registry := remediation.NewRegistry(deps, remediation.Options{
				RecentRuleAgeDays: cfg.RecentRuleAgeDays,
				AuditLookbackDays: cfg.AuditLookbackDays,
				MFAMethod:         cfg.MFAMethod,
				SecretLength:      cfg.SecretLength,
			})

			var steps []remediation.Step
			if pipelineFile != "" {
				steps, err = remediation.LoadPipelineFile(pipelineFile, registry)
			} else {
				steps, err = registry.DefaultPipeline()
			}
			if err != nil {
				return err
			}

			runner, err := remediation.NewRunner(deps, models.ExecutionOptions{
				DryRun:         dryRun,
				VerboseLogging: verbose,
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "Running in dry-run mode - no actions will be executed")
			}

			report, err := runner.Run(ctx, target, steps)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), remediation.Summary(report))

			reportPath := filepath.Join(cfg.OutputDir, remediation.ReportFileName(target, report.StartedAt))
			if err := remediation.WriteReportFile(reportPath, report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportPath)

			if failed := report.FailedCount(); failed > 0 {
				return fmt.Errorf("%d of %d remediation steps failed; manual follow-up required", failed, len(report.Entries))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file (default is ~/.lockdown/config.yaml)")
	cmd.Flags().StringVar(&pipelineFile, "pipeline", "", "pipeline definition file (default is the builtin seven-step pipeline)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for reports, audit exports, and credential files")
	cmd.Flags().BoolVar(&enableMFA, "enable-mfa", false, "approve MFA enablement without prompting")
	cmd.Flags().BoolVar(&nonInteractive, "non-interactive", false, "never prompt; unapproved confirmations are declined")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "show what would be done without executing actions")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GlobalConfigFilePath()
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.NewDefaultConfig(), nil
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	logCfg := zap.NewDevelopmentConfig()
	if !verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	return logCfg.Build()
}

func connect(ctx context.Context, dryRun bool) (gateway.Gateway, error) {
	if dryRun {
		// The runner never issues backend calls in dry-run mode.
		return gateway.Nop(), nil
	}
	if ConnectGateway == nil {
		return nil, errors.New("no identity gateway session: build with a backend connector or use --dry-run")
	}
	gw, err := ConnectGateway(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to identity gateway: %w", err)
	}
	return gw, nil
}

// confirmFunc wires the operator-confirmation policy: an explicit approval
// flag wins, non-interactive runs decline, otherwise prompt.
func confirmFunc(approved, nonInteractive bool, in io.Reader, out io.Writer) remediation.ConfirmFunc {
	if approved {
		return func(string) bool { return true }
	}
	if nonInteractive {
		return func(string) bool { return false }
	}
	reader := bufio.NewReader(in)
	return func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

type fileSecretSink struct {
	dir string
}

// StoreSecret writes the replacement credential to a file only the invoking
// operator can read.
func (s fileSecretSink) StoreSecret(identity models.TargetIdentity, secret string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s-credential.txt", remediation.SafeName(identity)))
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return fmt.Errorf("error writing credential file: %w", err)
	}
	return nil
}

type fileAuditSink struct {
	dir string
}

func (s fileAuditSink) WriteEvents(identity models.TargetIdentity, events []gateway.AuditEvent) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s-audit.yaml", remediation.SafeName(identity)))
	return format.WriteFile(path, events)
}

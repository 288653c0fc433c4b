package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscomprehend "github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstranscribe "github.com/aws/aws-sdk-go-v2/service/transcribe"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"bleep/internal/logging"
	"bleep/internal/pipeline"
	"bleep/internal/reports"
	"bleep/internal/services"
	"bleep/internal/services/comprehend"
	"bleep/internal/services/s3store"
	"bleep/internal/services/transcribe"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every unredacted audio object in the input bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, ctx, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List what a run would process without starting jobs")
	return cmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, dryRun bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405Z")
	runCtx := services.WithRequestID(signalCtx, runID)
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("bleep-%s.log", runID))
	logger, err := logging.NewFromConfig(cfg, "stderr", logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	awsCfg, err := loadAWSConfig(signalCtx, cfg.AWS.Region, cfg.AWS.Profile)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	store := s3store.New(s3.NewFromConfig(awsCfg))
	driver := pipeline.New(
		cfg,
		store,
		transcribe.New(awstranscribe.NewFromConfig(awsCfg), cfg),
		comprehend.New(awscomprehend.NewFromConfig(awsCfg)),
		logger,
	)

	out := cmd.OutOrStdout()
	if dryRun {
		process, skipped, err := driver.Plan(signalCtx)
		if err != nil {
			return fmt.Errorf("plan run: %w", err)
		}
		fmt.Fprint(out, renderPlan(process, skipped))
		return nil
	}

	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "bleep.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return errors.New("another bleep run is already in progress")
	}
	defer lock.Unlock()

	summary, runErr := driver.Run(runCtx)
	if summary == nil {
		if runErr != nil {
			return runErr
		}
		return errors.New("run produced no summary")
	}

	if ledger, ledgerErr := reports.Open(cfg); ledgerErr != nil {
		logger.Warn("run history unavailable", logging.Error(ledgerErr))
	} else {
		if recordErr := ledger.RecordRun(cmd.Context(), summary); recordErr != nil {
			logger.Warn("failed to record run history", logging.Error(recordErr))
		}
		_ = ledger.Close()
	}

	fmt.Fprint(out, renderSummary(summary))

	if runErr != nil {
		return &exitCodeError{code: 1, err: runErr}
	}
	if !summary.Clean() {
		return &exitCodeError{code: 1, err: fmt.Errorf("%d of %d items did not complete", summary.Failed, summary.Discovered)}
	}
	return nil
}

func loadAWSConfig(ctx context.Context, region, profile string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

func renderPlan(process, skipped []string) string {
	rows := make([][]string, 0, len(process)+len(skipped))
	for _, key := range process {
		rows = append(rows, []string{key, "process"})
	}
	for _, key := range skipped {
		rows = append(rows, []string{key, "skip (output exists)"})
	}
	if len(rows) == 0 {
		return "Nothing to process\n"
	}
	return renderTable([]string{"Object", "Action"}, rows, nil) + "\n"
}

func renderSummary(summary *pipeline.Summary) string {
	rows := [][]string{
		{"Discovered", strconv.Itoa(summary.Discovered)},
		{"Skipped", strconv.Itoa(summary.Skipped)},
		{"Completed", strconv.Itoa(summary.Completed)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Duration", summary.Duration().Round(time.Second).String()},
	}
	if summary.Stopped {
		rows = append(rows, []string{"Stopped", "yes"})
	}
	output := renderTable([]string{"Run", "Count"}, rows, []int{1}) + "\n"

	if len(summary.Failures) > 0 {
		failureRows := make([][]string, 0, len(summary.Failures))
		for _, failure := range summary.Failures {
			failureRows = append(failureRows, []string{failure.SourceKey, failure.Reason})
		}
		output += renderTable([]string{"Failed Object", "Reason"}, failureRows, nil) + "\n"
	}
	return output
}

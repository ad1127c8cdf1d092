package cmd

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payments-engine/app"
	"payments-engine/logging"
	"payments-engine/report"
	"payments-engine/source"
	"payments-engine/store"
)

const (
	defaultLogLevel = "warn"
)

// newLedgerStore is swapped in tests to start a run from seeded ledgers.
var newLedgerStore = func() store.LedgerStore {
	return store.NewInMemoryLedgerStore()
}

type options struct {
	workers  int
	logLevel string
}

// newRootCmd builds the command. The report goes to the command's stdout,
// logs and diagnostics to its stderr.
func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "payments-engine <transactions.csv>",
		Short: "Replay a transaction log and print every client's final balances",
		Long: `payments-engine reads a CSV log of deposits, withdrawals, disputes,
resolves and chargebacks, applies it client by client and prints one line
per client: client,available,held,total,locked.

A log that fails to decode anywhere is rejected as a whole and no report is
printed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVar(&opts.workers, "workers", app.DefaultWorkers, "Number of goroutines applying commands; each client stays on one")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", defaultLogLevel, "Log level written to stderr (debug, info, warn, error)")
	// The documented interface is the single path argument.
	_ = cmd.Flags().MarkHidden("workers")
	_ = cmd.Flags().MarkHidden("log-level")

	return cmd
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		exitWithError(rootCmd.ErrOrStderr(), err)
		stop()
		os.Exit(1)
	}
}

func exitWithError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}

func run(ctx context.Context, path string, opts *options, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.NewWithWriter(opts.logLevel, stderr)
	if err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()), zap.String("input", path))
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open transaction log: %w", err)
	}
	defer f.Close()

	rd, err := source.NewReader(bufio.NewReader(f))
	if err != nil {
		return untrustworthy(err)
	}

	service := app.NewLedgerService(
		newLedgerStore(),
		store.NewInMemorySnapshotStore(),
		logger,
		app.WithWorkers(opts.workers),
	)

	if _, err := service.Process(ctx, rd); err != nil {
		if errors.Is(err, source.ErrInvalidInput) {
			return untrustworthy(err)
		}
		return fmt.Errorf("processing aborted: %w", err)
	}

	snapshots, err := service.Snapshots()
	if err != nil {
		return err
	}

	// Render fully before writing so a failure never leaves a partial report.
	var buf bytes.Buffer
	if err := report.Write(&buf, snapshots); err != nil {
		return err
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

func untrustworthy(err error) error {
	return fmt.Errorf("transaction log is not trustworthy, no report produced: %w", err)
}

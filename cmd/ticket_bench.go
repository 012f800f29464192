package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussie/pubtkt/internal/benchmark"
	"github.com/aussie/pubtkt/internal/ticket"
)

var (
	benchFlags    ticketFlags
	benchTickets  int
	benchInterval time.Duration
	benchOutput   string
)

var ticketBenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure ticket issuance latency",
	Long: `Issue tickets at a fixed rate and report the latency distribution.

This command uses open-loop load testing to avoid coordinated omission:
new issuances start at fixed intervals regardless of how long earlier ones
take to sign. All issuances share one key, as a login service would.

Examples:
  # 100 tickets, one every 10ms, with the configured key
  pubtkt ticket bench

  # Custom number of tickets and interval
  pubtkt ticket bench -n 500 --interval 2ms

  # Output as JSON for automation
  pubtkt ticket bench -o json`,
	Args: cobra.NoArgs,
	RunE: runTicketBench,
}

func init() {
	ticketCmd.AddCommand(ticketBenchCmd)

	ticketBenchCmd.Flags().IntVarP(&benchTickets, "tickets", "n", 100,
		"Total number of tickets to issue")
	ticketBenchCmd.Flags().DurationVar(&benchInterval, "interval", 10*time.Millisecond,
		"Interval between starting new issuances (open-loop)")
	ticketBenchCmd.Flags().StringVarP(&benchOutput, "output", "o", "text",
		"Output format: text, json")
	ticketBenchCmd.Flags().StringVarP(&benchFlags.uid, "uid", "u", "benchmark",
		"user ID placed in every ticket")
	benchFlags.register(ticketBenchCmd.Flags())
}

func runTicketBench(cmd *cobra.Command, args []string) error {
	outputFormat := strings.ToLower(benchOutput)
	if outputFormat != benchmark.OutputFormatText && outputFormat != benchmark.OutputFormatJSON {
		return fmt.Errorf("invalid output format: %s (use 'text' or 'json')", benchOutput)
	}

	req, err := benchFlags.request(cmd.Flags())
	if err != nil {
		return err
	}

	key, err := benchFlags.loadKey()
	if err != nil {
		return err
	}
	issuer := ticket.NewIssuer(key, ticket.WithLogger(appLogger))

	benchCfg := benchmark.Config{
		Tickets:  benchTickets,
		Interval: benchInterval,
		Request:  req,
	}
	if err := benchCfg.Validate(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == benchmark.OutputFormatText {
		fmt.Fprintf(out, "Starting benchmark...\n")
		fmt.Fprintf(out, "  Key:       %s (%d-bit RSA)\n", benchFlags.keyPath(), key.N.BitLen())
		fmt.Fprintf(out, "  Tickets:   %d\n", benchTickets)
		fmt.Fprintf(out, "  Interval:  %s\n", benchInterval)
		fmt.Fprintf(out, "  Estimated: ~%s\n", benchCfg.EstimatedDuration().Round(time.Millisecond))
		fmt.Fprintln(out)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Stop scheduling on interrupt; in-flight issuances still complete.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			appLogger.Info("interrupted, waiting for in-flight issuances")
			cancel()
		case <-ctx.Done():
		}
	}()

	summary, err := benchmark.NewRunner(benchCfg, issuer).Run(ctx)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}

	return benchmark.WriteOutput(out, summary, benchmark.OutputConfig{
		UID:     req.UID,
		KeyPath: benchFlags.keyPath(),
		KeyBits: key.N.BitLen(),
		Format:  outputFormat,
	})
}

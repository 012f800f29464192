// Package benchmark measures ticket issuance latency under open-loop load.
package benchmark

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aussie/pubtkt/internal/ticket"
)

// TicketIssuer issues one ticket per call. *ticket.Issuer satisfies it.
type TicketIssuer interface {
	Issue(req ticket.Request) (string, error)
}

// Config contains benchmark configuration.
type Config struct {
	// Tickets is the total number of tickets to issue.
	Tickets int

	// Interval is the time between starting new issuances. Issuances are
	// started on schedule even when earlier ones are still signing.
	Interval time.Duration

	// Request is issued on every iteration.
	Request ticket.Request
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Tickets <= 0 {
		return fmt.Errorf("ticket count must be positive")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.Request.UID == "" {
		return fmt.Errorf("uid is required")
	}
	return nil
}

// EstimatedDuration returns the scheduling time of the run; the first
// issuance starts immediately.
func (c *Config) EstimatedDuration() time.Duration {
	return time.Duration(c.Tickets-1) * c.Interval
}

// Result is the outcome of one issuance.
type Result struct {
	Latency time.Duration
	Bytes   int
	Err     error
}

// Runner drives a TicketIssuer according to a Config.
type Runner struct {
	config Config
	issuer TicketIssuer
	stats  *Stats
}

// NewRunner creates a runner for issuer.
func NewRunner(cfg Config, issuer TicketIssuer) *Runner {
	return &Runner{
		config: cfg,
		issuer: issuer,
		stats:  NewStats(),
	}
}

// Run issues the configured number of tickets and returns statistics.
// Cancelling ctx stops scheduling; issuances already started complete and
// are counted.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	results := make(chan Result, r.config.Tickets)
	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.issueOne()
		}()
	}

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	start()
schedule:
	for sent := 1; sent < r.config.Tickets; sent++ {
		select {
		case <-ctx.Done():
			break schedule
		case <-ticker.C:
			start()
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		r.stats.Record(res)
	}

	r.stats.Finalize()
	summary := r.stats.Summary()
	return &summary, nil
}

func (r *Runner) issueOne() Result {
	begin := time.Now()
	tkt, err := r.issuer.Issue(r.config.Request)
	return Result{
		Latency: time.Since(begin),
		Bytes:   len(tkt),
		Err:     err,
	}
}

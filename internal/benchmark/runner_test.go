package benchmark

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussie/pubtkt/internal/ticket"
)

type fakeIssuer struct {
	calls atomic.Int32
	delay time.Duration
	fail  func(n int32) bool
}

func (f *fakeIssuer) Issue(req ticket.Request) (string, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.fail != nil && f.fail(n) {
		return "", errors.New("signing failed")
	}
	return "uid=" + req.UID + ";validuntil=1;sig=AAAA", nil
}

func validConfig() Config {
	return Config{
		Tickets:  10,
		Interval: time.Millisecond,
		Request:  ticket.Request{UID: "bench", Valid: time.Minute},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"zero tickets", func(c *Config) { c.Tickets = 0 }, true},
		{"negative tickets", func(c *Config) { c.Tickets = -1 }, true},
		{"zero interval", func(c *Config) { c.Interval = 0 }, true},
		{"missing uid", func(c *Config) { c.Request.UID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEstimatedDuration(t *testing.T) {
	cfg := Config{Tickets: 11, Interval: 5 * time.Millisecond}
	if got := cfg.EstimatedDuration(); got != 50*time.Millisecond {
		t.Errorf("EstimatedDuration() = %v, want 50ms", got)
	}
}

func TestRunnerRun_AllIssued(t *testing.T) {
	issuer := &fakeIssuer{}
	runner := NewRunner(validConfig(), issuer)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := issuer.calls.Load(); got != 10 {
		t.Errorf("issuer called %d times, want 10", got)
	}
	if summary.Total != 10 || summary.Issued != 10 || summary.Failed != 0 {
		t.Errorf("summary counts = %d/%d/%d, want 10/10/0", summary.Total, summary.Issued, summary.Failed)
	}
	want := float64(len("uid=bench;validuntil=1;sig=AAAA"))
	if summary.AvgBytes != want {
		t.Errorf("AvgBytes = %v, want %v", summary.AvgBytes, want)
	}
}

func TestRunnerRun_RecordsFailures(t *testing.T) {
	issuer := &fakeIssuer{fail: func(n int32) bool { return n%2 == 0 }}
	runner := NewRunner(validConfig(), issuer)

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Failed != 5 || summary.Issued != 5 {
		t.Errorf("Issued/Failed = %d/%d, want 5/5", summary.Issued, summary.Failed)
	}
	if summary.FailureRate != 0.5 {
		t.Errorf("FailureRate = %v, want 0.5", summary.FailureRate)
	}
}

func TestRunnerRun_OpenLoop(t *testing.T) {
	// Each issuance takes longer than the interval; an open-loop runner still
	// finishes close to (n-1)*interval + delay instead of n*delay.
	issuer := &fakeIssuer{delay: 50 * time.Millisecond}
	cfg := validConfig()
	cfg.Interval = 5 * time.Millisecond

	start := time.Now()
	if _, err := NewRunner(cfg, issuer).Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	elapsed := time.Since(start)

	if elapsed >= 10*issuer.delay {
		t.Errorf("Run() took %v, issuances were not overlapped", elapsed)
	}
}

func TestRunnerRun_ContextCancellation(t *testing.T) {
	issuer := &fakeIssuer{}
	cfg := validConfig()
	cfg.Tickets = 1000
	cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	summary, err := NewRunner(cfg, issuer).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Total == 0 || summary.Total >= 1000 {
		t.Errorf("Total = %d, want a partial run", summary.Total)
	}
	if int32(summary.Total) != issuer.calls.Load() {
		t.Errorf("Total = %d, issuer calls = %d", summary.Total, issuer.calls.Load())
	}
}

func TestRunnerRun_InvalidConfig(t *testing.T) {
	runner := NewRunner(Config{}, &fakeIssuer{})
	if _, err := runner.Run(context.Background()); err == nil {
		t.Error("Run() should fail for an invalid config")
	}
}

func TestRunnerRun_RealIssuerInterface(t *testing.T) {
	var _ TicketIssuer = (*ticket.Issuer)(nil)
}

package benchmark

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	// OutputFormatText is human-readable text output.
	OutputFormatText = "text"
	// OutputFormatJSON is JSON output.
	OutputFormatJSON = "json"
)

// OutputConfig describes what was benchmarked, for the report header.
type OutputConfig struct {
	UID     string
	KeyPath string
	KeyBits int
	Format  string
}

// WriteOutput writes summary to w in cfg.Format. Unknown formats fall back
// to text.
func WriteOutput(w io.Writer, summary *Summary, cfg OutputConfig) error {
	if cfg.Format == OutputFormatJSON {
		return writeJSON(w, summary, cfg)
	}
	return writeText(w, summary, cfg)
}

// JSONOutput is the JSON report.
type JSONOutput struct {
	UID         string          `json:"uid"`
	Key         string          `json:"key"`
	KeyBits     int             `json:"key_bits,omitempty"`
	Summary     JSONSummary     `json:"summary"`
	Latency     JSONLatency     `json:"latency"`
	Percentiles JSONPercentiles `json:"percentiles"`
	Histogram   []JSONBucket    `json:"histogram"`
}

// JSONSummary contains counts and throughput.
type JSONSummary struct {
	Total          int64   `json:"total"`
	Issued         int64   `json:"issued"`
	Failed         int64   `json:"failed"`
	FailureRate    float64 `json:"failure_rate"`
	AvgTicketBytes float64 `json:"avg_ticket_bytes"`
	DurationMs     float64 `json:"duration_ms"`
	TicketsPerSec  float64 `json:"tickets_per_sec"`
}

// JSONLatency contains latency statistics in milliseconds.
type JSONLatency struct {
	MinMs    float64 `json:"min_ms"`
	MaxMs    float64 `json:"max_ms"`
	MeanMs   float64 `json:"mean_ms"`
	StdDevMs float64 `json:"stddev_ms"`
}

// JSONPercentiles contains percentile values in milliseconds.
type JSONPercentiles struct {
	P50Ms float64 `json:"p50_ms"`
	P90Ms float64 `json:"p90_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// JSONBucket is one histogram bucket.
type JSONBucket struct {
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeJSON(w io.Writer, s *Summary, cfg OutputConfig) error {
	out := JSONOutput{
		UID:     cfg.UID,
		Key:     cfg.KeyPath,
		KeyBits: cfg.KeyBits,
		Summary: JSONSummary{
			Total:          s.Total,
			Issued:         s.Issued,
			Failed:         s.Failed,
			FailureRate:    s.FailureRate,
			AvgTicketBytes: s.AvgBytes,
			DurationMs:     ms(s.Duration),
			TicketsPerSec:  s.PerSecond,
		},
		Latency: JSONLatency{
			MinMs:    ms(s.Min),
			MaxMs:    ms(s.Max),
			MeanMs:   ms(s.Mean),
			StdDevMs: ms(s.StdDev),
		},
		Percentiles: JSONPercentiles{
			P50Ms: ms(s.P50),
			P90Ms: ms(s.P90),
			P95Ms: ms(s.P95),
			P99Ms: ms(s.P99),
		},
		Histogram: make([]JSONBucket, 0, len(s.Histogram)),
	}
	for _, b := range s.Histogram {
		out.Histogram = append(out.Histogram, JSONBucket{Label: b.Label, Count: b.Count, Percentage: b.Percentage})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeText(w io.Writer, s *Summary, cfg OutputConfig) error {
	fmt.Fprintln(w, "Issuance Benchmark")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "UID: %s\n", cfg.UID)
	if cfg.KeyBits > 0 {
		fmt.Fprintf(w, "Key: %s (%d-bit RSA)\n", cfg.KeyPath, cfg.KeyBits)
	} else {
		fmt.Fprintf(w, "Key: %s\n", cfg.KeyPath)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "  Tickets:           %d\n", s.Total)
	fmt.Fprintf(w, "  Issued:            %d (%.1f%%)\n", s.Issued, (1-s.FailureRate)*100)
	fmt.Fprintf(w, "  Failed:            %d (%.1f%%)\n", s.Failed, s.FailureRate*100)
	fmt.Fprintf(w, "  Avg ticket size:   %.0f bytes\n", s.AvgBytes)
	fmt.Fprintf(w, "  Duration:          %s\n", formatDuration(s.Duration))
	fmt.Fprintf(w, "  Tickets/sec:       %.1f\n", s.PerSecond)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Latency")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "  Min:      %-12s  Max:      %s\n", formatDuration(s.Min), formatDuration(s.Max))
	fmt.Fprintf(w, "  Mean:     %-12s  Std Dev:  %s\n", formatDuration(s.Mean), formatDuration(s.StdDev))
	fmt.Fprintf(w, "  P50:  %-10s  P90:  %-10s  P95:  %-10s  P99:  %s\n",
		formatDuration(s.P50), formatDuration(s.P90), formatDuration(s.P95), formatDuration(s.P99))

	if len(s.Histogram) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Histogram")
		fmt.Fprintln(w, "---------")
		writeHistogram(w, s.Histogram)
	}
	return nil
}

const barWidth = 20

func writeHistogram(w io.Writer, buckets []HistogramBucket) {
	var peak int64
	for _, b := range buckets {
		peak = max(peak, b.Count)
	}

	for _, b := range buckets {
		n := 0
		if peak > 0 {
			n = int(float64(b.Count) / float64(peak) * barWidth)
		}
		if b.Count > 0 && n == 0 {
			n = 1
		}
		bar := strings.Repeat("#", n) + strings.Repeat(" ", barWidth-n)
		fmt.Fprintf(w, "  %-10s [%s] %d (%.1f%%)\n", b.Label, bar, b.Count, b.Percentage)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0"
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.1fus", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1e6)
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

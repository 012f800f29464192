package benchmark

import (
	"math"
	"slices"
	"sync"
	"time"
)

// Stats collects issuance results. It is safe for concurrent use.
type Stats struct {
	mu        sync.Mutex
	latencies []time.Duration
	issued    int64
	failed    int64
	bytes     int64
	startTime time.Time
	endTime   time.Time
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{
		latencies: make([]time.Duration, 0, 256),
		startTime: time.Now(),
	}
}

// Record adds one issuance result.
func (s *Stats) Record(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = append(s.latencies, res.Latency)
	if res.Err != nil {
		s.failed++
		return
	}
	s.issued++
	s.bytes += int64(res.Bytes)
}

// Finalize marks the end of the run.
func (s *Stats) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTime = time.Now()
}

// Summary contains computed statistics from a run.
type Summary struct {
	Total       int64
	Issued      int64
	Failed      int64
	FailureRate float64
	AvgBytes    float64

	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration
	P50    time.Duration
	P90    time.Duration
	P95    time.Duration
	P99    time.Duration

	Duration  time.Duration
	PerSecond float64
	Histogram []HistogramBucket
}

// HistogramBucket counts latencies in [LowerBound, UpperBound).
type HistogramBucket struct {
	Label      string
	LowerBound time.Duration
	UpperBound time.Duration
	Count      int64
	Percentage float64
}

// Summary computes the statistics collected so far.
func (s *Stats) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Total:  s.issued + s.failed,
		Issued: s.issued,
		Failed: s.failed,
	}
	if sum.Total > 0 {
		sum.FailureRate = float64(s.failed) / float64(sum.Total)
	}
	if s.issued > 0 {
		sum.AvgBytes = float64(s.bytes) / float64(s.issued)
	}

	end := s.endTime
	if end.IsZero() {
		end = time.Now()
	}
	sum.Duration = end.Sub(s.startTime)
	if sum.Duration > 0 {
		sum.PerSecond = float64(sum.Total) / sum.Duration.Seconds()
	}

	if len(s.latencies) == 0 {
		return sum
	}

	sorted := slices.Clone(s.latencies)
	slices.Sort(sorted)

	sum.Min = sorted[0]
	sum.Max = sorted[len(sorted)-1]
	sum.Mean = mean(sorted)
	sum.StdDev = stdDev(sorted, sum.Mean)
	sum.P50 = percentile(sorted, 50)
	sum.P90 = percentile(sorted, 90)
	sum.P95 = percentile(sorted, 95)
	sum.P99 = percentile(sorted, 99)
	sum.Histogram = histogram(sorted)
	return sum
}

func mean(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var total int64
	for _, v := range d {
		total += int64(v)
	}
	return time.Duration(total / int64(len(d)))
}

// stdDev is the population standard deviation.
func stdDev(d []time.Duration, m time.Duration) time.Duration {
	if len(d) < 2 {
		return 0
	}
	var sq float64
	for _, v := range d {
		diff := float64(v - m)
		sq += diff * diff
	}
	return time.Duration(math.Sqrt(sq / float64(len(d))))
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + time.Duration(frac*float64(sorted[lo+1]-sorted[lo]))
}

// bucketBounds cover the range of RSA signing latencies, 2048 to 8192 bits.
var bucketBounds = []struct {
	label string
	upper time.Duration
}{
	{"< 1ms", time.Millisecond},
	{"1-2ms", 2 * time.Millisecond},
	{"2-5ms", 5 * time.Millisecond},
	{"5-10ms", 10 * time.Millisecond},
	{"10-20ms", 20 * time.Millisecond},
	{"20-50ms", 50 * time.Millisecond},
	{"50-100ms", 100 * time.Millisecond},
	{"100-250ms", 250 * time.Millisecond},
	{"250ms-1s", time.Second},
	{"> 1s", time.Duration(math.MaxInt64)},
}

// histogram buckets sorted latencies and trims empty buckets at both ends.
func histogram(sorted []time.Duration) []HistogramBucket {
	if len(sorted) == 0 {
		return nil
	}

	buckets := make([]HistogramBucket, len(bucketBounds))
	var lower time.Duration
	for i, b := range bucketBounds {
		buckets[i] = HistogramBucket{Label: b.label, LowerBound: lower, UpperBound: b.upper}
		lower = b.upper
	}

	i := 0
	for _, v := range sorted {
		for i < len(buckets)-1 && v >= buckets[i].UpperBound {
			i++
		}
		buckets[i].Count++
	}

	total := float64(len(sorted))
	first, last := -1, -1
	for i := range buckets {
		buckets[i].Percentage = float64(buckets[i].Count) / total * 100
		if buckets[i].Count > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return buckets[first : last+1]
}

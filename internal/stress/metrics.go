package stress

import (
	"fmt"
	"sort"
	"time"
)

// submitLatencyTarget is the per-review acceptance threshold used for
// recommendations.
const submitLatencyTarget = 10 * time.Millisecond

// summarize merges per-worker samples into a Result.
func summarize(cfg Config, workers []*worker, avgCompute time.Duration, heapBefore, heapAfter uint64) *Result {
	var (
		reviews  int
		sessions int
		failed   int
		starts   []time.Duration
		submits  []time.Duration
		errs     []string
	)
	for _, w := range workers {
		reviews += w.reviews
		sessions += w.sessions
		failed += w.failed
		starts = append(starts, w.starts...)
		submits = append(submits, w.submits...)
		errs = append(errs, w.errs...)
	}

	ops := reviews + sessions + failed
	stability := 1.0
	if ops > 0 {
		stability = 1.0 - float64(failed)/float64(ops)
	}

	m := Metrics{
		Reviews:          reviews,
		SessionsStarted:  sessions,
		ReviewsPerSecond: float64(reviews) / cfg.Duration.Seconds(),
		AvgReviewCompute: avgCompute,
		AvgQueueBuild:    mean(starts),
		AvgSubmit:        mean(submits),
		P95Submit:        percentile(submits, 0.95),
		HeapBefore:       heapBefore,
		HeapAfter:        heapAfter,
		StabilityScore:   stability,
	}

	return &Result{
		Success:         failed == 0,
		Metrics:         m,
		Errors:          errs,
		Recommendations: recommend(cfg, m),
	}
}

func recommend(cfg Config, m Metrics) []string {
	var recs []string
	if m.AvgQueueBuild > time.Second {
		recs = append(recs, fmt.Sprintf(
			"queue snapshot took %s on average for %d cards; add a due-date index or page the card load",
			m.AvgQueueBuild, cfg.Cards))
	}
	if m.P95Submit > submitLatencyTarget {
		recs = append(recs, fmt.Sprintf(
			"p95 submit latency %s exceeds %s; check card store write path", m.P95Submit, submitLatencyTarget))
	}
	if m.StabilityScore < 1.0 {
		recs = append(recs, fmt.Sprintf(
			"stability score %.4f: some operations failed under load, inspect errors", m.StabilityScore))
	}
	if heapGrowth(m) > 256<<20 {
		recs = append(recs, fmt.Sprintf(
			"heap grew by %d MiB during the run; profile allocations in the session loop", heapGrowth(m)>>20))
	}
	if len(recs) == 0 {
		recs = append(recs, fmt.Sprintf(
			"all targets met at %d cards x %d sessions (%.0f reviews/s)",
			cfg.Cards, cfg.Sessions, m.ReviewsPerSecond))
	}
	return recs
}

func heapGrowth(m Metrics) uint64 {
	if m.HeapAfter <= m.HeapBefore {
		return 0
	}
	return m.HeapAfter - m.HeapBefore
}

func mean(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, s := range samples {
		total += s
	}
	return total / time.Duration(len(samples))
}

func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

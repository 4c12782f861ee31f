package pow

import (
	"context"
	"runtime"
	"time"
)

// Default values for the hashrate calibration.
const (
	DefaultBenchmarkBudget = 200 * time.Millisecond
	DefaultBenchmarkBatch  = 1000
)

// benchmarkText is the placeholder input hashed during calibration.
const benchmarkText = "benchmark"

// Benchmark measures how many hashes per second this machine can perform.
// Work is done in batches and the clock is checked after each batch, so the
// budget can be overrun by at most one batch.
func Benchmark(ctx context.Context, budget time.Duration, batch int) (float64, error) {
	if budget <= 0 {
		budget = DefaultBenchmarkBudget
	}
	if batch <= 0 {
		batch = DefaultBenchmarkBatch
	}

	start := time.Now()
	var hashes uint64

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		if elapsed := time.Since(start); elapsed > budget {
			return float64(hashes) / elapsed.Seconds(), nil
		}

		for i := 0; i < batch; i++ {
			Digest(benchmarkText, hashes)
			hashes++
		}

		runtime.Gosched()
	}
}

// Estimate is the projected solve time for a difficulty tier.
type Estimate struct {
	Difficulty int
	Seconds    float64
}

// String implements the fmt.Stringer interface.
func (e Estimate) String() string {
	return FormatTime(e.Seconds)
}

// Estimates projects the solve time for each of the difficulty tiers.
func Estimates(hashesPerSecond float64, tiers []int) []Estimate {
	ests := make([]Estimate, len(tiers))
	for i, d := range tiers {
		ests[i] = Estimate{
			Difficulty: d,
			Seconds:    EstimateSeconds(d, hashesPerSecond),
		}
	}

	return ests
}

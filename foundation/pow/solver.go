package pow

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Default values used when a SolverConfig field is left as zero.
const (
	DefaultBatchSize        = 10_000
	DefaultProgressInterval = 100 * time.Millisecond
)

// Progress is a snapshot of a solve in flight.
type Progress struct {
	Elapsed         time.Duration
	Hashes          uint64
	HashesPerSecond float64
	EstimatedTotal  float64 // Seconds, 16^difficulty / HashesPerSecond.
	Final           bool
}

// SolverConfig represents the knobs for the nonce search.
type SolverConfig struct {
	BatchSize        int
	ProgressInterval time.Duration
}

// Solver performs the brute force nonce search.
type Solver struct {
	batchSize        uint64
	progressInterval time.Duration
}

// NewSolver constructs a solver, applying defaults for zero values.
func NewSolver(cfg SolverConfig) *Solver {
	s := Solver{
		batchSize:        DefaultBatchSize,
		progressInterval: DefaultProgressInterval,
	}
	if cfg.BatchSize > 0 {
		s.batchSize = uint64(cfg.BatchSize)
	}
	if cfg.ProgressInterval > 0 {
		s.progressInterval = cfg.ProgressInterval
	}

	return &s
}

// =============================================================================

// session carries the state of a single solve. The search G writes the
// counters and the progress G reads them.
type session struct {
	start      time.Time
	difficulty int
	hashes     atomic.Uint64
}

func (ss *session) snapshot(final bool) Progress {
	elapsed := time.Since(ss.start)
	hashes := ss.hashes.Load()

	var rate float64
	if secs := elapsed.Seconds(); secs > 0 {
		rate = float64(hashes) / secs
	}

	return Progress{
		Elapsed:         elapsed,
		Hashes:          hashes,
		HashesPerSecond: rate,
		EstimatedTotal:  EstimateSeconds(ss.difficulty, rate),
		Final:           final,
	}
}

// =============================================================================

// Solve searches nonces 0, 1, 2, ... until the digest of the text and nonce
// has difficulty leading hex zeros. The first match is returned, so the
// nonce is the smallest one that solves the puzzle.
//
// Progress snapshots are sent on the channel every progress interval and
// dropped if the receiver isn't ready. A final snapshot is sent before
// Solve returns and then the channel is closed. A nil channel disables
// progress reporting.
func (s *Solver) Solve(ctx context.Context, text string, difficulty int, progress chan<- Progress) (Solution, error) {
	if err := ValidateDifficulty(difficulty); err != nil {
		if progress != nil {
			close(progress)
		}
		return Solution{}, err
	}

	ss := session{
		start:      time.Now(),
		difficulty: difficulty,
	}

	stop := s.startProgress(&ss, progress)

	nonce, err := s.search(ctx, &ss, text)

	// The periodic reporting must be finished before the final snapshot
	// goes out so snapshots stay ordered.
	stop()

	if err != nil {
		if progress != nil {
			close(progress)
		}
		return Solution{}, err
	}

	final := ss.snapshot(true)
	if progress != nil {
		select {
		case progress <- final:
		case <-ctx.Done():
		}
		close(progress)
	}

	sol := Solution{
		Nonce:          nonce,
		Difficulty:     difficulty,
		ProcessingTime: final.Elapsed.Seconds(),
		HashRateKps:    final.HashesPerSecond / 1000,
		Hash:           HexDigest(text, nonce),
	}

	return sol, nil
}

// search performs the batched search. Between batches the context is
// checked and the G yields so it never monopolizes the processor.
func (s *Solver) search(ctx context.Context, ss *session, text string) (uint64, error) {
	var nonce uint64
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		end := nonce + s.batchSize
		for ; nonce < end; nonce++ {
			solved := IsSolved(ss.difficulty, Digest(text, nonce))
			ss.hashes.Add(1)
			if solved {
				return nonce, nil
			}
		}

		runtime.Gosched()
	}
}

// startProgress launches the G that reports progress on a fixed cadence. The
// returned function stops the G and waits for it to terminate.
func (s *Solver) startProgress(ss *session, progress chan<- Progress) (stop func()) {
	if progress == nil {
		return func() {}
	}

	shut := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(s.progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case progress <- ss.snapshot(false):
				default:
				}
			case <-shut:
				return
			}
		}
	}()

	return func() {
		close(shut)
		wg.Wait()
	}
}

package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zephyr/powgate/business/core/credential"
	"github.com/zephyr/powgate/business/core/gateclient"
	"github.com/zephyr/powgate/foundation/pow"
	"go.uber.org/zap"
)

// Set of error variables for the flow.
var (
	ErrFlowInProgress = errors.New("a challenge is already being solved")
	ErrFlowFinished   = errors.New("access already granted")
)

// DefaultTiers are the difficulties offered to the user.
var DefaultTiers = []int{3, 4, 5, 6, 7}

// =============================================================================

// State represents where the flow is in the gate's lifecycle.
type State int

// Set of states for the flow.
const (
	StateIdle State = iota
	StateGateChecking
	StateFastPathGranted
	StateChallengeUIShown
	StateSolving
	StateSubmitting
	StateGranted
	StateRejected
)

var stateNames = map[State]string{
	StateIdle:             "Idle",
	StateGateChecking:     "GateChecking",
	StateFastPathGranted:  "FastPathGranted",
	StateChallengeUIShown: "ChallengeUIShown",
	StateSolving:          "Solving",
	StateSubmitting:       "Submitting",
	StateGranted:          "Granted",
	StateRejected:         "Rejected",
}

// String implements the fmt.Stringer interface.
func (s State) String() string {
	if name, exists := stateNames[s]; exists {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFastPathGranted || s == StateGranted
}

// Result describes how a challenge run finished.
type Result int

// Set of results for a challenge run.
const (
	ResultFailed Result = iota
	ResultRejected
	ResultGranted
)

// String implements the fmt.Stringer interface.
func (r Result) String() string {
	switch r {
	case ResultGranted:
		return "granted"
	case ResultRejected:
		return "rejected"
	}
	return "failed"
}

// Outcome is what a single challenge run produced.
type Outcome struct {
	Result   Result
	Solution pow.Solution
	Message  string
}

// =============================================================================

// Config represents the mandatory systems required by the flow.
type Config struct {
	Log       *zap.SugaredLogger
	API       API
	Solver    Solver
	Store     credential.Store
	Presenter Presenter
	Tiers     []int
	Benchmark func(ctx context.Context) (float64, error)
	Now       func() time.Time
}

// Flow sequences the session check, the calibration and the challenge run.
type Flow struct {
	log       *zap.SugaredLogger
	api       API
	solver    Solver
	store     credential.Store
	presenter Presenter
	tiers     []int
	benchmark func(ctx context.Context) (float64, error)
	now       func() time.Time
	gate      *Gate

	mu    sync.Mutex
	state State
}

// NewFlow constructs a flow, applying defaults for optional fields.
func NewFlow(cfg Config) *Flow {
	f := Flow{
		log:       cfg.Log,
		api:       cfg.API,
		solver:    cfg.Solver,
		store:     cfg.Store,
		presenter: cfg.Presenter,
		tiers:     cfg.Tiers,
		benchmark: cfg.Benchmark,
		now:       cfg.Now,
		gate:      New(cfg.Log, cfg.Store, cfg.API, cfg.Presenter),
		state:     StateIdle,
	}

	if f.solver == nil {
		f.solver = pow.NewSolver(pow.SolverConfig{})
	}
	if len(f.tiers) == 0 {
		f.tiers = DefaultTiers
	}
	if f.benchmark == nil {
		f.benchmark = func(ctx context.Context) (float64, error) {
			return pow.Benchmark(ctx, pow.DefaultBenchmarkBudget, pow.DefaultBenchmarkBatch)
		}
	}
	if f.now == nil {
		f.now = time.Now
	}

	return &f
}

// State returns the current state of the flow.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.state
}

// Start checks for an existing session. When access is already granted it
// returns true and nothing else runs. Otherwise the local hashrate is
// measured, the estimates for each tier are presented and false is returned.
func (f *Flow) Start(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.state != StateIdle {
		state := f.state
		f.mu.Unlock()
		return false, fmt.Errorf("start: flow is %s", state)
	}
	f.state = StateGateChecking
	f.mu.Unlock()

	if f.gate.TryFastPath(ctx) {
		f.setState(StateFastPathGranted)
		return true, nil
	}

	f.setState(StateChallengeUIShown)

	rate, err := f.benchmark(ctx)
	if err != nil {
		return false, fmt.Errorf("benchmark: %w", err)
	}

	f.log.Infow("benchmark", "status", "complete", "rate", pow.FormatRate(rate))
	f.presenter.Estimates(pow.Estimates(rate, f.tiers))

	return false, nil
}

// Run requests a challenge at the difficulty, solves it, and submits the
// solution. On success the session credential is stored and the protected
// page is loaded. On any failure nothing is stored and the user has to
// trigger the flow again.
func (f *Flow) Run(ctx context.Context, difficulty int) (Outcome, error) {
	if err := f.begin(); err != nil {
		return Outcome{}, err
	}

	outcome, err := f.run(ctx, difficulty)
	if err != nil {
		f.presenter.Failed(err, gateclient.IsRetryable(err))
		f.setState(StateRejected)
		f.setState(StateChallengeUIShown)
		return outcome, err
	}

	f.setState(StateGranted)
	f.navigate(ctx)

	return outcome, nil
}

// =============================================================================

// begin moves the flow into Solving. Only one run can be in flight.
func (f *Flow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.state == StateSolving || f.state == StateSubmitting:
		return ErrFlowInProgress
	case f.state.Terminal():
		return ErrFlowFinished
	case f.state == StateGateChecking:
		return ErrFlowInProgress
	}

	f.state = StateSolving
	return nil
}

func (f *Flow) setState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.log.Infow("flow", "status", "transition", "from", f.state, "to", s)
	f.state = s
}

func (f *Flow) run(ctx context.Context, difficulty int) (Outcome, error) {
	if err := pow.ValidateDifficulty(difficulty); err != nil {
		return Outcome{Result: ResultFailed}, err
	}

	ch, err := f.api.FetchChallenge(ctx, difficulty)
	if err != nil {
		return Outcome{Result: ResultFailed}, err
	}

	f.log.Infow("flow", "status", "challenge received", "challengeid", ch.ID, "difficulty", ch.Difficulty)

	sol, err := f.solve(ctx, ch)
	if err != nil {
		return Outcome{Result: ResultFailed}, fmt.Errorf("solve: %w", err)
	}

	f.presenter.Solved(sol)
	f.setState(StateSubmitting)

	vr, err := f.api.Submit(ctx, sol)
	if err != nil {
		return Outcome{Result: ResultFailed, Solution: sol}, err
	}

	if !vr.Accepted() {
		rej := gateclient.RejectedError{Status: vr.Status, Message: vr.Message}
		return Outcome{Result: ResultRejected, Solution: sol, Message: vr.Message}, &rej
	}

	if err := f.store.Save(credential.New(vr.JWT, f.now())); err != nil {
		return Outcome{Result: ResultFailed, Solution: sol}, fmt.Errorf("storing credential: %w", err)
	}

	f.log.Infow("flow", "status", "granted", "challengeid", ch.ID, "nonce", sol.Nonce)

	return Outcome{Result: ResultGranted, Solution: sol, Message: vr.Message}, nil
}

// solve runs the solver, forwarding progress to the presenter until the
// solver closes the channel.
func (f *Flow) solve(ctx context.Context, ch pow.Challenge) (pow.Solution, error) {
	progress := make(chan pow.Progress, 1)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for p := range progress {
			f.presenter.Progress(p)
		}
	}()

	sol, err := f.solver.Solve(ctx, ch.Text, ch.Difficulty, progress)
	wg.Wait()

	if err != nil {
		return pow.Solution{}, err
	}

	sol.ChallengeID = ch.ID
	sol.Challenge = ch.Text
	sol.Difficulty = ch.Difficulty

	return sol, nil
}

// navigate loads the protected page now that a credential is stored.
func (f *Flow) navigate(ctx context.Context) {
	pr, err := f.api.Probe(ctx, ProtectedPath)
	if err != nil {
		f.log.Infow("flow", "status", "navigate failed", "ERROR", err)
		return
	}

	f.presenter.ReplaceDocument(pr.Body)
}

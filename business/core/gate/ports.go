package gate

import (
	"context"

	"github.com/zephyr/powgate/business/core/gateclient"
	"github.com/zephyr/powgate/foundation/pow"
)

// API is the behavior required to talk to the gate's endpoints.
type API interface {
	FetchChallenge(ctx context.Context, difficulty int) (pow.Challenge, error)
	Submit(ctx context.Context, sol pow.Solution) (gateclient.VerifyResponse, error)
	Probe(ctx context.Context, path string) (gateclient.ProbeResult, error)
}

// Solver is the behavior required to solve a puzzle. Solve must close the
// progress channel before it returns, on success and on every error path.
// The flow reads progress until the channel is closed.
type Solver interface {
	Solve(ctx context.Context, text string, difficulty int, progress chan<- pow.Progress) (pow.Solution, error)
}

// Presenter receives what the user should see. It owns no business logic.
type Presenter interface {
	Estimates(ests []pow.Estimate)
	Progress(p pow.Progress)
	Solved(sol pow.Solution)
	Failed(err error, retryable bool)
	ReplaceDocument(doc []byte)
}

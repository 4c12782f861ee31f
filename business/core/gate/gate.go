// Package gate implements the client side of the proof of work gate. It
// checks for an existing session, and when there is none drives the
// challenge, solve and submit sequence.
package gate

import (
	"context"
	"time"

	"github.com/zephyr/powgate/business/core/credential"
	"go.uber.org/zap"
)

// ProtectedPath is the route guarded by the gate. It is used both to probe
// an existing session and as the navigation target after a solve.
const ProtectedPath = "/"

// Gate detects a client that already holds a valid session and shows the
// protected content without running the puzzle. It never decides access
// itself, the server's answer to the probe is authoritative.
type Gate struct {
	log       *zap.SugaredLogger
	store     credential.Store
	api       API
	presenter Presenter
}

// New constructs a session gate.
func New(log *zap.SugaredLogger, store credential.Store, api API, presenter Presenter) *Gate {
	return &Gate{
		log:       log,
		store:     store,
		api:       api,
		presenter: presenter,
	}
}

// TryFastPath returns true when access is already granted and the
// protected document has been handed to the presenter. Any failure
// returns false so the challenge is shown instead.
func (g *Gate) TryFastPath(ctx context.Context) bool {
	if _, ok := g.store.Load(time.Now()); !ok {
		g.log.Infow("fast path", "status", "no credential")
		return false
	}

	pr, err := g.api.Probe(ctx, ProtectedPath)
	if err != nil {
		g.log.Infow("fast path", "status", "probe failed", "ERROR", err)
		return false
	}

	if !pr.Granted {
		g.log.Infow("fast path", "status", "not granted", "statuscode", pr.StatusCode)
		return false
	}

	g.presenter.ReplaceDocument(pr.Body)
	g.log.Infow("fast path", "status", "granted")

	return true
}

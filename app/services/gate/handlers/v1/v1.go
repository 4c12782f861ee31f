// Package v1 contains the full set of handler functions and routes
// supported by the gate.
package v1

import (
	"net/http"

	"github.com/zephyr/powgate/app/services/gate/handlers/v1/powgrp"
	"github.com/zephyr/powgate/business/core/issuer"
	"github.com/zephyr/powgate/foundation/events"
	"github.com/zephyr/powgate/foundation/web"
	"go.uber.org/zap"
)

const version = "v1"

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log    *zap.SugaredLogger
	Issuer *issuer.Issuer
	Evts   *events.Events
}

// Routes binds all the gate routes. The challenge, verify and protected
// routes are unversioned since browsers and clients know them by path.
func Routes(app *web.App, cfg Config) {
	pgh := powgrp.Handlers{
		Log:    cfg.Log,
		Issuer: cfg.Issuer,
		Evts:   cfg.Evts,
	}

	app.Handle(http.MethodGet, "", "/", pgh.Index)
	app.Handle(http.MethodGet, "", "/challenge", pgh.Challenge)
	app.Handle(http.MethodPost, "", "/verify", pgh.Verify)
	app.Handle(http.MethodGet, version, "/events", pgh.Events)
}

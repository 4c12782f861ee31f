// Package powgrp maintains the group of handlers for the proof of work gate.
package powgrp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zephyr/powgate/business/core/credential"
	"github.com/zephyr/powgate/business/core/gateclient"
	"github.com/zephyr/powgate/business/core/issuer"
	"github.com/zephyr/powgate/business/web/errs"
	"github.com/zephyr/powgate/foundation/events"
	"github.com/zephyr/powgate/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of gate endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Issuer *issuer.Issuer
	Evts   *events.Events
	WS     websocket.Upgrader
}

// Index serves the protected page to a client holding a valid session
// token and the challenge page to everyone else.
func (h Handlers) Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(credential.Name)
	if err != nil || cookie.Value == "" {
		return h.challenge(ctx, w)
	}

	claims, err := h.Issuer.ParseToken(cookie.Value)
	if err != nil {
		h.Log.Infow("index", "traceid", web.GetTraceID(ctx), "status", "token rejected", "ERROR", err)
		return h.challenge(ctx, w)
	}

	doc, err := renderGranted(claims)
	if err != nil {
		return err
	}

	w.Header().Set(gateclient.AccessHeader, gateclient.AccessGranted)
	return web.RespondHTML(ctx, w, doc, http.StatusOK)
}

// Challenge issues a new challenge for the requested difficulty. Anything
// that isn't an offered tier gets the default difficulty.
func (h Handlers) Challenge(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	difficulty, err := strconv.Atoi(r.URL.Query().Get("difficulty"))
	if err != nil {
		difficulty = 0
	}

	ch, err := h.Issuer.Issue(difficulty)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, toAppChallenge(ch), http.StatusOK)
}

// Verify checks a submitted solution and hands back a session token. A
// body that can't be decoded or fails validation is reported by the errors
// middleware. A solution the issuer refuses gets a failure status.
func (h Handlers) Verify(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var app AppVerify
	if err := web.Decode(r, &app); err != nil {
		if errs.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	token, err := h.Issuer.Verify(toSubmission(app))
	if err != nil {
		switch {
		case errors.Is(err, issuer.ErrMissingData),
			errors.Is(err, issuer.ErrUnknownChallenge),
			errors.Is(err, issuer.ErrChallengeMismatch),
			errors.Is(err, issuer.ErrInvalidDifficulty),
			errors.Is(err, issuer.ErrInvalidSolution):
			return web.Respond(ctx, w, AppVerifyResult{Status: "failure", Message: err.Error()}, http.StatusBadRequest)
		}
		return err
	}

	return web.Respond(ctx, w, AppVerifyResult{Status: gateclient.StatusSuccess, JWT: token}, http.StatusOK)
}

// Events handles a web socket to provide gate events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// =============================================================================

func (h Handlers) challenge(ctx context.Context, w http.ResponseWriter) error {
	doc, err := renderChallenge(h.Issuer.Tiers())
	if err != nil {
		return err
	}

	return web.RespondHTML(ctx, w, doc, http.StatusOK)
}

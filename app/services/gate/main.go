package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zephyr/powgate/app/services/gate/handlers"
	"github.com/zephyr/powgate/business/core/issuer"
	"github.com/zephyr/powgate/foundation/events"
	"github.com/zephyr/powgate/foundation/logger"
	"github.com/zephyr/powgate/foundation/signature"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("GATE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:5000"`
			DebugHost       string        `conf:"default:0.0.0.0:5010"`
			CorsOrigin      string        `conf:"default:*"`
		}
		Gate struct {
			KeyPath           string        `conf:"default:zgate/gate.ecdsa"`
			MinDifficulty     int           `conf:"default:3"`
			MaxDifficulty     int           `conf:"default:7"`
			DefaultDifficulty int           `conf:"default:5"`
			ChallengeTTL      time.Duration `conf:"default:1h"`
			CleanupInterval   time.Duration `conf:"default:10m"`
			TokenTTL          time.Duration `conf:"default:300s"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work gate",
		},
	}

	const prefix = "GATE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Issuer Support

	// The signing key is loaded from disk so tokens survive a restart. When
	// the file doesn't exist a new key is generated and saved.
	privateKey, err := loadKey(cfg.Gate.KeyPath)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}
	log.Infow("startup", "status", "signing key loaded", "address", signature.Address(privateKey))

	// Events raised by the issuer are logged and sent to any websocket
	// client connected through the events endpoint.
	evts := events.New()
	ev := func(kind string, format string, args ...any) {
		s := fmt.Sprintf(format, args...)
		log.Infow(s, "kind", kind, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(kind, "%s", s)
	}

	iss, err := issuer.New(issuer.Config{
		PrivateKey:        privateKey,
		MinDifficulty:     cfg.Gate.MinDifficulty,
		MaxDifficulty:     cfg.Gate.MaxDifficulty,
		DefaultDifficulty: cfg.Gate.DefaultDifficulty,
		ChallengeTTL:      cfg.Gate.ChallengeTTL,
		CleanupInterval:   cfg.Gate.CleanupInterval,
		TokenTTL:          cfg.Gate.TokenTTL,
		EvHandler:         ev,
	})
	if err != nil {
		return fmt.Errorf("constructing issuer: %w", err)
	}

	iss.Run()
	defer iss.Shutdown()

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log, iss)

	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start API Service

	log.Infow("startup", "status", "initializing API support")

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	apiMux := handlers.APIMux(handlers.MuxConfig{
		Shutdown:   shutdown,
		Log:        log,
		Issuer:     iss,
		Evts:       evts,
		CorsOrigin: cfg.Web.CorsOrigin,
	})

	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      apiMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// loadKey reads the ECDSA key at the path, generating one if the file
// doesn't exist yet.
func loadKey(path string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.LoadECDSA(path)
	if err == nil {
		return privateKey, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	privateKey, err = crypto.GenerateKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	if err := crypto.SaveECDSA(path, privateKey); err != nil {
		return nil, err
	}

	return privateKey, nil
}

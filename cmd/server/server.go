package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/kokukuma/mdoc-rssp/internal/authorization"
	"github.com/kokukuma/mdoc-rssp/internal/config"
	"github.com/kokukuma/mdoc-rssp/internal/identity"
	"github.com/kokukuma/mdoc-rssp/internal/logging"
	"github.com/kokukuma/mdoc-rssp/internal/metrics"
	"github.com/kokukuma/mdoc-rssp/internal/server"
	"github.com/kokukuma/mdoc-rssp/internal/session"
	"github.com/kokukuma/mdoc-rssp/internal/token"
	"github.com/kokukuma/mdoc-rssp/internal/trust"
	"github.com/kokukuma/mdoc-rssp/internal/verifier"
	"github.com/kokukuma/mdoc-rssp/mdoc"
	"github.com/kokukuma/mdoc-rssp/openid4vp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, logLevel string

	flagSet := pflag.NewFlagSet("rssp-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	log := logging.Configure(logLevel)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	issuers, skipped, err := trust.LoadIssuerSet(cfg.TrustedIssuers.Folder)
	if err != nil {
		return err
	}
	for file, err := range skipped {
		log.Warnf("Failed to load trusted issuer %s: %v", file, err)
	}
	log.Infof("Loaded %d trusted issuers from %s", issuers.Len(), cfg.TrustedIssuers.Folder)

	var revocation mdoc.RevocationChecker = trust.NeverRevoked{}
	if cfg.Revocation.URL != "" {
		revocation = trust.NewHTTPRevocationChecker(cfg.Revocation.URL, cfg.Revocation.Timeout, nil)
	} else {
		log.Warn("revocation.url is not set, certificates are never treated as revoked")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gateway := verifier.NewGateway(verifier.Config{
		URL:          cfg.Verifier.URL,
		Address:      cfg.Verifier.Address,
		PollInterval: cfg.Verifier.PollInterval,
		Timeout:      cfg.Verifier.Timeout,
	}, session.NewStore(), verifier.WithPollObserver(m.ObservePoll))

	service := authorization.NewService(authorization.Params{
		Gateway:       gateway,
		Decoder:       openid4vp.NewDecoder(),
		Validator:     mdoc.NewVerifier(issuers, revocation),
		Users:         identity.NewMemoryUsers(),
		SAD:           token.NewSADProvider(cfg.SAD.Secret, cfg.SAD.Lifetime(), cfg.SAD.Type),
		SessionTokens: token.NewSessionProvider(cfg.SessionToken.Secret, cfg.SessionToken.Lifetime()),
		Metrics:       m,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewServer(service, issuers, reg, log).Router(cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Starting rssp server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Verifier.Timeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}


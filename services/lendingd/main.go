package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	rootconfig "moneymarket/config"
	"moneymarket/native/lending"
	"moneymarket/native/lending/state"
	"moneymarket/observability/logging"
	"moneymarket/observability/metrics"
	telemetry "moneymarket/observability/otel"
	"moneymarket/services/lendingd/config"
	"moneymarket/services/lendingd/engine"
	"moneymarket/services/lendingd/server"
	"moneymarket/storage"
)

var version = "dev"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/lendingd/config.yaml", "path to lendingd config")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	env := cfg.Environment
	if env == "" {
		env = strings.TrimSpace(os.Getenv("LENDINGD_ENV"))
	}
	logger := logging.SetupWithOptions("lendingd", env, logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	protocol, err := rootconfig.Load(cfg.GenesisPath)
	if err != nil {
		log.Fatalf("load genesis: %v", err)
	}

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "lendingd",
		Version:     version,
		Environment: env,
		Network:     protocol.NetworkName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     cfg.Telemetry.Headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	if cfg.Telemetry.Endpoint != "" {
		attrs := []any{slog.String("endpoint", cfg.Telemetry.Endpoint)}
		for key, value := range cfg.Telemetry.Headers {
			attrs = append(attrs, logging.MaskField(key, value))
		}
		logger.Info("telemetry exporter configured", attrs...)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer db.Close()

	local, err := openEngine(db, protocol, cfg.EventBuffer, logger)
	if err != nil {
		log.Fatalf("start engine: %v", err)
	}

	srv, err := server.New(local, server.Options{
		Auth:      cfg.Auth,
		RateLimit: cfg.RateLimit,
		Quota:     protocol.Quota.Limits(),
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Fatalf("listen on %s: %v", cfg.ListenAddress, err)
	}
	if cfg.TLS.AllowInsecure && !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			log.Fatalf("plaintext lendingd mode is restricted to loopback listeners or dev environment")
		}
	}
	tlsCfg, err := loadServerTLS(cfg.TLS)
	if err != nil {
		log.Fatalf("configure tls: %v", err)
	}
	if tlsCfg != nil {
		listener = tls.NewListener(listener, tlsCfg)
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go local.RunClock(ctx, cfg.BlockInterval)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("lendingd listening",
			slog.String("address", cfg.ListenAddress),
			slog.Bool("tls", tlsCfg != nil),
			slog.Uint64("block", local.BlockNumber()))
		serverErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", slog.Any("error", err))
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

// openEngine rebuilds the lending engine over db. Genesis balances are only
// credited when the ledger has never recorded a block.
func openEngine(db storage.Database, protocol *rootconfig.Config, eventBuffer int, logger *slog.Logger) (*engine.Local, error) {
	admin, err := lending.ParseAddress(protocol.Lending.Comptroller.Admin)
	if err != nil {
		return nil, fmt.Errorf("comptroller admin: %w", err)
	}
	block, found, err := state.LoadBlockNumber(db)
	if err != nil {
		return nil, fmt.Errorf("load block number: %w", err)
	}

	e := lending.NewEngine(state.New(db), admin)
	e.SetLogger(logger)
	e.SetMetrics(metrics.Lending())
	e.SetPauses(protocol.Pauses.View())
	feed := engine.NewFeed(eventBuffer, logger)
	e.SetEmitter(feed)
	if err := e.SetBlockNumber(block); err != nil {
		return nil, err
	}
	if err := lending.Bootstrap(e, protocol.Lending, lending.NewSimplePriceOracle(), !found); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("lending engine ready",
		slog.String("network", protocol.NetworkName),
		slog.Int("markets", len(e.Markets())),
		slog.Uint64("block", block),
		slog.Bool("fresh", !found))
	return engine.NewLocal(e, db, feed, logger), nil
}

func loadServerTLS(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		if cfg.AllowInsecure {
			return nil, nil
		}
		return nil, fmt.Errorf("tls credentials are required")
	}
	cert, err := tls.LoadX509KeyPair(cfg.CertPath, cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load tls keypair: %w", err)
	}
	tlsCfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if cfg.MTLSEnabled() {
		pem, err := os.ReadFile(cfg.ClientCAPath)
		if err != nil {
			return nil, fmt.Errorf("read client ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse client ca: invalid pem data")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.VerifyClientCertIfGiven
	}
	return tlsCfg, nil
}

// Command humed is the hume relay daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"

	"github.com/xraph/hume"
	"github.com/xraph/hume/pidfile"
	"github.com/xraph/hume/signature"
	"github.com/xraph/hume/store/sqlite"
)

const version = "1.0.0"

type args struct {
	Config        string `arg:"-c,--config,env:HUMED_CONFIG" default:"/etc/humed/config.yaml" help:"configuration file"`
	Debug         bool   `arg:"--debug,env:HUMED_DEBUG" help:"enable debug logging"`
	Endpoint      string `arg:"--endpoint,env:HUMED_ENDPOINT" help:"ZeroMQ bind address, overrides the file"`
	DBPath        string `arg:"--db-path,env:HUMED_DB_PATH" help:"SQLite queue path, overrides the file"`
	AuthToken     string `arg:"--auth-token,env:HUMED_AUTH_TOKEN" help:"token senders must present"`
	MetricsListen string `arg:"--metrics-listen,env:HUMED_METRICS_LISTEN" help:"metrics HTTP address"`
	MetricsToken  string `arg:"--metrics-token,env:HUMED_METRICS_TOKEN" help:"bearer token for the metrics endpoint"`
	Status        bool   `arg:"--status" help:"exit 0 if a daemon is running per the pidfile, 1 otherwise"`
	GenSecret     bool   `arg:"--gen-secret" help:"print a new http sink signing secret and exit"`
}

func (args) Version() string { return "humed v" + version }

func (args) Description() string {
	return "humed accepts humes over ZeroMQ and relays them to the configured transfer methods."
}

func main() {
	var a args
	arg.MustParse(&a)

	level := slog.LevelInfo
	if a.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if a.GenSecret {
		secret, err := signature.GenerateSecret()
		if err != nil {
			logger.Error("generate secret", "error", err)
			os.Exit(1)
		}
		fmt.Println(secret)
		return
	}

	cfg, err := loadConfig(a)
	if err != nil {
		logger.Error("configuration", "error", err)
		os.Exit(2)
	}

	if a.Status {
		if pidfile.IsRunning(cfg.Pidfile) {
			fmt.Println("humed is running")
			return
		}
		fmt.Println("humed is not running")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("humed exited", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the file, if present, and applies flag overrides.
func loadConfig(a args) (hume.Config, error) {
	cfg, err := hume.LoadConfig(a.Config)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("configuration file not found, using defaults", "path", a.Config)
		cfg, err = hume.DefaultConfig(), nil
	}
	if err != nil {
		return hume.Config{}, err
	}

	if a.Endpoint != "" {
		cfg.Endpoint = a.Endpoint
	}
	if a.DBPath != "" {
		cfg.DBPath = a.DBPath
	}
	if a.AuthToken != "" {
		cfg.AuthToken = a.AuthToken
	}
	if a.MetricsListen != "" {
		cfg.Metrics.Listen = a.MetricsListen
	}
	if a.MetricsToken != "" {
		cfg.Metrics.Token = a.MetricsToken
	}
	return cfg, nil
}

func run(cfg hume.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pf, err := pidfile.Acquire(cfg.Pidfile)
	if err != nil {
		return err
	}
	defer func() {
		if err := pf.Release(); err != nil {
			logger.Warn("release pidfile", "error", err)
		}
	}()

	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}

	d, err := hume.New(
		hume.WithConfig(cfg),
		hume.WithStore(st),
		hume.WithLogger(logger),
	)
	if err != nil {
		_ = st.Close()
		return err
	}

	logger.Info("humed starting",
		"version", version,
		"endpoint", cfg.Endpoint,
		"db_path", cfg.DBPath,
		"transfer_methods", []string(cfg.TransferMethods),
	)
	return d.Run(ctx)
}

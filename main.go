package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mousefad/klipper-timeout/internal/audit"
	"github.com/mousefad/klipper-timeout/internal/config"
	"github.com/mousefad/klipper-timeout/internal/daemon"
	"github.com/mousefad/klipper-timeout/internal/filter"
	"github.com/mousefad/klipper-timeout/internal/klipper"
)

const dbusTimeout = 5 * time.Second

func main() {
	app := &cli.App{
		Name:  "klipper-timeout",
		Usage: "expire old and sensitive entries from Klipper's clipboard history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the TOML config file",
			},
			&cli.Int64Flag{
				Name:  "expiry-seconds",
				Usage: "seconds before a clipboard entry is purged",
			},
			&cli.Int64Flag{
				Name:  "interval-seconds",
				Usage: "how often to resync the clipboard history from Klipper (seconds)",
			},
			&cli.StringSliceFlag{
				Name:  "always-remove",
				Usage: "regex matching entries to remove immediately, whatever their age (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "never-remove",
				Usage: "regex matching entries exempt from age expiry (repeatable)",
			},
			&cli.StringFlag{
				Name:  "journal",
				Usage: "path to a BoltDB file journaling removals",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log more verbosely, up to three times",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "init-config",
				Usage: "write a default config file",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "overwrite an existing config file",
					},
				},
				Action: initConfig,
			},
			{
				Name:   "removals",
				Usage:  "list journaled removals (requires --journal)",
				Action: listRemovals,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger, err := newLogger(c.Count("verbose"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("initializing logging: %v", err), 1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := resolveConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	patterns, err := filter.Compile(cfg.AlwaysRemove, cfg.NeverRemove)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	gateway, err := klipper.Connect(logger, dbusTimeout)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.Warn("closing D-Bus connection", zap.Error(err))
		}
	}()

	var journal *audit.Journal
	if path := c.String("journal"); path != "" {
		journal, err = audit.Open(path)
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		defer func() {
			if err := journal.Close(); err != nil {
				logger.Warn("closing journal", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.New(cfg, gateway, patterns, journal, logger).Run(ctx)
}

func initConfig(c *cli.Context) error {
	path, err := configPath(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := config.WriteDefault(path, c.Bool("force")); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	fmt.Printf("wrote %v\n", path)
	return nil
}

func listRemovals(c *cli.Context) error {
	path := c.String("journal")
	if path == "" {
		return cli.Exit("removals requires --journal", 1)
	}

	journal, err := audit.Open(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer func() { _ = journal.Close() }()

	records, err := journal.List()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	for _, r := range records {
		fmt.Printf("%s  %-7s  age=%-10s  %s\n",
			r.RemovedAt.Format(time.RFC3339), r.Reason, r.Age.Round(time.Second), r.Fingerprint)
	}
	return nil
}

func resolveConfig(c *cli.Context) (*config.Config, error) {
	path, err := configPath(c)
	if err != nil {
		return nil, err
	}

	file, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	over := config.Overrides{
		AlwaysRemove: c.StringSlice("always-remove"),
		NeverRemove:  c.StringSlice("never-remove"),
	}
	if c.IsSet("expiry-seconds") {
		v := c.Int64("expiry-seconds")
		over.ExpirySeconds = &v
	}
	if c.IsSet("interval-seconds") {
		v := c.Int64("interval-seconds")
		over.IntervalSeconds = &v
	}

	return config.Resolve(file, over)
}

func configPath(c *cli.Context) (string, error) {
	if path := c.String("config"); path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

func newLogger(verbosity int) (*zap.Logger, error) {
	level := zapcore.WarnLevel
	switch {
	case verbosity == 1:
		level = zapcore.InfoLevel
	case verbosity >= 2:
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

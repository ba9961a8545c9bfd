package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/app/workerapp"
	"github.com/ivankudzin/kinship/internal/config"
	"github.com/ivankudzin/kinship/internal/infra/logger"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
)

func main() {
	app := &cli.App{
		Name:  "kinship-worker",
		Usage: "background jobs and maintenance for the kinship backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the yaml config",
				EnvVars: []string{"APP_CONFIG"},
				Value:   "configs/config.yaml",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return fmt.Errorf("load config: %w", err)
					}
					return pgrepo.Migrate(c.Context, cfg.Postgres.DSN)
				},
			},
			{
				Name:  "sweep",
				Usage: "remove accounts whose deletion grace period has passed",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "once", Usage: "run a single pass and exit"},
				},
				Action: func(c *cli.Context) error {
					return withWorker(c, func(ctx context.Context, w *workerapp.App) error {
						if c.Bool("once") {
							return w.SweepOnce(ctx)
						}
						return w.SweepLoop(ctx)
					})
				},
			},
			{
				Name:  "notices",
				Usage: "deliver pending partner notices",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "once", Usage: "run a single pass and exit"},
				},
				Action: func(c *cli.Context) error {
					return withWorker(c, func(ctx context.Context, w *workerapp.App) error {
						if c.Bool("once") {
							return w.NoticesOnce(ctx)
						}
						return w.NoticesLoop(ctx)
					})
				},
			},
			{
				Name:  "run",
				Usage: "run every background loop until interrupted",
				Action: func(c *cli.Context) error {
					return withWorker(c, func(ctx context.Context, w *workerapp.App) error {
						return w.Run(ctx)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withWorker(c *cli.Context, fn func(context.Context, *workerapp.App) error) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, "kinship-worker")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := workerapp.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create worker app: %w", err)
	}
	defer w.Close()

	if err := fn(ctx, w); err != nil {
		log.Error("worker command failed", zap.String("command", c.Command.Name), zap.Error(err))
		return err
	}
	return nil
}

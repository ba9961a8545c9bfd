package workerapp

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/config"
	s3infra "github.com/ivankudzin/kinship/internal/infra/s3"
	tginfra "github.com/ivankudzin/kinship/internal/infra/telegram"
	"github.com/ivankudzin/kinship/internal/jobs/notices"
	"github.com/ivankudzin/kinship/internal/jobs/sweep"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
	redrepo "github.com/ivankudzin/kinship/internal/repo/redis"
	lifecyclesvc "github.com/ivankudzin/kinship/internal/services/lifecycle"
	mediasvc "github.com/ivankudzin/kinship/internal/services/media"
)

// App hosts the background jobs of account lifecycle: the grace-expiry sweep
// and delivery of partner notices.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	sweep    *sweep.Job
	notices  *notices.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for worker app: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	s3Client, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	})
	if err != nil {
		logger.Warn("s3 init failed, purged avatars will stay in the bucket", zap.Error(err))
	}
	avatars := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket, cfg.S3.PublicBaseURL)

	txManager := pgrepo.NewTxManager(pool)
	accountRepo := pgrepo.NewAccountRepo(pool)
	connectionRepo := pgrepo.NewConnectionRepo(pool)

	// Sessions are left out: the sweep only touches accounts whose sessions
	// were revoked when deletion started.
	lifecycle := lifecyclesvc.NewService(lifecyclesvc.Dependencies{
		Accounts:   accountRepo,
		Dependents: pgrepo.NewDependentsRepo(pool),
		Audit:      pgrepo.NewEventRepo(pool),
		Avatars:    avatars,
		Tx:         txManager,
		Logger:     logger,
	}, lifecyclesvc.Config{
		NoticeTTL:  cfg.Lifecycle.NoticeTTL,
		SweepBatch: cfg.Lifecycle.SweepBatch,
	})

	noticeDeps := notices.Dependencies{
		Notices:       connectionRepo,
		Accounts:      accountRepo,
		Notifications: pgrepo.NewNotificationRepo(pool),
		Tx:            txManager,
		Logger:        logger,
	}
	if cfg.Bot.Token != "" {
		bot, err := tginfra.NewBot(cfg.Bot.Token)
		if err != nil {
			logger.Warn("telegram bot init failed, partner notices stay in-app only", zap.Error(err))
		} else {
			noticeDeps.Pusher = bot
		}
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
		redis:    redisClient,
		sweep:    sweep.New(lifecycle, redrepo.NewLockRepo(redisClient), cfg.Lifecycle.SweepLockTTL, logger),
		notices:  notices.New(noticeDeps, cfg.Lifecycle.SweepBatch),
	}, nil
}

// SweepOnce runs a single grace-expiry pass.
func (a *App) SweepOnce(ctx context.Context) error {
	res, ran, err := a.sweep.Run(ctx)
	if err != nil {
		return err
	}
	if !ran {
		a.logger.Info("sweep skipped, another worker holds the lock")
		return nil
	}
	a.logger.Info("sweep finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("removed", res.Removed),
		zap.Int("skipped", res.Skipped),
	)
	return nil
}

func (a *App) NoticesOnce(ctx context.Context) error {
	res, err := a.notices.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("partner notices finished",
		zap.Int("delivered", res.Delivered),
		zap.Int("pushed", res.Pushed),
		zap.Int("dropped", res.Dropped),
	)
	return nil
}

func (a *App) SweepLoop(ctx context.Context) error {
	return a.sweep.Loop(ctx, a.cfg.Lifecycle.SweepInterval)
}

func (a *App) NoticesLoop(ctx context.Context) error {
	return a.notices.Loop(ctx, a.cfg.Lifecycle.NoticeInterval)
}

// Run keeps both loops going until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("worker started",
		zap.Duration("sweep_interval", a.cfg.Lifecycle.SweepInterval),
		zap.Duration("notice_interval", a.cfg.Lifecycle.NoticeInterval),
	)

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	loops := []func(context.Context) error{a.SweepLoop, a.NoticesLoop}
	for _, loop := range loops {
		wg.Add(1)
		go func(loop func(context.Context) error) {
			defer wg.Done()
			if err := loop(ctx); err != nil {
				errOnce.Do(func() { runErr = err })
			}
		}(loop)
	}
	wg.Wait()

	return runErr
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

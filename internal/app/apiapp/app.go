package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/kinship/internal/config"
	"github.com/ivankudzin/kinship/internal/domain/rules"
	"github.com/ivankudzin/kinship/internal/infra/httpclient"
	s3infra "github.com/ivankudzin/kinship/internal/infra/s3"
	pgrepo "github.com/ivankudzin/kinship/internal/repo/postgres"
	redrepo "github.com/ivankudzin/kinship/internal/repo/redis"
	accountssvc "github.com/ivankudzin/kinship/internal/services/accounts"
	assistantsvc "github.com/ivankudzin/kinship/internal/services/assistant"
	authsvc "github.com/ivankudzin/kinship/internal/services/auth"
	contentsvc "github.com/ivankudzin/kinship/internal/services/content"
	gatesvc "github.com/ivankudzin/kinship/internal/services/gate"
	lifecyclesvc "github.com/ivankudzin/kinship/internal/services/lifecycle"
	mediasvc "github.com/ivankudzin/kinship/internal/services/media"
	ratesvc "github.com/ivankudzin/kinship/internal/services/rate"
	walletsvc "github.com/ivankudzin/kinship/internal/services/wallet"
	"github.com/ivankudzin/kinship/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)
	idempotencyRepo := redrepo.NewIdempotencyRepo(redisClient)

	txManager := pgrepo.NewTxManager(pool)
	accountRepo := pgrepo.NewAccountRepo(pool)
	identityRepo := pgrepo.NewIdentityRepo(pool)
	connectionRepo := pgrepo.NewConnectionRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)
	walletRepo := pgrepo.NewWalletRepo(pool)
	vouchRepo := pgrepo.NewVouchRepo(pool)
	blockRepo := pgrepo.NewBlockRepo(pool)
	commentRepo := pgrepo.NewCommentRepo(pool)
	postRepo := pgrepo.NewPostRepo(pool)
	notificationRepo := pgrepo.NewNotificationRepo(pool)
	paymentRepo := pgrepo.NewPaymentTransactionRepo(pool)
	dependentsRepo := pgrepo.NewDependentsRepo(pool)
	eventRepo := pgrepo.NewEventRepo(pool)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}
	avatarStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket, cfg.S3.PublicBaseURL)
	if s3Client != nil {
		if err := avatarStorage.EnsureBucket(ctx); err != nil {
			log.Warn("avatar bucket unavailable, uploads will fail until it exists", zap.Error(err))
		}
	}

	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(authsvc.Dependencies{
		JWT:        jwtManager,
		Sessions:   sessionRepo,
		Accounts:   accountRepo,
		Identities: identityRepo,
		Tx:         txManager,
	}, authsvc.Config{
		RefreshTTL:        cfg.Auth.RefreshTTL,
		BotToken:          cfg.Bot.Token,
		AdminEmails:       cfg.Auth.AdminEmails,
		DefaultSlotsLimit: cfg.Gate.DefaultSlotsLimit,
	})

	mediaService := mediasvc.NewService(accountRepo, avatarStorage, log)
	accountService := accountssvc.NewService(accountRepo, mediaService)

	lifecycleService := lifecyclesvc.NewService(lifecyclesvc.Dependencies{
		Accounts:   accountRepo,
		Dependents: dependentsRepo,
		Audit:      eventRepo,
		Sessions:   authService,
		Avatars:    avatarStorage,
		Tx:         txManager,
		Logger:     log,
	}, lifecyclesvc.Config{
		NoticeTTL:  cfg.Lifecycle.NoticeTTL,
		SweepBatch: cfg.Lifecycle.SweepBatch,
	})

	gateService := gatesvc.NewService(gatesvc.Dependencies{
		Accounts:      accountRepo,
		Connections:   connectionRepo,
		Messages:      messageRepo,
		Wallet:        walletRepo,
		Vouches:       vouchRepo,
		Blocks:        blockRepo,
		Comments:      commentRepo,
		Posts:         postRepo,
		Notifications: notificationRepo,
		Audit:         eventRepo,
		Idempotency:   idempotencyRepo,
		Tx:            txManager,
		Logger:        log,
	}, gatesvc.Config{
		Policy: rules.Policy{
			FreeMessagesPerThread: cfg.Gate.FreeMessagesPerThread,
			FreeCommentsPerDay:    cfg.Gate.FreeCommentsPerDay,
			ContactShareCost:      cfg.Gate.ContactShareCost,
			CommentCost:           cfg.Gate.CommentCost,
			SlotUnlockCost:        cfg.Gate.SlotUnlockCost,
		},
		IdempotencyTTL: cfg.Gate.IdempotencyTTL,
	})

	contentService := contentsvc.NewService(contentsvc.Dependencies{
		Accounts:      accountRepo,
		Posts:         postRepo,
		Comments:      commentRepo,
		Notifications: notificationRepo,
		Tx:            txManager,
	})

	packs := make([]walletsvc.Pack, 0, len(cfg.Payments.Packs))
	for _, p := range cfg.Payments.Packs {
		packs = append(packs, walletsvc.Pack{SKU: p.SKU, Coins: p.Coins, PriceCents: p.PriceCents, Gold: p.Gold})
	}
	walletService := walletsvc.NewService(walletsvc.Dependencies{
		Accounts: accountRepo,
		Ledger:   walletRepo,
		Payments: paymentRepo,
		Audit:    eventRepo,
		Tx:       txManager,
		Logger:   log,
	}, walletsvc.Config{
		Packs:    packs,
		Currency: cfg.Payments.Currency,
	})

	var completer assistantsvc.Completer
	if strings.TrimSpace(cfg.Assistant.BaseURL) != "" {
		completer = assistantsvc.NewChatClient(
			httpclient.New(cfg.Assistant.Timeout),
			cfg.Assistant.BaseURL,
			cfg.Assistant.APIKey,
			cfg.Assistant.Model,
		)
	} else {
		log.Info("assistant base url is empty, suggestions will return the fallback text")
	}
	assistantLimiter := ratesvc.NewLimiter(rateRepo, "assistant", cfg.Assistant.PerMinute, 0)
	assistantService := assistantsvc.NewService(completer, assistantLimiter, cfg.Assistant.FallbackText, log)

	checks := map[string]handlers.Pinger{
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}
	if pool != nil {
		checks["postgres"] = pool
	}

	RegisterRoutes(r, Dependencies{
		AuthService:      authService,
		AccountService:   accountService,
		MediaService:     mediaService,
		LifecycleService: lifecycleService,
		GateService:      gateService,
		ContentService:   contentService,
		WalletService:    walletService,
		AssistantService: assistantService,
		HealthChecks:     checks,
		WebhookSecret:    cfg.Payments.WebhookSecret,
		Logger:           log,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}

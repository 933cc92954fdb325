package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/sagebright/gateway/api/handler"
	"github.com/sagebright/gateway/domain"
	"github.com/sagebright/gateway/internal/config"
	"github.com/sagebright/gateway/internal/infrastructure/localstore"
	"github.com/sagebright/gateway/internal/infrastructure/monitor"
	pgInfra "github.com/sagebright/gateway/internal/infrastructure/postgres"
	redisInfra "github.com/sagebright/gateway/internal/infrastructure/redis"
	"github.com/sagebright/gateway/internal/middleware"
	"github.com/sagebright/gateway/internal/notify"
	"github.com/sagebright/gateway/internal/provider"
	"github.com/sagebright/gateway/internal/router"
	"github.com/sagebright/gateway/internal/services"
	"github.com/sagebright/gateway/internal/services/lifecycle"
	"github.com/sagebright/gateway/pkg/httpcontext"
	"github.com/sagebright/gateway/pkg/logger"
	"github.com/sagebright/gateway/repository/postgres"
	redisRepo "github.com/sagebright/gateway/repository/redis"
	chatUC "github.com/sagebright/gateway/usecase/chat"
	guardUC "github.com/sagebright/gateway/usecase/guard"
	intentUC "github.com/sagebright/gateway/usecase/intent"
	orgUC "github.com/sagebright/gateway/usecase/org"
	readinessUC "github.com/sagebright/gateway/usecase/readiness"
	sessionUC "github.com/sagebright/gateway/usecase/session"
	voiceUC "github.com/sagebright/gateway/usecase/voice"
)

// chatContext feeds the orchestrator from the session store and org resolver.
type chatContext struct {
	store *sessionUC.Store
	orgs  *orgUC.Resolver
}

func (c chatContext) AccessToken() string { return c.store.AccessToken() }
func (c chatContext) UserID() string      { return c.store.UserID() }

func (c chatContext) OrgID() string {
	octx, ok := c.orgs.Current()
	if !ok || !octx.IsResolved() {
		return ""
	}
	return octx.ID
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	localStore, err := localstore.Open(cfg.LocalStore.Path)
	if err != nil {
		zapLogger.Fatal("failed to open local store", zap.Error(err))
	}
	manager.Register("local_store", func(ctx context.Context) error {
		return localStore.Close()
	})

	authClient := provider.NewHTTPClient(provider.Config{
		BaseURL: cfg.Provider.URL,
		APIKey:  cfg.Provider.APIKey,
		Timeout: cfg.Provider.Timeout,
	}, zapLogger)

	mon := monitor.New(authClient, pool, redisClient, localStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	center := notify.NewCenter(32, zapLogger)
	notifier := services.NewNotifyBridge(center)
	patcher := services.NewPatchBridge(authClient, localStore, mon, zapLogger)

	orgRepo := postgres.NewOrganizationRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	slugCache := redisRepo.NewOrgSlugCache(redisClient, cfg.Redis.SlugTTL)

	repairer := sessionUC.NewRepairer(roleRepo, patcher, notifier, zapLogger, sessionUC.RepairConfig{
		Attempts: cfg.Session.RepairAttempts,
		Delay:    cfg.Session.RepairDelay,
	})
	store := sessionUC.NewStore(authClient, repairer, notifier, zapLogger, sessionUC.Config{
		RefreshThrottle: cfg.Session.RefreshThrottle,
	})

	orgResolver := orgUC.NewResolver(orgRepo, slugCache, patcher, notifier, zapLogger)
	voiceResolver := voiceUC.NewResolver(localStore, zapLogger)
	intents := intentUC.NewManager(localStore, zapLogger)

	aggregator := readinessUC.NewAggregator(notifier, zapLogger, readinessUC.Config{
		StallAfter: cfg.Readiness.StallAfter,
	})
	manager.Register("readiness", func(ctx context.Context) error {
		aggregator.Stop()
		return nil
	})

	guard := guardUC.New(guardUC.Config{
		Window:         cfg.Guard.Window,
		SensitiveRoute: cfg.Guard.SensitiveRoute,
		LoginRoute:     cfg.Guard.LoginRoute,
	}, zapLogger)

	chat := chatUC.NewOrchestrator(chatContext{store: store, orgs: orgResolver}, notifier, zapLogger, chatUC.Config{
		Endpoint: cfg.Chat.URL,
		Timeout:  cfg.Chat.Timeout,
	})

	// Session changes drive org resolution; every resolved dimension feeds
	// the readiness aggregate, which in turn releases the route guard.
	store.Subscribe(aggregator.ObserveSession)
	store.Subscribe(func(snap domain.SessionSnapshot) {
		if snap.IsAuthenticated {
			go func() {
				resolveCtx, cancelResolve := context.WithTimeout(appCtx, cfg.Context.RequestTimeout)
				defer cancelResolve()
				if _, err := orgResolver.Resolve(resolveCtx, store.Session()); err != nil {
					zapLogger.Warn("org resolution failed", zap.Error(err))
				}
			}()
			return
		}
		orgResolver.Reset()
		aggregator.SetOrgReady(false)
		chat.Reset()
	})
	orgResolver.Subscribe(aggregator.ObserveOrg)
	voiceResolver.Subscribe(aggregator.ObserveVoice)
	aggregator.Subscribe(guard.ObserveReadiness)

	go store.Run(appCtx)

	patchProcessor := services.NewPatchProcessor(
		localStore,
		mon,
		authClient,
		store,
		intents,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Patches.SyncInterval,
			BatchSize:  cfg.Patches.BatchSize,
			MaxRetries: cfg.Patches.MaxRetry,
			Retention:  cfg.Patches.Retention,
		},
	)
	patchProcessor.Start()
	manager.Register("patch_processor", func(ctx context.Context) error {
		patchProcessor.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Session:       apiHandler.NewSessionHandler(store, ctxAdapter, zapLogger),
		Org:           apiHandler.NewOrgHandler(orgResolver, store, ctxAdapter, zapLogger),
		Voice:         apiHandler.NewVoiceHandler(voiceResolver, intents, ctxAdapter, zapLogger),
		Intent:        apiHandler.NewIntentHandler(intents, guard, ctxAdapter, zapLogger),
		Navigate:      apiHandler.NewNavigateHandler(guard, ctxAdapter, zapLogger),
		Readiness:     apiHandler.NewReadinessHandler(aggregator, ctxAdapter, zapLogger),
		Chat:          apiHandler.NewChatHandler(chat, ctxAdapter, zapLogger),
		Notifications: apiHandler.NewNotificationHandler(center, ctxAdapter, zapLogger),
		Health:        apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

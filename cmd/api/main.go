package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"educore/internal/assistant"
	"educore/internal/capability"
	"educore/internal/flagging"
	"educore/internal/functions"
	"educore/internal/gateway/config"
	"educore/internal/gateway/handler/rest"
	"educore/internal/gateway/handler/ws"
	"educore/internal/gateway/middleware"
	"educore/internal/gateway/server"
	"educore/internal/integrity"
	"educore/internal/llm"
	"educore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := newLogger(cfg.Env)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, materials, closeStores := buildStores(ctx, cfg, logger)
	defer closeStores()

	models, assistantCli, integrityCli, err := buildModels(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build model clients", zap.Error(err))
	}
	defer func() { _ = models.Close() }()

	// The capability catalog is rebuilt fresh on every start from the
	// fixed registration list; a rejected definition is logged, never fatal.
	registry := capability.NewRegistry()
	pool := capability.NewPool(cfg.Assistant.PoolSize)
	for _, res := range functions.RegisterAll(registry, functions.Deps{
		Store:     st,
		Materials: materials,
		Pool:      pool,
	}) {
		if !res.Accepted {
			logger.Warn("capability registration rejected",
				zap.String("name", res.Name),
				zap.String("reason", res.Reason))
		}
	}
	logger.Info("capability registry ready", zap.Int("capabilities", registry.Len()))

	dispatcher := capability.NewDispatcher(registry, cfg.Assistant.CallTimeout, logger)

	var guard *integrity.Guard
	if cfg.Guard.Enabled {
		guard = integrity.NewGuard(integrityCli, integrity.ParseFailMode(cfg.Guard.FailMode), logger)
	}

	flagStore, closeFlags := buildFlagStore(cfg, logger)
	defer closeFlags()

	orc, err := assistant.New(assistant.Config{
		Registry:      registry,
		Dispatcher:    dispatcher,
		Model:         assistantCli,
		Broker:        buildBroker(models),
		Guard:         guard,
		Flags:         flagging.NewSink(flagStore, logger),
		Logger:        logger,
		MaxRounds:     cfg.Assistant.MaxRounds,
		MaxQueryRunes: cfg.Assistant.MaxQueryRunes,
		IdentityCalls: cfg.Assistant.IdentityCalls,
	})
	if err != nil {
		logger.Fatal("build orchestrator", zap.Error(err))
	}

	mux := http.NewServeMux()
	rest.New(orc, registry, guard, flagStore, logger).Register(mux)
	mux.HandleFunc("/ws/assistant", ws.NewChatHandler(orc, logger).HandleChatWS)

	srv := server.New(cfg.Port, middleware.CORS(mux), logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}

func newLogger(env string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if strings.EqualFold(env, "local") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	return logger
}

// buildStores selects the data backends: Postgres when a DSN is configured,
// the seeded memory store otherwise; MinIO materials when an endpoint is
// configured, memory materials otherwise.
func buildStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, store.MaterialStore, func()) {
	mem := store.NewMemory()
	closeFn := func() {}

	var st store.Store = mem
	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warn("postgres unavailable, using memory store", zap.Error(err))
		} else {
			st = store.NewPostgres(db)
			closeFn = func() { _ = db.Close() }
			logger.Info("using postgres store")
		}
	}

	var materials store.MaterialStore = mem
	if cfg.Materials.Enabled {
		mm, err := store.NewMinioMaterials(store.MinioConfig{
			Endpoint:  cfg.Materials.Endpoint,
			Region:    cfg.Materials.Region,
			AccessKey: cfg.Materials.AccessKey,
			SecretKey: cfg.Materials.SecretKey,
			Bucket:    cfg.Materials.Bucket,
			UseSSL:    cfg.Materials.UseSSL,
		})
		if err != nil {
			logger.Warn("material store unavailable, using memory materials", zap.Error(err))
		} else {
			materials = mm
			logger.Info("using minio materials", zap.String("bucket", cfg.Materials.Bucket))
		}
	}
	return st, materials, closeFn
}

// buildModels loads the catalog and builds one wrapped client per purpose.
// EDUCORE_FAKE_LLM rewrites every profile onto the fake provider so the
// whole stack runs offline.
func buildModels(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.ModelRegistry, llm.Client, llm.Client, error) {
	catalog := llm.DefaultCatalog()
	if cfg.CatalogPath != "" {
		loaded, err := llm.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, nil, nil, err
		}
		catalog = loaded
	}
	if cfg.FakeLLM {
		logger.Warn("EDUCORE_FAKE_LLM is set, all model calls are faked")
		for i := range catalog.Profiles {
			catalog.Profiles[i].Provider = "fake"
		}
	}

	models := llm.NewModelRegistry(logger)
	if err := models.LoadProfiles(catalog); err != nil {
		return nil, nil, nil, err
	}

	assistantCli, err := models.Build(ctx, llm.PhaseAssistant)
	if err != nil {
		return nil, nil, nil, err
	}
	integrityCli, err := models.Build(ctx, llm.PhaseIntegrity)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.UsageLedgerPath != "" {
		ledger := llm.WithUsageLedger(cfg.UsageLedgerPath)
		assistantCli = llm.Wrap(assistantCli, ledger)
		integrityCli = llm.Wrap(integrityCli, ledger)
	}
	return models, assistantCli, integrityCli, nil
}

// buildBroker backs the turn-budget reservation with the assistant
// profile's own rate, so a reservation admits exactly what the per-call
// bucket would have.
func buildBroker(models *llm.ModelRegistry) llm.PermitBroker {
	var lim llm.Limiter
	if p, ok := models.Profile(llm.PhaseAssistant); ok && p.RPS > 0 {
		lim = llm.NewLimiter(p.RPS, p.Burst)
	}
	return llm.NewBroker(lim)
}

func buildFlagStore(cfg *config.Config, logger *zap.Logger) (flagging.Store, func()) {
	if cfg.FlagDBPath == "" {
		return flagging.NewMemory(), func() {}
	}
	db, err := flagging.OpenSQLite(cfg.FlagDBPath)
	if err != nil {
		logger.Warn("flag db unavailable, keeping flags in memory", zap.Error(err))
		return flagging.NewMemory(), func() {}
	}
	logger.Info("using sqlite flag store", zap.String("path", cfg.FlagDBPath))
	return db, func() { _ = db.Close() }
}

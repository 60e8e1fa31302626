// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intent-broker/internal/common/aws"
	"intent-broker/internal/common/camunda"
	"intent-broker/internal/common/config"
	"intent-broker/internal/common/database"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/observability"
	"intent-broker/internal/consent"
	"intent-broker/internal/dealroom"
	"intent-broker/internal/genai"
	"intent-broker/internal/intents"
	"intent-broker/internal/matching/embedding"
	"intent-broker/internal/matching/engine"
	"intent-broker/internal/matching/keywords"
	"intent-broker/internal/matching/scoring"
	"intent-broker/internal/notify"
	"intent-broker/internal/search"
	"intent-broker/internal/storage"
	"intent-broker/internal/store"
	"intent-broker/pkg/registry"

	// Intent workers (3)
	ci "intent-broker/internal/workers/intent/create-intent"
	lmi "intent-broker/internal/workers/intent/list-my-intents"
	ui "intent-broker/internal/workers/intent/update-intent"

	// Matching workers (2)
	fm "intent-broker/internal/workers/matching/find-matches"
	lmm "intent-broker/internal/workers/matching/list-my-matches"

	// Consent workers (2)
	dm "intent-broker/internal/workers/consent/decline-match"
	ei "intent-broker/internal/workers/consent/express-interest"

	// Deal room workers (5)
	cdr "intent-broker/internal/workers/dealroom/create-deal-room"
	gdr "intent-broker/internal/workers/dealroom/get-deal-room"
	ldd "intent-broker/internal/workers/dealroom/list-deal-room-documents"
	lmd "intent-broker/internal/workers/dealroom/list-my-deal-rooms"
	sn "intent-broker/internal/workers/dealroom/sign-nda"
)

// checkActivityRegistry warns about running workers the activity catalogue does
// not describe. A missing catalogue is not fatal.
func checkActivityRegistry(log *zap.Logger, taskTypes []string) {
	path := os.Getenv("ACTIVITY_REGISTRY_PATH")
	if path == "" {
		path = "configs/activity-registry.json"
	}
	reg, err := registry.LoadRegistry(path)
	if err != nil {
		log.Warn("activity registry unavailable", zap.String("path", path), zap.Error(err))
		return
	}
	if err := reg.Validate(); err != nil {
		log.Warn("activity registry invalid", zap.String("path", path), zap.Error(err))
	}
	if missing := reg.Undocumented(taskTypes); len(missing) > 0 {
		log.Warn("workers missing from activity registry", zap.Strings("taskTypes", missing))
	}
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting intent broker worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.Observability.ServiceName, log)
	defer obs.Shutdown()
	if err := obs.EnableTracing(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint); err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}

	ctx := context.Background()

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	if cfg.Database.Postgres.AutoMigrate {
		if err := store.Migrate(pg.DB, log); err != nil {
			zapLog.Fatal("schema migration failed", zap.Error(err))
		}
	}
	st := store.New(pg.DB)

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (optional intent mirror and kNN prefetch) ---
	var (
		indexer     intents.Indexer
		vectorIndex search.VectorIndex
	)
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}

		idx := search.NewIntentIndex(esClient.Client, cfg.Database.Elasticsearch.IntentIndex, cfg.Embedding.Dimension, log)
		if err := idx.EnsureIndex(ctx); err != nil {
			zapLog.Fatal("intent index setup failed", zap.Error(err))
		}
		indexer = idx
		if cfg.Matching.UseSearchIndex {
			vectorIndex = idx
		}
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Reasoning services ---
	genaiCfg := cfg.APIs.GenAI
	embedBackend := genai.NewClient(genaiCfg.BaseURL, genaiCfg.APIKey, cfg.Embedding.Timeout, cfg.Embedding.MaxRetries)
	scoreBackend := genai.NewClient(genaiCfg.BaseURL, genaiCfg.APIKey, cfg.Scoring.Timeout, cfg.Scoring.MaxRetries)

	embedder := embedding.NewClient(embedding.Config{
		Dimension:     cfg.Embedding.Dimension,
		MaxInputChars: cfg.Embedding.MaxInputChars,
		Timeout:       cfg.Embedding.Timeout,
		CacheTTL:      cfg.Embedding.CacheTTL,
	}, embedBackend, rdb.Client, log)
	extractor := keywords.NewExtractor(scoreBackend, config.GetDuration(genaiCfg.Timeout), log)
	scorer := scoring.NewCachedScorer(
		scoring.NewScorer(scoreBackend, cfg.Scoring.Timeout, log),
		rdb.Client, cfg.Scoring.VerdictTTL, log,
	)

	// --- Notifications ---
	var (
		emailSender notify.EmailSender
		publisher   notify.Publisher
	)
	if cfg.Notifications.Email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		emailSender = sesClient
	}
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		publisher = snsClient
	}
	dispatcher := notify.NewDispatcher(notify.Config{
		FromEmail: cfg.Notifications.Email.FromEmail,
		TopicARN:  cfg.Notifications.SNS.TopicARN,
	}, st, emailSender, publisher, log)

	// --- Document storage ---
	var docs storage.Storage
	switch cfg.Storage.Driver {
	case "s3":
		s3Client, err := aws.NewS3Client(ctx, cfg.Storage.Region)
		if err != nil {
			zapLog.Fatal("s3 client init failed", zap.Error(err))
		}
		docs = storage.NewS3Storage(s3Client, cfg.Storage)
	default:
		local, err := storage.NewLocalStorage(cfg.Storage)
		if err != nil {
			zapLog.Fatal("local document storage init failed", zap.Error(err))
		}
		docs = local
	}

	// --- Domain services ---
	intentService := intents.NewService(st, extractor, embedder, indexer, log)
	matcher := engine.New(engine.Config{
		Dimension:        cfg.Embedding.Dimension,
		SimilarityFloor:  cfg.Matching.SimilarityFloor,
		TopK:             cfg.Matching.TopK,
		ScoreThreshold:   cfg.Matching.ScoreThreshold,
		Concurrency:      cfg.Matching.ScorerConcurrency,
		CandidateTimeout: cfg.Scoring.Timeout,
	}, st, search.NewCandidates(st, vectorIndex, cfg.Matching.CandidatePool, cfg.Embedding.Dimension, log), scorer, dispatcher, log)
	consentService := consent.NewService(st, dispatcher, log)
	provisioner := dealroom.NewProvisioner(dealroom.Config{
		ExpiryDays:          cfg.DealRoom.ExpiryDays,
		AllowDownloads:      cfg.DealRoom.AllowDownloads,
		WatermarkDocuments:  *cfg.DealRoom.WatermarkDocuments,
		RequireNDA:          *cfg.DealRoom.RequireNDA,
		DefaultJurisdiction: cfg.DealRoom.DefaultJurisdiction,
	}, st, docs, dealroom.PDFRenderer{}, dispatcher, log)

	// --- Register workers ---
	workers := camunda.NewRegistry(zeebe.GetClient(), obs, log)

	wc := func(taskType string) config.WorkerConfig { return config.GetWorkerConfig(cfg, taskType) }

	workers.Register(ci.TaskType, wc(ci.TaskType), ci.NewHandler(ci.LoadConfig(wc(ci.TaskType)), intentService, log).Handle)
	workers.Register(ui.TaskType, wc(ui.TaskType), ui.NewHandler(ui.LoadConfig(wc(ui.TaskType)), intentService, log).Handle)
	workers.Register(lmi.TaskType, wc(lmi.TaskType), lmi.NewHandler(lmi.LoadConfig(wc(lmi.TaskType)), intentService, log).Handle)

	workers.Register(fm.TaskType, wc(fm.TaskType), fm.NewHandler(fm.LoadConfig(wc(fm.TaskType)), matcher, log).Handle)
	workers.Register(lmm.TaskType, wc(lmm.TaskType), lmm.NewHandler(lmm.LoadConfig(wc(lmm.TaskType)), consentService, log).Handle)

	workers.Register(ei.TaskType, wc(ei.TaskType), ei.NewHandler(ei.LoadConfig(wc(ei.TaskType)), consentService, log).Handle)
	workers.Register(dm.TaskType, wc(dm.TaskType), dm.NewHandler(dm.LoadConfig(wc(dm.TaskType)), consentService, log).Handle)

	workers.Register(cdr.TaskType, wc(cdr.TaskType), cdr.NewHandler(cdr.LoadConfig(wc(cdr.TaskType)), provisioner, log).Handle)
	workers.Register(sn.TaskType, wc(sn.TaskType), sn.NewHandler(sn.LoadConfig(wc(sn.TaskType)), provisioner, log).Handle)
	workers.Register(ldd.TaskType, wc(ldd.TaskType), ldd.NewHandler(ldd.LoadConfig(wc(ldd.TaskType)), provisioner, log).Handle)
	workers.Register(lmd.TaskType, wc(lmd.TaskType), lmd.NewHandler(lmd.LoadConfig(wc(lmd.TaskType)), provisioner, log).Handle)
	workers.Register(gdr.TaskType, wc(gdr.TaskType), gdr.NewHandler(gdr.LoadConfig(wc(gdr.TaskType)), provisioner, log).Handle)

	zapLog.Info("workers registered", zap.Int("count", workers.Count()))
	checkActivityRegistry(zapLog, workers.TaskTypes())

	// --- Health & Metrics Server ---
	port := cfg.App.HTTPPort
	if port == 0 {
		port = 8080
	}
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			writeStatus(w, http.StatusOK, "healthy", nil)
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			checks := map[string]string{}
			ready := true
			for name, ping := range map[string]func(context.Context) error{
				"postgres": pg.Ping,
				"redis":    rdb.Ping,
				"zeebe":    zeebe.HealthCheck,
			} {
				if err := ping(checkCtx); err != nil {
					checks[name] = err.Error()
					ready = false
					continue
				}
				checks[name] = "ok"
			}

			if !ready {
				writeStatus(w, http.StatusServiceUnavailable, "not_ready", checks)
				return
			}
			writeStatus(w, http.StatusOK, "ready", checks)
		})
		http.Handle("/metrics", promhttp.Handler())

		addr := fmt.Sprintf(":%d", port)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	workers.Close()

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, checks map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if checks != nil {
		body["checks"] = checks
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"kbrag/features/document"
	"kbrag/features/query"
	"kbrag/features/stats"
	"kbrag/internal/adapter/gemini"
	mstore "kbrag/internal/adapter/mongo"
	wstore "kbrag/internal/adapter/weaviate"
	"kbrag/internal/config"
	"kbrag/internal/extract"
	"kbrag/internal/ingest"
	"kbrag/internal/logger"
	"kbrag/internal/middleware"
	"kbrag/internal/rag"
	"kbrag/internal/retrieval"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	slog.SetDefault(slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil))))

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	// 2. Document Registry (Postgres)
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		slog.Warn("failed to ping db, retrying...", "attempt", i+1, "max_attempts", cfg.BootstrapRetryAttempts)
		time.Sleep(retryDelay)
	}
	if err := db.Ping(); err != nil {
		slog.Error("failed to ping db after retries", "error", err)
		os.Exit(1)
	}

	// 3. Run Migrations
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		slog.Error("failed to create migration driver", "error", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
	if err != nil {
		slog.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	// 4. Vector Store
	store, err := buildStore(cfg, retryDelay)
	if err != nil {
		slog.Error("failed to initialize vector store", "error", err, "backend", cfg.VectorBackend)
		os.Exit(1)
	}
	slog.Info("vector store ready", "backend", cfg.VectorBackend)

	// 5. Collaborators & Services
	geminiClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.EmbedModel, cfg.GenModel)
	extractor := extract.NewService(extract.NewClient(cfg.ExtractorURL))

	documentRepo := document.NewPostgresRepo(db)

	ingestService := ingest.NewService(extractor, geminiClient, store, documentRepo, cfg.ChunkSize, cfg.ChunkOverlap)

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	pool := retrieval.PoolConfig{Floor: cfg.CandidatePoolFloor, Factor: cfg.CandidatePoolFactor}
	retrievalService := retrieval.NewService(geminiClient, store, geminiClient, pool, queryLogger)

	documentHandler := document.NewHandler(ingestService, documentRepo, cfg.MaxUploadSizeMB)
	queryHandler := query.NewHandler(retrievalService)
	statsHandler := stats.NewHandler(documentRepo, store)

	// Middleware: CORS
	enableCORS := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next(w, r)
		}
	}

	// Routes
	http.Handle("POST /documents", middleware.CorrelationID(enableCORS(documentHandler.Upload)))
	http.Handle("GET /documents", middleware.CorrelationID(enableCORS(documentHandler.List)))
	http.Handle("GET /documents/{id}", middleware.CorrelationID(enableCORS(documentHandler.Get)))
	http.Handle("POST /query", middleware.CorrelationID(enableCORS(queryHandler.Ask)))
	http.Handle("GET /stats", middleware.CorrelationID(enableCORS(statsHandler.GetStats)))

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// 6. Start Server
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	slog.Info("server starting", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func buildStore(cfg *config.Config, retryDelay time.Duration) (rag.Store, error) {
	ctx := context.Background()

	switch cfg.VectorBackend {
	case "mongo":
		client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
			if err = client.Ping(ctx, nil); err == nil {
				break
			}
			slog.Warn("failed to ping mongo, retrying...", "attempt", i+1)
			time.Sleep(retryDelay)
		}
		if err != nil {
			return nil, err
		}
		col := client.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
		return mstore.NewStore(col, cfg.VectorIndex), nil

	case "weaviate":
		wClient, err := weaviate.NewClient(weaviate.Config{
			Host:   cfg.WeaviateHost,
			Scheme: cfg.WeaviateScheme,
		})
		if err != nil {
			return nil, err
		}
		schema := wstore.NewSchemaClient(wClient)
		for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
			if err = wstore.EnsureSchema(ctx, schema); err == nil {
				break
			}
			slog.Warn("failed to ensure weaviate schema, retrying...", "attempt", i+1, "error", err)
			time.Sleep(retryDelay)
		}
		if err != nil {
			return nil, err
		}
		return wstore.NewStore(wClient), nil

	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}

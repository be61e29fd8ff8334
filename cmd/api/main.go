package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"matchbook/internal/archive"
	"matchbook/internal/config"
	"matchbook/internal/embedding"
	"matchbook/internal/http"
	"matchbook/internal/recordstore"
	"matchbook/internal/reindex"
	"matchbook/internal/searchindex"
	"matchbook/internal/storage"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	profileRepo := storage.NewProfileRepo(db)

	ctx := context.Background()

	// Select the search backend
	var index searchindex.Index
	switch cfg.SearchBackend {
	case config.SearchBackendVector:
		embedder := embedding.NewClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)

		vectorIndex, err := searchindex.NewVectorIndex(cfg.QdrantURL, cfg.QdrantCollection, embedder)
		if err != nil {
			log.Fatalf("Failed to create Qdrant client: %v", err)
		}
		if err := vectorIndex.EnsureCollection(ctx, cfg.QdrantVectorSize); err != nil {
			log.Fatalf("Failed to ensure Qdrant collection: %v", err)
		}
		slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

		// Validate embedding client vector size (fail-fast)
		testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
		if err != nil {
			log.Fatalf("Failed to validate embedding client: %v", err)
		}
		if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
			log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
		}
		slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

		index = vectorIndex
	case config.SearchBackendKeyword:
		keywordIndex, err := searchindex.NewKeywordIndex(cfg.KeywordIndexPath, []string{"owner_id", "gender", "marital_status"})
		if err != nil {
			log.Fatalf("Failed to open keyword index: %v", err)
		}
		defer func() {
			_ = keywordIndex.Close()
		}()
		slog.Info("Keyword index ready", "path", cfg.KeywordIndexPath)

		index = keywordIndex
	}

	// Select the archive backend
	var blobs archive.Archive
	switch cfg.ArchiveBackend {
	case config.ArchiveBackendS3:
		s3, err := archive.NewS3Archive(ctx, archive.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			UseSSL:    cfg.S3UseSSL,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			log.Fatalf("Failed to connect to object store: %v", err)
		}
		slog.Info("Object store archive ready", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		blobs = s3
	case config.ArchiveBackendFS:
		fs, err := archive.NewFSArchive(cfg.ArchiveDir)
		if err != nil {
			log.Fatalf("Failed to create archive directory: %v", err)
		}
		slog.Info("Filesystem archive ready", "dir", cfg.ArchiveDir)
		blobs = fs
	}

	coordinator := recordstore.NewCoordinator(profileRepo, index, blobs, cfg.BackendTimeout)
	sweeper := reindex.NewSweeper(profileRepo, index, 0)
	slog.Info("Record store coordinator initialized", "search_backend", cfg.SearchBackend, "archive_backend", cfg.ArchiveBackend)

	// Create router with dependencies
	deps := &http.Deps{
		DB:      db,
		Store:   coordinator,
		Index:   index,
		Sweeper: sweeper,
	}
	router := http.NewRouter(deps)

	// Reconcile the index with the system of record in the background so
	// entries lost to degraded saves become searchable again after restart.
	go func() {
		sweepCtx := context.Background()
		slog.Info("Starting background index reconciliation")
		if _, err := sweeper.Sweep(sweepCtx); err != nil {
			slog.Error("Index reconciliation failed", "error", err)
		}
	}()

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}

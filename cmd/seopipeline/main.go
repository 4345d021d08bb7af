// Package main wires together the SEO pipeline service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pubsubclient "cloud.google.com/go/pubsub/v2"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/agencykit/seo-pipeline/internal/api"
	"github.com/agencykit/seo-pipeline/internal/clock/system"
	"github.com/agencykit/seo-pipeline/internal/config"
	"github.com/agencykit/seo-pipeline/internal/extract"
	collyfetcher "github.com/agencykit/seo-pipeline/internal/fetcher/colly"
	"github.com/agencykit/seo-pipeline/internal/id/uuid"
	"github.com/agencykit/seo-pipeline/internal/logging"
	"github.com/agencykit/seo-pipeline/internal/metrics"
	"github.com/agencykit/seo-pipeline/internal/orchestrator"
	pubsubpublisher "github.com/agencykit/seo-pipeline/internal/publisher/pubsub"
	"github.com/agencykit/seo-pipeline/internal/ranking"
	"github.com/agencykit/seo-pipeline/internal/seo"
	"github.com/agencykit/seo-pipeline/internal/sitemap"
	"github.com/agencykit/seo-pipeline/internal/storage/gcs"
	memorystorage "github.com/agencykit/seo-pipeline/internal/storage/memory"
	"github.com/agencykit/seo-pipeline/internal/storage/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.NewGenerator()

	var (
		sites    seo.SiteStore
		jobs     seo.JobStore
		pages    seo.PageStore
		keywords seo.KeywordStore
		rankings seo.RankingStore
	)
	if cfg.DB.DSN != "" {
		pool, poolErr := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if poolErr != nil {
			logger.Fatal("postgres init failed", zap.Error(poolErr))
		}
		defer pool.Close()
		sites = postgres.NewSiteStore(pool)
		jobs = postgres.NewJobStore(pool, clock)
		pages = postgres.NewPageStore(pool, clock)
		keywords = postgres.NewKeywordStore(pool)
		rankings = postgres.NewRankingStore(pool)
		logger.Info("using postgres stores")
	} else {
		sites = memorystorage.NewSiteStore()
		jobs = memorystorage.NewJobStore()
		pages = memorystorage.NewPageStore()
		keywords = memorystorage.NewKeywordStore()
		rankings = memorystorage.NewRankingStore()
		logger.Warn("db.dsn not set; using in-memory stores")
	}

	var blobs seo.BlobStore
	if cfg.Archive.GCSBucket != "" {
		client, gcsErr := gcsclient.NewClient(ctx)
		if gcsErr != nil {
			logger.Fatal("gcs client init failed", zap.Error(gcsErr))
		}
		store, storeErr := gcs.New(client, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if storeErr != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(storeErr))
		}
		blobs = store
	}

	var publisher seo.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, psErr := pubsubclient.NewClient(ctx, cfg.PubSub.ProjectID)
		if psErr != nil {
			logger.Fatal("pubsub client init failed", zap.Error(psErr))
		}
		publisher = pubsubpublisher.New(client.Publisher(cfg.PubSub.TopicName))
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Crawl.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	resolver := sitemap.NewResolver(fetcher, cfg.Crawl.MaxSitemapDepth, logger.Named("sitemap"))
	extractor := extract.New(fetcher, cfg.Crawl.UserAgent, logger.Named("extract"))

	runner := orchestrator.New(
		sites,
		jobs,
		pages,
		resolver,
		extractor,
		blobs,
		publisher,
		orchestrator.Options{
			Pause:           cfg.Pause(),
			PauseEvery:      cfg.Crawl.PauseEvery,
			ProgressEvery:   cfg.Crawl.ProgressEvery,
			ArchiveRawPages: cfg.Crawl.ArchiveRawPages,
			ArchivePrefix:   cfg.Archive.Prefix,
		},
		logger.Named("orchestrator"),
	)
	archiver := ranking.NewArchiver(keywords, rankings, clock, logger.Named("ranking"))

	apiServer := api.NewServer(jobs, rankings, runner, archiver, idGen, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

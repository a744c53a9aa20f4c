package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/soryel/vaultsearch/internal/ai"
	"github.com/soryel/vaultsearch/internal/config"
	"github.com/soryel/vaultsearch/internal/embedcache"
	"github.com/soryel/vaultsearch/internal/job"
	"github.com/soryel/vaultsearch/internal/notes"
	"github.com/soryel/vaultsearch/internal/repo"
	"github.com/soryel/vaultsearch/internal/schedule"
	"github.com/soryel/vaultsearch/internal/service"
	"github.com/soryel/vaultsearch/internal/vaultfs"
)

type app struct {
	cfg       *config.Config
	db        *sql.DB
	indexer   *service.Indexer
	engine    *service.SearchEngine
	cacheRepo *repo.EmbeddingCacheRepo
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "vaultsearch",
		Short: "vaultsearch indexes a markdown vault and answers semantic queries over it",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the indexing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.db.Close()
			return runDaemon(a)
		},
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "run one full index pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.db.Close()
			result, err := a.indexer.IndexVault(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("scanned=%d added=%d updated=%d removed=%d chunks=%d duration=%s\n",
				result.Scanned, result.Added, result.Updated, result.Removed, result.Chunks, result.Duration.Round(time.Millisecond))
			for _, msg := range result.Errors {
				fmt.Fprintf(os.Stderr, "error: %s\n", msg)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d files failed", len(result.Errors))
			}
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "search the indexed vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(configPath)
			if err != nil {
				return err
			}
			defer a.db.Close()
			ctx := context.Background()
			if !a.engine.Available(ctx) {
				fmt.Println("vault is not indexed yet")
				return nil
			}
			results, err := a.engine.Search(ctx, args[0], 0, 0)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}
			for _, item := range results {
				fmt.Printf("%.3f %s:%d\n", item.Score, item.FilePath, item.StartLine)
			}
			fmt.Println()
			fmt.Print(service.FormatCitations(results, a.cfg.Vault.Name, a.cfg.Search.MaxCitations))
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, indexCmd, searchCmd)
	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*app, error) {
	if configPath == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.ApplyMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	vault, err := vaultfs.New(cfg.Vault.Store)
	if err != nil {
		return nil, fmt.Errorf("init vault store: %w", err)
	}

	embedder, err := buildEmbedder(cfg.AI)
	if err != nil {
		return nil, err
	}
	cacheRepo := repo.NewEmbeddingCacheRepo(db)
	embedder = embedcache.WrapDBCacheToEmbedder(embedder, cacheRepo)
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.CacheSize, time.Duration(cfg.AI.CacheTTLMinutes)*time.Minute)
	retryDelay := time.Duration(cfg.AI.RetryDelaySeconds) * time.Second
	embedClient := ai.NewEmbedClient(embedder, cfg.AI.BatchSize, cfg.AI.MaxRetries, retryDelay)
	// search is latency-sensitive: query embeds get a single attempt
	queryClient := ai.NewEmbedClient(embedder, cfg.AI.BatchSize, 1, retryDelay)

	vaultRepo := repo.NewVaultRepo(db)
	chunker := notes.NewChunker(notes.ChunkerConfig{
		TargetTokens:  cfg.Chunking.TargetTokens,
		OverlapTokens: cfg.Chunking.OverlapTokens,
	})
	indexer := service.NewIndexer(vault, vaultRepo, chunker, embedClient, []string{cfg.Vault.Include}, cfg.Vault.Excludes)
	engine := service.NewSearchEngine(vaultRepo, queryClient, service.SearchConfig{
		Enable:   cfg.Search.Enable,
		MinScore: cfg.Search.MinScore,
		TopK:     cfg.Search.TopK,
	})

	return &app{cfg: cfg, db: db, indexer: indexer, engine: engine, cacheRepo: cacheRepo}, nil
}

// buildEmbedder assembles the primary provider plus any configured fallbacks
// into a single embedder chain.
func buildEmbedder(cfg config.AIConfig) (ai.IEmbedder, error) {
	entries := []config.EmbedProviderConfig{{
		Provider: cfg.EmbedProvider,
		Model:    cfg.EmbedModel,
		Data:     cfg.EmbedData,
	}}
	entries = append(entries, cfg.Fallbacks...)

	items := make([]ai.EmbedderEntry, 0, len(entries))
	for _, entry := range entries {
		provider, err := ai.NewEmbedProvider(entry.Provider, entry.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", entry.Provider, err)
		}
		items = append(items, ai.EmbedderEntry{
			Name:     entry.Provider + "/" + entry.Model,
			Embedder: ai.NewEmbedder(provider, entry.Model),
		})
	}
	return ai.NewGroupEmbedder(items), nil
}

func runDaemon(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewVaultIndexJob(a.indexer), a.cfg.Schedule.Reindex); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(a.cacheRepo, a.cfg.Schedule.CacheKeepDays), a.cfg.Schedule.CacheCleanup); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("daemon started",
		zap.String("vault", a.cfg.Vault.Name),
		zap.String("reindex", a.cfg.Schedule.Reindex))

	// first pass right away instead of waiting for the cron tick
	if result, err := a.indexer.IndexVault(ctx); err != nil {
		logutil.GetLogger(ctx).Error("initial index run failed", zap.Error(err))
	} else if len(result.Errors) > 0 {
		logutil.GetLogger(ctx).Warn("initial index run had file errors", zap.Int("errors", len(result.Errors)))
	}

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("daemon stopping...")
	return nil
}

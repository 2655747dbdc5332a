package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/config"
	"github.com/TobiSchelling/chartpulse/internal/database"
	"github.com/TobiSchelling/chartpulse/internal/logging"
	"github.com/TobiSchelling/chartpulse/internal/snapshot"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     = zap.NewNop()
)

func main() {
	err := rootCmd.ExecuteContext(context.Background())
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "chartpulse",
	Short:   "Daily mobile game chart changes",
	Long:    "chartpulse collects App Store and Google Play game charts, detects what moved since yesterday, and reports it.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Encoding)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		zap.ReplaceGlobals(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(weeklyCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(snapshotsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("chartpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/chartpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to choose regions and charts, the LLM provider and notification channels.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		stats, err := db.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		lastRun, err := db.GetLastRunDate(ctx)
		if err != nil {
			return fmt.Errorf("getting last run: %w", err)
		}

		fmt.Printf("Today: %s\n", database.GetToday())
		fmt.Printf("Database: %s\n", db.Path())
		if current, latest, err := db.SchemaVersion(); err == nil {
			fmt.Printf("Schema: v%d (latest v%d)\n", current, latest)
		}
		fmt.Printf("Storage backend: %s\n\n", cfg.Storage.Backend)
		fmt.Println("Snapshots:")
		fmt.Printf("  Days stored: %d\n", stats.Snapshots)
		fmt.Printf("  Chart records: %d\n", stats.ChartRecords)
		fmt.Printf("  News items: %d\n", stats.NewsItems)
		fmt.Println("\nOutput:")
		fmt.Printf("  Daily analyses: %d\n", stats.DailyAnalyses)
		fmt.Printf("  Weekly reports: %d\n", stats.WeeklyAnalyses)
		fmt.Printf("  Pipeline runs: %d\n", stats.Runs)
		if lastRun != "" {
			fmt.Printf("  Last run: %s\n", lastRun)
		}

		reports, err := db.GetRecentReports(ctx, 5)
		if err != nil {
			return fmt.Errorf("getting recent runs: %w", err)
		}
		if len(reports) > 0 {
			fmt.Println("\nRecent runs:")
			for _, r := range reports {
				fmt.Printf("  %s %-6s records=%d changes=%d failed_steps=%d\n",
					r.Date, r.Kind, r.RecordCount, r.ChangeCount, r.FailedSteps)
			}
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(filepath.Join(dataDir, "chartpulse.db"))
}

// openStore builds the configured snapshot store, wrapped in a Redis cache
// when the configured URL variable is set. The returned func releases the
// cache connection.
func openStore(db *database.DB) (snapshot.Store, func(), error) {
	var store snapshot.Store
	switch cfg.Storage.Backend {
	case "file":
		store = snapshot.NewFileStore(filepath.Join(cfg.GetDataDir(), "history"))
	default:
		store = snapshot.NewSQLiteStore(db)
	}

	url := ""
	if cfg.Storage.Redis.URLEnv != "" {
		url = os.Getenv(cfg.Storage.Redis.URLEnv)
	}
	if url == "" {
		return store, func() {}, nil
	}

	rdb, err := snapshot.NewRedisClient(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", cfg.Storage.Redis.URLEnv, err)
	}
	pingRedis(rdb)
	ttl := time.Duration(cfg.Storage.Redis.TTLSeconds) * time.Second
	return snapshot.NewCachedStore(store, rdb, ttl, logger), func() { rdb.Close() }, nil
}

func pingRedis(rdb *redis.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, snapshot reads go to the primary store", zap.Error(err))
		return
	}
	logger.Debug("redis snapshot cache enabled")
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmswen/paperdigest/internal/config"
	"github.com/jmswen/paperdigest/internal/database"
	"github.com/jmswen/paperdigest/internal/discover"
	"github.com/jmswen/paperdigest/internal/mailbox"
	"github.com/jmswen/paperdigest/internal/pipeline"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "paperdigest",
	Short:   "Literature alert digests",
	Long:    "Paperdigest scans literature alerts, retrieves the referenced documents, summarizes them, and mails out a daily digest.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

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
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(failedCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("paperdigest", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/paperdigest/",
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
		fmt.Println("Edit it to configure the mailbox, registries, delivery, and LLM provider.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show record store status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Today: %s\n\n", database.GetToday())
		fmt.Println("Records:")
		fmt.Printf("  Total: %d\n", stats.TotalRecords)
		fmt.Printf("  Pending acquisition: %d\n", stats.Pending)
		fmt.Printf("  Downloaded: %d\n", stats.Downloaded)
		fmt.Printf("  Abstract only: %d\n", stats.AbstractOnly)
		fmt.Printf("  Analyzed: %d\n", stats.Analyzed)
		fmt.Printf("  Download failed: %d\n", stats.DownloadFailed)
		fmt.Printf("  Analysis failed: %d\n", stats.AnalysisFailed)
		fmt.Println("\nDelivery:")
		fmt.Printf("  Bundles pending: %d\n", stats.PendingDelivery)
		return nil
	},
}

// --- discover command ---

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan alert sources for new references without fetching anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var sources []discover.MessageSource
		if cfg.Mailbox.Server != "" {
			sources = append(sources, mailbox.New(mailbox.Config{
				Server:   cfg.Mailbox.Server,
				UserEnv:  cfg.Mailbox.UserEnv,
				PassEnv:  cfg.Mailbox.PassEnv,
				Lookback: time.Duration(cfg.Mailbox.LookbackHours) * time.Hour,
				Subjects: cfg.Mailbox.Subjects,
			}))
		}
		var feeds *discover.FeedParser
		if len(cfg.Feeds) > 0 {
			var fcs []discover.FeedConfig
			for _, f := range cfg.Feeds {
				fcs = append(fcs, discover.FeedConfig{URL: f.URL, Name: f.Name})
			}
			feeds = discover.NewFeedParser(fcs)
		}

		fmt.Println("Scanning alert sources...")
		result := discover.NewDiscoverer(db, sources, feeds).Run()

		fmt.Println("\nDiscovery complete:")
		fmt.Printf("  References found: %d\n", result.TotalFound)
		fmt.Printf("  New records: %d\n", result.NewRecords)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		return nil
	},
}

// --- run command ---

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: discover -> acquire -> analyze -> deliver",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		periodID := database.GetToday()
		pipe := pipeline.New(cfg, db)

		var result *pipeline.Result
		if dryRun {
			result = pipe.DryRun(periodID)
		} else {
			result = pipe.Run(context.Background(), periodID)
		}

		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/%d: %s\n", i+1, len(result.Steps), step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if !dryRun {
			fmt.Println("\nPipeline complete.")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- failed command ---

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List records that exhausted their retry budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		records, err := db.FailedRecords(cfg.Batch.MaxRetries)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No permanently failed records.")
			return nil
		}

		fmt.Printf("%d permanently failed records:\n\n", len(records))
		for _, r := range records {
			name := r.Fingerprint
			if r.DisplayTitle != nil && *r.DisplayTitle != "" {
				name = *r.DisplayTitle
			} else if r.ExternalID != nil && *r.ExternalID != "" {
				name = *r.ExternalID
			}
			fmt.Printf("  [%s] %s\n", r.Status, name)
			if r.URL != nil && *r.URL != "" {
				fmt.Printf("      %s\n", *r.URL)
			}
			if r.FailureReason != nil && *r.FailureReason != "" {
				fmt.Printf("      reason: %s\n", *r.FailureReason)
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
	dbPath := filepath.Join(dataDir, "paperdigest.db")
	return database.Open(dbPath)
}

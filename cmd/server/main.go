package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/keen-violet-ibis/rfphub/internal/api"
	"github.com/keen-violet-ibis/rfphub/internal/metrics"
	"github.com/keen-violet-ibis/rfphub/internal/notifier"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
	"github.com/keen-violet-ibis/rfphub/pkg/config"
)

var (
	configFile string
	httpAddr   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "rfphub-server",
	Short: "RFPHub Server - RFP marketplace backend",
	Long: `RFPHub Server hosts the RFP marketplace: publication lifecycle,
visibility policy, grants, questions, and notifications.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rfphub-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	cfg.Verbose = verbose

	// Get JWT secret from environment
	jwtSecret := os.Getenv("RFPHUB_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("RFPHUB_JWT_SECRET environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	delivery, err := setupDelivery(cfg)
	if err != nil {
		return fmt.Errorf("setup notification delivery: %w", err)
	}
	if delivery != nil {
		defer delivery.Close()
	}

	apiCfg := &api.Config{
		Address:          cfg.Server.Address,
		JWTSecret:        []byte(jwtSecret),
		AccessTokenTTL:   cfg.Server.AccessTokenTTL,
		RateLimitPerIP:   cfg.Server.RateLimitPerIP,
		RateLimitPerUser: cfg.Server.RateLimitPerUser,
		SweepInterval:    cfg.Server.SweepInterval,
		Delivery:         delivery,
		Verbose:          cfg.Verbose,
	}

	srv, err := api.New(apiCfg, store)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	log.Printf("starting rfphub-server %s", config.Version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	if cfg.Metrics.Enabled {
		metricsSrv := metrics.NewServer(cfg.Metrics.Address)
		g.Go(func() error {
			return metricsSrv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}

// setupDelivery builds the out-of-band delivery layer from config.
// Returns nil when no channel is enabled.
func setupDelivery(cfg *Config) (*notifier.Deliverer, error) {
	if !cfg.Notify.Email.Enabled && !cfg.Notify.Webhook.Enabled {
		return nil, nil
	}

	delivery := notifier.NewDeliverer()

	if cfg.Notify.Email.Enabled {
		sender, err := notifier.NewEmailSender(notifier.EmailConfig{
			Host:     cfg.Notify.Email.Host,
			Port:     cfg.Notify.Email.Port,
			Username: cfg.Notify.Email.Username,
			Password: cfg.Notify.Email.Password,
			From:     cfg.Notify.Email.From,
		})
		if err != nil {
			return nil, err
		}
		delivery.Register(sender)
		log.Printf("email delivery enabled via %s", cfg.Notify.Email.Host)
	}

	if cfg.Notify.Webhook.Enabled {
		sender, err := notifier.NewWebhookSender(notifier.WebhookConfig{
			URL: cfg.Notify.Webhook.URL,
		})
		if err != nil {
			return nil, err
		}
		delivery.Register(sender)
		log.Printf("webhook delivery enabled")
	}

	return delivery, nil
}

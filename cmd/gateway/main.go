package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quietqueue/jobqueue/internal/api"
	"github.com/quietqueue/jobqueue/internal/config"
	"github.com/quietqueue/jobqueue/internal/queuecore"
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "jobqueue gateway: the durable job queue's HTTP front door",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the gateway HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadGateway()
		if cfg.APIToken == "" {
			log.Fatal("INTERNAL_API_TOKEN must be set")
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Addr = addr
		}
		if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
			cfg.DataDir = dataDir
		}

		store, err := queuecore.Open(cfg.DataDir)
		if err != nil {
			log.Fatalf("failed to open store: %v", err)
		}
		defer store.Close()

		engine := queuecore.NewEngine(store)
		inspector := queuecore.NewInspector(store)
		server := api.NewServer(engine, inspector, cfg, nil)

		httpServer := &http.Server{
			Addr:         cfg.Addr,
			Handler:      server.Router(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		slog.Info("gateway listening", "addr", cfg.Addr, "data_dir", cfg.DataDir, "environment", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil {
			log.Fatalf("gateway server exited: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "override GATEWAY_ADDR")
	serveCmd.Flags().String("data-dir", "", "override QUEUE_DATA_DIR")
}

func main() {
	initializeLogger()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
}

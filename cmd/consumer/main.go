package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quietqueue/jobqueue/internal/config"
	"github.com/quietqueue/jobqueue/internal/consumerapp"
)

var rootCmd = &cobra.Command{
	Use:   "consumer",
	Short: "jobqueue consumer: dispatches leased jobs against the gateway",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "start the dispatch loop",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConsumer()
		if cfg.APIToken == "" {
			log.Fatal("INTERNAL_API_TOKEN must be set")
		}
		if gatewayURL, _ := cmd.Flags().GetString("gateway-url"); gatewayURL != "" {
			cfg.GatewayURL = gatewayURL
		}
		if interval, _ := cmd.Flags().GetString("interval"); interval != "" {
			d, err := time.ParseDuration(interval)
			if err != nil {
				log.Fatalf("invalid --interval: %v", err)
			}
			cfg.TickInterval = d
		}

		client := consumerapp.NewClient(cfg.GatewayURL, cfg.APIToken, cfg.RequestTimeout)
		pool := consumerapp.NewPool(client, cfg.TickInterval, cfg.MaxJobsPerTick, cfg.RequestTimeout)

		slog.Info("consumer starting",
			"gateway_url", cfg.GatewayURL,
			"tick_interval", cfg.TickInterval,
			"max_jobs_per_tick", cfg.MaxJobsPerTick)

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			slog.Info("received shutdown signal, stopping consumer")
			pool.Stop()
		}()

		pool.Run()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("gateway-url", "", "override GATEWAY_URL")
	runCmd.Flags().String("interval", "", "override CONSUMER_TICK_INTERVAL (e.g. 2s)")
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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"market-briefer/internal/model"
	"market-briefer/internal/server"
	"market-briefer/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the batch worker and the HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		interval, err := time.ParseDuration(cfg.Briefs.RunInterval)
		if err != nil {
			return fmt.Errorf("invalid run_interval: %w", err)
		}

		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		profiles := func() []model.Profile {
			c := GetConfig()
			return c.Profiles()
		}

		briefWorker := &worker.BriefWorker{
			Pipeline:      a.pipeline,
			Subscribers:   profiles,
			Interval:      interval,
			MaxConcurrent: cfg.Briefs.MaxConcurrent,
		}
		srv := server.New(a.pipeline, a.store, profiles, slog.Default())
		httpWorker := worker.Func(func(ctx context.Context) error {
			return srv.Serve(ctx, cfg.Briefs.ServerAddr)
		})

		mgr := worker.NewManager(briefWorker, httpWorker)
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Signal handling for systemd
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			s := <-sigc
			slog.Info("received signal, shutting down", "signal", s.String())
			cancel()
		}()

		slog.Info("starting brief worker",
			"subscribers", len(profiles()),
			"interval", interval,
			"max_concurrent", cfg.Briefs.MaxConcurrent,
			"addr", cfg.Briefs.ServerAddr)
		return mgr.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/diff"
	"github.com/TobiSchelling/chartpulse/internal/pipeline"
	"github.com/TobiSchelling/chartpulse/internal/schedule"
	"github.com/TobiSchelling/chartpulse/internal/server"
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		store, closeStore, err := openStore(db)
		if err != nil {
			return err
		}
		defer closeStore()

		engine := diff.New(diff.Options{Threshold: cfg.Detection.Threshold, TopN: cfg.Detection.TopN, Logger: logger})
		srv, err := server.New(db, store, engine, logger)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, port, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- schedule command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily and weekly pipelines on the configured cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		return withPipeline(func(p *pipeline.Pipeline) error {
			daily := func(ctx context.Context, date string) {
				r := p.Daily(ctx, date)
				logger.Info("daily run finished", zap.String("date", date),
					zap.Int("changes", len(r.Changes)), zap.Int("failed_steps", r.Failed()))
			}
			weekly := func(ctx context.Context, date string) {
				r := p.Weekly(ctx, date)
				logger.Info("weekly run finished", zap.String("date", date),
					zap.Int("changes", len(r.Changes)), zap.Int("failed_steps", r.Failed()))
			}

			sched, err := schedule.New(ctx, schedule.Specs{
				Daily:  cfg.Schedule.Daily,
				Weekly: cfg.Schedule.Weekly,
			}, daily, weekly, logger)
			if err != nil {
				return err
			}
			if sched.Jobs() == 0 {
				return fmt.Errorf("no schedule configured; set schedule.daily or schedule.weekly")
			}

			sched.Start()
			for _, next := range sched.Next() {
				fmt.Printf("Next run: %s\n", next.Format("2006-01-02 15:04 MST"))
			}
			fmt.Println("Press Ctrl+C to stop")

			<-ctx.Done()
			sched.Stop()
			return nil
		})
	},
}

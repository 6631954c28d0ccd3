package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reytech/scprs-intel/internal/pull"
	"github.com/reytech/scprs-intel/internal/server"
)

const (
	defaultListen = ":8085"
	defaultCron   = "@every 30m"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the API and pull due agencies on a schedule",
	Run: func(_ *cobra.Command, _ []string) {
		runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p := newPipeline()
	defer p.close()

	listen, cronSpec := defaultListen, defaultCron
	if s := p.config.Serve; s != nil {
		if s.Listen != "" {
			listen = s.Listen
		}
		if s.Cron != "" {
			cronSpec = s.Cron
		}
	}

	scheduler := pull.NewScheduler(p.runner, p.store, p.matcher, p.logger)
	if err := scheduler.Start(ctx, cronSpec); err != nil {
		p.logger.Fatal("starting the scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	srv := server.New(p.store, p.runner, p.matcher, p.recommender, p.logger)
	router := srv.Router()

	p.logger.Info("serving", zap.String("listen", listen), zap.String("cron", cronSpec))

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(listen)
	}()

	select {
	case err := <-errCh:
		p.logger.Fatal("http server stopped", zap.Error(err))
	case <-ctx.Done():
		p.logger.Info("shutting down")
	}
}

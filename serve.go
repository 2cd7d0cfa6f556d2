package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ortelius/pdvd-depscan/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST, GraphQL and metrics endpoints and run the periodic scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		app, err := api.NewFiberApp(api.Deps{
			Service:   rt.service,
			Cache:     rt.cache,
			Scanner:   rt.scanner,
			Gatherer:  rt.registry,
			AccessLog: true,
		})
		if err != nil {
			return err
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			rt.logger.Sugar().Infof("Starting server on port %s", rt.cfg.Port)
			rt.logger.Info("GraphQL endpoint available at /api/v1/graphql")
			return app.Listen(":" + rt.cfg.Port)
		})

		g.Go(func() error {
			return rt.scanner.Run(gCtx, rt.cfg.ScanInterval)
		})

		g.Go(func() error {
			<-gCtx.Done()
			rt.logger.Info("Shutting down server")
			return app.ShutdownWithTimeout(10 * time.Second)
		})

		if err := g.Wait(); err != nil && ctx.Err() == nil {
			rt.logger.Error("Server stopped", zap.Error(err))
			return err
		}
		return nil
	},
}

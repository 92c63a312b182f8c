package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kbukum/scribe/api"
	"github.com/kbukum/scribe/logger"
	"github.com/kbukum/scribe/server"
	"github.com/kbukum/scribe/transcription"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return opts.withApp(ctx, func(ctx context.Context, a *app) error {
				if port > 0 {
					a.cfg.Server.Port = port
				}
				return serve(ctx, a)
			})
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides server.port)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	srv := server.New(a.cfg.Server, a.log)
	srv.RegisterDefaultEndpoints(a.cfg.Name, a.orch.Health, func() gin.H {
		p := a.orch.Profile(ctx)
		return gin.H{"device_tier": p.Tier, "recommended_model": p.RecommendedModel}
	})

	defaultModel := transcription.ModelID(a.cfg.Router.DefaultModel)
	if defaultModel == "" {
		defaultModel = a.orch.Profile(ctx).RecommendedModel
	}
	api.New(a.orch, api.Config{
		DefaultModel: defaultModel,
		LocalModel:   a.cfg.Enhance.LocalModel,
		Prompts:      a.cfg.Enhance.Prompts,
	}, a.log.WithComponent("api")).Register(srv.GinEngine())

	if err := srv.Start(ctx); err != nil {
		return err
	}
	a.log.Info("scribe listening", logger.Fields("addr", srv.Addr(), "default_model", defaultModel))

	<-ctx.Done()
	return srv.Stop(context.WithoutCancel(ctx))
}

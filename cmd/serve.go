package cmd

import (
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sabimarket/sabimarket-backend/internal/monitor"
	"github.com/sabimarket/sabimarket-backend/internal/serve"
)

type ServeCommand struct{}

func (c *ServeCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := globalOptions.cfg
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			crashTrackerClient, err := cfg.buildCrashTracker(ctx, globalOptions.GitCommit)
			if err != nil {
				log.WithContext(ctx).Fatalf("Error creating crash tracker client: %s", err.Error())
			}
			dispatcher, err := cfg.buildMessageDispatcher(ctx)
			if err != nil {
				log.WithContext(ctx).Fatalf("Error creating message dispatcher: %s", err.Error())
			}
			provider, err := cfg.buildPaymentProvider()
			if err != nil {
				log.WithContext(ctx).Fatalf("Error creating payment provider: %s", err.Error())
			}

			serveOpts := serve.ServeOptions{
				Environment:        cfg.Environment,
				Version:            globalOptions.Version,
				GitCommit:          globalOptions.GitCommit,
				Port:               cfg.Port,
				CorsAllowedOrigins: cfg.CorsAllowedOrigins,
				DatabaseURL:        cfg.DatabaseURL,
				RedisURL:           cfg.RedisURL,
				JWTSecret:          cfg.JWTSecret,
				JWTMaxAge:          cfg.JWTMaxAge,
				EscrowOwnerID:      cfg.EscrowOwnerID,
				RevenueOwnerID:     cfg.RevenueOwnerID,
				PaymentProvider:    provider,
				MessageDispatcher:  dispatcher,
				MonitorService:     monitor.NewMonitorService(),
				CrashTrackerClient: crashTrackerClient,
			}
			if err := serve.Serve(ctx, serveOpts); err != nil {
				crashTrackerClient.LogAndReportErrors(ctx, err, "running API server")
				log.WithContext(ctx).Fatalf("Error running API server: %s", err.Error())
			}
		},
	}
}

package cmd

import (
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/monitor"
	"github.com/sabimarket/sabimarket-backend/internal/scheduler"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

type SchedulerCommand struct{}

func (c *SchedulerCommand) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run the background job scheduler",
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

			dbConnectionPool, err := db.OpenDBConnectionPool(cfg.DatabaseURL)
			if err != nil {
				log.WithContext(ctx).Fatalf("Error connecting to the database: %s", err.Error())
			}
			defer dbConnectionPool.Close()

			models, err := data.NewModels(dbConnectionPool)
			if err != nil {
				log.WithContext(ctx).Fatalf("Error creating models: %s", err.Error())
			}

			ledgerService := ledger.NewService(models)
			engine := escrow.NewEngine(models, ledgerService, cfg.EscrowOwnerID, cfg.RevenueOwnerID)
			orderService := services.NewOrderService(models, engine, nil, dispatcher)

			scheduler.StartScheduler(ctx, dbConnectionPool, monitor.NewMonitorService(), crashTrackerClient,
				scheduler.WithAutoConfirmDeliveriesJobOption(orderService),
				scheduler.WithExpireWalletHoldsJobOption(models, ledgerService),
				scheduler.WithSubscriptionExpiryJobOption(models, dispatcher),
				scheduler.WithRoleCounterResetJobOption(models),
			)
		},
	}
}

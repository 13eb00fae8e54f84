package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
)

const (
	expireWalletHoldsJobName     = "expire_wallet_holds"
	expireWalletHoldsJobInterval = 15 * time.Minute
)

// expireWalletHoldsJob retires wallet holds past their expiry so the held
// amounts flow back into available balance.
type expireWalletHoldsJob struct {
	models        *data.Models
	ledgerService *ledger.Service
}

func (j expireWalletHoldsJob) GetName() string {
	return expireWalletHoldsJobName
}

func (j expireWalletHoldsJob) GetInterval() time.Duration {
	return expireWalletHoldsJobInterval
}

func (j expireWalletHoldsJob) Execute(ctx context.Context) error {
	expired, err := db.RunInTransactionWithResult(ctx, j.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (int, error) {
		return j.ledgerService.ExpireHolds(ctx, dbTx, time.Now())
	})
	if err != nil {
		err = fmt.Errorf("error expiring wallet holds: %w", err)
		log.WithContext(ctx).Error(err)
		return err
	}
	if expired > 0 {
		log.WithContext(ctx).Infof("expired %d wallet holds", expired)
	}
	return nil
}

func NewExpireWalletHoldsJob(models *data.Models, ledgerService *ledger.Service) Job {
	return &expireWalletHoldsJob{
		models:        models,
		ledgerService: ledgerService,
	}
}

var _ Job = new(expireWalletHoldsJob)

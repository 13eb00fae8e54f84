package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/internal/services"
)

const (
	autoConfirmDeliveriesJobName     = "auto_confirm_deliveries"
	autoConfirmDeliveriesJobInterval = 1 * time.Hour
)

// autoConfirmDeliveriesJob releases held funds for delivered cross-state
// orders whose buyers never confirmed within the grace window.
type autoConfirmDeliveriesJob struct {
	orderService *services.OrderService
}

func (j autoConfirmDeliveriesJob) GetName() string {
	return autoConfirmDeliveriesJobName
}

func (j autoConfirmDeliveriesJob) GetInterval() time.Duration {
	return autoConfirmDeliveriesJobInterval
}

func (j autoConfirmDeliveriesJob) Execute(ctx context.Context) error {
	confirmed, err := j.orderService.AutoConfirmDeliveries(ctx, time.Now())
	if err != nil {
		err = fmt.Errorf("error auto-confirming deliveries: %w", err)
		log.WithContext(ctx).Error(err)
		return err
	}
	if confirmed > 0 {
		log.WithContext(ctx).Infof("auto-confirmed %d delivered orders", confirmed)
	}
	return nil
}

func NewAutoConfirmDeliveriesJob(orderService *services.OrderService) Job {
	return &autoConfirmDeliveriesJob{
		orderService: orderService,
	}
}

var _ Job = new(autoConfirmDeliveriesJob)

package jobs

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/internal/data"
)

const (
	roleCounterResetJobName     = "role_counter_reset"
	roleCounterResetJobInterval = 24 * time.Hour
)

// roleCounterResetJob zeroes role-change counters whose reset window has
// passed, restoring the user's monthly role-change allowance.
type roleCounterResetJob struct {
	models *data.Models
}

func (j roleCounterResetJob) GetName() string {
	return roleCounterResetJobName
}

func (j roleCounterResetJob) GetInterval() time.Duration {
	return roleCounterResetJobInterval
}

func (j roleCounterResetJob) Execute(ctx context.Context) error {
	reset, err := j.models.Users.ResetExpiredRoleChangeCounters(ctx, time.Now())
	if err != nil {
		err = fmt.Errorf("error resetting role change counters: %w", err)
		log.WithContext(ctx).Error(err)
		return err
	}
	if reset > 0 {
		log.WithContext(ctx).Infof("reset role change counters for %d users", reset)
	}
	return nil
}

func NewRoleCounterResetJob(models *data.Models) Job {
	return &roleCounterResetJob{
		models: models,
	}
}

var _ Job = new(roleCounterResetJob)

// Package scheduler runs the background sweeps: auto-confirming stale
// deliveries, expiring wallet holds, lapsing subscriptions and listings, and
// resetting role-change counters. Jobs are distributed to a fixed worker pool
// through a queue, and a Postgres advisory lock keeps each job single-flight
// across instances.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/crashtracker"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/message"
	"github.com/sabimarket/sabimarket-backend/internal/monitor"
	"github.com/sabimarket/sabimarket-backend/internal/scheduler/jobs"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

// Scheduler manages a list of jobs and executes them at their specified intervals.
// It uses a job queue to distribute jobs to workers.
type Scheduler struct {
	jobs               map[string]jobs.Job
	cancel             context.CancelFunc
	dbConnectionPool   db.DBConnectionPool
	crashTrackerClient crashtracker.CrashTrackerClient
	monitorService     monitor.MonitorServiceInterface
	jobQueue           chan jobs.Job
	// enqueuedJobs is used to keep track of enqueued jobs to avoid enqueuing the same job multiple times in case it takes longer to execute than its interval.
	enqueuedJobs sync.Map
}

type SchedulerJobRegisterOption func(*Scheduler)

// SchedulerWorkerCount is the number of workers that will be started to process jobs
const SchedulerWorkerCount = 5

// StartScheduler initializes and starts the scheduler. This method blocks
// until the context is cancelled.
func StartScheduler(ctx context.Context, dbConnectionPool db.DBConnectionPool, monitorService monitor.MonitorServiceInterface, crashTrackerClient crashtracker.CrashTrackerClient, schedulerJobRegisters ...SchedulerJobRegisterOption) {
	// Flush buffered crash tracker events before the scheduler terminates.
	defer crashTrackerClient.FlushEvents(2 * time.Second)
	defer crashTrackerClient.Recover()

	ctx, cancel := context.WithCancel(ctx)

	scheduler := newScheduler(cancel)
	scheduler.dbConnectionPool = dbConnectionPool
	scheduler.crashTrackerClient = crashTrackerClient
	scheduler.monitorService = monitorService

	for _, schedulerJobRegister := range schedulerJobRegisters {
		schedulerJobRegister(scheduler)
	}

	scheduler.start(ctx)

	<-ctx.Done()
}

// newScheduler creates a new scheduler.
func newScheduler(cancel context.CancelFunc) *Scheduler {
	return &Scheduler{
		jobs:     make(map[string]jobs.Job),
		cancel:   cancel,
		jobQueue: make(chan jobs.Job),
	}
}

// addJob adds a job to the scheduler. This method does not start the job. To start the job, call start().
func (s *Scheduler) addJob(job jobs.Job) {
	log.Infof("registering job to scheduler [name: %s], [interval: %s]", job.GetName(), job.GetInterval())
	s.jobs[job.GetName()] = job
}

// start starts the scheduler and all jobs. Workers consume from the job
// queue; one goroutine per job waits on its ticker and enqueues it.
func (s *Scheduler) start(ctx context.Context) {
	if len(s.jobs) == 0 {
		log.WithContext(ctx).Info("No jobs to start")
		s.stop()
		return
	}
	log.WithContext(ctx).Infof("Starting scheduler with %d workers...", SchedulerWorkerCount)

	for i := 1; i <= SchedulerWorkerCount; i++ {
		// each worker gets a CrashTrackerClient clone to report errors when the job is executed
		go worker(ctx, i, s.crashTrackerClient.Clone(), s)
	}

	for _, job := range s.jobs {
		go func(job jobs.Job) {
			ticker := time.NewTicker(job.GetInterval())
			for {
				select {
				case <-ticker.C:
					jobName := job.GetName()
					if _, alreadyEnqueued := s.enqueuedJobs.LoadOrStore(jobName, true); !alreadyEnqueued {
						log.WithContext(ctx).Debugf("Enqueuing job: %s", jobName)
						s.jobQueue <- job
					} else {
						log.WithContext(ctx).Debugf("Skipping job %s, already in queue", jobName)
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}(job)
	}
}

// stop uses the context to stop the scheduler and all jobs.
func (s *Scheduler) stop() {
	log.Info("Stopping scheduler...")
	s.cancel()
}

// worker is a goroutine that processes jobs from the job queue.
func worker(ctx context.Context, workerID int, crashTrackerClient crashtracker.CrashTrackerClient, scheduler *Scheduler) {
	defer func() {
		if r := recover(); r != nil {
			log.WithContext(ctx).Errorf("Worker %d encountered a panic while processing a job: %v", workerID, r)
		}
	}()
	for {
		select {
		case job := <-scheduler.jobQueue:
			scheduler.executeJob(ctx, job, workerID, crashTrackerClient)
			scheduler.enqueuedJobs.Delete(job.GetName())
		case <-ctx.Done():
			log.WithContext(ctx).Infof("Worker %d stopping...", workerID)
			return
		}
	}
}

// executeJob runs a job under a per-job advisory lock and reports the
// outcome. A job skipped because another instance holds the lock counts as
// neither success nor failure.
func (s *Scheduler) executeJob(ctx context.Context, job jobs.Job, workerID int, crashTrackerClient crashtracker.CrashTrackerClient) {
	log.WithContext(ctx).Debugf("Processing job %s on worker %d", job.GetName(), workerID)

	executed, err := s.runExclusive(ctx, job)
	if err != nil {
		msg := fmt.Sprintf("error processing job %s on worker %d", job.GetName(), workerID)
		crashTrackerClient.LogAndReportErrors(ctx, err, msg)
	}
	if executed && s.monitorService != nil {
		s.monitorService.MonitorSchedulerRun(job.GetName(), err)
	}
}

// runExclusive executes the job while holding a transaction-scoped advisory
// lock keyed on the job name, so concurrent instances never run the same
// sweep twice. The lock releases when the wrapping transaction ends.
func (s *Scheduler) runExclusive(ctx context.Context, job jobs.Job) (executed bool, err error) {
	err = db.RunInTransaction(ctx, s.dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
		var acquired bool
		if lockErr := dbTx.GetContext(ctx, &acquired, "SELECT pg_try_advisory_xact_lock(hashtext($1))", job.GetName()); lockErr != nil {
			return fmt.Errorf("acquiring advisory lock for job %s: %w", job.GetName(), lockErr)
		}
		if !acquired {
			log.WithContext(ctx).Debugf("Skipping job %s, another instance holds the lock", job.GetName())
			return nil
		}
		executed = true
		return job.Execute(ctx)
	})
	return executed, err
}

func WithAutoConfirmDeliveriesJobOption(orderService *services.OrderService) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		j := jobs.NewAutoConfirmDeliveriesJob(orderService)
		s.addJob(j)
	}
}

func WithExpireWalletHoldsJobOption(models *data.Models, ledgerService *ledger.Service) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		j := jobs.NewExpireWalletHoldsJob(models, ledgerService)
		s.addJob(j)
	}
}

func WithSubscriptionExpiryJobOption(models *data.Models, dispatcher message.MessageDispatcherInterface) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		j := jobs.NewSubscriptionExpiryJob(models, dispatcher)
		s.addJob(j)
	}
}

func WithRoleCounterResetJobOption(models *data.Models) SchedulerJobRegisterOption {
	return func(s *Scheduler) {
		j := jobs.NewRoleCounterResetJob(models)
		s.addJob(j)
	}
}

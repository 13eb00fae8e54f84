package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/db/dbtest"
	"github.com/sabimarket/sabimarket-backend/internal/crashtracker"
)

// MockJob is a mock job created for testing purposes
type MockJob struct {
	name       string
	interval   time.Duration
	executions int
	mu         sync.Mutex
}

func (m *MockJob) GetName() string {
	return m.name
}

func (m *MockJob) GetInterval() time.Duration {
	return m.interval
}

func (m *MockJob) Execute(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions++
	return nil
}

func (m *MockJob) GetExecutions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executions
}

func TestScheduler(t *testing.T) {
	testDB := dbtest.Open(t)
	conn := testDB.Open(t)
	t.Cleanup(func() { conn.Close() })
	pool := &db.DBConnectionPoolImplementation{DB: conn}

	ctx, cancel := context.WithCancel(context.Background())
	scheduler := newScheduler(cancel)
	scheduler.dbConnectionPool = pool

	mockCrashTrackerClient := &crashtracker.MockCrashTrackerClient{}
	scheduler.crashTrackerClient = mockCrashTrackerClient

	clone := crashtracker.MockCrashTrackerClient{}
	mockCrashTrackerClient.On("Clone").Return(&clone).Times(5)

	mockJob1 := &MockJob{
		name:     "mock_job_1",
		interval: 1 * time.Second,
	}

	mockJob2 := &MockJob{
		name:     "mock_job_2",
		interval: 20 * time.Second,
	}

	scheduler.addJob(mockJob1)
	scheduler.addJob(mockJob2)

	// Start the scheduler and wait for a short period to let the job run
	scheduler.start(ctx)
	time.Sleep(2 * time.Second)

	job1Executions := mockJob1.GetExecutions()
	require.True(t, job1Executions > 0, "Expected job to be executed at least once, but it was executed %d times", job1Executions)

	job2Executions := mockJob2.GetExecutions()
	require.True(t, job2Executions == 0, "Expected job to be executed 0 times, but it was executed %d times", job2Executions)

	cancel()
	time.Sleep(1 * time.Second)

	mockCrashTrackerClient.AssertExpectations(t)
}

func Test_Scheduler_runExclusive(t *testing.T) {
	testDB := dbtest.Open(t)
	conn := testDB.Open(t)
	t.Cleanup(func() { conn.Close() })
	pool := &db.DBConnectionPoolImplementation{DB: conn}

	ctx := context.Background()
	scheduler := &Scheduler{dbConnectionPool: pool}

	job := &MockJob{name: "exclusive_job", interval: time.Minute}

	executed, err := scheduler.runExclusive(ctx, job)
	require.NoError(t, err)
	require.True(t, executed)
	require.Equal(t, 1, job.GetExecutions())

	t.Run("skips when another session holds the lock", func(t *testing.T) {
		blocker, err := pool.SqlDB().Conn(ctx)
		require.NoError(t, err)
		defer blocker.Close()

		_, err = blocker.ExecContext(ctx, "SELECT pg_advisory_lock(hashtext($1))", job.GetName())
		require.NoError(t, err)
		defer func() {
			_, unlockErr := blocker.ExecContext(ctx, "SELECT pg_advisory_unlock(hashtext($1))", job.GetName())
			require.NoError(t, unlockErr)
		}()

		executed, err := scheduler.runExclusive(ctx, job)
		require.NoError(t, err)
		require.False(t, executed)
		require.Equal(t, 1, job.GetExecutions())
	})
}

package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/db/dbtest"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

func setupJobsTest(t *testing.T) (context.Context, db.DBConnectionPool, *data.Models) {
	t.Helper()

	testDB := dbtest.Open(t)
	conn := testDB.Open(t)
	t.Cleanup(func() { conn.Close() })

	pool := &db.DBConnectionPoolImplementation{DB: conn}
	models, err := data.NewModels(pool)
	require.NoError(t, err)

	return context.Background(), pool, models
}

func Test_SubscriptionExpiryJob_Execute(t *testing.T) {
	ctx, pool, models := setupJobsTest(t)

	vendor, err := models.Users.Insert(ctx, pool, data.UserInsert{
		Email:    "vendor@example.com",
		FullName: "Vendor",
		Role:     data.VendorUserRole,
	})
	require.NoError(t, err)

	now := time.Now()

	// One listing already lapsed, one expiring inside the warning window.
	lapsed, err := models.VendorServices.Insert(ctx, pool, data.VendorServiceInsert{
		VendorID:      vendor.ID,
		Title:         "Lapsed listing",
		Price:         10_000_00,
		StockQuantity: 5,
		ExpiresAt:     timePtr(now.Add(-1 * time.Hour)),
	})
	require.NoError(t, err)
	expiring, err := models.VendorServices.Insert(ctx, pool, data.VendorServiceInsert{
		VendorID:      vendor.ID,
		Title:         "Expiring listing",
		Price:         10_000_00,
		StockQuantity: 5,
		ExpiresAt:     timePtr(now.Add(24 * time.Hour)),
	})
	require.NoError(t, err)

	// A paid subscription lapsing within the warning window.
	subscriber, err := models.Users.Insert(ctx, pool, data.UserInsert{
		Email:    "subscriber@example.com",
		FullName: "Subscriber",
		Role:     data.EmployerUserRole,
	})
	require.NoError(t, err)
	_, err = pool.ExecContext(ctx,
		"UPDATE users SET subscription_tier = 'premium', subscription_expires_at = $1 WHERE id = $2",
		now.Add(24*time.Hour), subscriber.ID)
	require.NoError(t, err)

	dispatcher := &message.MessageDispatcherMock{}
	dispatcher.On("SendMessage", ctx, mock.AnythingOfType("message.Message"), mock.Anything).
		Return(message.MessengerTypeDryRun, nil).Times(3)

	job := NewSubscriptionExpiryJob(models, dispatcher)
	require.NoError(t, job.Execute(ctx))

	got, err := models.VendorServices.Get(ctx, pool, lapsed.ID)
	require.NoError(t, err)
	require.Equal(t, data.ExpiredVendorServiceStatus, got.Status)

	got, err = models.VendorServices.Get(ctx, pool, expiring.ID)
	require.NoError(t, err)
	require.Equal(t, data.ActiveVendorServiceStatus, got.Status)
	require.NotNil(t, got.ExpiryWarnedAt)

	warned, err := models.Users.Get(ctx, pool, subscriber.ID)
	require.NoError(t, err)
	require.NotNil(t, warned.SubscriptionExpiryWarnedAt)

	t.Run("warnings are not repeated", func(t *testing.T) {
		require.NoError(t, job.Execute(ctx))
		dispatcher.AssertExpectations(t)
	})

	t.Run("lapsed subscription is downgraded", func(t *testing.T) {
		_, err := pool.ExecContext(ctx,
			"UPDATE users SET subscription_expires_at = $1 WHERE id = $2",
			now.Add(-1*time.Hour), subscriber.ID)
		require.NoError(t, err)

		require.NoError(t, job.Execute(ctx))

		downgraded, err := models.Users.Get(ctx, pool, subscriber.ID)
		require.NoError(t, err)
		require.Equal(t, "free", downgraded.SubscriptionTier)
		require.Nil(t, downgraded.SubscriptionExpiresAt)
	})
}

func Test_RoleCounterResetJob_Execute(t *testing.T) {
	ctx, pool, models := setupJobsTest(t)

	user, err := models.Users.Insert(ctx, pool, data.UserInsert{
		Email:    "switcher@example.com",
		FullName: "Switcher",
		Role:     data.WorkerUserRole,
	})
	require.NoError(t, err)
	_, err = pool.ExecContext(ctx,
		"UPDATE users SET role_change_count = 3, role_change_reset_at = $1 WHERE id = $2",
		time.Now().Add(-1*time.Hour), user.ID)
	require.NoError(t, err)

	job := NewRoleCounterResetJob(models)
	require.NoError(t, job.Execute(ctx))

	reset, err := models.Users.Get(ctx, pool, user.ID)
	require.NoError(t, err)
	require.Equal(t, 0, reset.RoleChangeCount)
	require.True(t, reset.RoleChangeResetAt.After(time.Now()))
}

func timePtr(t time.Time) *time.Time {
	return &t
}

package escrow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/db/dbtest"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
)

type engineFixture struct {
	ctx     context.Context
	pool    db.DBConnectionPool
	models  *data.Models
	ledger  *ledger.Service
	engine  *Engine
	escrow  *data.User
	revenue *data.User
}

func setupEngineTest(t *testing.T) *engineFixture {
	t.Helper()

	testDB := dbtest.Open(t)
	conn := testDB.Open(t)
	t.Cleanup(func() { conn.Close() })

	pool := &db.DBConnectionPoolImplementation{DB: conn}
	models, err := data.NewModels(pool)
	require.NoError(t, err)

	ctx := context.Background()
	ledgerService := ledger.NewService(models)

	f := &engineFixture{ctx: ctx, pool: pool, models: models, ledger: ledgerService}
	f.escrow = f.createUser(t, "escrow@platform.internal", data.AdminUserRole)
	f.revenue = f.createUser(t, "revenue@platform.internal", data.AdminUserRole)
	f.engine = NewEngine(models, ledgerService, f.escrow.ID, f.revenue.ID)
	return f
}

func (f *engineFixture) createUser(t *testing.T, email string, role data.UserRole) *data.User {
	t.Helper()
	user, err := f.models.Users.Insert(f.ctx, f.pool, data.UserInsert{Email: email, FullName: "Fixture", Role: role})
	require.NoError(t, err)
	_, err = f.models.Wallets.Insert(f.ctx, f.pool, user.ID)
	require.NoError(t, err)
	return user
}

func (f *engineFixture) fund(t *testing.T, ownerID string, amount int64, reference string) {
	t.Helper()
	err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		_, err := f.ledger.Credit(f.ctx, dbTx, ownerID, ledger.EntryInput{
			Type: data.DepositTransactionType, Amount: amount, Reference: reference,
		})
		return err
	})
	require.NoError(t, err)
}

func (f *engineFixture) balance(t *testing.T, ownerID string) (balance, available int64) {
	t.Helper()
	wallet, err := f.models.Wallets.GetByOwner(f.ctx, f.pool, ownerID)
	require.NoError(t, err)
	return wallet.Balance, wallet.AvailableBalance
}

func (f *engineFixture) createJob(t *testing.T, employerID string, budget, fee int64, partialPct *int) *data.Job {
	t.Helper()
	job, err := f.models.Jobs.Insert(f.ctx, f.pool, data.JobInsert{
		EmployerID:               employerID,
		Category:                 "carpentry",
		Title:                    "Fit kitchen cabinets",
		Budget:                   budget,
		EstimatedDurationDays:    5,
		PlatformFee:              fee,
		PartialPaymentAllowed:    partialPct != nil,
		PartialPaymentPercentage: partialPct,
	})
	require.NoError(t, err)
	return job
}

// Happy-path labour job: fund, escrow on assignment, full release on completion.
func Test_Engine_job_happy_path(t *testing.T) {
	f := setupEngineTest(t)
	employer := f.createUser(t, "employer@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker@example.com", data.WorkerUserRole)
	f.fund(t, employer.ID, 200_000, "DEP_E1")

	job := f.createJob(t, employer.ID, 100_000, 3_000, nil)

	err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.AssignWorker(f.ctx, dbTx, job)
	})
	require.NoError(t, err)

	balance, available := f.balance(t, employer.ID)
	require.Equal(t, int64(97_000), balance)
	require.Equal(t, int64(97_000), available)

	escrowBalance, escrowAvailable := f.balance(t, f.escrow.ID)
	require.Equal(t, int64(103_000), escrowBalance)
	require.Equal(t, int64(0), escrowAvailable)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.EscrowedJobPaymentStatus, job.PaymentStatus)

	t.Run("replayed assignment is reported as already processed", func(t *testing.T) {
		err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
			return f.engine.AssignWorker(f.ctx, dbTx, job)
		})
		require.ErrorIs(t, err, ErrAlreadyProcessed)

		balance, _ := f.balance(t, employer.ID)
		require.Equal(t, int64(97_000), balance)
	})

	err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.Complete(f.ctx, dbTx, job, worker.ID)
	})
	require.NoError(t, err)

	workerBalance, _ := f.balance(t, worker.ID)
	require.Equal(t, int64(100_000), workerBalance)

	revenueBalance, _ := f.balance(t, f.revenue.ID)
	require.Equal(t, int64(3_000), revenueBalance)

	escrowBalance, escrowAvailable = f.balance(t, f.escrow.ID)
	require.Equal(t, int64(0), escrowBalance)
	require.Equal(t, int64(0), escrowAvailable)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.CompletedJobPaymentStatus, job.PaymentStatus)
}

// Partial release then completion: milestone payout reduces the held amount.
func Test_Engine_job_partial_release(t *testing.T) {
	f := setupEngineTest(t)
	employer := f.createUser(t, "employer@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker@example.com", data.WorkerUserRole)
	f.fund(t, employer.ID, 200_000, "DEP_E1")

	pct := 40
	job := f.createJob(t, employer.ID, 100_000, 3_000, &pct)

	err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.AssignWorker(f.ctx, dbTx, job)
	})
	require.NoError(t, err)

	err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.PartialRelease(f.ctx, dbTx, job, worker.ID)
	})
	require.NoError(t, err)

	workerBalance, _ := f.balance(t, worker.ID)
	require.Equal(t, int64(40_000), workerBalance)

	escrowBalance, _ := f.balance(t, f.escrow.ID)
	require.Equal(t, int64(63_000), escrowBalance)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.PartiallyPaidJobPaymentStatus, job.PaymentStatus)

	t.Run("at most one partial release per job", func(t *testing.T) {
		err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
			return f.engine.PartialRelease(f.ctx, dbTx, job, worker.ID)
		})
		require.ErrorIs(t, err, ErrAlreadyProcessed)
	})

	err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.Complete(f.ctx, dbTx, job, worker.ID)
	})
	require.NoError(t, err)

	workerBalance, _ = f.balance(t, worker.ID)
	require.Equal(t, int64(100_000), workerBalance)

	revenueBalance, _ := f.balance(t, f.revenue.ID)
	require.Equal(t, int64(3_000), revenueBalance)
}

// Dispute resolved for the employer: everything escrowed flows back.
func Test_Engine_job_refund(t *testing.T) {
	f := setupEngineTest(t)
	employer := f.createUser(t, "employer@example.com", data.EmployerUserRole)
	worker := f.createUser(t, "worker@example.com", data.WorkerUserRole)
	f.fund(t, employer.ID, 200_000, "DEP_E1")

	job := f.createJob(t, employer.ID, 100_000, 3_000, nil)

	err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.AssignWorker(f.ctx, dbTx, job)
	})
	require.NoError(t, err)

	err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.Refund(f.ctx, dbTx, job)
	})
	require.NoError(t, err)

	employerBalance, _ := f.balance(t, employer.ID)
	require.Equal(t, int64(200_000), employerBalance)

	workerBalance, _ := f.balance(t, worker.ID)
	require.Equal(t, int64(0), workerBalance)

	job, err = f.models.Jobs.Get(f.ctx, f.pool, job.ID)
	require.NoError(t, err)
	require.Equal(t, data.RefundedJobPaymentStatus, job.PaymentStatus)
}

// Cross-state order: delivery fee paid out immediately, principal held until
// delivery is confirmed.
func Test_Engine_order_cross_state(t *testing.T) {
	f := setupEngineTest(t)
	buyer := f.createUser(t, "buyer@example.com", data.BuyerUserRole)
	vendor := f.createUser(t, "vendor@example.com", data.VendorUserRole)
	f.fund(t, buyer.ID, 50_000, "DEP_B1")

	service, err := f.models.VendorServices.Insert(f.ctx, f.pool, data.VendorServiceInsert{
		VendorID: vendor.ID, Title: "Ankara fabric bundle", Price: 10_000, StockQuantity: 5,
	})
	require.NoError(t, err)

	order, err := f.models.Orders.Insert(f.ctx, f.pool, data.OrderInsert{
		OrderNumber:  "ORD-0001",
		ServiceID:    service.ID,
		VendorID:     vendor.ID,
		BuyerID:      buyer.ID,
		Quantity:     1,
		UnitPrice:    10_000,
		TotalAmount:  12_800,
		PlatformFee:  300,
		DeliveryFee:  2_500,
		VendorAmount: 10_000,
		DeliveryType: data.CrossStateDeliveryDeliveryType,
	})
	require.NoError(t, err)

	err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.PayOrder(f.ctx, dbTx, order)
	})
	require.NoError(t, err)

	buyerBalance, _ := f.balance(t, buyer.ID)
	require.Equal(t, int64(37_200), buyerBalance)

	vendorBalance, _ := f.balance(t, vendor.ID)
	require.Equal(t, int64(2_500), vendorBalance)

	revenueBalance, _ := f.balance(t, f.revenue.ID)
	require.Equal(t, int64(300), revenueBalance)

	escrowBalance, escrowAvailable := f.balance(t, f.escrow.ID)
	require.Equal(t, int64(10_000), escrowBalance)
	require.Equal(t, int64(0), escrowAvailable)

	order, err = f.models.Orders.Get(f.ctx, f.pool, order.ID)
	require.NoError(t, err)
	require.Equal(t, data.PaidOrderStatus, order.Status)
	require.Equal(t, int64(10_000), order.DeliveryAmountHeld)

	err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
		return f.engine.ReleaseDelivery(f.ctx, dbTx, order)
	})
	require.NoError(t, err)

	vendorBalance, _ = f.balance(t, vendor.ID)
	require.Equal(t, int64(12_500), vendorBalance)

	escrowBalance, _ = f.balance(t, f.escrow.ID)
	require.Equal(t, int64(0), escrowBalance)

	t.Run("replayed release is reported as already processed", func(t *testing.T) {
		err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
			return f.engine.ReleaseDelivery(f.ctx, dbTx, order)
		})
		require.ErrorIs(t, err, ErrAlreadyProcessed)

		vendorBalance, _ := f.balance(t, vendor.ID)
		require.Equal(t, int64(12_500), vendorBalance)
	})
}

func Test_Engine_order_refunds(t *testing.T) {
	f := setupEngineTest(t)

	newPaidOrder := func(t *testing.T, suffix string) (*data.Order, *data.User, *data.User) {
		buyer := f.createUser(t, "buyer"+suffix+"@example.com", data.BuyerUserRole)
		vendor := f.createUser(t, "vendor"+suffix+"@example.com", data.VendorUserRole)
		f.fund(t, buyer.ID, 50_000, "DEP_"+suffix)

		service, err := f.models.VendorServices.Insert(f.ctx, f.pool, data.VendorServiceInsert{
			VendorID: vendor.ID, Title: "Bundle", Price: 10_000, StockQuantity: 5,
		})
		require.NoError(t, err)

		order, err := f.models.Orders.Insert(f.ctx, f.pool, data.OrderInsert{
			OrderNumber:  "ORD-" + suffix,
			ServiceID:    service.ID,
			VendorID:     vendor.ID,
			BuyerID:      buyer.ID,
			Quantity:     1,
			UnitPrice:    10_000,
			TotalAmount:  12_800,
			PlatformFee:  300,
			DeliveryFee:  2_500,
			VendorAmount: 10_000,
			DeliveryType: data.CrossStateDeliveryDeliveryType,
		})
		require.NoError(t, err)

		err = db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
			return f.engine.PayOrder(f.ctx, dbTx, order)
		})
		require.NoError(t, err)

		order, err = f.models.Orders.Get(f.ctx, f.pool, order.ID)
		require.NoError(t, err)
		return order, buyer, vendor
	}

	t.Run("full refund claws back the vendor payout and keeps the fee", func(t *testing.T) {
		order, buyer, vendor := newPaidOrder(t, "full")

		err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
			return f.engine.RefundOrderFull(f.ctx, dbTx, order)
		})
		require.NoError(t, err)

		buyerBalance, _ := f.balance(t, buyer.ID)
		require.Equal(t, int64(49_700), buyerBalance)

		vendorBalance, _ := f.balance(t, vendor.ID)
		require.Equal(t, int64(0), vendorBalance)
	})

	t.Run("partial refund splits the held principal", func(t *testing.T) {
		order, buyer, vendor := newPaidOrder(t, "part")

		err := db.RunInTransaction(f.ctx, f.pool, nil, func(dbTx db.DBTransaction) error {
			return f.engine.RefundOrderPartial(f.ctx, dbTx, order, 30)
		})
		require.NoError(t, err)

		buyerBalance, _ := f.balance(t, buyer.ID)
		require.Equal(t, int64(40_200), buyerBalance)

		vendorBalance, _ := f.balance(t, vendor.ID)
		require.Equal(t, int64(9_500), vendorBalance)
	})
}

package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/db/dbtest"
	"github.com/sabimarket/sabimarket-backend/internal/data"
)

func setupLedgerTest(t *testing.T) (context.Context, db.DBConnectionPool, *data.Models, *Service) {
	t.Helper()

	testDB := dbtest.Open(t)
	conn := testDB.Open(t)
	t.Cleanup(func() { conn.Close() })

	pool := &db.DBConnectionPoolImplementation{DB: conn}
	models, err := data.NewModels(pool)
	require.NoError(t, err)

	return context.Background(), pool, models, NewService(models)
}

func createUserWithWallet(t *testing.T, ctx context.Context, pool db.DBConnectionPool, models *data.Models, email string) *data.User {
	t.Helper()

	user, err := models.Users.Insert(ctx, pool, data.UserInsert{
		Email:    email,
		FullName: "Test User",
		Role:     data.EmployerUserRole,
	})
	require.NoError(t, err)
	_, err = models.Wallets.Insert(ctx, pool, user.ID)
	require.NoError(t, err)
	return user
}

func Test_Service_Credit(t *testing.T) {
	ctx, pool, models, svc := setupLedgerTest(t)
	user := createUserWithWallet(t, ctx, pool, models, "credit@example.com")

	txn, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
		return svc.Credit(ctx, dbTx, user.ID, EntryInput{
			Type:        data.DepositTransactionType,
			Amount:      200_000_00,
			Reference:   "DEP_1",
			Description: "initial deposit",
		})
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), txn.BalanceBefore)
	require.Equal(t, int64(200_000_00), txn.BalanceAfter)

	wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(200_000_00), wallet.Balance)
	require.Equal(t, int64(200_000_00), wallet.AvailableBalance)
	require.Equal(t, int64(200_000_00), wallet.TotalDeposits)

	t.Run("duplicate reference collides", func(t *testing.T) {
		_, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Credit(ctx, dbTx, user.ID, EntryInput{
				Type:        data.DepositTransactionType,
				Amount:      50_000_00,
				Reference:   "DEP_1",
				Description: "replayed deposit",
			})
		})
		require.ErrorIs(t, err, ErrDuplicateReference)

		wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		require.Equal(t, int64(200_000_00), wallet.Balance)
	})

	t.Run("frozen wallet cannot be credited", func(t *testing.T) {
		wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		require.NoError(t, models.Wallets.UpdateStatus(ctx, pool, wallet.ID, data.FrozenWalletStatus))

		_, err = db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Credit(ctx, dbTx, user.ID, EntryInput{
				Type: data.DepositTransactionType, Amount: 10_000_00, Reference: "DEP_FROZEN",
			})
		})
		require.ErrorIs(t, err, ErrWalletFrozen)

		frozen, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		require.Equal(t, int64(200_000_00), frozen.Balance)
		require.NoError(t, models.Wallets.UpdateStatus(ctx, pool, wallet.ID, data.ActiveWalletStatus))
	})

	t.Run("closed wallet cannot be credited", func(t *testing.T) {
		closedUser := createUserWithWallet(t, ctx, pool, models, "closed@example.com")
		wallet, err := models.Wallets.GetByOwner(ctx, pool, closedUser.ID)
		require.NoError(t, err)
		require.NoError(t, models.Wallets.UpdateStatus(ctx, pool, wallet.ID, data.ClosedWalletStatus))

		_, err = db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Credit(ctx, dbTx, closedUser.ID, EntryInput{
				Type: data.DepositTransactionType, Amount: 10_000_00, Reference: "DEP_CLOSED",
			})
		})
		require.ErrorIs(t, err, ErrWalletNotActive)
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Credit(ctx, dbTx, user.ID, EntryInput{
				Type:      data.DepositTransactionType,
				Amount:    0,
				Reference: "DEP_ZERO",
			})
		})
		require.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func Test_Service_Debit(t *testing.T) {
	ctx, pool, models, svc := setupLedgerTest(t)
	user := createUserWithWallet(t, ctx, pool, models, "debit@example.com")

	err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.DBTransaction) error {
		_, err := svc.Credit(ctx, dbTx, user.ID, EntryInput{
			Type: data.DepositTransactionType, Amount: 100_000_00, Reference: "DEP_D1",
		})
		return err
	})
	require.NoError(t, err)

	t.Run("happy path", func(t *testing.T) {
		txn, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Debit(ctx, dbTx, user.ID, EntryInput{
				Type: data.JobPaymentTransactionType, Amount: 30_000_00, Reference: "PAY_D1",
			})
		})
		require.NoError(t, err)
		require.Equal(t, int64(100_000_00), txn.BalanceBefore)
		require.Equal(t, int64(70_000_00), txn.BalanceAfter)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		_, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Debit(ctx, dbTx, user.ID, EntryInput{
				Type: data.JobPaymentTransactionType, Amount: 1_000_000_00, Reference: "PAY_D2",
			})
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("frozen wallet is rejected", func(t *testing.T) {
		wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		require.NoError(t, models.Wallets.UpdateStatus(ctx, pool, wallet.ID, data.FrozenWalletStatus))

		_, err = db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Debit(ctx, dbTx, user.ID, EntryInput{
				Type: data.JobPaymentTransactionType, Amount: 1_00, Reference: "PAY_D3",
			})
		})
		require.ErrorIs(t, err, ErrWalletFrozen)

		require.NoError(t, models.Wallets.UpdateStatus(ctx, pool, wallet.ID, data.ActiveWalletStatus))
	})

	t.Run("daily limit", func(t *testing.T) {
		wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		_, err = pool.ExecContext(ctx, "UPDATE wallets SET daily_limit = $1 WHERE id = $2", int64(10_000_00), wallet.ID)
		require.NoError(t, err)

		_, err = db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Debit(ctx, dbTx, user.ID, EntryInput{
				Type: data.WithdrawalTransactionType, Amount: 20_000_00, Reference: "WDR_D1",
			})
		})
		require.ErrorIs(t, err, ErrLimitExceeded)
	})
}

func Test_Service_holds(t *testing.T) {
	ctx, pool, models, svc := setupLedgerTest(t)
	user := createUserWithWallet(t, ctx, pool, models, "holds@example.com")

	err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.DBTransaction) error {
		_, err := svc.Credit(ctx, dbTx, user.ID, EntryInput{
			Type: data.DepositTransactionType, Amount: 100_000_00, Reference: "DEP_H1",
		})
		return err
	})
	require.NoError(t, err)

	var holdID string
	t.Run("placing a hold reduces availability only", func(t *testing.T) {
		hold, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletHold, error) {
			return svc.PlaceHold(ctx, dbTx, user.ID, 60_000_00, "job escrow", nil, nil, nil)
		})
		require.NoError(t, err)
		holdID = hold.ID

		wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		require.Equal(t, int64(100_000_00), wallet.Balance)
		require.Equal(t, int64(40_000_00), wallet.AvailableBalance)
	})

	t.Run("debit beyond availability is rejected while held", func(t *testing.T) {
		_, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Debit(ctx, dbTx, user.ID, EntryInput{
				Type: data.JobPaymentTransactionType, Amount: 50_000_00, Reference: "PAY_H1",
			})
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("releasing restores availability", func(t *testing.T) {
		err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.DBTransaction) error {
			return svc.ReleaseHold(ctx, dbTx, holdID)
		})
		require.NoError(t, err)

		wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
		require.NoError(t, err)
		require.Equal(t, int64(100_000_00), wallet.Balance)
		require.Equal(t, int64(100_000_00), wallet.AvailableBalance)
	})
}

func Test_Service_ExpireHolds(t *testing.T) {
	ctx, pool, models, svc := setupLedgerTest(t)
	user := createUserWithWallet(t, ctx, pool, models, "expiry@example.com")

	err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.DBTransaction) error {
		if _, err := svc.Credit(ctx, dbTx, user.ID, EntryInput{
			Type: data.DepositTransactionType, Amount: 50_000_00, Reference: "DEP_E1",
		}); err != nil {
			return err
		}
		expiresAt := time.Now().Add(-time.Hour)
		_, err := svc.PlaceHold(ctx, dbTx, user.ID, 20_000_00, "stale hold", nil, nil, &expiresAt)
		return err
	})
	require.NoError(t, err)

	count, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (int, error) {
		return svc.ExpireHolds(ctx, dbTx, time.Now())
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	wallet, err := models.Wallets.GetByOwner(ctx, pool, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50_000_00), wallet.AvailableBalance)
}

func Test_Service_Transfer(t *testing.T) {
	ctx, pool, models, svc := setupLedgerTest(t)
	sender := createUserWithWallet(t, ctx, pool, models, "sender@example.com")
	recipient := createUserWithWallet(t, ctx, pool, models, "recipient@example.com")

	err := db.RunInTransaction(ctx, pool, nil, func(dbTx db.DBTransaction) error {
		_, err := svc.Credit(ctx, dbTx, sender.ID, EntryInput{
			Type: data.DepositTransactionType, Amount: 80_000_00, Reference: "DEP_T1",
		})
		return err
	})
	require.NoError(t, err)

	_, err = db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
		return svc.Transfer(ctx, dbTx, sender.ID, recipient.ID, 30_000_00, "TRF_1", "peer transfer")
	})
	require.NoError(t, err)

	senderWallet, err := models.Wallets.GetByOwner(ctx, pool, sender.ID)
	require.NoError(t, err)
	require.Equal(t, int64(50_000_00), senderWallet.Balance)

	recipientWallet, err := models.Wallets.GetByOwner(ctx, pool, recipient.ID)
	require.NoError(t, err)
	require.Equal(t, int64(30_000_00), recipientWallet.Balance)

	t.Run("replayed transfer collides and changes nothing", func(t *testing.T) {
		_, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			return svc.Transfer(ctx, dbTx, sender.ID, recipient.ID, 30_000_00, "TRF_1", "peer transfer")
		})
		require.ErrorIs(t, err, ErrDuplicateReference)

		senderWallet, err := models.Wallets.GetByOwner(ctx, pool, sender.ID)
		require.NoError(t, err)
		require.Equal(t, int64(50_000_00), senderWallet.Balance)
	})

	t.Run("rollback leaves no partial state", func(t *testing.T) {
		_, err := db.RunInTransactionWithResult(ctx, pool, nil, func(dbTx db.DBTransaction) (*data.WalletTransaction, error) {
			if _, err := svc.Transfer(ctx, dbTx, sender.ID, recipient.ID, 10_000_00, "TRF_2", "doomed transfer"); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("simulated failure after transfer")
		})
		require.Error(t, err)

		senderWallet, err := models.Wallets.GetByOwner(ctx, pool, sender.ID)
		require.NoError(t, err)
		require.Equal(t, int64(50_000_00), senderWallet.Balance)
	})
}

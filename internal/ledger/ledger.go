// Package ledger implements the money spine: every balance change on the
// platform flows through one of its operations, each of which runs under a
// row-level lock on the affected wallet and leaves an append-only
// wallet_transactions entry behind.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/data"
)

var (
	ErrInsufficientFunds  = errors.New("insufficient available balance")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	ErrWalletNotActive    = errors.New("wallet is not active")
	ErrWalletFrozen       = errors.New("wallet is frozen")
	ErrLimitExceeded      = errors.New("transaction limit exceeded")
	ErrInvalidAmount      = errors.New("amount must be positive")
)

// Service exposes the five ledger operations. Every method takes the caller's
// transaction so the escrow engine can compose several of them atomically.
type Service struct {
	models *data.Models
}

func NewService(models *data.Models) *Service {
	return &Service{models: models}
}

// EntryInput describes one side of a balance movement. Reference must be
// unique across all wallet transactions; callers derive it deterministically
// so retries collide instead of double-posting.
type EntryInput struct {
	Type              data.TransactionType
	Amount            int64
	Reference         string
	ExternalReference *string
	Description       string
	JobID             *string
	RecipientWalletID *string
	FeeAmount         int64
	Metadata          data.TransactionMeta
}

// Credit adds funds to a wallet. The wallet row lock is held for the whole
// operation, so balance_before/balance_after always chain correctly. A frozen
// wallet blocks both directions: credits are refused just like debits.
func (s *Service) Credit(ctx context.Context, dbTx db.DBTransaction, ownerID string, input EntryInput) (*data.WalletTransaction, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.models.Wallets.GetByOwnerForUpdate(ctx, dbTx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("locking wallet for owner %s: %w", ownerID, err)
	}
	if wallet.Status == data.FrozenWalletStatus {
		return nil, ErrWalletFrozen
	}
	if wallet.Status != data.ActiveWalletStatus {
		return nil, ErrWalletNotActive
	}

	balanceAfter := wallet.Balance + input.Amount
	txn, err := s.insertEntry(ctx, dbTx, wallet, input, wallet.Balance, balanceAfter)
	if err != nil {
		return nil, err
	}

	if err := s.writeBalances(ctx, dbTx, wallet.ID, balanceAfter); err != nil {
		return nil, err
	}
	if input.Type.IsFundingType() {
		if err := s.models.Wallets.IncrementTotals(ctx, dbTx, wallet.ID, input.Amount, 0); err != nil {
			return nil, fmt.Errorf("incrementing deposit totals: %w", err)
		}
	}
	return txn, nil
}

// Debit removes funds from a wallet. It asserts the wallet is active, has
// enough available balance, and stays within its daily and monthly outbound
// limits for withdrawal-like types.
func (s *Service) Debit(ctx context.Context, dbTx db.DBTransaction, ownerID string, input EntryInput) (*data.WalletTransaction, error) {
	if input.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.models.Wallets.GetByOwnerForUpdate(ctx, dbTx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("locking wallet for owner %s: %w", ownerID, err)
	}
	if wallet.Status == data.FrozenWalletStatus {
		return nil, ErrWalletFrozen
	}
	if wallet.Status != data.ActiveWalletStatus {
		return nil, ErrWalletNotActive
	}
	if wallet.AvailableBalance < input.Amount {
		return nil, ErrInsufficientFunds
	}

	if input.Type == data.WithdrawalTransactionType || input.Type == data.TransferTransactionType {
		if err := s.checkLimits(ctx, dbTx, wallet, input.Amount); err != nil {
			return nil, err
		}
	}

	balanceAfter := wallet.Balance - input.Amount
	txn, err := s.insertEntry(ctx, dbTx, wallet, input, wallet.Balance, balanceAfter)
	if err != nil {
		return nil, err
	}

	if err := s.writeBalances(ctx, dbTx, wallet.ID, balanceAfter); err != nil {
		return nil, err
	}
	if input.Type == data.WithdrawalTransactionType {
		if err := s.models.Wallets.IncrementTotals(ctx, dbTx, wallet.ID, 0, input.Amount); err != nil {
			return nil, fmt.Errorf("incrementing withdrawal totals: %w", err)
		}
	}
	return txn, nil
}

// PlaceHold reserves part of a wallet's available balance without moving it.
func (s *Service) PlaceHold(ctx context.Context, dbTx db.DBTransaction, ownerID string, amount int64, reason string, jobID, orderID *string, expiresAt *time.Time) (*data.WalletHold, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet, err := s.models.Wallets.GetByOwnerForUpdate(ctx, dbTx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("locking wallet for owner %s: %w", ownerID, err)
	}
	if wallet.Status != data.ActiveWalletStatus {
		return nil, ErrWalletNotActive
	}
	if wallet.AvailableBalance < amount {
		return nil, ErrInsufficientFunds
	}

	hold, err := s.models.WalletHolds.Insert(ctx, dbTx, data.WalletHoldInsert{
		WalletID:  wallet.ID,
		JobID:     jobID,
		OrderID:   orderID,
		Amount:    amount,
		Reason:    reason,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting hold: %w", err)
	}

	if err := s.writeBalances(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
		return nil, err
	}
	return hold, nil
}

// ReleaseHold marks a hold released and restores the reserved amount to the
// wallet's availability. It moves no money by itself.
func (s *Service) ReleaseHold(ctx context.Context, dbTx db.DBTransaction, holdID string) error {
	hold, err := s.models.WalletHolds.Get(ctx, dbTx, holdID)
	if err != nil {
		return fmt.Errorf("loading hold %s: %w", holdID, err)
	}

	wallet, err := s.models.Wallets.GetForUpdate(ctx, dbTx, hold.WalletID)
	if err != nil {
		return fmt.Errorf("locking wallet %s: %w", hold.WalletID, err)
	}
	if err := s.models.WalletHolds.Release(ctx, dbTx, holdID, time.Now()); err != nil {
		return fmt.Errorf("releasing hold %s: %w", holdID, err)
	}
	return s.writeBalances(ctx, dbTx, wallet.ID, wallet.Balance)
}

// ExpireHolds retires active holds whose expiry has passed and recomputes
// availability for each affected wallet. Returns the number of expired holds.
func (s *Service) ExpireHolds(ctx context.Context, dbTx db.DBTransaction, now time.Time) (int, error) {
	walletIDs, err := s.models.WalletHolds.ExpireDue(ctx, dbTx, now)
	if err != nil {
		return 0, fmt.Errorf("expiring holds: %w", err)
	}

	recomputed := map[string]bool{}
	for _, walletID := range walletIDs {
		if recomputed[walletID] {
			continue
		}
		wallet, err := s.models.Wallets.GetForUpdate(ctx, dbTx, walletID)
		if err != nil {
			return 0, fmt.Errorf("locking wallet %s: %w", walletID, err)
		}
		if err := s.writeBalances(ctx, dbTx, wallet.ID, wallet.Balance); err != nil {
			return 0, err
		}
		recomputed[walletID] = true
	}
	return len(walletIDs), nil
}

// Transfer moves funds between two wallets, locking both rows in canonical
// owner-ID order so concurrent opposite-direction transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, dbTx db.DBTransaction, fromOwnerID, toOwnerID string, amount int64, reference, description string) (*data.WalletTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromOwnerID == toOwnerID {
		return nil, fmt.Errorf("validating transfer: %w", data.ErrMissingInput)
	}

	firstOwner, secondOwner := fromOwnerID, toOwnerID
	if secondOwner < firstOwner {
		firstOwner, secondOwner = secondOwner, firstOwner
	}
	if _, err := s.models.Wallets.GetByOwnerForUpdate(ctx, dbTx, firstOwner); err != nil {
		return nil, fmt.Errorf("locking wallet for owner %s: %w", firstOwner, err)
	}
	if _, err := s.models.Wallets.GetByOwnerForUpdate(ctx, dbTx, secondOwner); err != nil {
		return nil, fmt.Errorf("locking wallet for owner %s: %w", secondOwner, err)
	}

	recipientWallet, err := s.models.Wallets.GetByOwner(ctx, dbTx, toOwnerID)
	if err != nil {
		return nil, fmt.Errorf("loading recipient wallet: %w", err)
	}

	debitTxn, err := s.Debit(ctx, dbTx, fromOwnerID, EntryInput{
		Type:              data.TransferTransactionType,
		Amount:            amount,
		Reference:         reference + "_DEBIT",
		Description:       description,
		RecipientWalletID: &recipientWallet.ID,
	})
	if err != nil {
		return nil, err
	}
	if _, err = s.Credit(ctx, dbTx, toOwnerID, EntryInput{
		Type:        data.TransferTransactionType,
		Amount:      amount,
		Reference:   reference + "_CREDIT",
		Description: description,
	}); err != nil {
		return nil, err
	}
	return debitTxn, nil
}

func (s *Service) insertEntry(ctx context.Context, dbTx db.DBTransaction, wallet *data.Wallet, input EntryInput, balanceBefore, balanceAfter int64) (*data.WalletTransaction, error) {
	txn, err := s.models.WalletTransactions.Insert(ctx, dbTx, data.WalletTransactionInsert{
		WalletID:          wallet.ID,
		UserID:            wallet.OwnerID,
		Type:              input.Type,
		Amount:            input.Amount,
		BalanceBefore:     balanceBefore,
		BalanceAfter:      balanceAfter,
		Status:            data.CompletedTransactionStatus,
		Reference:         input.Reference,
		ExternalReference: input.ExternalReference,
		Description:       input.Description,
		JobID:             input.JobID,
		RecipientWalletID: input.RecipientWalletID,
		FeeAmount:         input.FeeAmount,
		Metadata:          input.Metadata,
	})
	if err != nil {
		if errors.Is(err, data.ErrRecordAlreadyExists) {
			return nil, ErrDuplicateReference
		}
		return nil, fmt.Errorf("inserting ledger entry: %w", err)
	}
	return txn, nil
}

// writeBalances recomputes available_balance from active holds and persists
// both balance columns. Must be called under the wallet's row lock.
func (s *Service) writeBalances(ctx context.Context, dbTx db.DBTransaction, walletID string, balance int64) error {
	heldTotal, err := s.models.WalletHolds.SumActiveByWallet(ctx, dbTx, walletID)
	if err != nil {
		return fmt.Errorf("summing active holds: %w", err)
	}
	if err := s.models.Wallets.UpdateBalances(ctx, dbTx, walletID, balance, balance-heldTotal); err != nil {
		return fmt.Errorf("writing wallet balances: %w", err)
	}
	return nil
}

func (s *Service) checkLimits(ctx context.Context, dbTx db.DBTransaction, wallet *data.Wallet, amount int64) error {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	if wallet.DailyLimit > 0 {
		spentToday, err := s.models.WalletTransactions.SumDebitsSince(ctx, dbTx, wallet.ID, dayStart)
		if err != nil {
			return fmt.Errorf("summing daily debits: %w", err)
		}
		if spentToday+amount > wallet.DailyLimit {
			return ErrLimitExceeded
		}
	}
	if wallet.MonthlyLimit > 0 {
		spentThisMonth, err := s.models.WalletTransactions.SumDebitsSince(ctx, dbTx, wallet.ID, monthStart)
		if err != nil {
			return fmt.Errorf("summing monthly debits: %w", err)
		}
		if spentThisMonth+amount > wallet.MonthlyLimit {
			return ErrLimitExceeded
		}
	}
	return nil
}

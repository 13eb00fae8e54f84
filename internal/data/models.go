package data

import (
	"errors"

	"github.com/sabimarket/sabimarket-backend/db"
)

var (
	ErrRecordNotFound          = errors.New("record not found")
	ErrRecordAlreadyExists     = errors.New("record already exists")
	ErrMismatchNumRowsAffected = errors.New("mismatch number of rows affected")
	ErrMissingInput            = errors.New("missing input")
)

type Models struct {
	Users                 *UserModel
	Wallets               *WalletModel
	WalletTransactions    *WalletTransactionModel
	WalletHolds           *WalletHoldModel
	WalletOTPs            *WalletOTPModel
	Jobs                  *JobModel
	JobContracts          *JobContractModel
	JobProgress           *JobProgressModel
	JobReviews            *JobReviewModel
	EscrowTransactions    *EscrowTransactionModel
	Disputes              *DisputeModel
	VendorServices        *VendorServiceModel
	Orders                *OrderModel
	Properties            *PropertyModel
	PropertyVerifications *PropertyVerificationModel
	Chats                 *ChatModel
	Messages              *MessageModel
	ContractProposals     *ContractProposalModel
	DBConnectionPool      db.DBConnectionPool
}

func NewModels(dbConnectionPool db.DBConnectionPool) (*Models, error) {
	if dbConnectionPool == nil {
		return nil, errors.New("dbConnectionPool is required for NewModels")
	}
	return &Models{
		Users:                 &UserModel{dbConnectionPool: dbConnectionPool},
		Wallets:               &WalletModel{dbConnectionPool: dbConnectionPool},
		WalletTransactions:    &WalletTransactionModel{dbConnectionPool: dbConnectionPool},
		WalletHolds:           &WalletHoldModel{dbConnectionPool: dbConnectionPool},
		WalletOTPs:            &WalletOTPModel{dbConnectionPool: dbConnectionPool},
		Jobs:                  &JobModel{dbConnectionPool: dbConnectionPool},
		JobContracts:          &JobContractModel{dbConnectionPool: dbConnectionPool},
		JobProgress:           &JobProgressModel{dbConnectionPool: dbConnectionPool},
		JobReviews:            &JobReviewModel{dbConnectionPool: dbConnectionPool},
		EscrowTransactions:    &EscrowTransactionModel{dbConnectionPool: dbConnectionPool},
		Disputes:              &DisputeModel{dbConnectionPool: dbConnectionPool},
		VendorServices:        &VendorServiceModel{dbConnectionPool: dbConnectionPool},
		Orders:                &OrderModel{dbConnectionPool: dbConnectionPool},
		Properties:            &PropertyModel{dbConnectionPool: dbConnectionPool},
		PropertyVerifications: &PropertyVerificationModel{dbConnectionPool: dbConnectionPool},
		Chats:                 &ChatModel{dbConnectionPool: dbConnectionPool},
		Messages:              &MessageModel{dbConnectionPool: dbConnectionPool},
		ContractProposals:     &ContractProposalModel{dbConnectionPool: dbConnectionPool},
		DBConnectionPool:      dbConnectionPool,
	}, nil
}

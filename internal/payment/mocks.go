package payment

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type ProviderMock struct {
	mock.Mock
}

func (m *ProviderMock) Name() ProviderName {
	args := m.Called()
	return args.Get(0).(ProviderName)
}

func (m *ProviderMock) InitializePayment(ctx context.Context, email string, amountKobo int64, reference string) (*InitializedPayment, error) {
	args := m.Called(ctx, email, amountKobo, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InitializedPayment), args.Error(1)
}

func (m *ProviderMock) VerifyPayment(ctx context.Context, reference string) (*VerifiedPayment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*VerifiedPayment), args.Error(1)
}

func (m *ProviderMock) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	args := m.Called(ctx, accountNumber, bankCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ResolvedAccount), args.Error(1)
}

func (m *ProviderMock) InitiateTransfer(ctx context.Context, accountNumber, bankCode string, amountKobo int64, reference, narration string) (*InitiatedTransfer, error) {
	args := m.Called(ctx, accountNumber, bankCode, amountKobo, reference, narration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*InitiatedTransfer), args.Error(1)
}

var _ Provider = (*ProviderMock)(nil)

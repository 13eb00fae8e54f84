package httphandler

import (
	"net/http"

	"github.com/sabimarket/sabimarket-backend/internal/serve/httperror"
	"github.com/sabimarket/sabimarket-backend/internal/serve/httpresponse"
	"github.com/sabimarket/sabimarket-backend/internal/serve/middleware"
	"github.com/sabimarket/sabimarket-backend/internal/serve/validators"
	"github.com/sabimarket/sabimarket-backend/internal/services"
)

type WalletHandler struct {
	WalletService *services.WalletService
}

type depositRequest struct {
	AmountKobo int64 `json:"amount_kobo"`
}

func (h WalletHandler) InitializeDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}
	v := validators.NewValidator()
	v.Check(req.AmountKobo > 0, "amount_kobo", "amount must be positive")
	if v.HasErrors() {
		httperror.BadRequest("Invalid deposit request.", nil).Render(w)
		return
	}

	initialized, err := h.WalletService.InitializeDeposit(ctx, userID, req.AmountKobo)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Deposit initialized.", initialized)
}

type verifyDepositRequest struct {
	Reference string `json:"reference"`
}

func (h WalletHandler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req verifyDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}
	if req.Reference == "" {
		httperror.BadRequest("Reference is required.", nil).Render(w)
		return
	}

	txn, err := h.WalletService.VerifyDeposit(ctx, userID, req.Reference)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Deposit verified.", txn)
}

type withdrawRequest struct {
	AmountKobo    int64  `json:"amount_kobo"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	PIN           string `json:"pin"`
	OTP           string `json:"otp"`
}

func (h WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	txn, err := h.WalletService.Withdraw(ctx, userID, services.WithdrawRequest{
		AmountKobo:    req.AmountKobo,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
		PIN:           req.PIN,
		OTP:           req.OTP,
	})
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Withdrawal initiated.", txn)
}

type transferRequest struct {
	ToUserID    string `json:"to_user_id"`
	AmountKobo  int64  `json:"amount_kobo"`
	PIN         string `json:"pin"`
	Description string `json:"description"`
}

func (h WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	txn, err := h.WalletService.Transfer(ctx, userID, req.ToUserID, req.AmountKobo, req.PIN, req.Description)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Transfer completed.", txn)
}

type setPinRequest struct {
	PIN string `json:"pin"`
}

func (h WalletHandler) SetPin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var req setPinRequest
	if err := decodeJSON(r, &req); err != nil {
		httperror.BadRequest(err.Error(), err).Render(w)
		return
	}

	if err := h.WalletService.SetPin(ctx, userID, req.PIN); err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "PIN updated.", nil)
}

func (h WalletHandler) RequestWithdrawalOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	if err := h.WalletService.RequestWithdrawalOTP(ctx, userID); err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "A withdrawal code has been sent to you.", nil)
}

func (h WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	wallet, err := h.WalletService.Balance(ctx, userID)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.OK(w, "Wallet balance.", wallet)
}

func (h WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	qv := validators.NewQueryValidator()
	page, pageSize := qv.ParsePagination(r)
	if qv.HasErrors() {
		httperror.BadRequest("Invalid pagination parameters.", nil).Render(w)
		return
	}

	transactions, err := h.WalletService.History(ctx, userID, page, pageSize)
	if err != nil {
		httperror.FromError(ctx, err).Render(w)
		return
	}
	httpresponse.Paginated(w, "Wallet history.", page, pageSize, transactions)
}

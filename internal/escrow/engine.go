// Package escrow coordinates multi-wallet money movements for jobs and
// orders. It persists no balances of its own: state lives in job and order
// rows plus the holds and ledger entries it creates through the ledger
// service.
//
// Escrowed funds are debited from the payer and parked in a dedicated
// platform escrow wallet, where a hold labelled with the job or order pins
// them until release or refund. Every step writes an escrow_transactions
// audit row whose deterministic reference doubles as the idempotency anchor:
// a replayed step collides on it and is reported as success.
package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
)

var (
	ErrAlreadyProcessed = errors.New("escrow step already processed")
	ErrNoActiveHold     = errors.New("no active hold backs this escrow")
)

// Engine composes ledger operations into the job and order escrow protocols.
// escrowOwnerID and revenueOwnerID identify the platform's custody and
// revenue wallets.
type Engine struct {
	models         *data.Models
	ledger         *ledger.Service
	escrowOwnerID  string
	revenueOwnerID string
}

func NewEngine(models *data.Models, ledgerService *ledger.Service, escrowOwnerID, revenueOwnerID string) *Engine {
	return &Engine{
		models:         models,
		ledger:         ledgerService,
		escrowOwnerID:  escrowOwnerID,
		revenueOwnerID: revenueOwnerID,
	}
}

func JobEscrowReference(jobID string) string { return "JOB_ESCROW_" + jobID }

func JobPartialReference(jobID string) string { return "JOB_PARTIAL_" + jobID }

func JobReleaseReference(jobID string) string { return "JOB_RELEASE_" + jobID }

func JobRefundReference(jobID string) string { return "JOB_REFUND_" + jobID }

func JobFeeReference(jobID string) string { return "JOB_FEE_" + jobID }

func OrderPayReference(orderID string) string { return "ORDER_PAY_" + orderID }

func OrderVendorReference(orderID string) string { return "ORDER_VENDOR_" + orderID }

func OrderFeeReference(orderID string) string { return "ORDER_FEE_" + orderID }

func OrderReleaseReference(orderID string) string { return "ORDER_RELEASE_" + orderID }

func OrderRefundReference(orderID string) string { return "ORDER_REFUND_" + orderID }

// recordStep writes the audit row that anchors idempotency. A reference
// collision means the step already ran to completion in a previous attempt.
func (e *Engine) recordStep(ctx context.Context, dbTx db.DBTransaction, insert data.EscrowTransactionInsert) error {
	if _, err := e.models.EscrowTransactions.Insert(ctx, dbTx, insert); err != nil {
		if errors.Is(err, data.ErrRecordAlreadyExists) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("recording escrow step %s: %w", insert.Reference, err)
	}
	return nil
}

// lockOwners acquires wallet row locks in canonical owner-ID order so
// concurrent escrow steps touching overlapping wallets cannot deadlock.
func (e *Engine) lockOwners(ctx context.Context, dbTx db.DBTransaction, ownerIDs ...string) error {
	sorted := append([]string{}, ownerIDs...)
	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}
	seen := map[string]bool{}
	for _, ownerID := range sorted {
		if seen[ownerID] {
			continue
		}
		seen[ownerID] = true
		if _, err := e.models.Wallets.GetByOwnerForUpdate(ctx, dbTx, ownerID); err != nil {
			return fmt.Errorf("locking wallet for owner %s: %w", ownerID, err)
		}
	}
	return nil
}

// AssignWorker moves budget+platform_fee from the employer into the platform
// escrow wallet and pins it with a hold labelled with the job. The caller is
// responsible for the job's status transition; this method owns the
// payment_status move to escrowed.
func (e *Engine) AssignWorker(ctx context.Context, dbTx db.DBTransaction, job *data.Job) error {
	total := job.Budget + job.PlatformFee

	if err := e.lockOwners(ctx, dbTx, job.EmployerID, e.escrowOwnerID); err != nil {
		return err
	}
	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		JobID:     &job.ID,
		Type:      data.HoldEscrowTransactionType,
		Amount:    total,
		Reference: JobEscrowReference(job.ID),
	}); err != nil {
		return err
	}

	if _, err := e.ledger.Debit(ctx, dbTx, job.EmployerID, ledger.EntryInput{
		Type:        data.JobPaymentTransactionType,
		Amount:      total,
		Reference:   JobEscrowReference(job.ID) + "_DEBIT",
		Description: fmt.Sprintf("escrow funding for job %s", job.ID),
		JobID:       &job.ID,
		FeeAmount:   job.PlatformFee,
	}); err != nil {
		return fmt.Errorf("debiting employer for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Credit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.JobPaymentTransactionType,
		Amount:      total,
		Reference:   JobEscrowReference(job.ID) + "_CREDIT",
		Description: fmt.Sprintf("escrow custody for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("crediting escrow wallet for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.PlaceHold(ctx, dbTx, e.escrowOwnerID, total, "job escrow", &job.ID, nil, nil); err != nil {
		return fmt.Errorf("placing escrow hold for job %s: %w", job.ID, err)
	}

	if err := e.models.Jobs.UpdatePaymentStatus(ctx, dbTx, job.ID, data.EscrowedJobPaymentStatus, total); err != nil {
		return fmt.Errorf("updating payment status for job %s: %w", job.ID, err)
	}
	return nil
}

// PartialRelease pays the worker the milestone share and re-pins the
// remainder under a fresh hold. At most one partial release per job: a
// second invocation collides on the audit reference.
func (e *Engine) PartialRelease(ctx context.Context, dbTx db.DBTransaction, job *data.Job, workerID string) error {
	if job.PartialPaymentPercentage == nil {
		return fmt.Errorf("job %s has no partial payment percentage: %w", job.ID, data.ErrMissingInput)
	}
	releaseAmount := job.Budget * int64(*job.PartialPaymentPercentage) / 100

	if err := e.lockOwners(ctx, dbTx, workerID, e.escrowOwnerID); err != nil {
		return err
	}
	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		JobID:     &job.ID,
		Type:      data.PartialEscrowTransactionType,
		Amount:    releaseAmount,
		Reference: JobPartialReference(job.ID),
	}); err != nil {
		return err
	}

	hold, err := e.models.WalletHolds.GetActiveByJob(ctx, dbTx, job.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNoActiveHold
		}
		return fmt.Errorf("loading escrow hold for job %s: %w", job.ID, err)
	}

	if err := e.ledger.ReleaseHold(ctx, dbTx, hold.ID); err != nil {
		return fmt.Errorf("releasing escrow hold for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.PlaceHold(ctx, dbTx, e.escrowOwnerID, hold.Amount-releaseAmount, "job escrow remainder", &job.ID, nil, nil); err != nil {
		return fmt.Errorf("re-placing escrow hold for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Debit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.JobPaymentTransactionType,
		Amount:      releaseAmount,
		Reference:   JobPartialReference(job.ID) + "_DEBIT",
		Description: fmt.Sprintf("partial release for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("debiting escrow wallet for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Credit(ctx, dbTx, workerID, ledger.EntryInput{
		Type:        data.JobPaymentTransactionType,
		Amount:      releaseAmount,
		Reference:   JobPartialReference(job.ID) + "_CREDIT",
		Description: fmt.Sprintf("milestone payment for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("crediting worker for job %s: %w", job.ID, err)
	}

	if err := e.models.Jobs.UpdatePaymentStatus(ctx, dbTx, job.ID, data.PartiallyPaidJobPaymentStatus, hold.Amount-releaseAmount); err != nil {
		return fmt.Errorf("updating payment status for job %s: %w", job.ID, err)
	}
	return nil
}

// Complete pays the worker the remaining principal, routes the platform fee
// to the revenue wallet, and releases the escrow hold.
func (e *Engine) Complete(ctx context.Context, dbTx db.DBTransaction, job *data.Job, workerID string) error {
	if err := e.lockOwners(ctx, dbTx, workerID, e.escrowOwnerID, e.revenueOwnerID); err != nil {
		return err
	}

	hold, err := e.models.WalletHolds.GetActiveByJob(ctx, dbTx, job.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNoActiveHold
		}
		return fmt.Errorf("loading escrow hold for job %s: %w", job.ID, err)
	}
	workerAmount := hold.Amount - job.PlatformFee

	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		JobID:     &job.ID,
		Type:      data.ReleaseEscrowTransactionType,
		Amount:    hold.Amount,
		Reference: JobReleaseReference(job.ID),
	}); err != nil {
		return err
	}

	if err := e.ledger.ReleaseHold(ctx, dbTx, hold.ID); err != nil {
		return fmt.Errorf("releasing escrow hold for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Debit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.JobPaymentTransactionType,
		Amount:      hold.Amount,
		Reference:   JobReleaseReference(job.ID) + "_DEBIT",
		Description: fmt.Sprintf("escrow settlement for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("debiting escrow wallet for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Credit(ctx, dbTx, workerID, ledger.EntryInput{
		Type:        data.JobPaymentTransactionType,
		Amount:      workerAmount,
		Reference:   JobReleaseReference(job.ID) + "_CREDIT",
		Description: fmt.Sprintf("final payment for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("crediting worker for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Credit(ctx, dbTx, e.revenueOwnerID, ledger.EntryInput{
		Type:        data.PlatformFeeTransactionType,
		Amount:      job.PlatformFee,
		Reference:   JobFeeReference(job.ID),
		Description: fmt.Sprintf("platform fee for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("crediting platform fee for job %s: %w", job.ID, err)
	}

	if err := e.models.Jobs.UpdatePaymentStatus(ctx, dbTx, job.ID, data.CompletedJobPaymentStatus, 0); err != nil {
		return fmt.Errorf("updating payment status for job %s: %w", job.ID, err)
	}
	return nil
}

// Refund returns the remaining escrowed amount to the employer, including the
// platform fee; any already-released partial stays with the worker.
func (e *Engine) Refund(ctx context.Context, dbTx db.DBTransaction, job *data.Job) error {
	if err := e.lockOwners(ctx, dbTx, job.EmployerID, e.escrowOwnerID); err != nil {
		return err
	}

	hold, err := e.models.WalletHolds.GetActiveByJob(ctx, dbTx, job.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNoActiveHold
		}
		return fmt.Errorf("loading escrow hold for job %s: %w", job.ID, err)
	}

	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		JobID:     &job.ID,
		Type:      data.RefundEscrowTransactionType,
		Amount:    hold.Amount,
		Reference: JobRefundReference(job.ID),
	}); err != nil {
		return err
	}

	if err := e.ledger.ReleaseHold(ctx, dbTx, hold.ID); err != nil {
		return fmt.Errorf("releasing escrow hold for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Debit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.JobRefundTransactionType,
		Amount:      hold.Amount,
		Reference:   JobRefundReference(job.ID) + "_DEBIT",
		Description: fmt.Sprintf("escrow refund for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("debiting escrow wallet for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Credit(ctx, dbTx, job.EmployerID, ledger.EntryInput{
		Type:        data.JobRefundTransactionType,
		Amount:      hold.Amount,
		Reference:   JobRefundReference(job.ID) + "_CREDIT",
		Description: fmt.Sprintf("escrow refund for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("crediting employer for job %s: %w", job.ID, err)
	}

	if err := e.models.Jobs.UpdatePaymentStatus(ctx, dbTx, job.ID, data.RefundedJobPaymentStatus, 0); err != nil {
		return fmt.Errorf("updating payment status for job %s: %w", job.ID, err)
	}
	return nil
}

// RefundPartial splits the held principal between employer and worker on a
// partial dispute ruling. The platform keeps its fee. It shares the refund
// reference with Refund, so at most one of the two can ever settle a job.
func (e *Engine) RefundPartial(ctx context.Context, dbTx db.DBTransaction, job *data.Job, workerID string, refundPct int) error {
	if refundPct < 1 || refundPct > 100 {
		return fmt.Errorf("refund percentage %d out of range: %w", refundPct, data.ErrMissingInput)
	}

	if err := e.lockOwners(ctx, dbTx, job.EmployerID, workerID, e.escrowOwnerID, e.revenueOwnerID); err != nil {
		return err
	}

	hold, err := e.models.WalletHolds.GetActiveByJob(ctx, dbTx, job.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNoActiveHold
		}
		return fmt.Errorf("loading escrow hold for job %s: %w", job.ID, err)
	}
	principal := hold.Amount - job.PlatformFee
	employerAmount := principal * int64(refundPct) / 100
	workerAmount := principal - employerAmount

	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		JobID:     &job.ID,
		Type:      data.SplitEscrowTransactionType,
		Amount:    hold.Amount,
		Reference: JobRefundReference(job.ID),
	}); err != nil {
		return err
	}

	if err := e.ledger.ReleaseHold(ctx, dbTx, hold.ID); err != nil {
		return fmt.Errorf("releasing escrow hold for job %s: %w", job.ID, err)
	}
	if _, err := e.ledger.Debit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.JobRefundTransactionType,
		Amount:      hold.Amount,
		Reference:   JobRefundReference(job.ID) + "_DEBIT",
		Description: fmt.Sprintf("escrow split settlement for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("debiting escrow wallet for job %s: %w", job.ID, err)
	}
	if employerAmount > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, job.EmployerID, ledger.EntryInput{
			Type:        data.JobRefundTransactionType,
			Amount:      employerAmount,
			Reference:   JobRefundReference(job.ID) + "_CREDIT",
			Description: fmt.Sprintf("partial refund for job %s", job.ID),
			JobID:       &job.ID,
		}); err != nil {
			return fmt.Errorf("crediting employer for job %s: %w", job.ID, err)
		}
	}
	if workerAmount > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, workerID, ledger.EntryInput{
			Type:        data.JobPaymentTransactionType,
			Amount:      workerAmount,
			Reference:   JobRefundReference(job.ID) + "_WORKER",
			Description: fmt.Sprintf("split payment for job %s", job.ID),
			JobID:       &job.ID,
		}); err != nil {
			return fmt.Errorf("crediting worker for job %s: %w", job.ID, err)
		}
	}
	if _, err := e.ledger.Credit(ctx, dbTx, e.revenueOwnerID, ledger.EntryInput{
		Type:        data.PlatformFeeTransactionType,
		Amount:      job.PlatformFee,
		Reference:   JobFeeReference(job.ID),
		Description: fmt.Sprintf("platform fee for job %s", job.ID),
		JobID:       &job.ID,
	}); err != nil {
		return fmt.Errorf("crediting platform fee for job %s: %w", job.ID, err)
	}

	if err := e.models.Jobs.UpdatePaymentStatus(ctx, dbTx, job.ID, data.RefundedJobPaymentStatus, 0); err != nil {
		return fmt.Errorf("updating payment status for job %s: %w", job.ID, err)
	}
	return nil
}

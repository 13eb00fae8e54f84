package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/cache"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

// DisputeService routes an authority's ruling to the escrow engine and sets
// the final state of the disputed job or order. The dispute row's one-shot
// resolve guard makes a second ruling impossible.
type DisputeService struct {
	models   *data.Models
	engine   *escrow.Engine
	cache    *cache.Cache
	notifier *notifier
}

func NewDisputeService(models *data.Models, engine *escrow.Engine, c *cache.Cache, dispatcher message.MessageDispatcherInterface) *DisputeService {
	return &DisputeService{
		models:   models,
		engine:   engine,
		cache:    c,
		notifier: &notifier{models: models, dispatcher: dispatcher},
	}
}

type ResolveDisputeRequest struct {
	Decision         data.DisputeDecision
	Resolution       string
	RefundPercentage *int
}

func (r ResolveDisputeRequest) validate() error {
	switch r.Decision {
	case data.ReleaseDisputeDecision, data.RefundDisputeDecision:
	case data.PartialRefundDisputeDecision:
		if r.RefundPercentage == nil || *r.RefundPercentage < 1 || *r.RefundPercentage > 100 {
			return fmt.Errorf("%w: partial refund requires a percentage between 1 and 100", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown dispute decision %q", ErrInvalidInput, r.Decision)
	}
	return nil
}

// Resolve applies an authority's ruling. Admin or moderator role required.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, resolverID string, req ResolveDisputeRequest) (*data.Dispute, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	resolver, err := s.models.Users.Get(ctx, s.models.DBConnectionPool, resolverID)
	if err != nil {
		return nil, fmt.Errorf("loading resolver %s: %w", resolverID, err)
	}
	if !resolver.Role.IsPlatformAuthority() {
		return nil, fmt.Errorf("role %s cannot resolve disputes: %w", resolver.Role, ErrUnauthorized)
	}

	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Dispute, []db.PostCommitFn, error) {
		dispute, err := s.models.Disputes.Get(ctx, dbTx, disputeID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading dispute %s: %w", disputeID, err)
		}
		if dispute.Status == data.ResolvedDisputeStatus {
			return nil, nil, fmt.Errorf("dispute %s: %w", disputeID, ErrDisputeNotOpen)
		}

		switch {
		case dispute.JobID != nil:
			if err = s.settleJob(ctx, dbTx, *dispute.JobID, req); err != nil {
				return nil, nil, err
			}
		case dispute.OrderID != nil:
			if err = s.settleOrder(ctx, dbTx, *dispute.OrderID, req); err != nil {
				return nil, nil, err
			}
		default:
			return nil, nil, fmt.Errorf("dispute %s references neither job nor order: %w", disputeID, ErrInvalidInput)
		}

		dispute, err = s.models.Disputes.Resolve(ctx, dbTx, disputeID, data.DisputeResolution{
			Decision:         req.Decision,
			Resolution:       req.Resolution,
			RefundPercentage: req.RefundPercentage,
			ResolvedBy:       resolverID,
		})
		if err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				return nil, nil, fmt.Errorf("dispute %s: %w", disputeID, ErrDisputeNotOpen)
			}
			return nil, nil, fmt.Errorf("resolving dispute %s: %w", disputeID, err)
		}

		raisedBy := dispute.RaisedBy
		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			if dispute.JobID != nil {
				s.cache.Delete(ctx, cache.JobKey(*dispute.JobID))
			}
			s.notifier.notifyUser(ctx, raisedBy, "Dispute resolved",
				fmt.Sprintf("Your dispute was resolved: %s.", req.Decision))
		}}
		return dispute, postCommit, nil
	})
}

// settleJob routes a ruling on a job dispute: refund cancels the job, release
// and partial refund complete it with the corresponding escrow settlement.
func (s *DisputeService) settleJob(ctx context.Context, dbTx db.DBTransaction, jobID string, req ResolveDisputeRequest) error {
	job, err := s.models.Jobs.GetForUpdate(ctx, dbTx, jobID)
	if err != nil {
		return fmt.Errorf("loading job %s: %w", jobID, err)
	}
	if job.Status != data.DisputedJobStatus {
		return fmt.Errorf("job %s is %s, not disputed: %w", jobID, job.Status, data.ErrInvalidStateTransition)
	}
	if job.AssignedWorkerID == nil {
		return fmt.Errorf("job %s has no assigned worker: %w", jobID, data.ErrRecordNotFound)
	}
	workerID := *job.AssignedWorkerID

	finalStatus := data.CompletedJobStatus
	switch req.Decision {
	case data.RefundDisputeDecision:
		if err = s.engine.Refund(ctx, dbTx, job); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return fmt.Errorf("refunding job %s: %w", jobID, err)
		}
		finalStatus = data.CancelledJobStatus
	case data.ReleaseDisputeDecision:
		if err = s.engine.Complete(ctx, dbTx, job, workerID); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return fmt.Errorf("releasing escrow for job %s: %w", jobID, err)
		}
	case data.PartialRefundDisputeDecision:
		if err = s.engine.RefundPartial(ctx, dbTx, job, workerID, *req.RefundPercentage); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return fmt.Errorf("splitting escrow for job %s: %w", jobID, err)
		}
	}

	if err = s.models.Jobs.UpdateStatus(ctx, dbTx, jobID, finalStatus); err != nil {
		return fmt.Errorf("finalizing job %s: %w", jobID, err)
	}
	return nil
}

// settleOrder routes a ruling on an order dispute. Release behaves like a
// delivery confirmation; refunds return the principal to the buyer while the
// platform keeps its fee.
func (s *DisputeService) settleOrder(ctx context.Context, dbTx db.DBTransaction, orderID string, req ResolveDisputeRequest) error {
	order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
	if err != nil {
		return fmt.Errorf("loading order %s: %w", orderID, err)
	}
	if order.Status != data.DisputedOrderStatus {
		return fmt.Errorf("order %s is %s, not disputed: %w", orderID, order.Status, data.ErrInvalidStateTransition)
	}

	switch req.Decision {
	case data.ReleaseDisputeDecision:
		if err = s.engine.ReleaseDelivery(ctx, dbTx, order); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return fmt.Errorf("releasing held amount for order %s: %w", orderID, err)
		}
		if err = s.models.Orders.MarkCompleted(ctx, dbTx, orderID, time.Now()); err != nil {
			return fmt.Errorf("completing order %s: %w", orderID, err)
		}
	case data.RefundDisputeDecision:
		if err = s.engine.RefundOrderFull(ctx, dbTx, order); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return fmt.Errorf("refunding order %s: %w", orderID, err)
		}
		if err = s.models.Orders.MarkCancelled(ctx, dbTx, orderID, data.RefundedOrderStatus, time.Now()); err != nil {
			return fmt.Errorf("marking order %s refunded: %w", orderID, err)
		}
	case data.PartialRefundDisputeDecision:
		if err = s.engine.RefundOrderPartial(ctx, dbTx, order, *req.RefundPercentage); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return fmt.Errorf("splitting held amount for order %s: %w", orderID, err)
		}
		if err = s.models.Orders.MarkCancelled(ctx, dbTx, orderID, data.RefundedOrderStatus, time.Now()); err != nil {
			return fmt.Errorf("marking order %s refunded: %w", orderID, err)
		}
	}
	return nil
}

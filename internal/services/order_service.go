package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/cache"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/escrow"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
	"github.com/sabimarket/sabimarket-backend/internal/message"
)

// AutoConfirmAfter is how long a delivered cross-state order waits for the
// buyer before the scheduler confirms it on their behalf.
const AutoConfirmAfter = 7 * 24 * time.Hour

// OrderService drives the vendor order lifecycle from creation through
// payment, delivery confirmation, and cancellation.
type OrderService struct {
	models   *data.Models
	engine   *escrow.Engine
	cache    *cache.Cache
	notifier *notifier
}

func NewOrderService(models *data.Models, engine *escrow.Engine, c *cache.Cache, dispatcher message.MessageDispatcherInterface) *OrderService {
	return &OrderService{
		models:   models,
		engine:   engine,
		cache:    c,
		notifier: &notifier{models: models, dispatcher: dispatcher},
	}
}

type CreateOrderRequest struct {
	ServiceID    string
	Quantity     int
	DeliveryType data.DeliveryType
	DeliveryFee  int64
	PlatformFee  int64
}

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// CreateOrder validates every precondition before touching any row: active
// service, stock, vendor subscription, buyer identity for cross-state, and
// buyer balance. Funds do not move until PayOrder.
func (s *OrderService) CreateOrder(ctx context.Context, buyerID string, req CreateOrderRequest) (*data.Order, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if req.DeliveryFee < 0 || req.PlatformFee < 0 {
		return nil, fmt.Errorf("%w: fees cannot be negative", ErrInvalidInput)
	}
	if err := req.DeliveryType.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.DeliveryType == data.LocalPickupDeliveryType && req.DeliveryFee != 0 {
		return nil, fmt.Errorf("%w: local pickup carries no delivery fee", ErrInvalidInput)
	}

	return db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Order, error) {
		service, err := s.models.VendorServices.GetForUpdate(ctx, dbTx, req.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("loading service %s: %w", req.ServiceID, err)
		}
		if service.Status != data.ActiveVendorServiceStatus {
			return nil, fmt.Errorf("service %s is %s: %w", service.ID, service.Status, ErrServiceNotActive)
		}
		if service.StockQuantity < req.Quantity {
			return nil, fmt.Errorf("service %s has %d in stock: %w", service.ID, service.StockQuantity, ErrInsufficientStock)
		}

		vendor, err := s.models.Users.Get(ctx, dbTx, service.VendorID)
		if err != nil {
			return nil, fmt.Errorf("loading vendor %s: %w", service.VendorID, err)
		}
		if vendor.SubscriptionExpiresAt != nil && vendor.SubscriptionExpiresAt.Before(time.Now()) {
			return nil, fmt.Errorf("vendor %s: %w", vendor.ID, ErrSubscriptionExpired)
		}

		buyer, err := s.models.Users.Get(ctx, dbTx, buyerID)
		if err != nil {
			return nil, fmt.Errorf("loading buyer %s: %w", buyerID, err)
		}
		if req.DeliveryType == data.CrossStateDeliveryDeliveryType &&
			buyer.IdentityVerificationStatus != data.ApprovedIdentityStatus {
			return nil, fmt.Errorf("buyer %s: %w", buyerID, ErrIdentityNotVerified)
		}

		principal := service.Price * int64(req.Quantity)
		totalAmount := principal + req.PlatformFee + req.DeliveryFee

		buyerWallet, err := s.models.Wallets.GetByOwner(ctx, dbTx, buyerID)
		if err != nil {
			return nil, fmt.Errorf("loading buyer wallet: %w", err)
		}
		if buyerWallet.AvailableBalance < totalAmount {
			return nil, fmt.Errorf("order total is %d kobo: %w", totalAmount, ledger.ErrInsufficientFunds)
		}

		heldTarget := principal
		if req.DeliveryType == data.LocalPickupDeliveryType {
			heldTarget = 0
		}
		order, err := s.models.Orders.Insert(ctx, dbTx, data.OrderInsert{
			OrderNumber:  newOrderNumber(),
			ServiceID:    service.ID,
			VendorID:     service.VendorID,
			BuyerID:      buyerID,
			Quantity:     req.Quantity,
			UnitPrice:    service.Price,
			TotalAmount:  totalAmount,
			PlatformFee:  req.PlatformFee,
			DeliveryFee:  req.DeliveryFee,
			VendorAmount: totalAmount - req.PlatformFee - heldTarget,
			DeliveryType: req.DeliveryType,
		})
		if err != nil {
			return nil, fmt.Errorf("creating order: %w", err)
		}

		if err = s.models.VendorServices.DecrementStock(ctx, dbTx, service.ID, req.Quantity); err != nil {
			return nil, fmt.Errorf("reserving stock for order %s: %w", order.ID, err)
		}
		return order, nil
	})
}

// PayOrder moves the buyer's money: fee to revenue, immediate share to the
// vendor, goods principal into escrow. Local pickup completes on payment.
func (s *OrderService) PayOrder(ctx context.Context, orderID, buyerID string) (*data.Order, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Order, []db.PostCommitFn, error) {
		order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading order %s: %w", orderID, err)
		}
		if order.BuyerID != buyerID {
			return nil, nil, fmt.Errorf("caller %s does not own order %s: %w", buyerID, orderID, ErrUnauthorized)
		}
		if err = order.Status.TransitionTo(data.PaidOrderStatus); err != nil {
			return nil, nil, fmt.Errorf("validating order transition: %w", err)
		}

		if err = s.engine.PayOrder(ctx, dbTx, order); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return nil, nil, fmt.Errorf("paying order %s: %w", orderID, err)
		}

		if order.DeliveryType == data.LocalPickupDeliveryType {
			if err = s.models.Orders.MarkCompleted(ctx, dbTx, orderID, time.Now()); err != nil {
				return nil, nil, fmt.Errorf("completing local pickup order %s: %w", orderID, err)
			}
		}

		order, err = s.models.Orders.Get(ctx, dbTx, orderID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading order %s: %w", orderID, err)
		}

		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.notifier.notifyUser(ctx, order.VendorID, "New paid order",
				fmt.Sprintf("Order %s was paid. Prepare it for %s.", order.OrderNumber, order.DeliveryType))
		}}
		return order, postCommit, nil
	})
}

// MarkShipped records the vendor handing the order to a carrier.
func (s *OrderService) MarkShipped(ctx context.Context, orderID, vendorID string) (*data.Order, error) {
	return db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Order, error) {
		order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
		if err != nil {
			return nil, fmt.Errorf("loading order %s: %w", orderID, err)
		}
		if order.VendorID != vendorID {
			return nil, fmt.Errorf("caller %s is not the vendor on order %s: %w", vendorID, orderID, ErrUnauthorized)
		}
		if err = order.Status.TransitionTo(data.ShippedOrderStatus); err != nil {
			return nil, fmt.Errorf("validating order transition: %w", err)
		}
		if err = s.models.Orders.UpdateStatus(ctx, dbTx, orderID, data.ShippedOrderStatus); err != nil {
			return nil, fmt.Errorf("marking order %s shipped: %w", orderID, err)
		}
		return s.models.Orders.Get(ctx, dbTx, orderID)
	})
}

// MarkDelivered records the carrier's delivery. The buyer (or the scheduler)
// still needs to confirm before the held principal is released.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID, vendorID string) (*data.Order, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Order, []db.PostCommitFn, error) {
		order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading order %s: %w", orderID, err)
		}
		if order.VendorID != vendorID {
			return nil, nil, fmt.Errorf("caller %s is not the vendor on order %s: %w", vendorID, orderID, ErrUnauthorized)
		}
		if err = order.Status.TransitionTo(data.DeliveredOrderStatus); err != nil {
			return nil, nil, fmt.Errorf("validating order transition: %w", err)
		}
		if err = s.models.Orders.MarkDelivered(ctx, dbTx, orderID, time.Now()); err != nil {
			return nil, nil, fmt.Errorf("marking order %s delivered: %w", orderID, err)
		}

		order, err = s.models.Orders.Get(ctx, dbTx, orderID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading order %s: %w", orderID, err)
		}

		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.notifier.notifyUser(ctx, order.BuyerID, "Order delivered",
				fmt.Sprintf("Order %s was delivered. Confirm it to release the held payment.", order.OrderNumber))
		}}
		return order, postCommit, nil
	})
}

// ConfirmDelivery releases the held goods principal to the vendor. Calling it
// on an already-completed order returns the order unchanged.
func (s *OrderService) ConfirmDelivery(ctx context.Context, orderID, callerID string) (*data.Order, error) {
	return db.RunInTransactionWithPostCommit(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Order, []db.PostCommitFn, error) {
		order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
		if err != nil {
			return nil, nil, fmt.Errorf("loading order %s: %w", orderID, err)
		}
		if order.BuyerID != callerID {
			return nil, nil, fmt.Errorf("caller %s is not the buyer on order %s: %w", callerID, orderID, ErrUnauthorized)
		}
		if order.Status == data.CompletedOrderStatus && order.DeliveryConfirmed {
			return order, nil, nil
		}
		if err = order.Status.TransitionTo(data.CompletedOrderStatus); err != nil {
			return nil, nil, fmt.Errorf("validating order transition: %w", err)
		}

		if err = s.engine.ReleaseDelivery(ctx, dbTx, order); err != nil && !errors.Is(err, escrow.ErrAlreadyProcessed) {
			return nil, nil, fmt.Errorf("releasing held amount for order %s: %w", orderID, err)
		}
		if err = s.models.Orders.MarkCompleted(ctx, dbTx, orderID, time.Now()); err != nil {
			return nil, nil, fmt.Errorf("completing order %s: %w", orderID, err)
		}

		order, err = s.models.Orders.Get(ctx, dbTx, orderID)
		if err != nil {
			return nil, nil, fmt.Errorf("reloading order %s: %w", orderID, err)
		}

		postCommit := []db.PostCommitFn{func(ctx context.Context) {
			s.notifier.notifyUser(ctx, order.VendorID, "Delivery confirmed",
				fmt.Sprintf("The held payment for order %s was released to your wallet.", order.OrderNumber))
		}}
		return order, postCommit, nil
	})
}

// CancelOrder is free before payment: the order is cancelled and the stock
// restored. After payment cancellation routes through the dispute path.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, buyerID, reason string) (*data.Order, error) {
	return db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Order, error) {
		order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
		if err != nil {
			return nil, fmt.Errorf("loading order %s: %w", orderID, err)
		}
		if order.BuyerID != buyerID {
			return nil, fmt.Errorf("caller %s does not own order %s: %w", buyerID, orderID, ErrUnauthorized)
		}

		if order.Status == data.PendingOrderStatus {
			if err = s.models.Orders.MarkCancelled(ctx, dbTx, orderID, data.CancelledOrderStatus, time.Now()); err != nil {
				return nil, fmt.Errorf("cancelling order %s: %w", orderID, err)
			}
			if err = s.models.VendorServices.RestoreStock(ctx, dbTx, order.ServiceID, order.Quantity); err != nil {
				return nil, fmt.Errorf("restoring stock for order %s: %w", orderID, err)
			}
			return s.models.Orders.Get(ctx, dbTx, orderID)
		}

		// Paid orders cannot be unilaterally cancelled: money already moved,
		// so the request becomes a dispute for an authority to settle.
		if err = order.Status.TransitionTo(data.DisputedOrderStatus); err != nil {
			return nil, fmt.Errorf("validating order transition: %w", err)
		}
		if _, err = s.models.Disputes.Insert(ctx, dbTx, data.DisputeInsert{
			OrderID:     &orderID,
			RaisedBy:    buyerID,
			Reason:      "cancellation requested",
			Description: reason,
		}); err != nil {
			return nil, fmt.Errorf("opening cancellation dispute for order %s: %w", orderID, err)
		}
		if err = s.models.Orders.UpdateStatus(ctx, dbTx, orderID, data.DisputedOrderStatus); err != nil {
			return nil, fmt.Errorf("marking order %s disputed: %w", orderID, err)
		}
		return s.models.Orders.Get(ctx, dbTx, orderID)
	})
}

// OpenDispute lets the buyer contest a paid or delivered order.
func (s *OrderService) OpenDispute(ctx context.Context, orderID, raiserID, reason, description string, evidenceURLs []string) (*data.Dispute, error) {
	return db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.Dispute, error) {
		order, err := s.models.Orders.GetForUpdate(ctx, dbTx, orderID)
		if err != nil {
			return nil, fmt.Errorf("loading order %s: %w", orderID, err)
		}
		if order.BuyerID != raiserID && order.VendorID != raiserID {
			return nil, fmt.Errorf("caller %s is not a party to order %s: %w", raiserID, orderID, ErrUnauthorized)
		}
		if err = order.Status.TransitionTo(data.DisputedOrderStatus); err != nil {
			return nil, fmt.Errorf("validating order transition: %w", err)
		}

		dispute, err := s.models.Disputes.Insert(ctx, dbTx, data.DisputeInsert{
			OrderID:      &orderID,
			RaisedBy:     raiserID,
			Reason:       reason,
			Description:  description,
			EvidenceURLs: evidenceURLs,
		})
		if err != nil {
			return nil, fmt.Errorf("opening dispute for order %s: %w", orderID, err)
		}
		if err = s.models.Orders.UpdateStatus(ctx, dbTx, orderID, data.DisputedOrderStatus); err != nil {
			return nil, fmt.Errorf("marking order %s disputed: %w", orderID, err)
		}
		return dispute, nil
	})
}

// AutoConfirmDeliveries confirms delivered cross-state orders whose buyers
// went quiet for the grace window, acting as the buyer. Each order is its own
// transaction: one failure does not stall the sweep.
func (s *OrderService) AutoConfirmDeliveries(ctx context.Context, now time.Time) (int, error) {
	due, err := s.models.Orders.GetDueForAutoConfirm(ctx, s.models.DBConnectionPool, now.Add(-AutoConfirmAfter))
	if err != nil {
		return 0, fmt.Errorf("listing orders due for auto-confirm: %w", err)
	}

	confirmed := 0
	for _, order := range due {
		if _, err := s.ConfirmDelivery(ctx, order.ID, order.BuyerID); err != nil {
			log.WithContext(ctx).Errorf("auto-confirming order %s: %v", order.ID, err)
			continue
		}
		confirmed++
	}
	return confirmed, nil
}

package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
	"github.com/sabimarket/sabimarket-backend/internal/data"
	"github.com/sabimarket/sabimarket-backend/internal/ledger"
)

// PayOrder settles an order's payment split in one transaction: the buyer is
// debited the full total, the platform fee goes to revenue, the immediate
// vendor share is credited, and for held delivery the goods principal is
// parked in the escrow wallet under a hold labelled with the order.
//
// For local pickup there is nothing to hold: the vendor receives the full
// principal immediately and deliveryAmountHeld is zero.
func (e *Engine) PayOrder(ctx context.Context, dbTx db.DBTransaction, order *data.Order) error {
	heldAmount := order.DeliveryAmountHeldTarget()
	immediateVendorAmount := order.TotalAmount - order.PlatformFee - heldAmount

	if err := e.lockOwners(ctx, dbTx, order.BuyerID, order.VendorID, e.escrowOwnerID, e.revenueOwnerID); err != nil {
		return err
	}
	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		OrderID:   &order.ID,
		Type:      data.HoldEscrowTransactionType,
		Amount:    order.TotalAmount,
		Reference: OrderPayReference(order.ID),
	}); err != nil {
		return err
	}

	if _, err := e.ledger.Debit(ctx, dbTx, order.BuyerID, ledger.EntryInput{
		Type:        data.ServicePaymentTransactionType,
		Amount:      order.TotalAmount,
		Reference:   OrderPayReference(order.ID) + "_DEBIT",
		Description: fmt.Sprintf("payment for order %s", order.OrderNumber),
		FeeAmount:   order.PlatformFee,
	}); err != nil {
		return fmt.Errorf("debiting buyer for order %s: %w", order.ID, err)
	}
	if order.PlatformFee > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, e.revenueOwnerID, ledger.EntryInput{
			Type:        data.PlatformFeeTransactionType,
			Amount:      order.PlatformFee,
			Reference:   OrderFeeReference(order.ID),
			Description: fmt.Sprintf("platform fee for order %s", order.OrderNumber),
		}); err != nil {
			return fmt.Errorf("crediting platform fee for order %s: %w", order.ID, err)
		}
	}
	if immediateVendorAmount > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, order.VendorID, ledger.EntryInput{
			Type:        data.ServicePaymentTransactionType,
			Amount:      immediateVendorAmount,
			Reference:   OrderVendorReference(order.ID),
			Description: fmt.Sprintf("immediate payout for order %s", order.OrderNumber),
		}); err != nil {
			return fmt.Errorf("crediting vendor for order %s: %w", order.ID, err)
		}
	}
	if heldAmount > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
			Type:        data.ServicePaymentTransactionType,
			Amount:      heldAmount,
			Reference:   OrderPayReference(order.ID) + "_CREDIT",
			Description: fmt.Sprintf("escrow custody for order %s", order.OrderNumber),
		}); err != nil {
			return fmt.Errorf("crediting escrow wallet for order %s: %w", order.ID, err)
		}
		if _, err := e.ledger.PlaceHold(ctx, dbTx, e.escrowOwnerID, heldAmount, "order delivery escrow", nil, &order.ID, nil); err != nil {
			return fmt.Errorf("placing escrow hold for order %s: %w", order.ID, err)
		}
	}

	if err := e.models.Orders.MarkPaid(ctx, dbTx, order.ID, heldAmount, time.Now()); err != nil {
		return fmt.Errorf("marking order %s paid: %w", order.ID, err)
	}
	return nil
}

// ReleaseDelivery pays the vendor the held goods principal after the buyer
// confirms delivery (or the auto-confirm task does so on their behalf).
// Idempotent: a replay collides on the audit reference.
func (e *Engine) ReleaseDelivery(ctx context.Context, dbTx db.DBTransaction, order *data.Order) error {
	if order.DeliveryAmountHeld == 0 {
		return nil
	}

	if err := e.lockOwners(ctx, dbTx, order.VendorID, e.escrowOwnerID); err != nil {
		return err
	}
	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		OrderID:   &order.ID,
		Type:      data.ReleaseEscrowTransactionType,
		Amount:    order.DeliveryAmountHeld,
		Reference: OrderReleaseReference(order.ID),
	}); err != nil {
		return err
	}

	hold, err := e.models.WalletHolds.GetActiveByOrder(ctx, dbTx, order.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNoActiveHold
		}
		return fmt.Errorf("loading escrow hold for order %s: %w", order.ID, err)
	}

	if err := e.ledger.ReleaseHold(ctx, dbTx, hold.ID); err != nil {
		return fmt.Errorf("releasing escrow hold for order %s: %w", order.ID, err)
	}
	if _, err := e.ledger.Debit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.ServiceDeliveryTransactionType,
		Amount:      hold.Amount,
		Reference:   OrderReleaseReference(order.ID) + "_DEBIT",
		Description: fmt.Sprintf("escrow settlement for order %s", order.OrderNumber),
	}); err != nil {
		return fmt.Errorf("debiting escrow wallet for order %s: %w", order.ID, err)
	}
	if _, err := e.ledger.Credit(ctx, dbTx, order.VendorID, ledger.EntryInput{
		Type:        data.ServiceDeliveryTransactionType,
		Amount:      hold.Amount,
		Reference:   OrderReleaseReference(order.ID) + "_CREDIT",
		Description: fmt.Sprintf("delivery payout for order %s", order.OrderNumber),
	}); err != nil {
		return fmt.Errorf("crediting vendor for order %s: %w", order.ID, err)
	}
	return nil
}

// RefundOrderFull refunds the buyer everything except the platform fee. The
// vendor's immediate payout is clawed back to make the buyer whole.
func (e *Engine) RefundOrderFull(ctx context.Context, dbTx db.DBTransaction, order *data.Order) error {
	refundAmount := order.TotalAmount - order.PlatformFee
	clawback := refundAmount - order.DeliveryAmountHeld

	if err := e.lockOwners(ctx, dbTx, order.BuyerID, order.VendorID, e.escrowOwnerID); err != nil {
		return err
	}
	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		OrderID:   &order.ID,
		Type:      data.RefundEscrowTransactionType,
		Amount:    refundAmount,
		Reference: OrderRefundReference(order.ID),
	}); err != nil {
		return err
	}

	if order.DeliveryAmountHeld > 0 {
		if err := e.settleHeldAmount(ctx, dbTx, order); err != nil {
			return err
		}
	}
	if clawback > 0 {
		if _, err := e.ledger.Debit(ctx, dbTx, order.VendorID, ledger.EntryInput{
			Type:        data.RefundTransactionType,
			Amount:      clawback,
			Reference:   OrderRefundReference(order.ID) + "_CLAWBACK",
			Description: fmt.Sprintf("payout reversal for order %s", order.OrderNumber),
		}); err != nil {
			return fmt.Errorf("reversing vendor payout for order %s: %w", order.ID, err)
		}
	}
	if _, err := e.ledger.Credit(ctx, dbTx, order.BuyerID, ledger.EntryInput{
		Type:        data.RefundTransactionType,
		Amount:      refundAmount,
		Reference:   OrderRefundReference(order.ID) + "_CREDIT",
		Description: fmt.Sprintf("refund for order %s", order.OrderNumber),
	}); err != nil {
		return fmt.Errorf("crediting buyer refund for order %s: %w", order.ID, err)
	}
	return nil
}

// RefundOrderPartial splits the held goods principal: the buyer receives pct
// percent, the vendor the rest. The platform fee and any immediate payouts
// stay where they are.
func (e *Engine) RefundOrderPartial(ctx context.Context, dbTx db.DBTransaction, order *data.Order, pct int) error {
	if pct < 1 || pct > 100 {
		return fmt.Errorf("validating refund percentage %d: %w", pct, data.ErrMissingInput)
	}
	buyerShare := order.DeliveryAmountHeld * int64(pct) / 100
	vendorShare := order.DeliveryAmountHeld - buyerShare

	if err := e.lockOwners(ctx, dbTx, order.BuyerID, order.VendorID, e.escrowOwnerID); err != nil {
		return err
	}
	if err := e.recordStep(ctx, dbTx, data.EscrowTransactionInsert{
		OrderID:   &order.ID,
		Type:      data.SplitEscrowTransactionType,
		Amount:    order.DeliveryAmountHeld,
		Reference: OrderRefundReference(order.ID),
	}); err != nil {
		return err
	}

	if err := e.settleHeldAmount(ctx, dbTx, order); err != nil {
		return err
	}
	if buyerShare > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, order.BuyerID, ledger.EntryInput{
			Type:        data.RefundTransactionType,
			Amount:      buyerShare,
			Reference:   OrderRefundReference(order.ID) + "_CREDIT",
			Description: fmt.Sprintf("partial refund for order %s", order.OrderNumber),
		}); err != nil {
			return fmt.Errorf("crediting buyer refund for order %s: %w", order.ID, err)
		}
	}
	if vendorShare > 0 {
		if _, err := e.ledger.Credit(ctx, dbTx, order.VendorID, ledger.EntryInput{
			Type:        data.ServiceDeliveryTransactionType,
			Amount:      vendorShare,
			Reference:   OrderRefundReference(order.ID) + "_VENDOR",
			Description: fmt.Sprintf("partial payout for order %s", order.OrderNumber),
		}); err != nil {
			return fmt.Errorf("crediting vendor share for order %s: %w", order.ID, err)
		}
	}
	return nil
}

// settleHeldAmount releases the order's hold and debits the held amount out
// of the escrow wallet, leaving the proceeds to be distributed by the caller.
func (e *Engine) settleHeldAmount(ctx context.Context, dbTx db.DBTransaction, order *data.Order) error {
	hold, err := e.models.WalletHolds.GetActiveByOrder(ctx, dbTx, order.ID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			return ErrNoActiveHold
		}
		return fmt.Errorf("loading escrow hold for order %s: %w", order.ID, err)
	}
	if err := e.ledger.ReleaseHold(ctx, dbTx, hold.ID); err != nil {
		return fmt.Errorf("releasing escrow hold for order %s: %w", order.ID, err)
	}
	if _, err := e.ledger.Debit(ctx, dbTx, e.escrowOwnerID, ledger.EntryInput{
		Type:        data.RefundTransactionType,
		Amount:      hold.Amount,
		Reference:   OrderRefundReference(order.ID) + "_DEBIT",
		Description: fmt.Sprintf("escrow settlement for order %s", order.OrderNumber),
	}); err != nil {
		return fmt.Errorf("debiting escrow wallet for order %s: %w", order.ID, err)
	}
	return nil
}

package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

// Order is a purchase of a vendor service. The monetary split fields are
// fixed at payment time; total_amount always equals vendor_amount plus
// platform_fee plus delivery_fee.
type Order struct {
	ID                  string       `json:"id" db:"id"`
	OrderNumber         string       `json:"order_number" db:"order_number"`
	ServiceID           string       `json:"service_id" db:"service_id"`
	VendorID            string       `json:"vendor_id" db:"vendor_id"`
	BuyerID             string       `json:"buyer_id" db:"buyer_id"`
	Quantity            int          `json:"quantity" db:"quantity"`
	UnitPrice           int64        `json:"unit_price" db:"unit_price"`
	TotalAmount         int64        `json:"total_amount" db:"total_amount"`
	PlatformFee         int64        `json:"platform_fee" db:"platform_fee"`
	DeliveryFee         int64        `json:"delivery_fee" db:"delivery_fee"`
	VendorAmount        int64        `json:"vendor_amount" db:"vendor_amount"`
	DeliveryAmountHeld  int64        `json:"delivery_amount_held" db:"delivery_amount_held"`
	DeliveryType        DeliveryType `json:"delivery_type" db:"delivery_type"`
	Status              OrderStatus  `json:"status" db:"status"`
	DeliveryConfirmed   bool         `json:"delivery_confirmed" db:"delivery_confirmed"`
	DeliveryConfirmedAt *time.Time   `json:"delivery_confirmed_at,omitempty" db:"delivery_confirmed_at"`
	PaidAt              *time.Time   `json:"paid_at,omitempty" db:"paid_at"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CancelledAt         *time.Time   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt           time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at" db:"updated_at"`
}

// DeliveryAmountHeldTarget is the goods principal to park in escrow at
// payment time. Local pickup holds nothing: the vendor is paid in full
// immediately.
func (o *Order) DeliveryAmountHeldTarget() int64 {
	if o.DeliveryType == LocalPickupDeliveryType {
		return 0
	}
	return o.UnitPrice * int64(o.Quantity)
}

type OrderInsert struct {
	OrderNumber  string
	ServiceID    string
	VendorID     string
	BuyerID      string
	Quantity     int
	UnitPrice    int64
	TotalAmount  int64
	PlatformFee  int64
	DeliveryFee  int64
	VendorAmount int64
	DeliveryType DeliveryType
}

type OrderModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *OrderModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert OrderInsert) (*Order, error) {
	var order Order
	query := `
		INSERT INTO service_orders (
			order_number, service_id, vendor_id, buyer_id, quantity,
			unit_price, total_amount, platform_fee, delivery_fee,
			vendor_amount, delivery_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &order, query,
		insert.OrderNumber, insert.ServiceID, insert.VendorID, insert.BuyerID, insert.Quantity,
		insert.UnitPrice, insert.TotalAmount, insert.PlatformFee, insert.DeliveryFee,
		insert.VendorAmount, insert.DeliveryType)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting order: %w", err)
	}
	return &order, nil
}

func (m *OrderModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Order, error) {
	var order Order
	query := `SELECT * FROM service_orders WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying order %s: %w", id, err)
	}
	return &order, nil
}

// GetForUpdate loads an order under a row-level lock, serializing status
// transitions and payout steps on the same order.
func (m *OrderModel) GetForUpdate(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Order, error) {
	var order Order
	query := `SELECT * FROM service_orders WHERE id = $1 FOR UPDATE`
	if err := sqlExec.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking order %s: %w", id, err)
	}
	return &order, nil
}

func (m *OrderModel) GetByOrderNumber(ctx context.Context, sqlExec db.SQLExecuter, orderNumber string) (*Order, error) {
	var order Order
	query := `SELECT * FROM service_orders WHERE order_number = $1`
	if err := sqlExec.GetContext(ctx, &order, query, orderNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying order number %s: %w", orderNumber, err)
	}
	return &order, nil
}

// UpdateStatus writes a validated status transition.
func (m *OrderModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, orderID string, status OrderStatus) error {
	query := `UPDATE service_orders SET status = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, status, orderID)
	if err != nil {
		return fmt.Errorf("updating status for order %s: %w", orderID, err)
	}
	return checkSingleRowAffected(result)
}

// MarkPaid records the payment split on the row together with the status move.
func (m *OrderModel) MarkPaid(ctx context.Context, sqlExec db.SQLExecuter, orderID string, deliveryAmountHeld int64, paidAt time.Time) error {
	query := `
		UPDATE service_orders
		SET status = $1, delivery_amount_held = $2, paid_at = $3
		WHERE id = $4
	`
	result, err := sqlExec.ExecContext(ctx, query, PaidOrderStatus, deliveryAmountHeld, paidAt, orderID)
	if err != nil {
		return fmt.Errorf("marking order %s paid: %w", orderID, err)
	}
	return checkSingleRowAffected(result)
}

// MarkDelivered records the vendor-reported delivery. The buyer (or the
// scheduler) still has to confirm it.
func (m *OrderModel) MarkDelivered(ctx context.Context, sqlExec db.SQLExecuter, orderID string, deliveredAt time.Time) error {
	query := `UPDATE service_orders SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := sqlExec.ExecContext(ctx, query, DeliveredOrderStatus, deliveredAt, orderID)
	if err != nil {
		return fmt.Errorf("marking order %s delivered: %w", orderID, err)
	}
	return checkSingleRowAffected(result)
}

// MarkCompleted stamps the buyer's delivery confirmation and closes the order.
func (m *OrderModel) MarkCompleted(ctx context.Context, sqlExec db.SQLExecuter, orderID string, completedAt time.Time) error {
	query := `
		UPDATE service_orders
		SET status = $1, delivery_confirmed = TRUE, delivery_confirmed_at = $2, completed_at = $2
		WHERE id = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, CompletedOrderStatus, completedAt, orderID)
	if err != nil {
		return fmt.Errorf("marking order %s completed: %w", orderID, err)
	}
	return checkSingleRowAffected(result)
}

func (m *OrderModel) MarkCancelled(ctx context.Context, sqlExec db.SQLExecuter, orderID string, status OrderStatus, cancelledAt time.Time) error {
	query := `UPDATE service_orders SET status = $1, cancelled_at = $2 WHERE id = $3`
	result, err := sqlExec.ExecContext(ctx, query, status, cancelledAt, orderID)
	if err != nil {
		return fmt.Errorf("marking order %s cancelled: %w", orderID, err)
	}
	return checkSingleRowAffected(result)
}

// GetDueForAutoConfirm returns delivered cross-state orders the buyer has not
// confirmed within the grace window after payment.
func (m *OrderModel) GetDueForAutoConfirm(ctx context.Context, sqlExec db.SQLExecuter, deadline time.Time) ([]Order, error) {
	orders := []Order{}
	query := `
		SELECT * FROM service_orders
		WHERE status = $1
			AND delivery_type = $2
			AND delivery_confirmed = FALSE
			AND paid_at IS NOT NULL
			AND paid_at < $3
		ORDER BY paid_at ASC
	`
	if err := sqlExec.SelectContext(ctx, &orders, query, DeliveredOrderStatus, CrossStateDeliveryDeliveryType, deadline); err != nil {
		return nil, fmt.Errorf("querying orders due for auto-confirm: %w", err)
	}
	return orders, nil
}

func (m *OrderModel) ListByBuyer(ctx context.Context, buyerID string, limit, offset int) ([]Order, error) {
	orders := []Order{}
	query := `
		SELECT * FROM service_orders
		WHERE buyer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &orders, query, buyerID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing orders for buyer %s: %w", buyerID, err)
	}
	return orders, nil
}

func (m *OrderModel) ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]Order, error) {
	orders := []Order{}
	query := `
		SELECT * FROM service_orders
		WHERE vendor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &orders, query, vendorID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing orders for vendor %s: %w", vendorID, err)
	}
	return orders, nil
}

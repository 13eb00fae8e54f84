package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type VendorServiceStatus string

const (
	ActiveVendorServiceStatus   VendorServiceStatus = "active"
	InactiveVendorServiceStatus VendorServiceStatus = "inactive"
	ExpiredVendorServiceStatus  VendorServiceStatus = "expired"
)

// VendorService is a purchasable listing. Stock is decremented at payment
// time under the service row lock, never at browse time.
type VendorService struct {
	ID             string              `json:"id" db:"id"`
	VendorID       string              `json:"vendor_id" db:"vendor_id"`
	Title          string              `json:"title" db:"title"`
	Description    string              `json:"description" db:"description"`
	Price          int64               `json:"price" db:"price"`
	StockQuantity  int                 `json:"stock_quantity" db:"stock_quantity"`
	Status         VendorServiceStatus `json:"status" db:"status"`
	ExpiresAt      *time.Time          `json:"expires_at,omitempty" db:"expires_at"`
	ExpiryWarnedAt *time.Time          `json:"expiry_warned_at,omitempty" db:"expiry_warned_at"`
	CreatedAt      time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" db:"updated_at"`
}

type VendorServiceInsert struct {
	VendorID      string
	Title         string
	Description   string
	Price         int64
	StockQuantity int
	ExpiresAt     *time.Time
}

type VendorServiceModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *VendorServiceModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert VendorServiceInsert) (*VendorService, error) {
	var service VendorService
	query := `
		INSERT INTO vendor_services (vendor_id, title, description, price, stock_quantity, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &service, query,
		insert.VendorID, insert.Title, insert.Description, insert.Price, insert.StockQuantity, insert.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("inserting vendor service: %w", err)
	}
	return &service, nil
}

func (m *VendorServiceModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*VendorService, error) {
	var service VendorService
	query := `SELECT * FROM vendor_services WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &service, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying vendor service %s: %w", id, err)
	}
	return &service, nil
}

// GetForUpdate loads a service under a row-level lock for stock mutation.
func (m *VendorServiceModel) GetForUpdate(ctx context.Context, sqlExec db.SQLExecuter, id string) (*VendorService, error) {
	var service VendorService
	query := `SELECT * FROM vendor_services WHERE id = $1 FOR UPDATE`
	if err := sqlExec.GetContext(ctx, &service, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking vendor service %s: %w", id, err)
	}
	return &service, nil
}

// DecrementStock reserves stock at payment time. The guard fails with zero
// rows affected when remaining stock is insufficient.
func (m *VendorServiceModel) DecrementStock(ctx context.Context, sqlExec db.SQLExecuter, serviceID string, quantity int) error {
	query := `
		UPDATE vendor_services
		SET stock_quantity = stock_quantity - $1
		WHERE id = $2 AND stock_quantity >= $1
	`
	result, err := sqlExec.ExecContext(ctx, query, quantity, serviceID)
	if err != nil {
		return fmt.Errorf("decrementing stock for service %s: %w", serviceID, err)
	}
	return checkSingleRowAffected(result)
}

// RestoreStock returns stock after a cancellation or refund.
func (m *VendorServiceModel) RestoreStock(ctx context.Context, sqlExec db.SQLExecuter, serviceID string, quantity int) error {
	query := `UPDATE vendor_services SET stock_quantity = stock_quantity + $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, quantity, serviceID)
	if err != nil {
		return fmt.Errorf("restoring stock for service %s: %w", serviceID, err)
	}
	return checkSingleRowAffected(result)
}

func (m *VendorServiceModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, serviceID string, status VendorServiceStatus) error {
	query := `UPDATE vendor_services SET status = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, status, serviceID)
	if err != nil {
		return fmt.Errorf("updating status for service %s: %w", serviceID, err)
	}
	return checkSingleRowAffected(result)
}

// ExpireDue marks active listings past their expiry as expired and returns
// them so vendors can be notified.
func (m *VendorServiceModel) ExpireDue(ctx context.Context, sqlExec db.SQLExecuter, now time.Time) ([]VendorService, error) {
	services := []VendorService{}
	query := `
		UPDATE vendor_services
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < $3
		RETURNING *
	`
	if err := sqlExec.SelectContext(ctx, &services, query, ExpiredVendorServiceStatus, ActiveVendorServiceStatus, now); err != nil {
		return nil, fmt.Errorf("expiring due vendor services: %w", err)
	}
	return services, nil
}

// GetExpiringSoon returns active listings expiring before the deadline that
// have not been warned yet.
func (m *VendorServiceModel) GetExpiringSoon(ctx context.Context, sqlExec db.SQLExecuter, deadline time.Time) ([]VendorService, error) {
	services := []VendorService{}
	query := `
		SELECT * FROM vendor_services
		WHERE status = $1
			AND expires_at IS NOT NULL
			AND expires_at < $2
			AND expiry_warned_at IS NULL
	`
	if err := sqlExec.SelectContext(ctx, &services, query, ActiveVendorServiceStatus, deadline); err != nil {
		return nil, fmt.Errorf("querying vendor services expiring soon: %w", err)
	}
	return services, nil
}

// MarkExpiryWarned records that the expiry warning went out, so the warning
// is sent at most once per listing.
func (m *VendorServiceModel) MarkExpiryWarned(ctx context.Context, sqlExec db.SQLExecuter, serviceID string) error {
	query := `UPDATE vendor_services SET expiry_warned_at = NOW() WHERE id = $1 AND expiry_warned_at IS NULL`
	result, err := sqlExec.ExecContext(ctx, query, serviceID)
	if err != nil {
		return fmt.Errorf("marking expiry warned for service %s: %w", serviceID, err)
	}
	return checkSingleRowAffected(result)
}

func (m *VendorServiceModel) ListByVendor(ctx context.Context, vendorID string, limit, offset int) ([]VendorService, error) {
	services := []VendorService{}
	query := `
		SELECT * FROM vendor_services
		WHERE vendor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &services, query, vendorID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing services for vendor %s: %w", vendorID, err)
	}
	return services, nil
}

package data

import (
	"context"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type VerificationAction string

const (
	ApproveVerificationAction VerificationAction = "approve"
	RejectVerificationAction  VerificationAction = "reject"
)

// PropertyVerification is the append-only audit trail of pipeline decisions.
type PropertyVerification struct {
	ID           string             `json:"id" db:"id"`
	PropertyID   string             `json:"property_id" db:"property_id"`
	VerifierID   string             `json:"verifier_id" db:"verifier_id"`
	VerifierRole UserRole           `json:"verifier_role" db:"verifier_role"`
	Action       VerificationAction `json:"action" db:"action"`
	Notes        string             `json:"notes" db:"notes"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
}

type PropertyVerificationInsert struct {
	PropertyID   string
	VerifierID   string
	VerifierRole UserRole
	Action       VerificationAction
	Notes        string
}

type PropertyVerificationModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *PropertyVerificationModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert PropertyVerificationInsert) (*PropertyVerification, error) {
	var verification PropertyVerification
	query := `
		INSERT INTO property_verifications (property_id, verifier_id, verifier_role, action, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &verification, query,
		insert.PropertyID, insert.VerifierID, insert.VerifierRole, insert.Action, insert.Notes)
	if err != nil {
		return nil, fmt.Errorf("inserting verification for property %s: %w", insert.PropertyID, err)
	}
	return &verification, nil
}

func (m *PropertyVerificationModel) ListByProperty(ctx context.Context, propertyID string) ([]PropertyVerification, error) {
	verifications := []PropertyVerification{}
	query := `SELECT * FROM property_verifications WHERE property_id = $1 ORDER BY created_at ASC`
	if err := m.dbConnectionPool.SelectContext(ctx, &verifications, query, propertyID); err != nil {
		return nil, fmt.Errorf("listing verifications for property %s: %w", propertyID, err)
	}
	return verifications, nil
}

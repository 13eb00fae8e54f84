package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sabimarket/sabimarket-backend/db"
)

type PropertyType string

const (
	ApartmentPropertyType  PropertyType = "apartment"
	HousePropertyType      PropertyType = "house"
	LandPropertyType       PropertyType = "land"
	CommercialPropertyType PropertyType = "commercial"
)

type ListingType string

const (
	RentListingType ListingType = "rent"
	SaleListingType ListingType = "sale"
)

// NoCoordinatesHash is the sentinel coordinates fingerprint for listings
// without latitude/longitude. The partial unique index skips it, so any
// number of coordinate-less listings can coexist.
const NoCoordinatesHash = "no_coordinates"

// Property is a real-estate listing moving through the two-step verification
// pipeline. property_hash and coordinates_hash are the dedup fingerprints
// computed at submission.
type Property struct {
	ID               string         `json:"id" db:"id"`
	LandlordID       string         `json:"landlord_id" db:"landlord_id"`
	AgentID          *string        `json:"agent_id,omitempty" db:"agent_id"`
	LawyerID         *string        `json:"lawyer_id,omitempty" db:"lawyer_id"`
	Title            string         `json:"title" db:"title"`
	Description      string         `json:"description" db:"description"`
	PropertyType     PropertyType   `json:"property_type" db:"property_type"`
	ListingType      ListingType    `json:"listing_type" db:"listing_type"`
	Address          string         `json:"address" db:"address"`
	City             string         `json:"city" db:"city"`
	State            string         `json:"state" db:"state"`
	Latitude         *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude        *float64       `json:"longitude,omitempty" db:"longitude"`
	Bedrooms         int            `json:"bedrooms" db:"bedrooms"`
	Bathrooms        int            `json:"bathrooms" db:"bathrooms"`
	SizeSqm          int            `json:"size_sqm" db:"size_sqm"`
	Price            int64          `json:"price" db:"price"`
	DocumentURLs     pq.StringArray `json:"document_urls" db:"document_urls"`
	PropertyHash     string         `json:"property_hash" db:"property_hash"`
	CoordinatesHash  string         `json:"coordinates_hash" db:"coordinates_hash"`
	Status           PropertyStatus `json:"status" db:"status"`
	AgentVerifiedAt  *time.Time     `json:"agent_verified_at,omitempty" db:"agent_verified_at"`
	LawyerVerifiedAt *time.Time     `json:"lawyer_verified_at,omitempty" db:"lawyer_verified_at"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

type PropertyInsert struct {
	LandlordID      string
	Title           string
	Description     string
	PropertyType    PropertyType
	ListingType     ListingType
	Address         string
	City            string
	State           string
	Latitude        *float64
	Longitude       *float64
	Bedrooms        int
	Bathrooms       int
	SizeSqm         int
	Price           int64
	DocumentURLs    []string
	PropertyHash    string
	CoordinatesHash string
}

type PropertyModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Insert creates a draft listing. A fingerprint collision with a non-rejected
// listing surfaces as ErrRecordAlreadyExists.
func (m *PropertyModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert PropertyInsert) (*Property, error) {
	if insert.PropertyHash == "" || insert.CoordinatesHash == "" {
		return nil, fmt.Errorf("validating property insert: %w", ErrMissingInput)
	}

	var property Property
	query := `
		INSERT INTO properties (
			landlord_id, title, description, property_type, listing_type,
			address, city, state, latitude, longitude,
			bedrooms, bathrooms, size_sqm, price, document_urls,
			property_hash, coordinates_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &property, query,
		insert.LandlordID, insert.Title, insert.Description, insert.PropertyType, insert.ListingType,
		insert.Address, insert.City, insert.State, insert.Latitude, insert.Longitude,
		insert.Bedrooms, insert.Bathrooms, insert.SizeSqm, insert.Price, pq.StringArray(insert.DocumentURLs),
		insert.PropertyHash, insert.CoordinatesHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting property: %w", err)
	}
	return &property, nil
}

func (m *PropertyModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Property, error) {
	var property Property
	query := `SELECT * FROM properties WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &property, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying property %s: %w", id, err)
	}
	return &property, nil
}

// GetForUpdate loads a property under a row-level lock, serializing pipeline
// transitions against the same listing.
func (m *PropertyModel) GetForUpdate(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Property, error) {
	var property Property
	query := `SELECT * FROM properties WHERE id = $1 FOR UPDATE`
	if err := sqlExec.GetContext(ctx, &property, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("locking property %s: %w", id, err)
	}
	return &property, nil
}

func (m *PropertyModel) UpdateStatus(ctx context.Context, sqlExec db.SQLExecuter, propertyID string, status PropertyStatus) error {
	query := `UPDATE properties SET status = $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, status, propertyID)
	if err != nil {
		return fmt.Errorf("updating status for property %s: %w", propertyID, err)
	}
	return checkSingleRowAffected(result)
}

// RecordAgentVerification stamps the agent's sign-off together with the
// status move.
func (m *PropertyModel) RecordAgentVerification(ctx context.Context, sqlExec db.SQLExecuter, propertyID, agentID string, status PropertyStatus) error {
	query := `
		UPDATE properties
		SET status = $1, agent_id = $2, agent_verified_at = NOW()
		WHERE id = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, status, agentID, propertyID)
	if err != nil {
		return fmt.Errorf("recording agent verification for property %s: %w", propertyID, err)
	}
	return checkSingleRowAffected(result)
}

// RecordLawyerVerification stamps the lawyer's sign-off together with the
// status move.
func (m *PropertyModel) RecordLawyerVerification(ctx context.Context, sqlExec db.SQLExecuter, propertyID, lawyerID string, status PropertyStatus) error {
	query := `
		UPDATE properties
		SET status = $1, lawyer_id = $2, lawyer_verified_at = NOW()
		WHERE id = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, status, lawyerID, propertyID)
	if err != nil {
		return fmt.Errorf("recording lawyer verification for property %s: %w", propertyID, err)
	}
	return checkSingleRowAffected(result)
}

// AssignVerifiers pins an agent and/or lawyer to a listing. Nil arguments
// leave the existing assignment untouched.
func (m *PropertyModel) AssignVerifiers(ctx context.Context, sqlExec db.SQLExecuter, propertyID string, agentID, lawyerID *string) error {
	query := `
		UPDATE properties
		SET agent_id = COALESCE($1, agent_id), lawyer_id = COALESCE($2, lawyer_id)
		WHERE id = $3
	`
	result, err := sqlExec.ExecContext(ctx, query, agentID, lawyerID, propertyID)
	if err != nil {
		return fmt.Errorf("assigning verifiers for property %s: %w", propertyID, err)
	}
	return checkSingleRowAffected(result)
}

// ListAwaitingLawyer is the lawyer's work queue: listings in legal review that
// are unassigned or assigned to this lawyer.
func (m *PropertyModel) ListAwaitingLawyer(ctx context.Context, lawyerID string, limit, offset int) ([]Property, error) {
	properties := []Property{}
	query := `
		SELECT * FROM properties
		WHERE status = $1 AND (lawyer_id IS NULL OR lawyer_id = $2)
		ORDER BY created_at ASC
		LIMIT $3 OFFSET $4
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &properties, query, AwaitingLawyerPropertyStatus, lawyerID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing properties awaiting lawyer review: %w", err)
	}
	return properties, nil
}

// GetByPropertyHash returns the non-rejected listing holding a fingerprint.
func (m *PropertyModel) GetByPropertyHash(ctx context.Context, sqlExec db.SQLExecuter, propertyHash string) (*Property, error) {
	var property Property
	query := `SELECT * FROM properties WHERE property_hash = $1 AND status != $2`
	if err := sqlExec.GetContext(ctx, &property, query, propertyHash, RejectedPropertyStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying property by hash: %w", err)
	}
	return &property, nil
}

func (m *PropertyModel) ListByLandlord(ctx context.Context, landlordID string, limit, offset int) ([]Property, error) {
	properties := []Property{}
	query := `
		SELECT * FROM properties
		WHERE landlord_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &properties, query, landlordID, limit, offset); err != nil {
		return nil, fmt.Errorf("listing properties for landlord %s: %w", landlordID, err)
	}
	return properties, nil
}

// ListByStatus pages listings in a pipeline stage, oldest first so verifiers
// work the queue in submission order.
func (m *PropertyModel) ListByStatus(ctx context.Context, status PropertyStatus, limit, offset int) ([]Property, error) {
	properties := []Property{}
	query := `
		SELECT * FROM properties
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &properties, query, status, limit, offset); err != nil {
		return nil, fmt.Errorf("listing properties with status %s: %w", status, err)
	}
	return properties, nil
}

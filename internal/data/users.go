package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sabimarket/sabimarket-backend/db"
)

type UserRole string

const (
	BuyerUserRole     UserRole = "buyer"
	VendorUserRole    UserRole = "vendor"
	WorkerUserRole    UserRole = "worker"
	EmployerUserRole  UserRole = "employer"
	LandlordUserRole  UserRole = "landlord"
	AgentUserRole     UserRole = "agent"
	LawyerUserRole    UserRole = "lawyer"
	ModeratorUserRole UserRole = "moderator"
	AdminUserRole     UserRole = "admin"
)

// IsPlatformAuthority reports whether the role can resolve disputes and
// assign property verifiers.
func (r UserRole) IsPlatformAuthority() bool {
	return r == AdminUserRole || r == ModeratorUserRole
}

type IdentityVerificationStatus string

const (
	UnverifiedIdentityStatus IdentityVerificationStatus = "unverified"
	PendingIdentityStatus    IdentityVerificationStatus = "pending"
	ApprovedIdentityStatus   IdentityVerificationStatus = "approved"
	RejectedIdentityStatus   IdentityVerificationStatus = "rejected"
)

type User struct {
	ID                         string                     `json:"id" db:"id"`
	Email                      string                     `json:"email" db:"email"`
	FullName                   string                     `json:"full_name" db:"full_name"`
	Role                       UserRole                   `json:"role" db:"role"`
	TrustScore                 int                        `json:"trust_score" db:"trust_score"`
	IdentityVerificationStatus IdentityVerificationStatus `json:"identity_verification_status" db:"identity_verification_status"`
	IsAvailable                bool                       `json:"is_available" db:"is_available"`
	RoleChangeCount            int                        `json:"-" db:"role_change_count"`
	RoleChangeResetAt          *time.Time                 `json:"-" db:"role_change_reset_at"`
	SubscriptionTier           string                     `json:"subscription_tier" db:"subscription_tier"`
	SubscriptionExpiresAt      *time.Time                 `json:"subscription_expires_at,omitempty" db:"subscription_expires_at"`
	SubscriptionExpiryWarnedAt *time.Time                 `json:"-" db:"subscription_expiry_warned_at"`
	CreatedAt                  time.Time                  `json:"created_at" db:"created_at"`
	UpdatedAt                  time.Time                  `json:"updated_at" db:"updated_at"`
}

type UserModel struct {
	dbConnectionPool db.DBConnectionPool
}

func (m *UserModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*User, error) {
	var user User
	query := `SELECT * FROM users WHERE id = $1`
	if err := sqlExec.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying user ID %s: %w", id, err)
	}
	return &user, nil
}

func (m *UserModel) GetByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	query := `SELECT * FROM users WHERE email = $1`
	if err := m.dbConnectionPool.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying user with email %s: %w", email, err)
	}
	return &user, nil
}

type UserInsert struct {
	Email    string   `db:"email"`
	FullName string   `db:"full_name"`
	Role     UserRole `db:"role"`
}

func (m *UserModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, insert UserInsert) (*User, error) {
	var user User
	query := `
		INSERT INTO users (email, full_name, role)
		VALUES ($1, $2, $3)
		RETURNING *
	`
	err := sqlExec.GetContext(ctx, &user, query, insert.Email, insert.FullName, insert.Role)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrRecordAlreadyExists
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return &user, nil
}

// AddTrustPoints increments a user's trust score.
func (m *UserModel) AddTrustPoints(ctx context.Context, sqlExec db.SQLExecuter, userID string, points int) error {
	query := `UPDATE users SET trust_score = trust_score + $1 WHERE id = $2`
	result, err := sqlExec.ExecContext(ctx, query, points, userID)
	if err != nil {
		return fmt.Errorf("adding trust points to user %s: %w", userID, err)
	}
	return checkSingleRowAffected(result)
}

// ResetExpiredRoleChangeCounters zeroes role_change_count for users whose
// reset window has passed and schedules the next window 30 days out. Returns
// the number of users reset.
func (m *UserModel) ResetExpiredRoleChangeCounters(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET role_change_count = 0, role_change_reset_at = $1
		WHERE role_change_reset_at IS NOT NULL AND role_change_reset_at < $2
	`
	result, err := m.dbConnectionPool.ExecContext(ctx, query, now.AddDate(0, 0, 30), now)
	if err != nil {
		return 0, fmt.Errorf("resetting role change counters: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}

// DowngradeExpiredSubscriptions moves users with a lapsed subscription back to
// the free tier. Returns the number of users downgraded.
func (m *UserModel) DowngradeExpiredSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE users
		SET subscription_tier = 'free', subscription_expires_at = NULL, subscription_expiry_warned_at = NULL
		WHERE subscription_tier != 'free' AND subscription_expires_at IS NOT NULL AND subscription_expires_at < $1
	`
	result, err := m.dbConnectionPool.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("downgrading expired subscriptions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}

// GetSubscriptionsExpiringSoon lists users whose paid subscription lapses
// within the window and who have not been warned yet.
func (m *UserModel) GetSubscriptionsExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]User, error) {
	users := []User{}
	query := `
		SELECT * FROM users
		WHERE subscription_tier != 'free'
			AND subscription_expires_at IS NOT NULL
			AND subscription_expires_at BETWEEN $1 AND $2
			AND subscription_expiry_warned_at IS NULL
	`
	if err := m.dbConnectionPool.SelectContext(ctx, &users, query, now, now.Add(window)); err != nil {
		return nil, fmt.Errorf("querying expiring subscriptions: %w", err)
	}
	return users, nil
}

// MarkSubscriptionExpiryWarned records that the advance warning was sent, so
// it is emitted at most once per expiring subscription.
func (m *UserModel) MarkSubscriptionExpiryWarned(ctx context.Context, userID string, warnedAt time.Time) error {
	query := `UPDATE users SET subscription_expiry_warned_at = $1 WHERE id = $2`
	result, err := m.dbConnectionPool.ExecContext(ctx, query, warnedAt, userID)
	if err != nil {
		return fmt.Errorf("marking subscription expiry warned for user %s: %w", userID, err)
	}
	return checkSingleRowAffected(result)
}

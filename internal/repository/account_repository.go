package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-request-api/internal/models"
)

const accountColumns = `id, identity, email, password_hash, role, active, activation_code, courses, created_at, updated_at`

// AccountRepository provides database access for portal accounts.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts a new account. A unique clash yields ErrDuplicate.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if account.Courses == nil {
		account.Courses = models.Courses{}
	}

	const query = `INSERT INTO accounts (id, identity, email, password_hash, role, active, activation_code, courses, created_at, updated_at)
	VALUES (:id, :identity, :email, :password_hash, :role, :active, :activation_code, :courses, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, account); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// FindByIdentity returns an account by login name.
func (r *AccountRepository) FindByIdentity(ctx context.Context, identity string) (*models.Account, error) {
	return r.findOne(ctx, "find account by identity", `WHERE identity = ?`, identity)
}

// FindByIdentityOrEmail matches either field, used to reject duplicate registrations.
func (r *AccountRepository) FindByIdentityOrEmail(ctx context.Context, identity, email string) (*models.Account, error) {
	return r.findOne(ctx, "find account by identity or email", `WHERE identity = ? OR email = ?`, identity, email)
}

// List returns accounts ordered by creation time.
func (r *AccountRepository) List(ctx context.Context) ([]models.Account, error) {
	accounts := make([]models.Account, 0)
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// Activate flips an inactive account to active when the code matches.
func (r *AccountRepository) Activate(ctx context.Context, email, code string) (bool, error) {
	query := r.db.Rebind(`UPDATE accounts SET active = ?, activation_code = NULL, updated_at = ?
	WHERE email = ? AND activation_code = ? AND active = ?`)
	result, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), email, code, false)
	if err != nil {
		return false, fmt.Errorf("activate account: %w", err)
	}
	return affected(result, "activate account")
}

// ActivateByEmail activates an account without a code.
func (r *AccountRepository) ActivateByEmail(ctx context.Context, email string) (bool, error) {
	query := r.db.Rebind(`UPDATE accounts SET active = ?, activation_code = NULL, updated_at = ? WHERE email = ?`)
	result, err := r.db.ExecContext(ctx, query, true, time.Now().UTC(), email)
	if err != nil {
		return false, fmt.Errorf("activate account by email: %w", err)
	}
	return affected(result, "activate account by email")
}

// UpdateCourses replaces the course list of identity.
func (r *AccountRepository) UpdateCourses(ctx context.Context, identity string, courses models.Courses) (bool, error) {
	query := r.db.Rebind(`UPDATE accounts SET courses = ?, updated_at = ? WHERE identity = ?`)
	result, err := r.db.ExecContext(ctx, query, courses, time.Now().UTC(), identity)
	if err != nil {
		return false, fmt.Errorf("update account courses: %w", err)
	}
	return affected(result, "update account courses")
}

func (r *AccountRepository) findOne(ctx context.Context, op, where string, args ...interface{}) (*models.Account, error) {
	query := r.db.Rebind(`SELECT ` + accountColumns + ` FROM accounts ` + where + ` LIMIT 1`)
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &account, nil
}

package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/campus-request-api/internal/models"
)

// MemoryAccountRepository is the in-process account store used with the memory driver.
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
}

func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]models.Account)}
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Identity == account.Identity || existing.Email == account.Email {
			return ErrDuplicate
		}
	}
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
	stored := *account
	stored.Courses = account.Courses.Clone()
	r.accounts[account.ID] = stored
	return nil
}

func (r *MemoryAccountRepository) FindByIdentity(_ context.Context, identity string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Identity == identity })
}

func (r *MemoryAccountRepository) FindByIdentityOrEmail(_ context.Context, identity, email string) (*models.Account, error) {
	return r.find(func(a models.Account) bool { return a.Identity == identity || a.Email == email })
}

func (r *MemoryAccountRepository) List(_ context.Context) ([]models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]models.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		account.Courses = account.Courses.Clone()
		list = append(list, account)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list, nil
}

func (r *MemoryAccountRepository) Activate(_ context.Context, email, code string) (bool, error) {
	return r.activate(func(a models.Account) bool {
		return a.Email == email && !a.Active && a.ActivationCode != nil && *a.ActivationCode == code
	}), nil
}

func (r *MemoryAccountRepository) ActivateByEmail(_ context.Context, email string) (bool, error) {
	return r.activate(func(a models.Account) bool { return a.Email == email }), nil
}

func (r *MemoryAccountRepository) UpdateCourses(_ context.Context, identity string, courses models.Courses) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, account := range r.accounts {
		if account.Identity == identity {
			account.Courses = courses.Clone()
			account.UpdatedAt = time.Now().UTC()
			r.accounts[id] = account
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAccountRepository) find(match func(models.Account) bool) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, account := range r.accounts {
		if match(account) {
			found := account
			found.Courses = account.Courses.Clone()
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *MemoryAccountRepository) activate(match func(models.Account) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, account := range r.accounts {
		if match(account) {
			account.Active = true
			account.ActivationCode = nil
			account.UpdatedAt = time.Now().UTC()
			r.accounts[id] = account
			return true
		}
	}
	return false
}

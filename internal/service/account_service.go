package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-request-api/internal/dto"
	"github.com/noah-isme/campus-request-api/internal/models"
	"github.com/noah-isme/campus-request-api/internal/repository"
	appErrors "github.com/noah-isme/campus-request-api/pkg/errors"
)

type accountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByIdentity(ctx context.Context, identity string) (*models.Account, error)
	FindByIdentityOrEmail(ctx context.Context, identity, email string) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	Activate(ctx context.Context, email, code string) (bool, error)
	ActivateByEmail(ctx context.Context, email string) (bool, error)
	UpdateCourses(ctx context.Context, identity string, courses models.Courses) (bool, error)
}

// ResetNotifier receives accounts whose holder asked for a password reset.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, account models.Account)
}

// AccountService manages portal logins. Roles come from the account record.
type AccountService struct {
	repo      accountStore
	validator *validator.Validate
	logger    *zap.Logger
	notifier  ResetNotifier
	cost      int
}

// AccountServiceOption configures the service.
type AccountServiceOption func(*AccountService)

// WithResetNotifier delivers password reset notices.
func WithResetNotifier(n ResetNotifier) AccountServiceOption {
	return func(s *AccountService) { s.notifier = n }
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(repo accountStore, validate *validator.Validate, logger *zap.Logger, opts ...AccountServiceOption) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &AccountService{repo: repo, validator: validate, logger: logger, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Register creates an inactive STUDENT account and returns its activation code.
func (s *AccountService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	code := uuid.NewString()
	account, err := s.create(ctx, req.Identity, req.Email, req.Password, models.RoleStudent, false, &code, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("identity", account.Identity), zap.String("email", account.Email))
	return &dto.RegisterResponse{Account: *account, ActivationCode: code}, nil
}

// Activate confirms the email with the code issued at registration.
func (s *AccountService) Activate(ctx context.Context, req dto.ActivateRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activation payload")
	}

	email := normalizeEmail(req.Email)
	ok, err := s.repo.Activate(ctx, email, strings.TrimSpace(req.Code))
	if err != nil {
		return appErrors.Unavailable(err, "failed to activate account")
	}
	if ok {
		return nil
	}

	if _, err := s.repo.FindByIdentityOrEmail(ctx, "", email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Unavailable(err, "failed to load account")
	}
	return appErrors.Clone(appErrors.ErrValidation, "invalid or already used activation code")
}

// Login checks credentials and returns the account's principal.
func (s *AccountService) Login(ctx context.Context, req dto.LoginRequest) (*models.Principal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	account, err := s.repo.FindByIdentity(ctx, strings.TrimSpace(req.Identity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Unavailable(err, "failed to fetch account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !account.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account has not been activated")
	}

	principal := account.Principal()
	return &principal, nil
}

// Create provisions an active account with an explicit role.
func (s *AccountService) Create(ctx context.Context, req dto.CreateAccountRequest) (*models.Account, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid account payload")
	}
	account, err := s.create(ctx, req.Identity, req.Email, req.Password, req.Role, true, nil, req.Courses)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account created", zap.String("identity", account.Identity), zap.String("role", string(account.Role)))
	return account, nil
}

// List returns every account.
func (s *AccountService) List(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list accounts")
	}
	return accounts, nil
}

// ActivateByEmail activates an account without its code.
func (s *AccountService) ActivateByEmail(ctx context.Context, email string) error {
	ok, err := s.repo.ActivateByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return appErrors.Unavailable(err, "failed to activate account")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	return nil
}

// RequestPasswordReset records a reset request for the account registered
// under email and hands a notice to the notifier.
func (s *AccountService) RequestPasswordReset(ctx context.Context, req dto.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please enter a valid email")
	}

	email := normalizeEmail(req.Email)
	account, err := s.repo.FindByIdentityOrEmail(ctx, "", email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "this email is not registered")
		}
		return appErrors.Unavailable(err, "failed to load account")
	}

	if s.notifier != nil {
		s.notifier.NotifyPasswordReset(ctx, *account)
	}
	s.logger.Info("password reset requested", zap.String("identity", account.Identity), zap.String("email", email))
	return nil
}

// Courses returns the courses stored on the identity's account.
func (s *AccountService) Courses(ctx context.Context, identity string) ([]string, error) {
	account, err := s.repo.FindByIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return nil, appErrors.Unavailable(err, "failed to load account")
	}
	return normalizeCourses(account.Courses), nil
}

// SetCourses replaces the identity's course list.
func (s *AccountService) SetCourses(ctx context.Context, identity string, req dto.SetCoursesRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course list")
	}
	courses := normalizeCourses(req.Courses)
	ok, err := s.repo.UpdateCourses(ctx, identity, courses)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to update courses")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "account not found")
	}
	s.logger.Info("account courses updated", zap.String("identity", identity), zap.Int("courses", len(courses)))
	return courses, nil
}

func (s *AccountService) create(ctx context.Context, identity, email, password string, role models.Role, active bool, code *string, courses []string) (*models.Account, error) {
	identity = strings.TrimSpace(identity)
	email = normalizeEmail(email)

	if _, err := s.repo.FindByIdentityOrEmail(ctx, identity, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username or email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Unavailable(err, "failed to check existing accounts")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	account := &models.Account{
		Identity:       identity,
		Email:          email,
		PasswordHash:   string(hash),
		Role:           role,
		Active:         active,
		ActivationCode: code,
		Courses:        normalizeCourses(courses),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "username or email already registered")
		}
		return nil, appErrors.Unavailable(err, "failed to create account")
	}
	return account, nil
}

// normalizeCourses trims entries and drops blanks and repeats, keeping order.
func normalizeCourses(courses []string) models.Courses {
	out := make(models.Courses, 0, len(courses))
	seen := make(map[string]struct{}, len(courses))
	for _, course := range courses {
		course = strings.TrimSpace(course)
		if course == "" {
			continue
		}
		if _, dup := seen[course]; dup {
			continue
		}
		seen[course] = struct{}{}
		out = append(out, course)
	}
	return out
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

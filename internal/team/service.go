package team

import (
	"context"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukahub/dukahub/internal/shared"
)

const minPasswordLength = 8

// RepositoryPort is the persistence surface for user accounts.
type RepositoryPort interface {
	CreateUser(ctx context.Context, u User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, u User) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	GetUser(ctx context.Context, id int64) (User, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]User, error)
	SetUserActive(ctx context.Context, id int64, active bool) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages operator accounts.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Create opens a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (User, error) {
	if input.Name == "" || input.Email == "" {
		return User{}, shared.NewValidation("name and email required")
	}
	if !ValidRole(input.Role) {
		return User{}, shared.NewValidation("unknown role %q", input.Role)
	}
	if len(input.Password) < minPasswordLength {
		return User{}, shared.NewValidation("password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.CreateUser(ctx, User{
		Name:   input.Name,
		Email:  input.Email,
		Role:   input.Role,
		Active: true,
	}, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "team:user_create", user.ID)
	return user, nil
}

// Update changes profile fields.
func (s *Service) Update(ctx context.Context, input UpdateUserInput) (User, error) {
	if input.Name == "" || input.Email == "" {
		return User{}, shared.NewValidation("name and email required")
	}
	if !ValidRole(input.Role) {
		return User{}, shared.NewValidation("unknown role %q", input.Role)
	}
	user, err := s.repo.GetUser(ctx, input.ID)
	if err != nil {
		return User{}, err
	}
	user.Name = input.Name
	user.Email = input.Email
	user.Role = input.Role
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return User{}, err
	}
	s.record(ctx, "team:user_update", user.ID)
	return user, nil
}

// ChangePassword replaces the stored hash.
func (s *Service) ChangePassword(ctx context.Context, id int64, password string) error {
	if len(password) < minPasswordLength {
		return shared.NewValidation("password must be at least %d characters", minPasswordLength)
	}
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, id, string(hash)); err != nil {
		return err
	}
	s.record(ctx, "team:user_password_change", id)
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]User, error) {
	return s.repo.ListUsers(ctx, activeOnly)
}

// Deactivate blocks future logins. Existing tokens expire on their own TTL.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetUserActive(ctx, id, false); err != nil {
		return err
	}
	s.record(ctx, "team:user_deactivate", id)
	return nil
}

func (s *Service) Activate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetUserActive(ctx, id, true); err != nil {
		return err
	}
	s.record(ctx, "team:user_activate", id)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
	})
}

package user

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/MikeMC777/storefront-ecom/internal/access"
	"github.com/MikeMC777/storefront-ecom/internal/apperr"
)

var ErrInvalidCredentials = apperr.New(apperr.Unauthenticated, "invalid credentials")

const minPasswordLen = 6

type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	return s.create(ctx, in.Email, in.Password, in.Name, access.Customer)
}

// Authenticate verifies credentials. Unknown email, wrong password and
// inactive accounts are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.New(apperr.ValidationFailed, "email and password are required")
	}
	u, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if apperr.Is(err, apperr.NotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// Create provisions an account with an explicit role. Admin only; the role
// defaults to employee.
func (s *Service) Create(ctx context.Context, caller access.Principal, in CreateUserRequest) (*User, error) {
	role := access.Employee
	if strings.TrimSpace(in.Role) != "" {
		r, err := access.ParseRole(in.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}
	if err := access.AuthorizeCreateUser(caller, role); err != nil {
		return nil, err
	}
	u, err := s.create(ctx, in.Email, in.Password, in.Name, role)
	if err != nil {
		return nil, err
	}
	s.log.Info("user provisioned",
		zap.Int64("user_id", u.ID), zap.String("role", string(u.Role)), zap.Int64("by", caller.UserID))
	return u, nil
}

func (s *Service) List(ctx context.Context, caller access.Principal) ([]User, error) {
	if err := access.RequireAdmin(caller); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, caller access.Principal, id int64) error {
	if err := access.RequireAdmin(caller); err != nil {
		return err
	}
	if caller.UserID == id {
		return access.ErrDeleteSelf
	}
	target, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := access.CheckDeleteUser(caller, target.ID, target.Role); err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	s.log.Info("user deleted", zap.Int64("user_id", id), zap.Int64("by", caller.UserID))
	return nil
}

// EnsureAdmin makes sure an admin account exists for email, promoting an
// existing account when needed.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, name string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role != access.Admin {
			if err := s.repo.SetRole(ctx, u.ID, access.Admin); err != nil {
				return nil, err
			}
			u.Role = access.Admin
		}
		return u, nil
	case apperr.Is(err, apperr.NotFound):
		return s.create(ctx, email, password, name, access.Admin)
	default:
		return nil, err
	}
}

func (s *Service) create(ctx context.Context, email, password, name string, role access.Role) (*User, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, apperr.New(apperr.ValidationFailed, "email, password and name are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.New(apperr.ValidationFailed, "invalid email")
	}
	if len(password) < minPasswordLen {
		return nil, apperr.Newf(apperr.ValidationFailed, "password must have at least %d characters", minPasswordLen)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "hash password", err)
	}
	u := &User{
		Email:        strings.ToLower(email),
		Name:         name,
		Role:         role,
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func roleOrCustomer(s string) access.Role {
	r, err := access.ParseRole(s)
	if err != nil {
		return access.Customer
	}
	return r
}

package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront-be/internal/apperror"
	"storefront-be/internal/logger"
	"storefront-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minPasswordLen = 6
	guestDomain    = "@guest.local"
)

// TokenGenerator issues access tokens for a signed-in user.
type TokenGenerator interface {
	Generate(userID uuid.UUID, role string, ttl time.Duration) (string, error)
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, in LoginInput) (*Session, error)
	AnonymousLogin(ctx context.Context) (*Session, error)
	AdminLogin(ctx context.Context, in LoginInput) (*Session, error)
	Me(ctx context.Context, id uuid.UUID) (*User, error)
	IsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	repo    Repository
	tokens  TokenGenerator
	ttl     time.Duration
	anonTTL time.Duration
}

func NewService(repo Repository, tokens TokenGenerator, ttl, anonTTL time.Duration) Service {
	return &service{repo: repo, tokens: tokens, ttl: ttl, anonTTL: anonTTL}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "Register"))

	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, apperror.Validation("Name, email and password are required")
	}
	if len(in.Password) < minPasswordLen {
		return nil, apperror.Validation("Password must be at least 6 characters")
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return nil, apperror.Internal(err)
	}

	u := &User{
		ID:           uuid.New(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hashed,
		Role:         utils.RoleUser,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, apperror.Conflict("Email already registered", err)
		}
		return nil, apperror.Internal(err)
	}

	log.Info("user registered", zap.String("user_id", u.ID.String()))
	return s.session(u, s.ttl)
}

func (s *service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	u, err := s.authenticate(ctx, in, "Invalid email or password")
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, apperror.Wrap(apperror.KindForbidden, "Account has been deactivated", ErrUserInactive)
	}
	return s.session(u, s.ttl)
}

// AdminLogin only accepts accounts with the admin role; anything else is
// reported as bad credentials.
func (s *service) AdminLogin(ctx context.Context, in LoginInput) (*Session, error) {
	const msg = "Invalid admin credentials"

	u, err := s.authenticate(ctx, in, msg)
	if err != nil {
		return nil, err
	}
	if u.Role != utils.RoleAdmin || !u.IsActive {
		logger.FromCtx(ctx).Warn("admin login refused", zap.String("user_id", u.ID.String()))
		return nil, apperror.Wrap(apperror.KindUnauthorized, msg, ErrInvalidCredentials)
	}
	return s.session(u, s.ttl)
}

func (s *service) authenticate(ctx context.Context, in LoginInput, failMsg string) (*User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperror.Validation("Email and password are required")
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to look up user", zap.String("layer", "service"), zap.Error(err))
		return nil, apperror.Internal(err)
	}
	if u == nil || !CheckPasswordHash(in.Password, u.PasswordHash) {
		return nil, apperror.Wrap(apperror.KindUnauthorized, failMsg, ErrInvalidCredentials)
	}
	return u, nil
}

// AnonymousLogin creates a throwaway guest account so the cart can be
// persisted before the shopper signs up.
func (s *service) AnonymousLogin(ctx context.Context) (*Session, error) {
	name := "Guest_" + uuid.NewString()[:8]
	u := &User{
		ID:          uuid.New(),
		Name:        name,
		Email:       strings.ToLower(name) + guestDomain,
		Role:        utils.RoleAnonymous,
		IsAnonymous: true,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperror.Internal(err)
	}

	logger.FromCtx(ctx).Info("anonymous session created", zap.String("user_id", u.ID.String()))
	return s.session(u, s.anonTTL)
}

func (s *service) Me(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if u == nil {
		return nil, apperror.Wrap(apperror.KindNotFound, "User not found", ErrUserNotFound)
	}
	return u, nil
}

func (s *service) IsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	return u != nil && u.IsActive, nil
}

func (s *service) session(u *User, ttl time.Duration) (*Session, error) {
	token, err := s.tokens.Generate(u.ID, u.Role, ttl)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return &Session{Token: token, User: u}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

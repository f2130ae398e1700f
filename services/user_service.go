package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/Vaibhavdev309/tapestry/common/errors"
	"github.com/Vaibhavdev309/tapestry/models"
	"github.com/Vaibhavdev309/tapestry/repository"
)

type ITokenService interface {
	GenerateToken(userID, email, role string) (string, error)
	ValidateToken(tokenStr string) (models.Principal, error)
}

type AdminCredentials struct {
	Email    string
	Password string
}

// adminSubject is the token subject of the configured administrator, which
// has no user document.
const adminSubject = "admin"

type UserService struct {
	users    repository.UserRepository
	tokens   ITokenService
	admin    AdminCredentials
	notifier Notifier
	logger   *zap.Logger
}

func NewUserService(users repository.UserRepository, tokens ITokenService, admin AdminCredentials, notifier Notifier, logger *zap.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, admin: admin, notifier: notifier, logger: logger}
}

var errInvalidCredentials = apperrors.Unauthorized("Invalid email or password")

func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(req.Password) < 8 {
		return "", apperrors.Validation("password must be at least 8 characters long")
	}

	_, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		return "", apperrors.Validation("User already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.Internal("failed to look up user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Internal("failed to hash password", err)
	}

	u := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  string(hashed),
		Role:      models.RoleUser,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return "", apperrors.Validation("User already exists")
		}
		return "", apperrors.Internal("failed to create user", err)
	}

	s.logger.Info("user registered", zap.String("user_id", u.ID.Hex()))
	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:      models.TypeUserRegistered,
		Recipient: u.Email,
		Subject:   "Welcome!",
		Data:      map[string]interface{}{"name": u.Name, "email": u.Email},
	})

	return s.issue(u.ID.Hex(), u.Email, u.Role)
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (string, error) {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, repository.ErrNotFound) {
		return "", errInvalidCredentials
	}
	if err != nil {
		return "", apperrors.Internal("failed to look up user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return "", errInvalidCredentials
	}
	return s.issue(u.ID.Hex(), u.Email, u.Role)
}

func (s *UserService) AdminLogin(_ context.Context, req models.LoginRequest) (string, error) {
	emailOK := strings.EqualFold(strings.TrimSpace(req.Email), s.admin.Email)
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.admin.Password)) == 1
	if s.admin.Email == "" || !emailOK || !passOK {
		s.logger.Warn("admin login rejected")
		return "", errInvalidCredentials
	}
	return s.issue(adminSubject, s.admin.Email, models.RoleAdmin)
}

func (s *UserService) issue(userID, email, role string) (string, error) {
	token, err := s.tokens.GenerateToken(userID, email, role)
	if err != nil {
		return "", apperrors.Internal("failed to generate token", err)
	}
	return token, nil
}

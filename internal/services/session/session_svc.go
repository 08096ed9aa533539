// Package session signs users in and turns bearer tokens back into
// sessions.
package session

import (
	"context"
	"errors"

	"lotmarket/internal/apperr"
	"lotmarket/internal/auth"
	"lotmarket/internal/domain"
	"lotmarket/internal/services/crud"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ISessionService interface {
	Login(ctx context.Context, in LoginInput) (token string, err error)
	// Authenticate verifies a token and loads the user's current roles,
	// so role changes apply without waiting for the token to expire.
	Authenticate(ctx context.Context, token string) (domain.Session, error)
}

type userReader interface {
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

type sessionService struct {
	users    userReader
	tokens   *auth.TokenManager
	validate *validator.Validate
}

func NewSessionService(users userReader, tokens *auth.TokenManager) ISessionService {
	return &sessionService{users: users, tokens: tokens, validate: apperr.NewValidator()}
}

var errBadCredentials = apperr.Unauthorized("invalid email or password")

func (svc *sessionService) Login(ctx context.Context, in LoginInput) (string, error) {
	if err := crud.Validate(svc.validate, in); err != nil {
		return "", err
	}
	u, err := svc.users.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return "", errBadCredentials
	}
	if err != nil {
		return "", err
	}
	if err := auth.VerifyPassword(u.PasswordHash, in.Password); err != nil {
		if !errors.Is(err, auth.ErrMismatchedPassword) {
			zap.L().Warn("session.bad_password_hash", zap.Int64("user_id", u.UserID), zap.Error(err))
		}
		return "", errBadCredentials
	}
	token, err := svc.tokens.GenerateToken(u)
	if err != nil {
		return "", apperr.Internal("sign token", err)
	}
	return token, nil
}

func (svc *sessionService) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	claims, err := svc.tokens.ValidateToken(token)
	if err != nil {
		return domain.Session{}, apperr.Unauthorized("invalid token")
	}
	id, err := claims.UserID()
	if err != nil {
		return domain.Session{}, apperr.Unauthorized("invalid token")
	}
	u, err := svc.users.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Session{}, apperr.Unauthorized("user no longer exists")
	}
	if err != nil {
		return domain.Session{}, err
	}
	return u.Session(), nil
}

package session

import (
	"context"
	"testing"
	"time"

	"lotmarket/internal/apperr"
	"lotmarket/internal/auth"
	"lotmarket/internal/domain"
	"lotmarket/internal/store/memory"

	"github.com/stretchr/testify/require"
)

func TestLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	st := memory.New(memory.Options{})
	hash, err := auth.HashPassword("hunter22")
	require.NoError(t, err)
	id, err := st.InsertUser(ctx, domain.User{
		Username: "ann", Email: "ann@example.com", PasswordHash: hash,
		Roles: []domain.Role{domain.RoleUser, domain.RoleProvider},
	})
	require.NoError(t, err)

	svc := NewSessionService(st, auth.NewTokenManager("secret", "lotmarket", time.Hour))

	_, err = svc.Login(ctx, LoginInput{Email: "ann@example.com", Password: "wrong"})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "hunter22"})
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.Login(ctx, LoginInput{Email: "not-an-email", Password: "hunter22"})
	require.ErrorIs(t, err, apperr.ErrBadRequest)

	token, err := svc.Login(ctx, LoginInput{Email: "ann@example.com", Password: "hunter22"})
	require.NoError(t, err)

	s, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, id, s.ID)
	require.True(t, s.HasRole(domain.RoleProvider))

	_, err = svc.Authenticate(ctx, token+"x")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = st.DeleteUser(ctx, id)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
}

package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukahub/dukahub/internal/auth"
	"github.com/dukahub/dukahub/internal/shared"
)

type memCredentials struct {
	byEmail map[string]auth.Credential
}

func (m *memCredentials) GetCredentialByEmail(_ context.Context, email string) (auth.Credential, error) {
	cred, ok := m.byEmail[email]
	if !ok {
		return auth.Credential{}, shared.ErrNotFound
	}
	return cred, nil
}

func newTestService(t *testing.T) *auth.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)
	creds := &memCredentials{byEmail: map[string]auth.Credential{
		"jane@duka.example":     {UserID: 7, PasswordHash: string(hash), Active: true},
		"disabled@duka.example": {UserID: 8, PasswordHash: string(hash), Active: false},
	}}
	return auth.NewService(creds, rdb, time.Hour)
}

func TestLoginAndResolve(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "jane@duka.example", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, int64(7), session.UserID)

	userID, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), userID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), "jane@duka.example", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@duka.example", "hunter22")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginDeactivatedUser(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), "disabled@duka.example", "hunter22")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "jane@duka.example", "hunter22")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, session.Token))

	_, err = svc.Resolve(ctx, session.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.Login(ctx, "jane@duka.example", "hunter22")
	require.NoError(t, err)

	var gotActor int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := svc.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), gotActor)

	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

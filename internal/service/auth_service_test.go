package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

const testSecret = "console-secret"

type loginClientStub struct {
	result *models.LoginResult
	err    error
	calls  int
}

func (s *loginClientStub) Login(context.Context, models.LoginRequest) (*models.LoginResult, error) {
	s.calls++
	return s.result, s.err
}

func signToken(t *testing.T, secret string, claims models.JWTClaims, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestLoginRedirectsByRole(t *testing.T) {
	cases := map[models.UserRole]string{
		models.RolePrincipal: "/principal",
		models.RoleAdmin:     "/admin",
		models.RoleTeacher:   "/teacher",
	}
	for role, path := range cases {
		client := &loginClientStub{result: &models.LoginResult{Token: "tok", User: models.UserInfo{ID: 40, Role: role}}}
		svc := NewAuthService(client, validator.New(), zap.NewNop(), testSecret)

		res, err := svc.Login(context.Background(), models.LoginRequest{Email: "p@school.id", Password: "secret"})

		require.NoError(t, err)
		assert.Equal(t, path, res.RedirectTo)
		assert.Equal(t, "tok", res.Token)
	}
}

func TestLoginValidatesPayloadBeforeForwarding(t *testing.T) {
	client := &loginClientStub{}
	svc := NewAuthService(client, nil, nil, testSecret)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})

	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
	assert.Zero(t, client.calls)
}

func TestLoginMapsRejectedCredentials(t *testing.T) {
	client := &loginClientStub{err: &upstream.StatusError{StatusCode: 401}}
	svc := NewAuthService(client, nil, nil, testSecret)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "p@school.id", Password: "bad"})

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
	assert.Equal(t, "invalid email or password", appErr.Message)
}

func TestLoginBackendDown(t *testing.T) {
	client := &loginClientStub{err: errors.New("connection refused")}
	svc := NewAuthService(client, nil, nil, testSecret)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "p@school.id", Password: "secret"})

	assert.True(t, appErrors.HasCode(err, appErrors.ErrUpstream.Code))
}

func TestLoginUnknownRoleForbidden(t *testing.T) {
	client := &loginClientStub{result: &models.LoginResult{Token: "tok", User: models.UserInfo{Role: "PARENT"}}}
	svc := NewAuthService(client, nil, nil, testSecret)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "p@school.id", Password: "secret"})

	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden.Code))
}

func TestValidateToken(t *testing.T) {
	svc := NewAuthService(&loginClientStub{}, nil, nil, testSecret)
	valid := models.JWTClaims{
		UserID: "40",
		Role:   models.RolePrincipal,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	claims, err := svc.ValidateToken(signToken(t, testSecret, valid, jwt.SigningMethodHS256))
	require.NoError(t, err)
	assert.Equal(t, "40", claims.UserID)
	assert.Equal(t, models.RolePrincipal, claims.Role)

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = svc.ValidateToken(signToken(t, testSecret, expired, jwt.SigningMethodHS256))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrSessionExpired.Code))

	_, err = svc.ValidateToken(signToken(t, "other-secret", valid, jwt.SigningMethodHS256))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	_, err = svc.ValidateToken(signToken(t, testSecret, valid, jwt.SigningMethodHS512))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))

	anonymous := valid
	anonymous.UserID = ""
	_, err = svc.ValidateToken(signToken(t, testSecret, anonymous, jwt.SigningMethodHS256))
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}

package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/models"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

type loginClient interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResult, error)
}

// LoginResponse is what the console receives after signing in.
type LoginResponse struct {
	Token      string          `json:"token"`
	User       models.UserInfo `json:"user"`
	RedirectTo string          `json:"redirect_to"`
}

// AuthService forwards sign-in to the school backend and validates the tokens it issues.
type AuthService struct {
	client    loginClient
	validator *validator.Validate
	logger    *zap.Logger
	secret    []byte
}

// NewAuthService constructs an AuthService. secret is the HS256 key shared with the backend.
func NewAuthService(client loginClient, validate *validator.Validate, logger *zap.Logger, secret string) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{client: client, validator: validate, logger: logger, secret: []byte(secret)}
}

// Login authenticates against the backend and picks the console landing page for the role.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	result, err := s.client.Login(ctx, req)
	if err != nil {
		var statusErr *upstream.StatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusBadRequest) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid email or password")
		}
		s.logger.Warn("login forward failed", zap.String("email", req.Email), zap.Error(err))
		return nil, upstreamFailure(err, appErrors.ErrUpstream, "login is unavailable")
	}

	if _, ok := models.LandingPaths[result.User.Role]; !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role has no console access")
	}

	return &LoginResponse{
		Token:      result.Token,
		User:       result.User,
		RedirectTo: models.LandingPath(result.User.Role),
	}, nil
}

// ValidateToken parses and validates an HS256 access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrSessionExpired, "")
		}
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return claims, nil
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-class-console/internal/dto"
	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/response"
)

type authenticator interface {
	Login(ctx context.Context, req models.LoginRequest) (*service.LoginResponse, error)
}

// AuthHandler signs console users in through the school backend.
type AuthHandler struct {
	service authenticator
	logger  *zap.Logger
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{service: svc, logger: logger}
}

// Login godoc
// @Summary Sign in to the console
// @Description Forwards credentials to the school backend and returns the token plus the landing path for the user's role
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, false) {
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrUnauthorized.Code) {
			h.log().Info("console sign-in rejected", zap.String("email", req.Email))
		}
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the signed-in user, their landing path and whether they may author classes
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewCurrentUser(claims), nil)
}

func (h *AuthHandler) log() *zap.Logger {
	if h.logger == nil {
		return zap.NewNop()
	}
	return h.logger
}

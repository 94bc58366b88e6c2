package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-class-console/internal/middleware"
	"github.com/noah-isme/sma-class-console/internal/models"
	"github.com/noah-isme/sma-class-console/internal/service"
	appErrors "github.com/noah-isme/sma-class-console/pkg/errors"
	"github.com/noah-isme/sma-class-console/pkg/response"
	"github.com/noah-isme/sma-class-console/pkg/upstream"
)

var requestValidator = validator.New()

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorAndSession resolves the caller and the upstream session bound to their token,
// writing a 401 when either is missing.
func actorAndSession(c *gin.Context) (service.Actor, *upstream.Session, bool) {
	claims := claimsFromContext(c)
	token := c.GetString(middleware.ContextTokenKey)
	if claims == nil || token == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, nil, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, upstream.NewSession(token), true
}

func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

// bindJSON decodes and validates the request body; an empty body decodes to the zero value.
func bindJSON(c *gin.Context, dst interface{}, allowEmpty bool) bool {
	if c.Request.ContentLength == 0 && allowEmpty {
		return validateRequest(c, dst)
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return validateRequest(c, dst)
}

func validateRequest(c *gin.Context, dst interface{}) bool {
	if err := requestValidator.Struct(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return false
	}
	return true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid "+name))
		return 0, false
	}
	return id, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid "+name))
		return 0, false
	}
	return n, true
}

package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "dexbit/internal/errors"
	"dexbit/internal/logger"
)

// ErrorDetail is the inner error object in an error response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the JSON shape every failed request answers with.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// getUserID reads the authenticated user ID set by the auth middleware.
func getUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get("userID")
	if !exists {
		return "", apperrors.ErrUnauthorized
	}
	return userID.(string), nil
}

// respondWithError answers with the AppError's status/code/message, or a
// generic 500 for anything that is not an AppError. Wrapped internals are
// logged, never sent to the client.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Errorw("app error",
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
			"path", c.Request.URL.Path,
		)
	}

	c.JSON(appErr.StatusCode, ErrorResponse{
		Error: ErrorDetail{Code: appErr.Code, Message: appErr.Message},
	})
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/middleware"
	"voicedesk-backend-go/internal/payments"
)

// mapErrorToStatus maps service errors to HTTP status codes and writes the ErrorResponse.
// Unknown errors become a generic 500 and are only logged.
func mapErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrUserNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "User profile not found"}
	case errors.Is(err, core.ErrAssistantNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrAssistantNotFound.Error()}
	case errors.Is(err, core.ErrPhoneNumberNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrPhoneNumberNotFound.Error()}
	case errors.Is(err, core.ErrPlanNotFound):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Plan or price not found", Details: err.Error()}
	case errors.Is(err, core.ErrAssistantLimitReached), errors.Is(err, core.ErrPhoneNumberLimitReached):
		statusCode = http.StatusPaymentRequired
		errResponse = ErrorResponse{Error: "Plan limit reached", Details: err.Error()}
	case errors.Is(err, core.ErrInvalidPassword):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidPassword.Error()}
	case errors.Is(err, core.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request payload", Details: err.Error()}
	case errors.Is(err, core.ErrInvalidIdentity):
		statusCode = http.StatusUnauthorized
		errResponse = ErrorResponse{Error: core.ErrInvalidIdentity.Error()}
	case errors.Is(err, core.ErrEmailNotVerified):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: "Verify your e-mail address before signing in"}
	case errors.Is(err, core.ErrIdentityConflict):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: "This e-mail is linked to a different sign-in account"}
	case errors.Is(err, core.ErrUserStripeNotLinked), errors.Is(err, core.ErrNoActiveSubscription):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "No billing account for this user", Details: err.Error()}
	case errors.Is(err, core.ErrActiveSubscription):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: "Cancel the active subscription before deleting the account"}
	case errors.Is(err, payments.ErrSignature):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook signature verification failed", Details: err.Error()}
	case errors.Is(err, core.ErrWebhookPayload):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Webhook payload could not be processed"}
	case errors.Is(err, core.ErrVoiceProvider), errors.Is(err, payments.ErrProvider):
		logger.Warn("Upstream provider error", zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(middleware.ContextRequestID)), zap.Error(err))
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Upstream provider unavailable"}
	default:
		logger.Error("Internal Server Error", zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(middleware.ContextRequestID)), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusCode, errResponse)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
}

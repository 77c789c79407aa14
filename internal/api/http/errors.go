package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/counsel_portal/internal/access"
	"github.com/immxrtalbeast/counsel_portal/internal/domain"
	"github.com/immxrtalbeast/counsel_portal/internal/repository"
	"github.com/immxrtalbeast/counsel_portal/internal/retry"
	"github.com/immxrtalbeast/counsel_portal/internal/service"
	"github.com/immxrtalbeast/counsel_portal/lib/logger/sl"
)

var (
	notFound = []error{
		repository.ErrProfileNotFound,
		repository.ErrConversationNotFound,
		repository.ErrMessageNotFound,
		repository.ErrAppointmentNotFound,
		repository.ErrVideoSessionNotFound,
	}
	conflicts = []error{
		repository.ErrProfileExists,
		repository.ErrProfileEmailExists,
		repository.ErrRoomExists,
		service.ErrSlotTaken,
		service.ErrInvalidTransition,
		service.ErrConversationClosed,
		service.ErrJoinWindowClosed,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// statusFor maps service and storage errors onto HTTP status codes.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, access.ErrPolicyDenied), errors.Is(err, service.ErrProfileInactive):
		return http.StatusForbidden
	case isAny(err, notFound):
		return http.StatusNotFound
	case isAny(err, conflicts):
		return http.StatusConflict
	case retry.IsTransient(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(ctx *gin.Context, log *slog.Logger, err error) {
	status := statusFor(err)

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx.JSON(status, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case status == http.StatusInternalServerError:
		log.Error("request failed",
			slog.String("method", ctx.Request.Method),
			slog.String("path", ctx.FullPath()),
			sl.Err(err),
		)
		ctx.JSON(status, gin.H{"error": "internal error"})
	case status == http.StatusServiceUnavailable:
		log.Warn("storage unavailable", slog.String("path", ctx.FullPath()), sl.Err(err))
		ctx.JSON(status, gin.H{"error": "service temporarily unavailable"})
	default:
		ctx.JSON(status, gin.H{"error": err.Error()})
	}
}

func badRequest(ctx *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	ctx.JSON(http.StatusBadRequest, body)
}

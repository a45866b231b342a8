package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/portfolieo/portfolio-api/internal/billing"
	"github.com/portfolieo/portfolio-api/internal/ingest"
	"github.com/portfolieo/portfolio-api/internal/middleware"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
)

// statusFor maps domain errors onto HTTP status codes. Order matters:
// ErrOwnerNotFound also matches ErrNotFound.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrOwnerNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, portfolio.ErrInvalidInput),
		errors.Is(err, portfolio.ErrSlugTaken),
		errors.Is(err, portfolio.ErrUnreachable),
		errors.Is(err, billing.ErrInvalidSignature),
		errors.Is(err, billing.ErrAlreadySubscribed),
		errors.Is(err, billing.ErrNoSubscription):
		return http.StatusBadRequest
	case errors.Is(err, portfolio.ErrPremiumRequired):
		return http.StatusForbidden
	case errors.Is(err, portfolio.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, portfolio.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, billing.ErrDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		s.logger.Error("request failed",
			zap.String("request_id", middleware.RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusUnauthorized:
		msg = "unauthorized"
	case http.StatusServiceUnavailable:
		msg = "billing is not configured"
	}
	writeError(w, status, msg)
}

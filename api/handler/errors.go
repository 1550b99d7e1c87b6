package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/judfetch/models"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Error: &models.ErrorDetail{Code: code, Message: message},
	})
}

// respondScrapeError maps a ScrapeError code to an HTTP status.
func respondScrapeError(c *gin.Context, err error) {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternal, err.Error())
		return
	}
	c.JSON(mapErrorToStatus(se.Code), models.ErrorResponse{Error: se.ToDetail()})
}

func mapErrorToStatus(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeNotFound, models.ErrCodeArtifactNotFound:
		return http.StatusNotFound
	case models.ErrCodeNotReady:
		return http.StatusConflict
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case models.ErrCodeNavigation, models.ErrCodeDownloadFailed:
		return http.StatusBadGateway
	case models.ErrCodeBrowserCrash:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/screener/internal/httputil"
	"github.com/persistorai/screener/internal/middleware"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
)

// ScreenHandler serves screening endpoints.
type ScreenHandler struct {
	repo ScreenRepository
	log  *logrus.Logger
}

// NewScreenHandler creates a ScreenHandler with the given repository and logger.
func NewScreenHandler(repo ScreenRepository, log *logrus.Logger) *ScreenHandler {
	return &ScreenHandler{repo: repo, log: log}
}

// Screen handles POST /api/v1/screen. The search runs inside the request; a
// client that disconnects stops it and receives nothing.
func (h *ScreenHandler) Screen(c *gin.Context) {
	var req models.ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, ErrCodeBodyTooLarge, "request body too large")

			return
		}

		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")

		return
	}

	report, err := h.repo.Screen(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

			return
		}

		h.log.WithError(err).Error("screening search")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	middleware.TagSearch(c, report.SearchID)

	h.log.WithFields(logrus.Fields{
		"action":     "screen",
		"request_id": httputil.RequestID(c),
		"search_id":  report.SearchID,
		"terminal":   report.Terminal,
		"risk_score": report.RiskScore,
	}).Info("audit")

	c.JSON(http.StatusOK, report)
}

// GetReport handles GET /api/v1/reports/:id.
func (h *ScreenHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "id must be a UUID")

		return
	}

	report, err := h.repo.GetReport(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "report not found")

			return
		}

		h.log.WithError(err).Error("get report")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, report)
}

package tracking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"parttrack/internal/constants"
	"parttrack/internal/logger"
	"parttrack/pkg/errors"
	"parttrack/pkg/models"
)

type Handler struct {
	service *Service
	logger  logger.Logger
}

func NewHandler(service *Service, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		workstations := v1.Group("/tracking/workstations")
		{
			workstations.POST("/:id/decisions", h.CreateDecision)
			workstations.GET("/:id/parts", h.ListTrackedParts)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// CreateDecision godoc
// @Summary      Evaluate a part for a workstation
// @Description  Evaluate the given part against the workstation's tracking rules and record the decision
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        id    path      string       true  "Workstation ID"
// @Param        part  body      models.Part  true  "Part to evaluate"
// @Success      200   {object}  Decision
// @Failure      400   {object}  errors.ErrorResponse
// @Failure      404   {object}  errors.ErrorResponse
// @Failure      500   {object}  errors.ErrorResponse
// @Router       /tracking/workstations/{id}/decisions [post]
func (h *Handler) CreateDecision(c *gin.Context) {
	workstationID := c.Param("id")

	var part models.Part
	if err := c.ShouldBindJSON(&part); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	decision, err := h.service.Decide(c.Request.Context(), workstationID, &part)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// ListTrackedParts godoc
// @Summary      List tracked parts for a workstation
// @Description  Get parts whose most recent decision for the workstation was positive
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Param        id      path      string  true   "Workstation ID"
// @Param        limit   query     int     false  "Maximum number of parts to return (1-1000)" default(100)
// @Param        offset  query     int     false  "Number of parts to skip" default(0)
// @Success      200     {array}   TrackedPart
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /tracking/workstations/{id}/parts [get]
func (h *Handler) ListTrackedParts(c *gin.Context) {
	workstationID := c.Param("id")
	limit := parseLimit(c.Query("limit"))
	offset := parseOffset(c.Query("offset"))

	parts, err := h.service.ListTrackedParts(c.Request.Context(), workstationID, limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	if parts == nil {
		parts = []TrackedPart{}
	}
	c.JSON(http.StatusOK, parts)
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxLimit {
		return constants.DefaultLimit
	}
	return parsed
}

func parseOffset(offsetStr string) int {
	if offsetStr == "" {
		return 0
	}
	parsed, err := strconv.Atoi(offsetStr)
	if err != nil || parsed < 0 {
		return 0
	}
	return parsed
}

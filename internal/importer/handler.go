package importer

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"parttrack/internal/constants"
	"parttrack/internal/logger"
	"parttrack/pkg/errors"
	"parttrack/pkg/logging"
	"parttrack/pkg/middleware"
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
		imports := v1.Group("/imports")
		{
			imports.POST("", middleware.RequireRole(constants.RolePlanner), h.CreateImport)
			imports.GET("", h.ListImports)
			imports.GET("/:id", h.GetImport)
			imports.GET("/:id/file", h.DownloadImportFile)
		}
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

// CreateImport godoc
// @Summary      Import a parts file
// @Description  Upload a CSV or XLSX parts list and import it through the given profile. The import runs synchronously; the response carries the full batch outcome including row errors.
// @Tags         imports
// @Accept       multipart/form-data
// @Produce      json
// @Param        profile_id  formData  string  true  "Import profile ID"
// @Param        file        formData  file    true  "Parts file"
// @Success      201         {object}  ImportBatch
// @Failure      400         {object}  errors.ErrorResponse
// @Failure      404         {object}  errors.ErrorResponse
// @Failure      500         {object}  errors.ErrorResponse
// @Router       /imports [post]
func (h *Handler) CreateImport(c *gin.Context) {
	profileID := c.PostForm("profile_id")
	if profileID == "" {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithDetail("message", "profile_id is required")))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err).WithDetail("message", "file is required")))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	batch, err := h.service.RunImport(ctx,
		profileID,
		filepath.Base(fileHeader.Filename),
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
		logging.GetActor(ctx),
	)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, batch)
}

// ListImports godoc
// @Summary      List import batches
// @Description  Get a paginated list of import batches, newest first
// @Tags         imports
// @Accept       json
// @Produce      json
// @Param        limit   query     int  false  "Maximum number of batches to return (1-1000)" default(100)
// @Param        offset  query     int  false  "Number of batches to skip" default(0)
// @Success      200     {array}   ImportBatch
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /imports [get]
func (h *Handler) ListImports(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	offset := parseOffset(c.Query("offset"))

	batches, err := h.service.ListBatches(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if batches == nil {
		batches = []ImportBatch{}
	}
	c.JSON(http.StatusOK, batches)
}

// GetImport godoc
// @Summary      Get an import batch
// @Description  Get one import batch with its outcome and stored row errors
// @Tags         imports
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {object}  ImportBatch
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /imports/{id} [get]
func (h *Handler) GetImport(c *gin.Context) {
	id := c.Param("id")
	batch, err := h.service.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// DownloadImportFile godoc
// @Summary      Download the original file of a batch
// @Description  Stream back the archived copy of the uploaded file
// @Tags         imports
// @Produce      application/octet-stream
// @Param        id   path      string  true  "Batch ID"
// @Success      200  {file}    binary
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /imports/{id}/file [get]
func (h *Handler) DownloadImportFile(c *gin.Context) {
	id := c.Param("id")
	file, batch, err := h.service.DownloadArchive(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Content-Disposition", `attachment; filename="`+batch.FileName+`"`)
	if _, err := io.Copy(c.Writer, file); err != nil {
		h.logger.ErrorwCtx(c.Request.Context(), "Failed to stream archived file", "batch_id", id, "error", err)
	}
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

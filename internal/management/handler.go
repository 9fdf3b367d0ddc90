package management

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"parttrack/internal/catalog"
	"parttrack/internal/constants"
	"parttrack/internal/logger"
	"parttrack/pkg/errors"
	"parttrack/pkg/middleware"
)

type BaseHandler struct {
	Service Service
	Logger  logger.Logger
}

func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

type Handler struct {
	BaseHandler
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	write := middleware.RequireRole(constants.RolePlanner)

	v1 := router.Group("/api/v1")
	{
		workstations := v1.Group("/workstations")
		{
			workstations.GET("", h.ListWorkstations)
			workstations.POST("", write, h.CreateWorkstation)
			workstations.GET("/:id", h.GetWorkstation)
			workstations.PUT("/:id", write, h.UpdateWorkstation)
			workstations.DELETE("/:id", write, h.DeleteWorkstation)
			workstations.GET("/:id/rules", h.GetRuleSet)
			workstations.PUT("/:id/rules", write, h.SaveRuleSet)
			workstations.GET("/:id/rules/revisions", h.GetRuleSetRevisions)
			workstations.GET("/:id/rules/revisions/:version", h.GetRuleSetRevision)
		}

		audit := v1.Group("/audit")
		{
			audit.GET("/logs", middleware.RequireRole(constants.RoleAdmin), h.GetAuditLogs)
		}

		cat := v1.Group("/catalog")
		{
			cat.GET("/columns", h.ListCatalogColumns)
			cat.GET("/operators", h.ListCatalogOperators)
		}
	}
}

// ListWorkstations godoc
// @Summary      List workstations
// @Description  Get a paginated list of workstations
// @Tags         workstations
// @Accept       json
// @Produce      json
// @Param        limit   query     int  false  "Maximum number of workstations to return (1-1000)" default(100)
// @Param        offset  query     int  false  "Number of workstations to skip" default(0)
// @Success      200     {array}   Workstation
// @Failure      500     {object}  errors.ErrorResponse
// @Router       /workstations [get]
func (h *Handler) ListWorkstations(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	offset := parseOffset(c.Query("offset"))

	workstations, err := h.Service.ListWorkstations(c.Request.Context(), limit, offset)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if workstations == nil {
		workstations = []Workstation{}
	}
	c.JSON(http.StatusOK, workstations)
}

// CreateWorkstation godoc
// @Summary      Create a new workstation
// @Description  Create a new workstation with the provided data
// @Tags         workstations
// @Accept       json
// @Produce      json
// @Param        workstation  body      CreateWorkstationRequest  true  "Workstation data"
// @Success      201          {object}  Workstation
// @Failure      400          {object}  errors.ErrorResponse
// @Failure      409          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /workstations [post]
func (h *Handler) CreateWorkstation(c *gin.Context) {
	var req CreateWorkstationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	workstation, err := h.Service.CreateWorkstation(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, workstation)
}

// GetWorkstation godoc
// @Summary      Get a workstation by ID
// @Description  Get a specific workstation by its ID
// @Tags         workstations
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Workstation ID"
// @Success      200  {object}  Workstation
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workstations/{id} [get]
func (h *Handler) GetWorkstation(c *gin.Context) {
	id := c.Param("id")
	workstation, err := h.Service.GetWorkstation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, workstation)
}

// UpdateWorkstation godoc
// @Summary      Update a workstation
// @Description  Update an existing workstation by ID
// @Tags         workstations
// @Accept       json
// @Produce      json
// @Param        id           path      string                    true  "Workstation ID"
// @Param        workstation  body      UpdateWorkstationRequest  true  "Updated workstation data"
// @Success      200          {object}  Workstation
// @Failure      400          {object}  errors.ErrorResponse
// @Failure      404          {object}  errors.ErrorResponse
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /workstations/{id} [put]
func (h *Handler) UpdateWorkstation(c *gin.Context) {
	id := c.Param("id")
	var req UpdateWorkstationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	workstation, err := h.Service.UpdateWorkstation(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, workstation)
}

// DeleteWorkstation godoc
// @Summary      Delete a workstation
// @Description  Delete a workstation together with its tracking rules
// @Tags         workstations
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Workstation ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workstations/{id} [delete]
func (h *Handler) DeleteWorkstation(c *gin.Context) {
	id := c.Param("id")
	err := h.Service.DeleteWorkstation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetRuleSet godoc
// @Summary      Get a workstation's rule set
// @Description  Get the full tracking rule set for a workstation. The current version is also returned as the ETag header.
// @Tags         rule-sets
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Workstation ID"
// @Success      200  {object}  RuleSet
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workstations/{id}/rules [get]
func (h *Handler) GetRuleSet(c *gin.Context) {
	id := c.Param("id")
	ruleSet, err := h.Service.LoadRuleSet(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("ETag", strconv.Quote(strconv.FormatInt(ruleSet.Version, 10)))
	c.JSON(http.StatusOK, ruleSet)
}

// SaveRuleSet godoc
// @Summary      Replace a workstation's rule set
// @Description  Replace the workstation's whole rule set in one operation. Pass the expected version in the If-Match header (or expected_version in the body) to reject concurrent modifications; omit both for last-write-wins.
// @Tags         rule-sets
// @Accept       json
// @Produce      json
// @Param        id        path      string              true   "Workstation ID"
// @Param        If-Match  header    string              false  "Expected rule set version"
// @Param        rules     body      SaveRuleSetRequest  true   "New rule set"
// @Success      200       {object}  RuleSet
// @Failure      400       {object}  errors.ErrorResponse
// @Failure      404       {object}  errors.ErrorResponse
// @Failure      409       {object}  errors.ErrorResponse
// @Failure      500       {object}  errors.ErrorResponse
// @Router       /workstations/{id}/rules [put]
func (h *Handler) SaveRuleSet(c *gin.Context) {
	id := c.Param("id")
	var req SaveRuleSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	// The If-Match header takes precedence over the body field.
	if ifMatch := c.GetHeader("If-Match"); ifMatch != "" {
		version, err := parseIfMatch(ifMatch)
		if err != nil {
			c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
			return
		}
		req.ExpectedVersion = &version
	}

	ruleSet, err := h.Service.SaveRuleSet(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("ETag", strconv.Quote(strconv.FormatInt(ruleSet.Version, 10)))
	c.JSON(http.StatusOK, ruleSet)
}

// GetRuleSetRevisions godoc
// @Summary      Get rule set revision history
// @Description  Get the saved revisions of a workstation's rule set, newest first
// @Tags         rule-sets
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Workstation ID"
// @Success      200  {array}   RuleSetRevision
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /workstations/{id}/rules/revisions [get]
func (h *Handler) GetRuleSetRevisions(c *gin.Context) {
	id := c.Param("id")
	revisions, err := h.Service.GetRuleSetRevisions(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if revisions == nil {
		revisions = []RuleSetRevision{}
	}
	c.JSON(http.StatusOK, revisions)
}

// GetRuleSetRevision godoc
// @Summary      Get one rule set revision
// @Description  Get a specific revision of a workstation's rule set by version number
// @Tags         rule-sets
// @Accept       json
// @Produce      json
// @Param        id       path      string  true  "Workstation ID"
// @Param        version  path      int     true  "Rule set version"
// @Success      200      {object}  RuleSetRevision
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /workstations/{id}/rules/revisions/{version} [get]
func (h *Handler) GetRuleSetRevision(c *gin.Context) {
	id := c.Param("id")
	version, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	revision, err := h.Service.GetRuleSetRevision(c.Request.Context(), id, version)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, revision)
}

// GetAuditLogs godoc
// @Summary      Get audit logs
// @Description  Get audit logs with optional filtering by entity ID and entity type
// @Tags         audit
// @Accept       json
// @Produce      json
// @Param        entity_id    query     string  false  "Filter by entity ID"
// @Param        entity_type  query     string  false  "Filter by entity type (workstation, ruleset)"
// @Param        limit        query     int     false  "Maximum number of logs to return (1-1000)" default(100)
// @Success      200          {array}   AuditLog
// @Failure      500          {object}  errors.ErrorResponse
// @Router       /audit/logs [get]
func (h *Handler) GetAuditLogs(c *gin.Context) {
	entityID := c.Query("entity_id")
	entityType := c.Query("entity_type")
	limit := parseLimit(c.Query("limit"))

	var entityIDPtr *string
	if entityID != "" {
		entityIDPtr = &entityID
	}

	logs, err := h.Service.GetAuditLogs(c.Request.Context(), entityIDPtr, entityType, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if logs == nil {
		logs = []AuditLog{}
	}
	c.JSON(http.StatusOK, logs)
}

// ListCatalogColumns godoc
// @Summary      List rule columns
// @Description  Get the closed set of part columns that rule conditions may reference
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Success      200  {array}  catalog.Column
// @Router       /catalog/columns [get]
func (h *Handler) ListCatalogColumns(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.Columns())
}

// ListCatalogOperators godoc
// @Summary      List rule operators
// @Description  Get the closed set of condition operators and the column kinds they apply to
// @Tags         catalog
// @Accept       json
// @Produce      json
// @Success      200  {array}  catalog.OperatorSpec
// @Router       /catalog/operators [get]
func (h *Handler) ListCatalogOperators(c *gin.Context) {
	c.JSON(http.StatusOK, catalog.Operators())
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

func parseIfMatch(header string) (int64, error) {
	trimmed := strings.TrimSpace(header)
	trimmed = strings.TrimPrefix(trimmed, "W/")
	trimmed = strings.Trim(trimmed, `"`)
	return strconv.ParseInt(trimmed, 10, 64)
}

type ProfileHandler struct {
	BaseHandler
}

func NewProfileHandler(service Service, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		BaseHandler: BaseHandler{
			Service: service,
			Logger:  log,
		},
	}
}

func (h *ProfileHandler) RegisterProfileRoutes(router *gin.Engine) {
	write := middleware.RequireRole(constants.RolePlanner)

	v1 := router.Group("/api/v1")
	{
		profiles := v1.Group("/import-profiles")
		{
			profiles.GET("", h.ListImportProfiles)
			profiles.POST("", write, h.CreateImportProfile)
			profiles.GET("/:id", h.GetImportProfile)
			profiles.PUT("/:id", write, h.UpdateImportProfile)
			profiles.DELETE("/:id", write, h.DeleteImportProfile)
		}
	}
}

// ListImportProfiles godoc
// @Summary      List all import profiles
// @Description  Get a list of all import profiles
// @Tags         import-profiles
// @Accept       json
// @Produce      json
// @Success      200  {array}   ImportProfile
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /import-profiles [get]
func (h *ProfileHandler) ListImportProfiles(c *gin.Context) {
	profiles, err := h.Service.ListImportProfiles(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if profiles == nil {
		profiles = []ImportProfile{}
	}
	c.JSON(http.StatusOK, profiles)
}

// CreateImportProfile godoc
// @Summary      Create a new import profile
// @Description  Create a new import profile with the provided data
// @Tags         import-profiles
// @Accept       json
// @Produce      json
// @Param        profile  body      CreateImportProfileRequest  true  "Import profile data"
// @Success      201      {object}  ImportProfile
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /import-profiles [post]
func (h *ProfileHandler) CreateImportProfile(c *gin.Context) {
	var req CreateImportProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	profile, err := h.Service.CreateImportProfile(c.Request.Context(), req)
	if err != nil {
		if errors.IsValidation(err) {
			response := errors.ToErrorResponse(err)
			if err.Error() != "" {
				response["message"] = err.Error()
			}
			c.JSON(http.StatusBadRequest, response)
			return
		}
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}

// GetImportProfile godoc
// @Summary      Get an import profile by ID
// @Description  Get a specific import profile by its ID
// @Tags         import-profiles
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Profile ID"
// @Success      200  {object}  ImportProfile
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /import-profiles/{id} [get]
func (h *ProfileHandler) GetImportProfile(c *gin.Context) {
	id := c.Param("id")
	profile, err := h.Service.GetImportProfile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateImportProfile godoc
// @Summary      Update an import profile
// @Description  Update an existing import profile by ID
// @Tags         import-profiles
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Profile ID"
// @Param        profile  body      UpdateImportProfileRequest  true  "Updated profile data"
// @Success      200      {object}  ImportProfile
// @Failure      400      {object}  errors.ErrorResponse
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      500      {object}  errors.ErrorResponse
// @Router       /import-profiles/{id} [put]
func (h *ProfileHandler) UpdateImportProfile(c *gin.Context) {
	id := c.Param("id")
	var req UpdateImportProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	profile, err := h.Service.UpdateImportProfile(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// DeleteImportProfile godoc
// @Summary      Delete an import profile
// @Description  Delete an import profile by ID
// @Tags         import-profiles
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Profile ID"
// @Success      204  "No Content"
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      500  {object}  errors.ErrorResponse
// @Router       /import-profiles/{id} [delete]
func (h *ProfileHandler) DeleteImportProfile(c *gin.Context) {
	id := c.Param("id")
	err := h.Service.DeleteImportProfile(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

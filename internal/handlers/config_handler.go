package handlers

import (
	"errors"
	"net/http"

	"github.com/acanas/selftest-service/internal/services"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ConfigHandler struct {
	BaseHandler
	configService *services.ConfigService
	validator     *utils.Validator
}

func NewConfigHandler(
	configService *services.ConfigService,
	validator *utils.Validator,
	logger utils.Logger,
) *ConfigHandler {
	return &ConfigHandler{
		BaseHandler:   NewBaseHandler(logger),
		configService: configService,
		validator:     validator,
	}
}

// GetConfig returns the course test configuration
// @Summary Get test config
// @Tags config
// @Produce json
// @Param course_id path uint true "Course ID"
// @Success 200 {object} models.TestConfig
// @Router /courses/{course_id}/test-config [get]
func (h *ConfigHandler) GetConfig(c *gin.Context) {
	courseID := parseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}
	if requireUserID(c) == 0 {
		return
	}

	cfg, err := h.configService.Resolve(c.Request.Context(), courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// UpdateConfig replaces the course test configuration
// @Summary Update test config
// @Tags config
// @Accept json
// @Produce json
// @Param course_id path uint true "Course ID"
// @Param config body services.UpdateConfigRequest true "Configuration"
// @Success 200 {object} models.TestConfig
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /courses/{course_id}/test-config [put]
func (h *ConfigHandler) UpdateConfig(c *gin.Context) {
	courseID := parseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	var req services.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	cfg, err := h.configService.Update(c.Request.Context(), userID, courseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

func (h *ConfigHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/acanas/selftest-service/internal/repositories"
	"github.com/acanas/selftest-service/internal/services"
	"github.com/acanas/selftest-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type PrintHandler struct {
	BaseHandler
	printService  *services.PrintService
	exportService *services.ExportService
	validator     *utils.Validator
}

func NewPrintHandler(
	printService *services.PrintService,
	exportService *services.ExportService,
	validator *utils.Validator,
	logger utils.Logger,
) *PrintHandler {
	return &PrintHandler{
		BaseHandler:   NewBaseHandler(logger),
		printService:  printService,
		exportService: exportService,
		validator:     validator,
	}
}

// CompilePrint generates a new print for the authenticated user
// @Summary Compile print
// @Description Draws random questions matching the filter and freezes them into a new print
// @Tags prints
// @Accept json
// @Produce json
// @Param print body services.CompilePrintRequest true "Print parameters"
// @Success 201 {object} models.TestPrint
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /prints [post]
func (h *PrintHandler) CompilePrint(c *gin.Context) {
	var req services.CompilePrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	print, err := h.printService.CompilePrint(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, print)
}

// GetPrint retrieves a print rendered under the viewer's visibility
// @Summary Get print
// @Tags prints
// @Produce json
// @Param id path uint true "Print ID"
// @Success 200 {object} services.PrintView
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /prints/{id} [get]
func (h *PrintHandler) GetPrint(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	view, err := h.printService.GetPrint(c.Request.Context(), userID, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SaveAnswers records in-progress answers on an unsent print
// @Summary Save answers
// @Tags prints
// @Accept json
// @Produce json
// @Param id path uint true "Print ID"
// @Param answers body services.SaveAnswersRequest true "Answers"
// @Success 200 {object} models.TestPrint
// @Failure 409 {object} ErrorResponse
// @Router /prints/{id}/answers [post]
func (h *PrintHandler) SaveAnswers(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	var req services.SaveAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	print, err := h.printService.SaveAnswers(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, print)
}

// SendPrint finalizes a print, scoring it and making it immutable
// @Summary Send print
// @Tags prints
// @Accept json
// @Produce json
// @Param id path uint true "Print ID"
// @Param send body services.SendPrintRequest true "Final answers and disclosure choice"
// @Success 200 {object} models.TestPrint
// @Failure 409 {object} ErrorResponse
// @Router /prints/{id}/send [post]
func (h *PrintHandler) SendPrint(c *gin.Context) {
	id := parseIDParam(c, "id")
	if id == 0 {
		return
	}
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	var req services.SendPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	print, err := h.printService.SendPrint(c.Request.Context(), userID, id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, print)
}

// ListResults lists finished prints visible to the viewer
// @Summary List results
// @Tags results
// @Produce json
// @Param course_id query uint true "Course ID"
// @Param user_id query uint false "Filter by user (teachers only)"
// @Success 200 {object} ListResponse
// @Router /results [get]
func (h *PrintHandler) ListResults(c *gin.Context) {
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	filters, ok := h.parseResultFilters(c)
	if !ok {
		return
	}

	prints, total, err := h.printService.ListResults(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{Data: prints, Total: total})
}

// ExportResults writes the visible course results as an xlsx workbook
// @Summary Export results
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param course_id query uint true "Course ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /results/export [get]
func (h *PrintHandler) ExportResults(c *gin.Context) {
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	filters, ok := h.parseResultFilters(c)
	if !ok {
		return
	}

	data, err := h.exportService.ExportCourseResults(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="results.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// DeleteUserPrints removes all of one user's prints in a course
// @Summary Delete user prints
// @Tags prints
// @Param course_id path uint true "Course ID"
// @Param user_id path uint true "User ID"
// @Success 204
// @Failure 403 {object} ErrorResponse
// @Router /courses/{course_id}/users/{user_id}/prints [delete]
func (h *PrintHandler) DeleteUserPrints(c *gin.Context) {
	courseID := parseIDParam(c, "course_id")
	if courseID == 0 {
		return
	}
	targetID := parseIDParam(c, "user_id")
	if targetID == 0 {
		return
	}
	userID := requireUserID(c)
	if userID == 0 {
		return
	}

	h.LogRequest(c, "Deleting user prints", "course_id", courseID, "target_user_id", targetID)

	if err := h.printService.DeleteUserPrints(c.Request.Context(), userID, targetID, courseID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *PrintHandler) parseResultFilters(c *gin.Context) (repositories.PrintFilters, bool) {
	courseID, ok := parseQueryUint(c, "course_id")
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid course_id",
			Details: "course_id query parameter is required",
		})
		return repositories.PrintFilters{}, false
	}

	filters := repositories.PrintFilters{
		CourseID:  courseID,
		Limit:     parseQueryInt(c, "limit", 50),
		Offset:    parseQueryInt(c, "offset", 0),
		SortOrder: c.DefaultQuery("sort", "desc"),
	}
	if targetID, ok := parseQueryUint(c, "user_id"); ok {
		filters.UserID = &targetID
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filters.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filters.DateTo = &t
		}
	}
	return filters, true
}

func (h *PrintHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var rangeErr *services.ConfigOutOfRangeError
	if errors.As(err, &rangeErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Requested question count out of range",
			Details: rangeErr,
		})
		return
	}

	var throttleErr *services.ThrottleViolationError
	if errors.As(err, &throttleErr) {
		c.Header("Retry-After", throttleErr.AllowedAt.UTC().Format(http.TimeFormat))
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Message: "Too soon since the previous print",
			Details: throttleErr,
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
	case errors.Is(err, services.ErrPrintNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Print not found",
		})
	case errors.Is(err, services.ErrPrintAlreadySent):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Print has already been sent",
		})
	case errors.Is(err, services.ErrNoMatchingQuestions):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "No questions match the requested filter",
		})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "User not found",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/validator"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler handles exam administration endpoints.
type AdminHandler struct {
	catalog     *service.ExamCatalogService
	submissions *service.SubmissionService
	exports     *service.ExportService
	authService *service.AuthService
	log         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	catalog *service.ExamCatalogService,
	submissions *service.SubmissionService,
	exports *service.ExportService,
	authService *service.AuthService,
	log zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		catalog:     catalog,
		submissions: submissions,
		exports:     exports,
		authService: authService,
		log:         log.With().Str("component", "admin_handler").Logger(),
	}
}

type adminExam struct {
	Key    string `json:"key"`
	Cohort string `json:"cohort"`
	Name   string `json:"name"`
}

func examKeyParam(c *gin.Context) (string, bool) {
	key := c.Param("key")
	if !validator.ValidExamKey(key) {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", false
	}
	return key, true
}

// ListExams godoc
// GET /api/v1/admin/exams
// Lists every exam definition found on disk.
func (h *AdminHandler) ListExams(c *gin.Context) {
	keys, err := h.catalog.Keys()
	if err != nil {
		fail(c, h.log, err)
		return
	}

	exams := make([]adminExam, 0, len(keys))
	for _, k := range keys {
		cohort, name := service.SplitExamKey(k)
		exams = append(exams, adminExam{Key: k, Cohort: cohort, Name: name})
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// RefreshExamCache godoc
// POST /api/v1/admin/exams/:key/refresh-cache
// Re-reads the definition file and replaces the cached copy.
func (h *AdminHandler) RefreshExamCache(c *gin.Context) {
	key, ok := examKeyParam(c)
	if !ok {
		return
	}

	exam, err := h.catalog.Refresh(c.Request.Context(), key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().Str("exam_id", key).Msg("Exam cache refreshed")
	response.Success(c, http.StatusOK, gin.H{
		"key":       key,
		"problems":  len(exam.Problems()),
		"max_total": grading.Round2(exam.MaxTotal()),
	})
}

// GetResults godoc
// GET /api/v1/admin/exams/:key/results?page=1&per_page=50
// Returns one page of submissions.
func (h *AdminHandler) GetResults(c *gin.Context) {
	key, ok := examKeyParam(c)
	if !ok {
		return
	}

	var q model.ResultsQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rows, page, err := h.submissions.Results(c.Request.Context(), key, q)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": rows}, page)
}

// ExportResults godoc
// GET /api/v1/admin/exams/:key/results/export
// Downloads all results as an .xlsx workbook.
func (h *AdminHandler) ExportResults(c *gin.Context) {
	key, ok := examKeyParam(c)
	if !ok {
		return
	}

	buf, err := h.exports.Results(c.Request.Context(), key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_results.xlsx"`, key))
	c.Data(http.StatusOK, xlsxContentType, buf)
}

// ResetSubmission godoc
// DELETE /api/v1/admin/exams/:key/submissions/:user_id
// Deletes a submission so the student can retake the exam.
func (h *AdminHandler) ResetSubmission(c *gin.Context) {
	key, ok := examKeyParam(c)
	if !ok {
		return
	}
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.submissions.Reset(c.Request.Context(), userID, key); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user_id": userID, "exam_id": key})
}

// ResetStudentSession godoc
// DELETE /api/v1/admin/sessions/:user_id
// Clears a student's active login so they can sign in on another device.
func (h *AdminHandler) ResetStudentSession(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.authService.ResetSession(c.Request.Context(), userID); err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().Int("user_id", userID).Msg("Student session reset")
	response.Success(c, http.StatusOK, gin.H{"user_id": userID})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/middleware"
	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
	"github.com/stemsi/exstem-portal/internal/validator"
)

// StudentPortalHandler handles student-facing endpoints (exam list, paper,
// submission and review).
type StudentPortalHandler struct {
	catalog     *service.ExamCatalogService
	submissions *service.SubmissionService
	drafts      *service.DraftService
	transcripts *service.TranscriptService
	log         zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	catalog *service.ExamCatalogService,
	submissions *service.SubmissionService,
	drafts *service.DraftService,
	transcripts *service.TranscriptService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		catalog:     catalog,
		submissions: submissions,
		drafts:      drafts,
		transcripts: transcripts,
		log:         log.With().Str("component", "student_handler").Logger(),
	}
}

// studentExam resolves the caller and the cohort-scoped key of :exam.
// Students can only ever address exams of their own cohort.
func studentExam(c *gin.Context) (service.Student, string, bool) {
	st, ok := middleware.GetStudent(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return st, "", false
	}
	name := c.Param("exam")
	if !validator.ValidExamKey(name) || st.Cohort == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return st, "", false
	}
	return st, service.ExamKey(st.Cohort, name), true
}

// ListExams godoc
// GET /api/v1/student/exams
// Returns the exams of the caller's cohort with submission status.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	st, ok := middleware.GetStudent(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	exams, err := h.submissions.ListForStudent(c.Request.Context(), st)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExamPaper godoc
// GET /api/v1/student/exams/:exam/paper
// Returns the exam without answer keys or explanations.
func (h *StudentPortalHandler) GetExamPaper(c *gin.Context) {
	_, key, ok := studentExam(c)
	if !ok {
		return
	}

	exam, err := h.catalog.Load(c.Request.Context(), key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, grading.NewPaper(exam))
}

// GetExamState godoc
// GET /api/v1/student/exams/:exam/state
// Returns the autosaved answers so an interrupted exam can resume.
func (h *StudentPortalHandler) GetExamState(c *gin.Context) {
	st, key, ok := studentExam(c)
	if !ok {
		return
	}

	sheet, err := h.drafts.Sheet(c.Request.Context(), st.ID, key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"answers": sheet})
}

// SubmitExam godoc
// POST /api/v1/student/exams/:exam/submit
// Grades the answer sheet and stores it. Only the first submission counts.
func (h *StudentPortalHandler) SubmitExam(c *gin.Context) {
	st, key, ok := studentExam(c)
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	answers, err := grading.DecodeAnswers(req.Answers)
	if err != nil {
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrInvalidPayload, "answers must be an object keyed by problem id")
		return
	}

	sub, err := h.submissions.Submit(c.Request.Context(), st, key, answers)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, model.SubmitResponse{
		Message: "Exam submitted successfully",
		Total:   sub.Report.Total,
		Scores:  sub.Report.Scores,
	})
}

// GetSubmissionStatus godoc
// GET /api/v1/student/exams/:exam/status
// Reports whether the caller has submitted, with answers and scores.
func (h *StudentPortalHandler) GetSubmissionStatus(c *gin.Context) {
	st, key, ok := studentExam(c)
	if !ok {
		return
	}

	status, err := h.submissions.Status(c.Request.Context(), st.ID, key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// GetSolution godoc
// GET /api/v1/student/exams/:exam/solution
// Returns the review document. Only available after submitting.
func (h *StudentPortalHandler) GetSolution(c *gin.Context) {
	st, key, ok := studentExam(c)
	if !ok {
		return
	}

	review, err := h.submissions.Solution(c.Request.Context(), st.ID, key)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, review)
}

// DownloadTranscript godoc
// GET /api/v1/student/transcript
// Streams the caller's transcript PDF.
func (h *StudentPortalHandler) DownloadTranscript(c *gin.Context) {
	st, ok := middleware.GetStudent(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	tr, err := h.transcripts.Locate(st.Cohort, st.Username)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.FileAttachment(tr.Path, tr.FileName)
}

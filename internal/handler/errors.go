package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/grading"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
)

// errorStatus maps service errors to an HTTP status and API error code.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrInvalidExamDocument), errors.Is(err, grading.ErrMalformedExam):
		return http.StatusInternalServerError, response.ErrInvalidExam
	case errors.Is(err, service.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrSubmissionNotFound):
		return http.StatusNotFound, response.ErrSubmissionNotFound
	case errors.Is(err, service.ErrTranscriptNotFound):
		return http.StatusNotFound, response.ErrTranscriptNotFound
	case errors.Is(err, service.ErrUnknownProblem):
		return http.StatusBadRequest, response.ErrInvalidPayload
	case errors.Is(err, service.ErrUserExists):
		return http.StatusConflict, response.ErrConflict
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrSessionAlreadyActive):
		return http.StatusConflict, response.ErrSessionActive
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the envelope for err, logging unexpected failures.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", c.GetString(response.ContextKeyRequestID)).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}

package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-portal/internal/response"
	"github.com/stemsi/exstem-portal/internal/service"
	ws "github.com/stemsi/exstem-portal/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams autosave and submit actions for one exam.
type WSHandler struct {
	drafts      *service.DraftService
	submissions *service.SubmissionService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(drafts *service.DraftService, submissions *service.SubmissionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		drafts:      drafts,
		submissions: submissions,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// ExamWebSocketStream godoc
// WS /ws/v1/student/exams/:exam/stream?token=...
// Upgrades to WebSocket for real-time autosave and grading.
func (h *WSHandler) ExamWebSocketStream(c *gin.Context) {
	st, key, ok := studentExam(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// The request context is cancelled once the handler returns; actions
	// run against the server's lifetime instead.
	ctx := context.WithoutCancel(c.Request.Context())

	wsLog := h.log.With().
		Int("user_id", st.ID).
		Str("exam_id", key).
		Logger()

	wsLog.Info().Msg("Student connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var werr error
		switch msg.Action {
		case ws.ActionAutosave:
			werr = h.handleAutosave(ctx, conn, wsLog, st, key, &msg)
		case ws.ActionSubmit:
			werr = h.handleSubmit(ctx, conn, wsLog, st, key)
		case ws.ActionPing:
			werr = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			werr = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
		if werr != nil {
			wsLog.Debug().Err(werr).Msg("Write failed, closing")
			return
		}
	}
}

// handleAutosave stores a single answer and queues it for persistence.
func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, st service.Student, key string, msg *ws.RequestPayload) error {
	if msg.QID == "" || len(msg.Answer) == 0 {
		return ws.WriteError(conn, string(response.ErrValidation), "q_id and ans are required")
	}

	if err := h.drafts.Autosave(ctx, st.ID, key, msg.QID, string(msg.Answer)); err != nil {
		_, code := errorStatus(err)
		if code == response.ErrInternal {
			log.Error().Err(err).Str("q_id", msg.QID).Msg("Autosave failed")
		}
		return ws.WriteError(conn, string(code), response.GetMessage(code))
	}

	return ws.WriteTyped(conn, ws.AutosaveResponse{Event: ws.EventSuccess, Status: "saved", QID: msg.QID})
}

// handleSubmit grades the autosaved sheet through the regular submission path.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, st service.Student, key string) error {
	sheet, err := h.drafts.Sheet(ctx, st.ID, key)
	if err != nil {
		log.Error().Err(err).Msg("Read autosaved answers failed")
		return ws.WriteError(conn, string(response.ErrInternal), response.GetMessage(response.ErrInternal))
	}

	sub, err := h.submissions.Submit(ctx, st, key, sheet)
	if err != nil {
		_, code := errorStatus(err)
		if !errors.Is(err, service.ErrAlreadySubmitted) && code == response.ErrInternal {
			log.Error().Err(err).Msg("Submit failed")
		}
		return ws.WriteError(conn, string(code), response.GetMessage(code))
	}

	return ws.WriteTyped(conn, ws.GradedResponse{
		Event:  ws.EventGraded,
		Status: "completed",
		Total:  sub.Report.Total,
		Scores: sub.Report.Scores,
	})
}

package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/model"
	"github.com/quizforge/mocktest-backend/internal/response"
	"github.com/quizforge/mocktest-backend/internal/session"
	"github.com/quizforge/mocktest-backend/internal/validator"
	"github.com/quizforge/mocktest-backend/internal/view"
)

// SessionHandler exposes the quiz session lifecycle over HTTP.
type SessionHandler struct {
	manager        *session.Manager
	warningSeconds int
	log            zerolog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(manager *session.Manager, warningSeconds int, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		manager:        manager,
		warningSeconds: warningSeconds,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// Create godoc
// POST /api/v1/sessions
// Starts a new quiz session: the countdown starts immediately and the
// question fetch runs in the background.
func (h *SessionHandler) Create(c *gin.Context) {
	sess := h.manager.Create()
	response.Success(c, http.StatusCreated, gin.H{
		"session_id": sess.ID(),
		"view":       h.project(sess),
	})
}

// GetView godoc
// GET /api/v1/sessions/:id/view
// Returns the render projection of the session's current state. Covers
// page reload: the client repaints entirely from this.
func (h *SessionHandler) GetView(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, gin.H{"view": h.project(sess)})
}

// Select godoc
// POST /api/v1/sessions/:id/select
// Records an answer for the currently displayed question. The answer map
// update is immediate, not deferred to navigation.
func (h *SessionHandler) Select(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.SelectRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	err := h.manager.Select(c.Request.Context(), sess.ID(), model.OptionLabel(req.Label))
	switch {
	case errors.Is(err, session.ErrSubmitted):
		response.Fail(c, http.StatusConflict, response.ErrSessionSubmitted)
		return
	case errors.Is(err, session.ErrNoQuestions):
		response.Fail(c, http.StatusConflict, response.ErrNoQuestions)
		return
	case err != nil:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"view": h.project(sess)})
}

// Navigate godoc
// POST /api/v1/sessions/:id/navigate
// Moves the cursor one step. Out-of-bounds moves are silent no-ops, so
// this never fails once the session exists.
func (h *SessionHandler) Navigate(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.manager.Navigate(c.Request.Context(), sess.ID(), req.Direction); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"view": h.project(sess)})
}

// Submit godoc
// POST /api/v1/sessions/:id/submit
// Terminal transition to the summary view. Idempotent: submitting an
// already-submitted session returns the same summary.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	summary, err := h.manager.Submit(c.Request.Context(), sess.ID())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary": summary,
		"view":    h.project(sess),
	})
}

// GetSummary godoc
// GET /api/v1/sessions/:id/summary
// Returns the summary of a submitted session.
func (h *SessionHandler) GetSummary(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	if sess.Status() != session.StatusSubmitted {
		response.Fail(c, http.StatusConflict, response.ErrNotSubmitted)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"summary": sess.Summary()})
}

// lookup resolves the :id path param to a live session, writing the error
// response itself on failure.
func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}

	sess, err := h.manager.Get(id)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) project(sess *session.Session) view.View {
	sn := sess.Snapshot()
	var summary *model.Summary
	if sn.Status == session.StatusSubmitted {
		summary = sess.Summary()
	}
	return view.Project(sn, summary, h.warningSeconds)
}

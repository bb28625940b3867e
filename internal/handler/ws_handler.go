package handler

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizforge/mocktest-backend/internal/model"
	"github.com/quizforge/mocktest-backend/internal/session"
	"github.com/quizforge/mocktest-backend/internal/view"
	ws "github.com/quizforge/mocktest-backend/internal/websocket"
)

// ExpiredMessage is the synchronous notification pushed when the
// countdown reaches zero.
const ExpiredMessage = "Time is up! Your test has been submitted automatically."

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
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

// WSHandler streams countdown ticks and accepts session actions over a
// WebSocket connection.
type WSHandler struct {
	manager        *session.Manager
	warningSeconds int
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(manager *session.Manager, warningSeconds int, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		manager:        manager,
		warningSeconds: warningSeconds,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:id/stream
// Pushes a tick event every countdown second and the expiry notification
// at zero; accepts select/navigate/submit/ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	sess, err := h.manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ticks, cancel, err := h.manager.Subscribe(id)
	if err != nil {
		ws.WriteError(conn, "session not found")
		return
	}
	defer cancel()

	wsLog := h.log.With().Str("session_id", id).Logger()
	wsLog.Info().Msg("Client connected")

	// The tick pump and the action loop both write to the connection;
	// gorilla requires a single writer at a time.
	var writeMu sync.Mutex
	send := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteTyped(conn, v)
	}

	// Initial paint so the client renders without a separate HTTP call.
	send(ws.ViewPayload{Event: ws.EventView, View: h.project(sess)})

	done := make(chan struct{})
	defer close(done)

	go h.pumpTicks(sess, ticks, done, send, wsLog)

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

		switch msg.Action {
		case ws.ActionSelect:
			if err := h.manager.Select(c.Request.Context(), id, model.OptionLabel(msg.Label)); err != nil {
				send(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
				continue
			}
			send(ws.ViewPayload{Event: ws.EventView, View: h.project(sess)})
		case ws.ActionNavigate:
			if msg.Direction != -1 && msg.Direction != 1 {
				send(ws.ErrorResponse{Event: ws.EventError, Error: "direction must be -1 or 1"})
				continue
			}
			if err := h.manager.Navigate(c.Request.Context(), id, msg.Direction); err != nil {
				send(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
				continue
			}
			send(ws.ViewPayload{Event: ws.EventView, View: h.project(sess)})
		case ws.ActionSubmit:
			if _, err := h.manager.Submit(c.Request.Context(), id); err != nil {
				send(ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
				continue
			}
			send(ws.ViewPayload{Event: ws.EventView, View: h.project(sess)})
		case ws.ActionPing:
			send(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			send(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(msg.Action)})
		}
	}
}

// pumpTicks forwards countdown events to the client until the session
// expires or the connection goes away.
func (h *WSHandler) pumpTicks(sess *session.Session, ticks <-chan session.TickEvent, done <-chan struct{}, send func(interface{}) error, wsLog zerolog.Logger) {
	for {
		select {
		case <-done:
			return
		case evt, ok := <-ticks:
			if !ok {
				return
			}
			if evt.Expired {
				send(ws.ExpiredPayload{Event: ws.EventExpired, Message: ExpiredMessage})
				send(ws.ViewPayload{Event: ws.EventView, View: h.project(sess)})
				wsLog.Debug().Msg("Expiry pushed")
				return
			}
			send(ws.TickPayload{
				Event:     ws.EventTick,
				Remaining: evt.Remaining,
				Display:   view.FormatClock(evt.Remaining),
				Urgent:    evt.Remaining <= h.warningSeconds,
			})
		}
	}
}

func (h *WSHandler) project(sess *session.Session) view.View {
	sn := sess.Snapshot()
	var summary *model.Summary
	if sn.Status == session.StatusSubmitted {
		summary = sess.Summary()
	}
	return view.Project(sn, summary, h.warningSeconds)
}

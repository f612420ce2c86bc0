package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/pkg/logger"
	"github.com/yiback/gatherly/pkg/response"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

type ParticipantHandler struct {
	participantService *services.ParticipantService
	hub                *services.ParticipantHub
	upgrader           websocket.Upgrader
}

func NewParticipantHandler(participantService *services.ParticipantService, hub *services.ParticipantHub, appURL string) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: participantService,
		hub:                hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameAppOrigin(appURL),
		},
	}
}

// sameAppOrigin accepts requests without an Origin header, from the API host
// itself, or from the configured web app.
func sameAppOrigin(appURL string) func(r *http.Request) bool {
	allowed := ""
	if u, err := url.Parse(appURL); err == nil && u.Host != "" {
		allowed = strings.ToLower(u.Host)
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Host)
		return host == strings.ToLower(r.Host) || (allowed != "" && host == allowed)
	}
}

// PUT /api/events/:id/participants/me
func (h *ParticipantHandler) Respond(c *gin.Context) {
	var req services.RespondRequest
	if !bind(c, &req) {
		return
	}

	participant, err := h.participantService.Respond(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, participant)
}

// DELETE /api/events/:id/participants/me
func (h *ParticipantHandler) Withdraw(c *gin.Context) {
	if err := h.participantService.Withdraw(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GET /api/events/:id/participants
func (h *ParticipantHandler) List(c *gin.Context) {
	participants, err := h.participantService.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, participants)
}

// GET /api/events/:id/participants/stats
func (h *ParticipantHandler) Stats(c *gin.Context) {
	stats, err := h.participantService.Stats(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// streamCaller resolves the caller for EventSource and WebSocket clients,
// which cannot set headers and pass the session as ?token= instead.
func streamCaller(c *gin.Context) string {
	if userID := middleware.GetUserID(c); userID != "" {
		return userID
	}
	if token := c.Query("token"); token != "" {
		if claims, err := utils.ParseToken(token); err == nil {
			return claims.UserID
		}
	}
	return ""
}

// Stream pushes participant changes for one event as Server-Sent Events
// GET /api/events/:id/participants/stream
func (h *ParticipantHandler) Stream(c *gin.Context) {
	userID := streamCaller(c)
	if userID == "" {
		response.Error(c, services.ErrUnauthenticated)
		return
	}
	eventID := c.Param("id")
	if _, err := h.participantService.List(c.Request.Context(), userID, eventID); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.NewString()
	changes := h.hub.Subscribe(eventID, clientID)
	defer h.hub.Unsubscribe(eventID, clientID)

	logger.Info().Str("client_id", clientID).Str("event_id", eventID).
		Int("total", h.hub.ClientCount(eventID)).Msg("participant stream connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case change, ok := <-changes:
			if !ok {
				return false
			}
			data, err := json.Marshal(change)
			if err != nil {
				logger.Error().Err(err).Msg("participant stream marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Type, data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("participant stream disconnected")
			return false
		}
	})
}

// participantFrame is one WebSocket message. Participants always carries the
// full list after the change so clients can render it directly.
type participantFrame struct {
	Type         string               `json:"type"`
	Participant  *models.Participant  `json:"participant,omitempty"`
	Participants []models.Participant `json:"participants"`
}

// Socket sends a snapshot of the participant list, then every change merged
// into it with services.ReconcileParticipants
// GET /api/events/:id/participants/ws
func (h *ParticipantHandler) Socket(c *gin.Context) {
	userID := streamCaller(c)
	if userID == "" {
		response.Error(c, services.ErrUnauthenticated)
		return
	}
	eventID := c.Param("id")

	// Subscribe before the snapshot so no change falls in between.
	clientID := uuid.NewString()
	changes := h.hub.Subscribe(eventID, clientID)
	defer h.hub.Unsubscribe(eventID, clientID)

	list, err := h.participantService.List(c.Request.Context(), userID, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn().Err(err).Str("event_id", eventID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readUntilClosed(conn, closed)

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	if err := writeFrame(conn, participantFrame{Type: "snapshot", Participants: list}); err != nil {
		return
	}

	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return
			}
			list = services.ReconcileParticipants(list, change)
			p := change.Participant
			if err := writeFrame(conn, participantFrame{Type: string(change.Type), Participant: &p, Participants: list}); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, frame participantFrame) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(frame)
}

// readUntilClosed drains client frames so pongs and close messages are
// processed, and closes done when the connection ends.
func readUntilClosed(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

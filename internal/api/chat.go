package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"omnigen/internal/models"
)

func (h *Handler) createSession(c *gin.Context) {
	id, messages, err := h.chat.NewSession(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": id,
		"messages":   messages,
	})
}

func (h *Handler) getTranscript(c *gin.Context) {
	sessionID := c.Param("session_id")
	messages, err := h.chat.Transcript(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// deleteSession drops the transcript and cancels the session's video jobs.
func (h *Handler) deleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")
	if err := h.chat.Reset(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	h.videos.CancelSession(sessionID)
	c.Status(http.StatusNoContent)
}

type chatInput struct {
	Text string `json:"text"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	sessionID := c.Param("session_id")
	var req chatInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prompt := strings.TrimSpace(req.Text)
	if prompt == "" {
		h.fail(c, models.ErrEmptyPrompt)
		return
	}
	if _, err := h.chat.Transcript(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}

	streamCtx, cancel := context.WithTimeout(c.Request.Context(), h.chatTimeout)
	defer cancel()
	sendEvent, ok := startEventStream(c)
	if !ok {
		return
	}
	if err := sendEvent("ack", gin.H{"session_id": sessionID, "text": prompt}); err != nil {
		return
	}
	reply, err := h.chat.Send(streamCtx, sessionID, prompt, func(text string) error {
		return sendEvent("stream", gin.H{"text": text})
	})
	if err != nil {
		payload := gin.H{"error": err.Error()}
		if reply != nil {
			payload["message"] = reply
		}
		_ = sendEvent("error", payload)
		return
	}
	_ = sendEvent("done", gin.H{"message": reply})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// socketFrame is written to websocket chat clients.
type socketFrame struct {
	Type      string              `json:"type"`
	SessionID string              `json:"session_id,omitempty"`
	Text      string              `json:"text,omitempty"`
	Message   *models.ChatMessage `json:"message,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// chatSocket serves one session over a websocket. Each incoming frame is a
// chat turn; replies stream back as "stream" frames then "done" or "error".
func (h *Handler) chatSocket(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.chat.Transcript(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	log := h.logger.With(zap.String("session_id", sessionID))
	if err := conn.WriteJSON(socketFrame{Type: "connected", SessionID: sessionID}); err != nil {
		return
	}
	ctx := c.Request.Context()
	for {
		var in chatInput
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
		turnCtx, cancel := context.WithTimeout(ctx, h.chatTimeout)
		reply, sendErr := h.chat.Send(turnCtx, sessionID, in.Text, func(text string) error {
			return conn.WriteJSON(socketFrame{Type: "stream", Text: text})
		})
		cancel()
		frame := socketFrame{Type: "done", Message: reply}
		if sendErr != nil {
			frame = socketFrame{Type: "error", Message: reply, Error: sendErr.Error()}
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Warn("websocket write failed", zap.Error(err))
			return
		}
		if errors.Is(sendErr, models.ErrSessionNotFound) {
			return
		}
	}
}

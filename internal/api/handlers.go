package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"omnigen/internal/credential"
	"omnigen/internal/models"
	"omnigen/internal/service/chat"
	"omnigen/internal/service/image"
	"omnigen/internal/service/speech"
	"omnigen/internal/wav"
	"omnigen/internal/worker"
)

// VideoJobs runs video generations in the background.
type VideoJobs interface {
	Submit(ctx context.Context, sessionID string, req models.VideoRequest) (*models.VideoJob, error)
	Get(id string) (*models.VideoJob, error)
	Content(id string) ([]byte, *models.VideoJob, error)
	Subscribe(id string) (<-chan models.VideoJob, func(), error)
	CancelSession(sessionID string) int
	Stats() worker.Stats
}

// KeySelection is the server side of the video credential selection flow.
type KeySelection interface {
	HasSelectedKey(ctx context.Context) (bool, error)
	Requests() int
	Select(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Services groups what the handlers dispatch to.
type Services struct {
	Chat        *chat.Service
	Images      *image.Service
	Speech      *speech.Service
	Videos      VideoJobs
	Credentials KeySelection
}

const defaultMaxUploadBytes = 10 << 20 // 10 MB

// Handler wires HTTP routes to the studio services.
type Handler struct {
	chat        *chat.Service
	images      *image.Service
	speech      *speech.Service
	videos      VideoJobs
	credentials KeySelection
	maxUpload   int64
	chatTimeout time.Duration
	logger      *zap.Logger
}

// NewHandler constructs a Handler instance. maxUpload bounds request bodies
// carrying reference images.
func NewHandler(svc Services, maxUpload int64, logger *zap.Logger) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		chat:        svc.Chat,
		images:      svc.Images,
		speech:      svc.Speech,
		videos:      svc.Videos,
		credentials: svc.Credentials,
		maxUpload:   maxUpload,
		chatTimeout: 2 * time.Minute,
		logger:      logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/health", h.health)

	chatRoutes := api.Group("/chat/sessions")
	chatRoutes.POST("", h.createSession)
	chatRoutes.GET("/:session_id", h.getTranscript)
	chatRoutes.DELETE("/:session_id", h.deleteSession)
	chatRoutes.POST("/:session_id/messages", h.sendMessage)
	chatRoutes.GET("/:session_id/ws", h.chatSocket)

	api.POST("/images", h.generateImage)
	api.POST("/speech", h.synthesizeSpeech)
	api.POST("/speech/encode", h.encodeSpeech)

	videoRoutes := api.Group("/videos")
	videoRoutes.POST("", h.submitVideo)
	videoRoutes.GET("/:job_id", h.getVideo)
	videoRoutes.GET("/:job_id/events", h.videoEvents)
	videoRoutes.GET("/:job_id/content", h.videoContent)

	creds := api.Group("/credentials/video")
	creds.GET("", h.getCredential)
	creds.PUT("", h.putCredential)
	creds.DELETE("", h.deleteCredential)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"videos": h.videos.Stats(),
	})
}

const busyMessage = "server is busy, please retry"

// statusFor maps service errors onto HTTP status codes. Anything unknown is
// treated as an upstream failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrEmptyPrompt),
		errors.Is(err, models.ErrInvalidAspectRatio),
		errors.Is(err, models.ErrInvalidResolution),
		errors.Is(err, models.ErrInvalidVoice),
		errors.Is(err, models.ErrInvalidImage),
		errors.Is(err, wav.ErrEmptyBuffer),
		errors.Is(err, wav.ErrInvalidBuffer),
		errors.Is(err, credential.ErrEmptyKey):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrKeySelection), errors.Is(err, models.ErrKeyRejected):
		return http.StatusPreconditionFailed
	case errors.Is(err, models.ErrDispatcherBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrSessionNotFound), errors.Is(err, models.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrJobNotFinished), errors.Is(err, models.ErrJobFailed):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func errorMessage(err error) string {
	if errors.Is(err, models.ErrDispatcherBusy) {
		return busyMessage
	}
	return err.Error()
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": errorMessage(err)})
}

type eventSender func(event string, payload interface{}) error

// startEventStream switches the response to server-sent events.
func startEventStream(c *gin.Context) (eventSender, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return nil, false
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	return func(event string, payload interface{}) error {
		var data []byte
		switch v := payload.(type) {
		case string:
			data = []byte(v)
		default:
			var err error
			data, err = json.Marshal(v)
			if err != nil {
				return err
			}
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}, true
}

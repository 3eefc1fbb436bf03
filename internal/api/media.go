package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"omnigen/internal/models"
)

// generationInput is accepted as JSON or as a multipart form. In JSON the
// reference image is base64 (optionally a data URL); in a form it is the
// "image" file part.
type generationInput struct {
	Prompt      string `json:"prompt" form:"prompt"`
	AspectRatio string `json:"aspect_ratio" form:"aspect_ratio"`
	Resolution  string `json:"resolution" form:"resolution"`
	SessionID   string `json:"session_id" form:"session_id"`
	Image       string `json:"image"`
	MimeType    string `json:"mime_type"`
}

var (
	errBadBody      = errors.New("invalid request body")
	errBadForm      = errors.New("invalid multipart form")
	errFileTooLarge = errors.New("file too large")
)

func bodyError(err, fallback error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errFileTooLarge
	}
	return fallback
}

// bodySlack covers form fields and multipart framing around an upload.
const bodySlack = 64 << 10

// bodyLimit caps request bodies so an upload of maxUpload bytes still fits
// once base64 encoded.
func (h *Handler) bodyLimit() int64 {
	return h.maxUpload + h.maxUpload/3 + bodySlack
}

func (h *Handler) bindGeneration(c *gin.Context) (*generationInput, *models.InlineImage, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.bodyLimit())
	var in generationInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
			return nil, nil, bodyError(err, errBadForm)
		}
		if err := c.ShouldBind(&in); err != nil {
			return nil, nil, errBadBody
		}
		img, err := h.formImage(c)
		if err != nil {
			return nil, nil, err
		}
		return &in, img, nil
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		return nil, nil, bodyError(err, errBadBody)
	}
	img, err := models.DecodeInlineImage(in.Image, in.MimeType)
	if err != nil {
		return nil, nil, err
	}
	if img != nil && int64(len(img.Data)) > h.maxUpload {
		return nil, nil, errFileTooLarge
	}
	return &in, img, nil
}

func (h *Handler) formImage(c *gin.Context) (*models.InlineImage, error) {
	file, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errBadBody
	}
	if file.Size > h.maxUpload {
		return nil, errFileTooLarge
	}
	f, err := file.Open()
	if err != nil {
		return nil, errBadBody
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUpload))
	if err != nil {
		return nil, errBadBody
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	img := &models.InlineImage{Data: data, MimeType: http.DetectContentType(sniff)}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// failBind reports request decoding problems.
func (h *Handler) failBind(c *gin.Context, err error) {
	if errors.Is(err, errFileTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func (h *Handler) generateImage(c *gin.Context) {
	in, img, err := h.bindGeneration(c)
	if err != nil {
		h.failBind(c, err)
		return
	}
	res, err := h.images.Generate(c.Request.Context(), models.ImageRequest{
		Prompt:      in.Prompt,
		AspectRatio: in.AspectRatio,
		BaseImage:   img,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// synthesizeSpeech answers with the WAV file, or with a GenerationResult
// carrying a data URL when ?format=json.
func (h *Handler) synthesizeSpeech(c *gin.Context) {
	var req models.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	res, err := h.speech.Synthesize(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.writeAudio(c, res)
}

type encodeInput struct {
	PCM        string `json:"pcm"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// encodeSpeech wraps raw base64 PCM, as the speech model returns it, in a
// WAV container.
func (h *Handler) encodeSpeech(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.bodyLimit())
	var in encodeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.failBind(c, bodyError(err, errBadBody))
		return
	}
	res, err := h.speech.EncodeBase64(in.PCM, in.SampleRate, in.Channels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.writeAudio(c, res)
}

func (h *Handler) writeAudio(c *gin.Context, res *models.GenerationResult) {
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, res)
		return
	}
	c.Data(http.StatusOK, res.MimeType, res.Data)
}

func (h *Handler) submitVideo(c *gin.Context) {
	in, img, err := h.bindGeneration(c)
	if err != nil {
		h.failBind(c, err)
		return
	}
	job, err := h.videos.Submit(c.Request.Context(), in.SessionID, models.VideoRequest{
		Prompt:      in.Prompt,
		Resolution:  in.Resolution,
		AspectRatio: in.AspectRatio,
		Image:       img,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Location", "/api/videos/"+job.ID)
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) getVideo(c *gin.Context) {
	job, err := h.videos.Get(c.Param("job_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// videoEvents streams job snapshots as "progress" events until the job
// ends with "done" or "error".
func (h *Handler) videoEvents(c *gin.Context) {
	updates, stop, err := h.videos.Subscribe(c.Param("job_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer stop()
	sendEvent, ok := startEventStream(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case job, open := <-updates:
			if !open {
				return
			}
			event := "progress"
			switch job.Status {
			case models.JobSucceeded:
				event = "done"
			case models.JobFailed:
				event = "error"
			}
			if err := sendEvent(event, job); err != nil {
				return
			}
			if job.Status.Terminal() {
				return
			}
		}
	}
}

func (h *Handler) videoContent(c *gin.Context) {
	data, job, err := h.videos.Content(c.Param("job_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	mimeType := job.MimeType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	c.Data(http.StatusOK, mimeType, data)
}

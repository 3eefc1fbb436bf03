package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"omnigen/internal/config"
	"omnigen/internal/models"
)

const (
	modalityAudio = "AUDIO"
	roleUser      = "user"
	editPrefix    = "Edit this image: "
)

// GeminiBackend implements Backend with the genai SDK.
type GeminiBackend struct {
	apiKey  string
	baseURL string
	models  config.ModelConfig
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewGeminiBackend builds a backend for the configured default credential.
func NewGeminiBackend(cfg *config.Config, logger *zap.Logger) (*GeminiBackend, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiBackend{
		apiKey:  cfg.Gemini.APIKey,
		baseURL: cfg.Gemini.BaseURL,
		models:  cfg.Models,
		logger:  logger,
		clients: make(map[string]*genai.Client),
	}, nil
}

// Client returns the genai client bound to apiKey, creating it on first use.
// An empty apiKey selects the default credential.
func (b *GeminiBackend) Client(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		apiKey = b.apiKey
	}
	if apiKey == "" {
		return nil, models.ErrMissingCredential
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if client, ok := b.clients[apiKey]; ok {
		return client, nil
	}
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if b.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: b.baseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	b.clients[apiKey] = client
	return client, nil
}

func (b *GeminiBackend) GenerateImage(ctx context.Context, req models.ImageRequest) (*Image, error) {
	client, err := b.Client(ctx, "")
	if err != nil {
		return nil, err
	}
	var parts []*genai.Part
	if req.BaseImage != nil {
		parts = append(parts,
			&genai.Part{InlineData: &genai.Blob{Data: req.BaseImage.Data, MIMEType: req.BaseImage.MimeType}},
			&genai.Part{Text: editPrefix + req.Prompt},
		)
	} else {
		parts = append(parts, &genai.Part{Text: req.Prompt})
	}
	resp, err := client.Models.GenerateContent(ctx, b.models.Image,
		[]*genai.Content{{Role: roleUser, Parts: parts}},
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: req.AspectRatio},
		})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	for _, part := range firstParts(resp) {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &Image{Data: part.InlineData.Data, MimeType: mime}, nil
		}
	}
	return nil, models.ErrNoImageData
}

func (b *GeminiBackend) SubmitVideo(ctx context.Context, apiKey string, req models.VideoRequest) (models.JobHandle, error) {
	client, err := b.Client(ctx, apiKey)
	if err != nil {
		return models.JobHandle{}, err
	}
	var image *genai.Image
	if req.Image != nil {
		image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MimeType}
	}
	op, err := client.Models.GenerateVideos(ctx, b.models.Video, req.Prompt, image, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	})
	if err != nil {
		return models.JobHandle{}, fmt.Errorf("submit video: %w", err)
	}
	handle := handleFromOperation(op)
	b.logger.Debug("video operation submitted", zap.String("operation", handle.Name))
	return handle, nil
}

func (b *GeminiBackend) CheckVideo(ctx context.Context, apiKey string, handle models.JobHandle) (models.JobHandle, error) {
	client, err := b.Client(ctx, apiKey)
	if err != nil {
		return handle, err
	}
	op, err := client.Operations.GetVideosOperation(ctx, &genai.GenerateVideosOperation{Name: handle.Name}, nil)
	if err != nil {
		return handle, fmt.Errorf("check video operation %s: %w", handle.Name, err)
	}
	return handleFromOperation(op), nil
}

func (b *GeminiBackend) SynthesizeSpeech(ctx context.Context, req models.SpeechRequest) ([]byte, error) {
	client, err := b.Client(ctx, "")
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.GenerateContent(ctx, b.models.Speech,
		[]*genai.Content{{Role: roleUser, Parts: []*genai.Part{{Text: req.Text}}}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{modalityAudio},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: req.Voice},
				},
			},
		})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	parts := firstParts(resp)
	if len(parts) == 0 || parts[0].InlineData == nil || len(parts[0].InlineData.Data) == 0 {
		return nil, models.ErrNoAudioData
	}
	return parts[0].InlineData.Data, nil
}

func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}
	return cand.Content.Parts
}

func handleFromOperation(op *genai.GenerateVideosOperation) models.JobHandle {
	if op == nil {
		return models.JobHandle{}
	}
	handle := models.JobHandle{Name: op.Name, Done: op.Done}
	if len(op.Error) > 0 {
		if msg, ok := op.Error["message"].(string); ok && msg != "" {
			handle.Error = msg
		} else {
			handle.Error = fmt.Sprint(op.Error)
		}
	}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0]; v != nil && v.Video != nil {
			handle.VideoURI = v.Video.URI
		}
	}
	return handle
}

// Package chat implements text chat mode over an eino chat model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"omnigen/internal/models"
)

const systemInstruction = `You are OmniGen, an advanced AI creative assistant.
Rules:
1. Use simple, clear language unless advanced terms are requested.
2. No harmful, illegal, or unsafe content.
3. Structure outputs logically (headings, bullet points).
4. For Video requests: Provide complete AI video prompts + scene breakdowns.
5. For Image requests: Provide detailed image prompts.
6. For Audio/Voice: Provide dialogue + tone + mood instructions.`

// EmptyReplyText stands in for a reply with no text.
const EmptyReplyText = "No response generated."

// Service runs chat turns. Turns within one session are serialized.
type Service struct {
	model  model.BaseChatModel
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(chatModel model.BaseChatModel, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		model:  chatModel,
		store:  store,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// NewSession starts a transcript and returns its id and initial messages.
func (s *Service) NewSession(ctx context.Context) (string, []*models.ChatMessage, error) {
	return s.store.Create(ctx)
}

func (s *Service) Transcript(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	return s.store.Load(ctx, sessionID)
}

// Reset discards the transcript.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
	return nil
}

// Send appends prompt to the transcript and streams the model reply. onChunk
// receives the accumulated reply text. When the model fails the returned
// message is the error-flagged reply that was appended, along with the error.
func (s *Service) Send(ctx context.Context, sessionID, prompt string, onChunk func(string) error) (*models.ChatMessage, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, models.ErrEmptyPrompt
	}
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	history, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	userMsg := models.NewChatMessage(models.RoleUser, prompt)
	if err := s.store.Append(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}

	text, err := s.stream(ctx, convertMessages(history, userMsg), onChunk)
	if err != nil {
		// Every user turn gets a reply, even when the consumer went away.
		if errors.Is(err, errCallback) {
			s.logger.Warn("chat consumer stopped", zap.String("session_id", sessionID), zap.Error(err))
		} else {
			s.logger.Error("chat turn failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		errMsg := models.NewErrorMessage()
		if appendErr := s.store.Append(context.WithoutCancel(ctx), sessionID, errMsg); appendErr != nil {
			s.logger.Warn("append error message failed", zap.Error(appendErr))
		}
		return errMsg, err
	}
	if strings.TrimSpace(text) == "" {
		text = EmptyReplyText
	}
	reply := models.NewChatMessage(models.RoleModel, text)
	if err := s.store.Append(ctx, sessionID, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

var errCallback = errors.New("chat stream consumer stopped")

func (s *Service) stream(ctx context.Context, msgs []*schema.Message, onChunk func(string) error) (string, error) {
	reader, err := s.model.Stream(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("start chat stream: %w", err)
	}
	defer reader.Close()

	var full strings.Builder
	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("receive chat stream: %w", err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		full.WriteString(chunk.Content)
		if onChunk != nil {
			if err := onChunk(full.String()); err != nil {
				return "", fmt.Errorf("%w: %w", errCallback, err)
			}
		}
	}
	return full.String(), nil
}

func convertMessages(history []*models.ChatMessage, latest *models.ChatMessage) []*schema.Message {
	out := make([]*schema.Message, 0, len(history)+2)
	out = append(out, schema.SystemMessage(systemInstruction))
	for _, msg := range append(history, latest) {
		role := schema.User
		if msg.Role == models.RoleModel {
			role = schema.Assistant
		}
		out = append(out, &schema.Message{Role: role, Content: msg.Text})
	}
	return out
}

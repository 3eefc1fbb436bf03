package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"omnigen/internal/models"
	"omnigen/internal/redis"
)

// Store keeps chat transcripts for the lifetime of a session.
type Store interface {
	// Create starts a transcript holding the welcome message.
	Create(ctx context.Context) (string, []*models.ChatMessage, error)
	Load(ctx context.Context, sessionID string) ([]*models.ChatMessage, error)
	Append(ctx context.Context, sessionID string, msgs ...*models.ChatMessage) error
	Delete(ctx context.Context, sessionID string) error
}

type memoryTranscript struct {
	messages []*models.ChatMessage
	touched  time.Time
}

// MemoryStore holds transcripts in process. Idle transcripts are dropped
// by Sweep once ttl has passed.
type MemoryStore struct {
	ttl time.Duration

	mu       sync.RWMutex
	sessions map[string]*memoryTranscript
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, sessions: make(map[string]*memoryTranscript)}
}

func (s *MemoryStore) Create(context.Context) (string, []*models.ChatMessage, error) {
	id := uuid.New().String()
	msgs := []*models.ChatMessage{models.WelcomeMessage()}
	s.mu.Lock()
	s.sessions[id] = &memoryTranscript{messages: msgs, touched: time.Now()}
	s.mu.Unlock()
	return id, cloneMessages(msgs), nil
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.sessions[sessionID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	tr.touched = time.Now()
	return cloneMessages(tr.messages), nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, msgs ...*models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.sessions[sessionID]
	if !ok {
		return models.ErrSessionNotFound
	}
	tr.messages = append(tr.messages, msgs...)
	tr.touched = time.Now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return models.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// Sweep removes transcripts idle since before now-ttl and reports how many.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, tr := range s.sessions {
		if now.Sub(tr.touched) > s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func cloneMessages(msgs []*models.ChatMessage) []*models.ChatMessage {
	out := make([]*models.ChatMessage, len(msgs))
	for i, m := range msgs {
		cp := *m
		out[i] = &cp
	}
	return out
}

const transcriptPrefix = "omnigen:chat:"

// RedisStore keeps each transcript as a redis list of JSON messages whose
// TTL is refreshed on every append.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func transcriptKey(sessionID string) string {
	return transcriptPrefix + sessionID
}

func (s *RedisStore) Create(ctx context.Context) (string, []*models.ChatMessage, error) {
	id := uuid.New().String()
	msgs := []*models.ChatMessage{models.WelcomeMessage()}
	if err := s.Append(ctx, id, msgs...); err != nil {
		return "", nil, err
	}
	return id, msgs, nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	raw, err := s.client.List(ctx, transcriptKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	if len(raw) == 0 {
		return nil, models.ErrSessionNotFound
	}
	msgs := make([]*models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode transcript message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...*models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode transcript message: %w", err)
		}
		values = append(values, data)
	}
	if err := s.client.AppendList(ctx, transcriptKey(sessionID), s.ttl, values...); err != nil {
		return fmt.Errorf("save transcript: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	ok, err := s.client.Exists(ctx, transcriptKey(sessionID))
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if !ok {
		return models.ErrSessionNotFound
	}
	return s.client.Del(ctx, transcriptKey(sessionID))
}

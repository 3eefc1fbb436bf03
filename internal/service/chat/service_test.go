package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"omnigen/internal/models"
	"omnigen/internal/redis/redistest"
)

type fakeModel struct {
	chunks    []string
	streamErr error
	seen      [][]*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(f.chunks, ""), nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.seen = append(f.seen, input)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func TestSendStreamsAndAppends(t *testing.T) {
	ctx := context.Background()
	fm := &fakeModel{chunks: []string{"Once ", "upon ", "a time"}}
	svc := NewService(fm, NewMemoryStore(time.Hour), nil)
	id, initial, err := svc.NewSession(ctx)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if len(initial) != 1 || initial[0].ID != models.WelcomeMessageID {
		t.Fatalf("transcript should start with the welcome message: %+v", initial)
	}

	var streamed []string
	reply, err := svc.Send(ctx, id, "  tell me a story ", func(full string) error {
		streamed = append(streamed, full)
		return nil
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Text != "Once upon a time" || reply.Role != models.RoleModel {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if len(streamed) != 3 || streamed[2] != "Once upon a time" {
		t.Fatalf("unexpected stream %v", streamed)
	}

	sent := fm.seen[0]
	if sent[0].Role != schema.System || !strings.Contains(sent[0].Content, "You are OmniGen") {
		t.Fatalf("system instruction missing: %+v", sent[0])
	}
	if len(sent) != 3 || sent[1].Role != schema.Assistant || sent[2].Content != "tell me a story" {
		t.Fatalf("unexpected history sent upstream: %+v", sent)
	}

	transcript, err := svc.Transcript(ctx, id)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("want 3 messages, got %d", len(transcript))
	}
	if transcript[1].Role != models.RoleUser || transcript[2].ID != reply.ID {
		t.Fatalf("unexpected transcript order: %+v", transcript)
	}
}

func TestSendUpstreamFailureAppendsErrorMessage(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("quota exceeded")
	svc := NewService(&fakeModel{streamErr: boom}, NewMemoryStore(time.Hour), nil)
	id, _, _ := svc.NewSession(ctx)

	msg, err := svc.Send(ctx, id, "hello", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("want upstream error, got %v", err)
	}
	if msg == nil || !msg.IsError || msg.Text != models.ChatErrorText {
		t.Fatalf("want error-flagged message, got %+v", msg)
	}
	transcript, _ := svc.Transcript(ctx, id)
	last := transcript[len(transcript)-1]
	if !last.IsError || last.ID != msg.ID {
		t.Fatalf("error message not appended: %+v", last)
	}
}

func TestSendConsumerFailureKeepsTurnsPaired(t *testing.T) {
	ctx := context.Background()
	fm := &fakeModel{chunks: []string{"partial ", "reply"}}
	svc := NewService(fm, NewMemoryStore(time.Hour), nil)
	id, _, _ := svc.NewSession(ctx)

	gone := errors.New("client disconnected")
	msg, err := svc.Send(ctx, id, "first", func(string) error { return gone })
	if !errors.Is(err, gone) {
		t.Fatalf("want consumer error, got %v", err)
	}
	if msg == nil || !msg.IsError {
		t.Fatalf("want error-flagged reply, got %+v", msg)
	}

	if _, err := svc.Send(ctx, id, "second", nil); err != nil {
		t.Fatalf("second send: %v", err)
	}
	sent := fm.seen[1]
	for i := 2; i < len(sent); i++ {
		if sent[i].Role == schema.User && sent[i-1].Role == schema.User {
			t.Fatalf("history has consecutive user turns: %+v", sent)
		}
	}
	transcript, _ := svc.Transcript(ctx, id)
	if len(transcript) != 5 || !transcript[2].IsError {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
}

func TestSendEmptyReply(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeModel{}, NewMemoryStore(time.Hour), nil)
	id, _, _ := svc.NewSession(ctx)
	reply, err := svc.Send(ctx, id, "hello", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Text != EmptyReplyText {
		t.Fatalf("want %q, got %q", EmptyReplyText, reply.Text)
	}
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeModel{chunks: []string{"hi"}}, NewMemoryStore(time.Hour), nil)
	id, _, _ := svc.NewSession(ctx)
	if _, err := svc.Send(ctx, id, "   ", nil); !errors.Is(err, models.ErrEmptyPrompt) {
		t.Fatalf("want ErrEmptyPrompt, got %v", err)
	}
	if _, err := svc.Send(ctx, "missing", "hi", nil); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestResetDropsTranscript(t *testing.T) {
	ctx := context.Background()
	svc := NewService(&fakeModel{chunks: []string{"hi"}}, NewMemoryStore(time.Hour), nil)
	id, _, _ := svc.NewSession(ctx)
	if err := svc.Reset(ctx, id); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Transcript(ctx, id); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound after reset, got %v", err)
	}
	if err := svc.Reset(ctx, id); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("second reset: %v", err)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	id, _, _ := store.Create(ctx)
	if n := store.Sweep(time.Now()); n != 0 {
		t.Fatalf("fresh transcript swept")
	}
	if n := store.Sweep(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("want 1 swept, got %d", n)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStoreTranscript(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(redistest.NewClient(t), time.Minute)
	svc := NewService(&fakeModel{chunks: []string{"pong"}}, store, nil)

	id, _, err := svc.NewSession(ctx)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := svc.Send(ctx, id, "ping", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	transcript, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(transcript) != 3 || transcript[2].Text != "pong" {
		t.Fatalf("unexpected transcript %+v", transcript)
	}
	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, id); !errors.Is(err, models.ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

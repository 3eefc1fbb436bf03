package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"omnigen/internal/models"
	"omnigen/internal/service/chat"
	"omnigen/internal/wav"
)

type fakeModel struct {
	chunks    []string
	streamErr error
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(f.chunks, ""), nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func newTestREPL(m *fakeModel, input string) (*repl, *bytes.Buffer) {
	var out bytes.Buffer
	return &repl{
		chat: chat.NewService(m, chat.NewMemoryStore(time.Hour), nil),
		in:   strings.NewReader(input),
		out:  &out,
	}, &out
}

func TestREPLStreamsReplies(t *testing.T) {
	r, out := newTestREPL(&fakeModel{chunks: []string{"Once ", "upon ", "a time"}}, "tell me a story\n/exit\n")
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "I'm OmniGen") {
		t.Fatalf("welcome message missing:\n%s", got)
	}
	if strings.Count(got, "Once upon a time") != 1 {
		t.Fatalf("reply should be printed exactly once:\n%s", got)
	}
	transcript, err := r.chat.Transcript(context.Background(), r.sessionID)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(transcript) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(transcript))
	}
}

func TestREPLRendersMarkdown(t *testing.T) {
	r, out := newTestREPL(&fakeModel{chunks: []string{"**bold**"}}, "hi\n")
	var rendered []string
	r.render = func(s string) (string, error) {
		rendered = append(rendered, s)
		return "<" + s + ">\n", nil
	}
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rendered) != 1 || rendered[0] != "**bold**" {
		t.Fatalf("expected the reply to be rendered once, got %v", rendered)
	}
	if !strings.Contains(out.String(), "<**bold**>") {
		t.Fatalf("rendered reply missing:\n%s", out.String())
	}
}

func TestREPLShowsErrorsAndContinues(t *testing.T) {
	m := &fakeModel{streamErr: errors.New("upstream down")}
	r, out := newTestREPL(m, "first\nsecond\n")
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(out.String(), models.ChatErrorText); n != 2 {
		t.Fatalf("expected two error replies, got %d:\n%s", n, out.String())
	}
}

func TestREPLReset(t *testing.T) {
	r, _ := newTestREPL(&fakeModel{chunks: []string{"ok"}}, "hello\n/reset\n")
	if err := r.run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	transcript, err := r.chat.Transcript(context.Background(), r.sessionID)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(transcript) != 1 || transcript[0].ID != models.WelcomeMessageID {
		t.Fatalf("reset should leave a fresh transcript, got %+v", transcript)
	}
}

func TestReadImage(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "frame.png")
	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	img, err := readImage(pngPath)
	if err != nil {
		t.Fatalf("read image: %v", err)
	}
	if img.MimeType != "image/png" || !bytes.Equal(img.Data, png) {
		t.Fatalf("unexpected image %+v", img.MimeType)
	}

	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("just text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readImage(txtPath); !errors.Is(err, models.ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestWriteFile(t *testing.T) {
	var stdout bytes.Buffer
	if err := writeFile(&stdout, "-", []byte("RIFF")); err != nil || stdout.String() != "RIFF" {
		t.Fatalf("stdout write: %q %v", stdout.String(), err)
	}
	path := filepath.Join(t.TempDir(), "out.wav")
	if err := writeFile(&stdout, path, []byte("RIFF")); err != nil {
		t.Fatalf("file write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "RIFF" {
		t.Fatalf("unexpected file content %q %v", data, err)
	}
}

func TestRootCommand(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"serve", "chat", "image", "video", "speak"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("subcommand %s missing: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("debug") == nil {
		t.Fatalf("persistent flags missing")
	}

	t.Setenv("GEMINI_API_KEY", "")
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.json"), "speak", "hi"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	if err == nil {
		t.Fatalf("expected startup to fail without GEMINI_API_KEY")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("error should name the missing key, got %v", err)
	}
}

func TestDescribeWAV(t *testing.T) {
	data, err := wav.Encode(wav.NewBuffer(wav.SpeechSampleRate, 1, 12000))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var out bytes.Buffer
	if err := describeWAV(&out, data); err != nil {
		t.Fatalf("describe: %v", err)
	}
	if got, want := out.String(), "1 channel(s), 24000 Hz, 16-bit, 12000 frames, 0.50s\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if err := describeWAV(&out, []byte("not audio")); !errors.Is(err, wav.ErrInvalidHeader) {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
}

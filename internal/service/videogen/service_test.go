package videogen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"omnigen/internal/credential"
	"omnigen/internal/models"
	"omnigen/internal/upstream/upstreamtest"
	"omnigen/internal/video"
)

func newVideoServer(t *testing.T, downloads *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(downloads, 1)
		if r.URL.Query().Get("key") != "billing-key" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateEndToEnd(t *testing.T) {
	var downloads int32
	srv := newVideoServer(t, &downloads)
	backend := &upstreamtest.Backend{
		Submitted: models.JobHandle{Name: "operations/1"},
		Checks: []models.JobHandle{
			{Name: "operations/1"},
			{Name: "operations/1"},
			{Name: "operations/1", Done: true, VideoURI: srv.URL + "/files/1:download?alt=media"},
		},
	}
	svc := NewService(backend, credential.NewGate("billing-key"), video.NewPoller(time.Millisecond), video.NewFetcher(srv.Client()), nil)

	var stages []string
	res, err := svc.Generate(context.Background(), models.VideoRequest{Prompt: "a drone over fjords"}, func(s string) {
		stages = append(stages, s)
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if string(res.Data) != "mp4" || res.MimeType != "video/mp4" {
		t.Fatalf("unexpected result %+v", res)
	}
	if backend.Checked() != 3 {
		t.Fatalf("want 3 status checks, got %d", backend.Checked())
	}
	if downloads != 1 {
		t.Fatalf("want 1 download, got %d", downloads)
	}
	if len(stages) == 0 || stages[0] != video.FirstStage() {
		t.Fatalf("unexpected stages %v", stages)
	}
	if req := backend.VideoReqs[0]; req.Resolution != "720p" || req.AspectRatio != "16:9" {
		t.Fatalf("defaults not applied: %+v", req)
	}
	if backend.VideoKeys[0] != "billing-key" {
		t.Fatalf("submit used key %q", backend.VideoKeys[0])
	}
}

func TestGenerateStageAdvances(t *testing.T) {
	var downloads int32
	srv := newVideoServer(t, &downloads)
	backend := &upstreamtest.Backend{
		Submitted: models.JobHandle{Name: "op"},
		Checks: []models.JobHandle{
			{Name: "op"},
			{Name: "op", Done: true, VideoURI: srv.URL + "/v"},
		},
	}
	svc := NewService(backend, credential.NewGate("billing-key"), video.NewPoller(time.Millisecond), video.NewFetcher(srv.Client()), nil)
	base := time.Now()
	calls := 0
	svc.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 20 * time.Second)
	}
	var stages []string
	if _, err := svc.Generate(context.Background(), models.VideoRequest{Prompt: "x"}, func(s string) { stages = append(stages, s) }); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(stages) < 2 || stages[1] == stages[0] {
		t.Fatalf("stage never advanced: %v", stages)
	}
}

func TestGenerateMissingCredentialFailsFast(t *testing.T) {
	backend := &upstreamtest.Backend{}
	svc := NewService(backend, credential.NewGate(""), video.NewPoller(time.Millisecond), nil, nil)
	_, err := svc.Generate(context.Background(), models.VideoRequest{Prompt: "x"}, nil)
	if !errors.Is(err, models.ErrMissingCredential) {
		t.Fatalf("want ErrMissingCredential, got %v", err)
	}
	if len(backend.VideoReqs) != 0 {
		t.Fatalf("upstream called without credential")
	}
}

func TestGenerateNoURIIsNotDownloadFailure(t *testing.T) {
	var downloads int32
	srv := newVideoServer(t, &downloads)
	backend := &upstreamtest.Backend{
		Submitted: models.JobHandle{Name: "op"},
		Checks:    []models.JobHandle{{Name: "op", Done: true}},
	}
	svc := NewService(backend, credential.NewGate("billing-key"), video.NewPoller(time.Millisecond), video.NewFetcher(srv.Client()), nil)
	_, err := svc.Generate(context.Background(), models.VideoRequest{Prompt: "x"}, nil)
	if !errors.Is(err, models.ErrNoVideoURI) || errors.Is(err, models.ErrVideoDownload) {
		t.Fatalf("want ErrNoVideoURI only, got %v", err)
	}
	if downloads != 0 {
		t.Fatalf("download attempted without uri")
	}
}

func TestGenerateDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()
	backend := &upstreamtest.Backend{
		Submitted: models.JobHandle{Name: "op", Done: true, VideoURI: srv.URL + "/v"},
	}
	svc := NewService(backend, credential.NewGate("k"), video.NewPoller(time.Millisecond), video.NewFetcher(srv.Client()), nil)
	_, err := svc.Generate(context.Background(), models.VideoRequest{Prompt: "x"}, nil)
	if !errors.Is(err, models.ErrVideoDownload) || errors.Is(err, models.ErrNoVideoURI) {
		t.Fatalf("want ErrVideoDownload only, got %v", err)
	}
	if backend.Checked() != 0 {
		t.Fatalf("done handle was polled")
	}
}

func TestGenerateMapsRejectedKey(t *testing.T) {
	backend := &upstreamtest.Backend{SubmitErr: errors.New("Error 404: Requested entity was not found.")}
	svc := NewService(backend, credential.NewGate("k"), video.NewPoller(time.Millisecond), nil, nil)
	_, err := svc.Generate(context.Background(), models.VideoRequest{Prompt: "x"}, nil)
	if !errors.Is(err, models.ErrKeyRejected) {
		t.Fatalf("want ErrKeyRejected, got %v", err)
	}
}

func TestGenerateImageOnlyRequest(t *testing.T) {
	backend := &upstreamtest.Backend{SubmitErr: errors.New("stop here")}
	svc := NewService(backend, credential.NewGate("k"), video.NewPoller(time.Millisecond), nil, nil)
	img := &models.InlineImage{Data: []byte("png"), MimeType: "image/png"}
	_, err := svc.Generate(context.Background(), models.VideoRequest{Image: img}, nil)
	if err == nil || errors.Is(err, models.ErrEmptyPrompt) {
		t.Fatalf("image-only request should reach upstream, got %v", err)
	}
	if backend.VideoReqs[0].Image != img {
		t.Fatalf("start image not forwarded")
	}
}

package video

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"omnigen/internal/models"
)

// MaxVideoBytes caps a single download.
const MaxVideoBytes = 512 << 20

// Fetcher downloads finished videos. The locator needs the API key as a
// "key" query parameter.
type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Fetcher{client: client}
}

// Fetch returns the video bytes and their content type. Any failure is
// reported as ErrVideoDownload.
func (f *Fetcher) Fetch(ctx context.Context, uri, apiKey string) ([]byte, string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, "", fmt.Errorf("%w: parse uri: %v", models.ErrVideoDownload, err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrVideoDownload, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrVideoDownload, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: status %d", models.ErrVideoDownload, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxVideoBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read body: %v", models.ErrVideoDownload, err)
	}
	if len(data) > MaxVideoBytes {
		return nil, "", fmt.Errorf("%w: video exceeds %d bytes", models.ErrVideoDownload, MaxVideoBytes)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = "video/mp4"
	}
	return data, mime, nil
}

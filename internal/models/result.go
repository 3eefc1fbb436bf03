package models

import (
	"encoding/base64"
	"time"
)

// GenerationResult references generated media plus the prompt that produced it.
type GenerationResult struct {
	URL       string    `json:"url"`
	MimeType  string    `json:"mime_type"`
	Prompt    string    `json:"prompt"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"-"`
}

// DataURL renders bytes the way a browser expects an inline media source.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// JobHandle is the opaque reference to a long-running upstream video operation.
type JobHandle struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
	VideoURI string `json:"video_uri,omitempty"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// VideoJob is the server-side record of one background video generation.
type VideoJob struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Prompt    string    `json:"prompt"`
	Status    JobStatus `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	MimeType  string    `json:"mime_type,omitempty"`
	Size      int       `json:"size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

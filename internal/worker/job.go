package worker

import "omnigen/internal/models"

type JobType int

const (
	Run JobType = iota
	Stop
)

// Job is the unit handed from the dispatcher to a pooled worker.
type Job struct {
	Type JobType
	Task *videoTask
}

type videoTask struct {
	jobID     string
	sessionID string
	apiKey    string
	req       models.VideoRequest
}

func (job Job) sessionID() string {
	if job.Task == nil {
		return ""
	}
	return job.Task.sessionID
}

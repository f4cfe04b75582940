package domain

import (
	"errors"
	"time"
)

var (
	ErrAdHocJobNotFound  = errors.New("ad-hoc job not found")
	ErrEmptyTargetSet    = errors.New("resolved host target set is empty")
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusError     JobStatus = "error"
)

// AdHocJob is one user-initiated execution of a template over a target
// set. TemplateName is a snapshot copy taken at creation time so the job
// record remains meaningful even if the template is later renamed or
// deleted.
type AdHocJob struct {
	ID           string
	TemplateName string
	Status       JobStatus
	CreatedAt    time.Time
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// JobKind distinguishes the two job flavors a pipeline run schedules
type JobKind string

const (
	JobKindBuild    JobKind = "build"
	JobKindRegistry JobKind = "registry"
)

// JobResult is the outcome of one pipeline job. A job either produced its
// deliverable (Asset or Package) or carries the error that stopped it;
// Diagnostics holds the toolchain output retained for failure triage.
type JobResult struct {
	Name        string
	Kind        JobKind
	Asset       *ReleaseAsset
	Package     *RegistryPackage
	Diagnostics string
	Err         error
	Duration    time.Duration
}

// Succeeded reports whether the job completed without error
func (r *JobResult) Succeeded() bool {
	return r.Err == nil
}

// PipelineResult aggregates all job outcomes of one pipeline run. The run
// as a whole succeeded only if every job did.
type PipelineResult struct {
	RunID     uuid.UUID
	Event     *ReleaseEvent
	Jobs      []JobResult
	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether every job in the run succeeded
func (r *PipelineResult) Succeeded() bool {
	for i := range r.Jobs {
		if !r.Jobs[i].Succeeded() {
			return false
		}
	}
	return true
}

// FailedJobs returns the names of jobs that failed
func (r *PipelineResult) FailedJobs() []string {
	var failed []string
	for i := range r.Jobs {
		if !r.Jobs[i].Succeeded() {
			failed = append(failed, r.Jobs[i].Name)
		}
	}
	return failed
}

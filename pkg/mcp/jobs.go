package mcp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a build job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) active() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background course build
type Job struct {
	ID              string    `json:"id"`
	CourseKey       string    `json:"course_key"`
	Status          JobStatus `json:"status"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at,omitempty"`
	ChaptersBuilt   int       `json:"chapters_built"`
	ChaptersSkipped int       `json:"chapters_skipped"`
	ChaptersFailed  int       `json:"chapters_failed"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	Incremental     bool      `json:"incremental"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background build jobs. At most one job per course is
// active at a time.
type JobManager struct {
	jobs     map[string]*Job
	mu       sync.RWMutex
	byCourse map[string]string // courseKey -> jobID for active jobs
	now      func() time.Time
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:     make(map[string]*Job),
		byCourse: make(map[string]string),
		now:      time.Now,
	}
}

// CreateJob creates a job for a course. If one is already active it is
// returned instead, with created false.
func (m *JobManager) CreateJob(courseKey string, incremental bool) (job Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byCourse[courseKey]; ok {
		if existing := m.jobs[id]; existing != nil && existing.Status.active() {
			return *existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:          uuid.New().String(),
		CourseKey:   courseKey,
		Status:      JobStatusPending,
		StartedAt:   m.now(),
		Incremental: incremental,
		ctx:         ctx,
		cancel:      cancel,
	}
	m.jobs[j.ID] = j
	m.byCourse[courseKey] = j.ID
	return *j, true
}

// GetJob returns a copy of a job
func (m *JobManager) GetJob(jobID string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[jobID]; ok {
		return *job, true
	}
	return Job{}, false
}

// ActiveJob returns the active job of a course, if any
func (m *JobManager) ActiveJob(courseKey string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byCourse[courseKey]; ok {
		if job := m.jobs[id]; job != nil && job.Status.active() {
			return *job, true
		}
	}
	return Job{}, false
}

// IsRunning checks if a job is active for a course
func (m *JobManager) IsRunning(courseKey string) bool {
	_, ok := m.ActiveJob(courseKey)
	return ok
}

// UpdateStatus moves a job to status. Terminal statuses stamp CompletedAt
// and free the course for new jobs. A finished job is never reopened.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.Status.active() {
		return
	}
	job.Status = status
	if !status.active() {
		job.CompletedAt = m.now()
		job.cancel()
		delete(m.byCourse, job.CourseKey)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// UpdateCounts records chapter counts for a job
func (m *JobManager) UpdateCounts(jobID string, built, skipped, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[jobID]; ok {
		job.ChaptersBuilt = built
		job.ChaptersSkipped = skipped
		job.ChaptersFailed = failed
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || !job.Status.active() {
		return false
	}
	m.cancelLocked(job)
	return true
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status.active() {
			m.cancelLocked(job)
		}
	}
}

func (m *JobManager) cancelLocked(job *Job) {
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = m.now()
	delete(m.byCourse, job.CourseKey)
}

// ListJobs returns copies of all jobs, oldest first
func (m *JobManager) ListJobs() []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].StartedAt.Equal(jobs[j].StartedAt) {
			return jobs[i].StartedAt.Before(jobs[j].StartedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// GetContext returns the context a job's build runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, ok := m.jobs[jobID]; ok {
		return job.ctx
	}
	return context.Background()
}

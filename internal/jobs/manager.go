// Package jobs runs long index operations in the background and tracks
// their progress.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gcbaptista/docsearch/internal/errors"
	"github.com/gcbaptista/docsearch/model"
)

const (
	cleanupInterval  = time.Hour
	defaultRetention = 24 * time.Hour
)

// JobFunc is the work of one job. ctx is cancelled when the manager stops.
type JobFunc func(ctx context.Context, job *model.Job) error

// Observer is notified when a job reaches a terminal status.
type Observer interface {
	JobFinished(jobType, status string, d time.Duration)
}

// Option configures a Manager.
type Option func(*Manager)

// WithObserver reports finished jobs to o.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// WithRetention sets how long finished jobs are kept.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// Manager handles background job execution and tracking.
type Manager struct {
	mu        sync.RWMutex
	jobs      map[string]*model.Job
	done      map[string]chan struct{} // Closed when the job reaches a terminal status
	workers   chan struct{}            // Limits concurrent jobs
	stopChan  chan struct{}
	stopOnce  sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	metrics   *JobMetrics
	observer  Observer
	retention time.Duration
	logger    *logrus.Entry
}

// NewManager creates a job manager running at most maxWorkers jobs at once.
func NewManager(maxWorkers int, logger *logrus.Entry, opts ...Option) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if logger == nil {
		logger = logrus.WithField("component", "jobs")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:      make(map[string]*model.Job),
		done:      make(map[string]chan struct{}),
		workers:   make(chan struct{}, maxWorkers),
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   NewJobMetrics(),
		retention: defaultRetention,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the background cleanup of old jobs.
func (m *Manager) Start() {
	m.logger.WithField("max_workers", cap(m.workers)).Info("Job manager started")
	go m.cleanupRoutine()
}

// Stop cancels running jobs and waits for them to return. It is safe to
// call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		close(m.stopChan)
		m.mu.Unlock()
		m.cancel()
		m.wg.Wait()
		m.logger.Info("Job manager stopped")
	})
}

// CreateJob registers a pending job and returns its ID.
func (m *Manager) CreateJob(jobType model.JobType, indexName string, metadata map[string]string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    model.JobStatusPending,
		IndexName: indexName,
		CreatedAt: time.Now(),
		Metadata:  metadata,
	}

	m.jobs[job.ID] = job
	m.done[job.ID] = make(chan struct{})
	m.metrics.RecordJobCreated(jobType)
	m.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"type":   job.Type,
		"index":  job.IndexName,
	}).Debug("Created job")
	return job.ID
}

// GetJob returns a copy of the job.
func (m *Manager) GetJob(jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return nil, errors.NewJobNotFoundError(jobID)
	}
	return job.Clone(), nil
}

// ListJobs returns copies of the jobs of an index, newest first, optionally
// filtered by status. An empty index name lists the jobs of every index.
func (m *Manager) ListJobs(indexName string, status *model.JobStatus) []*model.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.Job, 0)
	for _, job := range m.jobs {
		if indexName != "" && job.IndexName != indexName {
			continue
		}
		if status != nil && job.Status != *status {
			continue
		}
		result = append(result, job.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// ExecuteJob runs jobFunc in the background once a worker slot is free.
// The job must be pending.
func (m *Manager) ExecuteJob(jobID string, jobFunc JobFunc) error {
	m.mu.Lock()
	job, exists := m.jobs[jobID]
	if !exists {
		m.mu.Unlock()
		return errors.NewJobNotFoundError(jobID)
	}
	if job.Status != model.JobStatusPending {
		m.mu.Unlock()
		return fmt.Errorf("job with ID '%s' is not in pending status (current: %s)", jobID, job.Status)
	}
	select {
	case <-m.stopChan:
		m.mu.Unlock()
		m.finish(jobID, model.JobStatusCancelled, "job manager shutting down", 0)
		return fmt.Errorf("job manager is shutting down")
	default:
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		// Acquire worker slot
		select {
		case m.workers <- struct{}{}:
		case <-m.stopChan:
			m.finish(jobID, model.JobStatusCancelled, "job manager shutting down", 0)
			return
		}
		defer func() { <-m.workers }()

		snapshot, ok := m.markRunning(jobID)
		if !ok {
			return
		}

		startTime := time.Now()
		err := m.run(snapshot, jobFunc)
		executionTime := time.Since(startTime)

		entry := m.logger.WithFields(logrus.Fields{
			"job_id":   jobID,
			"type":     snapshot.Type,
			"index":    snapshot.IndexName,
			"duration": executionTime,
		})
		switch {
		case err != nil && m.ctx.Err() != nil:
			m.finish(jobID, model.JobStatusCancelled, err.Error(), executionTime)
			entry.WithError(err).Warn("Job cancelled")
		case err != nil:
			m.finish(jobID, model.JobStatusFailed, err.Error(), executionTime)
			entry.WithError(err).Error("Job failed")
		default:
			m.finish(jobID, model.JobStatusCompleted, "", executionTime)
			entry.Info("Job completed")
		}
	}()

	return nil
}

// run calls jobFunc, turning a panic into a job error.
func (m *Manager) run(job *model.Job, jobFunc JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return jobFunc(m.ctx, job)
}

func (m *Manager) markRunning(jobID string) (*model.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status != model.JobStatusPending {
		return nil, false
	}
	now := time.Now()
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	m.metrics.RecordJobStatusChange(model.JobStatusPending, model.JobStatusRunning)
	return job.Clone(), true
}

// Wait blocks until the job reaches a terminal status or ctx is done, and
// returns the final job.
func (m *Manager) Wait(ctx context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	done, exists := m.done[jobID]
	m.mu.RUnlock()
	if !exists {
		return nil, errors.NewJobNotFoundError(jobID)
	}

	select {
	case <-done:
		return m.GetJob(jobID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// UpdateJobProgress updates the progress of a running job.
func (m *Manager) UpdateJobProgress(jobID string, current, total int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status.IsTerminal() {
		return
	}
	if job.Progress == nil {
		job.Progress = &model.JobProgress{}
	}
	job.Progress.Current = current
	job.Progress.Total = total
	job.Progress.Message = message
}

// finish moves a job to a terminal status exactly once.
func (m *Manager) finish(jobID string, status model.JobStatus, errorMsg string, executionTime time.Duration) {
	m.mu.Lock()
	job, exists := m.jobs[jobID]
	if !exists || job.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}

	oldStatus := job.Status
	job.Status = status
	job.Error = errorMsg
	now := time.Now()
	job.CompletedAt = &now
	jobType := job.Type
	done := m.done[jobID]
	m.mu.Unlock()

	m.metrics.RecordJobStatusChange(oldStatus, status)
	m.metrics.RecordJobFinished(jobType, status, executionTime)
	if m.observer != nil {
		m.observer.JobFinished(string(jobType), string(status), executionTime)
	}
	// Waiters see the job only once its metrics are recorded
	if done != nil {
		close(done)
	}
}

// cleanupRoutine periodically drops finished jobs past the retention.
func (m *Manager) cleanupRoutine() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanupOldJobs(m.retention)
		case <-m.stopChan:
			return
		}
	}
}

// CleanupOldJobs removes finished jobs that completed more than maxAge ago.
func (m *Manager) CleanupOldJobs(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	cleaned := 0
	for jobID, job := range m.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, jobID)
			delete(m.done, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		m.logger.WithField("count", cleaned).Info("Cleaned up old jobs")
	}
	return cleaned
}

// GetMetrics returns current job performance metrics.
func (m *Manager) GetMetrics() JobMetricsData {
	return m.metrics.GetMetrics()
}

// GetJobSuccessRate returns the overall job success rate.
func (m *Manager) GetJobSuccessRate() float64 {
	return m.metrics.GetSuccessRate()
}

// GetCurrentWorkload returns the number of pending and running jobs.
func (m *Manager) GetCurrentWorkload() int64 {
	return m.metrics.GetCurrentWorkload()
}

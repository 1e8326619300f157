// Package jobs runs scrape requests from the API in the background.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/politician-trades/internal/queue"
	"github.com/maltedev/politician-trades/internal/scraper"
)

var ErrJobNotFound = errors.New("job not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Kind string

const (
	KindCountry Kind = "country"
	KindAll     Kind = "all"
)

// DefaultMaxJobs is how many finished jobs are remembered.
const DefaultMaxJobs = 100

// Runner executes scrapes. *scraper.Orchestrator satisfies it.
type Runner interface {
	ScrapeCountry(ctx context.Context, code string, opts scraper.Options) scraper.CountryResult
	ScrapeAll(ctx context.Context, opts scraper.Options) scraper.Summary
}

// Job represents a scraping job
type Job struct {
	ID          string                 `json:"id"`
	Kind        Kind                   `json:"kind"`
	Country     string                 `json:"country,omitempty"`
	Options     scraper.Options        `json:"options"`
	Status      Status                 `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Result      *scraper.CountryResult `json:"result,omitempty"`
	Summary     *scraper.Summary       `json:"summary,omitempty"`
}

// Stats represents job counts by status
type Stats struct {
	TotalJobs     int `json:"total_jobs"`
	PendingJobs   int `json:"pending_jobs"`
	RunningJobs   int `json:"running_jobs"`
	CompletedJobs int `json:"completed_jobs"`
	FailedJobs    int `json:"failed_jobs"`
}

type Manager struct {
	runner  Runner
	queue   *queue.InMemoryQueue
	logger  *slog.Logger
	maxJobs int
	now     func() time.Time

	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewManager(runner Runner, q *queue.InMemoryQueue, logger *slog.Logger) *Manager {
	return &Manager{
		runner:  runner,
		queue:   q,
		logger:  logger.With("component", "job_manager"),
		maxJobs: DefaultMaxJobs,
		now:     time.Now,
		jobs:    make(map[string]*Job),
	}
}

// SubmitCountry queues a scrape of one country and returns immediately.
func (m *Manager) SubmitCountry(country string, opts scraper.Options) (*Job, error) {
	return m.submit(&Job{Kind: KindCountry, Country: country, Options: opts})
}

// SubmitAll queues a scrape of every enabled country.
func (m *Manager) SubmitAll(opts scraper.Options) (*Job, error) {
	return m.submit(&Job{Kind: KindAll, Options: opts})
}

func (m *Manager) submit(job *Job) (*Job, error) {
	job.ID = uuid.New().String()
	job.Status = StatusPending
	job.CreatedAt = m.now()

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.pruneLocked()
	m.mu.Unlock()

	// Country jobs jump ahead of full batches.
	priority := 0
	if job.Kind == KindCountry {
		priority = 1
	}
	if err := m.queue.Push(&queue.Task{ID: job.ID, Priority: priority, CreatedAt: job.CreatedAt}); err != nil {
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "kind", job.Kind, "country", job.Country)
	return m.snapshot(job), nil
}

// GetJob returns a copy of the job.
func (m *Manager) GetJob(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return m.snapshot(job), nil
}

// ListJobs returns all remembered jobs, newest first.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, m.snapshot(job))
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalJobs: len(m.jobs)}
	for _, job := range m.jobs {
		switch job.Status {
		case StatusPending:
			stats.PendingJobs++
		case StatusRunning:
			stats.RunningJobs++
		case StatusCompleted:
			stats.CompletedJobs++
		case StatusFailed:
			stats.FailedJobs++
		}
	}
	return stats
}

func (m *Manager) snapshot(job *Job) *Job {
	cp := *job
	return &cp
}

// pruneLocked drops the oldest finished jobs beyond maxJobs.
func (m *Manager) pruneLocked() {
	if len(m.jobs) <= m.maxJobs {
		return
	}

	finished := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	for _, job := range finished {
		if len(m.jobs) <= m.maxJobs {
			return
		}
		delete(m.jobs, job.ID)
	}
}

func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, ok := m.jobs[id]; ok {
		fn(job)
	}
}

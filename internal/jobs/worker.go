package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/politician-trades/internal/queue"
)

// StartWorker processes queued jobs one at a time until ctx is done or the
// queue is closed.
func (m *Manager) StartWorker(ctx context.Context) {
	m.logger.Info("job worker started")

	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				m.logger.Info("job worker stopping")
				return
			}
			m.logger.Error("failed to pop job", "error", err)
			continue
		}

		m.processJob(ctx, task.ID)
	}
}

// processJob runs a single job
func (m *Manager) processJob(ctx context.Context, id string) {
	job, err := m.GetJob(id)
	if err != nil {
		m.logger.Warn("queued job disappeared", "id", id)
		return
	}

	started := m.now()
	m.update(id, func(j *Job) {
		j.Status = StatusRunning
		j.StartedAt = &started
	})
	m.logger.Info("processing job", "id", id, "kind", job.Kind, "country", job.Country)

	var jobErr error
	switch job.Kind {
	case KindCountry:
		result := m.runner.ScrapeCountry(ctx, job.Country, job.Options)
		m.update(id, func(j *Job) { j.Result = &result })
		if !result.Success {
			jobErr = errors.New(result.Error)
		}
	case KindAll:
		summary := m.runner.ScrapeAll(ctx, job.Options)
		m.update(id, func(j *Job) { j.Summary = &summary })
		if ctx.Err() != nil {
			jobErr = ctx.Err()
		}
	default:
		jobErr = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	completed := m.now()
	m.update(id, func(j *Job) {
		j.CompletedAt = &completed
		if jobErr != nil {
			j.Status = StatusFailed
			j.Error = jobErr.Error()
			return
		}
		j.Status = StatusCompleted
	})

	if jobErr != nil {
		m.logger.Error("job failed", "id", id, "error", jobErr)
		return
	}
	m.logger.Info("job completed", "id", id, "duration", completed.Sub(started))
}

// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"time"

	"intent-broker/internal/common/config"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobRecorder receives per-job outcomes; observability.Observability satisfies it.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// Registry opens job workers and closes them together on shutdown.
type Registry struct {
	client   zbc.Client
	recorder JobRecorder
	logger   logger.Logger
	workers  []worker.JobWorker
	types    []string
}

func NewRegistry(client zbc.Client, recorder JobRecorder, log logger.Logger) *Registry {
	return &Registry{
		client:   client,
		recorder: recorder,
		logger:   log,
	}
}

// Register opens a worker for taskType unless it is disabled in wcfg.
func (r *Registry) Register(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	w := r.client.NewJobWorker().
		JobType(taskType).
		Handler(r.instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()
	r.workers = append(r.workers, w)
	r.types = append(r.types, taskType)

	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// instrument wraps a handler with duration and in-flight metrics. Completion and
// failure counters are recorded by the handlers themselves.
func (r *Registry) instrument(taskType string, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer func() {
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			elapsed := time.Since(start)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if r.recorder != nil {
				r.recorder.RecordJobProcessed(context.Background(), taskType, "handled")
				r.recorder.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
			}
		}()
		handler(client, job)
	}
}

// Count returns the number of open workers.
func (r *Registry) Count() int {
	return len(r.workers)
}

// TaskTypes lists the job types with an open worker, in registration order.
func (r *Registry) TaskTypes() []string {
	return append([]string(nil), r.types...)
}

// Close stops polling and waits for in-flight jobs to finish.
func (r *Registry) Close() {
	for _, w := range r.workers {
		w.Close()
		w.AwaitClose()
	}
}

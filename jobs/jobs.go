// Package jobs is the bounded handoff between HTTP handlers and the
// background pipeline worker, plus the per-job status table.
package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rossjameslee/hermes-api-demo/auth"
	"github.com/rossjameslee/hermes-api-demo/models"
	"github.com/rossjameslee/hermes-api-demo/pipeline"
)

// ErrQueueFull means the channel was at capacity and the job was rejected.
var ErrQueueFull = errors.New("queue_send_failed")

// State names a job's position in its lifecycle. Transitions only move
// forward: queued, running, then completed or failed.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

type job struct {
	id      uuid.UUID
	request *models.ListingRequest
	authCtx *auth.Context
}

type jobStatus struct {
	state  State
	result *models.ListingResponse
	errMsg string
	stage  string
}

// Info is the wire form of a status lookup.
type Info struct {
	ID     string                  `json:"id"`
	State  State                   `json:"state"`
	Result *models.ListingResponse `json:"result,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Stage  *string                 `json:"stage,omitempty"`
}

// Queue owns the job channel and the status map.
type Queue struct {
	ch       chan job
	pipeline *pipeline.Pipeline

	mu       sync.Mutex
	statuses map[uuid.UUID]jobStatus
}

// NewQueue builds a queue with the given channel capacity (floored at 1).
func NewQueue(p *pipeline.Pipeline, capacity int) *Queue {
	if capacity < 1 {
		capacity = 64
	}
	return &Queue{
		ch:       make(chan job, capacity),
		pipeline: p,
		statuses: make(map[uuid.UUID]jobStatus),
	}
}

// Enqueue records the job as queued and attempts a non-blocking send. A full
// channel returns ErrQueueFull.
func (q *Queue) Enqueue(request *models.ListingRequest, authCtx *auth.Context) (uuid.UUID, error) {
	var id = uuid.New()
	q.setStatus(id, jobStatus{state: StateQueued})

	select {
	case q.ch <- job{id: id, request: request, authCtx: authCtx}:
		return id, nil
	default:
		q.mu.Lock()
		delete(q.statuses, id)
		q.mu.Unlock()
		return uuid.Nil, ErrQueueFull
	}
}

// Run drains the channel until the context is cancelled. One worker keeps
// status transitions strictly forward.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.ch:
			q.setStatus(item.id, jobStatus{state: StateRunning})
			response, err := q.pipeline.Run(ctx, item.request, item.authCtx)
			if err != nil {
				var perr = pipeline.AsError(err, "pipeline")
				log.WithFields(log.Fields{
					"jobId": item.id,
					"stage": perr.Stage,
					"err":   err,
				}).Warn("job failed")
				q.setStatus(item.id, jobStatus{
					state:  StateFailed,
					errMsg: perr.Detail,
					stage:  perr.Stage,
				})
				continue
			}
			q.setStatus(item.id, jobStatus{state: StateCompleted, result: response})
		}
	}
}

// Get reports the current state of a job, or false for an unknown id.
func (q *Queue) Get(id uuid.UUID) (*Info, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.statuses[id]
	if !ok {
		return nil, false
	}
	var info = &Info{ID: id.String(), State: status.state}
	switch status.state {
	case StateCompleted:
		info.Result = status.result
	case StateFailed:
		info.Error = status.errMsg
		if status.stage != "" {
			var stage = status.stage
			info.Stage = &stage
		}
	}
	return info, true
}

func (q *Queue) setStatus(id uuid.UUID, status jobStatus) {
	q.mu.Lock()
	q.statuses[id] = status
	q.mu.Unlock()
}

package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has begun.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one order message waiting to be parsed.
type Job struct {
	OrderID     uuid.UUID
	GuideID     *uuid.UUID
	Text        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler processes a single job. Errors are logged by the queue; the
// handler owns any status bookkeeping.
type Handler interface {
	HandleOrder(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

func (f HandlerFunc) HandleOrder(ctx context.Context, job Job) error { return f(ctx, job) }

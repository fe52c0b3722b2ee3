package dispatch

import (
	"context"
	"errors"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/ufpa-tools/sigaa-mcp/internal/actor"
	"github.com/ufpa-tools/sigaa-mcp/internal/observability"
)

// Operation is a resolved, executable tool invocation. Sessionless
// operations (login, status) run regardless of session state.
type Operation struct {
	Sessionless bool
	Run         func(ctx context.Context) (interface{}, error)
}

// Resolver turns a tool name and raw arguments into an operation.
// Unknown tools and bad arguments come back as InvalidRequestError.
type Resolver interface {
	Resolve(name string, args map[string]interface{}) (*Operation, error)
}

// Session is the slice of the actor the dispatcher manages state through
type Session interface {
	EnsureActive(ctx context.Context) error
	MarkDegraded()
}

// Options tunes dispatcher behavior
type Options struct {
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Dispatcher is the single entry point for tool execution
type Dispatcher struct {
	queue    *Queue
	resolver Resolver
	session  Session
	opts     Options
}

// New creates a dispatcher over its own FIFO queue
func New(resolver Resolver, session Session, opts Options) *Dispatcher {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 3 * time.Minute
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	return &Dispatcher{
		queue:    NewQueue(),
		resolver: resolver,
		session:  session,
		opts:     opts,
	}
}

// Close stops the dispatch queue
func (d *Dispatcher) Close() {
	d.queue.Close()
}

// Dispatch resolves, queues and executes one tool request, returning a
// normalized result. It never returns an error; failures are part of the
// result.
func (d *Dispatcher) Dispatch(ctx context.Context, req ToolRequest) ToolResult {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		if id, err := gonanoid.New(12); err == nil {
			requestID = id
		} else {
			requestID = "req-unknown"
		}
	}

	result := ToolResult{RequestID: requestID}

	op, err := d.resolver.Resolve(req.Name, req.Arguments)
	if err != nil {
		result.Failure = Classify(err)
		result.Duration = time.Since(start)
		d.audit(req.Name, requestID, result)
		return result
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.opts.RequestTimeout)
	defer cancel()

	value, err := d.queue.Enqueue(reqCtx, requestID, func(taskCtx context.Context) (interface{}, error) {
		return d.execute(taskCtx, op)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			result.Failure = &Failure{Kind: KindTimeout, Message: "request timed out"}
		} else {
			result.Failure = Classify(err)
		}
	} else {
		result.Payload = value
	}

	result.Duration = time.Since(start)
	d.audit(req.Name, requestID, result)
	return result
}

// RunExclusive runs fn on the dispatch queue, serialized with tool
// requests. Background work like the keepalive probe goes through here
// so it never interleaves with a running operation.
func (d *Dispatcher) RunExclusive(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	_, err := d.queue.Enqueue(ctx, id, func(taskCtx context.Context) (interface{}, error) {
		return nil, fn(taskCtx)
	})
	return err
}

// execute runs the operation with session management and bounded retries:
// transient engine failures back off exponentially, and one re-login is
// attempted when the portal expires the session mid-operation.
func (d *Dispatcher) execute(ctx context.Context, op *Operation) (interface{}, error) {
	if !op.Sessionless {
		if err := d.session.EnsureActive(ctx); err != nil {
			return nil, err
		}
	}

	reloggedIn := false
	var lastErr error

	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := d.opts.RetryBackoff << (attempt - 1)
			log.Info().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying operation after transient failure")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		value, err := op.Run(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if errors.Is(err, actor.ErrSessionExpired) && !op.Sessionless && !reloggedIn {
			// The actor marked itself degraded; EnsureActive recovers it.
			// One shot only, a second expiry means something is wrong.
			reloggedIn = true
			if recErr := d.session.EnsureActive(ctx); recErr != nil {
				return nil, recErr
			}
			attempt--
			continue
		}

		if !retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (d *Dispatcher) audit(toolName, requestID string, result ToolResult) {
	status := "success"
	metadata := map[string]interface{}{
		"duration_ms": result.Duration.Milliseconds(),
	}
	if result.Failure != nil {
		status = "failure"
		metadata["kind"] = string(result.Failure.Kind)
	}
	observability.RecordToolAudit(toolName, requestID, status, metadata)
}

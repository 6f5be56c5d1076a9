package compute

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/internal"
	"gogrid/internal/formula"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Request carries one raw snapshot into the channel
type Request struct {
	Seq  uint64
	Grid grid.RawGrid
}

// Response carries the computed grid for the request with the same Seq
type Response struct {
	Seq      uint64
	Grid     grid.ComputedGrid
	Duration time.Duration
}

// Handler receives exactly one Response per submitted request. Handlers run
// on the channel's delivery goroutine, one at a time.
type Handler func(Response)

type envelope struct {
	req     Request
	handler Handler
}

type delivery struct {
	resp    Response
	handler Handler
}

// Stats is a point-in-time view of channel throughput
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Delivered uint64 `json:"delivered"`
}

// Channel is the asynchronous boundary in front of the grid recomputer.
//
// A single actor goroutine owns the recomputer and keeps nothing between
// requests. Submissions land in an unbounded queue, so Submit never waits for
// computation; responses go out through a second queue, so a slow handler
// never stalls the actor. Snapshots are copied on the way in and the
// computed grid is freshly allocated on the way out.
type Channel struct {
	recomputer *formula.Recomputer
	logger     *internal.Logger
	tracer     trace.Tracer

	inbox      chan envelope
	work       chan envelope
	results    chan delivery
	deliveries chan delivery

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	seq       atomic.Uint64
	completed atomic.Uint64
	delivered atomic.Uint64
}

// NewChannel creates a channel and starts its goroutines. A nil recomputer
// selects the default one.
func NewChannel(recomputer *formula.Recomputer, logger *internal.Logger) *Channel {
	if recomputer == nil {
		recomputer = formula.NewRecomputer(nil)
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	ch := &Channel{
		recomputer: recomputer,
		logger:     logger.With("ComputeChannel"),
		tracer:     otel.Tracer("gogrid/compute"),
		inbox:      make(chan envelope),
		work:       make(chan envelope),
		results:    make(chan delivery),
		deliveries: make(chan delivery),
	}

	ch.wg.Add(4)
	go func() { defer ch.wg.Done(); relay(ch.inbox, ch.work) }()
	go func() { defer ch.wg.Done(); ch.run() }()
	go func() { defer ch.wg.Done(); relay(ch.results, ch.deliveries) }()
	go func() { defer ch.wg.Done(); ch.notify() }()

	return ch
}

// Submit hands a copy of raw to the actor and returns the request's sequence
// number without waiting. handler is called once with the response.
func (ch *Channel) Submit(raw grid.RawGrid, handler Handler) (uint64, error) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	if ch.closed {
		return 0, core.ErrChannelClosed
	}

	seq := ch.seq.Add(1)
	ch.inbox <- envelope{
		req:     Request{Seq: seq, Grid: raw.Clone()},
		handler: handler,
	}
	ch.logger.Trace("queued request %d (%d rows)", seq, len(raw))
	return seq, nil
}

// Compute submits raw and waits for its response or for ctx to end. A
// missing response surfaces as core.ErrComputeTimeout.
func (ch *Channel) Compute(ctx context.Context, raw grid.RawGrid) (grid.ComputedGrid, error) {
	done := make(chan Response, 1)
	seq, err := ch.Submit(raw, func(resp Response) { done <- resp })
	if err != nil {
		return nil, err
	}

	select {
	case resp := <-done:
		return resp.Grid, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: request %d: %v", core.ErrComputeTimeout, seq, ctx.Err())
	}
}

// Close stops accepting requests, lets every submitted request run to
// completion and deliver its response, then returns.
func (ch *Channel) Close() {
	ch.mu.Lock()
	if !ch.closed {
		ch.closed = true
		close(ch.inbox)
	}
	ch.mu.Unlock()

	ch.wg.Wait()
}

// Stats reports request counters
func (ch *Channel) Stats() Stats {
	return Stats{
		Submitted: ch.seq.Load(),
		Completed: ch.completed.Load(),
		Delivered: ch.delivered.Load(),
	}
}

// run is the actor loop
func (ch *Channel) run() {
	defer close(ch.results)
	for env := range ch.work {
		ch.results <- delivery{resp: ch.process(env.req), handler: env.handler}
	}
}

func (ch *Channel) process(req Request) Response {
	_, span := ch.tracer.Start(context.Background(), "compute.Recompute",
		trace.WithAttributes(
			attribute.Int64("compute.seq", int64(req.Seq)),
			attribute.Int("grid.rows", len(req.Grid)),
		))
	defer span.End()

	start := time.Now()
	computed := ch.recomputer.Recompute(req.Grid)
	elapsed := time.Since(start)

	ch.completed.Add(1)
	ch.logger.Debug("request %d recomputed in %.3fms", req.Seq, float64(elapsed.Microseconds())/1000)
	return Response{Seq: req.Seq, Grid: computed, Duration: elapsed}
}

func (ch *Channel) notify() {
	for d := range ch.deliveries {
		ch.deliver(d)
	}
}

func (ch *Channel) deliver(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			ch.logger.Error("handler for request %d panicked: %v", d.resp.Seq, r)
		}
	}()
	ch.delivered.Add(1)
	if d.handler != nil {
		d.handler(d.resp)
	}
}

// relay forwards values from in to out through an unbounded FIFO buffer.
// When in is closed the buffer is drained and out is closed.
func relay[T any](in <-chan T, out chan<- T) {
	defer close(out)

	var pending []T
	for in != nil || len(pending) > 0 {
		var send chan<- T
		var next T
		if len(pending) > 0 {
			send = out
			next = pending[0]
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, v)
		case send <- next:
			var zero T
			pending[0] = zero
			pending = pending[1:]
		}
	}
}

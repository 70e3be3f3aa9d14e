package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	dErrors "bookedge/pkg/domainerrors"
)

// Sender delivers one message to its provider.
type Sender interface {
	SendAlimtalk(ctx context.Context, req *AlimtalkRequest) error
	SendPush(ctx context.Context, req *PushRequest) error
}

const defaultQueueSize = 256

// Dispatcher queues accepted notifications and delivers them from a fixed
// pool of workers. Accepting and delivering are decoupled so a slow
// provider never backs up the HTTP handler; a full queue rejects instead of
// blocking.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	queue   chan *Message
	workers int

	group  *errgroup.Group
	cancel context.CancelFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize overrides the queue capacity.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan *Message, size)
		}
	}
}

// WithWorkers overrides the worker count.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// NewDispatcher creates a dispatcher; call Start before enqueuing.
func NewDispatcher(sender Sender, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		queue:   make(chan *Message, defaultQueueSize),
		workers: 4,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		d.group.Go(func() error {
			d.run(ctx)
			return nil
		})
	}
}

// Stop drains the workers. Queued messages that have not been picked up are
// dropped; delivery is best effort by contract.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.group != nil {
		_ = d.group.Wait()
	}
}

// EnqueueAlimtalk accepts an alimtalk request for delivery.
func (d *Dispatcher) EnqueueAlimtalk(ctx context.Context, req *AlimtalkRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return d.enqueue(ctx, &Message{ID: uuid.NewString(), Alimtalk: req})
}

// EnqueuePush accepts a push request for delivery.
func (d *Dispatcher) EnqueuePush(ctx context.Context, req *PushRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return d.enqueue(ctx, &Message{ID: uuid.NewString(), Push: req})
}

func (d *Dispatcher) enqueue(ctx context.Context, msg *Message) (string, error) {
	select {
	case d.queue <- msg:
		return msg.ID, nil
	default:
		d.logger.ErrorContext(ctx, "notification queue full, rejecting",
			"message_id", msg.ID)
		return "", dErrors.New(dErrors.CodeUnavailable, "notification queue is full")
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) {
	var err error
	var kind string
	switch {
	case msg.Alimtalk != nil:
		kind = "alimtalk"
		err = d.sender.SendAlimtalk(ctx, msg.Alimtalk)
	case msg.Push != nil:
		kind = "push"
		err = d.sender.SendPush(ctx, msg.Push)
	default:
		return
	}

	if err != nil {
		d.logger.ErrorContext(ctx, "notification delivery failed",
			"kind", kind,
			"message_id", msg.ID,
			"error", err,
		)
		return
	}
	d.logger.InfoContext(ctx, "notification delivered",
		"kind", kind,
		"message_id", msg.ID,
	)
}

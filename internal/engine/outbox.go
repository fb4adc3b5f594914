package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
)

// collaboratorTimeout bounds one call into a notifier, voice control or recorder.
const collaboratorTimeout = 5 * time.Second

// outbox delivers side effects in order on its own goroutine, after the engine lock
// is released. The queue is unbounded, so send never waits on a collaborator.
type outbox struct {
	mu     sync.Mutex
	queue  []func(context.Context)
	wake   chan struct{}
	done   chan struct{}
	closed bool
	warnAt int
	logger *logger.Logger
}

// newOutbox starts the delivery goroutine. A backlog of size is logged as a warning.
func newOutbox(size int, log *logger.Logger) *outbox {
	if size < 1 {
		size = 1
	}
	o := &outbox{
		queue:  make([]func(context.Context), 0, size),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		warnAt: size,
		logger: log,
	}
	go o.run()
	return o
}

func (o *outbox) run() {
	defer close(o.done)
	for {
		o.mu.Lock()
		batch := o.queue
		o.queue = nil
		closed := o.closed
		o.mu.Unlock()

		for _, fn := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), collaboratorTimeout)
			fn(ctx)
			cancel()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-o.wake
	}
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) push(fn func(context.Context)) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, fn)
	n := len(o.queue)
	o.mu.Unlock()

	if n == o.warnAt {
		o.logger.Warn(fmt.Sprintf("outbox backlog reached %d deliveries", n))
	}
	o.signal()
	return true
}

// send queues fn. Work sent after close is dropped.
func (o *outbox) send(fn func(context.Context)) {
	if !o.push(fn) {
		o.logger.Debug("outbox closed, dropping delivery")
	}
}

// marker queues a no-op and returns a channel closed once everything before it ran.
func (o *outbox) marker() <-chan struct{} {
	reached := make(chan struct{})
	if !o.push(func(context.Context) { close(reached) }) {
		return o.done
	}
	return reached
}

func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

package events

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Recorder queues events on a bounded channel and writes them to its outputs
// from a single goroutine. A full queue drops the event and counts the drop.
type Recorder struct {
	queue   chan Event
	outputs []Output
	log     *logrus.Entry
	dropped uint64
	now     func() time.Time
	onDrop  func()
}

func NewRecorder(bufferSize int, log *logrus.Entry, outputs ...Output) *Recorder {
	return &Recorder{
		queue:   make(chan Event, bufferSize),
		outputs: outputs,
		log:     log,
		now:     time.Now,
	}
}

func (r *Recorder) Record(event Event) {
	if event.At.IsZero() {
		event.At = r.now()
	}
	select {
	case r.queue <- event:
	default:
		atomic.AddUint64(&r.dropped, 1)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

// Dropped returns how many events were lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}

// Run drains the queue until ctx ends, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case event := <-r.queue:
			r.write(event)
		case <-ctx.Done():
			r.flush()
			return
		}
	}
}

func (r *Recorder) flush() {
	for {
		select {
		case event := <-r.queue:
			r.write(event)
		default:
			return
		}
	}
}

func (r *Recorder) write(event Event) {
	for _, output := range r.outputs {
		if err := output.Write(event); err != nil {
			r.log.WithError(err).WithField("kind", event.Kind).Debug("event output failed")
		}
	}
}

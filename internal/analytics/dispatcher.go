package analytics // import "openpodcast.dev/forwarder/internal/analytics"

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"openpodcast.dev/forwarder/internal/logging"
	"openpodcast.dev/forwarder/internal/metric"
	"openpodcast.dev/forwarder/internal/worker"
)

// Sink receives analytics events.
type Sink interface {
	Name() string
	Send(ctx context.Context, event *Event) error
}

// Queue accepts jobs without blocking.
type Queue interface {
	TryPush(job worker.Job) bool
}

func NewDispatcher(queue Queue, timeout time.Duration, sinks ...Sink,
) *Dispatcher {
	return &Dispatcher{queue: queue, timeout: timeout, sinks: sinks}
}

// Dispatcher delivers events to every configured sink in background.
type Dispatcher struct {
	queue   Queue
	timeout time.Duration
	sinks   []Sink
}

// Enabled reports whether at least one sink configured.
func (self *Dispatcher) Enabled() bool {
	return self != nil && len(self.sinks) != 0
}

func (self *Dispatcher) Sinks() []string {
	names := make([]string, len(self.sinks))
	for i, sink := range self.sinks {
		names[i] = sink.Name()
	}
	return names
}

// Dispatch queues event for every sink. It never blocks: if the queue is
// full, the event is dropped.
func (self *Dispatcher) Dispatch(ctx context.Context, event *Event) {
	if !self.Enabled() {
		return
	}

	log := logging.FromContext(ctx).With(slog.String("kind", event.Kind))
	for _, sink := range self.sinks {
		name := sink.Name()
		job := worker.Job{
			Name: "analytics/" + name,
			Run: func(ctx context.Context) error {
				return self.send(ctx, sink, event)
			},
		}
		if !self.queue.TryPush(job) {
			log.Warn("analytics: queue is full, event dropped",
				slog.String("sink", name))
			metric.ObserveAnalyticsEvent(name, metric.EventDropped)
		}
	}
}

func (self *Dispatcher) send(ctx context.Context, sink Sink, event *Event,
) error {
	if self.timeout > 0 {
		c, cancel := context.WithTimeout(ctx, self.timeout)
		defer cancel()
		ctx = c
	}

	if err := sink.Send(ctx, event); err != nil {
		metric.ObserveAnalyticsEvent(sink.Name(), metric.EventError)
		return fmt.Errorf("analytics: send event to %s: %w", sink.Name(), err)
	}
	metric.ObserveAnalyticsEvent(sink.Name(), metric.EventSent)
	return nil
}

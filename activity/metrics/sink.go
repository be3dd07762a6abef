// Package metrics counts activity events with prometheus.
package metrics

import (
	"context"

	auth "github.com/goliatone/go-portal-auth"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultNamespace = "portal"
	DefaultSubsystem = "auth"
)

// Sink implements auth.ActivitySink and increments a counter per event.
// Login failures are labeled with the error text code carried in
// the event metadata under "reason".
type Sink struct {
	events *prometheus.CounterVec
}

var _ auth.ActivitySink = (*Sink)(nil)

// Option customizes the collector
type Option func(*prometheus.CounterOpts)

func WithNamespace(ns string) Option {
	return func(o *prometheus.CounterOpts) {
		o.Namespace = ns
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *prometheus.CounterOpts) {
		o.ConstLabels = labels
	}
}

// New builds the sink and registers its collector with reg. A nil reg
// skips registration, callers can then register Collector themselves.
func New(reg prometheus.Registerer, opts ...Option) (*Sink, error) {
	counterOpts := prometheus.CounterOpts{
		Namespace: DefaultNamespace,
		Subsystem: DefaultSubsystem,
		Name:      "activity_events_total",
		Help:      "Total auth activity events by type and reason",
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&counterOpts)
		}
	}

	s := &Sink{
		events: prometheus.NewCounterVec(counterOpts, []string{"event", "reason"}),
	}

	if reg != nil {
		if err := reg.Register(s.events); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Collector exposes the underlying counter
func (s *Sink) Collector() *prometheus.CounterVec {
	return s.events
}

// Record implements auth.ActivitySink
func (s *Sink) Record(_ context.Context, event auth.ActivityEvent) error {
	if s == nil || s.events == nil {
		return nil
	}

	reason := ""
	if v, ok := event.Metadata["reason"].(string); ok {
		reason = v
	}

	s.events.WithLabelValues(string(event.EventType), reason).Inc()
	return nil
}

package ingest

import (
	"context"
	"time"
)

// Kind names the batch type of an Event.
type Kind string

const (
	KindPositions Kind = "positions"
	KindDaily     Kind = "daily"
)

// Event announces a committed batch.
type Event struct {
	Kind    Kind      `json:"kind"`
	Date    string    `json:"date,omitempty"`
	Records int       `json:"records"`
	At      time.Time `json:"at"`
}

// Notifier receives an Event after each committed batch. Errors are logged and never fail
// the batch.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Notifiers fans an Event out to several notifiers and returns the first error.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) error {
	var first error
	for _, n := range ns {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

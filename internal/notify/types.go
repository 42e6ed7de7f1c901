package notify

import (
	"context"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Stats describes one finished pipeline run for the status side-channel.
// The artifact itself travels through internal/deliver, not here.
type Stats struct {
	Status   Status
	Engine   string
	Target   string
	FileName string
	Size     int64
	Parts    int
	Duration time.Duration
	Error    error
}

type Notifier interface {
	Notify(ctx context.Context, stats Stats) error
}

type MultiNotifier struct {
	Notifiers []Notifier
}

func (m *MultiNotifier) Notify(ctx context.Context, stats Stats) error {
	for _, n := range m.Notifiers {
		// Best effort; one failing channel must not mute the rest.
		_ = n.Notify(ctx, stats)
	}
	return nil
}

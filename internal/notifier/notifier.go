package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"water-monitor/internal/models"
)

// Notifier delivers an alert to the outside world. Delivery is best effort.
type Notifier interface {
	Name() string
	Send(ctx context.Context, req *models.AlertRequest) error
}

var ErrNotConfigured = errors.New("notifier not configured")

// NotifyError is a failed delivery.
type NotifyError struct {
	Notifier   string
	StatusCode int // HTTP status, 0 when not applicable
	Err        error
}

func (e *NotifyError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Notifier, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Notifier, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Multi fans an alert out to several notifiers concurrently. The send
// counts as delivered when at least one of them succeeds.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of wrapped notifiers.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Send(ctx context.Context, req *models.AlertRequest) error {
	if len(m.notifiers) == 0 {
		return &NotifyError{Notifier: m.Name(), Err: ErrNotConfigured}
	}
	if len(m.notifiers) == 1 {
		return m.notifiers[0].Send(ctx, req)
	}

	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, n := range m.notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			errs[i] = n.Send(ctx, req)
		}(i, n)
	}
	wg.Wait()

	failed := make([]error, 0, len(errs))
	for _, err := range errs {
		if err == nil {
			return nil
		}
		failed = append(failed, err)
	}
	return errors.Join(failed...)
}

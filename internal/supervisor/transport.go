package supervisor

import (
	"errors"

	"water-monitor/internal/models"
)

// Events are the callbacks a Transport reports through. They may be called
// from any goroutine; OnMessage calls must be sequential so readings keep
// their order.
type Events struct {
	OnOpen    func()
	OnMessage func(payload []byte)
	OnError   func(err error)
	OnClose   func()
}

// Transport is one connection attempt to the sensor. Open should return
// quickly and report the outcome via Events. Close must be idempotent and
// safe to call before Open has finished.
type Transport interface {
	Open(target models.Target, events Events) error
	Close() error
}

// TransportFactory creates a fresh Transport for each attempt.
type TransportFactory func() Transport

var (
	ErrConnectTimeout  = errors.New("connect timeout")
	ErrTransportClosed = errors.New("transport closed")
)

// TransportError wraps a failure reported by a transport.
type TransportError struct {
	Kind string // timeout, error, close, open
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport " + e.Kind
	}
	return "transport " + e.Kind + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

package supervisor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"water-monitor/internal/clock"
	"water-monitor/internal/logger"
	"water-monitor/internal/metrics"
	"water-monitor/internal/models"
)

const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReconnectDelay = 3 * time.Second
	DefaultBufferSize     = 100
	DefaultSendTimeout    = 1 * time.Second
)

// Config holds the supervisor's timing.
type Config struct {
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
	BufferSize     int
	SendTimeout    time.Duration // how long a reading may wait for the pipeline
}

// DefaultConfig returns a 15s connect timeout and a fixed 3s reconnect delay.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		ReconnectDelay: DefaultReconnectDelay,
		BufferSize:     DefaultBufferSize,
		SendTimeout:    DefaultSendTimeout,
	}
}

// Supervisor keeps one logical subscription to the sensor alive. It owns the
// connection state machine:
//
//	Idle -> Connecting -> Connected -> Disconnected -> Connecting ...
//	Connecting -> Failed (timeout) -> Connecting ...
//
// Every attempt and every loss bumps an epoch. Timers and transport
// callbacks capture the epoch they were created under and do nothing once it
// has moved on, so a stale timer or a dead transport can never drive a
// transition.
type Supervisor struct {
	cfg          Config
	clock        clock.Clock
	newTransport TransportFactory
	log          zerolog.Logger

	// Output channel (written by supervisor, read by the monitor service)
	Readings chan models.Reading

	// OnStatus receives every status change. Set before the first Start.
	OnStatus func(Status)

	mu             sync.Mutex
	state          models.ConnectionState
	epoch          uint64
	running        bool
	target         models.Target
	transport      Transport
	connectTimer   clock.Timer
	reconnectTimer clock.Timer
	attempt        int
	since          time.Time
	text           string
	lastError      string

	seq         atomic.Uint64
	readings    atomic.Uint64
	parseErrors atomic.Uint64
}

// New creates an idle supervisor. A nil clock means wall time.
func New(cfg Config, factory TransportFactory, clk clock.Clock) *Supervisor {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	return &Supervisor{
		cfg:          cfg,
		clock:        clk,
		newTransport: factory,
		log:          logger.WithComponent("supervisor"),
		Readings:     make(chan models.Reading, cfg.BufferSize),
		state:        models.StateIdle,
		since:        clk.Now(),
		text:         TextIdle,
	}
}

// Start begins supervising target. A running session is stopped first so at
// most one transport is ever live. A malformed target is rejected before
// any transport is created; if nothing was running the supervisor moves to
// Failed, otherwise the current session is left untouched.
func (s *Supervisor) Start(target models.Target) error {
	if err := target.Validate(); err != nil {
		s.RejectTarget(err)
		return err
	}

	s.mu.Lock()
	old := s.teardownLocked()
	s.running = true
	s.target = target
	s.attempt = 0
	ep := s.epoch
	s.log.Info().Str("target", target.Addr()).Msg("starting")
	s.mu.Unlock()

	if old != nil {
		s.closeTransport(old)
	}
	s.attemptConnect(ep)
	return nil
}

// Stop cancels all timers, closes the transport and returns to Idle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running && s.state == models.StateIdle {
		s.mu.Unlock()
		return
	}
	old := s.teardownLocked()
	s.running = false
	s.setStateLocked(models.StateIdle, TextIdle, "")
	st := s.statusLocked()
	s.mu.Unlock()

	s.log.Info().Msg("stopped")
	if old != nil {
		s.closeTransport(old)
	}
	s.emit(st)
}

// Status returns the current status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// State returns the current connection state.
func (s *Supervisor) State() models.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// teardownLocked invalidates the current epoch and detaches the transport.
// The caller closes the returned transport after releasing the lock.
func (s *Supervisor) teardownLocked() Transport {
	s.epoch++
	s.stopTimersLocked()
	t := s.transport
	s.transport = nil
	return t
}

func (s *Supervisor) stopTimersLocked() {
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// RejectTarget reports a malformed target without creating a transport.
func (s *Supervisor) RejectTarget(err error) {
	var te *models.TargetError
	msg := err.Error()
	if errors.As(err, &te) {
		msg = te.Msg
	}
	s.log.Warn().Err(err).Msg("rejected target")

	s.mu.Lock()
	if !s.running {
		s.setStateLocked(models.StateFailed, TextInvalidTarget, msg)
	}
	st := s.statusLocked()
	st.Error = msg
	s.mu.Unlock()

	s.emit(st)
}

// attemptConnect opens a fresh transport under a new epoch, provided nothing
// has happened since expected was observed.
func (s *Supervisor) attemptConnect(expected uint64) {
	s.mu.Lock()
	if !s.running || s.epoch != expected {
		s.mu.Unlock()
		return
	}
	s.epoch++
	ep := s.epoch
	t := s.newTransport()
	s.transport = t
	s.attempt++
	target := s.target
	s.setStateLocked(models.StateConnecting, TextConnecting, "")
	s.connectTimer = s.clock.AfterFunc(s.cfg.ConnectTimeout, func() { s.onTimeout(ep) })
	st := s.statusLocked()
	s.mu.Unlock()

	metrics.ConnectAttemptsTotal.Inc()
	s.log.Info().Str("target", target.Addr()).Int("attempt", st.Attempt).Msg("connecting")
	s.emit(st)

	if err := t.Open(target, s.eventsFor(ep)); err != nil {
		s.onLoss(ep, "open", err)
		return
	}

	// Stop or Start may have raced with Open; make sure an orphaned
	// transport does not stay open.
	s.mu.Lock()
	orphaned := s.transport != t
	s.mu.Unlock()
	if orphaned {
		s.closeTransport(t)
	}
}

func (s *Supervisor) eventsFor(ep uint64) Events {
	return Events{
		OnOpen:    func() { s.onOpen(ep) },
		OnMessage: func(payload []byte) { s.onMessage(ep, payload) },
		OnError:   func(err error) { s.onLoss(ep, "error", err) },
		OnClose:   func() { s.onLoss(ep, "close", nil) },
	}
}

func (s *Supervisor) onOpen(ep uint64) {
	s.mu.Lock()
	if s.epoch != ep || s.state != models.StateConnecting {
		s.mu.Unlock()
		return
	}
	if s.connectTimer != nil {
		s.connectTimer.Stop()
		s.connectTimer = nil
	}
	s.setStateLocked(models.StateConnected, TextConnected, "")
	st := s.statusLocked()
	s.mu.Unlock()

	s.log.Info().Str("target", st.Target).Msg("connected")
	s.emit(st)
}

func (s *Supervisor) onMessage(ep uint64, payload []byte) {
	s.mu.Lock()
	live := s.epoch == ep && s.state == models.StateConnected
	s.mu.Unlock()
	if !live {
		return
	}

	reading, err := models.Normalize(payload, s.clock.Now())
	if err != nil {
		s.parseErrors.Add(1)
		reason := "unrecognized"
		if errors.Is(err, models.ErrMissingValue) {
			reason = "missing_value"
		}
		metrics.ParseErrorsTotal.WithLabelValues(reason).Inc()
		s.log.Warn().Err(err).Msg("dropping sensor message")

		st := s.Status()
		st.Error = msgInvalidPayload
		s.emit(st)
		return
	}

	s.readings.Add(1)
	metrics.ReadingsTotal.Inc()

	select {
	case s.Readings <- reading:
		return
	default:
	}

	expired := make(chan struct{})
	timer := s.clock.AfterFunc(s.cfg.SendTimeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case s.Readings <- reading:
	case <-expired:
		metrics.ReadingsDropped.Inc()
		s.log.Warn().Float64("value", reading.Value).Msg("reading channel full, dropping reading")
	}
}

// onLoss handles the first error or close of a live transport. Later
// signals from the same transport find a newer epoch and are ignored.
func (s *Supervisor) onLoss(ep uint64, kind string, cause error) {
	s.mu.Lock()
	if s.epoch != ep || (s.state != models.StateConnecting && s.state != models.StateConnected) {
		s.mu.Unlock()
		return
	}
	t := s.teardownLocked()
	text := TextDisconnected
	diag := ""
	if kind != "close" {
		text = TextError
		diag = cannotReach(s.target)
	}
	s.setStateLocked(models.StateDisconnected, text, diag)
	s.scheduleReconnectLocked()
	st := s.statusLocked()
	s.mu.Unlock()

	metrics.TransportErrorsTotal.WithLabelValues(kind).Inc()
	s.log.Warn().
		Err(&TransportError{Kind: kind, Err: cause}).
		Dur("retry_in", s.cfg.ReconnectDelay).
		Msg("connection lost")

	if t != nil {
		s.closeTransport(t)
	}
	s.emit(st)
}

func (s *Supervisor) onTimeout(ep uint64) {
	s.mu.Lock()
	if s.epoch != ep || s.state != models.StateConnecting {
		s.mu.Unlock()
		return
	}
	t := s.teardownLocked()
	s.setStateLocked(models.StateFailed, TextTimeout, msgTimeout)
	s.scheduleReconnectLocked()
	st := s.statusLocked()
	s.mu.Unlock()

	metrics.TransportErrorsTotal.WithLabelValues("timeout").Inc()
	s.log.Warn().
		Err(&TransportError{Kind: "timeout", Err: ErrConnectTimeout}).
		Dur("after", s.cfg.ConnectTimeout).
		Msg("connect timed out")

	if t != nil {
		s.closeTransport(t)
	}
	s.emit(st)
}

// scheduleReconnectLocked arms the single reconnect timer for the current epoch.
func (s *Supervisor) scheduleReconnectLocked() {
	ep := s.epoch
	s.reconnectTimer = s.clock.AfterFunc(s.cfg.ReconnectDelay, func() { s.reconnect(ep) })
}

func (s *Supervisor) reconnect(ep uint64) {
	s.mu.Lock()
	due := s.epoch == ep && s.running &&
		(s.state == models.StateDisconnected || s.state == models.StateFailed)
	if due {
		s.reconnectTimer = nil
	}
	s.mu.Unlock()

	if due {
		s.log.Info().Msg("reconnecting")
		s.attemptConnect(ep)
	}
}

func (s *Supervisor) closeTransport(t Transport) {
	if err := t.Close(); err != nil && !errors.Is(err, ErrTransportClosed) {
		s.log.Debug().Err(err).Msg("closing transport")
	}
}

func (s *Supervisor) setStateLocked(state models.ConnectionState, text, diag string) {
	if s.state != state {
		s.since = s.clock.Now()
	}
	s.state = state
	s.text = text
	s.lastError = diag
	metrics.ConnectionState.Set(float64(state))
}

// statusLocked numbers the status while s.mu is held, so Seq follows the
// order in which transitions happened, not the order they are emitted in.
func (s *Supervisor) statusLocked() Status {
	st := Status{
		Seq:         s.seq.Add(1),
		State:       s.state,
		Text:        s.text,
		Error:       s.lastError,
		Attempt:     s.attempt,
		Since:       s.since,
		Readings:    s.readings.Load(),
		ParseErrors: s.parseErrors.Load(),
	}
	if s.target.Host != "" {
		st.Target = s.target.Addr()
	}
	return st
}

func (s *Supervisor) emit(st Status) {
	if s.OnStatus == nil {
		return
	}
	s.OnStatus(st)
}

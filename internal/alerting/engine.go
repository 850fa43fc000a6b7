package alerting

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"water-monitor/internal/clock"
	"water-monitor/internal/logger"
	"water-monitor/internal/models"
)

// Memory is the dedup state: when each class was last sent, and which
// class was sent most recently.
type Memory struct {
	LastSent  map[models.Severity]time.Time `json:"last_sent"`
	LastClass *models.Severity              `json:"last_class,omitempty"`
}

func newMemory() Memory {
	return Memory{LastSent: make(map[models.Severity]time.Time)}
}

func (m Memory) clone() Memory {
	out := newMemory()
	for k, v := range m.LastSent {
		out.LastSent[k] = v
	}
	if m.LastClass != nil {
		c := *m.LastClass
		out.LastClass = &c
	}
	return out
}

// Engine decides whether a classified reading warrants a notification.
// It only records a send when told via MarkSent.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	memory   Memory
	inFlight map[models.Severity]uuid.UUID
	log      zerolog.Logger
}

// NewEngine builds an engine. A nil clock means wall time.
func NewEngine(cfg Config, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Engine{
		cfg:      cfg,
		clock:    clk,
		memory:   newMemory(),
		inFlight: make(map[models.Severity]uuid.UUID),
		log:      logger.WithComponent("alert-engine"),
	}
}

// Consider returns a new AlertRequest, or a suppression error explaining
// why none was produced.
func (e *Engine) Consider(r models.Reading, sev models.Severity) (*models.AlertRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !sev.Alertable() {
		if e.cfg.ResetOnRecovery && e.memory.LastClass != nil {
			e.log.Debug().Str("severity", sev.String()).Msg("level recovered, clearing last alert class")
			e.memory.LastClass = nil
		}
		return nil, ErrNotEligible
	}
	if !e.cfg.Enabled {
		return nil, ErrAlertsDisabled
	}
	if _, busy := e.inFlight[sev]; busy {
		return nil, ErrInFlight
	}

	now := e.clock.Now()
	if e.cfg.Strategy.checksState() && e.memory.LastClass != nil && *e.memory.LastClass == sev {
		return nil, ErrSameState
	}
	if e.cfg.Strategy.checksCooldown() {
		if last, ok := e.memory.LastSent[sev]; ok {
			until := last.Add(e.cfg.Cooldown)
			if now.Before(until) {
				return nil, &RateLimitedError{Severity: sev, RetryAfter: until.Sub(now), Until: until}
			}
		}
	}

	req := models.NewAlertRequest(sev, r, now)
	e.inFlight[sev] = req.ID
	return req, nil
}

// MarkSent records a confirmed dispatch and returns when the class cooldown ends.
func (e *Engine) MarkSent(req *models.AlertRequest, at time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.release(req)
	sev := req.Severity
	e.memory.LastSent[sev] = at
	e.memory.LastClass = &sev
	return at.Add(e.cfg.Cooldown)
}

// MarkFailed releases the in-flight slot without touching memory, so the
// next qualifying reading is eligible again.
func (e *Engine) MarkFailed(req *models.AlertRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.release(req)
}

func (e *Engine) release(req *models.AlertRequest) {
	if id, ok := e.inFlight[req.Severity]; ok && id == req.ID {
		delete(e.inFlight, req.Severity)
	}
}

// SetEnabled toggles alerting. Any change clears the dedup memory.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cfg.Enabled == enabled {
		return
	}
	e.cfg.Enabled = enabled
	e.memory = newMemory()
	e.log.Info().Bool("enabled", enabled).Msg("alerts toggled, memory cleared")
}

// Enabled reports whether alerting is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Enabled
}

// Reset clears the dedup memory.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memory = newMemory()
}

// Memory returns a copy of the current dedup state.
func (e *Engine) Memory() Memory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memory.clone()
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// CooldownRemaining reports how long until sev may be sent again under the
// cooldown rule. Zero means now.
func (e *Engine) CooldownRemaining(sev models.Severity) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	last, ok := e.memory.LastSent[sev]
	if !ok {
		return 0
	}
	if d := last.Add(e.cfg.Cooldown).Sub(e.clock.Now()); d > 0 {
		return d
	}
	return 0
}

package alerting

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects which dedup rules gate an alert.
type Strategy int

const (
	// StrategyCombined requires a class change and an elapsed cooldown.
	StrategyCombined Strategy = iota
	StrategyStateChange
	StrategyCooldown
)

func (s Strategy) String() string {
	switch s {
	case StrategyStateChange:
		return "state-change"
	case StrategyCooldown:
		return "cooldown"
	default:
		return "combined"
	}
}

func (s Strategy) checksState() bool    { return s != StrategyCooldown }
func (s Strategy) checksCooldown() bool { return s != StrategyStateChange }

// ParseStrategy accepts state-change, cooldown or combined.
func ParseStrategy(v string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "combined", "":
		return StrategyCombined, nil
	case "state-change", "state_change", "statechange":
		return StrategyStateChange, nil
	case "cooldown":
		return StrategyCooldown, nil
	default:
		return StrategyCombined, fmt.Errorf("unknown dedup strategy %q", v)
	}
}

// DefaultCooldown is the minimum gap between two alerts of the same class.
const DefaultCooldown = 5 * time.Minute

// Config tunes an Engine.
type Config struct {
	Strategy Strategy
	Cooldown time.Duration
	Enabled  bool

	// ResetOnRecovery forgets the last sent class once a non-alertable
	// reading is seen, so a later excursion notifies again.
	ResetOnRecovery bool
}

// DefaultConfig returns the combined strategy with a 5 minute cooldown.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyCombined,
		Cooldown: DefaultCooldown,
		Enabled:  true,
	}
}

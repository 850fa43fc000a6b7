package supervisor

import (
	"fmt"
	"time"

	"water-monitor/internal/models"
)

// Status texts shown next to the connection indicator.
const (
	TextIdle           = "Disconnected"
	TextConnecting     = "Connecting..."
	TextConnected      = "Connected"
	TextTimeout        = "Connection Timeout"
	TextError          = "Connection Error"
	TextDisconnected   = "Disconnected"
	TextInvalidTarget  = "Connection Failed"
	msgTimeout         = "Connection timeout. Check ESP IP/port and that WS server is running."
	msgInvalidPayload  = "Invalid data format received from sensor"
	msgCannotReachTmpl = "Connection error: Cannot reach %s. Check if the server is running."
)

func cannotReach(target models.Target) string {
	return fmt.Sprintf(msgCannotReachTmpl, target.Addr())
}

// Status is a point-in-time view of the supervisor. Seq is taken under the
// supervisor lock and increases with every status built, so sinks can
// discard ones that arrive out of order.
type Status struct {
	Seq         uint64                 `json:"seq"`
	State       models.ConnectionState `json:"state"`
	Text        string                 `json:"status"`
	Error       string                 `json:"error,omitempty"`
	Target      string                 `json:"target,omitempty"`
	Attempt     int                    `json:"attempt"`
	Since       time.Time              `json:"since"`
	Readings    uint64                 `json:"readings"`
	ParseErrors uint64                 `json:"parse_errors"`
}

// Connected is shorthand for State == StateConnected.
func (s Status) Connected() bool {
	return s.State == models.StateConnected
}

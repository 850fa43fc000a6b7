package models

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ConnectionState is the supervisor's lifecycle state.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateConnected
	StateDisconnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var ErrInvalidTarget = errors.New("invalid target")

// User-facing target validation messages.
const (
	msgTargetRequired = "Please enter both IP address and port"
	msgInvalidHost    = "Please enter a valid IP address (e.g., 192.168.1.100)"
	msgInvalidPort    = "Please enter a valid port number (1-65535)"
)

var hostLabel = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?$`)

// TargetError explains why a target was rejected. It wraps ErrInvalidTarget.
type TargetError struct {
	Msg string
}

func (e *TargetError) Error() string { return e.Msg }

func (e *TargetError) Unwrap() error { return ErrInvalidTarget }

// Target is the remote producer to connect to.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Addr returns host:port.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) String() string { return t.Addr() }

// Validate re-checks a target built without ParseTarget.
func (t Target) Validate() error {
	_, err := ParseTarget(t.Host, strconv.Itoa(t.Port))
	return err
}

// ParseTarget validates a host and port pair. The host must be an IPv4
// address or a DNS name; a dotted all-numeric host must be a valid IPv4.
func ParseTarget(host, port string) (Target, error) {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	if host == "" || port == "" {
		return Target{}, &TargetError{Msg: msgTargetRequired}
	}
	if !validHost(host) {
		return Target{}, &TargetError{Msg: msgInvalidHost}
	}
	p, err := strconv.Atoi(port)
	if err != nil || p < 1 || p > 65535 {
		return Target{}, &TargetError{Msg: msgInvalidPort}
	}
	return Target{Host: host, Port: p}, nil
}

// ParseTargetAddr accepts the "host:port" form.
func ParseTargetAddr(addr string) (Target, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return Target{}, &TargetError{Msg: msgTargetRequired}
	}
	return ParseTarget(host, port)
}

func validHost(host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return ip.To4() != nil
	}
	if len(host) > 253 {
		return false
	}
	numeric := true
	for _, label := range strings.Split(host, ".") {
		if !hostLabel.MatchString(label) {
			return false
		}
		if _, err := strconv.Atoi(label); err != nil {
			numeric = false
		}
	}
	// 999.1.1.1 is a typo, not a hostname
	return !numeric
}

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	ErrUnrecognized = errors.New("unrecognized payload")
	ErrMissingValue = errors.New("no numeric water level field")
)

// ValueKeys are checked in order; the first numeric one wins.
var ValueKeys = []string{"waterLevel", "water_level", "level", "value"}

const hazardThresholdKey = "hazardThreshold"

// ParseError is returned for payloads that do not yield a reading.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse reading %q: %v", e.Payload, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

const maxPayloadEcho = 64

func newParseError(payload []byte, err error) *ParseError {
	p := string(payload)
	if len(p) > maxPayloadEcho {
		p = p[:maxPayloadEcho] + "..."
	}
	return &ParseError{Payload: p, Err: err}
}

// Normalize turns a raw sensor message into a Reading. A JSON object is
// tried first; anything else must be a bare finite number.
func Normalize(payload []byte, receivedAt time.Time) (Reading, error) {
	trimmed := bytes.TrimSpace(payload)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err == nil && fields != nil {
		return fromObject(trimmed, fields, receivedAt)
	}

	value, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return Reading{}, newParseError(payload, ErrUnrecognized)
	}
	return NewReading(value, receivedAt), nil
}

func fromObject(raw []byte, fields map[string]json.RawMessage, receivedAt time.Time) (Reading, error) {
	for _, key := range ValueKeys {
		v, ok := numberField(fields, key)
		if !ok {
			continue
		}
		r := NewReading(v, receivedAt)
		// a zero override means "not set"
		if h, ok := numberField(fields, hazardThresholdKey); ok && h != 0 {
			r.HazardThreshold = &h
		}
		return r, nil
	}
	return Reading{}, newParseError(raw, ErrMissingValue)
}

// numberField reports a key as present only when it holds a JSON number;
// null and other types fall through to the next key.
func numberField(fields map[string]json.RawMessage, key string) (float64, bool) {
	raw, ok := fields[key]
	if !ok {
		return 0, false
	}
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil || v == nil {
		return 0, false
	}
	return *v, true
}

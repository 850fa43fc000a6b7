package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"water-monitor/internal/clock"
	"water-monitor/internal/models"
	"water-monitor/internal/services"
)

// AlertLog reads back the alert audit log.
type AlertLog interface {
	RecentAlerts(ctx context.Context, limit int) ([]models.AlertRecord, error)
}

// BrokerStatus reports the alert publisher's broker link.
type BrokerStatus interface {
	IsConnected() bool
}

// Handler serves the monitor's control and status endpoints.
type Handler struct {
	session  *services.Session
	relay    *RelayHandler
	alertLog AlertLog
	clock    clock.Clock

	// AlertBroker is set when alerts are also published over MQTT.
	AlertBroker BrokerStatus
}

// NewHandler wires the API. relay and alertLog may be nil.
func NewHandler(session *services.Session, relay *RelayHandler, alertLog AlertLog, clk clock.Clock) *Handler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Handler{session: session, relay: relay, alertLog: alertLog, clock: clk}
}

type healthResponse struct {
	Status          string          `json:"status"`
	Timestamp       string          `json:"timestamp"`
	Sensor          string          `json:"sensor"`
	SensorConnected bool            `json:"sensor_connected"`
	Telegram        *telegramHealth `json:"telegram,omitempty"`
	MQTTConnected   *bool           `json:"mqtt_connected,omitempty"`
}

// HandleHealth serves GET /api/health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	conn := h.session.Status().Connection
	resp := healthResponse{
		Status:          "ok",
		Timestamp:       h.clock.Now().UTC().Format(isoMillis),
		Sensor:          conn.State.String(),
		SensorConnected: conn.Connected(),
	}
	if h.relay != nil {
		th := h.relay.health()
		resp.Telegram = &th
	}
	if h.AlertBroker != nil {
		up := h.AlertBroker.IsConnected()
		resp.MQTTConnected = &up
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatus serves GET /api/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

// HandleHistory serves GET /api/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.History())
}

type startRequest struct {
	Target string `json:"target"`
	Host   string `json:"host"`
	Port   string `json:"port"`
}

// HandleStart serves POST /api/session/start. The body carries either
// {"target":"host:port"} or {"host":..., "port":...}.
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	var err error
	if req.Target != "" {
		err = h.session.Start(req.Target)
	} else {
		err = h.session.StartTarget(req.Host, req.Port)
	}
	if err != nil {
		var te *models.TargetError
		if errors.As(err, &te) {
			writeError(w, http.StatusBadRequest, te.Msg, nil)
			return
		}
		writeError(w, http.StatusBadRequest, "Connection Failed", err)
		return
	}

	writeJSON(w, http.StatusAccepted, h.session.Status().Connection)
}

// HandleStop serves POST /api/session/stop.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.session.Stop()
	writeJSON(w, http.StatusOK, h.session.Status().Connection)
}

type alertsRequest struct {
	Enabled *bool `json:"enabled"`
}

// HandleSetAlerts serves PUT /api/alerts.
func (h *Handler) HandleSetAlerts(w http.ResponseWriter, r *http.Request) {
	var req alertsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required", nil)
		return
	}

	h.session.SetAlertsEnabled(*req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.session.AlertsEnabled()})
}

type thresholdsRequest struct {
	Warning *float64 `json:"warning"`
	Hazard  *float64 `json:"hazard"`
}

// HandleSetThresholds serves PUT /api/thresholds. Omitted fields keep
// their current value.
func (h *Handler) HandleSetThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	t := h.session.Thresholds()
	if req.Warning != nil {
		t.Warning = *req.Warning
	}
	if req.Hazard != nil {
		t.Hazard = *req.Hazard
	}
	if err := h.session.SetThresholds(t.Warning, t.Hazard); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid thresholds", err)
		return
	}

	writeJSON(w, http.StatusOK, h.session.Thresholds())
}

// HandleAlertLog serves GET /api/alerts/log?limit=N.
func (h *Handler) HandleAlertLog(w http.ResponseWriter, r *http.Request) {
	if h.alertLog == nil {
		writeError(w, http.StatusServiceUnavailable, "Alert log is not configured", nil)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000", nil)
			return
		}
		limit = n
	}

	records, err := h.alertLog.RecentAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read alert log", err)
		return
	}
	if records == nil {
		records = []models.AlertRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

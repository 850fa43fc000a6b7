package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"water-monitor/internal/aggregator"
	"water-monitor/internal/alerting"
	"water-monitor/internal/clock"
	"water-monitor/internal/models"
	"water-monitor/internal/services"
	"water-monitor/internal/supervisor"
)

type fakeSender struct {
	mu         sync.Mutex
	configured bool
	err        error
	alerts     []models.Severity
	texts      []string
}

func (f *fakeSender) Configured() bool { return f.configured }

func (f *fakeSender) SendAlert(_ context.Context, sev models.Severity, _ float64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, sev)
	return nil
}

func (f *fakeSender) SendText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.texts = append(f.texts, text)
	return nil
}

type nopTransport struct{}

func (nopTransport) Open(models.Target, supervisor.Events) error { return nil }

func (nopTransport) Close() error { return nil }

type fakeAlertLog struct {
	records []models.AlertRecord
	limit   int
}

func (f *fakeAlertLog) RecentAlerts(_ context.Context, limit int) ([]models.AlertRecord, error) {
	f.limit = limit
	return f.records, nil
}

type testServer struct {
	clock   *clock.Fake
	sender  *fakeSender
	session *services.Session
	monitor *services.MonitorService
	srv     *httptest.Server
}

func newTestServer(t *testing.T, alertLog AlertLog) *testServer {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	sender := &fakeSender{configured: true}

	engine := alerting.NewEngine(alerting.DefaultConfig(), clk)
	monitor := services.NewMonitorService(aggregator.NewHistory(10), engine, nil, nil, services.DefaultMonitorServiceConfig())
	sup := supervisor.New(supervisor.DefaultConfig(), func() supervisor.Transport { return nopTransport{} }, clk)
	session := services.NewSession(sup, monitor, engine)

	h := NewHandler(session, NewRelayHandler(sender, 5*time.Minute, clk), alertLog, clk)
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)

	return &testServer{clock: clk, sender: sender, session: session, monitor: monitor, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, ts.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRelayAlertCooldown(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/alert", `{"waterLevel": 85.2, "status": "FLOOD_HAZARD", "timestamp": "01/05/2024, 12:00:00"}`)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("first alert: %d %v", resp.StatusCode, body)
	}
	if body["cooldownUntil"] != "2024-05-01T12:05:00.000Z" {
		t.Errorf("cooldownUntil = %v", body["cooldownUntil"])
	}

	ts.clock.Advance(time.Second)
	resp, body = ts.do(t, http.MethodPost, "/api/alert", `{"waterLevel": 86, "status": "FLOOD_HAZARD"}`)
	if resp.StatusCode != http.StatusTooManyRequests || body["success"] != false {
		t.Fatalf("repeat alert: %d %v", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") != "299" {
		t.Errorf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}

	// warning has its own cooldown
	resp, _ = ts.do(t, http.MethodPost, "/api/alert", `{"waterLevel": 72, "status": "WARNING"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("warning alert: %d", resp.StatusCode)
	}

	ts.clock.Advance(6 * time.Minute)
	resp, _ = ts.do(t, http.MethodPost, "/api/alert", `{"waterLevel": 90, "status": "FLOOD_HAZARD"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("after cooldown: %d", resp.StatusCode)
	}

	want := []models.Severity{models.SeverityHazard, models.SeverityWarning, models.SeverityHazard}
	if len(ts.sender.alerts) != len(want) {
		t.Fatalf("sent = %v, want %v", ts.sender.alerts, want)
	}
}

func TestRelayAlertValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"missing level", `{"status": "WARNING"}`},
		{"null level", `{"waterLevel": null}`},
		{"not json", `waterLevel=80`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/api/alert", tt.body)
			if resp.StatusCode != http.StatusBadRequest || body["success"] != false {
				t.Errorf("status = %d, body = %v", resp.StatusCode, body)
			}
		})
	}
}

func TestRelayAlertSendFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.sender.err = errors.New("chat not found")

	resp, body := ts.do(t, http.MethodPost, "/api/alert", `{"waterLevel": 75, "status": "WARNING"}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["message"] != "Failed to send alert" || body["error"] != "chat not found" {
		t.Errorf("body = %v", body)
	}

	// a failed send does not start the cooldown
	ts.sender.err = nil
	resp, _ = ts.do(t, http.MethodPost, "/api/alert", `{"waterLevel": 75, "status": "WARNING"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("retry status = %d", resp.StatusCode)
	}
}

func TestTestTelegramAndHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodGet, "/api/test-telegram", "")
	if resp.StatusCode != http.StatusOK || body["message"] != "Test message sent successfully" {
		t.Fatalf("test-telegram: %d %v", resp.StatusCode, body)
	}
	if len(ts.sender.texts) != 1 || !strings.Contains(ts.sender.texts[0], "Telegram Bot Test") {
		t.Errorf("texts = %v", ts.sender.texts)
	}

	resp, body = ts.do(t, http.MethodGet, "/api/health", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["sensor"] != "idle" {
		t.Fatalf("health: %d %v", resp.StatusCode, body)
	}
	tg, _ := body["telegram"].(map[string]interface{})
	if tg["configured"] != true || tg["cooldown"] != "300 seconds" {
		t.Errorf("telegram = %v", tg)
	}
}

type fakeBroker struct{ up bool }

func (b fakeBroker) IsConnected() bool { return b.up }

func TestHealthReportsLinks(t *testing.T) {
	ts := newTestServer(t, nil)

	_, body := ts.do(t, http.MethodGet, "/api/health", "")
	if body["sensor_connected"] != false {
		t.Errorf("sensor_connected = %v", body["sensor_connected"])
	}
	if _, ok := body["mqtt_connected"]; ok {
		t.Errorf("mqtt_connected reported without a broker: %v", body)
	}

	h := NewHandler(ts.session, nil, nil, ts.clock)
	h.AlertBroker = fakeBroker{up: true}
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	var out map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["mqtt_connected"] != true {
		t.Errorf("mqtt_connected = %v", out["mqtt_connected"])
	}
	if _, ok := out["telegram"]; ok {
		t.Error("telegram reported without a relay")
	}
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPost, "/api/session/start", `{"target": "999.1.1.1:81"}`)
	if resp.StatusCode != http.StatusBadRequest || body["message"] != "Please enter a valid IP address (e.g., 192.168.1.100)" {
		t.Fatalf("bad target: %d %v", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/session/start", `{"host": "192.168.1.100", "port": "81"}`)
	if resp.StatusCode != http.StatusAccepted || body["state"] != "connecting" {
		t.Fatalf("start: %d %v", resp.StatusCode, body)
	}

	resp, body = ts.do(t, http.MethodPost, "/api/session/stop", "")
	if resp.StatusCode != http.StatusOK || body["state"] != "idle" {
		t.Fatalf("stop: %d %v", resp.StatusCode, body)
	}
}

func TestThresholdAndAlertToggleEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, body := ts.do(t, http.MethodPut, "/api/thresholds", `{"hazard": 90}`)
	if resp.StatusCode != http.StatusOK || body["warning"] != 70.0 || body["hazard"] != 90.0 {
		t.Fatalf("thresholds: %d %v", resp.StatusCode, body)
	}

	resp, _ = ts.do(t, http.MethodPut, "/api/thresholds", `{"warning": "high"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad thresholds status = %d", resp.StatusCode)
	}

	resp, body = ts.do(t, http.MethodPut, "/api/alerts", `{"enabled": false}`)
	if resp.StatusCode != http.StatusOK || body["enabled"] != false {
		t.Fatalf("alerts: %d %v", resp.StatusCode, body)
	}
	if ts.session.AlertsEnabled() {
		t.Error("alerts still enabled")
	}

	resp, _ = ts.do(t, http.MethodPut, "/api/alerts", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing enabled status = %d", resp.StatusCode)
	}
}

func TestHistoryAndStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, v := range []float64{20, 60, 85} {
		ts.monitor.ProcessReading(context.Background(), models.NewReading(v, ts.clock.Now()))
	}

	resp, err := http.Get(ts.srv.URL + "/api/history")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var points []aggregator.HistoryPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		t.Fatal(err)
	}
	if len(points) != 3 || points[2].Severity != models.SeverityHazard {
		t.Errorf("history = %+v", points)
	}

	_, body := ts.do(t, http.MethodGet, "/api/status", "")
	latest, _ := body["latest"].(map[string]interface{})
	if latest["status"] != "FLOOD HAZARD!" || latest["severity"] != "HAZARD" {
		t.Errorf("latest = %v", latest)
	}
	if body["strategy"] != "combined" {
		t.Errorf("strategy = %v", body["strategy"])
	}
}

func TestAlertLogEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := ts.do(t, http.MethodGet, "/api/alerts/log", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("without log: %d", resp.StatusCode)
	}

	log := &fakeAlertLog{records: []models.AlertRecord{{Outcome: models.OutcomeSent, Status: models.AlertStatusHazard}}}
	ts = newTestServer(t, log)
	resp, err := http.Get(ts.srv.URL + "/api/alerts/log?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var records []models.AlertRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || log.limit != 5 {
		t.Errorf("records = %+v, limit = %d", records, log.limit)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

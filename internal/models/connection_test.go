package models_test

import (
	"errors"
	"testing"

	"water-monitor/internal/models"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		port    string
		wantErr bool
	}{
		{"ipv4", "192.168.1.100", "81", false},
		{"hostname", "esp32.local", "8080", false},
		{"trimmed", " 10.0.0.5 ", " 81 ", false},
		{"empty host", "", "81", true},
		{"empty port", "10.0.0.5", "", true},
		{"octet out of range", "999.1.1.1", "81", true},
		{"short numeric", "10.0.5", "81", true},
		{"ipv6", "::1", "81", true},
		{"bad label", "esp_32.local", "81", true},
		{"port zero", "10.0.0.5", "0", true},
		{"port too large", "10.0.0.5", "65536", true},
		{"port max", "10.0.0.5", "65535", false},
		{"port not a number", "10.0.0.5", "http", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := models.ParseTarget(tt.host, tt.port)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTarget(%q, %q) error = %v, wantErr %v", tt.host, tt.port, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, models.ErrInvalidTarget) {
				t.Errorf("error %v does not wrap ErrInvalidTarget", err)
			}
		})
	}
}

func TestParseTargetAddr(t *testing.T) {
	target, err := models.ParseTargetAddr("192.168.1.100:81")
	if err != nil {
		t.Fatalf("ParseTargetAddr() error: %v", err)
	}
	if target.Host != "192.168.1.100" || target.Port != 81 {
		t.Errorf("target = %+v", target)
	}
	if target.Addr() != "192.168.1.100:81" {
		t.Errorf("Addr() = %q", target.Addr())
	}

	if _, err := models.ParseTargetAddr("192.168.1.100"); !errors.Is(err, models.ErrInvalidTarget) {
		t.Errorf("missing port: error = %v", err)
	}
}

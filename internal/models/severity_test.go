package models_test

import (
	"math"
	"testing"

	"water-monitor/internal/models"
)

func TestClassifyBoundaries(t *testing.T) {
	th := models.DefaultThresholds()

	tests := []struct {
		value float64
		want  models.Severity
	}{
		{0, models.SeveritySafe},
		{49.9, models.SeveritySafe},
		{50, models.SeverityModerate},
		{69.99, models.SeverityModerate},
		{70, models.SeverityWarning},
		{79.9, models.SeverityWarning},
		{80, models.SeverityHazard},
		{85, models.SeverityHazard},
		{150, models.SeverityHazard},
		{-5, models.SeveritySafe},
	}

	for _, tt := range tests {
		if got := models.Classify(tt.value, th); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	th := models.DefaultThresholds()
	prev := models.Classify(-10, th)
	for v := -10.0; v <= 110; v += 0.25 {
		got := models.Classify(v, th)
		if got < prev {
			t.Fatalf("Classify(%v) = %v dropped below %v", v, got, prev)
		}
		prev = got
	}
}

func TestClassifyInvertedThresholdsChecksHazardFirst(t *testing.T) {
	th := models.Thresholds{Warning: 90, Hazard: 75}
	if !th.Inverted() {
		t.Fatal("expected thresholds to be inverted")
	}
	if got := models.Classify(80, th); got != models.SeverityHazard {
		t.Errorf("Classify(80) = %v, want HAZARD", got)
	}
	if got := models.Classify(72, th); got != models.SeverityModerate {
		t.Errorf("Classify(72) = %v, want MODERATE", got)
	}
}

func TestThresholdsFor(t *testing.T) {
	h := 60.0
	r := models.Reading{Value: 65, HazardThreshold: &h}

	eff := models.DefaultThresholds().For(r)
	if eff.Hazard != 60 || eff.Warning != 70 {
		t.Fatalf("For() = %+v", eff)
	}
	if got := models.Classify(r.Value, eff); got != models.SeverityHazard {
		t.Errorf("override not applied: got %v", got)
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name    string
		th      models.Thresholds
		wantErr bool
	}{
		{"defaults", models.DefaultThresholds(), false},
		{"inverted is allowed", models.Thresholds{Warning: 90, Hazard: 10}, false},
		{"nan warning", models.Thresholds{Warning: math.NaN(), Hazard: 80}, true},
		{"inf hazard", models.Thresholds{Warning: 70, Hazard: math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.th.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeverityLabels(t *testing.T) {
	tests := map[models.Severity]string{
		models.SeveritySafe:     "SAFE",
		models.SeverityModerate: "MODERATE",
		models.SeverityWarning:  "HIGH - WARNING",
		models.SeverityHazard:   "FLOOD HAZARD!",
	}
	for sev, want := range tests {
		if got := sev.Label(); got != want {
			t.Errorf("%v.Label() = %q, want %q", sev, got, want)
		}
	}
}

func TestSeverityText(t *testing.T) {
	var s models.Severity
	if err := s.UnmarshalText([]byte("flood_hazard")); err != nil || s != models.SeverityHazard {
		t.Fatalf("UnmarshalText(flood_hazard) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown severity")
	}
	b, _ := models.SeverityWarning.MarshalText()
	if string(b) != "WARNING" {
		t.Errorf("MarshalText() = %s", b)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetDetectConfidence(); got != 0.85 {
		t.Errorf("GetDetectConfidence() = %v, want 0.85", got)
	}
	if got := cfg.GetPassingConfidence(); got != 0.80 {
		t.Errorf("GetPassingConfidence() = %v, want 0.80", got)
	}
	if got := cfg.GetRitaseConfidence(); got != 0.90 {
		t.Errorf("GetRitaseConfidence() = %v, want 0.90", got)
	}
	if got := cfg.GetHitsToConfirm(); got != 3 {
		t.Errorf("GetHitsToConfirm() = %v, want 3", got)
	}
	if got := cfg.GetMaxMisses(); got != 15 {
		t.Errorf("GetMaxMisses() = %v, want 15", got)
	}
	if got := cfg.GetDetectAhead(); got != 4 {
		t.Errorf("GetDetectAhead() = %v, want 4", got)
	}
	if got := cfg.GetRollupInterval(); got != 15*time.Minute {
		t.Errorf("GetRollupInterval() = %v, want 15m", got)
	}
}

func TestLoadTuningConfigPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	body := `{"detect_confidence": 0.5, "max_misses": 7, "rollup_interval": "1h"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig() error = %v", err)
	}

	if got := cfg.GetDetectConfidence(); got != 0.5 {
		t.Errorf("GetDetectConfidence() = %v, want 0.5", got)
	}
	if got := cfg.GetMaxMisses(); got != 7 {
		t.Errorf("GetMaxMisses() = %v, want 7", got)
	}
	if got := cfg.GetRollupInterval(); got != time.Hour {
		t.Errorf("GetRollupInterval() = %v, want 1h", got)
	}
	// Untouched fields keep their defaults.
	if got := cfg.GetPassingConfidence(); got != 0.80 {
		t.Errorf("GetPassingConfidence() = %v, want 0.80", got)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadTuningConfig("/etc/passwd"); err == nil {
		t.Error("expected error for non-.json path")
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }

	tests := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty is valid", TuningConfig{}, false},
		{"confidence above one", TuningConfig{DetectConfidence: f(1.5)}, true},
		{"confidence below zero", TuningConfig{RitaseConfidence: f(-0.1)}, true},
		{"negative detect ahead", TuningConfig{DetectAhead: i(-1)}, true},
		{"zero detect ahead ok", TuningConfig{DetectAhead: i(0)}, false},
		{"jpeg quality out of range", TuningConfig{JPEGQuality: i(0)}, true},
		{"zero max tracks", TuningConfig{MaxTracks: i(0)}, true},
		{"zero max misses", TuningConfig{MaxMisses: i(0)}, true},
		{"bad rollup interval", TuningConfig{RollupInterval: s("soon")}, true},
		{"good rollup interval", TuningConfig{RollupInterval: s("30m")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/power.report/internal/gsp"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.Sigma == nil || *cfg.Sigma != 20 {
		t.Errorf("Expected Sigma 20, got %v", cfg.Sigma)
	}
	if cfg.TNegative == nil || *cfg.TNegative != -20 {
		t.Errorf("Expected TNegative -20, got %v", cfg.TNegative)
	}
	if cfg.InstanceLimit == nil || *cfg.InstanceLimit != 3 {
		t.Errorf("Expected InstanceLimit 3, got %v", cfg.InstanceLimit)
	}
	if cfg.DisplayUnits == nil || *cfg.DisplayUnits != "W" {
		t.Errorf("Expected DisplayUnits W, got %v", cfg.DisplayUnits)
	}

	if got := cfg.ToGSPConfig(); got != gsp.DefaultConfig() {
		t.Errorf("ToGSPConfig() = %+v, want %+v", got, gsp.DefaultConfig())
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if got := cfg.ToGSPConfig(); got != gsp.DefaultConfig() {
		t.Errorf("%s drifted from gsp.DefaultConfig():\n got %+v\nwant %+v", DefaultConfigPath, got, gsp.DefaultConfig())
	}
	if cfg.GetTimezone() != "UTC" {
		t.Errorf("GetTimezone() = %q, want UTC", cfg.GetTimezone())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "sigma": 28,
  "ri": 0.5,
  "t_positive": 15,
  "instance_limit": 2,
  "timezone": "Europe/London",
  "display_units": "kW",
  "unknown_field": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Sigma == nil || *cfg.Sigma != 28 {
		t.Errorf("Expected Sigma 28, got %v", cfg.Sigma)
	}
	if cfg.TNegative != nil {
		t.Errorf("Expected TNegative unset, got %v", *cfg.TNegative)
	}

	g := cfg.ToGSPConfig()
	if g.Sigma != 28 || g.Ri != 0.5 || g.TPositive != 15 || g.InstanceLimit != 2 {
		t.Errorf("ToGSPConfig() did not apply file values: %+v", g)
	}
	if g.TNegative != gsp.DefaultTNegative || g.Alpha != gsp.DefaultAlpha {
		t.Errorf("ToGSPConfig() did not keep defaults for unset fields: %+v", g)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("merged config invalid: %v", err)
	}
	if cfg.GetDisplayUnits() != "kW" {
		t.Errorf("GetDisplayUnits() = %q, want kW", cfg.GetDisplayUnits())
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	_, err := LoadTuningConfig("config.yaml")
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "huge.json")
	if err := os.WriteFile(configPath, make([]byte, 1024*1024+1), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	cases := map[string]string{
		"bad_json.json":   `{"sigma": "wide"`,
		"bad_values.json": `{"t_negative": 20}`,
	}
	for name, body := range cases {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(body), 0644); err != nil {
			t.Fatalf("Failed to write test config: %v", err)
		}
		if _, err := LoadTuningConfig(path); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{"valid config", DefaultTuningConfig(), false},
		{"empty config is valid", &TuningConfig{}, false},
		{"zero sigma", &TuningConfig{Sigma: ptrFloat64(0)}, true},
		{"negative ri", &TuningConfig{Ri: ptrFloat64(-0.2)}, true},
		{"zero t_positive", &TuningConfig{TPositive: ptrFloat64(0)}, true},
		{"positive t_negative", &TuningConfig{TNegative: ptrFloat64(10)}, true},
		{"zero instance limit", &TuningConfig{InstanceLimit: ptrInt(0)}, true},
		{"zero window", &TuningConfig{WindowSize: ptrInt(0)}, true},
		{"threshold too high", &TuningConfig{MembershipThreshold: ptrFloat64(1)}, true},
		{"unknown timezone", &TuningConfig{Timezone: ptrString("Mars/Olympus")}, true},
		{"empty timezone", &TuningConfig{Timezone: ptrString("")}, false},
		{"bad units", &TuningConfig{DisplayUnits: ptrString("hp")}, true},
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

func TestGetters(t *testing.T) {
	empty := EmptyTuningConfig()
	if empty.GetSigma() != gsp.DefaultSigma {
		t.Errorf("GetSigma() = %f", empty.GetSigma())
	}
	if empty.GetWindowSize() != gsp.DefaultWindowSize {
		t.Errorf("GetWindowSize() = %d", empty.GetWindowSize())
	}
	if empty.GetMembershipThreshold() != gsp.DefaultMembershipThreshold {
		t.Errorf("GetMembershipThreshold() = %f", empty.GetMembershipThreshold())
	}
	if empty.GetTimezone() != "UTC" {
		t.Errorf("GetTimezone() = %q", empty.GetTimezone())
	}
	if empty.GetDisplayUnits() != "W" {
		t.Errorf("GetDisplayUnits() = %q", empty.GetDisplayUnits())
	}

	set := &TuningConfig{Beta: ptrFloat64(0.9), Alpha: ptrFloat64(0.1)}
	if set.GetBeta() != 0.9 || set.GetAlpha() != 0.1 {
		t.Errorf("GetAlpha/GetBeta = %f/%f", set.GetAlpha(), set.GetBeta())
	}
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/power.report/internal/gsp"
	"github.com/banshee-data/power.report/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/gsp.defaults.json"

// TuningConfig represents the root configuration for a disaggregation run.
// Every field is optional; Get* methods fall back to the gsp defaults.
type TuningConfig struct {
	// Clustering params
	Sigma               *float64 `json:"sigma,omitempty"`
	Ri                  *float64 `json:"ri,omitempty"`
	WindowSize          *int     `json:"window_size,omitempty"`
	MembershipThreshold *float64 `json:"membership_threshold,omitempty"`

	// Event detection params (watts)
	TPositive *float64 `json:"t_positive,omitempty"`
	TNegative *float64 `json:"t_negative,omitempty"`

	// Balancing and matching params
	InstanceLimit *int     `json:"instance_limit,omitempty"`
	Alpha         *float64 `json:"alpha,omitempty"`
	Beta          *float64 `json:"beta,omitempty"`

	// Ingestion and presentation
	Timezone     *string `json:"timezone,omitempty"`      // zone for timestamps without offset
	DisplayUnits *string `json:"display_units,omitempty"` // W, kW or MW
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to the
// built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	d := gsp.DefaultConfig()
	return &TuningConfig{
		Sigma:               ptrFloat64(d.Sigma),
		Ri:                  ptrFloat64(d.Ri),
		WindowSize:          ptrInt(d.WindowSize),
		MembershipThreshold: ptrFloat64(d.MembershipThreshold),
		TPositive:           ptrFloat64(d.TPositive),
		TNegative:           ptrFloat64(d.TNegative),
		InstanceLimit:       ptrInt(d.InstanceLimit),
		Alpha:               ptrFloat64(d.Alpha),
		Beta:                ptrFloat64(d.Beta),
		Timezone:            ptrString("UTC"),
		DisplayUnits:        ptrString(units.W),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/<tool>/ subpackages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that can be judged on their own. The combined
// parameter set is validated again by gsp.Config.Validate.
func (c *TuningConfig) Validate() error {
	if c.Sigma != nil && *c.Sigma <= 0 {
		return fmt.Errorf("sigma must be positive, got %f", *c.Sigma)
	}
	if c.Ri != nil && *c.Ri <= 0 {
		return fmt.Errorf("ri must be positive, got %f", *c.Ri)
	}
	if c.TPositive != nil && *c.TPositive <= 0 {
		return fmt.Errorf("t_positive must be positive, got %f", *c.TPositive)
	}
	if c.TNegative != nil && *c.TNegative >= 0 {
		return fmt.Errorf("t_negative must be negative, got %f", *c.TNegative)
	}
	if c.InstanceLimit != nil && *c.InstanceLimit < 1 {
		return fmt.Errorf("instance_limit must be at least 1, got %d", *c.InstanceLimit)
	}
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}
	if c.MembershipThreshold != nil {
		if *c.MembershipThreshold <= 0 || *c.MembershipThreshold >= 1 {
			return fmt.Errorf("membership_threshold must be between 0 and 1, got %f", *c.MembershipThreshold)
		}
	}
	if c.Timezone != nil && *c.Timezone != "" && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("invalid timezone '%s'", *c.Timezone)
	}
	if c.DisplayUnits != nil && !units.IsValid(*c.DisplayUnits) {
		return fmt.Errorf("display_units must be one of %s, got '%s'", units.GetValidUnitsString(), *c.DisplayUnits)
	}
	return nil
}

// ToGSPConfig merges the set fields over gsp.DefaultConfig.
func (c *TuningConfig) ToGSPConfig() gsp.Config {
	return gsp.Config{
		Sigma:               c.GetSigma(),
		Ri:                  c.GetRi(),
		TPositive:           c.GetTPositive(),
		TNegative:           c.GetTNegative(),
		Alpha:               c.GetAlpha(),
		Beta:                c.GetBeta(),
		InstanceLimit:       c.GetInstanceLimit(),
		WindowSize:          c.GetWindowSize(),
		MembershipThreshold: c.GetMembershipThreshold(),
	}
}

// GetSigma returns the sigma value or the default.
func (c *TuningConfig) GetSigma() float64 {
	if c.Sigma == nil {
		return gsp.DefaultSigma
	}
	return *c.Sigma
}

// GetRi returns the ri value or the default.
func (c *TuningConfig) GetRi() float64 {
	if c.Ri == nil {
		return gsp.DefaultRi
	}
	return *c.Ri
}

// GetTPositive returns the t_positive value or the default.
func (c *TuningConfig) GetTPositive() float64 {
	if c.TPositive == nil {
		return gsp.DefaultTPositive
	}
	return *c.TPositive
}

// GetTNegative returns the t_negative value or the default.
func (c *TuningConfig) GetTNegative() float64 {
	if c.TNegative == nil {
		return gsp.DefaultTNegative
	}
	return *c.TNegative
}

// GetAlpha returns the alpha value or the default.
func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return gsp.DefaultAlpha
	}
	return *c.Alpha
}

// GetBeta returns the beta value or the default.
func (c *TuningConfig) GetBeta() float64 {
	if c.Beta == nil {
		return gsp.DefaultBeta
	}
	return *c.Beta
}

// GetInstanceLimit returns the instance_limit value or the default.
func (c *TuningConfig) GetInstanceLimit() int {
	if c.InstanceLimit == nil {
		return gsp.DefaultInstanceLimit
	}
	return *c.InstanceLimit
}

// GetWindowSize returns the window_size value or the default.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return gsp.DefaultWindowSize
	}
	return *c.WindowSize
}

// GetMembershipThreshold returns the membership_threshold value or the default.
func (c *TuningConfig) GetMembershipThreshold() float64 {
	if c.MembershipThreshold == nil {
		return gsp.DefaultMembershipThreshold
	}
	return *c.MembershipThreshold
}

// GetTimezone returns the timezone value or "UTC".
func (c *TuningConfig) GetTimezone() string {
	if c.Timezone == nil || *c.Timezone == "" {
		return "UTC"
	}
	return *c.Timezone
}

// GetDisplayUnits returns the display_units value or watts.
func (c *TuningConfig) GetDisplayUnits() string {
	if c.DisplayUnits == nil {
		return units.W
	}
	return *c.DisplayUnits
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// Export format names accepted in export_formats.
const (
	FormatJSON    = "json"
	FormatCSVWide = "csv_wide"
	FormatCSVLong = "csv_long"
	FormatRig     = "rig"
	FormatBVH     = "bvh"
	FormatStats   = "stats"
)

// AllFormats lists every export format in the order the pipeline writes them.
var AllFormats = []string{FormatJSON, FormatCSVWide, FormatCSVLong, FormatRig, FormatBVH, FormatStats}

var (
	validMethods       = []string{"none", "kalman", "savgol", "combined"}
	validInterpolation = []string{"linear", "cubic"}
	validRigTypes      = []string{"mixamo", "rigify", "custom"}
)

// PipelineConfig is the root configuration for one pipeline run. Every field
// is optional; the Get* methods supply defaults for omitted values so partial
// files are safe.
type PipelineConfig struct {
	// Smoothing
	SmoothingMethod           *string  `json:"smoothing_method,omitempty"` // none, kalman, savgol, combined
	KalmanProcessVariance     *float64 `json:"kalman_process_variance,omitempty"`
	KalmanMeasurementVariance *float64 `json:"kalman_measurement_variance,omitempty"`
	SavGolWindowLength        *int     `json:"savgol_window_length,omitempty"`
	SavGolPolyOrder           *int     `json:"savgol_polyorder,omitempty"`

	// Gap filling
	InterpolateGaps     *bool   `json:"interpolate_gaps,omitempty"`
	InterpolationMethod *string `json:"interpolation_method,omitempty"` // linear, cubic

	// Export
	ExportFormats       []string `json:"export_formats,omitempty"`
	JSONIncludeMetadata *bool    `json:"json_include_metadata,omitempty"`
	JSONPrettyPrint     *bool    `json:"json_pretty_print,omitempty"`
	RigType             *string  `json:"rig_type,omitempty"`
	AnimationFPS        *float64 `json:"animation_fps,omitempty"` // 0 means use the source video fps

	// Report
	ReportEnabled   *bool    `json:"report_enabled,omitempty"`
	ReportLandmarks []string `json:"report_landmarks,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// DefaultPipelineConfig returns a config with every field populated with the
// built-in defaults.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		SmoothingMethod:           ptrString("combined"),
		KalmanProcessVariance:     ptrFloat64(1e-3),
		KalmanMeasurementVariance: ptrFloat64(1e-1),
		SavGolWindowLength:        ptrInt(5),
		SavGolPolyOrder:           ptrInt(2),
		InterpolateGaps:           ptrBool(true),
		InterpolationMethod:       ptrString("linear"),
		ExportFormats:             append([]string(nil), AllFormats...),
		JSONIncludeMetadata:       ptrBool(true),
		JSONPrettyPrint:           ptrBool(true),
		RigType:                   ptrString("mixamo"),
		AnimationFPS:              ptrFloat64(0),
		ReportEnabled:             ptrBool(false),
		ReportLandmarks:           []string{"NOSE", "LEFT_WRIST", "RIGHT_WRIST"},
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file. The file must
// have a .json extension and be at most 1MB. Omitted fields fall back to
// defaults through the Get* methods.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for tests and binaries.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate checks that the configured values are usable.
func (c *PipelineConfig) Validate() error {
	if c.SmoothingMethod != nil && !oneOf(*c.SmoothingMethod, validMethods) {
		return fmt.Errorf("smoothing_method must be one of %v, got %q", validMethods, *c.SmoothingMethod)
	}
	if c.KalmanProcessVariance != nil && *c.KalmanProcessVariance <= 0 {
		return fmt.Errorf("kalman_process_variance must be positive, got %g", *c.KalmanProcessVariance)
	}
	if c.KalmanMeasurementVariance != nil && *c.KalmanMeasurementVariance <= 0 {
		return fmt.Errorf("kalman_measurement_variance must be positive, got %g", *c.KalmanMeasurementVariance)
	}
	if c.SavGolWindowLength != nil && *c.SavGolWindowLength < 1 {
		return fmt.Errorf("savgol_window_length must be at least 1, got %d", *c.SavGolWindowLength)
	}
	if c.SavGolPolyOrder != nil && *c.SavGolPolyOrder < 0 {
		return fmt.Errorf("savgol_polyorder must be non-negative, got %d", *c.SavGolPolyOrder)
	}
	window := c.GetSavGolWindowLength()
	if window%2 == 0 {
		window++
	}
	if c.GetSavGolPolyOrder() >= window {
		return fmt.Errorf("savgol_polyorder (%d) must be less than the odd window length (%d)", c.GetSavGolPolyOrder(), window)
	}
	if c.InterpolationMethod != nil && !oneOf(*c.InterpolationMethod, validInterpolation) {
		return fmt.Errorf("interpolation_method must be one of %v, got %q", validInterpolation, *c.InterpolationMethod)
	}
	for _, f := range c.ExportFormats {
		if !oneOf(f, AllFormats) {
			return fmt.Errorf("unknown export format %q (valid: %v)", f, AllFormats)
		}
	}
	if c.RigType != nil && !oneOf(*c.RigType, validRigTypes) {
		return fmt.Errorf("rig_type must be one of %v, got %q", validRigTypes, *c.RigType)
	}
	if c.AnimationFPS != nil && *c.AnimationFPS < 0 {
		return fmt.Errorf("animation_fps must be non-negative, got %g", *c.AnimationFPS)
	}
	return nil
}

// GetSmoothingMethod returns the smoothing method name or "combined".
func (c *PipelineConfig) GetSmoothingMethod() string {
	if c.SmoothingMethod == nil {
		return "combined"
	}
	return *c.SmoothingMethod
}

// GetKalmanProcessVariance returns the Kalman process variance or 1e-3.
func (c *PipelineConfig) GetKalmanProcessVariance() float64 {
	if c.KalmanProcessVariance == nil {
		return 1e-3
	}
	return *c.KalmanProcessVariance
}

// GetKalmanMeasurementVariance returns the Kalman measurement variance or 1e-1.
func (c *PipelineConfig) GetKalmanMeasurementVariance() float64 {
	if c.KalmanMeasurementVariance == nil {
		return 1e-1
	}
	return *c.KalmanMeasurementVariance
}

func (c *PipelineConfig) GetSavGolWindowLength() int {
	if c.SavGolWindowLength == nil {
		return 5
	}
	return *c.SavGolWindowLength
}

func (c *PipelineConfig) GetSavGolPolyOrder() int {
	if c.SavGolPolyOrder == nil {
		return 2
	}
	return *c.SavGolPolyOrder
}

func (c *PipelineConfig) GetInterpolateGaps() bool {
	if c.InterpolateGaps == nil {
		return true
	}
	return *c.InterpolateGaps
}

func (c *PipelineConfig) GetInterpolationMethod() string {
	if c.InterpolationMethod == nil {
		return "linear"
	}
	return *c.InterpolationMethod
}

// GetExportFormats returns the configured formats, or every format when the
// list is empty.
func (c *PipelineConfig) GetExportFormats() []string {
	if len(c.ExportFormats) == 0 {
		return append([]string(nil), AllFormats...)
	}
	return append([]string(nil), c.ExportFormats...)
}

func (c *PipelineConfig) GetJSONIncludeMetadata() bool {
	if c.JSONIncludeMetadata == nil {
		return true
	}
	return *c.JSONIncludeMetadata
}

func (c *PipelineConfig) GetJSONPrettyPrint() bool {
	if c.JSONPrettyPrint == nil {
		return true
	}
	return *c.JSONPrettyPrint
}

func (c *PipelineConfig) GetRigType() string {
	if c.RigType == nil {
		return "mixamo"
	}
	return *c.RigType
}

// GetAnimationFPS returns the fps stamped into rig and BVH exports; 0 means
// the caller should use the source video's frame rate.
func (c *PipelineConfig) GetAnimationFPS() float64 {
	if c.AnimationFPS == nil {
		return 0
	}
	return *c.AnimationFPS
}

func (c *PipelineConfig) GetReportEnabled() bool {
	if c.ReportEnabled == nil {
		return false
	}
	return *c.ReportEnabled
}

func (c *PipelineConfig) GetReportLandmarks() []string {
	if c.ReportLandmarks == nil {
		return []string{"NOSE", "LEFT_WRIST", "RIGHT_WRIST"}
	}
	return append([]string(nil), c.ReportLandmarks...)
}

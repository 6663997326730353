package config

import (
	"os"
	"strconv"
	"strings"

	"sedentarism/domain/fuzzy"
	"sedentarism/internal/calibration"
	"sedentarism/internal/classifier"
	"sedentarism/internal/errors"
	"sedentarism/internal/markov"
	"sedentarism/internal/sensitivity"
	"sedentarism/internal/validation"
)

// Config represents the complete application configuration
type Config struct {
	Paths       PathConfig
	Classifier  ClassifierConfig
	Calibration CalibrationConfig
	Validation  ValidationConfig
	Sensitivity sensitivity.Config
	Markov      MarkovConfig
	Report      ReportConfig
	Database    DatabaseConfig
	LogLevel    string
}

// PathConfig holds input and output locations
type PathConfig struct {
	FeaturesFile string
	LabelsFile   string
	OutputDir    string
	RulesFile    string
}

// ClassifierConfig holds membership and inference settings
type ClassifierConfig struct {
	ClipLow     float64
	ClipHigh    float64
	Shoulders   bool
	MinSamples  int
	Aggregation string
}

// CalibrationConfig holds the threshold grid and label interpretation
type CalibrationConfig struct {
	Grid      calibration.Grid
	LabelMode string
}

// ValidationConfig holds cross-validation settings
type ValidationConfig struct {
	Workers int
}

// MarkovConfig holds traffic-light and forecast settings
type MarkovConfig struct {
	ThresholdMode string
	GreenMax      float64
	RedMin        float64
	GapPolicy     string
	Horizon       int
}

// ReportConfig holds output shaping settings
type ReportConfig struct {
	DiscordanceTopN int
}

// DatabaseConfig holds the optional run archive connection
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether runs should be archived.
func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	shifts, err := getEnvFloatListOrDefault("SENS_SHIFTS", sensitivity.DefaultConfig().Shifts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sensitivity configuration")
	}

	grid := calibration.DefaultGrid()
	config := &Config{
		Paths: PathConfig{
			FeaturesFile: getEnvOrDefault("FEATURES_FILE", ""),
			LabelsFile:   getEnvOrDefault("LABELS_FILE", ""),
			OutputDir:    getEnvOrDefault("OUTPUT_DIR", "./output"),
			RulesFile:    getEnvOrDefault("RULES_FILE", ""),
		},
		Classifier: ClassifierConfig{
			ClipLow:     getEnvFloatOrDefault("CLIP_LOW_PCT", 5),
			ClipHigh:    getEnvFloatOrDefault("CLIP_HIGH_PCT", 95),
			Shoulders:   getEnvBoolOrDefault("MEMBERSHIP_SHOULDERS", true),
			MinSamples:  getEnvIntOrDefault("MIN_TRAINING_SAMPLES", 20),
			Aggregation: getEnvOrDefault("RULE_AGGREGATION", "sum"),
		},
		Calibration: CalibrationConfig{
			Grid: calibration.Grid{
				Min:  getEnvFloatOrDefault("TAU_MIN", grid.Min),
				Max:  getEnvFloatOrDefault("TAU_MAX", grid.Max),
				Step: getEnvFloatOrDefault("TAU_STEP", grid.Step),
			},
			LabelMode: getEnvOrDefault("LABEL_MODE", "binary"),
		},
		Validation: ValidationConfig{
			Workers: getEnvIntOrDefault("CV_WORKERS", 0),
		},
		Sensitivity: sensitivity.Config{
			TauSpan:        getEnvFloatOrDefault("SENS_TAU_SPAN", 0.10),
			TauStep:        getEnvFloatOrDefault("SENS_TAU_STEP", 0.01),
			Tolerance:      getEnvFloatOrDefault("SENS_TOLERANCE", 0.05),
			Shifts:         shifts,
			RobustBelow:    getEnvFloatOrDefault("SENS_ROBUST_BELOW", 0.05),
			SensitiveAbove: getEnvFloatOrDefault("SENS_SENSITIVE_ABOVE", 0.10),
		},
		Markov: MarkovConfig{
			ThresholdMode: getEnvOrDefault("MARKOV_THRESHOLD_MODE", "terciles"),
			GreenMax:      getEnvFloatOrDefault("MARKOV_GREEN_MAX", 0.3333),
			RedMin:        getEnvFloatOrDefault("MARKOV_RED_MIN", 0.6667),
			GapPolicy:     getEnvOrDefault("MARKOV_GAP_POLICY", "ignore"),
			Horizon:       getEnvIntOrDefault("FORECAST_HORIZON", 1),
		},
		Report: ReportConfig{
			DiscordanceTopN: getEnvIntOrDefault("DISCORDANCE_TOP_N", 20),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Validate checks every section. Input paths are checked by the commands
// that need them.
func (c *Config) Validate() error {
	if _, err := c.Plan(); err != nil {
		return err
	}
	if _, err := fuzzy.ParseAggregation(c.Classifier.Aggregation); err != nil {
		return err
	}
	if err := c.Calibration.Grid.Validate(); err != nil {
		return err
	}
	if _, err := calibration.ParseLabelMode(c.Calibration.LabelMode); err != nil {
		return err
	}
	if c.Validation.Workers < 0 {
		return errors.ConfigInvalidf("CV_WORKERS must be >= 0, got %d", c.Validation.Workers)
	}
	if err := c.Sensitivity.Validate(); err != nil {
		return err
	}
	if _, err := c.MarkovConfig(); err != nil {
		return err
	}
	if c.Report.DiscordanceTopN < 0 {
		return errors.ConfigInvalidf("DISCORDANCE_TOP_N must be >= 0, got %d", c.Report.DiscordanceTopN)
	}
	return nil
}

// Plan builds the percentile plan.
func (c *Config) Plan() (fuzzy.PercentilePlan, error) {
	plan := fuzzy.DefaultPlan()
	plan.ClipLow = c.Classifier.ClipLow
	plan.ClipHigh = c.Classifier.ClipHigh
	plan.Shoulders = c.Classifier.Shoulders
	plan.MinSamples = c.Classifier.MinSamples
	if err := plan.Validate(); err != nil {
		return fuzzy.PercentilePlan{}, err
	}
	return plan, nil
}

// RuleBase loads the rule file, or the default rules when none is set.
func (c *Config) RuleBase() (*fuzzy.RuleBase, error) {
	if c.Paths.RulesFile == "" {
		return fuzzy.DefaultRuleBase(), nil
	}
	return LoadRuleFile(c.Paths.RulesFile)
}

// ClassifierConfig assembles the immutable classifier configuration.
func (c *Config) ClassifierConfig() (classifier.Config, error) {
	plan, err := c.Plan()
	if err != nil {
		return classifier.Config{}, err
	}
	rules, err := c.RuleBase()
	if err != nil {
		return classifier.Config{}, err
	}
	agg, err := fuzzy.ParseAggregation(c.Classifier.Aggregation)
	if err != nil {
		return classifier.Config{}, err
	}
	return classifier.NewConfig(plan, rules, agg)
}

// FoldConfig assembles the per-fold configuration.
func (c *Config) FoldConfig() (validation.FoldConfig, error) {
	cc, err := c.ClassifierConfig()
	if err != nil {
		return validation.FoldConfig{}, err
	}
	mode, err := calibration.ParseLabelMode(c.Calibration.LabelMode)
	if err != nil {
		return validation.FoldConfig{}, err
	}
	fc := validation.FoldConfig{Classifier: cc, Grid: c.Calibration.Grid, LabelMode: mode}
	return fc, fc.Validate()
}

// MarkovConfig assembles the Markov model configuration.
func (c *Config) MarkovConfig() (markov.Config, error) {
	mode, err := markov.ParseThresholdMode(c.Markov.ThresholdMode)
	if err != nil {
		return markov.Config{}, err
	}
	gap, err := markov.ParseGapPolicy(c.Markov.GapPolicy)
	if err != nil {
		return markov.Config{}, err
	}
	mc := markov.Config{
		Mode:      mode,
		GreenMax:  c.Markov.GreenMax,
		RedMin:    c.Markov.RedMin,
		GapPolicy: gap,
		Horizon:   c.Markov.Horizon,
	}
	return mc, mc.Validate()
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloatListOrDefault parses a comma-separated list. Unlike the scalar
// helpers a malformed entry is an error, since dropping one shift silently
// would change the sweep.
func getEnvFloatListOrDefault(key string, defaultValue []float64) ([]float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return append([]float64(nil), defaultValue...), nil
	}
	return ParseFloatList(value)
}

// ParseFloatList parses "a,b,c" into floats.
func ParseFloatList(value string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.ConfigInvalidf("invalid number %q in list %q", part, value)
		}
		out = append(out, f)
	}
	return out, nil
}

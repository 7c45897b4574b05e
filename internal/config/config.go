// Package config resolves replay settings from defaults, an optional YAML
// file and environment variables, in that precedence order. CLI flags are
// applied on top by the command layer.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a replay run.
type Config struct {
	Headless bool `yaml:"headless"`
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`

	PageTimeout    time.Duration `yaml:"page_timeout"`
	LocatorTimeout time.Duration `yaml:"locator_timeout"`
	StepPause      time.Duration `yaml:"step_pause"`

	ScreenshotsDir string `yaml:"screenshots_dir"`
	DBPath         string `yaml:"db_path"`
	ReportPath     string `yaml:"report_path"`
	ProfileDir     string `yaml:"profile_dir"`

	Vision      string `yaml:"vision"` // auto, openai, claude, off
	VisionModel string `yaml:"vision_model"`

	Highlight bool `yaml:"highlight"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Headless:       true,
		Width:          1280,
		Height:         720,
		PageTimeout:    10 * time.Second,
		LocatorTimeout: 10 * time.Second,
		StepPause:      time.Second,
		ScreenshotsDir: "replay_screenshots",
		DBPath:         "webreplay.db",
		ReportPath:     "replay_report.html",
		Vision:         "auto",
		Highlight:      true,
	}
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// absent keys from zero values, and durations are parsed from "10s" style
// strings, which yaml.v3 does not do for time.Duration natively.
type fileConfig struct {
	Headless *bool `yaml:"headless"`
	Width    *int  `yaml:"width"`
	Height   *int  `yaml:"height"`

	PageTimeout    *string `yaml:"page_timeout"`
	LocatorTimeout *string `yaml:"locator_timeout"`
	StepPause      *string `yaml:"step_pause"`

	ScreenshotsDir *string `yaml:"screenshots_dir"`
	DBPath         *string `yaml:"db_path"`
	ReportPath     *string `yaml:"report_path"`
	ProfileDir     *string `yaml:"profile_dir"`

	Vision      *string `yaml:"vision"`
	VisionModel *string `yaml:"vision_model"`

	Highlight *bool `yaml:"highlight"`
}

// Load builds the config from defaults, the YAML file at path (skipped when
// absent unless explicitly requested) and environment overrides.
func Load(path string, explicit bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyFile(&cfg, data); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Optional file, fall through to env overrides.
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, data []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}

	if f.Headless != nil {
		cfg.Headless = *f.Headless
	}
	if f.Width != nil {
		cfg.Width = *f.Width
	}
	if f.Height != nil {
		cfg.Height = *f.Height
	}
	for _, d := range []struct {
		key string
		in  *string
		out *time.Duration
	}{
		{"page_timeout", f.PageTimeout, &cfg.PageTimeout},
		{"locator_timeout", f.LocatorTimeout, &cfg.LocatorTimeout},
		{"step_pause", f.StepPause, &cfg.StepPause},
	} {
		if d.in == nil {
			continue
		}
		parsed, err := time.ParseDuration(*d.in)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.out = parsed
	}
	if f.ScreenshotsDir != nil {
		cfg.ScreenshotsDir = *f.ScreenshotsDir
	}
	if f.DBPath != nil {
		cfg.DBPath = *f.DBPath
	}
	if f.ReportPath != nil {
		cfg.ReportPath = *f.ReportPath
	}
	if f.ProfileDir != nil {
		cfg.ProfileDir = *f.ProfileDir
	}
	if f.Vision != nil {
		cfg.Vision = *f.Vision
	}
	if f.VisionModel != nil {
		cfg.VisionModel = *f.VisionModel
	}
	if f.Highlight != nil {
		cfg.Highlight = *f.Highlight
	}
	return nil
}

// applyEnv overlays WEBREPLAY_* environment variables.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("WEBREPLAY_HEADLESS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Headless = b
		}
	}
	if v, ok := os.LookupEnv("WEBREPLAY_PAGE_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PageTimeout = d
		}
	}
	if v, ok := os.LookupEnv("WEBREPLAY_LOCATOR_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LocatorTimeout = d
		}
	}
	if v, ok := os.LookupEnv("WEBREPLAY_DB"); ok {
		cfg.DBPath = v
	}
	if v, ok := os.LookupEnv("WEBREPLAY_SCREENSHOTS_DIR"); ok {
		cfg.ScreenshotsDir = v
	}
	if v, ok := os.LookupEnv("WEBREPLAY_VISION"); ok {
		cfg.Vision = v
	}
	if v, ok := os.LookupEnv("WEBREPLAY_VISION_MODEL"); ok {
		cfg.VisionModel = v
	}
	if v, ok := os.LookupEnv("WEBREPLAY_PROFILE_DIR"); ok {
		cfg.ProfileDir = v
	}
}

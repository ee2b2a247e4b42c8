// Package config loads the fingerspell configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingerspell/internal/alphabet"
	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/stabilizer"
)

// DirName is the per-user directory holding the database, model and config.
const DirName = ".fingerspell"

// Default locations relative to the data directory.
const (
	FileName      = "config.yaml"
	DatabaseName  = "fingerspell.db"
	ModelName     = "model.json"
	PluginDirName = "plugins"
)

// Config is the complete application configuration.
type Config struct {
	DataDir    string           `yaml:"data_dir"`
	Camera     CameraConfig     `yaml:"camera"`
	Motion     MotionConfig     `yaml:"motion"`
	Sampler    SamplerConfig    `yaml:"sampler"`
	Detector   DetectorConfig   `yaml:"detector"`
	Stabilizer StabilizerConfig `yaml:"stabilizer"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Server     ServerConfig     `yaml:"server"`
	Plugins    PluginsConfig    `yaml:"plugins"`
}

type CameraConfig struct {
	DeviceID int `yaml:"device_id"`
	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
}

type MotionConfig struct {
	// Threshold is the percentage of changed pixels that counts as motion.
	Threshold float64 `yaml:"threshold"`
}

type SamplerConfig struct {
	EveryN      int           `yaml:"every_n"`
	MinInterval time.Duration `yaml:"min_interval"`
}

type DetectorConfig struct {
	MaxHands      int     `yaml:"max_hands"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type StabilizerConfig struct {
	CommitThreshold int     `yaml:"commit_threshold"`
	MinConfidence   float64 `yaml:"min_confidence"`
	Delimiter       *string `yaml:"delimiter"`
	Alphabet        string  `yaml:"alphabet"`
}

type ClassifierConfig struct {
	// ModelPath defaults to model.json in the data directory.
	ModelPath    string  `yaml:"model_path"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	L2           float64 `yaml:"l2"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

type PluginsConfig struct {
	Dir       string   `yaml:"dir"`
	Enabled   []string `yaml:"enabled"`
	TimeoutMs int      `yaml:"timeout_ms"`
	// Config holds each plugin's settings, keyed by plugin name.
	Config map[string]map[string]any `yaml:"config"`
}

// DefaultDataDir returns ~/.fingerspell.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath returns ~/.fingerspell/config.yaml.
func DefaultPath() (string, error) {
	dir, err := DefaultDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cam := capture.DefaultCameraConfig()
	det := detector.DefaultConfig()
	opts := classifier.DefaultTrainOptions()

	return &Config{
		Camera: CameraConfig{
			DeviceID: cam.DeviceID,
			Width:    cam.Width,
			Height:   cam.Height,
		},
		Motion: MotionConfig{Threshold: 1.0},
		Sampler: SamplerConfig{
			EveryN: capture.DefaultSampleEvery,
		},
		Detector: DetectorConfig{
			MaxHands:      det.MaxHands,
			MinConfidence: det.MinConfidence,
		},
		Stabilizer: StabilizerConfig{
			CommitThreshold: stabilizer.DefaultCommitThreshold,
			MinConfidence:   stabilizer.DefaultMinConfidence,
		},
		Classifier: ClassifierConfig{
			Epochs:       opts.Epochs,
			LearningRate: opts.LearningRate,
			L2:           opts.L2,
		},
		Server: ServerConfig{Addr: ":8080"},
		Plugins: PluginsConfig{
			TimeoutMs: 5000,
		},
	}
}

// Load reads the YAML file at path over the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, cfg.applyDefaults()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, cfg.applyDefaults()
}

// Validate rejects values that cannot be corrected by defaults.
func (c *Config) Validate() error {
	if c.Stabilizer.CommitThreshold < 0 {
		return fmt.Errorf("stabilizer.commit_threshold must not be negative, got %d", c.Stabilizer.CommitThreshold)
	}
	if !unitInterval(c.Stabilizer.MinConfidence) {
		return fmt.Errorf("stabilizer.min_confidence must be in [0, 1], got %v", c.Stabilizer.MinConfidence)
	}
	if !unitInterval(c.Detector.MinConfidence) {
		return fmt.Errorf("detector.min_confidence must be in [0, 1], got %v", c.Detector.MinConfidence)
	}
	if c.Sampler.EveryN < 0 {
		return fmt.Errorf("sampler.every_n must not be negative, got %d", c.Sampler.EveryN)
	}
	if c.Sampler.MinInterval < 0 {
		return fmt.Errorf("sampler.min_interval must not be negative, got %v", c.Sampler.MinInterval)
	}
	return nil
}

// unitInterval reports whether f is a number in [0, 1].
func unitInterval(f float64) bool {
	return !math.IsNaN(f) && f >= 0 && f <= 1
}

// applyDefaults fills paths derived from the data directory and zero values.
func (c *Config) applyDefaults() error {
	if c.DataDir == "" {
		dir, err := DefaultDataDir()
		if err != nil {
			return err
		}
		c.DataDir = dir
	}
	if c.Classifier.ModelPath == "" {
		c.Classifier.ModelPath = filepath.Join(c.DataDir, ModelName)
	}
	if c.Plugins.Dir == "" {
		c.Plugins.Dir = filepath.Join(c.DataDir, PluginDirName)
	}
	if c.Plugins.TimeoutMs <= 0 {
		c.Plugins.TimeoutMs = 5000
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Sampler.EveryN == 0 {
		c.Sampler.EveryN = capture.DefaultSampleEvery
	}
	if c.Stabilizer.CommitThreshold == 0 {
		c.Stabilizer.CommitThreshold = stabilizer.DefaultCommitThreshold
	}
	return nil
}

// SetDataDir moves the data directory. Paths derived from the old directory
// follow it; paths set explicitly are kept.
func (c *Config) SetDataDir(dir string) {
	old := c.DataDir
	c.DataDir = dir
	if c.Classifier.ModelPath == filepath.Join(old, ModelName) {
		c.Classifier.ModelPath = filepath.Join(dir, ModelName)
	}
	if c.Plugins.Dir == filepath.Join(old, PluginDirName) {
		c.Plugins.Dir = filepath.Join(dir, PluginDirName)
	}
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, DatabaseName)
}

// StabilizerConfig converts the stabilizer section.
func (c *Config) StabilizerConfig() stabilizer.Config {
	sc := stabilizer.DefaultConfig()
	sc.CommitThreshold = c.Stabilizer.CommitThreshold
	sc.MinConfidence = c.Stabilizer.MinConfidence
	if c.Stabilizer.Delimiter != nil {
		sc.Delimiter = *c.Stabilizer.Delimiter
	}
	if c.Stabilizer.Alphabet != "" {
		sc.Alphabet = alphabet.New(c.Stabilizer.Alphabet)
	}
	return sc
}

// CameraConfig converts the camera section.
func (c *Config) CameraConfig() capture.CameraConfig {
	cc := capture.DefaultCameraConfig()
	cc.DeviceID = c.Camera.DeviceID
	if c.Camera.Width > 0 {
		cc.Width = c.Camera.Width
	}
	if c.Camera.Height > 0 {
		cc.Height = c.Camera.Height
	}
	return cc
}

// DetectorConfig converts the detector section.
func (c *Config) DetectorConfig() detector.Config {
	dc := detector.DefaultConfig()
	if c.Detector.MaxHands > 0 {
		dc.MaxHands = c.Detector.MaxHands
	}
	dc.MinConfidence = c.Detector.MinConfidence
	return dc
}

// PluginConfig returns the settings for the named plugin as JSON, or nil if
// it has none.
func (c *Config) PluginConfig(name string) (json.RawMessage, error) {
	settings, ok := c.Plugins.Config[name]
	if !ok {
		return nil, nil
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("plugins.config.%s: %w", name, err)
	}
	return data, nil
}

// TrainOptions converts the classifier training settings.
func (c *Config) TrainOptions() classifier.TrainOptions {
	return classifier.TrainOptions{
		Epochs:       c.Classifier.Epochs,
		LearningRate: c.Classifier.LearningRate,
		L2:           c.Classifier.L2,
	}
}

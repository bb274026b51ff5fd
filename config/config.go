package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go-arpsync/arp"
	"go-arpsync/clock"
)

// PortConfig selects a MIDI port by case-insensitive substring. An empty
// Match takes the first port found, "none" leaves the role unconnected.
type PortConfig struct {
	Match   string `json:"match,omitempty"`
	Channel int    `json:"channel,omitempty"` // 1-16, output only
}

// AudioConfig describes the audio device
type AudioConfig struct {
	SampleRate int `json:"sampleRate"`
	BlockSize  int `json:"blockSize"`
}

// SyncConfig holds clock-follow settings
type SyncConfig struct {
	Enabled            bool    `json:"enabled"`
	Speed              string  `json:"speed"`
	SeedTempo          float64 `json:"seedTempo"`
	WatchdogIntervalMs int     `json:"watchdogIntervalMs"`
	MissedLimit        int     `json:"missedLimit"`
}

// ArpConfig stores arpeggiator preferences
type ArpConfig struct {
	Mode  string  `json:"mode"`
	Gate  float64 `json:"gate"`
	Click float64 `json:"click"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	Palette string `json:"palette,omitempty"` // path to a GIMP .gpl file
}

// Config is the main configuration structure
type Config struct {
	Input  PortConfig  `json:"input"`
	Output PortConfig  `json:"output"`
	Audio  AudioConfig `json:"audio"`
	Sync   SyncConfig  `json:"sync"`
	Arp    ArpConfig   `json:"arp"`
	UI     UIConfig    `json:"ui,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Output: PortConfig{Channel: 1},
		Audio: AudioConfig{
			SampleRate: 48000,
			BlockSize:  512,
		},
		Sync: SyncConfig{
			Enabled:            true,
			Speed:              "1",
			SeedTempo:          120,
			WatchdogIntervalMs: 100,
			MissedLimit:        14,
		},
		Arp: ArpConfig{
			Mode: "up",
			Gate: 0.5,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-arpsync"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads path over the defaults. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return c.SaveTo(filepath.Join(dir, "config.json"))
}

// SaveTo writes the config to path
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values the engine cannot run with
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sampleRate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.BlockSize <= 0 {
		return fmt.Errorf("audio.blockSize must be positive, got %d", c.Audio.BlockSize)
	}
	if c.Output.Channel < 1 || c.Output.Channel > 16 {
		return fmt.Errorf("output.channel must be 1-16, got %d", c.Output.Channel)
	}
	if !(c.Sync.SeedTempo > 0) {
		return fmt.Errorf("sync.seedTempo must be positive, got %v", c.Sync.SeedTempo)
	}
	if _, err := clock.ParseSpeed(c.Sync.Speed); err != nil {
		return fmt.Errorf("sync.speed: %w", err)
	}
	if c.Sync.WatchdogIntervalMs <= 0 || c.Sync.MissedLimit <= 0 {
		return fmt.Errorf("sync watchdog settings must be positive")
	}
	return nil
}

// Speed returns the parsed step multiplier, Unity if unparseable
func (c *Config) Speed() clock.Speed {
	sp, err := clock.ParseSpeed(c.Sync.Speed)
	if err != nil {
		return clock.Unity
	}
	return sp
}

// WatchdogInterval returns the watchdog tick period
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.Sync.WatchdogIntervalMs) * time.Millisecond
}

// ArpOptions converts the arp section for arp.NewVoice
func (c *Config) ArpOptions() arp.Options {
	return arp.Options{
		Channel: uint8(c.Output.Channel - 1),
		Mode:    arp.ParseMode(c.Arp.Mode),
		Gate:    c.Arp.Gate,
		Click:   float32(c.Arp.Click),
	}
}

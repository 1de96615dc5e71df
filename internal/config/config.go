package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	API        APIConfig        `yaml:"api"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Audio      AudioConfig      `yaml:"audio"`
	VAD        VADConfig        `yaml:"vad"`
	Compress   CompressConfig   `yaml:"compress"`
	Hotkey     HotkeyConfig     `yaml:"hotkey"`
	Inject     InjectConfig     `yaml:"inject"`
	Notify     NotifyConfig     `yaml:"notify"`
	Files      FilesConfig      `yaml:"files"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Instance   InstanceConfig   `yaml:"instance"`
}

// APIConfig holds the remote transcription endpoint settings.
type APIConfig struct {
	URL        string        `yaml:"url"`
	Model      string        `yaml:"model"`
	Language   string        `yaml:"language"` // empty = auto-detect
	Key        string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// TranscribeConfig selects the speech-to-text backend.
type TranscribeConfig struct {
	Backend          string `yaml:"backend"` // "remote" or "whisper"
	WhisperModelPath string `yaml:"whisper_model_path"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate  uint32        `yaml:"sample_rate"`
	Channels    uint32        `yaml:"channels"`
	Device      int           `yaml:"device"` // -1 = system default
	MinDuration time.Duration `yaml:"min_duration"`
}

// VADConfig holds voice activity detection settings.
type VADConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Engine          string        `yaml:"engine"` // "silero" or "energy"
	Threshold       float64       `yaml:"threshold"`
	SampleRate      int           `yaml:"sample_rate"`
	MinSilence      time.Duration `yaml:"min_silence"`
	ModelPath       string        `yaml:"model_path"`
	OnnxRuntimePath string        `yaml:"onnx_runtime_path"`
	EnergyLevel     float64       `yaml:"energy_level"`
}

// CompressConfig holds ffmpeg encoder settings.
type CompressConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"` // empty = search PATH and ./ffmpeg/bin
	Bitrate     string `yaml:"bitrate"`
	SampleRate  int    `yaml:"sample_rate"`
	TrimSilence bool   `yaml:"trim_silence"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys       []string `yaml:"keys"`
	CancelKeys []string `yaml:"cancel_keys"`
	Mode       string   `yaml:"mode"` // "toggle" or "hold"
}

// InjectConfig holds transcript output settings.
type InjectConfig struct {
	Method string `yaml:"method"` // "none", "copy", "paste" or "type"
}

// NotifyConfig toggles desktop notifications.
type NotifyConfig struct {
	Enabled bool `yaml:"enabled"`
}

// FilesConfig controls where temporary audio files live.
type FilesConfig struct {
	Dir  string `yaml:"dir"` // empty = OS temp dir
	Keep bool   `yaml:"keep"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// InstanceConfig names the single-instance lock.
type InstanceConfig struct {
	Name string `yaml:"name"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "speakgo")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultModelsDir returns the directory downloaded models are stored in.
func DefaultModelsDir() string {
	return filepath.Join(DefaultConfigDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	models := DefaultModelsDir()

	return &Config{
		LogLevel: "info",
		API: APIConfig{
			URL:        "http://localhost:8000",
			Model:      "Systran/faster-distil-whisper-large-v3",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelay: 500 * time.Millisecond,
		},
		Transcribe: TranscribeConfig{
			Backend:          "remote",
			WhisperModelPath: filepath.Join(models, "ggml-base.en.bin"),
		},
		Audio: AudioConfig{
			SampleRate:  44100,
			Channels:    1,
			Device:      -1,
			MinDuration: 300 * time.Millisecond,
		},
		VAD: VADConfig{
			Enabled:     false,
			Engine:      "silero",
			Threshold:   0.5,
			SampleRate:  16000,
			MinSilence:  100 * time.Millisecond,
			ModelPath:   filepath.Join(models, "silero_vad.onnx"),
			EnergyLevel: 0.02,
		},
		Compress: CompressConfig{
			Bitrate:     "32k",
			SampleRate:  16000,
			TrimSilence: true,
		},
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", ";"},
			Mode: "toggle",
		},
		Inject: InjectConfig{
			Method: "copy",
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Instance: InstanceConfig{
			Name: "SpeakGo_SingleInstance",
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in path settings is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Transcribe.WhisperModelPath = expandTilde(cfg.Transcribe.WhisperModelPath)
	cfg.VAD.ModelPath = expandTilde(cfg.VAD.ModelPath)
	cfg.VAD.OnnxRuntimePath = expandTilde(cfg.VAD.OnnxRuntimePath)
	cfg.Compress.FFmpegPath = expandTilde(cfg.Compress.FFmpegPath)
	cfg.Files.Dir = expandTilde(cfg.Files.Dir)

	return cfg, nil
}

// WriteDefault writes the default configuration to path. It does nothing
// if a file already exists there.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return false, fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("writing config file: %w", err)
	}
	return true, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	switch c.Transcribe.Backend {
	case "remote":
		if c.API.URL == "" {
			return fmt.Errorf("api.url must not be empty for the remote backend")
		}
		if c.API.Model == "" {
			return fmt.Errorf("api.model must not be empty for the remote backend")
		}
		if c.API.Timeout <= 0 {
			return fmt.Errorf("api.timeout must be > 0")
		}
		if c.API.MaxRetries < 0 {
			return fmt.Errorf("api.max_retries must be >= 0")
		}
	case "whisper":
		if c.Transcribe.WhisperModelPath == "" {
			return fmt.Errorf("transcribe.whisper_model_path must not be empty for the whisper backend")
		}
	default:
		return fmt.Errorf("transcribe.backend must be \"remote\" or \"whisper\", got %q", c.Transcribe.Backend)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.VAD.Enabled {
		if err := c.VAD.validate(); err != nil {
			return err
		}
		if c.Audio.Channels != 1 {
			return fmt.Errorf("vad requires audio.channels = 1, got %d", c.Audio.Channels)
		}
	}

	if c.Compress.Bitrate == "" {
		return fmt.Errorf("compress.bitrate must not be empty")
	}
	if c.Compress.SampleRate <= 0 {
		return fmt.Errorf("compress.sample_rate must be > 0")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}

	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	switch c.Inject.Method {
	case "none", "copy", "paste", "type":
	default:
		return fmt.Errorf("inject.method must be none, copy, paste, or type, got %q", c.Inject.Method)
	}

	if c.Instance.Name == "" {
		return fmt.Errorf("instance.name must not be empty")
	}

	return nil
}

func (v *VADConfig) validate() error {
	switch v.Engine {
	case "silero":
		if v.ModelPath == "" {
			return fmt.Errorf("vad.model_path must not be empty for the silero engine")
		}
	case "energy":
		if v.EnergyLevel <= 0 {
			return fmt.Errorf("vad.energy_level must be > 0")
		}
	default:
		return fmt.Errorf("vad.engine must be \"silero\" or \"energy\", got %q", v.Engine)
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("vad.threshold must be between 0 and 1, got %g", v.Threshold)
	}

	switch v.SampleRate {
	case 8000, 16000:
	default:
		return fmt.Errorf("vad.sample_rate must be 8000 or 16000, got %d", v.SampleRate)
	}

	if v.MinSilence < 0 {
		return fmt.Errorf("vad.min_silence must be >= 0")
	}
	return nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

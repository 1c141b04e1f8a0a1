package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

const (
	defaultStreamURL      = "wss://api.hume.ai/v0/evi2/stream"
	defaultConnectTimeout = 10 * time.Second
	defaultMicTimeout     = 15 * time.Second
	defaultFrameSamples   = 4096
	defaultSampleRate     = 16000
	defaultSpeechQueue    = 16
)

// Config stores runtime configuration for a voice session.
type Config struct {
	Hume    HumeConfig
	Audio   AudioConfig
	Speech  SpeechConfig
	Logging LoggingConfig
}

type HumeConfig struct {
	APIKey         string        `env:"HUME_API_KEY"`
	ConfigID       string        `env:"HUME_CONFIG_ID"`
	StreamURL      string        `env:"HUME_STREAM_URL, default=wss://api.hume.ai/v0/evi2/stream"`
	ConnectTimeout time.Duration `env:"HUME_CONNECT_TIMEOUT, default=10s"`
}

type AudioConfig struct {
	RecorderCommand string        `env:"CALMLY_FFMPEG_COMMAND, default=ffmpeg"`
	InputFormat     string        `env:"CALMLY_AUDIO_INPUT_FORMAT, default=pulse"`
	InputDevice     string        `env:"CALMLY_AUDIO_INPUT_DEVICE, default=default"`
	SampleRate      int           `env:"CALMLY_SAMPLE_RATE, default=16000"`
	FrameSamples    int           `env:"CALMLY_FRAME_SAMPLES, default=4096"`
	MicTimeout      time.Duration `env:"CALMLY_MIC_TIMEOUT, default=15s"`
}

type SpeechConfig struct {
	Command   string   `env:"CALMLY_SPEECH_COMMAND, default=espeak-ng"`
	Args      []string `env:"CALMLY_SPEECH_ARGS"`
	QueueSize int      `env:"CALMLY_SPEECH_QUEUE, default=16"`
}

type LoggingConfig struct {
	Level  string `env:"CALMLY_LOG_LEVEL, default=info"`
	Format string `env:"CALMLY_LOG_FORMAT, default=console"`
}

// Load resolves configuration from the environment, falling back to values in
// the given dotenv files (".env" when none are named). Process environment
// always wins over dotenv values; missing dotenv files are ignored.
func Load(ctx context.Context, dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}

	lookupers := []envconfig.Lookuper{envconfig.OsLookuper()}
	for _, path := range dotenvFiles {
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
		lookupers = append(lookupers, envconfig.MapLookuper(values))
	}

	return LoadFrom(ctx, envconfig.MultiLookuper(lookupers...))
}

// LoadFrom resolves configuration from an explicit lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	normalize(&cfg)
	return cfg, nil
}

func normalize(cfg *Config) {
	cfg.Hume.APIKey = strings.TrimSpace(cfg.Hume.APIKey)
	cfg.Hume.ConfigID = strings.TrimSpace(cfg.Hume.ConfigID)
	cfg.Hume.StreamURL = firstNonEmpty(cfg.Hume.StreamURL, defaultStreamURL)
	if cfg.Hume.ConnectTimeout <= 0 {
		cfg.Hume.ConnectTimeout = defaultConnectTimeout
	}

	cfg.Audio.RecorderCommand = firstNonEmpty(cfg.Audio.RecorderCommand, "ffmpeg")
	cfg.Audio.InputFormat = firstNonEmpty(cfg.Audio.InputFormat, "pulse")
	cfg.Audio.InputDevice = firstNonEmpty(cfg.Audio.InputDevice, "default")
	// The voice service only accepts 16 kHz.
	cfg.Audio.SampleRate = defaultSampleRate
	if cfg.Audio.FrameSamples <= 0 {
		cfg.Audio.FrameSamples = defaultFrameSamples
	}
	if cfg.Audio.MicTimeout <= 0 {
		cfg.Audio.MicTimeout = defaultMicTimeout
	}

	cfg.Speech.Command = firstNonEmpty(cfg.Speech.Command, "espeak-ng")
	args := cfg.Speech.Args[:0]
	for _, arg := range cfg.Speech.Args {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			args = append(args, trimmed)
		}
	}
	cfg.Speech.Args = args
	if cfg.Speech.QueueSize <= 0 {
		cfg.Speech.QueueSize = defaultSpeechQueue
	}

	cfg.Logging.Level = strings.ToLower(firstNonEmpty(cfg.Logging.Level, "info"))
	cfg.Logging.Format = strings.ToLower(firstNonEmpty(cfg.Logging.Format, "console"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

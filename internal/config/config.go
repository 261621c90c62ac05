package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AdvisorOpenAI = "openai"
	AdvisorGemini = "gemini"

	SourceDeepgram = "deepgram"
	SourceStdin    = "stdin"

	defaultTemperature = 0.6
)

// Config stores runtime configuration for the copilot.
type Config struct {
	Advisory   AdvisoryConfig
	Transcript TranscriptConfig
	Deepgram   DeepgramConfig
	Audio      AudioConfig
	Session    SessionConfig
	Missions   MissionsConfig
	Storage    StorageConfig
	Logging    LoggingConfig
}

type AdvisoryConfig struct {
	Provider            string
	OpenAIKey           string
	OpenAIBaseURL       string
	OpenAIModel         string
	GeminiKey           string
	GeminiModel         string
	Timeout             time.Duration
	ScriptTemperature   float64
	StrategyTemperature float64
}

// APIKey returns the key of the selected provider.
func (c AdvisoryConfig) APIKey() string {
	if c.Provider == AdvisorGemini {
		return c.GeminiKey
	}
	return c.OpenAIKey
}

type TranscriptConfig struct {
	Source         string
	ChunkSize      int
	StreamingGrace time.Duration
}

type DeepgramConfig struct {
	APIKey       string
	APIBaseURL   string
	Model        string
	Language     string
	SmartFormat  bool
	Endpointing  time.Duration
	UtteranceEnd time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type SessionConfig struct {
	HistorySize    int
	DrainInterval  time.Duration
	CaptureBackoff time.Duration
	SaveTimeout    time.Duration
	DropStale      bool
}

type MissionsConfig struct {
	Dir      string
	Manifest string
}

type StorageConfig struct {
	DatabaseURL string
}

type LoggingConfig struct {
	File       string
	Level      string
	Production bool
}

// Load resolves configuration from the environment, then a .env file in the
// working directory, then defaults.
func Load() (Config, error) {
	return LoadFrom(".env")
}

// LoadFrom is Load with explicit dotenv files. Missing files are skipped and
// process environment variables always win over file values.
func LoadFrom(files ...string) (Config, error) {
	env, err := readDotenv(files)
	if err != nil {
		return Config{}, err
	}

	deepgramKey := env.get("DEEPGRAM_API_KEY")
	defaultSource := SourceStdin
	if deepgramKey != "" {
		defaultSource = SourceDeepgram
	}

	cfg := Config{
		Advisory: AdvisoryConfig{
			Provider:            strings.ToLower(env.orDefault("COPILOT_ADVISOR", AdvisorOpenAI)),
			OpenAIKey:           env.get("OPENAI_API_KEY"),
			OpenAIBaseURL:       env.orDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			OpenAIModel:         env.orDefault("OPENAI_MODEL", "gpt-4o"),
			GeminiKey:           env.get("GEMINI_API_KEY"),
			GeminiModel:         env.orDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:             env.millis("COPILOT_ADVISOR_TIMEOUT_MS", 60*time.Second),
			ScriptTemperature:   env.temperature("COPILOT_SCRIPT_TEMPERATURE"),
			StrategyTemperature: env.temperature("COPILOT_STRATEGY_TEMPERATURE"),
		},
		Transcript: TranscriptConfig{
			Source:         strings.ToLower(env.orDefault("COPILOT_TRANSCRIPT_SOURCE", defaultSource)),
			ChunkSize:      env.intOrDefault("COPILOT_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: env.millis("COPILOT_STREAMING_GRACE_MS", 2*time.Second),
		},
		Deepgram: DeepgramConfig{
			APIKey:       deepgramKey,
			APIBaseURL:   env.orDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:        env.orDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:     env.get("DEEPGRAM_LANGUAGE"),
			SmartFormat:  env.boolOrDefault("DEEPGRAM_SMART_FORMAT", true),
			Endpointing:  env.millis("DEEPGRAM_ENDPOINTING_MS", 300*time.Millisecond),
			UtteranceEnd: env.millis("DEEPGRAM_UTTERANCE_END_MS", time.Second),
		},
		Audio: AudioConfig{
			RecorderCommand: env.orDefault("COPILOT_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     env.get("COPILOT_AUDIO_INPUT_FORMAT"),
			InputDevice:     firstNonEmpty(env.get("COPILOT_AUDIO_INPUT_DEVICE"), env.get("MIC_NAME")),
			SampleRate:      env.intOrDefault("COPILOT_SAMPLE_RATE", 16000),
			Channels:        env.intOrDefault("COPILOT_CHANNELS", 1),
		},
		Session: SessionConfig{
			HistorySize:    env.intOrDefault("COPILOT_HISTORY_SIZE", 20),
			DrainInterval:  env.millis("COPILOT_DRAIN_INTERVAL_MS", 50*time.Millisecond),
			CaptureBackoff: env.millis("COPILOT_CAPTURE_BACKOFF_MS", 100*time.Millisecond),
			SaveTimeout:    env.millis("COPILOT_SAVE_TIMEOUT_MS", 15*time.Second),
			DropStale:      env.boolOrDefault("COPILOT_DROP_STALE_ADVICE", false),
		},
		Missions: MissionsConfig{
			Dir:      env.orDefault("COPILOT_MISSIONS_DIR", "."),
			Manifest: env.get("COPILOT_MISSIONS_MANIFEST"),
		},
		Storage: StorageConfig{
			DatabaseURL: env.get("DATABASE_URL"),
		},
		Logging: LoggingConfig{
			File:       env.orDefault("COPILOT_LOG_FILE", "logs/copilot.log"),
			Level:      env.orDefault("COPILOT_LOG_LEVEL", "info"),
			Production: strings.EqualFold(env.get("COPILOT_ENV"), "production"),
		},
	}

	switch cfg.Advisory.Provider {
	case AdvisorOpenAI, AdvisorGemini:
	default:
		return Config{}, fmt.Errorf("unsupported COPILOT_ADVISOR %q", cfg.Advisory.Provider)
	}
	switch cfg.Transcript.Source {
	case SourceDeepgram, SourceStdin:
	default:
		return Config{}, fmt.Errorf("unsupported COPILOT_TRANSCRIPT_SOURCE %q", cfg.Transcript.Source)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Transcript.ChunkSize < 256 {
		cfg.Transcript.ChunkSize = 4096
	}
	if cfg.Session.HistorySize <= 0 {
		cfg.Session.HistorySize = 20
	}

	return cfg, nil
}

// environment layers process variables over dotenv values.
type environment map[string]string

func readDotenv(files []string) (environment, error) {
	env := environment{}
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		for key, value := range values {
			if _, seen := env[key]; !seen {
				env[key] = value
			}
		}
	}
	return env, nil
}

func (e environment) get(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(e[key])
}

func (e environment) orDefault(key string, fallback string) string {
	value := e.get(key)
	if value == "" {
		return fallback
	}
	return value
}

func (e environment) intOrDefault(key string, fallback int) int {
	value := e.get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (e environment) boolOrDefault(key string, fallback bool) bool {
	switch strings.ToLower(e.get(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// millis reads a non-negative millisecond count.
func (e environment) millis(key string, fallback time.Duration) time.Duration {
	value := e.get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

// temperature reads a sampling temperature in [0, 2].
func (e environment) temperature(key string) float64 {
	value := e.get(key)
	if value == "" {
		return defaultTemperature
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 2 {
		return defaultTemperature
	}
	return parsed
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

// Package config loads the engine's configuration surface from the
// process environment, in the teacher's style (cmd/agent/main.go reads
// os.Getenv directly via github.com/joho/godotenv). This package is the
// one explicitly out-of-scope collaborator named in spec §1 -- it exists
// only so cmd/engine can construct the in-scope components, and carries
// no business logic of its own.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config mirrors spec §6's recognized configuration surface exactly.
type Config struct {
	APIBaseURL          string
	WSAuthToken         string
	MatchID             string
	// TeamA and TeamB seed the Match State's team names for the welcome/
	// break/ended announcement templates. The spec names no match-info
	// endpoint to fetch these from, so they're supplied at startup.
	TeamA               string
	TeamB               string
	TTSAPIKey           string
	TTSVoiceID          string
	TTSTimeoutSeconds   int
	SampleRate          int
	NominalAmbienceGain float64
	DuckedAmbienceGain  float64
	DuckRampMS          int
	AmbiencePath        string
	StatePath           string
	AudioHistoryDir     string
	SaveAudio           bool
	ReconnectInitialMS  int
	ReconnectMaxMS      int

	// TTSProvider selects the synthesis transport: "websocket" (default) or
	// "http". TTSBaseURL is the host (websocket) or base URL (http) for it.
	// Neither is named in the core configuration surface. TTSProvider
	// defaults to "websocket"; TTSBaseURL has no default and stays empty
	// unless TTS_BASE_URL is set.
	TTSProvider string
	TTSBaseURL  string
}

// Default returns the configuration defaults named in spec §6.
func Default() Config {
	return Config{
		TTSTimeoutSeconds:   8,
		SampleRate:          22050,
		NominalAmbienceGain: 0.30,
		DuckedAmbienceGain:  0.08,
		DuckRampMS:          200,
		StatePath:           "state/runtime_state.json",
		ReconnectInitialMS:  1000,
		ReconnectMaxMS:      30000,
		TTSProvider:         "websocket",
	}
}

// Load reads a .env file if present (ignored if absent, matching the
// teacher's "Note: No .env file found" behavior) then overlays recognized
// environment variables on top of Default().
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	cfg.WSAuthToken = os.Getenv("WS_AUTH_TOKEN")
	cfg.MatchID = os.Getenv("MATCH_ID")
	cfg.TeamA = os.Getenv("TEAM_A")
	cfg.TeamB = os.Getenv("TEAM_B")
	cfg.TTSAPIKey = os.Getenv("TTS_API_KEY")
	cfg.TTSVoiceID = os.Getenv("TTS_VOICE_ID")
	cfg.AmbiencePath = envOr("AMBIENCE_PATH", cfg.AmbiencePath)
	cfg.StatePath = envOr("STATE_PATH", cfg.StatePath)
	cfg.AudioHistoryDir = os.Getenv("AUDIO_HISTORY_DIR")
	cfg.TTSProvider = envOr("TTS_PROVIDER", cfg.TTSProvider)
	cfg.TTSBaseURL = os.Getenv("TTS_BASE_URL")

	var err error
	if cfg.TTSTimeoutSeconds, err = envInt("TTS_TIMEOUT_SECONDS", cfg.TTSTimeoutSeconds); err != nil {
		return cfg, err
	}
	if cfg.SampleRate, err = envInt("SAMPLE_RATE", cfg.SampleRate); err != nil {
		return cfg, err
	}
	if cfg.DuckRampMS, err = envInt("DUCK_RAMP_MS", cfg.DuckRampMS); err != nil {
		return cfg, err
	}
	if cfg.ReconnectInitialMS, err = envInt("RECONNECT_INITIAL_MS", cfg.ReconnectInitialMS); err != nil {
		return cfg, err
	}
	if cfg.ReconnectMaxMS, err = envInt("RECONNECT_MAX_MS", cfg.ReconnectMaxMS); err != nil {
		return cfg, err
	}
	if cfg.NominalAmbienceGain, err = envFloat("NOMINAL_AMBIENCE_GAIN", cfg.NominalAmbienceGain); err != nil {
		return cfg, err
	}
	if cfg.DuckedAmbienceGain, err = envFloat("DUCKED_AMBIENCE_GAIN", cfg.DuckedAmbienceGain); err != nil {
		return cfg, err
	}
	cfg.SaveAudio = envBool("SAVE_AUDIO", false)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports a structural configuration error -- spec §6 exit code 1.
func (c Config) Validate() error {
	if c.MatchID == "" {
		return fmt.Errorf("config: MATCH_ID is required")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("config: API_BASE_URL is required")
	}
	if c.TTSAPIKey == "" {
		return fmt.Errorf("config: TTS_API_KEY is required")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("config: SAMPLE_RATE must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback, fmt.Errorf("config: %s must be a float: %w", key, err)
	}
	return f, nil
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

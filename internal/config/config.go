// Package config provides the configuration schema, loader, watcher and STT
// provider registry for voxime.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// PrefsBackend selects where voice preferences are persisted.
type PrefsBackend string

const (
	// PrefsMemory keeps preferences for the lifetime of the process.
	PrefsMemory PrefsBackend = "memory"

	// PrefsFile stores preferences in a YAML file.
	PrefsFile PrefsBackend = "file"

	// PrefsPostgres stores preferences in a PostgreSQL table keyed by profile.
	PrefsPostgres PrefsBackend = "postgres"
)

// IsValid reports whether b is a recognised backend.
func (b PrefsBackend) IsValid() bool {
	switch b {
	case PrefsMemory, PrefsFile, PrefsPostgres:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Providers   ProvidersConfig `yaml:"providers"`
	Voice       VoiceConfig     `yaml:"voice"`
	Preferences PrefsConfig     `yaml:"preferences"`
	Hints       HintsConfig     `yaml:"hints"`
}

// ServerConfig holds the metrics/health listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /metrics, /healthz and /readyz
	// (e.g., ":9090"). Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the speech-to-text back ends. STT is tried first,
// then each entry of STTFallbacks in order.
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	Breaker      BreakerConfig   `yaml:"breaker"`
}

// ProviderEntry is the configuration block of one provider.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// BreakerConfig tunes the circuit breaker in front of every STT back end.
// Zero values take the breaker defaults.
type BreakerConfig struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// VoiceConfig holds dictation settings.
type VoiceConfig struct {
	// SupportedLocales lists the BCP-47 tags the recognizer handles well.
	// Dictating in another locale shows the unsupported-locale warning.
	SupportedLocales []string `yaml:"supported_locales"`

	// Denylist disables voice input for matching fields.
	Denylist []DenyEntry `yaml:"denylist"`

	// MaxAlternatives is the n-best size requested per utterance. Default: 5.
	MaxAlternatives int `yaml:"max_alternatives"`

	// SampleRate is the PCM rate of the audio source in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`
}

// DenyEntry matches fields by owning package and/or field ID.
type DenyEntry struct {
	Package string `yaml:"package"`
	FieldID string `yaml:"field_id"`
}

// PrefsConfig selects the preference store.
type PrefsConfig struct {
	// Backend is one of memory, file, postgres. Default: memory.
	Backend PrefsBackend `yaml:"backend"`

	// Path is the YAML file used by the file backend.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string used by the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Profile scopes rows in the postgres backend. Default: "default".
	Profile string `yaml:"profile"`
}

// HintsConfig tunes the punctuation hint.
type HintsConfig struct {
	// PunctuationMaxShown caps how often the hint is shown. Default: 3.
	PunctuationMaxShown int `yaml:"punctuation_max_shown"`

	// PunctuationMinDeliveries is the number of unpunctuated results needed
	// before the hint appears. Default: 2.
	PunctuationMinDeliveries int `yaml:"punctuation_min_deliveries"`
}

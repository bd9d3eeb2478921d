package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// KnownSTTProviders lists the STT provider names shipped with voxime.
// Used by [Validate] to warn about unrecognised names.
var KnownSTTProviders = []string{"deepgram", "mock"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset optional fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Voice.MaxAlternatives == 0 {
		cfg.Voice.MaxAlternatives = 5
	}
	if cfg.Voice.SampleRate == 0 {
		cfg.Voice.SampleRate = 16000
	}
	if cfg.Preferences.Backend == "" {
		cfg.Preferences.Backend = PrefsMemory
	}
	if cfg.Preferences.Profile == "" {
		cfg.Preferences.Profile = "default"
	}
	if cfg.Hints.PunctuationMaxShown == 0 {
		cfg.Hints.PunctuationMaxShown = 3
	}
	if cfg.Hints.PunctuationMinDeliveries == 0 {
		cfg.Hints.PunctuationMinDeliveries = 2
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		if len(cfg.Providers.STTFallbacks) > 0 {
			errs = append(errs, errors.New("providers.stt_fallbacks is set but providers.stt.name is empty"))
		} else {
			slog.Warn("no STT provider configured; voice input will be unavailable")
		}
	}
	validateProviderName("providers.stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		field := fmt.Sprintf("providers.stt_fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", field))
			continue
		}
		validateProviderName(field, fb.Name)
	}
	if cfg.Providers.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.max_failures %d must not be negative", cfg.Providers.Breaker.MaxFailures))
	}
	if cfg.Providers.Breaker.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("providers.breaker.cooldown %s must not be negative", cfg.Providers.Breaker.Cooldown))
	}

	// Voice
	if cfg.Voice.MaxAlternatives < 1 || cfg.Voice.MaxAlternatives > 10 {
		errs = append(errs, fmt.Errorf("voice.max_alternatives %d is out of range [1, 10]", cfg.Voice.MaxAlternatives))
	}
	if cfg.Voice.SampleRate < 8000 || cfg.Voice.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("voice.sample_rate %d is out of range [8000, 48000]", cfg.Voice.SampleRate))
	}
	for i, loc := range cfg.Voice.SupportedLocales {
		if strings.TrimSpace(loc) == "" {
			errs = append(errs, fmt.Errorf("voice.supported_locales[%d] is empty", i))
		}
	}
	for i, d := range cfg.Voice.Denylist {
		if d.Package == "" && d.FieldID == "" {
			errs = append(errs, fmt.Errorf("voice.denylist[%d] needs package or field_id", i))
		}
	}

	// Preferences
	p := cfg.Preferences
	switch {
	case !p.Backend.IsValid():
		errs = append(errs, fmt.Errorf("preferences.backend %q is invalid; valid values: memory, file, postgres", p.Backend))
	case p.Backend == PrefsFile && p.Path == "":
		errs = append(errs, errors.New("preferences.path is required when backend is file"))
	case p.Backend == PrefsPostgres && p.PostgresDSN == "":
		errs = append(errs, errors.New("preferences.postgres_dsn is required when backend is postgres"))
	}

	// Hints
	if cfg.Hints.PunctuationMaxShown < 0 || cfg.Hints.PunctuationMinDeliveries < 0 {
		errs = append(errs, errors.New("hints values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not a known
// STT provider.
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(KnownSTTProviders, name) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"field", field,
		"name", name,
		"known", KnownSTTProviders,
	)
}

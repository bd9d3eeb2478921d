package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// preference backend changes need a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LocalesChanged bool
	NewLocales     []string

	DenylistChanged bool

	// RestartRequired lists top-level sections whose changes are ignored
	// until restart.
	RestartRequired []string
}

// Changed reports whether anything hot-reloadable changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.LocalesChanged || d.DenylistChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if !slices.Equal(old.Voice.SupportedLocales, new.Voice.SupportedLocales) {
		d.LocalesChanged = true
		d.NewLocales = slices.Clone(new.Voice.SupportedLocales)
	}
	if !slices.Equal(old.Voice.Denylist, new.Voice.Denylist) {
		d.DenylistChanged = true
	}

	if !providersEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Preferences != new.Preferences {
		d.RestartRequired = append(d.RestartRequired, "preferences")
	}
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Voice.MaxAlternatives != new.Voice.MaxAlternatives || old.Voice.SampleRate != new.Voice.SampleRate {
		d.RestartRequired = append(d.RestartRequired, "voice")
	}
	if old.Hints != new.Hints {
		d.RestartRequired = append(d.RestartRequired, "hints")
	}

	return d
}

func providersEqual(a, b ProvidersConfig) bool {
	if a.Breaker != b.Breaker || !entryEqual(a.STT, b.STT) || len(a.STTFallbacks) != len(b.STTFallbacks) {
		return false
	}
	for i := range a.STTFallbacks {
		if !entryEqual(a.STTFallbacks[i], b.STTFallbacks[i]) {
			return false
		}
	}
	return true
}

// entryEqual ignores Options, which may hold values that are not comparable.
func entryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name && a.APIKey == b.APIKey && a.BaseURL == b.BaseURL && a.Model == b.Model
}

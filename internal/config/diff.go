package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AudioLimitsChanged is true when max size or format list changed.
	AudioLimitsChanged bool

	// EmailRecipientsChanged is true when the default recipient list changed.
	EmailRecipientsChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.AudioLimitsChanged || d.EmailRecipientsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: provider
// swaps and listen-address changes require one.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Audio.MaxSizeMB != new.Audio.MaxSizeMB ||
		!slices.Equal(old.Audio.SupportedFormats, new.Audio.SupportedFormats) {
		d.AudioLimitsChanged = true
	}

	if !slices.Equal(old.Email.Recipients, new.Email.Recipients) {
		d.EmailRecipientsChanged = true
	}

	return d
}

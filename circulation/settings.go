package circulation

import (
	"strconv"
)

// Canonical settings keys. The source of truth is the settings table; these
// constants are the only key spellings the engine reads.
const (
	SettingBorrowPeriodDays = "DefaultBorrowingPeriodDays"
	SettingFinePerDay       = "FinePerDay"
	SettingMaxReissues      = "MaxReissuesAllowed"
)

// Defaults applied when a setting is absent or malformed. A missing or
// unparsable value never fails an operation, the default is used silently.
const (
	DefaultBorrowPeriodDays = 14
	DefaultFinePerDay       = 1.0
	DefaultMaxReissues      = 2
)

// Settings is the resolved configuration consumed by circulation operations.
type Settings struct {
	BorrowPeriodDays int
	FinePerDay       float64
	MaxReissues      int
}

// DefaultSettings returns the settings used when the settings table is
// unreachable or empty.
func DefaultSettings() Settings {
	return Settings{
		BorrowPeriodDays: DefaultBorrowPeriodDays,
		FinePerDay:       DefaultFinePerDay,
		MaxReissues:      DefaultMaxReissues,
	}
}

// ParseIntSetting parses a stored setting value as int, falling back to the
// default on any parse failure. The bool result reports whether the stored
// value was used.
func ParseIntSetting(value string, fallback int) (int, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, false
	}

	return n, true
}

// ParseFloatSetting parses a stored setting value as float64, falling back to
// the default on any parse failure. The bool result reports whether the stored
// value was used.
func ParseFloatSetting(value string, fallback float64) (float64, bool) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback, false
	}

	return f, true
}

package circulation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shelfwise/library-circulation-go/circulation"
)

func Test_ParseIntSetting(t *testing.T) {
	value, usedStored := circulation.ParseIntSetting("21", circulation.DefaultBorrowPeriodDays)
	assert.Equal(t, 21, value)
	assert.True(t, usedStored)

	value, usedStored = circulation.ParseIntSetting("three weeks", circulation.DefaultBorrowPeriodDays)
	assert.Equal(t, circulation.DefaultBorrowPeriodDays, value)
	assert.False(t, usedStored)

	value, usedStored = circulation.ParseIntSetting("", circulation.DefaultMaxReissues)
	assert.Equal(t, circulation.DefaultMaxReissues, value)
	assert.False(t, usedStored)
}

func Test_ParseFloatSetting(t *testing.T) {
	value, usedStored := circulation.ParseFloatSetting("2.5", circulation.DefaultFinePerDay)
	assert.InDelta(t, 2.5, value, 0.0001)
	assert.True(t, usedStored)

	value, usedStored = circulation.ParseFloatSetting("free", circulation.DefaultFinePerDay)
	assert.InDelta(t, circulation.DefaultFinePerDay, value, 0.0001)
	assert.False(t, usedStored)
}

func Test_DefaultSettings(t *testing.T) {
	settings := circulation.DefaultSettings()

	assert.Equal(t, circulation.DefaultBorrowPeriodDays, settings.BorrowPeriodDays)
	assert.InDelta(t, circulation.DefaultFinePerDay, settings.FinePerDay, 0.0001)
	assert.Equal(t, circulation.DefaultMaxReissues, settings.MaxReissues)
}

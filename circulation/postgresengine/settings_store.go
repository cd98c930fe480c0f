package postgresengine

import (
	"context"
	"strconv"

	"github.com/doug-martin/goqu/v9"

	"github.com/shelfwise/library-circulation-go/circulation"
	"github.com/shelfwise/library-circulation-go/circulation/postgresengine/internal/adapters"
)

const (
	colSettingKey   = "setting_key"
	colSettingValue = "setting_value"

	logActionGetSetting = "get setting"
)

// SettingsStore reads runtime configuration from the settings table.
//
// Lookups never fail the calling operation: a missing key, an unparsable
// value, or a storage error all produce the supplied default with a warning
// logged. Settings are read fresh on every operation, there is no cache.
type SettingsStore struct {
	engine *Engine
}

// GetString returns the stored value for key, or fallback when the key is
// absent or the lookup fails.
func (s SettingsStore) GetString(ctx context.Context, key string, fallback string) string {
	return s.getString(ctx, s.engine.db, key, fallback)
}

// GetInt returns the stored value for key parsed as int, or fallback when the
// key is absent, the value is malformed, or the lookup fails.
func (s SettingsStore) GetInt(ctx context.Context, key string, fallback int) int {
	return s.getInt(ctx, s.engine.db, key, fallback)
}

// GetFloat returns the stored value for key parsed as float64, or fallback
// when the key is absent, the value is malformed, or the lookup fails.
func (s SettingsStore) GetFloat(ctx context.Context, key string, fallback float64) float64 {
	return s.getFloat(ctx, s.engine.db, key, fallback)
}

func (s SettingsStore) getString(ctx context.Context, dbh adapters.DBHandle, key string, fallback string) string {
	sqlQuery, _, buildErr := goqu.Dialect(dialectPostgres).
		From(s.engine.tables.Settings).
		Select(colSettingValue).
		Where(goqu.Ex{colSettingKey: key}).
		ToSQL()
	if buildErr != nil {
		s.engine.logError(ctx, logMsgBuildQueryFailed, buildErr, logAttrSettingKey, key)

		return fallback
	}

	rows, _, queryErr := s.engine.executeQuery(ctx, dbh, sqlQuery, logActionGetSetting)
	if queryErr != nil {
		s.engine.logWarn(ctx, logMsgSettingFallback, logAttrSettingKey, key, logAttrError, queryErr.Error())

		return fallback
	}
	defer s.engine.closeRows(ctx, rows)

	if !rows.Next() {
		s.engine.logWarn(ctx, logMsgSettingFallback, logAttrSettingKey, key)

		return fallback
	}

	var value string
	if scanErr := rows.Scan(&value); scanErr != nil {
		s.engine.logWarn(ctx, logMsgSettingFallback, logAttrSettingKey, key, logAttrError, scanErr.Error())

		return fallback
	}

	return value
}

func (s SettingsStore) getInt(ctx context.Context, dbh adapters.DBHandle, key string, fallback int) int {
	stored := s.getString(ctx, dbh, key, strconv.Itoa(fallback))

	value, usedStored := circulation.ParseIntSetting(stored, fallback)
	if !usedStored {
		s.engine.logWarn(ctx, logMsgSettingFallback, logAttrSettingKey, key)
	}

	return value
}

func (s SettingsStore) getFloat(ctx context.Context, dbh adapters.DBHandle, key string, fallback float64) float64 {
	stored := s.getString(ctx, dbh, key, strconv.FormatFloat(fallback, 'f', -1, 64))

	value, usedStored := circulation.ParseFloatSetting(stored, fallback)
	if !usedStored {
		s.engine.logWarn(ctx, logMsgSettingFallback, logAttrSettingKey, key)
	}

	return value
}

// resolve loads the full circulation settings in one pass, applying defaults
// per key.
func (s SettingsStore) resolve(ctx context.Context, dbh adapters.DBHandle) circulation.Settings {
	defaults := circulation.DefaultSettings()

	return circulation.Settings{
		BorrowPeriodDays: s.getInt(ctx, dbh, circulation.SettingBorrowPeriodDays, defaults.BorrowPeriodDays),
		FinePerDay:       s.getFloat(ctx, dbh, circulation.SettingFinePerDay, defaults.FinePerDay),
		MaxReissues:      s.getInt(ctx, dbh, circulation.SettingMaxReissues, defaults.MaxReissues),
	}
}

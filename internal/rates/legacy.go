package rates

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LegacyMigrationName is the app_migrations key of MigrateLegacyEntries.
const LegacyMigrationName = "rate_entries_legacy_codes"

// MigrateLegacyEntries renames entries stored under legacy codes across every
// config, once per database. Where a config already holds the current code the
// legacy entry is dropped. It reports whether the step ran.
func (p *Provider) MigrateLegacyEntries(ctx context.Context) (bool, error) {
	res, err := p.q.ExecContext(ctx, `
		INSERT INTO app_migrations (name) VALUES (?)
		ON CONFLICT (name) DO NOTHING
	`, LegacyMigrationName)
	if err != nil {
		return false, fmt.Errorf("claim legacy rate migration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("legacy rate migration rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	renamed, dropped := int64(0), int64(0)
	for _, l := range legacyCodes {
		def, _ := defaultEntry(l.to)
		res, err := p.q.ExecContext(ctx, `
			UPDATE OR IGNORE rate_entries
			SET code = ?, name = ?, abbreviation = ?
			WHERE code = ?
		`, l.to, def.Name, def.Abbreviation, l.from)
		if err != nil {
			return false, fmt.Errorf("rename legacy rate code %s: %w", l.from, err)
		}
		n, _ := res.RowsAffected()
		renamed += n

		res, err = p.q.ExecContext(ctx, `DELETE FROM rate_entries WHERE code = ?`, l.from)
		if err != nil {
			return false, fmt.Errorf("drop legacy rate code %s: %w", l.from, err)
		}
		n, _ = res.RowsAffected()
		dropped += n
	}

	p.log.Info("legacy rate entries migrated", zap.Int64("renamed", renamed), zap.Int64("dropped", dropped))
	return true, nil
}

// Package rates owns the per-context station rate tables.
package rates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Simplici0/muebles/internal/costing"
	"github.com/Simplici0/muebles/internal/db"
)

// Context identifies one rate table.
type Context struct {
	BudgetID int64  `json:"budget_id"`
	Version  int    `json:"version"`
	Operator string `json:"operator"`
}

func (c Context) validate() error {
	if c.BudgetID <= 0 {
		return costing.Invalid("budget_id", c.BudgetID, "must be positive")
	}
	if strings.TrimSpace(c.Operator) == "" {
		return costing.Invalid("operator", nil, "must not be empty")
	}
	return nil
}

// Config is the persisted header of a rate table.
type Config struct {
	ID string `json:"id"`
	Context
	Mode costing.Mode `json:"mode"`
}

// Provider reads and writes rate tables through q.
type Provider struct {
	q   db.Querier
	log *zap.Logger
}

func New(q db.Querier, log *zap.Logger) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{q: q, log: log}
}

// EnsureConfig returns the config for c, creating it with the station
// defaults if absent. Concurrent callers converge on a single row: a lost
// insert race is resolved by re-reading the winner.
func (p *Provider) EnsureConfig(ctx context.Context, c Context) (Config, error) {
	if err := c.validate(); err != nil {
		return Config{}, err
	}

	cfg, err := p.readConfig(ctx, c)
	if errors.Is(err, sql.ErrNoRows) {
		cfg, err = p.createConfig(ctx, c)
	}
	if err != nil {
		return Config{}, err
	}

	if _, err := p.EnsureDefaultValues(ctx, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (p *Provider) readConfig(ctx context.Context, c Context) (Config, error) {
	cfg := Config{Context: c}
	var mode string
	err := p.q.QueryRowContext(ctx, `
		SELECT id, mode
		FROM rate_configs
		WHERE budget_id = ? AND version = ? AND operator = ?
	`, c.BudgetID, c.Version, c.Operator).Scan(&cfg.ID, &mode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("read rate config: %w", err)
	}
	cfg.Mode = costing.Mode(mode)
	return cfg, nil
}

func (p *Provider) createConfig(ctx context.Context, c Context) (Config, error) {
	id := uuid.NewString()
	res, err := p.q.ExecContext(ctx, `
		INSERT INTO rate_configs (id, budget_id, version, operator, mode)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (budget_id, version, operator) DO NOTHING
	`, id, c.BudgetID, c.Version, c.Operator, string(costing.ModeStandard))
	if err != nil {
		return Config{}, fmt.Errorf("insert rate config: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return Config{}, fmt.Errorf("rate config rows affected: %w", err)
	}
	if n == 1 {
		p.log.Info("rate config created",
			zap.String("config_id", id),
			zap.Int64("budget_id", c.BudgetID),
			zap.Int("version", c.Version),
			zap.String("operator", c.Operator),
		)
	} else {
		p.log.Debug("rate config insert lost race, re-reading",
			zap.Int64("budget_id", c.BudgetID),
			zap.Int("version", c.Version),
			zap.String("operator", c.Operator),
		)
	}

	cfg, err := p.readConfig(ctx, c)
	if err != nil {
		return Config{}, fmt.Errorf("re-read rate config: %w", err)
	}
	return cfg, nil
}

// EnsureDefaultValues adds every default station entry missing from cfg and
// returns how many were added. Existing entries are never touched.
func (p *Provider) EnsureDefaultValues(ctx context.Context, cfg Config) (int, error) {
	added := 0
	for _, e := range DefaultEntries() {
		res, err := p.q.ExecContext(ctx, `
			INSERT INTO rate_entries (config_id, code, abbreviation, name, std_rate, batch_rate, summary, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (config_id, code) DO NOTHING
		`, cfg.ID, e.Code, e.Abbreviation, e.Name, e.StdRate, e.BatchRate, e.Summary, e.Sequence)
		if err != nil {
			return added, fmt.Errorf("insert default rate entry %s: %w", e.Code, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return added, fmt.Errorf("rate entry rows affected: %w", err)
		}
		added += int(n)
	}
	if added > 0 {
		p.log.Debug("default rate entries added", zap.String("config_id", cfg.ID), zap.Int("added", added))
	}
	return added, nil
}

// Mode returns the active mode of c.
func (p *Provider) Mode(ctx context.Context, c Context) (costing.Mode, error) {
	cfg, err := p.EnsureConfig(ctx, c)
	if err != nil {
		return "", err
	}
	return cfg.Mode, nil
}

// SetMode validates and stores the active mode of c.
func (p *Provider) SetMode(ctx context.Context, c Context, mode string) (costing.Mode, error) {
	m, err := costing.ParseMode(mode)
	if err != nil {
		return "", err
	}
	cfg, err := p.EnsureConfig(ctx, c)
	if err != nil {
		return "", err
	}
	if _, err := p.q.ExecContext(ctx, `UPDATE rate_configs SET mode = ? WHERE id = ?`, string(m), cfg.ID); err != nil {
		return "", fmt.Errorf("update rate mode: %w", err)
	}
	return m, nil
}

// LoadValues returns the entries of c ordered by display sequence.
func (p *Provider) LoadValues(ctx context.Context, c Context) ([]costing.RateEntry, error) {
	cfg, err := p.EnsureConfig(ctx, c)
	if err != nil {
		return nil, err
	}
	return p.entries(ctx, cfg.ID)
}

func (p *Provider) entries(ctx context.Context, configID string) ([]costing.RateEntry, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT code, abbreviation, name, std_rate, batch_rate, summary, sequence
		FROM rate_entries
		WHERE config_id = ?
		ORDER BY sequence, code
	`, configID)
	if err != nil {
		return nil, fmt.Errorf("query rate entries: %w", err)
	}
	defer rows.Close()

	var out []costing.RateEntry
	for rows.Next() {
		var e costing.RateEntry
		if err := rows.Scan(&e.Code, &e.Abbreviation, &e.Name, &e.StdRate, &e.BatchRate, &e.Summary, &e.Sequence); err != nil {
			return nil, fmt.Errorf("scan rate entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate entries: %w", err)
	}
	return out, nil
}

// SaveValues replaces the entry list of c. Defaults missing from entries are
// re-added afterwards so every station keeps a rate.
func (p *Provider) SaveValues(ctx context.Context, c Context, entries []costing.RateEntry) ([]costing.RateEntry, error) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			return nil, costing.Invalid("code", nil, "rate entry code must not be empty")
		}
		if seen[code] {
			return nil, costing.Invalid("code", code, "duplicate rate entry code")
		}
		if e.StdRate.IsNegative() || e.BatchRate.IsNegative() {
			return nil, costing.Invalid("rate", code, "rates must not be negative")
		}
		seen[code] = true
	}

	cfg, err := p.EnsureConfig(ctx, c)
	if err != nil {
		return nil, err
	}
	if _, err := p.q.ExecContext(ctx, `DELETE FROM rate_entries WHERE config_id = ?`, cfg.ID); err != nil {
		return nil, fmt.Errorf("clear rate entries: %w", err)
	}
	for _, e := range entries {
		if _, err := p.q.ExecContext(ctx, `
			INSERT INTO rate_entries (config_id, code, abbreviation, name, std_rate, batch_rate, summary, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, cfg.ID, strings.TrimSpace(e.Code), e.Abbreviation, e.Name, e.StdRate, e.BatchRate, e.Summary, e.Sequence); err != nil {
			return nil, fmt.Errorf("insert rate entry %s: %w", e.Code, err)
		}
	}
	if _, err := p.EnsureDefaultValues(ctx, cfg); err != nil {
		return nil, err
	}
	return p.entries(ctx, cfg.ID)
}

// ResetValues restores the station defaults of c and returns them.
func (p *Provider) ResetValues(ctx context.Context, c Context) ([]costing.RateEntry, error) {
	cfg, err := p.EnsureConfig(ctx, c)
	if err != nil {
		return nil, err
	}
	if _, err := p.q.ExecContext(ctx, `DELETE FROM rate_entries WHERE config_id = ?`, cfg.ID); err != nil {
		return nil, fmt.Errorf("clear rate entries: %w", err)
	}
	if _, err := p.EnsureDefaultValues(ctx, cfg); err != nil {
		return nil, err
	}
	p.log.Info("rate entries reset", zap.String("config_id", cfg.ID))
	return p.entries(ctx, cfg.ID)
}

// Table returns the active rate table of c for the allocator.
func (p *Provider) Table(ctx context.Context, c Context) (costing.RateTable, error) {
	cfg, err := p.EnsureConfig(ctx, c)
	if err != nil {
		return costing.RateTable{}, err
	}
	entries, err := p.entries(ctx, cfg.ID)
	if err != nil {
		return costing.RateTable{}, err
	}
	return costing.RateTable{Mode: cfg.Mode, Entries: entries}, nil
}

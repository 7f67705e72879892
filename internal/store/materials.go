package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/muebles/internal/costing"
)

var _ costing.MaterialResolver = (*Store)(nil)

// ResolveMaterial looks a material up by exact reference.
func (s *Store) ResolveMaterial(ctx context.Context, reference string) (costing.RawMaterial, bool, error) {
	var (
		m   costing.RawMaterial
		uom string
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT reference, name, list_price, margin, discount, net_price, uom, waste_default,
			length, width, thickness, family, type, tape_thin_ref, tape_thick_ref
		FROM raw_materials
		WHERE reference = ?
	`, reference).Scan(
		&m.Reference, &m.Name, &m.ListPrice, &m.Margin, &m.Discount, &m.NetPrice, &uom, &m.WasteDefault,
		&m.Length, &m.Width, &m.Thickness, &m.Family, &m.Type, &m.TapeThinRef, &m.TapeThickRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return costing.RawMaterial{}, false, nil
	}
	if err != nil {
		return costing.RawMaterial{}, false, fmt.Errorf("query material %q: %w", reference, err)
	}
	m.UoM = costing.UnitOfMeasure(uom)
	return m, true, nil
}

// UpsertMaterial inserts m or replaces the stored entry with the same reference.
// It reports whether a new row was inserted.
func (s *Store) UpsertMaterial(ctx context.Context, m costing.RawMaterial) (bool, error) {
	if m.Reference == "" {
		return false, costing.Invalid("reference", nil, "material reference must not be empty")
	}

	var exists bool
	if err := s.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM raw_materials WHERE reference = ?)`, m.Reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("check material existence: %w", err)
	}

	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO raw_materials (
			reference, name, list_price, margin, discount, net_price, uom, waste_default,
			length, width, thickness, family, type, tape_thin_ref, tape_thick_ref
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (reference) DO UPDATE SET
			name = excluded.name,
			list_price = excluded.list_price,
			margin = excluded.margin,
			discount = excluded.discount,
			net_price = excluded.net_price,
			uom = excluded.uom,
			waste_default = excluded.waste_default,
			length = excluded.length,
			width = excluded.width,
			thickness = excluded.thickness,
			family = excluded.family,
			type = excluded.type,
			tape_thin_ref = excluded.tape_thin_ref,
			tape_thick_ref = excluded.tape_thick_ref
	`,
		m.Reference, m.Name, m.ListPrice, m.Margin, m.Discount, m.NetPrice, string(m.UoM), m.WasteDefault,
		m.Length, m.Width, m.Thickness, m.Family, m.Type, m.TapeThinRef, m.TapeThickRef,
	); err != nil {
		return false, fmt.Errorf("upsert material %q: %w", m.Reference, err)
	}
	return !exists, nil
}

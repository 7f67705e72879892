package seed

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/muebles/internal/costing"
	"github.com/Simplici0/muebles/internal/pricing"
	"github.com/Simplici0/muebles/internal/rates"
	"github.com/Simplici0/muebles/internal/store"
)

const (
	demoBudgetID    = 1
	demoVersion     = 1
	demoDescription = "Armario dos puertas"
)

// Config contains the values required by startup seed.
type Config struct {
	Demo bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config, log *zap.Logger) (Stats, error) {
	if log == nil {
		log = zap.NewNop()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := migrateLegacyRates(ctx, tx, log, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if cfg.Demo {
		if err := ensureCatalog(ctx, tx, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
		if err := ensureDemoBudget(ctx, tx, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func migrateLegacyRates(ctx context.Context, tx *sql.Tx, log *zap.Logger, stats *Stats) error {
	ran, err := rates.New(tx, log).MigrateLegacyEntries(ctx)
	if err != nil {
		return fmt.Errorf("migrate legacy rate entries: %w", err)
	}
	if ran {
		stats.Updates++
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func demoCatalog() []costing.RawMaterial {
	return []costing.RawMaterial{
		{
			Reference:    "TAB-MEL-18",
			Name:         "Tablero melamina blanco 18 mm",
			ListPrice:    dec("15.60"),
			Discount:     dec("20"),
			NetPrice:     dec("12.48"),
			UoM:          costing.UoMSquareMeter,
			WasteDefault: dec("10"),
			Length:       dec("2750"),
			Width:        dec("1830"),
			Thickness:    dec("18"),
			Family:       "TABLERO",
			Type:         "MELAMINA",
			TapeThinRef:  "CAN-PVC-04",
			TapeThickRef: "CAN-PVC-20",
		},
		{
			Reference: "CAN-PVC-04",
			Name:      "Canto PVC blanco 0,4 mm",
			NetPrice:  dec("18.00"),
			UoM:       costing.UoMSquareMeter,
			Family:    "CANTO",
			Type:      "PVC",
		},
		{
			Reference: "CAN-PVC-20",
			Name:      "Canto PVC blanco 2 mm",
			NetPrice:  dec("36.00"),
			UoM:       costing.UoMSquareMeter,
			Family:    "CANTO",
			Type:      "PVC",
		},
		{
			Reference: "PERFIL-ALU",
			Name:      "Perfil tirador aluminio",
			NetPrice:  dec("6.40"),
			UoM:       costing.UoMLinearMeter,
			Length:    dec("3000"),
			Family:    "PERFIL",
			Type:      "ALUMINIO",
		},
	}
}

func ensureCatalog(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	st := store.New(tx)
	for _, m := range demoCatalog() {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM raw_materials WHERE reference = ? LIMIT 1)`, m.Reference).Scan(&exists); err != nil {
			return fmt.Errorf("check material %s existence: %w", m.Reference, err)
		}
		if exists {
			continue
		}
		if _, err := st.UpsertMaterial(ctx, m); err != nil {
			return fmt.Errorf("insert demo material %s: %w", m.Reference, err)
		}
		stats.Inserts++
	}
	return nil
}

func ensureDemoBudget(ctx context.Context, tx *sql.Tx, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1
			FROM budget_lines
			WHERE budget_id = ? AND version = ? AND description = ?
			LIMIT 1
		)
	`, demoBudgetID, demoVersion, demoDescription).Scan(&exists); err != nil {
		return fmt.Errorf("check demo budget existence: %w", err)
	}
	if exists {
		return nil
	}

	st := store.New(tx)
	line := pricing.BudgetLine{
		BudgetID:    demoBudgetID,
		Version:     demoVersion,
		Description: demoDescription,
		Height:      dec("2000"),
		Width:       dec("900"),
		Depth:       dec("580"),
		Quantity:    dec("1"),
	}
	if err := st.CreateLine(ctx, &line); err != nil {
		return fmt.Errorf("insert demo budget line: %w", err)
	}
	stats.Inserts++

	for _, p := range demoPieces(line.ID) {
		if err := st.CreatePiece(ctx, &p); err != nil {
			return fmt.Errorf("insert demo piece %s: %w", p.Code, err)
		}
		stats.Inserts++
	}
	return nil
}

func demoPieces(lineID int64) []costing.PieceRow {
	piece := func(code, desc, length, width, qty string) costing.PieceRow {
		p := costing.PieceRow{
			LineID:           lineID,
			BudgetID:         demoBudgetID,
			Version:          demoVersion,
			Code:             code,
			Description:      desc,
			Length:           dec(length),
			Width:            dec(width),
			Thickness:        dec("18"),
			QtyModule:        dec(qty),
			QtyUnit:          dec("1"),
			QtyTotal:         dec(qty),
			NeedsMaterial:    true,
			NeedsLabor:       true,
			NeedsEdgeBanding: true,
			MaterialRef:      "TAB-MEL-18",
			WastePercent:     dec("10"),
		}
		p.Edges[0].Code = dec("0.4")
		p.Edges[1].Code = dec("0.4")
		return p
	}

	door := piece("PUERTA", "Puerta", "1996", "447", "2")
	for i := range door.Edges {
		door.Edges[i].Code = dec("2")
	}

	handle := piece("TIRADOR ACC", "Perfil tirador", "1996", "0", "2")
	handle.MaterialRef = "PERFIL-ALU"
	handle.NeedsEdgeBanding = false
	handle.Thickness = decimal.Zero

	hinge := piece("DIV-IND-01", "División independiente bisagras", "0", "0", "1")
	hinge.NeedsMaterial = false
	hinge.NeedsEdgeBanding = false

	return []costing.PieceRow{
		piece("LATERAL", "Lateral", "2000", "580", "2"),
		piece("ESTANTE", "Estante", "864", "560", "3"),
		door,
		handle,
		hinge,
	}
}

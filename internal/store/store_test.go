package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/muebles/internal/costing"
	"github.com/Simplici0/muebles/internal/db"
	"github.com/Simplici0/muebles/internal/migrations"
	"github.com/Simplici0/muebles/internal/pricing"
	"github.com/Simplici0/muebles/internal/reconcile"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "store-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return database
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func createLine(t *testing.T, s *Store) pricing.BudgetLine {
	t.Helper()

	l := pricing.BudgetLine{BudgetID: 3, Version: 1, Description: "Armario", Quantity: dec("2")}
	if err := s.CreateLine(context.Background(), &l); err != nil {
		t.Fatalf("create line: %v", err)
	}
	return l
}

func TestMaterialUpsertAndResolve(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()

	m := costing.RawMaterial{
		Reference:   "TAB18",
		Name:        "Tablero 18",
		NetPrice:    dec("12.50"),
		UoM:         costing.UoMSquareMeter,
		Length:      dec("2440"),
		Width:       dec("1220"),
		Thickness:   dec("18"),
		TapeThinRef: "REF1",
	}
	inserted, err := s.UpsertMaterial(ctx, m)
	if err != nil || !inserted {
		t.Fatalf("first upsert: inserted=%v err=%v", inserted, err)
	}

	m.NetPrice = dec("13.10")
	inserted, err = s.UpsertMaterial(ctx, m)
	if err != nil || inserted {
		t.Fatalf("second upsert: inserted=%v err=%v", inserted, err)
	}

	got, ok, err := s.ResolveMaterial(ctx, "TAB18")
	if err != nil || !ok {
		t.Fatalf("resolve: ok=%v err=%v", ok, err)
	}
	if !got.NetPrice.Equal(dec("13.10")) || got.UoM != costing.UoMSquareMeter || got.TapeThinRef != "REF1" {
		t.Fatalf("unexpected material: %+v", got)
	}

	_, ok, err = s.ResolveMaterial(ctx, "NOPE")
	if err != nil || ok {
		t.Fatalf("expected missing reference to be absent, ok=%v err=%v", ok, err)
	}
}

func TestPieceRoundTripKeepsDecimalsAndNulls(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	line := createLine(t, s)

	p := costing.PieceRow{
		LineID:           line.ID,
		BudgetID:         3,
		Version:          1,
		Description:      "Lateral",
		Length:           dec("1200"),
		Width:            dec("600"),
		Thickness:        dec("18"),
		QtyTotal:         dec("2"),
		NeedsMaterial:    true,
		NeedsEdgeBanding: true,
		MaterialRef:      "TAB18",
		WastePercent:     dec("12.3456"),
		Area:             decimal.NewNullDecimal(dec("0.7200")),
	}
	p.Edges[0].Code = dec("0.4")
	p.Stations[costing.StationLabor] = costing.StationCost{Unit: dec("2.176"), Total: dec("4.35")}

	if err := s.CreatePiece(ctx, &p); err != nil {
		t.Fatalf("create piece: %v", err)
	}
	if p.ID == 0 {
		t.Fatalf("expected piece id to be set")
	}

	got, err := s.Piece(ctx, p.ID)
	if err != nil {
		t.Fatalf("get piece: %v", err)
	}
	if !got.WastePercent.Equal(dec("12.3456")) || !got.Edges[0].Code.Equal(dec("0.4")) {
		t.Fatalf("decimals not preserved: %+v", got)
	}
	if !got.Area.Valid || !got.Area.Decimal.Equal(dec("0.72")) {
		t.Fatalf("expected area 0.72, got %+v", got.Area)
	}
	if got.Perimeter.Valid || got.Linear.Valid {
		t.Fatalf("expected unset perimeter and linear, got %+v %+v", got.Perimeter, got.Linear)
	}
	if !got.Stations[costing.StationLabor].Total.Equal(dec("4.35")) {
		t.Fatalf("station columns not preserved: %+v", got.Stations)
	}
	if !got.NeedsMaterial || got.NeedsLabor || !got.NeedsEdgeBanding {
		t.Fatalf("flags not preserved: %+v", got)
	}

	got.Area = decimal.NullDecimal{}
	got.Linear = decimal.NewNullDecimal(dec("1.2"))
	if err := s.UpdatePiece(ctx, got); err != nil {
		t.Fatalf("update piece: %v", err)
	}
	again, err := s.Piece(ctx, p.ID)
	if err != nil {
		t.Fatalf("get updated piece: %v", err)
	}
	if again.Area.Valid || !again.Linear.Valid {
		t.Fatalf("expected area cleared and linear set, got %+v %+v", again.Area, again.Linear)
	}
}

func TestGroupRowsFiltersStockAndReference(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	line := createLine(t, s)

	add := func(ref string, needsMaterial, nonStock bool) int64 {
		p := costing.PieceRow{LineID: line.ID, BudgetID: 3, Version: 1, MaterialRef: ref, NeedsMaterial: needsMaterial, NonStock: nonStock}
		if err := s.CreatePiece(ctx, &p); err != nil {
			t.Fatalf("create piece: %v", err)
		}
		return p.ID
	}
	want := add("TAB18", true, false)
	add("TAB18", false, false)
	add("TAB18", true, true)
	add("OTHER", true, false)

	rows, err := s.GroupRows(ctx, 3, 1, "TAB18")
	if err != nil {
		t.Fatalf("group rows: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != want {
		t.Fatalf("expected only piece %d, got %+v", want, rows)
	}
}

func TestSetWasteAndBackups(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	line := createLine(t, s)

	p := costing.PieceRow{LineID: line.ID, BudgetID: 3, Version: 1, WastePercent: dec("5")}
	if err := s.CreatePiece(ctx, &p); err != nil {
		t.Fatalf("create piece: %v", err)
	}

	g := reconcile.Group{BudgetID: 3, Version: 1, Operator: "ana", Reference: "TAB18"}
	if _, ok, err := s.Backup(ctx, g, p.ID); err != nil || ok {
		t.Fatalf("expected no backup, ok=%v err=%v", ok, err)
	}

	b := reconcile.Backup{BudgetID: 3, Version: 1, Operator: "ana", PieceID: p.ID, WastePercent: dec("5"), Active: true}
	if err := s.SaveBackup(ctx, b); err != nil {
		t.Fatalf("save backup: %v", err)
	}
	b.Active = false
	b.WholeBoardLock = true
	if err := s.SaveBackup(ctx, b); err != nil {
		t.Fatalf("update backup: %v", err)
	}

	got, ok, err := s.Backup(ctx, g, p.ID)
	if err != nil || !ok {
		t.Fatalf("load backup: ok=%v err=%v", ok, err)
	}
	if got.Active || !got.WholeBoardLock || !got.WastePercent.Equal(dec("5")) {
		t.Fatalf("unexpected backup: %+v", got)
	}

	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM waste_backups`).Scan(&n); err != nil {
		t.Fatalf("count backups: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected backup updated in place, got %d rows", n)
	}

	if err := s.SetWaste(ctx, p.ID, dec("7.25"), true); err != nil {
		t.Fatalf("set waste: %v", err)
	}
	piece, err := s.Piece(ctx, p.ID)
	if err != nil {
		t.Fatalf("get piece: %v", err)
	}
	if !piece.WastePercent.Equal(dec("7.25")) || !piece.WholeBoardLock {
		t.Fatalf("waste not written: %+v", piece)
	}

	if err := s.SetWaste(ctx, 9999, dec("1"), false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLinesAndCascadeDelete(t *testing.T) {
	s := New(openTestDB(t))
	ctx := context.Background()
	line := createLine(t, s)

	p := costing.PieceRow{LineID: line.ID, BudgetID: 3, Version: 1}
	if err := s.CreatePiece(ctx, &p); err != nil {
		t.Fatalf("create piece: %v", err)
	}

	line.ProducedCost = dec("100")
	line.Price(pricing.Markups{Profit: dec("10")})
	if err := s.UpdateLine(ctx, line); err != nil {
		t.Fatalf("update line: %v", err)
	}

	lines, err := s.Lines(ctx, 3, 1)
	if err != nil {
		t.Fatalf("list lines: %v", err)
	}
	if len(lines) != 1 || !lines[0].Total.Equal(dec("220")) || !lines[0].Percentages.Profit.Equal(dec("10")) {
		t.Fatalf("unexpected lines: %+v", lines)
	}

	if err := s.DeleteLine(ctx, line.ID); err != nil {
		t.Fatalf("delete line: %v", err)
	}
	if _, err := s.Piece(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected piece deleted by cascade, got %v", err)
	}
	if _, err := s.Line(ctx, line.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

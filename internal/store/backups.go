package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Simplici0/muebles/internal/reconcile"
)

var _ reconcile.Store = (*Store)(nil)

// Backup returns the waste backup of a piece in the context of g.
func (s *Store) Backup(ctx context.Context, g reconcile.Group, pieceID int64) (reconcile.Backup, bool, error) {
	b := reconcile.Backup{BudgetID: g.BudgetID, Version: g.Version, Operator: g.Operator, PieceID: pieceID}
	err := s.q.QueryRowContext(ctx, `
		SELECT waste_percent, whole_board_lock, active
		FROM waste_backups
		WHERE budget_id = ? AND version = ? AND operator = ? AND piece_id = ?
	`, g.BudgetID, g.Version, g.Operator, pieceID).Scan(&b.WastePercent, &b.WholeBoardLock, &b.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.Backup{}, false, nil
	}
	if err != nil {
		return reconcile.Backup{}, false, fmt.Errorf("query waste backup of piece %d: %w", pieceID, err)
	}
	return b, true, nil
}

// SaveBackup inserts b or updates the existing backup of the same piece and
// context in place.
func (s *Store) SaveBackup(ctx context.Context, b reconcile.Backup) error {
	if _, err := s.q.ExecContext(ctx, `
		INSERT INTO waste_backups (budget_id, version, operator, piece_id, waste_percent, whole_board_lock, active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (budget_id, version, operator, piece_id) DO UPDATE SET
			waste_percent = excluded.waste_percent,
			whole_board_lock = excluded.whole_board_lock,
			active = excluded.active,
			updated_at = CURRENT_TIMESTAMP
	`, b.BudgetID, b.Version, b.Operator, b.PieceID, b.WastePercent, b.WholeBoardLock, b.Active); err != nil {
		return fmt.Errorf("save waste backup of piece %d: %w", b.PieceID, err)
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

func openTest(t *testing.T) *sql.DB {
	t.Helper()

	database, err := Open(filepath.Join(t.TempDir(), "db-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.Exec(`CREATE TABLE items (name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return database
}

func TestOpenEnablesForeignKeys(t *testing.T) {
	t.Parallel()

	database := openTest(t)

	var on int
	if err := database.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if on != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", on)
	}
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	t.Parallel()

	database := openTest(t)
	ctx := context.Background()

	if err := WithTx(ctx, database, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('kept')`)
		return err
	}); err != nil {
		t.Fatalf("commit tx: %v", err)
	}

	boom := errors.New("boom")
	err := WithTx(ctx, database, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('dropped')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	var n int
	if err := database.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestWithTxSerializesReadThenWrite(t *testing.T) {
	t.Parallel()

	database := openTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = WithTx(ctx, database, func(tx *sql.Tx) error {
				var n int
				if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&n); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES (?)`, fmt.Sprintf("item-%d", n))
				return err
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	var rows, distinct int
	if err := database.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT name) FROM items`).Scan(&rows, &distinct); err != nil {
		t.Fatalf("count items: %v", err)
	}
	if rows != 8 || distinct != 8 {
		t.Fatalf("expected 8 serialized writes, got %d rows and %d distinct names", rows, distinct)
	}
}

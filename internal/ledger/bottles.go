package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"barpos/m/domain"
)

const selectBottle = `SELECT id, name, volume_ml, sealed_count, open_fraction, glasses_per_bottle, created_at, updated_at FROM bottles`

// Create registers a new bottle type in the warehouse. The open fraction
// always starts at zero; stock arrives sealed.
func (l *Ledger) Create(ctx context.Context, name string, volumeML, sealedCount, glassesPerBottle int64) (domain.Bottle, error) {
	name = strings.TrimSpace(name)
	if name == "" || volumeML <= 0 {
		return domain.Bottle{}, fmt.Errorf("name and a positive volume_ml are required")
	}
	if sealedCount < 0 {
		return domain.Bottle{}, fmt.Errorf("sealed_count cannot be negative")
	}
	if glassesPerBottle < 1 {
		glassesPerBottle = 18
	}

	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO bottles (id, name, volume_ml, sealed_count, open_fraction, glasses_per_bottle) VALUES (?, ?, ?, ?, 0, ?)`,
		id, name, volumeML, sealedCount, glassesPerBottle)
	if err != nil {
		return domain.Bottle{}, err
	}
	return l.Get(ctx, id)
}

// Get returns one bottle row.
func (l *Ledger) Get(ctx context.Context, id string) (domain.Bottle, error) {
	var b domain.Bottle
	err := l.db.GetContext(ctx, &b, selectBottle+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bottle{}, domain.ErrNotFound
	}
	return b, err
}

// List returns the whole warehouse ordered by name.
func (l *Ledger) List(ctx context.Context) ([]domain.Bottle, error) {
	bottles := []domain.Bottle{}
	err := l.db.SelectContext(ctx, &bottles, selectBottle+` ORDER BY name ASC`)
	return bottles, err
}

// Update edits a bottle's name, volume and glass count. A volume change
// rescales the open fraction so the milliliters left stay constant.
func (l *Ledger) Update(ctx context.Context, id, name string, volumeML, glassesPerBottle int64) (domain.Bottle, error) {
	name = strings.TrimSpace(name)
	if name == "" || volumeML <= 0 {
		return domain.Bottle{}, fmt.Errorf("name and a positive volume_ml are required")
	}
	if glassesPerBottle < 1 {
		glassesPerBottle = 18
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Bottle{}, err
	}
	defer tx.Rollback()

	var b domain.Bottle
	err = tx.Get(&b, selectBottle+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bottle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bottle{}, err
	}

	frac := rescaleFraction(b.OpenFraction, b.VolumeML, volumeML)
	if _, err := tx.Exec(`UPDATE bottles SET name = ?, volume_ml = ?, open_fraction = ?, glasses_per_bottle = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, volumeML, frac, glassesPerBottle, id); err != nil {
		return domain.Bottle{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bottle{}, err
	}
	return l.Get(ctx, id)
}

// Delete removes a bottle and everything hanging off it: combo complements
// are nulled out, menu buttons backed by the bottle disappear (their ticket
// lines keep the free-text name), and stock snapshots go with it.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.Get(&exists, `SELECT COUNT(*) FROM bottles WHERE id = ?`, id); err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	steps := []string{
		`UPDATE menu_items SET complement_id = NULL WHERE complement_id = ?`,
		`UPDATE ticket_lines SET menu_item_id = NULL WHERE menu_item_id IN (SELECT id FROM menu_items WHERE bottle_id = ?)`,
		`DELETE FROM night_menu WHERE item_id IN (SELECT id FROM menu_items WHERE bottle_id = ?)`,
		`DELETE FROM menu_items WHERE bottle_id = ?`,
		`DELETE FROM stock_snapshots WHERE bottle_id = ?`,
		`DELETE FROM bottles WHERE id = ?`,
	}
	for _, stmt := range steps {
		if _, err := tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Restock sets the sealed-bottle count after a delivery or a manual
// recount. The open fraction is untouched.
func (l *Ledger) Restock(ctx context.Context, id string, sealedCount int64) (domain.Bottle, error) {
	if sealedCount < 0 {
		return domain.Bottle{}, fmt.Errorf("sealed_count cannot be negative")
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE bottles SET sealed_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, sealedCount, id)
	if err != nil {
		return domain.Bottle{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Bottle{}, domain.ErrNotFound
	}
	return l.Get(ctx, id)
}

// SnapshotOpeningStock records the sealed count a night starts with, for
// the reconciliation sheet, and aligns the live row with the recount.
func (l *Ledger) SnapshotOpeningStock(ctx context.Context, id, date string, sealedCount int64) error {
	if sealedCount < 0 {
		return fmt.Errorf("sealed_count cannot be negative")
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.Get(&exists, `SELECT COUNT(*) FROM bottles WHERE id = ?`, id); err != nil {
		return err
	}
	if exists == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.Exec(`INSERT INTO stock_snapshots (bottle_id, date, sealed_count) VALUES (?, ?, ?)
        ON CONFLICT(bottle_id, date) DO UPDATE SET sealed_count = excluded.sealed_count`,
		id, date, sealedCount); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE bottles SET sealed_count = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sealedCount, id); err != nil {
		return err
	}
	return tx.Commit()
}

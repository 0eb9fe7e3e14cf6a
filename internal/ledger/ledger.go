package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/jmoiron/sqlx"

	"barpos/m/domain"
)

// epsilon absorbs float noise when draining open-bottle fractions.
const epsilon = 0.001

// Ledger maintains bottle-stock state: sealed counts plus the fractional
// content of at most one open bottle per row.
type Ledger struct {
	db *sqlx.DB
}

// New constructs a Ledger over the shared database handle.
func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// Deduct applies the consumption of qty units of saleType against one
// bottle row in its own transaction and returns the updated row. Checkout
// batches several deductions into a single transaction via DeductTx instead.
func (l *Ledger) Deduct(ctx context.Context, bottleID string, saleType domain.SaleType, qty int64) (domain.Bottle, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Bottle{}, err
	}
	defer tx.Rollback()

	if err := DeductTx(tx, bottleID, saleType, qty); err != nil {
		return domain.Bottle{}, err
	}

	var b domain.Bottle
	if err := tx.Get(&b, selectBottle+` WHERE id = ?`, bottleID); err != nil {
		return domain.Bottle{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bottle{}, err
	}
	return b, nil
}

// DeductTx applies one deduction inside the caller's transaction. The write
// transaction owns the single database connection, so the read-modify-write
// below is never interleaved with another sale.
//
// All-or-nothing per bottle row: on ErrInsufficientStock nothing is written.
func DeductTx(tx *sqlx.Tx, bottleID string, saleType domain.SaleType, qty int64) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	if !saleType.Valid() {
		return fmt.Errorf("unknown sale type %q", saleType)
	}

	var cur struct {
		SealedCount  int64   `db:"sealed_count"`
		OpenFraction float64 `db:"open_fraction"`
	}
	err := tx.Get(&cur, `SELECT sealed_count, open_fraction FROM bottles WHERE id = ?`, bottleID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}

	sealed, frac := cur.SealedCount, cur.OpenFraction

	switch saleType.Policy() {
	case domain.DeductByGlass:
		if frac > 0 {
			// A bottle is already open. Glass-level depletion is not
			// tracked here; the remainder is counted manually at shift
			// close.
			return nil
		}
		if sealed == 0 {
			return domain.ErrInsufficientStock
		}
		sealed--
		frac = 100

	case domain.DeductWholeBottle:
		remaining := frac - 100*float64(qty)
		for remaining < -epsilon && sealed > 0 {
			sealed--
			remaining += 100
		}
		if remaining < -epsilon {
			return domain.ErrInsufficientStock
		}
		frac = round4(math.Max(0, remaining))
	}

	_, err = tx.Exec(`UPDATE bottles SET sealed_count = ?, open_fraction = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		sealed, frac, bottleID)
	return err
}

// Resize changes a bottle's nominal volume, rescaling the open fraction so
// the absolute milliliters left in the open bottle stay the same.
func (l *Ledger) Resize(ctx context.Context, bottleID string, newVolumeML int64) (domain.Bottle, error) {
	if newVolumeML <= 0 {
		return domain.Bottle{}, fmt.Errorf("volume_ml must be positive")
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Bottle{}, err
	}
	defer tx.Rollback()

	var b domain.Bottle
	err = tx.Get(&b, selectBottle+` WHERE id = ?`, bottleID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Bottle{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Bottle{}, err
	}

	frac := rescaleFraction(b.OpenFraction, b.VolumeML, newVolumeML)
	if _, err := tx.Exec(`UPDATE bottles SET volume_ml = ?, open_fraction = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		newVolumeML, frac, bottleID); err != nil {
		return domain.Bottle{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Bottle{}, err
	}

	b.VolumeML = newVolumeML
	b.OpenFraction = frac
	return b, nil
}

// rescaleFraction maps an open fraction of oldVolume onto newVolume,
// capping at a full bottle.
func rescaleFraction(fraction float64, oldVolume, newVolume int64) float64 {
	if oldVolume == newVolume || oldVolume <= 0 {
		return fraction
	}
	ml := fraction / 100 * float64(oldVolume)
	return round4(math.Min(100, ml/float64(newVolume)*100))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

package migrations

import (
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Run creates the database schema required for the POS backend.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS bottles (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL UNIQUE,
            volume_ml INTEGER NOT NULL CHECK (volume_ml > 0),
            sealed_count INTEGER NOT NULL DEFAULT 0 CHECK (sealed_count >= 0),
            open_fraction REAL NOT NULL DEFAULT 0 CHECK (open_fraction >= 0 AND open_fraction <= 100),
            glasses_per_bottle INTEGER NOT NULL DEFAULT 18 CHECK (glasses_per_bottle >= 1),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS menu_items (
            id TEXT PRIMARY KEY,
            bottle_id TEXT NOT NULL,
            complement_id TEXT,
            name TEXT NOT NULL,
            sale_type TEXT NOT NULL,
            price REAL NOT NULL DEFAULT 0,
            promo_price REAL,
            combo_desc TEXT NOT NULL DEFAULT '',
            hidden INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(bottle_id) REFERENCES bottles(id),
            FOREIGN KEY(complement_id) REFERENCES bottles(id)
        );`,
		`CREATE TABLE IF NOT EXISTS night_menu (
            item_id TEXT NOT NULL,
            date TEXT NOT NULL,
            sale_type_override TEXT,
            price_override REAL,
            PRIMARY KEY(item_id, date),
            FOREIGN KEY(item_id) REFERENCES menu_items(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS stock_snapshots (
            bottle_id TEXT NOT NULL,
            date TEXT NOT NULL,
            sealed_count INTEGER NOT NULL,
            PRIMARY KEY(bottle_id, date),
            FOREIGN KEY(bottle_id) REFERENCES bottles(id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS tickets (
            id TEXT PRIMARY KEY,
            total REAL NOT NULL,
            payment_method TEXT NOT NULL DEFAULT 'EFECTIVO',
            cash_received REAL,
            created_by TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS ticket_lines (
            id TEXT PRIMARY KEY,
            ticket_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            menu_item_id TEXT,
            name TEXT NOT NULL DEFAULT '',
            quantity INTEGER NOT NULL CHECK (quantity >= 1),
            subtotal REAL NOT NULL,
            tag TEXT NOT NULL DEFAULT '',
            FOREIGN KEY(ticket_id) REFERENCES tickets(id),
            FOREIGN KEY(menu_item_id) REFERENCES menu_items(id) ON DELETE SET NULL
        );`,
		`CREATE TABLE IF NOT EXISTS settings (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_menu_items_bottle ON menu_items(bottle_id);`,
		`CREATE INDEX IF NOT EXISTS idx_ticket_lines_ticket ON ticket_lines(ticket_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_created ON tickets(created_at);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
	}
}

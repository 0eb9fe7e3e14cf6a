package seed

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// LoadBottles ingests a warehouse catalog CSV (name, volume_ml,
// sealed_count, glasses_per_bottle) into the bottles table, ignoring rows
// whose name already exists.
func LoadBottles(db *sqlx.DB, csvPath string) {
	file, err := os.Open(csvPath)
	if err != nil {
		log.Warn().Err(err).Str("path", csvPath).Msg("unable to load bottle catalog")
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	// Skip header
	if _, err := reader.Read(); err != nil {
		log.Warn().Err(err).Msg("unable to read bottle catalog header")
		return
	}

	tx, err := db.Beginx()
	if err != nil {
		log.Warn().Err(err).Msg("unable to start bottle seed transaction")
		return
	}
	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO bottles (id, name, volume_ml, sealed_count, open_fraction, glasses_per_bottle) VALUES (?, ?, ?, ?, 0, ?)`)
	if err != nil {
		log.Warn().Err(err).Msg("unable to prepare bottle insert")
		_ = tx.Rollback()
		return
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warn().Err(err).Msg("unable to read bottle row")
			continue
		}
		if len(record) < 2 {
			continue
		}
		name := strings.TrimSpace(record[0])
		volume, _ := strconv.ParseInt(strings.TrimSpace(record[1]), 10, 64)
		if name == "" || volume <= 0 {
			continue
		}
		sealed := columnInt(record, 2, 0)
		glasses := columnInt(record, 3, 18)
		if glasses < 1 {
			glasses = 18
		}

		if _, err := stmt.Exec(uuid.NewString(), name, volume, sealed, glasses); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("unable to insert bottle")
		} else {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("unable to commit bottle seed")
	} else {
		log.Info().Int("rows", rows).Msg("seeded bottle catalog")
	}
}

func columnInt(record []string, idx int, fallback int64) int64 {
	if idx >= len(record) {
		return fallback
	}
	v, err := strconv.ParseInt(strings.TrimSpace(record[idx]), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

package seed

import (
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const passcodeKey = "venue_passcode_hash"

// EnsurePasscode stores a bcrypt hash of the shared venue passcode on first
// boot. An existing hash is left alone so rotating the env var does not
// silently lock the bar out mid-shift; delete the settings row to rotate.
func EnsurePasscode(db *sqlx.DB, passcode string) {
	var existing int
	if err := db.Get(&existing, `SELECT COUNT(*) FROM settings WHERE key = ?`, passcodeKey); err != nil {
		log.Fatal().Err(err).Msg("unable to check passcode setting")
	}
	if existing > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to hash venue passcode")
	}
	if _, err := db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)`, passcodeKey, string(hash)); err != nil {
		log.Fatal().Err(err).Msg("unable to store venue passcode")
	}
	log.Info().Msg("provisioned venue passcode")
}

// PasscodeHash returns the stored bcrypt hash.
func PasscodeHash(db *sqlx.DB) (string, error) {
	var hash string
	err := db.Get(&hash, `SELECT value FROM settings WHERE key = ?`, passcodeKey)
	return hash, err
}

package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"barpos/m/internal/api"
	"barpos/m/internal/config"
	"barpos/m/internal/database"
	"barpos/m/internal/migrations"
	"barpos/m/internal/seed"
)

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)
	seed.EnsurePasscode(db, cfg.Passcode)
	if cfg.BottleCatalog != "" {
		seed.LoadBottles(db, cfg.BottleCatalog)
	}

	handler := api.New(db, cfg.Secret)
	router := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(handler.Router())

	log.Info().Str("port", cfg.HTTPPort).Msg("bar POS server starting")
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

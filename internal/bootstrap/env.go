package bootstrap

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func Loadenv() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using system environment variables")
	}
}

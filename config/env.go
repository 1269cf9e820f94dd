package config

import (
	"os"

	// load .env before Envs is populated
	_ "github.com/joho/godotenv/autoload"
)

var Envs = struct {
	ALLOWED_ORIGINS string
	JWT_KEY         []byte
	GIN_MODE        string
	PORT            string
	LOG_PRETTY      string
}{
	ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
	JWT_KEY:         []byte(os.Getenv("JWT_KEY")),
	GIN_MODE:        os.Getenv("GIN_MODE"),
	PORT:            os.Getenv("PORT"),
	LOG_PRETTY:      os.Getenv("LOG_PRETTY"),
}

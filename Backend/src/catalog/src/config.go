package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	DBPath         string
	SeedOnStart    bool
	RabbitURL      string
	RabbitExchange string
	CORSOrigins    []string
	LogLevel       string
}

const ShutdownGrace = 10 * time.Second

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:       getenv("CATALOG_HTTP_ADDR", ":3333"),
		DBPath:         getenv("CATALOG_DB_PATH", "./data/catalog.db"),
		SeedOnStart:    getenv("CATALOG_SEED", "true") == "true",
		RabbitURL:      getenv("RABBITMQ_URL", ""),
		RabbitExchange: getenv("RABBIT_EXCHANGE", "rocketshoes.events"),
		CORSOrigins:    strings.Split(getenv("CATALOG_CORS_ORIGINS", "*"), ","),
		LogLevel:       getenv("LOG_LEVEL", "info"),
	}
}

package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr   string
	GRPCAddr   string
	CatalogURL string

	Store     string // memory | sqlite | redis
	DBPath    string
	RedisAddr string
	CartKey   string

	RabbitURL      string
	RabbitExchange string

	Locale       string
	Serialize    bool
	StrictLoad   bool
	ProductCache int
	FlashSize    int
	CORSOrigins  []string

	OTLPEndpoint string
	LogLevel     string
	LogFormat    string
}

const (
	ShutdownGrace  = 10 * time.Second
	HealthInterval = 5 * time.Second
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return n
}

// LoadConfig reads the environment, after loading an optional .env file.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		HTTPAddr:   getenv("CART_HTTP_ADDR", ":8080"),
		GRPCAddr:   getenv("CART_GRPC_ADDR", ":50060"),
		CatalogURL: getenv("CATALOG_URL", "http://localhost:3333"),

		Store:     getenv("CART_STORE", "sqlite"),
		DBPath:    getenv("CART_DB_PATH", "./data/cart.db"),
		RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
		CartKey:   getenv("CART_STORAGE_KEY", "@RocketShoes:cart"),

		RabbitURL:      getenv("RABBITMQ_URL", ""),
		RabbitExchange: getenv("RABBIT_EXCHANGE", "rocketshoes.events"),

		Locale:       getenv("CART_LOCALE", "en"),
		Serialize:    getenv("CART_SERIALIZE", "false") == "true",
		StrictLoad:   getenv("CART_STRICT_LOAD", "false") == "true",
		ProductCache: getenvInt("CART_PRODUCT_CACHE", 128),
		FlashSize:    getenvInt("CART_FLASH_SIZE", 32),
		CORSOrigins:  strings.Split(getenv("CART_CORS_ORIGINS", "*"), ","),

		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:     getenv("LOG_LEVEL", "info"),
		LogFormat:    getenv("LOG_FORMAT", "console"),
	}
}

package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all hub configuration.
type Config struct {
	// Server
	Host string
	Port int

	// Database
	MongoURI string

	// Event bridge (opt-in: only active when RedisAddr is set)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Clients
	SendBufferSize int

	// Seed the stock list when the store is empty
	SeedStocks bool
}

// Load reads configuration from flags with environment fallbacks.
// A .env file in the working directory is applied first if present.
func Load() *Config {
	godotenv.Load()

	c := &Config{}

	flag.StringVar(&c.Host, "host", envStr("HUB_HOST", "0.0.0.0"), "Listen host")
	flag.IntVar(&c.Port, "port", envInt("HUB_PORT", 3333), "WebSocket server port")

	flag.StringVar(&c.MongoURI, "mongo-uri", envStr("MONGO_URI", "mongodb://localhost:27017/stockhub"), "MongoDB connection URI")

	flag.StringVar(&c.RedisAddr, "redis-addr", envStr("REDIS_ADDR", ""), "Redis address for the event bridge (empty = disabled)")
	flag.StringVar(&c.RedisPassword, "redis-password", envStr("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&c.RedisDB, "redis-db", envInt("REDIS_DB", 0), "Redis database number")

	flag.IntVar(&c.SendBufferSize, "send-buffer", envInt("SEND_BUFFER", 256), "Per-client send buffer size")
	flag.BoolVar(&c.SeedStocks, "seed", envBool("SEED_STOCKS", true), "Insert the default stock list when the store is empty")

	flag.Parse()

	return c
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

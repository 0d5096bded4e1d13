package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type HTTPServer struct {
	Host string
	Port string
}

type RedisCache struct {
	Host     string
	Port     string
	Password string
}

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type State struct {
	// Backend selects the state store implementation once at startup:
	// "redis" or "memory".
	Backend string
}

type Round struct {
	// Duration is the voting window set at the OPEN -> VOTING
	// transition.
	Duration time.Duration
}

type Commentary struct {
	// URL of the commentary service. Empty disables commentary.
	URL string
}

type Config struct {
	HTTP       HTTPServer
	Redis      RedisCache
	Postgres   Postgres
	State      State
	Round      Round
	Commentary Commentary
}

const logtag = "[config]"

func Load() *Config {
	configPath := flag.String("config", "", "path env file")
	flag.Parse()

	if *configPath != "" {
		if err := godotenv.Load(*configPath); err != nil {
			log.Fatalf("%s err loading env from file : %v", logtag, err)
		}
		log.Printf("%s using env from : %s", logtag, *configPath)
	} else {
		log.Printf("%s using env from .env", logtag)
		_ = godotenv.Load()
	}

	return &Config{
		HTTP:       *newHTTP(),
		Redis:      *newRedis(),
		Postgres:   *newPostgres(),
		State:      *newState(),
		Round:      *newRound(),
		Commentary: *newCommentary(),
	}
}

func newHTTP() *HTTPServer {
	return &HTTPServer{
		Port: getenv("HTTP_PORT", "8080"),
		Host: getenv("HTTP_HOST", "localhost"),
	}
}

func newRedis() *RedisCache {
	return &RedisCache{
		Port:     getenv("REDIS_PORT", "6379"),
		Host:     getenv("REDIS_HOST", "redis"),
		Password: getenv("REDIS_PASSWORD", ""),
	}
}

func newPostgres() *Postgres {
	return &Postgres{
		Host:     getenv("DB_HOST", ""),
		Port:     getenv("DB_PORT", "5432"),
		User:     getenv("DB_USER", "admin"),
		Password: getenv("DB_PASSWORD", ""),
		DBName:   getenv("DB_NAME", "linkroyale"),
		SSLMode:  getenv("DB_SSLMODE", "disable"),
	}
}

func newState() *State {
	return &State{
		Backend: getenv("STATE_BACKEND", "memory"),
	}
}

func newRound() *Round {
	raw := getenv("ROUND_DURATION", "5m")
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s bad ROUND_DURATION %q : %v", logtag, raw, err)
	}
	return &Round{Duration: d}
}

func newCommentary() *Commentary {
	return &Commentary{
		URL: getenv("COMMENTARY_URL", ""),
	}
}

func getenv(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Printf("%s %s undefined. Using default value %s", logtag, key, defaultValue)
		return defaultValue
	}
	return val
}

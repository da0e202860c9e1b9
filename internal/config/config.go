package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	ReportAPIURL          string
	ReportAPIToken        string
	ReportTimeoutSeconds  int
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	LedgerKey             string
	TaxRate               float64
	Timezone              string
	PageSize              int
	AuthSecret            string
	AccessTokenTTLMinutes int
}

func Load() Config {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	timeout, err := strconv.Atoi(getEnv("REPORT_API_TIMEOUT_SECONDS", "10"))
	if err != nil || timeout < 1 {
		timeout = 10
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	pageSize, err := strconv.Atoi(getEnv("REPORT_PAGE_SIZE", "10"))
	if err != nil || pageSize < 1 {
		pageSize = 10
	}
	taxRate, err := strconv.ParseFloat(getEnv("TAX_RATE", "0.11"), 64)
	if err != nil || taxRate <= 0 || taxRate >= 1 {
		taxRate = 0.11
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		ReportAPIURL:          strings.TrimSpace(os.Getenv("REPORT_API_URL")),
		ReportAPIToken:        strings.TrimSpace(os.Getenv("REPORT_API_TOKEN")),
		ReportTimeoutSeconds:  timeout,
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		LedgerKey:             getEnv("OFFLINE_LEDGER_KEY", "pos:offline-transactions"),
		TaxRate:               taxRate,
		Timezone:              getEnv("REPORT_TIMEZONE", "Asia/Jakarta"),
		PageSize:              pageSize,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env（不存在时忽略）
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
}

type Database struct {
	Driver string // postgres | sqlite
	DSN    string
}

type Mongo struct {
	URI      string
	Database string
}

type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// Config 从环境变量读取
type Config struct {
	Port        string
	StoreDriver string // postgres | mongo: where the lending documents live
	Database    Database
	Mongo       Mongo

	RedisAddr string
	RedisPwd  string

	WebOrigin  string
	RPID       string
	RPOrigins  []string
	SessionTTL time.Duration // webauthn ceremony TTL
	AppTTL     time.Duration // business session TTL

	AdminEmails    []string
	BootstrapEmail string

	JWTSecret []byte
	JWTTTL    time.Duration

	SMTP       SMTP
	AppName    string
	StaffEmail string
}

func get(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func splitCSV(s string, lower bool) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			if lower {
				t = strings.ToLower(t)
			}
			out = append(out, t)
		}
	}
	return out
}

func Load() (Config, error) {
	ttl := 10 * time.Minute
	if n, err := strconv.Atoi(get("SESSION_TTL_SECONDS", "600")); err == nil && n > 0 {
		ttl = time.Duration(n) * time.Second
	}
	appTTL := 24 * time.Hour
	if n, err := strconv.Atoi(get("APP_SESSION_TTL_HOURS", "24")); err == nil && n > 0 {
		appTTL = time.Duration(n) * time.Hour
	}
	jwtTTL, err := time.ParseDuration(get("JWT_TTL", "12h"))
	if err != nil {
		return Config{}, fmt.Errorf("JWT_TTL: %w", err)
	}

	webOrigin := get("WEB_ORIGIN", "http://localhost:5173")
	cfg := Config{
		Port:        get("PORT", "3001"),
		StoreDriver: strings.ToLower(get("STORE_DRIVER", "postgres")),
		Database:    loadDatabase(),
		Mongo: Mongo{
			URI:      get("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database: get("MONGODB_DB", "alforge"),
		},
		RedisAddr:      get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:       os.Getenv("REDIS_PASSWORD"),
		WebOrigin:      webOrigin,
		RPID:           get("RP_ID", "localhost"),
		RPOrigins:      splitCSV(get("RP_ORIGINS", webOrigin), false),
		SessionTTL:     ttl,
		AppTTL:         appTTL,
		AdminEmails:    splitCSV(os.Getenv("ADMIN_EMAILS"), true),
		BootstrapEmail: strings.ToLower(os.Getenv("BOOTSTRAP_EMAIL")),
		JWTSecret:      []byte(os.Getenv("JWT_SECRET")),
		JWTTTL:         jwtTTL,
		SMTP: SMTP{
			Host:     get("SMTP_HOST", ""),
			Port:     get("SMTP_PORT", "587"),
			Username: get("SMTP_USERNAME", ""),
			Password: get("SMTP_PASSWORD", ""),
			From:     get("SMTP_FROM", ""),
		},
		AppName:    get("APP_NAME", "Alforge"),
		StaffEmail: strings.ToLower(get("STAFF_EMAIL", "")),
	}

	switch cfg.StoreDriver {
	case "postgres", "mongo":
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be postgres or mongo, got %q", cfg.StoreDriver)
	}
	return cfg, nil
}

func loadDatabase() Database {
	driver := strings.ToLower(get("DB_DRIVER", "postgres"))
	if driver == "sqlite" {
		return Database{Driver: driver, DSN: get("DB_PATH", "alforge.db")}
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return Database{Driver: driver, DSN: url}
	}
	return Database{
		Driver: driver,
		DSN: fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			get("DB_HOST", "127.0.0.1"),
			get("DB_USER", "postgres"),
			os.Getenv("DB_PASSWORD"),
			get("DB_NAME", "alforge"),
			get("DB_PORT", "5432"),
		),
	}
}

// IsAdminEmail reports whether email is in ADMIN_EMAILS.
func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

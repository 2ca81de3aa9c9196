package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode      Mode
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	SessionSecret string
	SessionCookie string
	SessionTTL    time.Duration
	CookieSecure  bool

	PageSize         int // REST list page size
	IndexLatestCount int // quizzes on the index page

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	SiteID string // event_log site id

	AdminUser     string // bootstrap superuser, created at startup when set
	AdminPassword string
	AdminEmail    string
}

// Load reads an optional .env file (or the files named in ENV_FILE) and then
// the process environment. Variables already set win over the file.
func Load() (Config, error) {
	files := csvOr("ENV_FILE", ".env")
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	c := FromEnv()
	return c, c.Validate()
}

// DevSessionSecret signs sessions when SESSION_SECRET is unset. It is only
// accepted in offline mode.
const DevSessionSecret = "supersecret-dev-key"

var ErrInsecureSecret = errors.New("config: SESSION_SECRET must be set in online mode")

// Validate rejects settings that are unsafe for the configured mode.
func (c Config) Validate() error {
	if c.Mode == ModeOnline && (c.SessionSecret == "" || c.SessionSecret == DevSessionSecret) {
		return ErrInsecureSecret
	}
	return nil
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           addr,
		PublicURL:          os.Getenv("PUBLIC_URL"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		SessionSecret:      envOr("SESSION_SECRET", DevSessionSecret),
		SessionCookie:      envOr("SESSION_COOKIE", "testme_session"),
		SessionTTL:         envDuration("SESSION_TTL", 14*24*time.Hour),
		CookieSecure:       envBool("COOKIE_SECURE", mode == ModeOnline),
		PageSize:           envInt("PAGE_SIZE", 100),
		IndexLatestCount:   envInt("INDEX_LATEST_COUNT", 5),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://testme.example.com"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000"),
		SiteID:             envOr("SITE_ID", "local"),
		AdminUser:          os.Getenv("ADMIN_USER"),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		AdminEmail:         os.Getenv("ADMIN_EMAIL"),
	}
}

// CORSOrigins returns the allow-list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v < 0 {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

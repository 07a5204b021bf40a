package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Money never appears here; only identifiers,
// secrets, addresses and durations.
type Config struct {
	Env              string   // application environment (e.g. "dev", "prod")
	Port             string   // HTTP port to listen on
	DBUser           string   // database username
	DBPass           string   // database password (optional)
	DBHost           string   // database host address
	DBPort           string   // database port number
	DBName           string   // database name
	JWTSecret        string   // secret used to sign session tokens
	AccessTTLMin     int      // session token time-to-live in minutes
	AdminExternalIDs []string // identity-provider ids granted admin on first login
	SteamAPIKey      string   // Steam Web API key for profile lookups
	SiteURL          string   // front-end origin the login callback redirects to
	PublicURL        string   // externally reachable base URL of this service
	RabbitURL        string   // AMQP broker URL for domain events
	LogLevel         string   // zap level: debug, info, warn, error
	RealtimeBuffer   int      // per-subscriber buffer of the realtime hub
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is applied first when it
// exists; real environment variables always win over it.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load() // optional; absent file is not an error worth reporting

	return Config{
		Env:              must("APP_ENV"),
		Port:             must("APP_PORT"),
		DBUser:           must("DB_USER"),
		DBPass:           os.Getenv("DB_PASS"), // empty allowed
		DBHost:           must("DB_HOST"),
		DBPort:           must("DB_PORT"),
		DBName:           must("DB_NAME"),
		JWTSecret:        must("JWT_SECRET"),
		AccessTTLMin:     mustInt("ACCESS_TOKEN_TTL_MIN"),
		AdminExternalIDs: splitList(os.Getenv("ADMIN_EXTERNAL_IDS")),
		SteamAPIKey:      os.Getenv("STEAM_API_KEY"),
		SiteURL:          envStr("SITE_URL", "http://localhost:3000"),
		PublicURL:        envStr("PUBLIC_URL", "http://localhost:8080"),
		RabbitURL:        rabbitURL(),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		RealtimeBuffer:   envInt("REALTIME_BUFFER", 64),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// splitList parses a comma separated list, dropping blanks.  An unset
// variable yields an empty list, which the access policy treats as
// "nobody is an admin".
func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// rabbitURL returns the broker URL, or "" when events stay in process.
func rabbitURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		return v
	}
	return ""
}

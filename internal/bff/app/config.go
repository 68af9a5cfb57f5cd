package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/envention/union/internal/session"
)

type Config struct {
	KeycloakURL          string        // Required: Keycloak base URL, e.g. https://sso.example.com
	KeycloakRealm        string        // Realm name (default: union)
	KeycloakClientID     string        // Confidential client id (default: union-app)
	KeycloakClientSecret string        // Client secret
	KeycloakAudiences    []string      // Accepted aud values (default: account,<client id>)
	HTTPClientTimeout    time.Duration // Timeout for IdP calls (default: 10s)

	SessionSecret        string        // Required: HMAC key for session tokens, at least 32 bytes
	SessionIssuer        string        // iss of session tokens (default: union-bff)
	SessionAudience      string        // aud of session tokens (default: union-web)
	SessionCookieName    string        // Cookie name (default: union-session)
	SessionMaxAge        int           // Cookie Max-Age in seconds (default: 86400)
	SessionRefreshWindow time.Duration // Refresh when less than this is left (default: 5m)

	APIUpstreamURL string // Business API proxied under /api/v1/; empty disables the proxy

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	clientID := getEnvOrDefault("KEYCLOAK_CLIENT_ID", "union-app")

	return Config{
		KeycloakURL:          strings.TrimSuffix(os.Getenv("KEYCLOAK_URL"), "/"),
		KeycloakRealm:        getEnvOrDefault("KEYCLOAK_REALM", "union"),
		KeycloakClientID:     clientID,
		KeycloakClientSecret: os.Getenv("KEYCLOAK_CLIENT_SECRET"),
		KeycloakAudiences:    getEnvListOrDefault("KEYCLOAK_AUDIENCES", []string{"account", clientID}),
		HTTPClientTimeout:    getEnvDurationOrDefault("HTTP_CLIENT_TIMEOUT", 10*time.Second),

		SessionSecret:        os.Getenv("SESSION_SECRET"),
		SessionIssuer:        getEnvOrDefault("SESSION_ISSUER", "union-bff"),
		SessionAudience:      getEnvOrDefault("SESSION_AUDIENCE", "union-web"),
		SessionCookieName:    getEnvOrDefault("SESSION_COOKIE_NAME", session.DefaultCookieName),
		SessionMaxAge:        getEnvIntOrDefault("SESSION_MAX_AGE", session.DefaultMaxAge),
		SessionRefreshWindow: getEnvDurationOrDefault("SESSION_REFRESH_WINDOW", session.DefaultRefreshWindow),

		APIUpstreamURL: os.Getenv("API_UPSTREAM_URL"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Production reports whether cookies must be marked Secure.
func (c Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.KeycloakURL == "" {
		errs = append(errs, errors.New("KEYCLOAK_URL is required"))
	} else if _, err := url.ParseRequestURI(c.KeycloakURL); err != nil {
		errs = append(errs, fmt.Errorf("KEYCLOAK_URL: %w", err))
	}
	if c.KeycloakRealm == "" {
		errs = append(errs, errors.New("KEYCLOAK_REALM is required"))
	}
	if c.KeycloakClientID == "" {
		errs = append(errs, errors.New("KEYCLOAK_CLIENT_ID is required"))
	}

	if c.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(c.SessionSecret) < session.MinSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", session.MinSecretLength))
	}

	if c.APIUpstreamURL != "" {
		if u, err := url.ParseRequestURI(c.APIUpstreamURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Errorf("API_UPSTREAM_URL %q is not an absolute URL", c.APIUpstreamURL))
		}
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	return errors.Join(errs...)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

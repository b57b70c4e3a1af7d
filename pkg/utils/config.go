package utils

import (
	"os"
	"strconv"
	"time"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("READHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("READHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "readhub"
	}

	ttl := 24 * time.Hour
	if hours := os.Getenv("READHUB_JWT_TTL_HOURS"); hours != "" {
		if n, err := strconv.Atoi(hours); err == nil && n > 0 {
			ttl = time.Duration(n) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: ttl,
	}
}

type ServerConfig struct {
	HTTPAddr string
}

func LoadServerConfig() ServerConfig {
	addr := os.Getenv("READHUB_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return ServerConfig{HTTPAddr: addr}
}

// CatalogConfig points at the content service that owns book metadata.
type CatalogConfig struct {
	BaseURL string
	Timeout time.Duration
}

func LoadCatalogConfig() CatalogConfig {
	base := os.Getenv("READHUB_CATALOG_URL")
	if base == "" {
		base = "http://localhost:8081"
	}

	timeout := 5 * time.Second
	if secs := os.Getenv("READHUB_CATALOG_TIMEOUT_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	return CatalogConfig{BaseURL: base, Timeout: timeout}
}

// FeedConfig bounds the activity aggregator.
type FeedConfig struct {
	SourceCap     int
	SourceTimeout time.Duration
}

func LoadFeedConfig() FeedConfig {
	cap := 100
	if raw := os.Getenv("READHUB_FEED_SOURCE_CAP"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			cap = n
		}
	}

	timeout := 3 * time.Second
	if secs := os.Getenv("READHUB_FEED_SOURCE_TIMEOUT_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			timeout = time.Duration(n) * time.Second
		}
	}

	return FeedConfig{SourceCap: cap, SourceTimeout: timeout}
}

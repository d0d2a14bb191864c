package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gourdian25/gourdianauth"
)

// Options are the gourdianauthd command line flags. Every flag can also be set
// through its GOURDIANAUTH_* environment variable.
type Options struct {
	HTTPAddr string `long:"http-addr" env:"GOURDIANAUTH_HTTP_ADDR" default:":8080" description:"HTTP listen address"`
	LogLevel string `long:"log-level" env:"GOURDIANAUTH_LOG_LEVEL" default:"info" description:"debug, info, warn or error"`

	Algorithm      string   `long:"algorithm" env:"GOURDIANAUTH_ALGORITHM" default:"HS256" description:"JWT signing algorithm"`
	JWTKey         string   `long:"jwt-key" env:"GOURDIANAUTH_JWT_KEY" description:"HMAC key, at least 32 bytes"`
	PrivateKeyPath string   `long:"private-key" env:"GOURDIANAUTH_PRIVATE_KEY" description:"PEM private key for asymmetric algorithms"`
	PublicKeyPath  string   `long:"public-key" env:"GOURDIANAUTH_PUBLIC_KEY" description:"PEM public key or certificate for asymmetric algorithms"`
	Issuer         string   `long:"issuer" env:"GOURDIANAUTH_ISSUER" default:"gourdianauth" description:"iss claim"`
	Audience       []string `long:"audience" env:"GOURDIANAUTH_AUDIENCE" env-delim:"," description:"aud claim, repeatable"`

	AccessTokenTTL  time.Duration `long:"access-ttl" env:"GOURDIANAUTH_ACCESS_TTL" default:"15m" description:"access token lifetime"`
	RefreshTokenTTL time.Duration `long:"refresh-ttl" env:"GOURDIANAUTH_REFRESH_TTL" default:"168h" description:"refresh session lifetime"`
	PurgeInterval   time.Duration `long:"purge-interval" env:"GOURDIANAUTH_PURGE_INTERVAL" default:"5m" description:"expired session purge interval"`

	RedisAddr     string `long:"redis-addr" env:"GOURDIANAUTH_REDIS_ADDR" description:"share sessions through Redis at this address"`
	RedisPassword string `long:"redis-password" env:"GOURDIANAUTH_REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"GOURDIANAUTH_REDIS_DB" default:"0" description:"Redis database"`
	RedisPrefix   string `long:"redis-prefix" env:"GOURDIANAUTH_REDIS_PREFIX" default:"gourdianauth:" description:"Redis key prefix"`

	CookieSecure bool   `long:"cookie-secure" env:"GOURDIANAUTH_COOKIE_SECURE" description:"mark the refresh cookie Secure"`
	CookieDomain string `long:"cookie-domain" env:"GOURDIANAUTH_COOKIE_DOMAIN" description:"refresh cookie domain"`

	Users      []string `long:"user" env:"GOURDIANAUTH_USERS" env-delim:";" description:"seed account as login:password[:role], repeatable"`
	BcryptCost int      `long:"bcrypt-cost" env:"GOURDIANAUTH_BCRYPT_COST" default:"12" description:"bcrypt cost for seeded passwords"`
}

// TokenConfig converts the flags into a gourdianauth.Config. Validation
// happens in the gourdianauth constructors.
func (o *Options) TokenConfig() (gourdianauth.Config, error) {
	config := gourdianauth.DefaultConfig(o.JWTKey)
	config.Algorithm = o.Algorithm
	config.Issuer = o.Issuer
	config.AccessTokenTTL = o.AccessTokenTTL
	config.RefreshTokenTTL = o.RefreshTokenTTL
	config.PurgeInterval = o.PurgeInterval
	if len(o.Audience) > 0 {
		config.Audience = o.Audience
	}

	if strings.HasPrefix(strings.ToUpper(o.Algorithm), "HS") {
		return config, nil
	}

	if o.JWTKey != "" {
		return gourdianauth.Config{}, fmt.Errorf("%w: --jwt-key cannot be combined with %s", gourdianauth.ErrConfiguration, o.Algorithm)
	}
	config.SigningMethod = gourdianauth.Asymmetric
	config.SymmetricKey = ""
	config.PrivateKeyPath = o.PrivateKeyPath
	config.PublicKeyPath = o.PublicKeyPath
	return config, nil
}

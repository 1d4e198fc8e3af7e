package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnv loads the dotenv file named by -e/-env (".env" when absent) into
// the process environment and then overlays every recognised variable.
// Variables already present in the process environment win over the file.
// A missing default file is ignored; an unreadable explicit one panics, as
// do malformed values.
//
// Recognised variables (durations are whole seconds):
//
//	GRPC_ADDRESS, HTTP_ADDRESS, DATABASE_DSN, JWT_ISSUER,
//	JWT_ACCESS_SECRET, JWT_ACCESS_EXPIRY, JWT_REMEMBER_SECRET, JWT_REMEMBER_EXPIRY,
//	PASSWORD_RESET_EXPIRY, RATE_LIMIT_LOGIN, RATE_LIMIT_REGISTER,
//	RATE_LIMIT_PASSWORD_RESET, RATE_LIMIT_API, LOCKOUT_THRESHOLD,
//	LOCKOUT_DURATION, PASSWORD_HASHER, CORS_ALLOWED_ORIGINS, APP_DEBUG
//
// Rate limits are "maxHits" or "maxHits/windowSeconds".
func parseEnv(config *Config) {
	file := flagx.EnvFileFlag()
	explicit := file != ""
	if !explicit {
		file = defaultEnvFile
	}

	if err := godotenv.Load(file); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			panic(err)
		}
	}

	setString(&config.EndpointAddrGRPC, "GRPC_ADDRESS")
	setString(&config.EndpointAddrHTTP, "HTTP_ADDRESS")
	setString(&config.DatabaseDSN, "DATABASE_DSN")
	setString(&config.Issuer, "JWT_ISSUER")
	setString(&config.AccessTokenSecret, "JWT_ACCESS_SECRET")
	setSeconds(&config.AccessTokenValidity, "JWT_ACCESS_EXPIRY")
	setString(&config.RememberTokenSecret, "JWT_REMEMBER_SECRET")
	setSeconds(&config.RememberTokenValidity, "JWT_REMEMBER_EXPIRY")
	setSeconds(&config.PasswordResetValidity, "PASSWORD_RESET_EXPIRY")
	setRateLimit(&config.LoginRateLimit, "RATE_LIMIT_LOGIN")
	setRateLimit(&config.RegisterRateLimit, "RATE_LIMIT_REGISTER")
	setRateLimit(&config.PasswordResetRateLimit, "RATE_LIMIT_PASSWORD_RESET")
	setRateLimit(&config.APIRateLimit, "RATE_LIMIT_API")
	setInt(&config.LockoutThreshold, "LOCKOUT_THRESHOLD")
	setSeconds(&config.LockoutDuration, "LOCKOUT_DURATION")
	setString(&config.PasswordHasher, "PASSWORD_HASHER")

	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		config.CORSAllowedOrigins = splitList(v)
	}

	if v, ok := os.LookupEnv("APP_DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(fmt.Errorf("APP_DEBUG: %w", err))
		}
		config.Debug = b
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = n
}

func setSeconds(dst *time.Duration, key string) {
	var n int
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	setInt(&n, key)
	*dst = timex.Seconds(n)
}

func setRateLimit(dst *RateLimit, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return
	}
	rl, err := parseRateLimit(v, dst.Window)
	if err != nil {
		panic(fmt.Errorf("%s: %w", key, err))
	}
	*dst = rl
}

// parseRateLimit reads "maxHits" or "maxHits/windowSeconds".
func parseRateLimit(s string, defaultWindow time.Duration) (RateLimit, error) {
	hits, window, hasWindow := strings.Cut(strings.TrimSpace(s), "/")

	n, err := strconv.Atoi(hits)
	if err != nil {
		return RateLimit{}, err
	}
	rl := RateLimit{MaxHits: n, Window: defaultWindow}

	if hasWindow {
		sec, err := strconv.Atoi(window)
		if err != nil {
			return RateLimit{}, err
		}
		if sec <= 0 {
			return RateLimit{}, fmt.Errorf("window must be positive, got %d", sec)
		}
		rl.Window = timex.Seconds(sec)
	}

	return rl, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

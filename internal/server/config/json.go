package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/sessionkeeper/internal/flagx"
	"github.com/dmitrijs2005/sessionkeeper/internal/timex"
)

// JsonRateLimit is the JSON form of RateLimit.
type JsonRateLimit struct {
	MaxHits int            `json:"max_hits"`
	Window  timex.Duration `json:"window"`
}

// JsonConfig is the DTO for JSON config files. Interval fields use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC       string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP       string         `json:"endpoint_addr_http"`
	DatabaseDSN            string         `json:"database_dsn"`
	Issuer                 string         `json:"issuer"`
	AccessTokenSecret      string         `json:"access_token_secret"`
	AccessTokenValidity    timex.Duration `json:"access_token_validity"`
	RememberTokenSecret    string         `json:"remember_token_secret"`
	RememberTokenValidity  timex.Duration `json:"remember_token_validity"`
	PasswordResetValidity  timex.Duration `json:"password_reset_validity"`
	LoginRateLimit         *JsonRateLimit `json:"login_rate_limit"`
	RegisterRateLimit      *JsonRateLimit `json:"register_rate_limit"`
	PasswordResetRateLimit *JsonRateLimit `json:"password_reset_rate_limit"`
	APIRateLimit           *JsonRateLimit `json:"api_rate_limit"`
	LockoutThreshold       int            `json:"lockout_threshold"`
	LockoutDuration        timex.Duration `json:"lockout_duration"`
	PasswordHasher         string         `json:"password_hasher"`
	CORSAllowedOrigins     []string       `json:"cors_allowed_origins"`
	Debug                  *bool          `json:"debug"`
}

// parseJson overlays values from the JSON file named by -c/-config.
// Without the flag nothing is loaded. Fields absent from the file keep
// their current value. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlayString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	overlayString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.Issuer, c.Issuer)
	overlayString(&config.AccessTokenSecret, c.AccessTokenSecret)
	overlayString(&config.RememberTokenSecret, c.RememberTokenSecret)
	overlayString(&config.PasswordHasher, c.PasswordHasher)

	if c.AccessTokenValidity.Duration > 0 {
		config.AccessTokenValidity = c.AccessTokenValidity.Duration
	}
	if c.RememberTokenValidity.Duration > 0 {
		config.RememberTokenValidity = c.RememberTokenValidity.Duration
	}
	if c.PasswordResetValidity.Duration > 0 {
		config.PasswordResetValidity = c.PasswordResetValidity.Duration
	}
	if c.LockoutDuration.Duration > 0 {
		config.LockoutDuration = c.LockoutDuration.Duration
	}
	if c.LockoutThreshold > 0 {
		config.LockoutThreshold = c.LockoutThreshold
	}

	overlayRateLimit(&config.LoginRateLimit, c.LoginRateLimit)
	overlayRateLimit(&config.RegisterRateLimit, c.RegisterRateLimit)
	overlayRateLimit(&config.PasswordResetRateLimit, c.PasswordResetRateLimit)
	overlayRateLimit(&config.APIRateLimit, c.APIRateLimit)

	if c.CORSAllowedOrigins != nil {
		config.CORSAllowedOrigins = c.CORSAllowedOrigins
	}
	if c.Debug != nil {
		config.Debug = *c.Debug
	}
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayRateLimit(dst *RateLimit, v *JsonRateLimit) {
	if v == nil {
		return
	}
	dst.MaxHits = v.MaxHits
	if v.Window.Duration > 0 {
		dst.Window = v.Window.Duration
	}
}

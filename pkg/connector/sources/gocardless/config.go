package gocardless

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/nebula-gocardless/pkg/config"
	"github.com/ajitpratap0/nebula-gocardless/pkg/errors"
)

const (
	// LiveBaseURL serves the live environment
	LiveBaseURL = "https://api.gocardless.com/"
	// SandboxBaseURL serves the sandbox environment
	SandboxBaseURL = "https://api-sandbox.gocardless.com/"

	EnvironmentLive    = "live"
	EnvironmentSandbox = "sandbox"
)

// Credential keys read from security.credentials.
const (
	keyAccessToken  = "access_token"
	keyEnvironment  = "gocardless_environment"
	keyVersion      = "gocardless_version"
	keyStartDate    = "start_date"
	keyLookbackDays = "lookback_window_days"
	keyStreams      = "streams"
	keyBaseURL      = "base_url"
)

// Config holds the GoCardless connection settings.
type Config struct {
	AccessToken string
	Environment string
	Version     string
	// StartDate is either an ISO-8601 string or Unix seconds (int64), as
	// configured.
	StartDate          interface{}
	LookbackWindowDays int
	// Streams is the selected stream names; empty selects all.
	Streams []string
	BaseURL string
}

// ParseConfig extracts and validates the connector settings.
func ParseConfig(cfg *config.BaseConfig) (*Config, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if !cfg.Security.HasCredentials() {
		return nil, errors.New(errors.ErrorTypeConfig, "security.credentials is required")
	}

	c := &Config{
		AccessToken: strings.TrimSpace(cfg.Credential(keyAccessToken, "")),
		Environment: strings.ToLower(strings.TrimSpace(cfg.Credential(keyEnvironment, EnvironmentLive))),
		Version:     strings.TrimSpace(cfg.Credential(keyVersion, "")),
		BaseURL:     strings.TrimSpace(cfg.Credential(keyBaseURL, "")),
	}

	if c.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "access_token is required")
	}
	if c.Version == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "gocardless_version is required")
	}

	switch c.Environment {
	case EnvironmentLive:
		if c.BaseURL == "" {
			c.BaseURL = LiveBaseURL
		}
	case EnvironmentSandbox:
		if c.BaseURL == "" {
			c.BaseURL = SandboxBaseURL
		}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "gocardless_environment must be %q or %q, got %q",
			EnvironmentLive, EnvironmentSandbox, c.Environment)
	}

	start := strings.TrimSpace(cfg.Credential(keyStartDate, ""))
	if start == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "start_date is required")
	}
	if isBasicDate(start) {
		c.StartDate = start
	} else if n, err := strconv.ParseInt(start, 10, 64); err == nil {
		c.StartDate = n
	} else {
		c.StartDate = start
	}
	if _, err := ParseCursor(c.StartDate); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}

	if raw := strings.TrimSpace(cfg.Credential(keyLookbackDays, "")); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "lookback_window_days must be an integer")
		}
		c.LookbackWindowDays = days
	}

	if raw := cfg.Credential(keyStreams, ""); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Streams = append(c.Streams, name)
			}
		}
	}

	return c, nil
}

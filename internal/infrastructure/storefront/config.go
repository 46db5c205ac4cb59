package storefront

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
)

const (
	// DefaultAPIVersion is the admin API version used when none is configured
	DefaultAPIVersion = "2024-01"
	// DefaultPageSize is the number of orders requested per page
	DefaultPageSize = 50
	// MaxPageSize is the largest page the admin API accepts
	MaxPageSize = 250

	defaultTimeout      = 30 * time.Second
	defaultMaxBodyBytes = 10 << 20 // 10MB
)

var (
	ErrConfigMissingBaseURL     = errors.New("storefront: base URL is required")
	ErrConfigMissingAccessToken = errors.New("storefront: access token is required")
)

// Config holds the connection settings for the storefront admin API
type Config struct {
	// BaseURL is the shop origin, e.g. https://example.myshopify.com
	BaseURL     string
	APIVersion  string
	AccessToken string
	PageSize    int
	Timeout     time.Duration
	// MaxBodyBytes caps every response body read from the API
	MaxBodyBytes int64
}

// Validate checks the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, ErrConfigMissingBaseURL)
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("%w: base URL: %v", integration.ErrPlatformNotConfigured, err)
	}
	if c.AccessToken == "" {
		return fmt.Errorf("%w: %w", integration.ErrPlatformNotConfigured, ErrConfigMissingAccessToken)
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return nil
}

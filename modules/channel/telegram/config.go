package telegram

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// Config holds the Telegram channel configuration.
type Config struct {
	Token          string `yaml:"token"`
	PollingTimeout int    `yaml:"polling_timeout"`
	APIURL         string `yaml:"api_url"`
	// AllowUsers restricts the bot to these user IDs or usernames. Empty
	// allows everyone.
	AllowUsers []string `yaml:"allow_users"`
	// MaxImageBytes caps downloaded photos. Defaults to 10 MiB.
	MaxImageBytes int64 `yaml:"max_image_bytes"`
}

func (c *Config) defaults() {
	if c.PollingTimeout == 0 {
		c.PollingTimeout = 30
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.telegram.org"
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 10 << 20
	}
}

// Validate checks field constraints once defaults are applied.
func (c *Config) Validate() error {
	c.defaults()
	if c.Token == "" {
		return errors.New("telegram: token is required")
	}
	if !tokenPattern.MatchString(c.Token) {
		return errors.New("telegram: token format invalid (expected <bot_id>:<hash>)")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("telegram: api_url must be a valid http/https URL, got %q", c.APIURL)
	}
	if c.PollingTimeout < 0 || c.PollingTimeout > 50 {
		return fmt.Errorf("telegram: polling_timeout must be 0-50, got %d", c.PollingTimeout)
	}
	return nil
}

package config

import (
	"time"

	"github.com/apppro/content-pipeline/internal/collect"
	"github.com/apppro/content-pipeline/internal/generate"
	redisclient "github.com/apppro/content-pipeline/internal/infra/redis"
	"github.com/apppro/content-pipeline/internal/infra/storage/postgres"
	"github.com/apppro/content-pipeline/internal/publish"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig          `yaml:"server"`
	Site      SiteConfig            `yaml:"site"`
	Feeds     []collect.Feed        `yaml:"feeds"`
	Generator generate.ClientConfig `yaml:"generator"`
	Mail      publish.MailConfig    `yaml:"mail"`
	Schedule  ScheduleConfig        `yaml:"schedule"`
	Redis     redisclient.Config    `yaml:"redis"`
	Logging   LoggingConfig         `yaml:"logging"`
	Database  postgres.Config       `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SiteConfig holds the public site the blog channel publishes to.
type SiteConfig struct {
	URL string `yaml:"url"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ScheduleConfig holds the stage tickers. The content pass runs collect and
// generate back to back; publish polls the approval queue on its own clock.
type ScheduleConfig struct {
	ContentInterval time.Duration `yaml:"content_interval"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	HealingInterval time.Duration `yaml:"healing_interval"`
}

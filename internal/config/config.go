package config

import "market-briefer/internal/model"

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SearchConfig holds the search provider credentials and scoping.
type SearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	EngineID string `mapstructure:"engine_id"`
	BaseURL  string `mapstructure:"base_url"` // optional override
	Geo      string `mapstructure:"geo"`      // provider geo restrict, e.g. "br"
}

// OpenAIConfig holds the AI synthesizer settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"` // optional
}

// BriefsConfig controls the brief pipeline and its batch worker.
type BriefsConfig struct {
	LookbackWeeks int    `mapstructure:"lookback_weeks"` // url/topic dedup window
	MaxConcurrent int    `mapstructure:"max_concurrent"` // simultaneous pipelines
	RunInterval   string `mapstructure:"run_interval"`   // duration string, e.g. "168h"
	OverridesFile string `mapstructure:"overrides_file"` // optional source-quality yaml
	ServerAddr    string `mapstructure:"server_addr"`    // http surface bind address
}

// SubscriberConfig is one roster entry.
type SubscriberConfig struct {
	ID                  string `mapstructure:"id"`
	Email               string `mapstructure:"email"`
	Name                string `mapstructure:"name"`
	Specialization      string `mapstructure:"specialization"`
	BusinessDescription string `mapstructure:"business_description"`
	ProductsServices    string `mapstructure:"products_services"`
	TargetAudience      string `mapstructure:"target_audience"`
	Location            string `mapstructure:"location"`
	PolicyOverride      string `mapstructure:"policy_override"` // optional policy key
}

// Profile converts the roster entry into the pipeline's profile shape.
func (s SubscriberConfig) Profile() model.Profile {
	return model.Profile{
		ID:                  s.ID,
		Email:               s.Email,
		Name:                s.Name,
		Specialization:      s.Specialization,
		BusinessDescription: s.BusinessDescription,
		ProductsServices:    s.ProductsServices,
		TargetAudience:      s.TargetAudience,
		Location:            s.Location,
		PolicyOverride:      s.PolicyOverride,
	}
}

// Config is the top-level configuration structure.
type Config struct {
	App         AppConfig          `mapstructure:"app"`
	Redis       RedisConfig        `mapstructure:"redis"`
	Search      SearchConfig       `mapstructure:"search"`
	OpenAI      OpenAIConfig       `mapstructure:"openai"`
	Briefs      BriefsConfig       `mapstructure:"briefs"`
	Subscribers []SubscriberConfig `mapstructure:"subscribers"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.Search.Geo == "" {
		c.Search.Geo = "br"
	}
	if c.Briefs.LookbackWeeks == 0 {
		c.Briefs.LookbackWeeks = 4
	}
	if c.Briefs.MaxConcurrent == 0 {
		c.Briefs.MaxConcurrent = 5
	}
	if c.Briefs.RunInterval == "" {
		c.Briefs.RunInterval = "168h"
	}
	if c.Briefs.ServerAddr == "" {
		c.Briefs.ServerAddr = ":8080"
	}
}

// Profiles returns the roster as pipeline profiles, skipping entries
// without an ID.
func (c *Config) Profiles() []model.Profile {
	out := make([]model.Profile, 0, len(c.Subscribers))
	for _, s := range c.Subscribers {
		if s.ID == "" {
			continue
		}
		out = append(out, s.Profile())
	}
	return out
}

package core

import (
	"fmt"
	"strings"
	"time"
)

type DeliveryConfig struct {
	PoolSize       int           `koanf:"pool_size" mapstructure:"pool_size"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
	ItemTimeout    time.Duration `koanf:"item_timeout" mapstructure:"item_timeout"`
	UserAgent      string        `koanf:"user_agent" mapstructure:"user_agent"`
	PageSize       int           `koanf:"page_size" mapstructure:"page_size"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Delivery    DeliveryConfig `koanf:"delivery" mapstructure:"delivery"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "federation",
		Delivery: DeliveryConfig{
			PoolSize:       16,
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     5 * time.Minute,
			ItemTimeout:    10 * time.Second,
			UserAgent:      "go-federation",
			PageSize:       10,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Delivery.PoolSize < 0 {
		return fmt.Errorf("core: delivery.pool_size must be >= 0")
	}
	if c.Delivery.MaxAttempts < 0 {
		return fmt.Errorf("core: delivery.max_attempts must be >= 0")
	}
	if c.Delivery.InitialBackoff < 0 || c.Delivery.MaxBackoff < 0 {
		return fmt.Errorf("core: delivery backoff durations must be >= 0")
	}
	if c.Delivery.ItemTimeout < 0 {
		return fmt.Errorf("core: delivery.item_timeout must be >= 0")
	}
	if c.Delivery.PageSize < 0 {
		return fmt.Errorf("core: delivery.page_size must be >= 0")
	}
	return nil
}

// withDefaults fills zero values from DefaultConfig so partial runtime
// configs stay usable.
func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = defaults.ServiceName
	}
	if c.Delivery.PoolSize == 0 {
		c.Delivery.PoolSize = defaults.Delivery.PoolSize
	}
	if c.Delivery.MaxAttempts == 0 {
		c.Delivery.MaxAttempts = defaults.Delivery.MaxAttempts
	}
	if c.Delivery.InitialBackoff == 0 {
		c.Delivery.InitialBackoff = defaults.Delivery.InitialBackoff
	}
	if c.Delivery.MaxBackoff == 0 {
		c.Delivery.MaxBackoff = defaults.Delivery.MaxBackoff
	}
	if c.Delivery.ItemTimeout == 0 {
		c.Delivery.ItemTimeout = defaults.Delivery.ItemTimeout
	}
	if strings.TrimSpace(c.Delivery.UserAgent) == "" {
		c.Delivery.UserAgent = defaults.Delivery.UserAgent
	}
	if c.Delivery.PageSize == 0 {
		c.Delivery.PageSize = defaults.Delivery.PageSize
	}
	return c
}

package coremain

import (
	"time"

	"github.com/pmkol/gqlx/mlog"
	"github.com/pmkol/gqlx/pkg/policy"
)

type Config struct {
	Log         mlog.LogConfig    `yaml:"log"`
	Endpoint    EndpointConfig    `yaml:"endpoint"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Cache       CacheConfig       `yaml:"cache"`
	Credential  CredentialConfig  `yaml:"credential"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	API         APIConfig         `yaml:"api"`
}

type EndpointConfig struct {
	URL string `yaml:"url"`

	// Transport is "http" (HTTP/1.1 and HTTP/2) or "h3".
	Transport string            `yaml:"transport"`
	Timeout   time.Duration     `yaml:"timeout"`
	MaxBody   int64             `yaml:"max_body"`
	Headers   map[string]string `yaml:"headers"`
}

type ExecutorConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	BackoffUnit time.Duration `yaml:"backoff_unit"`
}

type CacheConfig struct {
	Capacity      int           `yaml:"capacity"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	Rules         []policy.Rule `yaml:"rules"`
	Denylist      []string      `yaml:"denylist"`
}

func (c *CacheConfig) PolicyConfig() policy.Config {
	return policy.Config{
		Rules:      c.Rules,
		DefaultTTL: c.DefaultTTL,
		Denylist:   c.Denylist,
	}
}

type CredentialConfig struct {
	// Backend is one of "memory", "redis" and "badger".
	Backend string       `yaml:"backend"`
	Key     string       `yaml:"key"`
	Redis   RedisConfig  `yaml:"redis"`
	Badger  BadgerConfig `yaml:"badger"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	Timeout  time.Duration `yaml:"timeout"`
}

type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

type DiagnosticsConfig struct {
	LogSize int        `yaml:"log_size"`
	NATS    NATSConfig `yaml:"nats"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type APIConfig struct {
	HTTP string `yaml:"http"`
}
